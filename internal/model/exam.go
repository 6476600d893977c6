package model

import "time"

// Exam is the catalog entry an attempt is started against.
type Exam struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Duration returns the allowed attempt length.
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationSeconds) * time.Second
}

// Question is a catalog question. Attempts only reference it by id.
type Question struct {
	ID       int64  `json:"id"`
	ExamID   int64  `json:"exam_id"`
	Text     string `json:"question_text"`
	OrderNum int    `json:"order_num"`
}
