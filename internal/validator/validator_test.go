package validator

import (
	"math"
	"testing"
	"time"

	"github.com/stemsi/exstem-attempts/internal/model"
)

func strPtr(s string) *string { return &s }

func TestValidateStartAttemptRequest(t *testing.T) {
	Setup()

	tests := []struct {
		name    string
		req     model.StartAttemptRequest
		wantErr bool
	}{
		{"empty", model.StartAttemptRequest{}, false},
		{"valid zone", model.StartAttemptRequest{TimeZone: strPtr("Asia/Jakarta"), OfflineMode: true}, false},
		{"unknown zone", model.StartAttemptRequest{TimeZone: strPtr("Mars/Olympus")}, true},
		{"device too long", model.StartAttemptRequest{DeviceID: strPtr(string(make([]byte, 256)))}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := Validate(&tt.req)
			if (fields != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", fields, tt.wantErr)
			}
		})
	}
}

func TestValidateSubmitAnswerRequest(t *testing.T) {
	Setup()
	ts := time.Now()

	tests := []struct {
		name    string
		req     model.SubmitAnswerRequest
		wantErr bool
	}{
		{"online", model.SubmitAnswerRequest{QuestionID: 5, Answer: "B", TimeSpent: 12}, false},
		{"offline", model.SubmitAnswerRequest{QuestionID: 5, Answer: "B", OfflineTimestamp: &ts}, false},
		{"missing answer", model.SubmitAnswerRequest{QuestionID: 5}, true},
		{"missing question", model.SubmitAnswerRequest{Answer: "B"}, true},
		{"negative time", model.SubmitAnswerRequest{QuestionID: 5, Answer: "B", TimeSpent: -1}, true},
		{"a full day", model.SubmitAnswerRequest{QuestionID: 5, Answer: "B", TimeSpent: 86400}, false},
		{"over a day", model.SubmitAnswerRequest{QuestionID: 5, Answer: "B", TimeSpent: 86401}, true},
		{"beyond int32", model.SubmitAnswerRequest{QuestionID: 5, Answer: "B", TimeSpent: math.MaxInt32}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := Validate(&tt.req)
			if (fields != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", fields, tt.wantErr)
			}
		})
	}
}

func TestValidateBatchDivesIntoItems(t *testing.T) {
	Setup()

	req := model.SubmitBatchRequest{Answers: []model.SubmitAnswerRequest{
		{QuestionID: 1, Answer: "A"},
		{QuestionID: 2},
	}}

	fields := Validate(&req)
	if fields == nil {
		t.Fatal("expected a validation error for the second item")
	}
	if _, ok := fields["answers[1].answer"]; !ok {
		t.Errorf("fields = %v, want key for answers[1].answer", fields)
	}
}
