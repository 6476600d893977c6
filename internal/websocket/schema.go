package websocket

import "github.com/stemsi/exstem-attempts/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionFlush  Action = "flush"
	ActionFinish Action = "finish"
	ActionPing   Action = "ping"
)

// RequestPayload is one client message. Ref is echoed back on the reply so
// a client can match responses to requests.
type RequestPayload struct {
	Action  Action                      `json:"action"`
	Ref     string                      `json:"ref,omitempty"`
	Answer  *model.SubmitAnswerRequest  `json:"answer,omitempty"`
	Answers []model.SubmitAnswerRequest `json:"answers,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventAck       Event = "ack"
	EventBatchAck  Event = "batch_ack"
	EventFinalized Event = "finalized"
	EventPong      Event = "pong"
	EventError     Event = "error"
)

type AckResponse struct {
	Event Event            `json:"event"`
	Ref   string           `json:"ref,omitempty"`
	Ack   *model.AnswerAck `json:"ack"`
}

type BatchAckResponse struct {
	Event Event             `json:"event"`
	Ref   string            `json:"ref,omitempty"`
	Acks  []model.AnswerAck `json:"acks"`
}

type FinalizedResponse struct {
	Event    Event                       `json:"event"`
	Ref      string                      `json:"ref,omitempty"`
	Snapshot *model.FinalizationSnapshot `json:"snapshot"`
}

type PongResponse struct {
	Event            Event  `json:"event"`
	Ref              string `json:"ref,omitempty"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

type ErrorResponse struct {
	Event  Event             `json:"event"`
	Ref    string            `json:"ref,omitempty"`
	Code   string            `json:"code"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
