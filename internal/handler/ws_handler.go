package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempts/internal/middleware"
	"github.com/stemsi/exstem-attempts/internal/model"
	"github.com/stemsi/exstem-attempts/internal/response"
	"github.com/stemsi/exstem-attempts/internal/service"
	"github.com/stemsi/exstem-attempts/internal/validator"
	ws "github.com/stemsi/exstem-attempts/internal/websocket"
)

// wsOpTimeout bounds a single action; the request context is not used once
// the connection is hijacked.
const wsOpTimeout = 15 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams attempt operations over a WebSocket.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/attempts/:attempt_id/stream
// Carries answer, flush, finish and ping actions for one attempt.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := parseAttemptID(c)
	if !ok {
		return
	}

	// Ownership is checked before the upgrade so the client gets a plain HTTP error.
	if _, err := h.attemptService.Snapshot(c.Request.Context(), claims.UserID, attemptID); err != nil {
		failWith(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	ws.Prepare(conn)

	s := &wsSession{
		h:         h,
		conn:      conn,
		userID:    claims.UserID,
		attemptID: attemptID,
		log: h.log.With().
			Int64("user_id", claims.UserID).
			Str("attempt_id", attemptID.String()).
			Logger(),
	}

	s.log.Info().Msg("Candidate connected")
	s.serve()
}

type wsSession struct {
	h         *WSHandler
	conn      *websocket.Conn
	userID    int64
	attemptID uuid.UUID
	log       zerolog.Logger
}

func (s *wsSession) serve() {
	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(s.conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				s.log.Debug().Msg("Connection closed")
			}
			return
		}

		var done bool
		switch msg.Action {
		case ws.ActionAnswer:
			s.handleAnswer(&msg)
		case ws.ActionFlush:
			s.handleFlush(&msg)
		case ws.ActionFinish:
			done = s.handleFinish(&msg)
		case ws.ActionPing:
			s.handlePing(&msg)
		default:
			s.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(s.conn, msg.Ref, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		}

		if done {
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "attempt finalized"),
				time.Now().Add(time.Second))
			return
		}
	}
}

func (s *wsSession) handleAnswer(msg *ws.RequestPayload) {
	if msg.Answer == nil {
		ws.WriteError(s.conn, msg.Ref, string(response.ErrValidation), "answer is required")
		return
	}
	if fields := validator.Validate(msg.Answer); fields != nil {
		s.writeValidation(msg.Ref, fields)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
	defer cancel()

	ack, err := s.h.attemptService.SubmitAnswer(ctx, s.userID, s.attemptID, *msg.Answer)
	if err != nil {
		s.writeServiceError(msg.Ref, err)
		return
	}
	ws.WriteTyped(s.conn, ws.AckResponse{Event: ws.EventAck, Ref: msg.Ref, Ack: ack})
}

func (s *wsSession) handleFlush(msg *ws.RequestPayload) {
	batch := model.SubmitBatchRequest{Answers: msg.Answers}
	if fields := validator.Validate(&batch); fields != nil {
		s.writeValidation(msg.Ref, fields)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
	defer cancel()

	acks, err := s.h.attemptService.SubmitBatch(ctx, s.userID, s.attemptID, batch.Answers)
	if err != nil {
		s.writeServiceError(msg.Ref, err)
		return
	}
	ws.WriteTyped(s.conn, ws.BatchAckResponse{Event: ws.EventBatchAck, Ref: msg.Ref, Acks: acks})
}

// handleFinish reports whether the stream should close.
func (s *wsSession) handleFinish(msg *ws.RequestPayload) bool {
	ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
	defer cancel()

	snap, err := s.h.attemptService.Finish(ctx, s.userID, s.attemptID)
	if err != nil {
		s.writeServiceError(msg.Ref, err)
		return false
	}

	s.log.Info().Int("answers", len(snap.Answers)).Msg("Attempt finished over stream")
	ws.WriteTyped(s.conn, ws.FinalizedResponse{Event: ws.EventFinalized, Ref: msg.Ref, Snapshot: snap})
	return true
}

func (s *wsSession) handlePing(msg *ws.RequestPayload) {
	ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
	defer cancel()

	snap, err := s.h.attemptService.Snapshot(ctx, s.userID, s.attemptID)
	if err != nil {
		s.writeServiceError(msg.Ref, err)
		return
	}
	ws.WriteTyped(s.conn, ws.PongResponse{Event: ws.EventPong, Ref: msg.Ref, RemainingSeconds: snap.RemainingSeconds})
}

func (s *wsSession) writeValidation(ref string, fields map[string]string) {
	ws.WriteTyped(s.conn, ws.ErrorResponse{
		Event:  ws.EventError,
		Ref:    ref,
		Code:   string(response.ErrValidation),
		Error:  response.GetMessage(response.ErrValidation),
		Fields: fields,
	})
}

func (s *wsSession) writeServiceError(ref string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, context.Canceled) {
		s.log.Error().Err(err).Msg("Stream action failed")
	}
	ws.WriteError(s.conn, ref, string(code), response.GetMessage(code))
}
