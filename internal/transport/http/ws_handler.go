package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
)

type WSHandler struct {
	service  *app.AttemptService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AttemptService, log *zap.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	QuestionID  string `json:"questionId"`
	OptionIndex int    `json:"optionIndex"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(msg string) outboundMessage {
	return outboundMessage{Type: "error", Payload: errorPayload{Message: msg}}
}

// ServeWS upgrades HTTP requests to websockets and runs one quiz attempt per
// connection. Every change of the attempt, countdown ticks included, is
// pushed as a "state" message; submission produces one "completed" message.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	if quizID == "" || userID == "" {
		http.Error(w, "missing quizId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Attempts outlive individual requests only as long as the connection.
	ctx := context.WithoutCancel(r.Context())

	view, err := h.service.Begin(ctx, quizID, userID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err.Error()))
		return
	}
	attemptID := view.AttemptID
	log := h.log.With(zap.String("attempt_id", attemptID))

	events, cancel, err := h.service.Subscribe(ctx, attemptID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err.Error()))
		h.service.Close(ctx, attemptID)
		return
	}
	defer h.service.Close(ctx, attemptID)
	defer cancel()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	// Single writer: gorilla connections do not allow concurrent writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				msg := outboundMessage{Type: event.Type, Payload: event.View}
				if event.Type == app.EventCompleted {
					msg.Payload = event.Result
				}
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage{Type: "attempt", Payload: view}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if msg, ok := h.dispatch(ctx, attemptID, inbound); ok {
			send <- msg
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

// dispatch applies one client command. State changes reach the client through
// the subscription; only failures are answered directly.
func (h *WSHandler) dispatch(ctx context.Context, attemptID string, inbound inboundMessage) (outboundMessage, bool) {
	var err error
	switch inbound.Type {
	case "start":
		_, err = h.service.Start(ctx, attemptID)
	case "pause":
		_, err = h.service.Pause(ctx, attemptID)
	case "next":
		_, err = h.service.Advance(ctx, attemptID)
	case "prev":
		_, err = h.service.Retreat(ctx, attemptID)
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid select payload"), true
		}
		_, err = h.service.SelectAnswer(ctx, attemptID, payload.QuestionID, payload.OptionIndex)
	case "submit":
		var started bool
		_, started, err = h.service.Submit(ctx, attemptID)
		if err == nil && !started {
			return errorMessage("attempt has not been started"), true
		}
	default:
		return errorMessage("unsupported message type"), true
	}
	if err != nil {
		return errorMessage(err.Error()), true
	}
	return outboundMessage{}, false
}
