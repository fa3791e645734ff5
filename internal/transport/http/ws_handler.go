package http

import (
	"encoding/json"
	"log"
	"net/http"

	"quiz-attempt-engine/internal/app"
	"quiz-attempt-engine/internal/domain"
	"quiz-attempt-engine/internal/scoring"
	"quiz-attempt-engine/internal/session"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	engine   *app.AttemptEngine
	upgrader websocket.Upgrader
}

func NewWSHandler(engine *app.AttemptEngine) *WSHandler {
	return &WSHandler{
		engine: engine,
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

type answerPayload struct {
	QuestionID       domain.ID `json:"questionId"`
	Value            string    `json:"value"`
	TimeSpentSeconds int       `json:"timeSpentSeconds"`
	HintsUsed        int       `json:"hintsUsed"`
}

type answerRecorded struct {
	QuestionID   domain.ID `json:"questionId"`
	IsCorrect    bool      `json:"isCorrect"`
	Similarity   *float64  `json:"similarity,omitempty"`
	DisplayScore *float64  `json:"displayScore,omitempty"`
}

type submitPayload struct {
	Authenticated bool   `json:"authenticated"`
	ReturnPath    string `json:"returnPath"`
}

type authRequiredPayload struct {
	ReturnPath string `json:"returnPath"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and drives one quiz attempt over the socket.
// The protocol is strictly request/response, so the single read loop is also
// the only writer.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("slug")
	if slug == "" {
		http.Error(w, "missing slug", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	activeConnections.Inc()
	defer activeConnections.Dec()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		switch inbound.Type {
		case "load":
			view, err := h.engine.Load(r.Context(), slug)
			if err != nil {
				h.sendError(conn, err)
			}
			h.sendState(conn, view)

		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.sendError(conn, err)
				continue
			}
			answer, view, err := h.engine.Answer(slug, payload.QuestionID, payload.Value, payload.TimeSpentSeconds, payload.HintsUsed)
			if err != nil {
				h.sendError(conn, err)
				h.sendState(conn, view)
				continue
			}
			recorded := answerRecorded{
				QuestionID: answer.QuestionID,
				IsCorrect:  answer.IsCorrect,
				Similarity: answer.Similarity,
			}
			if answer.Similarity != nil {
				display := scoring.DisplayScore(*answer.Similarity, answer.HintsUsed)
				recorded.DisplayScore = &display
			}
			h.send(conn, "answer", recorded)
			h.sendState(conn, view)

		case "advance":
			view, preview, err := h.engine.Advance(slug)
			if err != nil {
				h.sendError(conn, err)
				continue
			}
			if preview != nil {
				h.send(conn, "preview", *preview)
			}
			h.sendState(conn, view)

		case "submit":
			var payload submitPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.sendError(conn, err)
				continue
			}
			view, result, err := h.engine.Submit(r.Context(), slug, payload.Authenticated, payload.ReturnPath)
			switch {
			case err != nil:
				submissionsTotal.WithLabelValues("failed").Inc()
				h.sendError(conn, err)
			case view.Status == session.StatusAwaitingAuth:
				submissionsTotal.WithLabelValues("awaiting_auth").Inc()
				h.send(conn, "authRequired", authRequiredPayload{ReturnPath: payload.ReturnPath})
			case result != nil:
				submissionsTotal.WithLabelValues("submitted").Inc()
				h.send(conn, "result", *result)
			}
			h.sendState(conn, view)

		case "resume":
			view, result, err := h.engine.ResumeAfterAuth(r.Context(), slug)
			if err != nil {
				h.sendError(conn, err)
			} else if result != nil {
				submissionsTotal.WithLabelValues("submitted").Inc()
				h.send(conn, "result", *result)
			}
			h.sendState(conn, view)

		case "reset":
			h.engine.Reset(r.Context(), slug)
			if view, err := h.engine.View(slug); err == nil {
				h.sendState(conn, view)
			}

		case "result":
			result, err := h.engine.ResultForSlug(r.Context(), slug)
			if err != nil {
				h.sendError(conn, err)
				continue
			}
			h.send(conn, "result", result)

		case "state":
			view, err := h.engine.View(slug)
			if err != nil {
				h.sendError(conn, err)
				continue
			}
			h.sendState(conn, view)

		default:
			h.send(conn, "error", errorPayload{Message: "unsupported message type"})
		}
	}
}

func (h *WSHandler) sendState(conn *websocket.Conn, view session.View) {
	h.send(conn, "state", view)
}

func (h *WSHandler) sendError(conn *websocket.Conn, err error) {
	h.send(conn, "error", errorPayload{Message: err.Error()})
}

func (h *WSHandler) send(conn *websocket.Conn, msgType string, payload any) {
	if err := conn.WriteJSON(outboundMessage[any]{Type: msgType, Payload: payload}); err != nil {
		log.Printf("ws write error: %v", err)
	}
}
