package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"skillzone-service/internal/domain"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type tickPayload struct {
	RemainingTime int `json:"remainingTime"`
}

type errorPayload struct {
	Message string               `json:"message"`
	Result  *domain.SubmitResult `json:"result,omitempty"`
}

// serveLive runs one attempt over a websocket: it starts (or resumes) the
// attempt, pushes the remaining time every tick and grades a "submit"
// message. Expiry is still enforced by the service on submit.
func (h *Handler) serveLive(w http.ResponseWriter, r *http.Request) {
	userID, quizID := userIDFrom(r.Context()), r.PathValue("quizID")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	started, err := h.svc.Quizzes.Start(r.Context(), userID, quizID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	deadline := time.Now().Add(time.Duration(started.RemainingTime) * time.Second)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	stopTicks := make(chan struct{})
	writerDone := make(chan struct{})
	tickerDone := make(chan struct{})

	// Single writer; after a write error it keeps draining so senders never block.
	go func() {
		defer close(writerDone)
		failed := false
		for msg := range send {
			if failed {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.log.WithError(err).WithField("quiz_id", quizID).Debug("ws write error")
				failed = true
				_ = conn.Close()
			}
		}
	}()

	send <- outboundMessage[any]{Type: "started", Payload: started}

	go func() {
		defer close(tickerDone)
		ticker := time.NewTicker(h.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				remaining := int(time.Until(deadline) / time.Second)
				if remaining < 0 {
					remaining = 0
				}
				select {
				case send <- outboundMessage[any]{Type: "tick", Payload: tickPayload{RemainingTime: remaining}}:
				case <-closeSignals:
					return
				}
				if remaining == 0 {
					return
				}
			case <-stopTicks:
				return
			case <-closeSignals:
				return
			}
		}
	}()

	var stopOnce sync.Once
	stop := func() { stopOnce.Do(func() { close(stopTicks) }) }

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "submit":
			var req submitRequest
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &req); err != nil {
					send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid submit payload"}}
					continue
				}
			}
			if err := validate.Struct(req); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid submit payload"}}
				continue
			}
			res, err := h.svc.Quizzes.Submit(r.Context(), userID, quizID, domain.Submission{
				Answers:        req.Answers,
				IdempotencyKey: req.IdempotencyKey,
			})
			if errors.Is(err, domain.ErrTimeLimitExceeded) {
				stop()
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error(), Result: &res}}
				continue
			}
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			stop()
			send <- outboundMessage[any]{Type: "result", Payload: res}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-tickerDone
	close(send)
	<-writerDone
}
