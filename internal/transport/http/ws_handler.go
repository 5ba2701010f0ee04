package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"boardquiz-service/internal/app"
	"boardquiz-service/internal/domain"
)

type WSHandler struct {
	service  *app.GameService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		log:     log.Named("ws"),
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
	Index *int `json:"index"`
}

type generatePayload struct {
	Topic string `json:"topic"`
}

type secretPayload struct {
	APIKey string `json:"apiKey"`
}

type checkAIPayload struct {
	Model string `json:"model"`
}

type libraryPayload struct {
	DeckID string `json:"deckId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type aiCheckResult struct {
	Model string `json:"model"`
	Count int    `json:"count"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
}

// ServeWS upgrades HTTP requests to websockets and wires them into the board game use cases.
// The session query parameter names the board; several sockets may share one.
// Every state change reaches the client as a session update; direct replies are only sent
// for errors and for requests that return data of their own.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	// anonymous clients get a fresh board; the id comes back in the initial state
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, stop := context.WithCancel(r.Context())
	defer stop()
	if _, err := h.service.Open(ctx, sessionID); err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}

	updates, cancel, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	// unsubscribe before leaving so the session can be recognised as idle
	defer h.service.Leave(context.WithoutCancel(ctx), sessionID)
	defer cancel()

	log := h.log.With(zap.String("session", sessionID))
	log.Info("client connected")

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})
	var pending sync.WaitGroup

	// background runs a slow request off the read loop and sends its reply when done.
	background := func(run func() outboundMessage[any]) {
		pending.Add(1)
		go func() {
			defer pending.Done()
			msg := run()
			select {
			case send <- msg:
			case <-closeSignals:
			}
		}()
	}

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
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: string(update.Kind), Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if reply, ok := h.dispatch(ctx, sessionID, inbound, background); ok {
			select {
			case send <- reply:
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	stop()
	<-updatesDone
	pending.Wait()
	close(send)
	<-writerDone
	log.Info("client disconnected")
}

// dispatch runs one inbound command and returns the direct reply, if there is one.
// Requests that may wait on the provider go through background and reply later.
func (h *WSHandler) dispatch(ctx context.Context, sessionID string, in inboundMessage, background func(func() outboundMessage[any])) (outboundMessage[any], bool) {
	var err error
	switch in.Type {
	case "start":
		_, err = h.service.StartGame(ctx, sessionID)
	case "reset":
		_, err = h.service.ResetGame(ctx, sessionID)
	case "roll":
		_, err = h.service.Roll(ctx, sessionID)
	case "answer":
		var p answerPayload
		if json.Unmarshal(in.Payload, &p) != nil || p.Index == nil {
			return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}, true
		}
		_, err = h.service.SubmitAnswer(ctx, sessionID, *p.Index)
	case "ack":
		_, err = h.service.Acknowledge(ctx, sessionID)
	case "generate":
		var p generatePayload
		if json.Unmarshal(in.Payload, &p) != nil {
			return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid generate payload"}}, true
		}
		err = h.service.StartGeneration(ctx, sessionID, p.Topic)
	case "cancel_generation":
		_, err = h.service.CancelGeneration(ctx, sessionID)
	case "import_deck":
		_, err = h.service.ImportDeck(ctx, sessionID, in.Payload)
	case "get_settings":
		st, err := h.service.Settings(ctx, sessionID)
		if err != nil {
			return errorMessage(err), true
		}
		return outboundMessage[any]{Type: "settings", Payload: st}, true
	case "save_settings":
		var p domain.GenerationSettings
		if json.Unmarshal(in.Payload, &p) != nil {
			return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid settings payload"}}, true
		}
		st, err := h.service.SaveSettings(ctx, sessionID, p)
		if err != nil {
			return errorMessage(err), true
		}
		return outboundMessage[any]{Type: "settings", Payload: st}, true
	case "clear_settings":
		err = h.service.ClearSettings(ctx, sessionID)
	case "save_secret":
		var p secretPayload
		if json.Unmarshal(in.Payload, &p) != nil {
			return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid secret payload"}}, true
		}
		if err := h.service.SaveSecret(ctx, sessionID, p.APIKey); err != nil {
			return errorMessage(err), true
		}
		return outboundMessage[any]{Type: "secret", Payload: map[string]bool{"stored": true}}, true
	case "clear_secret":
		if err := h.service.ClearSecret(ctx, sessionID); err != nil {
			return errorMessage(err), true
		}
		return outboundMessage[any]{Type: "secret", Payload: map[string]bool{"stored": false}}, true
	case "check_ai":
		var p checkAIPayload
		_ = json.Unmarshal(in.Payload, &p)
		if p.Model == "" {
			p.Model = app.DefaultModel
		}
		background(func() outboundMessage[any] {
			n, err := h.service.CheckAI(ctx, sessionID, p.Model)
			if err != nil {
				return errorMessage(err)
			}
			return outboundMessage[any]{Type: "ai_check", Payload: aiCheckResult{Model: p.Model, Count: n}}
		})
		return outboundMessage[any]{}, false
	case "save_library":
		id, err := h.service.SaveToLibrary(ctx, sessionID)
		if err != nil {
			return errorMessage(err), true
		}
		return outboundMessage[any]{Type: "library_saved", Payload: libraryPayload{DeckID: id}}, true
	case "load_library":
		var p libraryPayload
		if json.Unmarshal(in.Payload, &p) != nil || p.DeckID == "" {
			return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid library payload"}}, true
		}
		_, err = h.service.LoadFromLibrary(ctx, sessionID, p.DeckID)
	default:
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}, true
	}
	if err != nil {
		return errorMessage(err), true
	}
	return outboundMessage[any]{}, false
}
