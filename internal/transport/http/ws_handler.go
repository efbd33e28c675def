package http

import (
	"encoding/json"
	"log"
	"net/http"

	"aura-trainer-service/internal/speech"
	"aura-trainer-service/internal/trainer"

	"github.com/gorilla/websocket"
)

// WSHandler runs one training round per websocket connection. The learner's
// browser owns the actual speech engines; this side sends them start/stop
// and speak commands and receives their events as inbound messages, so the
// round logic races the recognition stream against the countdown entirely
// server-side.
type WSHandler struct {
	service  *trainer.Service
	upgrader websocket.Upgrader
}

func NewWSHandler(service *trainer.Service) *WSHandler {
	return &WSHandler{
		service: service,
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

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type listenCommand struct {
	Action string `json:"action"` // "start" | "stop"
}

type speakCommand struct {
	Action string `json:"action"` // "speak" | "cancel"
	Text   string `json:"text,omitempty"`
	Lang   string `json:"lang,omitempty"`
}

// ServeWS upgrades the request and drives a round until the peer hangs up.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	lessonID := r.URL.Query().Get("lessonId")
	userID := r.URL.Query().Get("userId")
	if lessonID == "" || userID == "" {
		http.Error(w, "missing lessonId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan any, 32)
	done := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-send:
				if err := conn.WriteJSON(msg); err != nil {
					log.Printf("ws write error: %v", err)
					return
				}
			case <-done:
				return
			}
		}
	}()

	peer := &wsEngine{send: send, done: done}
	sink := &wsSink{send: send, done: done}

	round, err := h.service.OpenRound(r.Context(), lessonID, userID, peer, peer, sink)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		close(done)
		<-writerDone
		return
	}
	defer round.Close()

	sink.push(outboundMessage[trainer.Snapshot]{Type: "state", Payload: round.Snapshot()})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			if err := round.Start(); err != nil {
				sink.push(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			}
		case "reset":
			if err := round.Reset(); err != nil {
				sink.push(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			}
		case "speak":
			_ = round.SpeakWord()
		case "recognition":
			var ev speech.RecognizerEvent
			if err := json.Unmarshal(inbound.Payload, &ev); err != nil {
				sink.push(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "invalid recognition payload"}})
				continue
			}
			round.HandleRecognizerEvent(ev)
		case "playback":
			var ev speech.SynthesizerEvent
			if err := json.Unmarshal(inbound.Payload, &ev); err != nil {
				sink.push(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "invalid playback payload"}})
				continue
			}
			round.HandleSynthesizerEvent(ev)
		default:
			sink.push(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	round.Close()
	close(done)
	<-writerDone
}

// wsEngine is the websocket-bridged speech engine pair: commands go out as
// messages, the browser's Web Speech API executes them.
type wsEngine struct {
	send chan any
	done chan struct{}
}

func (e *wsEngine) Start() error {
	e.push(outboundMessage[listenCommand]{Type: "listen", Payload: listenCommand{Action: "start"}})
	return nil
}

func (e *wsEngine) Stop() error {
	e.push(outboundMessage[listenCommand]{Type: "listen", Payload: listenCommand{Action: "stop"}})
	return nil
}

func (e *wsEngine) Speak(text, lang string) error {
	e.push(outboundMessage[speakCommand]{Type: "speak", Payload: speakCommand{Action: "speak", Text: text, Lang: lang}})
	return nil
}

func (e *wsEngine) Cancel() error {
	e.push(outboundMessage[speakCommand]{Type: "speak", Payload: speakCommand{Action: "cancel"}})
	return nil
}

func (e *wsEngine) push(msg any) {
	select {
	case e.send <- msg:
	case <-e.done:
	}
}

// wsSink streams round output back to the client.
type wsSink struct {
	send chan any
	done chan struct{}
}

func (s *wsSink) RoundState(snap trainer.Snapshot) {
	s.push(outboundMessage[trainer.Snapshot]{Type: "state", Payload: snap})
}

func (s *wsSink) RoundCompleted(result trainer.Result) {
	s.push(outboundMessage[trainer.Result]{Type: "completed", Payload: result})
}

func (s *wsSink) RoundError(kind speech.ErrorKind) {
	s.push(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "speech recognition unavailable: " + string(kind)}})
}

func (s *wsSink) push(msg any) {
	select {
	case s.send <- msg:
	case <-s.done:
	}
}
