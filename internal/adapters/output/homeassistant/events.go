package homeassistant

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/olebedev/emitter"
	"github.com/rs/zerolog"
)

// eventListener maintains a websocket connection to Home Assistant,
// subscribes to state_changed events and fans them out per entity via an
// emitter. It reconnects with backoff when the connection drops.
type eventListener struct {
	wsURL string
	token string
	bus   *emitter.Emitter
	log   zerolog.Logger
}

type wsMessage struct {
	ID      int             `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Event   json.RawMessage `json:"event,omitempty"`
}

type stateChangedEvent struct {
	EventType string `json:"event_type"`
	Data      struct {
		EntityID string `json:"entity_id"`
	} `json:"data"`
}

func newEventListener(baseURL, token string, log zerolog.Logger) *eventListener {
	wsURL := strings.Replace(baseURL, "http", "ws", 1) + "/api/websocket"
	return &eventListener{
		wsURL: wsURL,
		token: token,
		bus:   emitter.New(16),
		log:   log.With().Str("component", "ha-events").Logger(),
	}
}

// subscribe registers a callback for state changes of one entity and
// returns the matching unsubscribe function.
func (l *eventListener) subscribe(entityKey string, callback func()) func() {
	ch := l.bus.On(entityKey)
	done := make(chan struct{})
	var once sync.Once
	go func() {
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return
				}
				callback()
			case <-done:
				return
			}
		}
	}()
	return func() {
		once.Do(func() {
			close(done)
			l.bus.Off(entityKey, ch)
		})
	}
}

// run drives the connect/auth/subscribe/read loop until ctx is cancelled.
func (l *eventListener) run(ctx context.Context) {
	backoff := time.Second
	for {
		if err := l.listen(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			l.log.Warn().Err(err).Dur("retry_in", backoff).Msg("event stream disconnected")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (l *eventListener) listen(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, l.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if err := l.authenticate(conn); err != nil {
		return err
	}
	if err := conn.WriteJSON(map[string]any{
		"id":         1,
		"type":       "subscribe_events",
		"event_type": "state_changed",
	}); err != nil {
		return err
	}
	l.log.Info().Msg("subscribed to state changes")

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		if msg.Type != "event" || len(msg.Event) == 0 {
			continue
		}
		var ev stateChangedEvent
		if err := json.Unmarshal(msg.Event, &ev); err != nil {
			l.log.Debug().Err(err).Msg("unparseable event")
			continue
		}
		if ev.Data.EntityID != "" {
			l.bus.Emit(ev.Data.EntityID)
		}
	}
}

// authenticate runs the auth_required / auth / auth_ok handshake.
func (l *eventListener) authenticate(conn *websocket.Conn) error {
	var hello wsMessage
	if err := conn.ReadJSON(&hello); err != nil {
		return err
	}
	if hello.Type != "auth_required" {
		return errUnexpectedHandshake(hello.Type)
	}
	if err := conn.WriteJSON(map[string]string{
		"type":         "auth",
		"access_token": l.token,
	}); err != nil {
		return err
	}
	var reply wsMessage
	if err := conn.ReadJSON(&reply); err != nil {
		return err
	}
	if reply.Type != "auth_ok" {
		return errUnexpectedHandshake(reply.Type)
	}
	return nil
}

type errUnexpectedHandshake string

func (e errUnexpectedHandshake) Error() string {
	return "home assistant websocket: unexpected handshake message " + string(e)
}
