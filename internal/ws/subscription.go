package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sujalbistaa/confessly/internal/feed"
	"github.com/sujalbistaa/confessly/internal/models"
)

// ErrHubClosed is returned when subscribing to a hub that has stopped.
var ErrHubClosed = errors.New("hub closed")

// decodeFrame splits a frame written by WritePump into change events.
// Undecodable lines are logged and skipped.
func decodeFrame(frame []byte, emit func(models.ChangeEvent) bool) bool {
	for _, line := range bytes.Split(frame, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var evt models.ChangeEvent
		if err := json.Unmarshal(line, &evt); err != nil {
			log.Printf("ws: skipping undecodable message: %v", err)
			continue
		}
		if !emit(evt) {
			return false
		}
	}
	return true
}

// Subscribe registers an in-process listener. It lets a server-side feed
// consume the same stream websocket clients receive.
func (h *Hub) Subscribe(ctx context.Context) (feed.Subscription, error) {
	client := newClient(h, nil)
	s := &localSubscription{
		client: client,
		events: make(chan models.ChangeEvent, sendBuffer),
		done:   make(chan struct{}),
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !h.register(client) {
		return nil, ErrHubClosed
	}
	go s.relay()
	return s, nil
}

type localSubscription struct {
	client *Client
	events chan models.ChangeEvent
	done   chan struct{}
	once   sync.Once
}

func (s *localSubscription) Events() <-chan models.ChangeEvent { return s.events }

func (s *localSubscription) relay() {
	defer close(s.events)
	for msg := range s.client.Send {
		ok := decodeFrame(msg, func(evt models.ChangeEvent) bool {
			select {
			case s.events <- evt:
				return true
			case <-s.done:
				return false
			}
		})
		if !ok {
			break
		}
	}
	// Let the hub finish closing Send if Close raced with a broadcast.
	for range s.client.Send {
	}
}

// Close unregisters the listener. Events stops once the hub lets go of it.
func (s *localSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		go s.client.Hub.unregister(s.client)
	})
	return nil
}

// Dialer subscribes to a server's change stream over a websocket.
type Dialer struct {
	// URL is the websocket endpoint, e.g. ws://localhost:8080/ws.
	URL string
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Subscribe dials URL. The returned subscription ends when the connection
// drops; the feed keeps working from pagination alone.
func (d *Dialer) Subscribe(ctx context.Context) (feed.Subscription, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, d.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	s := &remoteSubscription{
		conn:   conn,
		events: make(chan models.ChangeEvent, sendBuffer),
		done:   make(chan struct{}),
	}
	go s.readPump()
	return s, nil
}

type remoteSubscription struct {
	conn   *websocket.Conn
	events chan models.ChangeEvent
	done   chan struct{}
	once   sync.Once
}

func (s *remoteSubscription) Events() <-chan models.ChangeEvent { return s.events }

func (s *remoteSubscription) readPump() {
	defer close(s.events)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPingHandler(func(appData string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		err := s.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("ws: live updates lost: %v", err)
				}
			}
			return
		}
		ok := decodeFrame(frame, func(evt models.ChangeEvent) bool {
			select {
			case s.events <- evt:
				return true
			case <-s.done:
				return false
			}
		})
		if !ok {
			return
		}
	}
}

// Close sends a close frame and tears the connection down.
func (s *remoteSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		err = s.conn.Close()
	})
	return err
}
