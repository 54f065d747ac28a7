package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lkoehler/docintake-go/internal/models"
)

// Failure feed protocol message types.
const (
	feedInit      = "init"
	feedAck       = "ack"
	feedSubscribe = "subscribe"
	feedItem      = "item"
	feedError     = "error"
	feedComplete  = "complete"
	feedKeepAlive = "ka"
)

// feedMessage is one websocket frame on the failure feed.
type feedMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// feedErrorPayload carries the error side of an "error" frame.
type feedErrorPayload struct {
	Message string `json:"message"`
}

// StreamFailures subscribes to the backend's failure feed and invokes
// onItem for every reported failure item until the backend completes the
// subscription or ctx is cancelled. Returning an error from onItem aborts
// the stream.
func (c *Client) StreamFailures(ctx context.Context, onItem func(models.FailureItem) error) error {
	wsURL := c.baseURL
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)

	u, err := url.Parse(wsURL + "/api/failures/feed")
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}

	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	if err := conn.WriteJSON(feedMessage{Type: feedInit}); err != nil {
		return fmt.Errorf("send init: %w", err)
	}

	var ackMsg feedMessage
	if err := conn.ReadJSON(&ackMsg); err != nil {
		return fmt.Errorf("read ack: %w", err)
	}
	if ackMsg.Type != feedAck {
		return fmt.Errorf("expected ack, got %s", ackMsg.Type)
	}

	subID := uuid.New().String()
	if err := conn.WriteJSON(feedMessage{ID: subID, Type: feedSubscribe}); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}

	// Close the connection when ctx is cancelled so the blocking read
	// below unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var msg feedMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read message: %w", err)
		}

		switch msg.Type {
		case feedItem:
			var item models.FailureItem
			if err := json.Unmarshal(msg.Payload, &item); err != nil {
				return fmt.Errorf("unmarshal item: %w", err)
			}
			if err := onItem(item); err != nil {
				return err
			}

		case feedError:
			var payload feedErrorPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				return fmt.Errorf("feed error: %s", string(msg.Payload))
			}
			return fmt.Errorf("feed error: %s", payload.Message)

		case feedComplete:
			return nil

		case feedKeepAlive:
			continue

		default:
			continue
		}
	}
}
