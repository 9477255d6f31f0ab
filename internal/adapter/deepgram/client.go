// Package deepgram provides a WebSocket client for the Flux listen API.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/coder/websocket"

	"github.com/voxtask/voxtask/internal/config"
)

// Client dials the Flux listen endpoint.
type Client struct {
	cfg config.Deepgram
}

// NewClient creates a Client from config.
func NewClient(cfg config.Deepgram) *Client {
	return &Client{cfg: cfg}
}

// Conn is an open Flux session.
type Conn struct {
	ws *websocket.Conn
}

// Dial opens a Flux session. rawQuery is the client's query string
// (model, encoding, sample_rate) passed through verbatim.
func (c *Client) Dial(ctx context.Context, rawQuery string) (*Conn, error) {
	url := c.cfg.URL
	if rawQuery != "" {
		url += "?" + rawQuery
	}

	header := http.Header{}
	header.Set("Authorization", "Token "+c.cfg.APIKey)

	ws, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("dial deepgram: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	// Transcription frames can outgrow the default 32 KiB limit.
	ws.SetReadLimit(1 << 20)

	return &Conn{ws: ws}, nil
}

// SendAudio forwards one binary audio frame upstream.
func (c *Conn) SendAudio(ctx context.Context, frame []byte) error {
	return c.ws.Write(ctx, websocket.MessageBinary, frame)
}

// Read blocks for the next frame. JSON frames are decoded into Message
// with the raw payload preserved for transparent relay; binary frames
// return a Message with empty Type and the payload in Raw.
func (c *Conn) Read(ctx context.Context) (Message, error) {
	typ, data, err := c.ws.Read(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("read deepgram: %w", err)
	}

	msg := Message{Raw: data}
	if typ == websocket.MessageText {
		if err := json.Unmarshal(data, &msg); err != nil {
			return Message{}, fmt.Errorf("decode deepgram frame: %w", err)
		}
		msg.Raw = data
	}
	return msg, nil
}

// Close closes the session.
func (c *Conn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "session ended")
}
