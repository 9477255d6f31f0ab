package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/voxtask/voxtask/internal/adapter/deepgram"
	"github.com/voxtask/voxtask/internal/config"
	"github.com/voxtask/voxtask/internal/domain/event"
)

// Agent runs one voice query and streams events to emit.
type Agent interface {
	Process(ctx context.Context, sessionID, query string, emit func(event.Event)) error
}

// Bridge wires a browser connection to the transcription service and the
// agent: audio frames flow upstream, transcription frames flow back, and a
// finished utterance triggers an agent turn on the same socket.
type Bridge struct {
	flux  *deepgram.Client
	agent Agent
	cfg   config.Agent
	log   *slog.Logger
}

// NewBridge creates a Bridge.
func NewBridge(flux *deepgram.Client, agent Agent, cfg config.Agent, log *slog.Logger) *Bridge {
	return &Bridge{flux: flux, agent: agent, cfg: cfg, log: log}
}

// HandleAgent serves the voice agent endpoint. The client's query string
// (model, encoding, sample_rate) is passed through to the transcription
// service verbatim.
func (b *Bridge) HandleAgent(w http.ResponseWriter, r *http.Request) {
	client, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		b.log.Error("voice accept failed", "error", err)
		return
	}

	sessionID := uuid.NewString()
	log := b.log.With("session_id", sessionID)
	log.Info("voice session opened", "remote", r.RemoteAddr)

	ctx := r.Context()
	upstream, err := b.flux.Dial(ctx, r.URL.RawQuery)
	if err != nil {
		log.Error("transcription dial failed", "error", err)
		data, _ := json.Marshal(errorEnvelope("transcription service unavailable"))
		_ = client.Write(ctx, websocket.MessageText, data)
		_ = client.Close(websocket.StatusInternalError, "upstream unavailable")
		return
	}

	send := func(ctx context.Context, msg Message) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		return client.Write(ctx, websocket.MessageText, data)
	}

	g, gctx := errgroup.WithContext(ctx)

	// Audio pump: client -> transcription service. A JSON {"type":"close"}
	// text frame ends the session cleanly.
	g.Go(func() error {
		for {
			typ, data, err := client.Read(gctx)
			if err != nil {
				return err
			}
			switch typ {
			case websocket.MessageBinary:
				if err := upstream.SendAudio(gctx, data); err != nil {
					return err
				}
			case websocket.MessageText:
				var ctl struct {
					Type string `json:"type"`
				}
				if err := json.Unmarshal(data, &ctl); err == nil && ctl.Type == "close" {
					return nil
				}
			}
		}
	})

	// Event pump: transcription service -> client. End-of-turn frames with
	// a transcript run an agent turn inline so its events interleave in
	// arrival order on the same socket.
	g.Go(func() error {
		for {
			msg, err := upstream.Read(gctx)
			if err != nil {
				return err
			}
			if msg.Type != "" {
				if err := send(gctx, fluxEnvelope(msg.Raw)); err != nil {
					return err
				}
			}
			if msg.EndOfTurn() && msg.Transcript != "" {
				b.runTurn(gctx, sessionID, msg.Transcript, send)
			}
		}
	})

	err = g.Wait()
	_ = upstream.Close()
	_ = client.Close(websocket.StatusNormalClosure, "session ended")
	if err != nil && websocket.CloseStatus(err) < 0 && gctx.Err() == nil {
		log.Warn("voice session ended", "error", err)
		return
	}
	log.Info("voice session closed")
}

// runTurn runs one agent turn with a per-turn deadline, retrying a failed
// turn up to the configured count. Persisted history from a failed attempt
// is never rolled back; the retry simply processes the query again.
func (b *Bridge) runTurn(ctx context.Context, sessionID, query string, send func(context.Context, Message) error) {
	emit := func(ev event.Event) {
		if err := send(ctx, agentEnvelope(ev)); err != nil {
			b.log.Debug("voice event write failed", "error", err)
		}
	}

	var err error
	for attempt := 0; attempt <= b.cfg.Retries; attempt++ {
		if attempt > 0 {
			b.log.Warn("retrying agent turn", "session_id", sessionID, "attempt", attempt, "error", err)
		}
		turnCtx, cancel := context.WithTimeout(ctx, b.cfg.ProcessTimeout)
		err = b.agent.Process(turnCtx, sessionID, query, emit)
		cancel()
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			break
		}
	}

	b.log.Error("agent turn failed", "session_id", sessionID, "error", err)
	_ = send(ctx, errorEnvelope("query failed: "+err.Error()))
}

// HandleTranscribe serves a plain transcription proxy: audio frames go up,
// transcription frames come back verbatim, no agent involved.
func (b *Bridge) HandleTranscribe(w http.ResponseWriter, r *http.Request) {
	client, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		b.log.Error("transcribe accept failed", "error", err)
		return
	}

	ctx := r.Context()
	upstream, err := b.flux.Dial(ctx, r.URL.RawQuery)
	if err != nil {
		b.log.Error("transcription dial failed", "error", err)
		_ = client.Close(websocket.StatusInternalError, "upstream unavailable")
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			typ, data, err := client.Read(gctx)
			if err != nil {
				return err
			}
			if typ == websocket.MessageBinary {
				if err := upstream.SendAudio(gctx, data); err != nil {
					return err
				}
			}
		}
	})
	g.Go(func() error {
		for {
			msg, err := upstream.Read(gctx)
			if err != nil {
				return err
			}
			if msg.Type == "" {
				continue
			}
			if err := client.Write(gctx, websocket.MessageText, msg.Raw); err != nil {
				return err
			}
		}
	})

	_ = g.Wait()
	_ = upstream.Close()
	_ = client.Close(websocket.StatusNormalClosure, "session ended")
}
