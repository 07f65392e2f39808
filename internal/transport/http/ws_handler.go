package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/avolkov/relaychat-server/internal/core"
	"github.com/avolkov/relaychat-server/internal/proto"
)

// errKicked signals that the hub force-closed the session.
var errKicked = errors.New("kicked")

// WSHandler upgrades HTTP connections and bridges them to core sessions.
type WSHandler struct {
	hub       *core.Hub
	rateLimit int
	log       *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, rateLimit int, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, rateLimit: rateLimit, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	session := h.hub.Connect()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		defer close(session.Commands)
		errCh <- h.readLoop(ctx, conn, session)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if errors.Is(err, errKicked) {
		reason = "kicked"
		err = nil
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session) error {
	limiter := newRateLimiter(h.rateLimit)
	defer limiter.stop()

	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		cmd, err := inboundToCommand(inbound)
		if err != nil {
			// Malformed input is dropped without a client notice.
			h.log.Warn().Err(err).Str("session_id", session.ID).Msg("dropped inbound frame")
			continue
		}

		if cmd.Kind == core.CommandChat && !limiter.allow() {
			h.log.Warn().Str("session_id", session.ID).Msg("rate limit exceeded, frame dropped")
			continue
		}

		select {
		case session.Commands <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *core.Session) error {
	for {
		select {
		case event, ok := <-session.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("session_id", session.ID).Msg("write ws event")
				return err
			}
		case <-session.Done():
			// Force-terminated by the hub. Flush whatever is already
			// queued (the kick notice, usually), tell the client, close.
			h.flushPending(ctx, conn, session)
			_ = wsjson.Write(ctx, conn, outboundFromEvent(&core.Event{Kind: core.EventDisconnect}))
			return errKicked
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) flushPending(ctx context.Context, conn *websocket.Conn, session *core.Session) {
	for {
		select {
		case event, ok := <-session.Events:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				return
			}
		default:
			return
		}
	}
}
