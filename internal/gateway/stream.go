package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/flemzord/presenced/internal/status"
)

// handleStatusStream upgrades to a WebSocket and sends the current
// RunStatus followed by one message per recorded run. Client messages
// are ignored. An update that arrives while the client is slow may be
// skipped; the next one carries the full state again.
func (g *Gateway) handleStatusStream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.tracker == nil {
			writeError(w, http.StatusServiceUnavailable, "keep-alive status unavailable")
			return
		}

		// The server write timeout would otherwise cut long-lived streams.
		rc := http.NewResponseController(w)
		_ = rc.SetWriteDeadline(time.Time{})

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Warn("gateway: websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		g.counters.streamOpened()
		defer g.counters.streamClosed()

		updates := g.tracker.Subscribe()
		defer g.tracker.Unsubscribe(updates)

		ctx := conn.CloseRead(r.Context())
		if err := g.writeStatus(ctx, conn, g.tracker.Snapshot()); err != nil {
			return
		}
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			case s, ok := <-updates:
				if !ok {
					return
				}
				if err := g.writeStatus(ctx, conn, s); err != nil {
					g.logger.Debug("gateway: status stream closed", "error", err)
					return
				}
			}
		}
	}
}

func (g *Gateway) writeStatus(ctx context.Context, conn *websocket.Conn, s status.RunStatus) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, g.config.StreamWriteTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}
