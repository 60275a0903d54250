// Package ws wires an Echo route to the relay dispatcher: it upgrades
// the HTTP connection, performs session admission on the first frame,
// then runs a read loop handing every subsequent frame to the relay.
package ws

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/Nowayz/WebSocket-Application-Relay/internal/relay"
	"github.com/Nowayz/WebSocket-Application-Relay/internal/transport"
)

// Handler upgrades incoming connections and runs each one's lifecycle
// against a shared Relay.
type Handler struct {
	relay     *relay.Relay
	log       *slog.Logger
	upgrader  websocket.Upgrader
	admission *rate.Limiter
}

// NewHandler constructs a Handler. admission may be nil to disable
// admission-rate limiting.
func NewHandler(r *relay.Relay, logger *slog.Logger, admission *rate.Limiter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		relay:     r,
		log:       logger,
		admission: admission,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

// Register binds the relay's WebSocket upgrade route onto e.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/relay", h.HandleWebSocket)
}

// HandleWebSocket is the Echo handler for the upgrade route.
func (h *Handler) HandleWebSocket(c echo.Context) error {
	traceID := uuid.NewString()

	if h.admission != nil && !h.admission.Allow() {
		conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return nil
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(int(relay.CloseTryAgainLater), "Try Again Later"), deadlineSoon())
		_ = conn.Close()
		h.log.Info("relay: admission throttled", "trace_id", traceID)
		return nil
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("relay: upgrade failed", "trace_id", traceID, "err", err)
		return nil
	}
	h.serveConn(conn, traceID)
	return nil
}

func (h *Handler) serveConn(conn *websocket.Conn, traceID string) {
	tc := transport.New(conn)
	defer tc.Close(relay.CloseProtocolError, "")

	firstPayload, _, err := tc.ReadFrame()
	if err != nil {
		h.log.Debug("relay: first-frame read failed", "trace_id", traceID, "err", err)
		return
	}

	session, err := h.relay.Admit(tc, firstPayload)
	if err != nil {
		h.log.Info("relay: admission rejected", "trace_id", traceID, "err", err)
		_ = tc.Close(relay.CloseProtocolError, "Channel Length Exceeded")
		return
	}
	h.log.Info("relay: session admitted", "trace_id", traceID, "user_id", session.UserID(), "channel", session.ChannelName())
	defer h.relay.HandleDisconnect(session)

	for {
		data, op, err := tc.ReadFrame()
		if err != nil {
			h.log.Debug("relay: read loop ended", "user_id", session.UserID(), "err", err)
			return
		}
		h.relay.HandleFrame(session, data, op)
	}
}
