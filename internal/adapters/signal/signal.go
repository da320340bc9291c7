package signal

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/videochat/internal/app/orch"
	"github.com/dkeye/videochat/internal/config"
	"github.com/dkeye/videochat/internal/core"
)

type SignalWSController struct {
	Orch     *orch.Orchestrator
	cfg      *config.Config
	upgrader websocket.Upgrader
}

func NewSignalWSController(o *orch.Orchestrator, cfg *config.Config) *SignalWSController {
	ctl := &SignalWSController{Orch: o, cfg: cfg}
	ctl.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return ctl
}

// WsSignalConn implements core.SignalConnection over a gorilla websocket.
// Only writePump writes data frames; TrySend just queues.
type WsSignalConn struct {
	id   core.ConnID
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{
		id:   core.ConnID(uuid.NewString()),
		conn: ws,
		send: make(chan core.Frame, buffer),
	}
}

func (c *WsSignalConn) ID() core.ConnID { return c.id }

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

// Close marks the connection closed and wakes writePump, which sends the
// close frame and releases the socket. No I/O happens under c.mu.
func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	client := c.GetString(ClientTokenKey)

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("client", client).Msg("ws upgrade")
		return
	}

	conn := newWsSignalConn(ws, ctl.cfg.SendBuffer)
	logger := log.With().
		Str("module", "signal").
		Str("conn", string(conn.ID())).
		Str("client", client).
		Logger()
	logger.Info().Str("remote", c.Request.RemoteAddr).Msg("new WS connection")

	ctl.Orch.Connect(conn)
	ctx, cancel := context.WithCancel(ctx)

	go ctl.writePump(ctx, conn, &logger)
	go ctl.readPump(cancel, conn, &logger)
}
