package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dkeye/videochat/internal/core"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn, logger *zerolog.Logger) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				logger.Debug().Msg("writePump channel closed")
				_ = c.conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(ctl.cfg.WriteWait),
				)
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteWait)); err != nil {
				logger.Error().Err(err).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Warn().Err(err).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.cfg.WriteWait)); err != nil {
				logger.Warn().Err(err).Msg("writePump ping error")
				return
			}
		}
	}
}

// readPump handles inbound frames in arrival order and runs the
// disconnect cleanup exactly once when the socket goes away.
func (ctl *SignalWSController) readPump(cancel context.CancelFunc, c *WsSignalConn, logger *zerolog.Logger) {
	defer func() {
		logger.Info().Msg("readPump closing")
		ctl.Orch.Disconnect(c)
		c.Close()
		cancel()
	}()

	c.conn.SetReadLimit(ctl.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Warn().Err(err).Msg("readPump read error")
			} else {
				logger.Debug().Err(err).Msg("readPump closed")
			}
			return
		}
		ctl.handleSignal(c, data, logger)
	}
}

func (ctl *SignalWSController) handleSignal(c *WsSignalConn, data []byte, logger *zerolog.Logger) {
	msg, err := core.ParseInbound(data)
	if err != nil {
		ctl.Orch.Stats.Dropped.Add(1)
		logger.Debug().Err(err).Msg("bad json")
		return
	}
	ctl.Orch.Dispatch(c, msg)
}
