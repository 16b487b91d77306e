package signal

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/jsonrpcd/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("transport", string(c.tid)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("transport", string(c.tid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("transport", string(c.tid)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("transport", string(c.tid)).Msg("writePump ping failed")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("transport", string(c.tid)).Msg("readPump closing")
		cancel()
		ctl.forget(c.tid)
		c.Close()
		ctl.manager.ScheduleCloseIfTimeout(c.tid, ReasonTransportClosed)
	}()

	if ctl.readLimit > 0 {
		c.conn.SetReadLimit(ctl.readLimit)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ctl.manager.ProcessTransportError(c.tid, err)
			}
			log.Debug().Err(err).Str("module", "signal").Str("transport", string(c.tid)).Msg("readPump read error")
			return
		}
		// Any inbound frame proves the peer alive.
		_ = c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait))
		ctl.handleMessage(ctx, c, data)
	}
}

func (ctl *Controller) handleMessage(ctx context.Context, c *wsConn, data []byte) {
	_, span := ctl.tracer.Start(ctx, "jsonrpc.message",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("jsonrpc.transport", "websocket"),
			attribute.String("jsonrpc.transport_id", string(c.tid)),
			attribute.Int("jsonrpc.size", len(data)),
		),
	)
	defer span.End()

	err := ctl.manager.ProcessMessage(data, c, c, c.tid)
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if errors.Is(err, domain.ErrDecode) {
		parseErr := domain.NewParseErrorResponse()
		if sendErr := c.SendResponse(parseErr); sendErr != nil {
			log.Warn().Err(sendErr).Str("module", "signal").Str("transport", string(c.tid)).Msg("parse error reply dropped")
		}
		return
	}
	log.Warn().Err(err).Str("module", "signal").Str("transport", string(c.tid)).Msg("message processing failed")
}
