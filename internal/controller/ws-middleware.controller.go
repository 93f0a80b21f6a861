package controller

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/cowatch/internal/service/room"
	"github.com/sharetube/cowatch/pkg/ctxlogger"
	"github.com/sharetube/cowatch/pkg/metrics"
	"github.com/sharetube/cowatch/pkg/wsrouter"
)

func (c controller) wsRequestIdWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("ws_request_id", c.generateTimeBasedId()))
			return next(ctx, conn, payload)
		}
	}
}

func (c controller) loggerWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("message_type", wsrouter.GetMessageTypeFromCtx(ctx)))
			c.logger.InfoContext(ctx, "websocket message received", "payload", payload)

			start := time.Now()

			err := next(ctx, conn, payload)

			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)
			c.logger.InfoContext(ctx, "websocket message handled",
				"processing_time_us", time.Since(start).Microseconds(),
				"alloc", memStats.Alloc/1024,
				"total_alloc", memStats.TotalAlloc/1024,
				"sys", memStats.Sys/1024,
				"goroutines", runtime.NumGoroutine(),
			)
			if err != nil {
				c.logger.InfoContext(ctx, "websocket message failed", "error", err)
			}

			return err
		}
	}
}

type ackOutput struct {
	RequestId string `json:"request_id"`
	Ok        bool   `json:"ok"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// publicErrors are reported to the client by their own text, without the
// wrapping context added on the way up.
var publicErrors = []error{
	room.ErrNotInRoom,
	room.ErrRoomNotFound,
	room.ErrNotController,
	room.ErrNoMedia,
	room.ErrMissingSource,
	room.ErrEmptyText,
	room.ErrInvalidToken,
	wsrouter.ErrUnknownType,
	wsrouter.ErrInvalidMessage,
	wsrouter.ErrInvalidPayload,
}

func ackMessage(err error) string {
	for _, publicErr := range publicErrors {
		if errors.Is(err, publicErr) {
			return publicErr.Error()
		}
	}

	return err.Error()
}

// ackWSMw answers every request on the sender's connection once the handler
// has finished, so acks follow any events the handler wrote to the sender.
func (c controller) ackWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			a := &ack{}
			ctx = context.WithValue(ctx, ackCtxKey, a)

			err := next(ctx, conn, payload)

			output := ackOutput{
				RequestId: wsrouter.GetRequestIdFromCtx(ctx),
				Ok:        err == nil,
				Data:      a.data,
			}
			if err != nil {
				output.Message = ackMessage(err)
				output.Data = nil
			}

			messageType := wsrouter.GetMessageTypeFromCtx(ctx)
			if errors.Is(err, wsrouter.ErrUnknownType) {
				messageType = "unknown"
			}
			metrics.WSMessages.WithLabelValues(messageType, strconv.FormatBool(output.Ok)).Inc()

			if writeErr := c.writeToConn(ctx, c.getConnFromCtx(ctx), &Output{
				Type:    "ACK",
				Payload: output,
			}); writeErr != nil {
				c.logger.InfoContext(ctx, "failed to write ack", "error", writeErr)
			}

			return err
		}
	}
}
