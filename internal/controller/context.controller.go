package controller

import (
	"context"

	"github.com/sharetube/cowatch/internal/repository/connection"
)

type contextKey int

const (
	connIdCtxKey contextKey = iota
	connCtxKey
	ackCtxKey
)

func (c controller) getConnIdFromCtx(ctx context.Context) string {
	connId, ok := ctx.Value(connIdCtxKey).(string)
	if !ok {
		return ""
	}

	return connId
}

func (c controller) getConnFromCtx(ctx context.Context) *connection.Conn {
	conn, ok := ctx.Value(connCtxKey).(*connection.Conn)
	if !ok {
		return nil
	}

	return conn
}

// ack collects the data a handler wants returned in its ACK.
type ack struct {
	data any
}

func (c controller) setAckData(ctx context.Context, data any) {
	if a, ok := ctx.Value(ackCtxKey).(*ack); ok {
		a.data = data
	}
}
