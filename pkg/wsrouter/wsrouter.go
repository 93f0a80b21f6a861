package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

var (
	ErrUnknownType    = errors.New("unknown message type")
	ErrInvalidMessage = errors.New("invalid message")
	ErrInvalidPayload = errors.New("invalid payload")
)

type message struct {
	Type      string          `json:"type"`
	RequestId string          `json:"request_id"`
	Payload   json.RawMessage `json:"payload"`
}

type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, payload T) error

type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

type route struct {
	decode  func(json.RawMessage) (any, error)
	handler HandlerFunc[any]
}

type WSRouter struct {
	routes      map[string]route
	middlewares []Middleware
}

func New() *WSRouter {
	return &WSRouter{routes: make(map[string]route)}
}

func (r *WSRouter) Use(mws ...Middleware) {
	r.middlewares = append(r.middlewares, mws...)
}

// Handle registers a typed handler. The payload is decoded into T before the
// middleware chain runs; a missing or null payload leaves T at its zero value.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	r.routes[messageType] = route{
		decode: func(raw json.RawMessage) (any, error) {
			var payload T
			if len(raw) == 0 || string(raw) == "null" {
				return payload, nil
			}

			if err := json.Unmarshal(raw, &payload); err != nil {
				return nil, err
			}

			return payload, nil
		},
		handler: func(ctx context.Context, conn *websocket.Conn, payload any) error {
			return handler(ctx, conn, payload.(T))
		},
	}
}

func (r *WSRouter) chain(h HandlerFunc[any]) HandlerFunc[any] {
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		h = r.middlewares[i](h)
	}

	return h
}

func failWith(err error) HandlerFunc[any] {
	return func(context.Context, *websocket.Conn, any) error {
		return err
	}
}

// Dispatch routes a single raw message. It is exported so transports other
// than ServeConn (and tests) can drive the router.
func (r *WSRouter) Dispatch(ctx context.Context, conn *websocket.Conn, data []byte) error {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return r.chain(failWith(fmt.Errorf("%w: %w", ErrInvalidMessage, err)))(ctx, conn, nil)
	}

	ctx = context.WithValue(ctx, messageTypeKey, msg.Type)
	ctx = context.WithValue(ctx, requestIdKey, msg.RequestId)

	rt, exists := r.routes[msg.Type]
	if !exists {
		return r.chain(failWith(fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)))(ctx, conn, nil)
	}

	payload, err := rt.decode(msg.Payload)
	if err != nil {
		return r.chain(failWith(fmt.Errorf("%w: %w", ErrInvalidPayload, err)))(ctx, conn, nil)
	}

	return r.chain(rt.handler)(ctx, conn, payload)
}

// ServeConn reads messages until the connection fails. Handler errors do not
// stop the loop; middlewares are expected to report them.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		_ = r.Dispatch(ctx, conn, data)
	}
}
