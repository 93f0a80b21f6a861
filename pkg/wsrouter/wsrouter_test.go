package wsrouter

import (
	"context"
	"errors"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type joinPayload struct {
	RoomId   string `json:"room_id"`
	Nickname string `json:"nickname"`
}

func TestDispatchTyped(t *testing.T) {
	r := New()

	var got joinPayload
	var gotType, gotRequestId string
	Handle(r, "JOIN", func(ctx context.Context, _ *websocket.Conn, payload joinPayload) error {
		got = payload
		gotType = GetMessageTypeFromCtx(ctx)
		gotRequestId = GetRequestIdFromCtx(ctx)
		return nil
	})

	err := r.Dispatch(context.Background(), nil, []byte(`{"type":"JOIN","request_id":"r1","payload":{"room_id":"movie","nickname":"ann"}}`))
	require.NoError(t, err)
	assert.Equal(t, joinPayload{RoomId: "movie", Nickname: "ann"}, got)
	assert.Equal(t, "JOIN", gotType)
	assert.Equal(t, "r1", gotRequestId)
}

func TestDispatchMissingPayload(t *testing.T) {
	r := New()
	called := false
	Handle(r, "LEAVE", func(_ context.Context, _ *websocket.Conn, _ struct{}) error {
		called = true
		return nil
	})

	require.NoError(t, r.Dispatch(context.Background(), nil, []byte(`{"type":"LEAVE"}`)))
	assert.True(t, called)
}

func TestDispatchErrorsPassThroughMiddleware(t *testing.T) {
	r := New()
	var seen []error
	r.Use(func(next HandlerFunc[any]) HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			err := next(ctx, conn, payload)
			seen = append(seen, err)
			return err
		}
	})
	Handle(r, "JOIN", func(context.Context, *websocket.Conn, joinPayload) error { return nil })

	err := r.Dispatch(context.Background(), nil, []byte(`{"type":"NOPE"}`))
	assert.ErrorIs(t, err, ErrUnknownType)

	err = r.Dispatch(context.Background(), nil, []byte(`{"type":"JOIN","payload":{"room_id":1}}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	err = r.Dispatch(context.Background(), nil, []byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	require.Len(t, seen, 3)
}

func TestMiddlewareOrder(t *testing.T) {
	r := New()
	var order []string
	mw := func(name string) Middleware {
		return func(next HandlerFunc[any]) HandlerFunc[any] {
			return func(ctx context.Context, conn *websocket.Conn, payload any) error {
				order = append(order, name)
				return next(ctx, conn, payload)
			}
		}
	}
	r.Use(mw("first"), mw("second"))

	sentinel := errors.New("boom")
	Handle(r, "X", func(context.Context, *websocket.Conn, struct{}) error {
		order = append(order, "handler")
		return sentinel
	})

	err := r.Dispatch(context.Background(), nil, []byte(`{"type":"X"}`))
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, []string{"first", "second", "handler"}, order)
}
