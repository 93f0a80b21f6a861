package inmemory

import (
	"testing"

	"github.com/gorilla/websocket"
	"github.com/sharetube/cowatch/internal/repository/connection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepo(t *testing.T) {
	r := NewRepo()
	c1 := connection.New(&websocket.Conn{})
	c2 := connection.New(&websocket.Conn{})

	require.NoError(t, r.Add(c1, "a"))
	require.NoError(t, r.Add(c2, "b"))
	assert.ErrorIs(t, r.Add(c1, "c"), connection.ErrAlreadyExists)
	assert.ErrorIs(t, r.Add(connection.New(&websocket.Conn{}), "a"), connection.ErrAlreadyExists)
	assert.Equal(t, 2, r.Length())
	assert.ElementsMatch(t, []*connection.Conn{c1, c2}, r.All())

	got, err := r.GetConn("b")
	require.NoError(t, err)
	assert.Same(t, c2, got)

	id, err := r.GetId(c1)
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	removed, err := r.RemoveById("a")
	require.NoError(t, err)
	assert.Same(t, c1, removed)

	_, err = r.GetConn("a")
	assert.ErrorIs(t, err, connection.ErrNotFound)
	_, err = r.GetId(c1)
	assert.ErrorIs(t, err, connection.ErrNotFound)
	_, err = r.RemoveById("a")
	assert.ErrorIs(t, err, connection.ErrNotFound)
}

func TestConnWriteOnDetachedSocket(t *testing.T) {
	c := connection.New(&websocket.Conn{})
	assert.Error(t, c.WriteJSON(map[string]string{"type": "X"}))
	assert.NoError(t, c.Close())
}
