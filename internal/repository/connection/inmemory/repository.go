package inmemory

import (
	"sync"

	"github.com/sharetube/cowatch/internal/repository/connection"
)

type repo struct {
	connList map[*connection.Conn]string
	idList   map[string]*connection.Conn
	mu       sync.RWMutex
}

func NewRepo() *repo {
	return &repo{
		connList: make(map[*connection.Conn]string),
		idList:   make(map[string]*connection.Conn),
	}
}

func (r *repo) Add(conn *connection.Conn, connId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.connList[conn] != "" || r.idList[connId] != nil {
		return connection.ErrAlreadyExists
	}

	r.connList[conn] = connId
	r.idList[connId] = conn

	return nil
}

func (r *repo) RemoveById(connId string) (*connection.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.idList[connId]
	if !ok {
		return nil, connection.ErrNotFound
	}

	delete(r.connList, conn)
	delete(r.idList, connId)

	return conn, nil
}

func (r *repo) GetConn(connId string) (*connection.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.idList[connId]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return conn, nil
}

func (r *repo) GetId(conn *connection.Conn) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connId, ok := r.connList[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	return connId, nil
}

func (r *repo) All() []*connection.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*connection.Conn, 0, len(r.idList))
	for _, conn := range r.idList {
		conns = append(conns, conn)
	}

	return conns
}

func (r *repo) Length() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.idList)
}
