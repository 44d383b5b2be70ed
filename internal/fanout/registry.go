// Package fanout keeps the set of live client connections and pushes
// finished renders to all of them.
package fanout

import (
	"context"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// Conn is one live client connection.
type Conn interface {
	Send(ctx context.Context, msg []byte) error
	Closed() bool
	Close() error
}

type entry struct {
	id   string
	conn Conn
}

// Registry is safe for concurrent Register, Unregister and enumeration.
// Entries are keyed by the id Register hands out.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register adds c under a fresh connection id and returns it. Every call
// creates a new entry, even for a connection that is already registered.
func (r *Registry) Register(c Conn) string {
	id := uuid.NewString()

	r.mu.Lock()
	r.conns[id] = c
	r.mu.Unlock()
	return id
}

// Unregister removes every entry holding c and reports whether any was
// present. Connections of a non-comparable type can only be removed by id.
func (r *Registry) Unregister(c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := false
	for id, held := range r.conns {
		if sameConn(held, c) {
			delete(r.conns, id)
			found = true
		}
	}
	return found
}

// Remove drops the entry registered under id.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[id]; !ok {
		return false
	}
	delete(r.conns, id)
	return true
}

func sameConn(a, b Conn) bool {
	ta := reflect.TypeOf(a)
	if ta == nil || ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

// ListOpen returns a snapshot of the connections that are not closed.
func (r *Registry) ListOpen() []Conn {
	entries := r.openEntries()
	out := make([]Conn, len(entries))
	for i, e := range entries {
		out[i] = e.conn
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) openEntries() []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entry, 0, len(r.conns))
	for id, c := range r.conns {
		if !c.Closed() {
			out = append(out, entry{id: id, conn: c})
		}
	}
	return out
}

// pruneClosed drops connections that report Closed and returns how many went.
func (r *Registry) pruneClosed() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, c := range r.conns {
		if c.Closed() {
			delete(r.conns, id)
			n++
		}
	}
	return n
}

// CloseAll closes and forgets every connection. Used on shutdown because
// hijacked connections outlive http.Server.Shutdown.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	conns := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[string]Conn)
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return len(conns)
}
