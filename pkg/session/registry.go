package session

import "sync"

// registry maps a subscribed topic name to its optional handler. An entry
// exists exactly when the topic is currently subscribed on this session;
// a nil handler means "entry exists, use default handling". It is read on
// the engine's notification goroutine and written from the application
// goroutine, so every access locks.
type registry struct {
	mu       sync.RWMutex
	handlers map[string]MessageHandler
}

func newRegistry() *registry {
	return &registry{handlers: make(map[string]MessageHandler)}
}

// set inserts or overwrites the entry for name. h may be nil.
func (r *registry) set(name string, h MessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

func (r *registry) remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, name)
}

// lookup returns the handler for an exact topic name match. found
// distinguishes "subscribed with nil handler" from "not subscribed".
func (r *registry) lookup(name string) (h MessageHandler, found bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, found = r.handlers[name]
	return h, found
}

// clear drops every entry. Called on the transitions into Connected
// (fresh session state) and into Disconnected.
func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.handlers)
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
