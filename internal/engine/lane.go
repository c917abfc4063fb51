package engine

import (
	"errors"
	"sync"
)

// ErrConversationBusy is returned when a conversation already has an
// in-flight request. Requests are rejected, not queued.
var ErrConversationBusy = errors.New("conversation busy")

// LaneLock serialises requests per conversation. Acquisition is
// non-blocking: a second request on a busy lane fails immediately.
type LaneLock struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

type lane struct {
	mu   sync.Mutex
	refs int
}

// NewLaneLock creates an empty lane lock.
func NewLaneLock() *LaneLock {
	return &LaneLock{lanes: make(map[string]*lane)}
}

// TryAcquire attempts to take the lane for key. Returns ErrConversationBusy
// if another request holds it. On success the caller must Release.
func (l *LaneLock) TryAcquire(key string) error {
	l.mu.Lock()
	ln, ok := l.lanes[key]
	if !ok {
		ln = &lane{}
		l.lanes[key] = ln
	}
	ln.refs++
	l.mu.Unlock()

	if ln.mu.TryLock() {
		return nil
	}

	l.release(key, ln)
	return ErrConversationBusy
}

// Release frees the lane taken by TryAcquire.
func (l *LaneLock) Release(key string) {
	l.mu.Lock()
	ln, ok := l.lanes[key]
	l.mu.Unlock()
	if !ok {
		return
	}

	ln.mu.Unlock()
	l.release(key, ln)
}

// release drops one reference and deletes the lane when unused.
func (l *LaneLock) release(key string, ln *lane) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln.refs--
	if ln.refs <= 0 {
		delete(l.lanes, key)
	}
}
