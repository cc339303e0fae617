package lock

import (
	"context"
	"sync"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/ports"
)

// MemoryLocker serializes turns of one conversation inside a single process.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch      chan struct{}
	waiters int
}

var _ ports.ConversationLocker = (*MemoryLocker)(nil)

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]*slot)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, conversationID string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[conversationID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[conversationID] = s
	}
	s.waiters++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.leave(conversationID, s)
		return nil, domain.WrapError(domain.ErrTemporary, "acquire conversation lock", ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.leave(conversationID, s)
		})
	}, nil
}

// leave drops the slot once nobody holds or waits for it.
func (l *MemoryLocker) leave(conversationID string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.waiters--
	if s.waiters == 0 {
		delete(l.slots, conversationID)
	}
}

func (l *MemoryLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
