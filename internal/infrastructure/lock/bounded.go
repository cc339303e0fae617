package lock

import (
	"context"
	"time"

	"github.com/kirillkom/sales-assistant/internal/core/ports"
)

type boundedLocker struct {
	next    ports.ConversationLocker
	timeout time.Duration
}

// Bounded caps how long Acquire waits for a busy conversation. A
// non-positive timeout returns next unchanged.
func Bounded(next ports.ConversationLocker, timeout time.Duration) ports.ConversationLocker {
	if timeout <= 0 {
		return next
	}
	return boundedLocker{next: next, timeout: timeout}
}

func (b boundedLocker) Acquire(ctx context.Context, conversationID string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.Acquire(ctx, conversationID)
}
