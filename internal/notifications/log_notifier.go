package notifications

import (
	"context"
	"sync"

	"github.com/brickfolio/investment-service/internal/utils"
)

// LogNotifier is the deterministic fake: it logs each event and keeps the
// delivered events for assertions.
type LogNotifier struct {
	mu     sync.Mutex
	events []Event
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(ctx context.Context, ev Event) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
	utils.Logger.Infof("notify user=%s event=%s amount_cents=%d", ev.UserID, ev.Type, ev.AmountCents)
}

// Events returns a copy of everything delivered so far.
func (n *LogNotifier) Events() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Event(nil), n.events...)
}
