package gate

import (
	"context"
	"sync"
	"time"
)

// Window is the trailing period over which community replies are capped.
const Window = 24 * time.Hour

// Ledger stores the reply history the gate needs: send timestamps per
// community and the last send per channel.
type Ledger interface {
	// SendsInWindow prunes sends at or before now minus Window and returns
	// how many remain for the community.
	SendsInWindow(ctx context.Context, communityID string, now time.Time) (int, error)
	// LastSend returns when the persona last replied in the channel.
	LastSend(ctx context.Context, channelID string) (time.Time, bool, error)
	// Record appends a send for the community and marks the channel.
	Record(ctx context.Context, communityID, channelID string, at time.Time) error
}

// MemoryLedger keeps the reply history in process memory. State is lost on
// restart. Each community and channel has its own lock.
type MemoryLedger struct {
	mu        sync.Mutex
	windows   map[string]*sendWindow
	cooldowns map[string]*channelMark
}

type sendWindow struct {
	mu    sync.Mutex
	sends []time.Time
}

type channelMark struct {
	mu   sync.Mutex
	last time.Time
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		windows:   make(map[string]*sendWindow),
		cooldowns: make(map[string]*channelMark),
	}
}

func (l *MemoryLedger) window(communityID string) *sendWindow {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[communityID]
	if !ok {
		w = &sendWindow{}
		l.windows[communityID] = w
	}

	return w
}

func (l *MemoryLedger) mark(channelID string) *channelMark {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.cooldowns[channelID]
	if !ok {
		m = &channelMark{}
		l.cooldowns[channelID] = m
	}

	return m
}

// SendsInWindow implements Ledger.
func (l *MemoryLedger) SendsInWindow(_ context.Context, communityID string, now time.Time) (int, error) {
	w := l.window(communityID)

	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-Window)
	kept := w.sends[:0]
	for _, t := range w.sends {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.sends = kept

	return len(w.sends), nil
}

// LastSend implements Ledger.
func (l *MemoryLedger) LastSend(_ context.Context, channelID string) (time.Time, bool, error) {
	m := l.mark(channelID)

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.last, !m.last.IsZero(), nil
}

// Record implements Ledger.
func (l *MemoryLedger) Record(_ context.Context, communityID, channelID string, at time.Time) error {
	w := l.window(communityID)
	w.mu.Lock()
	w.sends = append(w.sends, at)
	w.mu.Unlock()

	m := l.mark(channelID)
	m.mu.Lock()
	if at.After(m.last) {
		m.last = at
	}
	m.mu.Unlock()

	return nil
}
