package bridge

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/claytonlow/twilio-deepgram/internal/metrics"
	"github.com/claytonlow/twilio-deepgram/internal/session"
)

// Tracker indexes live sessions for the internal API, admission and shutdown.
// It never touches the audio path.
type Tracker struct {
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*session.Session
}

func NewTracker(logger *zap.Logger) *Tracker {
	return &Tracker{logger: logger, sessions: make(map[string]*session.Session)}
}

// Add registers a session. Adding an already tracked session is a no-op.
func (t *Tracker) Add(sess *session.Session) {
	t.TryAdd(sess, 0)
}

// TryAdd registers a session unless limit sessions are already active.
// A limit of zero or less means no limit.
func (t *Tracker) TryAdd(sess *session.Session, limit int) bool {
	t.mu.Lock()
	if _, ok := t.sessions[sess.ID]; ok {
		t.mu.Unlock()
		return true
	}
	if limit > 0 && len(t.sessions) >= limit {
		t.mu.Unlock()
		return false
	}
	t.sessions[sess.ID] = sess
	t.mu.Unlock()
	metrics.ActiveSessions.Inc()
	return true
}

func (t *Tracker) Remove(id string) {
	t.mu.Lock()
	_, ok := t.sessions[id]
	delete(t.sessions, id)
	t.mu.Unlock()
	if ok {
		metrics.ActiveSessions.Dec()
		t.logger.Info("session removed", zap.String("sessionId", id))
	}
}

// Count returns the current number of active sessions.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// List returns a summary of every active session, oldest first.
func (t *Tracker) List() []session.Summary {
	t.mu.RLock()
	out := make([]session.Summary, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s.Summary())
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// Close hangs up one session. It reports false when no such session is active.
func (t *Tracker) Close(id string) bool {
	t.mu.RLock()
	sess, ok := t.sessions[id]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	sess.Close()
	return true
}

// CloseAll hangs up every active session.
func (t *Tracker) CloseAll() {
	t.mu.RLock()
	all := make([]*session.Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		all = append(all, s)
	}
	t.mu.RUnlock()

	for _, s := range all {
		s.Close()
	}
	t.logger.Info("closed all sessions", zap.Int("count", len(all)))
}
