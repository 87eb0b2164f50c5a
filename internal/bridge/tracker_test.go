package bridge_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/claytonlow/twilio-deepgram/internal/bridge"
	"github.com/claytonlow/twilio-deepgram/internal/session"
)

func TestTryAddHoldsLimitUnderConcurrency(t *testing.T) {
	tr := bridge.NewTracker(zap.NewNop())

	const limit = 3
	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.TryAdd(session.New("", 1, zap.NewNop()), limit) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, limit, admitted.Load())
	assert.Equal(t, limit, tr.Count())
}

func TestTryAddFreesSlotOnRemove(t *testing.T) {
	tr := bridge.NewTracker(zap.NewNop())
	a := session.New("", 1, zap.NewNop())
	b := session.New("", 1, zap.NewNop())

	assert.True(t, tr.TryAdd(a, 1))
	assert.False(t, tr.TryAdd(b, 1))
	// Re-adding a tracked session does not count twice.
	assert.True(t, tr.TryAdd(a, 1))
	tr.Add(a)
	assert.Equal(t, 1, tr.Count())

	tr.Remove(a.ID)
	assert.True(t, tr.TryAdd(b, 1))
	assert.Equal(t, 1, tr.Count())
}

func TestTrackerCloseBeforeCloserIsRegistered(t *testing.T) {
	tr := bridge.NewTracker(zap.NewNop())
	sess := session.New("", 1, zap.NewNop())
	assert.True(t, tr.TryAdd(sess, 0))

	tr.CloseAll()

	closed := false
	sess.OnClose(func() { closed = true })
	assert.True(t, closed)
}
