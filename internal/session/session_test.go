package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLifecycleHappyPath(t *testing.T) {
	s := New("127.0.0.1:1234", 8, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, StateAccepted, s.State())
	require.NoError(t, s.Transition(ctx, EventDial))
	require.NoError(t, s.Transition(ctx, EventConfigure))
	require.NoError(t, s.Transition(ctx, EventBridge))
	assert.Equal(t, StateBridging, s.State())
	require.NoError(t, s.Transition(ctx, EventClose))
	assert.Equal(t, StateClosed, s.State())

	// closing twice is fine
	require.NoError(t, s.Transition(ctx, EventClose))
}

func TestLifecycleRejectsSkippingStates(t *testing.T) {
	s := New("", 8, zap.NewNop())
	assert.Error(t, s.Transition(context.Background(), EventBridge))
	assert.Equal(t, StateAccepted, s.State())
}

func TestCloseFromAnyOpenState(t *testing.T) {
	s := New("", 8, zap.NewNop())
	require.NoError(t, s.Transition(context.Background(), EventDial))
	require.NoError(t, s.Transition(context.Background(), EventClose))
	assert.Equal(t, StateClosed, s.State())
	assert.Error(t, s.Transition(context.Background(), EventDial))
}

func TestQueuesAndStreamSID(t *testing.T) {
	s := New("", 0, zap.NewNop())
	assert.Equal(t, 1, cap(s.Audio))
	assert.Equal(t, 1, cap(s.StreamIDs))
	assert.NotEmpty(t, s.ID)

	assert.Empty(t, s.StreamSID())
	s.SetStreamSID("SS123")
	assert.Equal(t, "SS123", s.StreamSID())
	assert.Equal(t, "SS123", s.Summary().StreamSID)
}

func TestCloseRunsCloserOnce(t *testing.T) {
	s := New("", 1, zap.NewNop())
	calls := 0
	s.OnClose(func() { calls++ })
	s.Close()
	s.Close()
	assert.Equal(t, 1, calls)
}

func TestOnCloseAfterCloseRunsImmediately(t *testing.T) {
	s := New("127.0.0.1:1234", 1, zap.NewNop())
	s.Close()

	calls := 0
	s.OnClose(func() { calls++ })
	assert.Equal(t, 1, calls)

	s.Close()
	assert.Equal(t, 1, calls)
}

func TestIDsAreUnique(t *testing.T) {
	a := New("", 1, zap.NewNop())
	b := New("", 1, zap.NewNop())
	assert.NotEqual(t, a.ID, b.ID)
}
