package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

// Lifecycle states.
const (
	StateAccepted   = "accepted"
	StateConnecting = "connecting"
	StateConfigured = "configured"
	StateBridging   = "bridging"
	StateClosed     = "closed"
)

// Lifecycle events.
const (
	EventDial      = "dial"
	EventConfigure = "configure"
	EventBridge    = "bridge"
	EventClose     = "close"
)

// Session holds the per-call state of one bridged telephony connection.
type Session struct {
	ID         string
	RemoteAddr string
	StartTime  time.Time

	// Audio carries full frames from the telephony receiver to the agent sender.
	Audio chan []byte
	// StreamIDs receives the stream id exactly once.
	StreamIDs chan string

	streamSID atomic.Value
	lifecycle *fsm.FSM
	logger    *zap.Logger

	mu        sync.Mutex
	closer    func()
	closed    bool
	closeOnce sync.Once
}

// New creates a session in the accepted state with an audio queue of audioFrames.
func New(remoteAddr string, audioFrames int, logger *zap.Logger) *Session {
	if audioFrames <= 0 {
		audioFrames = 1
	}
	s := &Session{
		ID:         uuid.NewString(),
		RemoteAddr: remoteAddr,
		StartTime:  time.Now(),
		Audio:      make(chan []byte, audioFrames),
		StreamIDs:  make(chan string, 1),
	}
	s.logger = logger.With(zap.String("sessionId", s.ID))
	s.lifecycle = fsm.NewFSM(
		StateAccepted,
		fsm.Events{
			{Name: EventDial, Src: []string{StateAccepted}, Dst: StateConnecting},
			{Name: EventConfigure, Src: []string{StateConnecting}, Dst: StateConfigured},
			{Name: EventBridge, Src: []string{StateConfigured}, Dst: StateBridging},
			{Name: EventClose, Src: []string{StateAccepted, StateConnecting, StateConfigured, StateBridging}, Dst: StateClosed},
		},
		fsm.Callbacks{
			"after_event": func(_ context.Context, e *fsm.Event) {
				s.logger.Debug("session state changed", zap.String("from", e.Src), zap.String("to", e.Dst))
			},
		},
	)
	return s
}

func (s *Session) Logger() *zap.Logger {
	return s.logger
}

// Transition fires a lifecycle event. Closing an already closed session is a no-op.
func (s *Session) Transition(ctx context.Context, event string) error {
	if event == EventClose && s.lifecycle.Current() == StateClosed {
		return nil
	}
	err := s.lifecycle.Event(ctx, event)
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return err
}

func (s *Session) State() string {
	return s.lifecycle.Current()
}

// SetStreamSID records the stream id for reporting.
func (s *Session) SetStreamSID(id string) {
	s.streamSID.Store(id)
}

func (s *Session) StreamSID() string {
	id, _ := s.streamSID.Load().(string)
	return id
}

// OnClose registers the function that tears the call down. If the session
// was already closed, fn runs immediately.
func (s *Session) OnClose(fn func()) {
	s.mu.Lock()
	s.closer = fn
	closed := s.closed
	s.mu.Unlock()
	if closed && fn != nil {
		fn()
	}
}

// Close hangs up the call. Only the first call has an effect.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		fn := s.closer
		s.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
}

// Summary is the externally visible view of a session.
type Summary struct {
	ID         string    `json:"id"`
	StreamSID  string    `json:"streamSid,omitempty"`
	State      string    `json:"state"`
	RemoteAddr string    `json:"remoteAddr,omitempty"`
	StartTime  time.Time `json:"startTime"`
	Age        string    `json:"age"`
}

func (s *Session) Summary() Summary {
	return Summary{
		ID:         s.ID,
		StreamSID:  s.StreamSID(),
		State:      s.State(),
		RemoteAddr: s.RemoteAddr,
		StartTime:  s.StartTime,
		Age:        time.Since(s.StartTime).Round(time.Second).String(),
	}
}
