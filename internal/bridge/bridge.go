package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/claytonlow/twilio-deepgram/internal/agent"
	"github.com/claytonlow/twilio-deepgram/internal/config"
	"github.com/claytonlow/twilio-deepgram/internal/dispatch"
	"github.com/claytonlow/twilio-deepgram/internal/framebuffer"
	"github.com/claytonlow/twilio-deepgram/internal/metrics"
	"github.com/claytonlow/twilio-deepgram/internal/session"
	"github.com/claytonlow/twilio-deepgram/internal/telephony"
)

// Duty names, also used as the reason a session ended.
const (
	DutyAgentSender       = "agent_sender"
	DutyAgentReceiver     = "agent_receiver"
	DutyTelephonyReceiver = "telephony_receiver"
)

// PlaybackMark is sent to the caller leg after each agent reply. Twilio echoes
// it back once that reply has finished playing.
const PlaybackMark = "agent_audio_done"

// ErrDutyFinished marks a duty that returned without error. It still ends the session.
var ErrDutyFinished = errors.New("duty finished")

// DutyError is the terminal result of the duty that ended a session.
type DutyError struct {
	Duty string
	Err  error
}

func (e *DutyError) Error() string {
	return e.Duty + ": " + e.Err.Error()
}

func (e *DutyError) Unwrap() error {
	return e.Err
}

func finished(duty string, err error) error {
	if err == nil {
		err = ErrDutyFinished
	}
	return &DutyError{Duty: duty, Err: err}
}

// Bridge accepts telephony connections and bridges each to its own agent connection.
type Bridge struct {
	cfg        *config.Config
	logger     *zap.Logger
	dispatcher *dispatch.Dispatcher
	settings   agent.SettingsConfiguration
	upgrader   websocket.Upgrader
	tracker    *Tracker
}

func New(cfg *config.Config, logger *zap.Logger, dispatcher *dispatch.Dispatcher) *Bridge {
	functions := make([]agent.FunctionDefinition, 0, len(dispatcher.Names()))
	for _, name := range dispatcher.Names() {
		functions = append(functions, agent.LookupFunction(name))
	}
	return &Bridge{
		cfg:        cfg,
		logger:     logger,
		dispatcher: dispatcher,
		settings: agent.NewSettings(agent.Model{
			Listen:        cfg.AgentListenModel,
			ThinkProvider: cfg.AgentThinkProvider,
			Think:         cfg.AgentThinkModel,
			Speak:         cfg.AgentSpeakModel,
			Instructions:  cfg.AgentInstructions,
		}, functions...),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Media Streams connections come from Twilio, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		tracker: NewTracker(logger),
	}
}

func (b *Bridge) Tracker() *Tracker {
	return b.tracker
}

// Shutdown hangs up every active session.
func (b *Bridge) Shutdown() {
	b.tracker.CloseAll()
	b.logger.Info("bridge shutdown complete")
}

// ServeTelephony upgrades a Media Streams request and bridges it until either leg ends.
func (b *Bridge) ServeTelephony(w http.ResponseWriter, r *http.Request) {
	sess := session.New(r.RemoteAddr, b.cfg.AudioQueueFrames, b.logger)
	if limit := b.cfg.MaxSessions; !b.tracker.TryAdd(sess, limit) {
		b.logger.Warn("session cap reached", zap.Int("max", limit))
		metrics.SessionsRejectedTotal.Inc()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "max sessions reached"})
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		b.tracker.Remove(sess.ID)
		b.logger.Warn("telephony upgrade failed", zap.Error(err))
		return
	}

	tel := telephony.NewLink(conn, sess.Logger(), telephony.Options{
		FrameSize:    framebuffer.FrameSize,
		PingInterval: b.cfg.PingInterval,
		PongTimeout:  b.cfg.PongTimeout,
		WriteTimeout: b.cfg.WriteTimeout,
	})

	err = b.Run(context.WithoutCancel(r.Context()), sess, tel)
	switch {
	case errors.Is(err, ErrDutyFinished), errors.Is(err, context.Canceled):
		sess.Logger().Info("session ended", zap.Error(err))
	default:
		sess.Logger().Warn("session failed", zap.Error(err))
	}
}

// Run bridges one accepted telephony link. It connects the agent, sends the
// settings and greeting, then races the three duties. The first duty to return,
// successfully or not, ends the session; both connections are closed before
// Run returns. The returned error is a *DutyError unless setup failed.
func (b *Bridge) Run(ctx context.Context, sess *session.Session, tel *telephony.Link) error {
	logger := sess.Logger()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sess.OnClose(cancel)

	metrics.SessionsCreatedTotal.Inc()
	// ServeTelephony reserves the slot before upgrading; direct callers have not.
	b.tracker.Add(sess)
	defer func() {
		b.tracker.Remove(sess.ID)
		_ = sess.Transition(context.Background(), session.EventClose)
		metrics.SessionDuration.Observe(time.Since(sess.StartTime).Seconds())
	}()
	defer tel.Close()

	logger.Info("telephony connection accepted", zap.String("remote", sess.RemoteAddr))

	if err := sess.Transition(ctx, session.EventDial); err != nil {
		return err
	}
	ag, err := agent.Dial(ctx, agent.Options{
		URL:              b.cfg.AgentURL,
		Token:            b.cfg.AgentToken,
		HandshakeTimeout: b.cfg.AgentHandshakeTimeout,
		WriteTimeout:     b.cfg.WriteTimeout,
	}, logger)
	if err != nil {
		metrics.AgentHandshakeFailuresTotal.Inc()
		metrics.SessionsEndedTotal.WithLabelValues("agent_handshake").Inc()
		return fmt.Errorf("connect agent: %w", err)
	}
	defer ag.Close()

	if err := sess.Transition(ctx, session.EventConfigure); err != nil {
		return err
	}
	if err := ag.Configure(b.settings, b.cfg.AgentGreeting); err != nil {
		metrics.SessionsEndedTotal.WithLabelValues("agent_configure").Inc()
		return fmt.Errorf("configure agent: %w", err)
	}
	if err := sess.Transition(ctx, session.EventBridge); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() {
		ag.Close()
		tel.Close()
	})
	defer stop()

	g.Go(func() error {
		return finished(DutyAgentSender, ag.Send(gctx, sess.Audio))
	})
	g.Go(func() error {
		return finished(DutyAgentReceiver, b.receiveAgent(gctx, sess, ag, tel))
	})
	g.Go(func() error {
		return finished(DutyTelephonyReceiver, tel.Receive(gctx, sess.Audio, sess.StreamIDs))
	})

	err = g.Wait()
	drain(sess.Audio)

	var duty *DutyError
	if errors.As(err, &duty) {
		metrics.SessionsEndedTotal.WithLabelValues(duty.Duty).Inc()
	}
	return err
}

// receiveAgent is the agent receiver duty. Nothing is read from the agent
// until the telephony stream id is known, so every media event carries it.
func (b *Bridge) receiveAgent(ctx context.Context, sess *session.Session, ag *agent.Link, tel *telephony.Link) error {
	logger := sess.Logger()

	var streamSID string
	select {
	case <-ctx.Done():
		return ctx.Err()
	case streamSID = <-sess.StreamIDs:
	}
	sess.SetStreamSID(streamSID)
	logger = logger.With(zap.String("streamSid", streamSID))

	for {
		in, err := ag.Next()
		if err != nil {
			if agent.IsDecodeError(err) {
				metrics.DecodeErrorsTotal.WithLabelValues("agent").Inc()
				logger.Warn("dropping agent message", zap.Error(err))
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if agent.IsNormalClose(err) {
				logger.Info("agent closed the connection")
				return nil
			}
			return fmt.Errorf("read agent message: %w", err)
		}

		if in.Event == nil {
			if err := tel.SendMedia(streamSID, in.Audio); err != nil {
				return err
			}
			metrics.MediaEventsSentTotal.Inc()
			continue
		}
		if err := b.handleControl(ctx, logger, ag, tel, streamSID, in.Event); err != nil {
			return err
		}
	}
}

func (b *Bridge) handleControl(ctx context.Context, logger *zap.Logger, ag *agent.Link, tel *telephony.Link, streamSID string, ev agent.Event) error {
	switch ev := ev.(type) {
	case agent.UserStartedSpeaking:
		if err := tel.SendClear(streamSID); err != nil {
			return err
		}
		metrics.ClearEventsSentTotal.Inc()
		logger.Debug("caller barge-in, playback cleared")

	case agent.FunctionCallRequest:
		logger.Info("function call requested",
			zap.String("name", ev.FunctionName),
			zap.String("callId", ev.FunctionCallID),
			zap.String("question", ev.Input.Question),
		)
		text, err := b.dispatcher.Dispatch(ctx, dispatch.Call{
			Name:     ev.FunctionName,
			ID:       ev.FunctionCallID,
			Question: ev.Input.Question,
		})
		if err != nil {
			return fmt.Errorf("function call %s: %w", ev.FunctionName, err)
		}
		if err := ag.Inject(text); err != nil {
			return fmt.Errorf("inject function result: %w", err)
		}

	case agent.AgentAudioDone:
		if err := tel.SendMark(streamSID, PlaybackMark); err != nil {
			return err
		}

	case agent.Error:
		logger.Warn("agent reported an error", zap.String("message", ev.Message))

	case agent.Welcome:
		logger.Info("agent welcome", zap.String("agentSessionId", ev.SessionID))

	case agent.SettingsApplied:
		logger.Info("agent settings applied")

	case agent.ConversationText:
		logger.Info("conversation", zap.String("role", ev.Role), zap.String("content", ev.Content))

	default:
		logger.Debug("agent event", zap.String("type", ev.EventType()))
	}
	return nil
}

// drain returns queued frames to the pool once no duty is running.
func drain(frames chan []byte) {
	for {
		select {
		case f := <-frames:
			framebuffer.Release(f)
		default:
			return
		}
	}
}
