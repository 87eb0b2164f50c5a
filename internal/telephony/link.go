package telephony

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/claytonlow/twilio-deepgram/internal/framebuffer"
	"github.com/claytonlow/twilio-deepgram/internal/metrics"
)

// Conn is the subset of *websocket.Conn the link relies on.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

type Options struct {
	FrameSize    int
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration
}

// Link owns the accepted Media Streams connection for one call.
//
// Receive is the only reader. Send* calls must come from a single goroutine;
// in the bridge that is the agent receiver duty.
type Link struct {
	conn   Conn
	logger *zap.Logger
	opts   Options
	buf    *framebuffer.Buffer

	streamSID string
	closeOnce sync.Once
}

func NewLink(conn Conn, logger *zap.Logger, opts Options) *Link {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &Link{
		conn:   conn,
		logger: logger,
		opts:   opts,
		buf:    framebuffer.New(opts.FrameSize),
	}
}

// Receive runs the telephony receiver duty. It publishes the stream id once on
// streamIDs and pushes every complete inbound audio frame onto frames, in
// arrival order. Undecodable messages are logged and skipped.
//
// A normal close or a stop event returns nil; ctx cancellation returns ctx.Err().
func (l *Link) Receive(ctx context.Context, frames chan<- []byte, streamIDs chan<- string) error {
	stopKeepalive := l.keepalive()
	defer stopKeepalive()
	defer l.buf.Reset()

	for {
		msgType, data, err := l.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.logger.Info("telephony leg closed by peer")
				return nil
			}
			return fmt.Errorf("read telephony message: %w", err)
		}
		l.extendReadDeadline()

		if msgType != websocket.TextMessage {
			metrics.DecodeErrorsTotal.WithLabelValues("telephony").Inc()
			l.logger.Warn("ignoring non-text telephony message", zap.Int("type", msgType))
			continue
		}

		ev, err := DecodeEvent(data)
		if err != nil {
			metrics.DecodeErrorsTotal.WithLabelValues("telephony").Inc()
			l.logger.Warn("dropping telephony message", zap.Error(err))
			continue
		}

		switch ev := ev.(type) {
		case Start:
			if l.streamSID != "" {
				l.logger.Warn("ignoring repeated start event",
					zap.String("streamSid", l.streamSID),
					zap.String("repeated", ev.StreamSID),
				)
				continue
			}
			l.streamSID = ev.StreamSID
			l.logger.Info("telephony stream started",
				zap.String("streamSid", ev.StreamSID),
				zap.String("callSid", ev.CallSID),
				zap.Strings("tracks", ev.Tracks),
				zap.String("encoding", ev.MediaFormat.Encoding),
			)
			select {
			case streamIDs <- ev.StreamSID:
			case <-ctx.Done():
				return ctx.Err()
			}

		case Media:
			if ev.Track != TrackInbound {
				continue
			}
			audio, err := ev.Audio()
			if err != nil {
				metrics.DecodeErrorsTotal.WithLabelValues("telephony").Inc()
				l.logger.Warn("dropping telephony media", zap.Error(err))
				continue
			}
			l.buf.Append(audio)
			for frame := range l.buf.Drain() {
				select {
				case frames <- frame:
				case <-ctx.Done():
					framebuffer.Release(frame)
					return ctx.Err()
				}
			}

		case Stop:
			l.logger.Info("telephony stream stopped", zap.String("callSid", ev.CallSID))
			return nil

		case Mark:
			l.logger.Debug("playback mark reached", zap.String("mark", ev.Name))

		case DTMF:
			l.logger.Debug("dtmf received", zap.String("digit", ev.Digit))

		case Connected:
			l.logger.Debug("telephony connected", zap.String("protocol", ev.Protocol))
		}
	}
}

// SendMedia plays raw mu-law audio to the caller.
func (l *Link) SendMedia(streamSID string, audio []byte) error {
	msg, err := EncodeMedia(streamSID, audio)
	if err != nil {
		return err
	}
	return l.write(msg)
}

// SendClear tells Twilio to drop any audio it has buffered for playback.
func (l *Link) SendClear(streamSID string) error {
	msg, err := EncodeClear(streamSID)
	if err != nil {
		return err
	}
	return l.write(msg)
}

// SendMark asks Twilio to echo name back once playback reaches this point.
func (l *Link) SendMark(streamSID, name string) error {
	msg, err := EncodeMark(streamSID, name)
	if err != nil {
		return err
	}
	return l.write(msg)
}

// Close sends a close frame, best effort, and closes the connection. Safe to call
// more than once and from any goroutine.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		_ = l.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = l.conn.Close()
	})
	return err
}

func (l *Link) write(msg []byte) error {
	if err := l.conn.SetWriteDeadline(time.Now().Add(l.opts.WriteTimeout)); err != nil {
		return fmt.Errorf("set telephony write deadline: %w", err)
	}
	if err := l.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("write telephony message: %w", err)
	}
	return nil
}

func (l *Link) readWindow() time.Duration {
	return l.opts.PingInterval + l.opts.PongTimeout
}

func (l *Link) extendReadDeadline() {
	if l.opts.PingInterval <= 0 {
		return
	}
	_ = l.conn.SetReadDeadline(time.Now().Add(l.readWindow()))
}

// keepalive pings the peer every PingInterval. A peer that answers neither
// with a pong nor with data inside the read window fails the next read.
func (l *Link) keepalive() func() {
	if l.opts.PingInterval <= 0 {
		return func() {}
	}
	l.extendReadDeadline()
	l.conn.SetPongHandler(func(string) error {
		return l.conn.SetReadDeadline(time.Now().Add(l.readWindow()))
	})

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(l.opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(l.opts.WriteTimeout)
				if err := l.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					if !errors.Is(err, websocket.ErrCloseSent) {
						l.logger.Debug("telephony ping failed", zap.Error(err))
					}
					return
				}
			}
		}
	}()
	return func() { close(done) }
}
