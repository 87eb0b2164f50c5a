package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
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
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Options struct {
	URL              string
	Token            string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// Link is one connection to the agent service.
//
// Writes are serialized internally, so the sender duty and the receiver duty
// may both write. Next must only be called from one goroutine.
type Link struct {
	conn         Conn
	logger       *zap.Logger
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial connects to the agent service, authenticating with the token subprotocol.
func Dial(ctx context.Context, opts Options, logger *zap.Logger) (*Link, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
		Subprotocols:     []string{"token", opts.Token},
	}
	conn, resp, err := dialer.DialContext(ctx, opts.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial agent: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial agent: %w", err)
	}
	logger.Info("agent connected", zap.String("url", opts.URL), zap.String("subprotocol", conn.Subprotocol()))
	return NewLink(conn, logger, opts.WriteTimeout), nil
}

func NewLink(conn Conn, logger *zap.Logger, writeTimeout time.Duration) *Link {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Link{conn: conn, logger: logger, writeTimeout: writeTimeout}
}

// Configure sends the settings followed by the greeting the agent opens the call with.
func (l *Link) Configure(settings SettingsConfiguration, greeting string) error {
	if err := l.writeJSON(settings); err != nil {
		return fmt.Errorf("send settings: %w", err)
	}
	if err := l.Inject(greeting); err != nil {
		return fmt.Errorf("send greeting: %w", err)
	}
	return nil
}

// Inject asks the agent to speak message.
func (l *Link) Inject(message string) error {
	return l.writeJSON(NewInject(message))
}

// SendAudio writes one audio frame as a binary message.
func (l *Link) SendAudio(frame []byte) error {
	return l.write(websocket.BinaryMessage, frame)
}

// Send runs the sender duty: every frame read from frames is written to the
// agent in order and returned to the frame pool. It returns when ctx is done,
// frames is closed or a write fails.
func (l *Link) Send(ctx context.Context, frames <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			err := l.SendAudio(frame)
			framebuffer.Release(frame)
			if err != nil {
				return fmt.Errorf("send audio frame: %w", err)
			}
			metrics.FramesForwardedTotal.Inc()
		}
	}
}

// Inbound is one message from the agent: Audio for binary frames, Event otherwise.
type Inbound struct {
	Audio []byte
	Event Event
}

// Next blocks for the next agent message. A text message that fails to decode
// returns a *DecodeError; the link stays usable.
func (l *Link) Next() (Inbound, error) {
	msgType, data, err := l.conn.ReadMessage()
	if err != nil {
		return Inbound{}, err
	}
	switch msgType {
	case websocket.BinaryMessage:
		return Inbound{Audio: data}, nil
	case websocket.TextMessage:
		ev, err := DecodeEvent(data)
		if err != nil {
			return Inbound{}, err
		}
		return Inbound{Event: ev}, nil
	default:
		return Inbound{}, &DecodeError{Message: fmt.Sprintf("unexpected message type %d", msgType)}
	}
}

// Close sends a close frame, best effort, and closes the connection. Safe to
// call more than once and concurrently with writers.
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

// IsNormalClose reports whether err is the agent closing the connection cleanly.
func IsNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

// IsDecodeError reports whether err came from an undecodable message.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func (l *Link) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return l.write(websocket.TextMessage, data)
}

func (l *Link) write(messageType int, data []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if err := l.conn.SetWriteDeadline(time.Now().Add(l.writeTimeout)); err != nil {
		return err
	}
	return l.conn.WriteMessage(messageType, data)
}
