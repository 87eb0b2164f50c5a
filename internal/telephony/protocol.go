package telephony

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Media tracks carried by Twilio Media Streams.
const (
	TrackInbound  = "inbound"
	TrackOutbound = "outbound"
)

// DecodeError describes a telephony message that could not be turned into an Event.
type DecodeError struct {
	Code    string
	Message string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func badMessage(format string, args ...any) *DecodeError {
	return &DecodeError{Code: "bad_message", Message: fmt.Sprintf(format, args...)}
}

// Event is one decoded Media Streams message. The set of implementations is closed.
type Event interface {
	EventName() string
}

type Connected struct {
	Protocol string
	Version  string
}

type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// Start announces the stream; StreamSID tags every message the bridge sends back.
type Start struct {
	StreamSID        string
	AccountSID       string
	CallSID          string
	Tracks           []string
	MediaFormat      MediaFormat
	CustomParameters map[string]string
}

type Media struct {
	StreamSID string
	Track     string
	Chunk     string
	Timestamp string
	Payload   string
}

// Audio decodes the base64 payload into raw mu-law bytes.
func (m Media) Audio() ([]byte, error) {
	audio, err := base64.StdEncoding.DecodeString(m.Payload)
	if err != nil {
		return nil, badMessage("media payload is not base64: %v", err)
	}
	return audio, nil
}

type Mark struct {
	StreamSID string
	Name      string
}

type Stop struct {
	StreamSID  string
	AccountSID string
	CallSID    string
}

type DTMF struct {
	StreamSID string
	Track     string
	Digit     string
}

func (Connected) EventName() string { return "connected" }
func (Start) EventName() string     { return "start" }
func (Media) EventName() string     { return "media" }
func (Mark) EventName() string      { return "mark" }
func (Stop) EventName() string      { return "stop" }
func (DTMF) EventName() string      { return "dtmf" }

type wireMessage struct {
	Event     string     `json:"event"`
	StreamSID string     `json:"streamSid,omitempty"`
	Protocol  string     `json:"protocol,omitempty"`
	Version   string     `json:"version,omitempty"`
	Start     *wireStart `json:"start,omitempty"`
	Media     *wireMedia `json:"media,omitempty"`
	Mark      *wireMark  `json:"mark,omitempty"`
	Stop      *wireStop  `json:"stop,omitempty"`
	DTMF      *wireDTMF  `json:"dtmf,omitempty"`
}

type wireStart struct {
	StreamSID        string            `json:"streamSid"`
	AccountSID       string            `json:"accountSid"`
	CallSID          string            `json:"callSid"`
	Tracks           []string          `json:"tracks"`
	MediaFormat      MediaFormat       `json:"mediaFormat"`
	CustomParameters map[string]string `json:"customParameters"`
}

type wireMedia struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

type wireMark struct {
	Name string `json:"name"`
}

type wireStop struct {
	AccountSID string `json:"accountSid"`
	CallSID    string `json:"callSid"`
}

type wireDTMF struct {
	Track string `json:"track"`
	Digit string `json:"digit"`
}

// DecodeEvent parses one text frame from the telephony leg.
func DecodeEvent(data []byte) (Event, error) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, badMessage("invalid json frame: %v", err)
	}

	switch strings.TrimSpace(msg.Event) {
	case "connected":
		return Connected{Protocol: msg.Protocol, Version: msg.Version}, nil
	case "start":
		if msg.Start == nil || strings.TrimSpace(msg.Start.StreamSID) == "" {
			return nil, badMessage("start.streamSid is required")
		}
		return Start{
			StreamSID:        msg.Start.StreamSID,
			AccountSID:       msg.Start.AccountSID,
			CallSID:          msg.Start.CallSID,
			Tracks:           msg.Start.Tracks,
			MediaFormat:      msg.Start.MediaFormat,
			CustomParameters: msg.Start.CustomParameters,
		}, nil
	case "media":
		if msg.Media == nil {
			return nil, badMessage("media object is required")
		}
		return Media{
			StreamSID: msg.StreamSID,
			Track:     msg.Media.Track,
			Chunk:     msg.Media.Chunk,
			Timestamp: msg.Media.Timestamp,
			Payload:   msg.Media.Payload,
		}, nil
	case "mark":
		m := Mark{StreamSID: msg.StreamSID}
		if msg.Mark != nil {
			m.Name = msg.Mark.Name
		}
		return m, nil
	case "stop":
		s := Stop{StreamSID: msg.StreamSID}
		if msg.Stop != nil {
			s.AccountSID = msg.Stop.AccountSID
			s.CallSID = msg.Stop.CallSID
		}
		return s, nil
	case "dtmf":
		if msg.DTMF == nil {
			return nil, badMessage("dtmf object is required")
		}
		return DTMF{StreamSID: msg.StreamSID, Track: msg.DTMF.Track, Digit: msg.DTMF.Digit}, nil
	case "":
		return nil, badMessage("missing event")
	default:
		return nil, badMessage("unsupported event %q", msg.Event)
	}
}

type outboundMedia struct {
	Event     string          `json:"event"`
	StreamSID string          `json:"streamSid"`
	Media     outboundPayload `json:"media"`
}

type outboundPayload struct {
	Payload string `json:"payload"`
}

type outboundClear struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
}

type outboundMark struct {
	Event     string   `json:"event"`
	StreamSID string   `json:"streamSid"`
	Mark      wireMark `json:"mark"`
}

// EncodeMedia builds the media event that plays audio to the caller.
func EncodeMedia(streamSID string, audio []byte) ([]byte, error) {
	return json.Marshal(outboundMedia{
		Event:     "media",
		StreamSID: streamSID,
		Media:     outboundPayload{Payload: base64.StdEncoding.EncodeToString(audio)},
	})
}

// EncodeClear builds the event that discards audio Twilio has queued for playback.
func EncodeClear(streamSID string) ([]byte, error) {
	return json.Marshal(outboundClear{Event: "clear", StreamSID: streamSID})
}

// EncodeMark builds a mark event; Twilio echoes it back once playback reaches it.
func EncodeMark(streamSID, name string) ([]byte, error) {
	return json.Marshal(outboundMark{Event: "mark", StreamSID: streamSID, Mark: wireMark{Name: name}})
}
