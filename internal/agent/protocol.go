package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LookupFunctionName is the function the agent is told it may call.
const LookupFunctionName = "flowiseQuery"

// SettingsConfiguration is the first message on every agent connection.
type SettingsConfiguration struct {
	Type  string        `json:"type"`
	Audio AudioSettings `json:"audio"`
	Agent AgentSettings `json:"agent"`
}

type AudioSettings struct {
	Input  AudioFormat `json:"input"`
	Output AudioFormat `json:"output"`
}

type AudioFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Container  string `json:"container,omitempty"`
}

type AgentSettings struct {
	Listen ListenSettings `json:"listen"`
	Think  ThinkSettings  `json:"think"`
	Speak  SpeakSettings  `json:"speak"`
}

type ListenSettings struct {
	Model string `json:"model"`
}

type ThinkSettings struct {
	Provider     Provider             `json:"provider"`
	Model        string               `json:"model"`
	Instructions string               `json:"instructions,omitempty"`
	Functions    []FunctionDefinition `json:"functions,omitempty"`
}

type Provider struct {
	Type string `json:"type"`
}

type SpeakSettings struct {
	Model string `json:"model"`
}

// FunctionDefinition advertises a callable function to the agent as a JSON schema.
type FunctionDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  FunctionParameters `json:"parameters"`
}

type FunctionParameters struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Model selects the models and provider the agent runs with.
type Model struct {
	Listen        string
	ThinkProvider string
	Think         string
	Speak         string
	Instructions  string
}

// NewSettings builds the settings for 8 kHz mu-law telephony audio in both
// directions, advertising the given functions.
func NewSettings(m Model, functions ...FunctionDefinition) SettingsConfiguration {
	return SettingsConfiguration{
		Type: "SettingsConfiguration",
		Audio: AudioSettings{
			Input:  AudioFormat{Encoding: "mulaw", SampleRate: 8000},
			Output: AudioFormat{Encoding: "mulaw", SampleRate: 8000, Container: "none"},
		},
		Agent: AgentSettings{
			Listen: ListenSettings{Model: m.Listen},
			Think: ThinkSettings{
				Provider:     Provider{Type: m.ThinkProvider},
				Model:        m.Think,
				Instructions: m.Instructions,
				Functions:    functions,
			},
			Speak: SpeakSettings{Model: m.Speak},
		},
	}
}

// LookupFunction returns the schema of the knowledge lookup function under name.
func LookupFunction(name string) FunctionDefinition {
	return FunctionDefinition{
		Name: name,
		Description: "Use this function to look up information the caller asks about. " +
			"Always pass the caller's question. Use message_type 'lookup' when searching for information.",
		Parameters: FunctionParameters{
			Type: "object",
			Properties: map[string]Property{
				"message_type": {
					Type:        "string",
					Description: "Type of request. Use 'lookup' when about to search for information.",
					Enum:        []string{"lookup", "general"},
				},
				"question": {
					Type:        "string",
					Description: "The question asked by the user",
				},
			},
			Required: []string{"question"},
		},
	}
}

// InjectAgentMessage makes the agent speak the given text.
type InjectAgentMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewInject(message string) InjectAgentMessage {
	return InjectAgentMessage{Type: "InjectAgentMessage", Message: message}
}

// DecodeError describes an agent text message that could not be decoded.
type DecodeError struct {
	Message string
}

func (e *DecodeError) Error() string {
	return "agent message: " + e.Message
}

// Event is one decoded agent control message. The set of implementations is closed;
// tags this package does not know decode to Unknown.
type Event interface {
	EventType() string
}

type Welcome struct {
	SessionID string
}

type SettingsApplied struct{}

type UserStartedSpeaking struct{}

type AgentStartedSpeaking struct {
	TotalLatency float64
}

type AgentAudioDone struct{}

type ConversationText struct {
	Role    string
	Content string
}

// FunctionInput is the argument object of a function call.
type FunctionInput struct {
	Question    string `json:"question"`
	MessageType string `json:"message_type,omitempty"`
}

type FunctionCallRequest struct {
	FunctionName   string
	FunctionCallID string
	Input          FunctionInput
}

// Error is reported by the agent service itself.
type Error struct {
	Message string
}

type Unknown struct {
	Type string
	Raw  json.RawMessage
}

func (Welcome) EventType() string              { return "Welcome" }
func (SettingsApplied) EventType() string      { return "SettingsApplied" }
func (UserStartedSpeaking) EventType() string  { return "UserStartedSpeaking" }
func (AgentStartedSpeaking) EventType() string { return "AgentStartedSpeaking" }
func (AgentAudioDone) EventType() string       { return "AgentAudioDone" }
func (ConversationText) EventType() string     { return "ConversationText" }
func (FunctionCallRequest) EventType() string  { return "FunctionCallRequest" }
func (Error) EventType() string                { return "Error" }
func (u Unknown) EventType() string            { return u.Type }

type wireEvent struct {
	Type           string          `json:"type"`
	SessionID      string          `json:"session_id,omitempty"`
	TotalLatency   float64         `json:"total_latency,omitempty"`
	Role           string          `json:"role,omitempty"`
	Content        string          `json:"content,omitempty"`
	FunctionName   string          `json:"function_name,omitempty"`
	FunctionCallID string          `json:"function_call_id,omitempty"`
	Input          json.RawMessage `json:"input,omitempty"`
	Message        string          `json:"message,omitempty"`
	Description    string          `json:"description,omitempty"`
}

// DecodeEvent parses one agent text message.
func DecodeEvent(data []byte) (Event, error) {
	var msg wireEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, &DecodeError{Message: fmt.Sprintf("invalid json: %v", err)}
	}

	switch strings.TrimSpace(msg.Type) {
	case "Welcome":
		return Welcome{SessionID: msg.SessionID}, nil
	case "SettingsApplied":
		return SettingsApplied{}, nil
	case "UserStartedSpeaking":
		return UserStartedSpeaking{}, nil
	case "AgentStartedSpeaking":
		return AgentStartedSpeaking{TotalLatency: msg.TotalLatency}, nil
	case "AgentAudioDone":
		return AgentAudioDone{}, nil
	case "ConversationText":
		return ConversationText{Role: msg.Role, Content: msg.Content}, nil
	case "FunctionCallRequest":
		if msg.FunctionName == "" {
			return nil, &DecodeError{Message: "FunctionCallRequest without function_name"}
		}
		req := FunctionCallRequest{FunctionName: msg.FunctionName, FunctionCallID: msg.FunctionCallID}
		if len(msg.Input) > 0 && string(msg.Input) != "null" {
			if err := json.Unmarshal(msg.Input, &req.Input); err != nil {
				return nil, &DecodeError{Message: fmt.Sprintf("FunctionCallRequest input: %v", err)}
			}
		}
		return req, nil
	case "Error":
		text := msg.Message
		if text == "" {
			text = msg.Description
		}
		return Error{Message: text}, nil
	case "":
		return nil, &DecodeError{Message: "missing type"}
	default:
		return Unknown{Type: msg.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}
