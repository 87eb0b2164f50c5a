package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAgentURL is the Deepgram voice agent endpoint.
const DefaultAgentURL = "wss://agent.deepgram.com/agent"

const defaultInstructions = "You own a mexican restaurant. " +
	"Before calling any function you MUST supply the question parameter with the caller's question."

const defaultGreeting = "Hello! I'm lola, welcome to Aychihuahua Restaurant. How can I help you today?"

type Config struct {
	ListenAddr       string
	GRPCHealthAddr   string
	LogLevel         string
	MaxSessions      int
	InternalAPIToken string

	AgentURL              string
	AgentToken            string
	AgentListenModel      string
	AgentThinkProvider    string
	AgentThinkModel       string
	AgentSpeakModel       string
	AgentInstructions     string
	AgentGreeting         string
	AgentHandshakeTimeout time.Duration

	AudioQueueFrames int
	PingInterval     time.Duration
	PongTimeout      time.Duration
	WriteTimeout     time.Duration

	LookupProvider    string
	LookupTimeout     time.Duration
	FlowiseURL        string
	FlowiseToken      string
	FlowiseChatflowID string
	OpenAIKey         string
	OpenAIModel       string

	TwilioAccountSID string
	TwilioAuthToken  string
	PublicStreamURL  string
}

// Load reads configuration from the environment, after merging a .env file
// from the working directory when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	return &Config{
		ListenAddr:       getEnv("LISTEN_ADDR", "0.0.0.0:5000"),
		GRPCHealthAddr:   getEnv("GRPC_HEALTH_ADDR", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		MaxSessions:      getEnvInt("MAX_SESSIONS", 0),
		InternalAPIToken: getEnv("INTERNAL_API_TOKEN", ""),

		AgentURL:              getEnv("AGENT_URL", DefaultAgentURL),
		AgentToken:            getEnv("DEEPGRAM_TOKEN", ""),
		AgentListenModel:      getEnv("AGENT_LISTEN_MODEL", "nova-2"),
		AgentThinkProvider:    getEnv("AGENT_THINK_PROVIDER", "anthropic"),
		AgentThinkModel:       getEnv("AGENT_THINK_MODEL", "claude-3-haiku-20240307"),
		AgentSpeakModel:       getEnv("AGENT_SPEAK_MODEL", "aura-asteria-en"),
		AgentInstructions:     getEnv("AGENT_INSTRUCTIONS", defaultInstructions),
		AgentGreeting:         getEnv("AGENT_GREETING", defaultGreeting),
		AgentHandshakeTimeout: getEnvSeconds("AGENT_HANDSHAKE_TIMEOUT_SEC", 10),

		AudioQueueFrames: getEnvInt("AUDIO_QUEUE_FRAMES", 128),
		PingInterval:     getEnvSeconds("PING_INTERVAL_SEC", 30),
		PongTimeout:      getEnvSeconds("PONG_TIMEOUT_SEC", 30),
		WriteTimeout:     getEnvSeconds("WRITE_TIMEOUT_SEC", 10),

		LookupProvider:    strings.ToLower(getEnv("LOOKUP_PROVIDER", "flowise")),
		LookupTimeout:     getEnvSeconds("LOOKUP_TIMEOUT_SEC", 0),
		FlowiseURL:        getEnv("FLOWISE_URL", "https://flowiseai.dbctechnology.com"),
		FlowiseToken:      getEnv("FLOWISE_TOKEN", ""),
		FlowiseChatflowID: getEnv("FLOWISE_CHATFLOW_ID", "675de8d4-72bf-4d75-b9e0-975acb4c8999"),
		OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		PublicStreamURL:  getEnv("PUBLIC_STREAM_URL", ""),
	}, nil
}

// Validate reports configuration that would make every call fail.
func (c *Config) Validate() error {
	var errs []error
	if c.AgentToken == "" {
		errs = append(errs, errors.New("DEEPGRAM_TOKEN is required"))
	}
	if c.AgentURL == "" {
		errs = append(errs, errors.New("AGENT_URL must not be empty"))
	}
	switch c.LookupProvider {
	case "flowise":
		if c.FlowiseURL == "" || c.FlowiseChatflowID == "" {
			errs = append(errs, errors.New("FLOWISE_URL and FLOWISE_CHATFLOW_ID are required for the flowise lookup provider"))
		}
	case "openai":
		if c.OpenAIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai lookup provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LOOKUP_PROVIDER %q", c.LookupProvider))
	}
	if c.AudioQueueFrames <= 0 {
		errs = append(errs, errors.New("AUDIO_QUEUE_FRAMES must be > 0"))
	}
	return errors.Join(errs...)
}

// HasTwilioCredentials reports whether the Twilio REST API can be used.
func (c *Config) HasTwilioCredentials() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}
