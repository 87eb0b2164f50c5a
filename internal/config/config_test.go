package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DEEPGRAM_TOKEN", "tok")
	t.Setenv("LISTEN_ADDR", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:5000", cfg.ListenAddr)
	assert.Equal(t, DefaultAgentURL, cfg.AgentURL)
	assert.Equal(t, "nova-2", cfg.AgentListenModel)
	assert.Equal(t, "aura-asteria-en", cfg.AgentSpeakModel)
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
	assert.Equal(t, time.Duration(0), cfg.LookupTimeout)
	assert.Equal(t, "flowise", cfg.LookupProvider)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DEEPGRAM_TOKEN", "tok")
	t.Setenv("AUDIO_QUEUE_FRAMES", "16")
	t.Setenv("PING_INTERVAL_SEC", "5")
	t.Setenv("LOOKUP_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.AudioQueueFrames)
	assert.Equal(t, 5*time.Second, cfg.PingInterval)
	assert.Equal(t, "openai", cfg.LookupProvider)
	require.NoError(t, cfg.Validate())
}

func TestValidateReportsMissing(t *testing.T) {
	cfg := &Config{LookupProvider: "carrier-pigeon"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEEPGRAM_TOKEN")
	assert.Contains(t, err.Error(), "carrier-pigeon")
	assert.Contains(t, err.Error(), "AUDIO_QUEUE_FRAMES")
}

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("MAX_SESSIONS", "lots")
	assert.Equal(t, 7, getEnvInt("MAX_SESSIONS", 7))
}
