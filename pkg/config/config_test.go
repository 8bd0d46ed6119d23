package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, 30*time.Second, c.Poll.Interval)
	assert.Equal(t, 50, c.Poll.FallbackCount)
	assert.Equal(t, 10*time.Second, c.Upstream.Timeout)
	assert.Equal(t, 3*time.Second, c.Ticker.ReconnectDelay)
	assert.Equal(t, []string{"b7", "b8"}, c.Datasets.Supported)
	assert.Equal(t, "b7", c.Datasets.Default)
	assert.Equal(t, "memory", c.Cache.Backend)
	assert.True(t, c.Notify.Enabled)
	assert.False(t, c.Kafka.Enabled)
}

func TestShippedConfig(t *testing.T) {
	c, err := Load("../../config/config.yaml")
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, 3*time.Second, c.Ticker.ReconnectDelay)
	assert.Equal(t, c.Ticker.ReconnectDelay, c.Ticker.ReconnectMaxDelay, "reconnect delay is fixed")
	assert.False(t, c.Server.TrustProxy)
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
environment: production
upstream:
  base_url: http://analytics:8000
  start: "2025-07-01 00:00:00"
  end: "2025-07-16 23:59:59"
datasets:
  supported: [b7]
  default: b7
poll:
  interval: 45s
`))
	require.NoError(t, err)
	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, "http://analytics:8000", c.Upstream.BaseURL)
	assert.Equal(t, 45*time.Second, c.Poll.Interval)
	assert.Equal(t, []string{"b7"}, c.Datasets.Supported)
	// untouched sections keep their defaults
	assert.Equal(t, "/data", c.Upstream.Path)
	assert.Equal(t, 8080, c.Server.Port)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"unknown default dataset": "datasets:\n  supported: [b7]\n  default: b9\n",
		"half time window":        "upstream:\n  start: \"2025-07-01 00:00:00\"\n",
		"bad cache backend":       "cache:\n  backend: memcached\n",
		"kafka without brokers":   "kafka:\n  enabled: true\n",
		"tiny poll interval":      "poll:\n  interval: 10ms\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	env := map[string]string{
		"TELEGRAM_BOT_TOKEN": "123:abc",
		"TELEGRAM_CHAT_ID":   "-100200",
		"DATASET":            "b8",
		"NOTIFY_ENABLED":     "false",
		"REDIS_ADDR":         "cache.local:6380",
		"KAFKA_BROKERS":      "k1:9092, k2:9092",
	}
	c.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "123:abc", c.Telegram.BotToken)
	assert.Equal(t, "-100200", c.Telegram.ChatID)
	assert.Equal(t, "b8", c.Datasets.Default)
	assert.False(t, c.Notify.Enabled)
	assert.Equal(t, "cache.local", c.Cache.Redis.Host)
	assert.Equal(t, 6380, c.Cache.Redis.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	require.NoError(t, c.Validate())
}
