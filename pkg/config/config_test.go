package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
instruments:
  - {name: "Сбербанк", id: SBER}
  - {name: "Газпром", id: GAZP}
`

func TestParse_Defaults(t *testing.T) {
	c, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, "moex", c.Provider.Type)
	assert.Equal(t, 5000, c.Server.Port)
	assert.Equal(t, 14, c.RSI.Period)
	assert.Equal(t, 60*time.Second, c.RSI.RefreshInterval)
	assert.Equal(t, 3*time.Hour, c.RSI.DisplayUTCOffset)
	assert.Equal(t, float64(20), c.RSI.UpstreamRPS)
	assert.Equal(t, "provider", c.Quotes.Source)
	assert.Equal(t, 2*time.Minute, c.Quotes.MaxAge)
	require.Len(t, c.Instruments, 2)
	assert.Equal(t, Instrument{Name: "Сбербанк", ID: "SBER"}, c.Instruments[0])
}

func TestParse_DurationsAndTimeframes(t *testing.T) {
	c, err := Parse([]byte(minimal + `
rsi:
  refresh_interval: 30s
  timeframes:
    - {name: 5m, interval: "1", lookback_days: 3, bucket: 5m}
`))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, c.RSI.RefreshInterval)
	require.Len(t, c.RSI.Timeframes, 1)
	assert.Equal(t, 5*time.Minute, c.RSI.Timeframes[0].Bucket)
}

func TestValidate_Errors(t *testing.T) {
	cases := map[string]string{
		"no instruments":   `provider: {type: moex}`,
		"unknown provider": minimal + "provider: {type: yahoo}",
		"duplicate name":   "instruments: [{name: A, id: X}, {name: A, id: Y}]",
		"bad source":       minimal + "quotes: {source: magic}",
		"stream w/o feed":  minimal + "quotes: {source: stream}",
		"topic w/o broker": minimal + "kafka: {snapshot_topic: rsi}",
		"bad timeframe":    minimal + "rsi: {timeframes: [{name: 5m, interval: '1'}]}",
		"duplicate tf": minimal + `
rsi:
  timeframes:
    - {name: 5m, interval: "1", lookback_days: 3, bucket: 5m}
    - {name: 5m, interval: "60", lookback_days: 60}
`,
		"negative bucket": minimal + "rsi: {timeframes: [{name: 5m, interval: '1', lookback_days: 3, bucket: -5m}]}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseInstruments(t *testing.T) {
	ins, err := ParseInstruments("Sber=SBER, GAZP ,Lukoil=LKOH")
	require.NoError(t, err)
	assert.Equal(t, []Instrument{
		{Name: "Sber", ID: "SBER"},
		{Name: "GAZP", ID: "GAZP"},
		{Name: "Lukoil", ID: "LKOH"},
	}, ins)

	_, err = ParseInstruments("Sber=")
	assert.Error(t, err)
}

func TestLoadWithEnv_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o600))

	t.Setenv("PROVIDER", "bybit")
	t.Setenv("INSTRUMENTS", "BTC=BTCUSDT")
	t.Setenv("REFRESH_INTERVAL", "15s")
	t.Setenv("HTTP_PORT", "8088")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "bybit", c.Provider.Type)
	assert.Equal(t, []Instrument{{Name: "BTC", ID: "BTCUSDT"}}, c.Instruments)
	assert.Equal(t, 15*time.Second, c.RSI.RefreshInterval)
	assert.Equal(t, 8088, c.Server.Port)
	assert.True(t, c.Redis.Enabled)
}

func TestLoadWithEnv_BadOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o600))
	t.Setenv("HTTP_PORT", "eighty")

	_, err := LoadWithEnv(path)
	assert.Error(t, err)
}
