package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}

func TestNew_FileOutputWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	l.With(String("component", "refresher")).Warn("pair unavailable",
		String("instrument", "Sber"),
		Int("attempt", 2),
		Strings("timeframes", []string{"5m", "1h"}),
		Error(errors.New("boom")),
	)
	l.Debug("suppressed below info")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)
	assert.Contains(t, out, `"component":"refresher"`)
	assert.Contains(t, out, `"instrument":"Sber"`)
	assert.Contains(t, out, `"timeframes":"5m, 1h"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.NotContains(t, out, "suppressed")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { Nop().Info("ignored", Bool("ok", true)) })
}
