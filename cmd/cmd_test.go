// File: cmd/cmd_test.go
package cmd

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/engager-cli/api/schemas"
	"github.com/xkilldash9x/engager-cli/internal/config"
)

func TestInitializeConfigAppliesDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	require.NoError(t, initializeConfig())

	var cfg config.Config
	require.NoError(t, viper.Unmarshal(&cfg))

	assert.Equal(t, 180*time.Second, cfg.Session.MinDelay)
	assert.Equal(t, 300*time.Second, cfg.Session.MaxDelay)
	assert.Equal(t, 5, cfg.Session.MaxConsecutiveFailures)
	assert.False(t, cfg.Browser.Headless)
	assert.True(t, cfg.Browser.Stealth)
}

func TestInitializeConfigEnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("ENGAGER_SESSION_TARGET", "25")
	t.Setenv("ENGAGER_LLM_MODEL", "gpt-4o")

	require.NoError(t, initializeConfig())

	var cfg config.Config
	require.NoError(t, viper.Unmarshal(&cfg))

	assert.Equal(t, 25, cfg.Session.Target)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
}

func TestFormatSessionIncludesCounters(t *testing.T) {
	state := schemas.NewSessionState(10)
	state.Status = schemas.StatusRunning
	state.RecordSuccess("100")
	state.RecordFailure("101")

	out := formatSession(state)
	assert.Contains(t, out, state.ID)
	assert.Contains(t, out, "2/10 processed")
	assert.Contains(t, out, "Success:   1")
	assert.Contains(t, out, "Failed:    1")
	assert.Contains(t, out, "50%")
}

func TestFormatEventCompactsEmptyFields(t *testing.T) {
	e := schemas.NewActivityEvent("sess", "", schemas.EventSessionStarted, "")
	out := formatEvent(e)
	assert.Contains(t, out, string(schemas.EventSessionStarted))
	assert.NotContains(t, out, "item=")
}
