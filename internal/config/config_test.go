package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func clearSecrets(t *testing.T) {
	t.Helper()
	for _, k := range []string{"WEEX_API_KEY", "WEEX_SECRET_KEY", "WEEX_PASSPHRASE", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "DRY_RUN"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	clearSecrets(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "cmt_btcusdt", cfg.Exchange.Symbol)
	assert.Equal(t, 4, cfg.Exchange.Leverage)
	assert.True(t, cfg.Exchange.DryRun)
	assert.Equal(t, 60*time.Second, cfg.PollInterval())
	assert.Equal(t, 0.65, cfg.Signals.MinConfidence)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	clearSecrets(t)
	path := writeConfig(t, `
exchange:
  symbol: cmt_ethusdt
  leverage: 10
  poll_seconds: 30
risk:
  max_drawdown_pct: 0.05
  cooldown_seconds: 60
tpsl:
  tp1_mult: 2.0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "cmt_ethusdt", cfg.Exchange.Symbol)
	assert.Equal(t, 10, cfg.Exchange.Leverage)
	assert.Equal(t, 30*time.Second, cfg.PollInterval())
	assert.Equal(t, 0.05, cfg.Risk.MaxDrawdownPct)
	assert.Equal(t, time.Minute, cfg.Cooldown())
	assert.Equal(t, 2.0, cfg.TPSL.TP1Mult)
	// untouched keys keep their defaults
	assert.Equal(t, 4.5, cfg.TPSL.RunnerTPMult)
}

func TestLoad_SecretsComeFromEnvironment(t *testing.T) {
	clearSecrets(t)
	t.Setenv("WEEX_API_KEY", "key")
	t.Setenv("WEEX_SECRET_KEY", "secret")
	t.Setenv("WEEX_PASSPHRASE", "pass")
	t.Setenv("TELEGRAM_CHAT_ID", "123456")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "key", cfg.APIKey)
	assert.Equal(t, "secret", cfg.SecretKey)
	assert.Equal(t, int64(123456), cfg.TelegramChat)
}

func TestLoad_DryRunEnvOverride(t *testing.T) {
	clearSecrets(t)
	path := writeConfig(t, "exchange:\n  dry_run: true\n")

	t.Setenv("WEEX_API_KEY", "k")
	t.Setenv("WEEX_SECRET_KEY", "s")
	t.Setenv("WEEX_PASSPHRASE", "p")
	t.Setenv("DRY_RUN", "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Exchange.DryRun)
}

func TestLoad_LiveModeRequiresCredentials(t *testing.T) {
	clearSecrets(t)
	path := writeConfig(t, "exchange:\n  dry_run: false\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "WEEX_API_KEY")
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	clearSecrets(t)
	cases := map[string]string{
		"leverage too high": "exchange:\n  leverage: 50\n",
		"leverage zero":     "exchange:\n  leverage: 0\n",
		"drawdown >= 1":     "risk:\n  max_drawdown_pct: 1.5\n",
		"negative poll":     "exchange:\n  poll_seconds: -5\n",
		"rr below one":      "tpsl:\n  min_risk_reward: 0.5\n",
	}
	for name, yaml := range cases {
		_, err := Load(writeConfig(t, yaml))
		assert.Error(t, err, name)
	}
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	clearSecrets(t)
	_, err := Load(writeConfig(t, "exchange: [not a map"))
	assert.Error(t, err)
}

func TestLoad_InvalidChatIDFails(t *testing.T) {
	clearSecrets(t)
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")
	_, err := Load("")
	assert.ErrorContains(t, err, "TELEGRAM_CHAT_ID")
}

func TestRequestTimeout_DefaultsWhenUnset(t *testing.T) {
	cfg := Defaults()
	cfg.Exchange.RequestTimeoutS = 0
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
}
