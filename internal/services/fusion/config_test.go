package fusion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"negative volume", func(c *Config) { c.MinChartVolume = -1 }, "min_chart_volume"},
		{"nan volume", func(c *Config) { c.MinChartVolume = math.NaN() }, "min_chart_volume"},
		{"zero epsilon", func(c *Config) { c.ImpactEpsilon = 0 }, "impact_epsilon"},
		{"zero scaling", func(c *Config) { c.ImpactScaling = 0 }, "impact_scaling"},
		{"negative importance", func(c *Config) { c.HighImportance = -0.1 }, "high_importance"},
		{"dampening at one", func(c *Config) { c.ChartDampening = 1 }, "chart_dampening"},
		{"dampening at zero", func(c *Config) { c.ChartDampening = 0 }, "chart_dampening"},
		{"amplification below one", func(c *Config) { c.NewsAmplification = 0.9 }, "news_amplification"},
		{"negative floor", func(c *Config) { c.DisagreementFloor = -0.2 }, "disagreement_floor"},
		{"infinite volatility", func(c *Config) { c.HighVolatility = math.Inf(1) }, "high_volatility"},
		{"ceiling above one", func(c *Config) { c.ConfidenceCeiling = 1.2 }, "confidence_ceiling"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var cerr *ConfigurationError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tc.field, cerr.Field)
		})
	}
}

func TestNewEngineFailsFast(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ImpactEpsilon = -1
	_, err := NewEngine(cfg)
	require.Error(t, err, "a bad config must be refused before any fuse call")

	eng, err := NewEngine(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), eng.Config())
}
