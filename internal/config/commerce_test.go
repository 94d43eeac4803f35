package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultCommerceConfigIsValid(t *testing.T) {
	require.NoError(t, validateCommerceConfig(DefaultCommerceConfig()))
}

func TestValidateCommerceConfigRejectsZeroes(t *testing.T) {
	cases := map[string]func(*CommerceConfig){
		"negative cache ttl":  func(c *CommerceConfig) { c.Pricing.CacheTTL = -time.Second },
		"zero depth":          func(c *CommerceConfig) { c.FanOut.MaxDepth = 0 },
		"zero retry interval": func(c *CommerceConfig) { c.FanOut.RetryInterval = 0 },
		"zero retry batch":    func(c *CommerceConfig) { c.FanOut.RetryBatch = 0 },
		"zero fanout tries":   func(c *CommerceConfig) { c.FanOut.MaxAttempts = 0 },
		"zero lock ttl":       func(c *CommerceConfig) { c.Sequence.LockTTL = 0 },
		"zero sequence tries": func(c *CommerceConfig) { c.Sequence.MaxAttempts = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultCommerceConfig()
			mutate(&cfg)
			assert.Error(t, validateCommerceConfig(cfg))
		})
	}
}

func TestNilHolderServesDefaults(t *testing.T) {
	var holder *CommerceConfigHolder
	assert.Equal(t, DefaultCommerceConfig(), holder.Get())
}

func TestCommerceConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yml := "commerce:\n  pricing:\n    cacheTTL: 30s\n  fanout:\n    maxDepth: 4\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "commerce.yml"), []byte(yml), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewCommerceConfigHolder(zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 30*time.Second, cfg.Pricing.CacheTTL)
	assert.Equal(t, 4, cfg.FanOut.MaxDepth)
	assert.Equal(t, DefaultCommerceConfig().FanOut.RetryBatch, cfg.FanOut.RetryBatch)
	assert.Equal(t, DefaultCommerceConfig().Sequence, cfg.Sequence)
}
