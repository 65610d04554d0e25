package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/filmdata/critic-harvester/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	require.Equal(t, 4, cfg.Harvest.Concurrency)
	require.Equal(t, 3, cfg.Harvest.StagnationThreshold)
	require.Equal(t, 400, cfg.Harvest.MaxIterations)
	require.Equal(t, "https://www.metacritic.com", cfg.Provider.BaseURL)
	require.Equal(t, 1.5, cfg.Provider.HostQPS)
	require.Equal(t, "data/raw", cfg.Sink.OutputDir)
	require.False(t, cfg.Server.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
harvest:
  concurrency: 8
  stagnation_threshold: 5
provider:
  host_qps: 0.5
sink:
  output_dir: /tmp/out
  postgres:
    dsn: postgres://localhost/harvest
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Harvest.Concurrency)
	require.Equal(t, 5, cfg.Harvest.StagnationThreshold)
	require.Equal(t, 0.5, cfg.Provider.HostQPS)
	require.Equal(t, "/tmp/out", cfg.Sink.OutputDir)
	require.Equal(t, "postgres://localhost/harvest", cfg.Sink.Postgres.DSN)
	// Untouched keys keep their defaults.
	require.Equal(t, 400, cfg.Harvest.MaxIterations)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	bad := cfg
	bad.Harvest.Concurrency = 0
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Provider.HostQPS = 0
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Notify.TopicName = "runs"
	require.Error(t, bad.Validate())

	bad.Notify.ProjectID = "proj"
	require.NoError(t, bad.Validate())
}

func TestConversionHelpers(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	require.Equal(t, 8*time.Minute, cfg.SchedulerConfig().PerTaskDeadline)
	require.Equal(t, 15, cfg.ResolverConfig().MaxListingPages)
	require.Equal(t, 1200*time.Millisecond, cfg.EngineConfig().SettleDelay)
	require.Equal(t, 45*time.Second, cfg.ProviderSettings().NavTimeout)
	require.Equal(t, "critic_reviews", cfg.PostgresSettings().Table)
}
