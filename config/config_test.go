package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_DefaultsWithMemoryDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("MONGODB_CONNECTION_URI", "")

	cfg := NewConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NotNil(t, cfg)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, "8080", cfg.Address)
	assert.Equal(t, "valuetech", cfg.MongoDB_DBName_Data)
	assert.Equal(t, "pipeline", cfg.Feed_Strategy)
	assert.Equal(t, int64(0), cfg.Feed_FanoutSlack)
	assert.Equal(t, 3*time.Second, cfg.FeedProviderTimeout())
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
	assert.False(t, cfg.Identity_AmbiguityCheck)
	assert.Equal(t, time.Duration(0), cfg.StatusBackfillInterval())
	assert.Equal(t, int64(50), cfg.StatusBackfill_Batch)
	assert.Equal(t, float64(0), cfg.StatusBackfill_Rate)
	assert.Empty(t, cfg.ProvidersFile)
}

func TestNewConfig_FileDoesNotOverrideEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("STORE_DRIVER=memory\nFEED_STRATEGY=fanout\nFEED_FANOUT_SLACK=4\n"), 0o600))
	t.Setenv("FEED_STRATEGY", "pipeline")
	// Biến được file đặt phải dọn sau test
	t.Setenv("STORE_DRIVER", "")
	os.Unsetenv("STORE_DRIVER")
	t.Setenv("FEED_FANOUT_SLACK", "")
	os.Unsetenv("FEED_FANOUT_SLACK")

	cfg := NewConfig(path)
	require.NotNil(t, cfg)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, "pipeline", cfg.Feed_Strategy)
	assert.Equal(t, int64(4), cfg.Feed_FanoutSlack)
}

func TestValidate(t *testing.T) {
	base := func() Configuration {
		return Configuration{StoreDriver: "mongo", MongoDB_ConnectionURI: "mongodb://x", Feed_Strategy: "fanout"}
	}

	cfg := base()
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.MongoDB_ConnectionURI = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.MongoDB_ConnectionURI = ""
	cfg.StoreDriver = " memory "
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)

	cfg = base()
	cfg.StoreDriver = "redis"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Feed_Strategy = "scatter"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Feed_FanoutSlack = -1
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.StatusBackfill_IntervalSec = -5
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.StatusBackfill_Rate = -1
	assert.Error(t, cfg.Validate())
}
