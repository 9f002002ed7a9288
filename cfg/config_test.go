package cfg

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlagsDefaultsUnmarshalIntoConfig(t *testing.T) {
	viper.Reset()
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(flagSet))

	var c Config
	require.NoError(t, viper.Unmarshal(&c))

	assert.Equal(t, 1, c.Scheduler.Parallelism)
	assert.Equal(t, uint64(64<<20), c.VM.UserSpaceInitSize)
	assert.Equal(t, uint64(1<<30), c.VM.UserSpaceMaxSize)
	assert.Equal(t, 1024, c.PageCache.HighWaterPages)
	assert.Equal(t, "text", c.Logging.Format)
	assert.Equal(t, "info", c.Logging.Level)
}

func TestBindFlagsHonorsExplicitFlagValue(t *testing.T) {
	viper.Reset()
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(flagSet))
	require.NoError(t, flagSet.Parse([]string{"--parallelism=4", "--log-level=debug"}))

	var c Config
	require.NoError(t, viper.Unmarshal(&c))

	assert.Equal(t, 4, c.Scheduler.Parallelism)
	assert.Equal(t, "debug", c.Logging.Level)
}
