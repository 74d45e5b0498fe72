package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"build", "sample", "fetch", "runs", "migrate"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "landslide-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestLoadConfig_LogLevelOverride(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zap.NewNop()))

	cmd := &cobra.Command{}
	cmd.Flags().String("log-level", "", "")
	require.NoError(t, cmd.Flags().Set("log-level", "debug"))

	c, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "debug", c.Log.Level)
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	require.NoError(t, cmd.Flags().Set("log-level", "loud"))
	_, err = loadConfig(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init logger")
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))
}

func TestBuildCommand_Flags(t *testing.T) {
	for _, name := range []string{"catalog", "output", "shapefile", "country", "seed", "min-distance", "target", "oracle", "concurrency", "no-store"} {
		assert.NotNil(t, buildCmd.Flags().Lookup(name), "build should have --%s flag", name)
	}
}

func TestSampleCommand_Flags(t *testing.T) {
	flag := sampleCmd.Flags().Lookup("format")
	require.NotNil(t, flag)
	assert.Equal(t, "csv", flag.DefValue)
	assert.Nil(t, sampleCmd.Flags().Lookup("shapefile"))
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "stats"} {
		assert.True(t, names[name], "runs should have subcommand %q", name)
	}

	flag := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}

func TestFetchCommand_Flags(t *testing.T) {
	assert.NotNil(t, fetchCmd.Flags().Lookup("url"))
	assert.NotNil(t, fetchCmd.Flags().Lookup("out"))
}
