package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCommand_Help(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "AS2805 financial transaction switch")
	for _, sub := range []string{"serve", "send", "status"} {
		assert.Contains(t, out, sub)
	}
}

func TestRootCommand_Version(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "commit:")
}

func TestSubcommandHelp(t *testing.T) {
	out, err := execute(t, "serve", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--max-sessions")
	assert.Contains(t, out, "--approval-ceiling")

	out, err = execute(t, "send", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--nmic")
}

func TestSend_RejectsUnknownTemplate(t *testing.T) {
	_, err := execute(t, "send", "0999")
	assert.Error(t, err)
}

func TestApplyLogLevel(t *testing.T) {
	defer viper.Set("log.level", "info")

	viper.Set("log.level", "verbose")
	assert.Error(t, applyLogLevel(rootCmd, nil))

	viper.Set("log.level", "debug")
	assert.NoError(t, applyLogLevel(rootCmd, nil))
}

func TestInitConfig_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("switch:\n  listen: 127.0.0.1:9999\n"), 0600))

	prev := cfgFile
	cfgFile = path
	defer func() { cfgFile = prev }()

	initConfig()
	assert.Equal(t, "127.0.0.1:9999", viper.GetString("switch.listen"))
}
