package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupConfigDir writes a config.yml pointing the database at a temp file.
func setupConfigDir(t *testing.T) string {
	dir := t.TempDir()
	cfg := fmt.Sprintf("logger:\n  level: error\ndatabase:\n  dsn: %s\n", filepath.Join(dir, "test.db"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(cfg), 0o600))
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_Strategies(t *testing.T) {
	dir := setupConfigDir(t)

	out, err := runCLI(t, "--config", dir, "strategies")

	require.NoError(t, err)
	assert.Contains(t, out, "martingale")
	assert.Contains(t, out, "Reverse Martingale")
}

func TestCLI_Describe(t *testing.T) {
	dir := setupConfigDir(t)

	out, err := runCLI(t, "--config", dir, "describe", "d_alembert", "--tab", "LEARN_MORE", "--tutorial")

	require.NoError(t, err)
	assert.Contains(t, out, `"font_size": "s"`)
	assert.Contains(t, out, "qs__long_description__title")
}

func TestCLI_ExpandExportAndBlocks(t *testing.T) {
	dir := setupConfigDir(t)

	out, err := runCLI(t, "--config", dir, "expand", "oscars_grind", "-d", "mine",
		"--set", "symbol=R_50,tradetype=callput,type=PUT,duration=3,stake=1,profit=10,loss=10")
	require.NoError(t, err)
	assert.Contains(t, out, "added 22 blocks to mine")

	out, err = runCLI(t, "--config", dir, "documents")
	require.NoError(t, err)
	assert.Equal(t, "mine\n", out)

	out, err = runCLI(t, "--config", dir, "blocks", "mine")
	require.NoError(t, err)
	assert.Contains(t, out, "trade_definition ")
	assert.Contains(t, out, "notify")

	out, err = runCLI(t, "--config", dir, "export", "mine")
	require.NoError(t, err)
	assert.Contains(t, out, `id="oscars_grind_market"`)
}

func TestCLI_DescribeUnknownStrategy(t *testing.T) {
	dir := setupConfigDir(t)

	_, err := runCLI(t, "--config", dir, "describe", "fibonacci")

	assert.Error(t, err)
}
