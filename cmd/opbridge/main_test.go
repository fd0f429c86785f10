package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func filesOnlyConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "opbridge.json")
	body := `{"network": {"enabled": false}, "files": {"root": "` + filepath.ToSlash(dir) + `"}, "log": {"level": "error"}}`
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o644))
	return cfg, dir
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "opbridge version")
}

func TestWriteThenRead(t *testing.T) {
	cfg, dir := filesOnlyConfig(t)
	path := filepath.Join(dir, "hello.txt")

	out, err := run(t, "from stdin", "--config", cfg, "--json", "write", path)
	require.NoError(t, err)
	var written map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &written))
	assert.Equal(t, true, written["ok"])

	out, err = run(t, "", "--config", cfg, "--json", "write", path, "ignored", "--strategy", "abort")
	require.NoError(t, err)
	assert.Contains(t, out, "overwrite_aborted")

	out, err = run(t, "", "--config", cfg, "--json", "read", path)
	require.NoError(t, err)
	var read struct {
		Value struct {
			Contents []byte `json:"contents"`
		} `json:"value"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &read))
	assert.Equal(t, "from stdin", string(read.Value.Contents))
}

func TestFetchUnsupported(t *testing.T) {
	cfg, _ := filesOnlyConfig(t)
	_, err := run(t, "", "--config", cfg, "fetch", "https://example.com")
	assert.ErrorContains(t, err, "not supported")
}

func TestWatchRequiresOneSource(t *testing.T) {
	_, err := run(t, "", "watch", "--channel", "a", "--url", "http://b")
	assert.ErrorContains(t, err, "exactly one of")
}
