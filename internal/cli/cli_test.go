package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/opbridge/pkg/config"
	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/aretw0/opbridge/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHost_Defaults(t *testing.T) {
	cfg := config.Default()
	cfg.Files.Root = t.TempDir()

	host, err := NewHost(cfg, nil)
	require.NoError(t, err)
	defer host.Close(context.Background())

	assert.Equal(t, []domain.OperationKind{domain.KindNetwork, domain.KindFileRead, domain.KindFileWrite}, host.Bridge.Kinds().Slice())
	assert.Nil(t, host.Source)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	path := filepath.Join(cfg.Files.Root, "note.txt")
	_, err = host.Bridge.WriteFile(ctx, path, []byte("hi"), domain.Overwrite)
	require.NoError(t, err)
	read, err := host.Bridge.ReadFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(read.Contents))
}

func TestNewHost_RedisFiles(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.Files = true
	disabled := false
	cfg.Network.Enabled = &disabled

	host, err := NewHost(cfg, nil)
	require.NoError(t, err)
	defer host.Close(context.Background())
	require.NotNil(t, host.Source)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = host.Bridge.WriteFile(ctx, "/notes/a", []byte("from redis"), domain.Overwrite)
	require.NoError(t, err)
	assert.True(t, mr.Exists("opbridge:file:/notes/a"), "redis wins over the local filesystem")
	assert.False(t, host.Bridge.Supports(domain.KindNetwork))
}

func TestNewHost_NothingEnabled(t *testing.T) {
	disabled := false
	cfg := config.Default()
	cfg.Network.Enabled = &disabled
	cfg.Files.Enabled = &disabled

	_, err := NewHost(cfg, nil)
	assert.ErrorContains(t, err, "no executor enabled")
}

func TestNewHost_RecordsMetrics(t *testing.T) {
	cfg := config.Default()
	cfg.Files.Root = t.TempDir()
	host, err := NewHost(cfg, nil)
	require.NoError(t, err)
	defer host.Close(context.Background())

	_, err = host.Bridge.ReadFile(context.Background(), filepath.Join(cfg.Files.Root, "missing"))
	require.NoError(t, err)

	families, err := host.Metrics.Registry().Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "opbridge_dispatch_total")
}

func TestPrinter_JSONWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)
	require.True(t, p.JSON())

	require.NoError(t, p.Outcome(domain.FileWriteSuccess(domain.FileWriteResponse{Status: domain.WriteStatusDidWrite})))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "file_write", decoded["kind"])
	assert.Equal(t, true, decoded["ok"])
}

func TestPrinter_Subscriptions(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true)
	p.Message("ignored in json mode")
	require.NoError(t, p.Subscriptions([]stream.Info{{Name: "ticks", State: stream.StateActive}}))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "ticks", decoded[0]["name"])
}

func TestSignalManager_Stop(t *testing.T) {
	sm := NewSignalManager(context.Background())
	sm.Stop()
	sm.Stop()

	select {
	case <-sm.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled by Stop")
	}
	assert.Nil(t, sm.Signal())
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LogConfig{Level: "warn"}, false)
	require.NoError(t, err)
	assert.False(t, logger.Enabled(context.Background(), -4))

	logger, err = NewLogger(config.LogConfig{Level: "warn"}, true)
	require.NoError(t, err)
	assert.True(t, logger.Enabled(context.Background(), -4))

	_, err = NewLogger(config.LogConfig{Level: "shout"}, false)
	assert.Error(t, err)
}
