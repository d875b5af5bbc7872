package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, ":8080", cfg.EndpointAddrHTTP)
	assert.Equal(t, time.Hour, cfg.UploadURLValidity)
	assert.Equal(t, 72*time.Hour, cfg.PurgeGracePeriod)
	assert.Equal(t, 24*time.Hour, cfg.SweepInterval)
	assert.NotEmpty(t, cfg.DatabaseDSN)
}

func TestParseFlags_Overrides(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()
	os.Args = []string{"test", "-a", ":9999", "-q", "https://sqs.example.com/q", "-t", "30"}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, ":9999", cfg.EndpointAddrHTTP)
	assert.Equal(t, "https://sqs.example.com/q", cfg.SQSQueueURL)
	assert.Equal(t, 30*time.Minute, cfg.UploadURLValidity)
}

func TestParseJson_Overlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"endpoint_addr_http": ":7070",
		"database_dsn": "postgres://u:p@db:5432/x",
		"secret_key": "k",
		"s3_public_url": "https://cdn.example.com",
		"sqs_queue_url": "https://sqs.example.com/q2",
		"upload_url_validity": "45m",
		"purge_grace_period": "96h",
		"sweep_interval": "12h"
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	origArgs := os.Args
	defer func() { os.Args = origArgs }()
	os.Args = []string{"test", "-c", path}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, ":7070", cfg.EndpointAddrHTTP)
	assert.Equal(t, "https://cdn.example.com", cfg.S3PublicURL)
	assert.Equal(t, 45*time.Minute, cfg.UploadURLValidity)
	assert.Equal(t, 96*time.Hour, cfg.PurgeGracePeriod)
	assert.Equal(t, 12*time.Hour, cfg.SweepInterval)
}
