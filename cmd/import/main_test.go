package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"hinan-bknd/internal/config"
	"hinan-bknd/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DatabaseDriver: config.DriverSQLite,
		DatabaseURL:    filepath.Join(t.TempDir(), "hinan.db"),
		ImportEncoding: config.EncodingUTF8,
		S3Region:       "ap-northeast-1",
	}
}

func fixtureArgs(extra ...string) []string {
	dir := filepath.Join("..", "..", "internal", "importer", "testdata")
	args := []string{
		"-hinanjo", filepath.Join(dir, "hinanjo.csv"),
		"-hinanbasyo", filepath.Join(dir, "hinanbasyo.csv"),
		"-kitakukonnan", filepath.Join(dir, "kitakukonnan.csv"),
	}
	return append(args, extra...)
}

func TestRun_ImportsFixtures(t *testing.T) {
	cfg := testConfig(t)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), cfg, zap.NewNop(), fixtureArgs("-truncate"), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "ALL Place records deleted (truncate): 0")
	assert.Contains(t, out, "hinanjo (避難所): 3 created")
	assert.Contains(t, out, "hinanbasyo (避難場所): 3 created")
	assert.Contains(t, out, "kitakukonnan (帰宅困難者支援施設): 3 created")
	assert.Contains(t, out, "Import completed. Total records: 9")

	stdout.Reset()
	code = run(context.Background(), cfg, zap.NewNop(), fixtureArgs("-truncate"), &stdout, &stderr)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "ALL Place records deleted (truncate): 9")
	assert.Contains(t, stdout.String(), "Total records: 9")
}

func TestRun_MissingFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	args := fixtureArgs()
	args[3] = "/nonexistent/hinanbasyo.csv"

	code := run(context.Background(), testConfig(t), zap.NewNop(), args, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "/nonexistent/hinanbasyo.csv")
	assert.Contains(t, stderr.String(), "Partial import: 3 records stored.")
	assert.Contains(t, stdout.String(), "hinanjo (避難所): 3 created")
	assert.NotContains(t, stdout.String(), "Import completed")
}

func TestRun_RequiresAllPaths(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), testConfig(t), zap.NewNop(), []string{"-hinanjo", "a.csv"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "kitakukonnan")
}

// syncRecorder is a log sink that remembers whether it was flushed.
type syncRecorder struct {
	bytes.Buffer
	synced bool
}

func (s *syncRecorder) Sync() error {
	s.synced = true
	return nil
}

func TestRunAndFlush_SyncsLoggerOnFailure(t *testing.T) {
	sink := &syncRecorder{}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), sink, zapcore.InfoLevel)
	logr := &logger.Logger{Logger: zap.New(core)}
	var stdout, stderr bytes.Buffer
	args := fixtureArgs()
	args[1] = "/nonexistent/hinanjo.csv"

	code := runAndFlush(context.Background(), testConfig(t), logr, args, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.True(t, sink.synced)
	assert.Contains(t, sink.String(), "import aborted")
}
