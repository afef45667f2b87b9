package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLogLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	require.Equal(t, slog.LevelError, parseLogLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLogLevel(""))
}

func TestLogFileWriter_Truncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "wrangler.log")
	w, err := newLogFileWriter(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.file.Close() })

	chunk := bytes.Repeat([]byte("a"), 1024*1024)
	for range 6 {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}
	_, err = w.Write([]byte("tail\n"))
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(keepLogSizeBytes), info.Size())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasSuffix(data, []byte("tail\n")))
}

func TestLoadConfig_Flags(t *testing.T) {
	for _, key := range []string{"WRANGLER_CONFIG_PATH", "MODEL", "SAMPLING_MODEL", "PORT", "WRANGLER_SERVER_PORT", "MCP_SERVER_URL"} {
		t.Setenv(key, "")
	}
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--port", "9100", "--model", "flag-model", "--env-file", filepath.Join(t.TempDir(), "none.env")}))

	var f flags
	f.port, _ = cmd.Flags().GetInt("port")
	f.model, _ = cmd.Flags().GetString("model")
	f.envFile, _ = cmd.Flags().GetString("env-file")

	cfg, err := loadConfig(cmd, f)
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "flag-model", cfg.OpenAI.Model)
	require.Equal(t, "flag-model", cfg.OpenAI.SamplingModel)
}

func TestLoadConfig_MissingAPIKey(t *testing.T) {
	t.Setenv("WRANGLER_CONFIG_PATH", "")
	t.Setenv("OPENAI_API_KEY", "")

	cmd := newRootCmd()
	_, err := loadConfig(cmd, flags{envFile: filepath.Join(t.TempDir(), "none.env")})
	require.ErrorContains(t, err, "OPENAI_API_KEY")
}
