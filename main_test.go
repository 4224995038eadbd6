package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cantalupo555/lobby-downloader/internal/browser"
	"github.com/cantalupo555/lobby-downloader/internal/config"
	"github.com/cantalupo555/lobby-downloader/internal/report"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LOBBY_URL", "LOBBY_URLS", "LOBBY_PAUSE", "DOWNLOAD_DIR", "BUTTON_SELECTOR", "BROWSER_EXEC",
		"HEADLESS", "SAVE_SNAPSHOT",
		"READY_TIMEOUT", "LOCATE_TIMEOUT", "CLICK_TIMEOUT", "DOWNLOAD_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestParseArgsVersionIgnoresBadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("READY_TIMEOUT", "abc")

	opts, err := parseArgs([]string{"-version"}, io.Discard)
	require.NoError(t, err)
	assert.True(t, opts.showVersion)
}

func TestParseArgsReportsBadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("READY_TIMEOUT", "abc")

	_, err := parseArgs(nil, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "READY_TIMEOUT")
}

func TestParseArgsRepeatedURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOBBY_URLS", "https://example.com/from-env")

	opts, err := parseArgs([]string{
		"-url", "https://example.com/lobbies/1",
		"-url", "https://example.com/lobbies/2,https://example.com/lobbies/3",
		"-pause", "250ms",
	}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://example.com/lobbies/1",
		"https://example.com/lobbies/2",
		"https://example.com/lobbies/3",
	}, opts.cfg.URLs)
	assert.Equal(t, 250*time.Millisecond, opts.cfg.Pause)
}

func TestParseArgsKeepsEnvURLs(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOBBY_URLS", "https://example.com/a https://example.com/b")

	opts, err := parseArgs(nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, opts.cfg.URLs)
}

func TestParseArgsUnknownFlag(t *testing.T) {
	clearEnv(t)
	_, err := parseArgs([]string{"-nope"}, io.Discard)
	assert.Error(t, err)
}

func TestExitMessage(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	msg := exitMessage(canceled, fmt.Errorf("click: %w", context.Canceled))
	assert.Contains(t, msg, "Interrupted")
	assert.NotContains(t, msg, "browser closed")

	msg = exitMessage(context.Background(), errors.New("websocket: close 1006"))
	assert.Contains(t, msg, "browser closed")

	msg = exitMessage(context.Background(), errors.New("1 of 2 lobbies failed"))
	assert.Equal(t, "Error: 1 of 2 lobbies failed", msg)
}

const exportPage = `<!DOCTYPE html>
<html><body>
<button class="MuiButton-outlined" onclick="location.href = '/export?name=%s'">Export</button>
</body></html>`

func newExportServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/lobbies/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/closed") {
			io.WriteString(w, "<html><body>lobby closed</body></html>")
			return
		}
		name := strings.ReplaceAll(strings.Trim(r.URL.Path, "/"), "/", "_") + "_scores.json"
		fmt.Fprintf(w, exportPage, name)
	})
	mux.HandleFunc("/export", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, r.URL.Query().Get("name")))
		io.WriteString(w, `{"scores": [1, 2, 3]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, urls ...string) config.Config {
	t.Helper()
	if testing.Short() {
		t.Skip("browser test skipped in short mode")
	}
	exec := browser.DetectBrowser()
	if exec == "" {
		t.Skip("no Chrome/Chromium installed")
	}

	cfg := config.Default()
	cfg.URLs = urls
	cfg.ExecPath = exec
	cfg.DownloadDir = t.TempDir()
	cfg.ReadyTimeout = 15 * time.Second
	cfg.LocateTimeout = 2 * time.Second
	cfg.ClickTimeout = 5 * time.Second
	cfg.DownloadTimeout = 15 * time.Second
	cfg.Pause = 0
	return cfg
}

func TestRunDownloadsLobby(t *testing.T) {
	srv := newExportServer(t)
	cfg := testConfig(t, srv.URL+"/lobbies/3/19882b")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stats := report.New(cfg.DownloadDir)
	require.NoError(t, run(ctx, cfg, stats))

	want := filepath.Join(cfg.DownloadDir, "lobbies_3_19882b_scores.json")
	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.JSONEq(t, `{"scores": [1, 2, 3]}`, string(data))

	assert.Equal(t, 1, stats.Succeeded())
	assert.Zero(t, stats.Failed())
	require.Len(t, stats.Lobbies, 1)
	assert.Equal(t, want, stats.Lobbies[0].File)
	assert.Equal(t, int64(len(data)), stats.Lobbies[0].FileSize)
}

func TestRunContinuesPastFailedLobby(t *testing.T) {
	srv := newExportServer(t)
	cfg := testConfig(t,
		srv.URL+"/lobbies/3/19882b",
		srv.URL+"/lobbies/5/closed",
		srv.URL+"/lobbies/4/a91cce",
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	stats := report.New(cfg.DownloadDir)
	err := run(ctx, cfg, stats)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 lobbies failed")

	assert.Equal(t, 2, stats.Succeeded())
	assert.Equal(t, 1, stats.Failed())
	assert.FileExists(t, filepath.Join(cfg.DownloadDir, "lobbies_3_19882b_scores.json"))
	assert.FileExists(t, filepath.Join(cfg.DownloadDir, "lobbies_4_a91cce_scores.json"))
	require.Len(t, stats.Lobbies, 3)
	assert.False(t, stats.Lobbies[1].OK())
}
