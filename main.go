package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cantalupo555/lobby-downloader/internal/browser"
	"github.com/cantalupo555/lobby-downloader/internal/config"
	"github.com/cantalupo555/lobby-downloader/internal/download"
	"github.com/cantalupo555/lobby-downloader/internal/page"
	"github.com/cantalupo555/lobby-downloader/internal/report"
)

// appVersion is set at build time via -ldflags="-X main.appVersion=x.x.x"
var appVersion = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("⚠️ Warning: could not load .env file: %v", err)
	}

	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if opts.showVersion {
		fmt.Printf("lobby-downloader version %s\n", appVersion)
		os.Exit(0)
	}
	cfg := opts.cfg

	// Expand ~ in download path
	if strings.HasPrefix(cfg.DownloadDir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.DownloadDir = filepath.Join(home, cfg.DownloadDir[2:])
		}
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Error: %v", err)
	}
	if abs, err := filepath.Abs(cfg.DownloadDir); err == nil {
		cfg.DownloadDir = abs
	}

	cfg.ExecPath, err = browser.ResolveExec(cfg.ExecPath)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	log.Println("=== Lobby Downloader ===")
	log.Printf("Executable: %s", cfg.ExecPath)
	log.Printf("Lobbies: %d", len(cfg.URLs))
	for i, u := range cfg.URLs {
		log.Printf("  %d. %s", i+1, u)
	}
	log.Printf("Download: %s", cfg.DownloadDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats := report.New(cfg.DownloadDir)
	runErr := run(ctx, cfg, stats)
	stats.Print(os.Stdout)
	log.Println(stats.Summary())

	if runErr != nil {
		log.Fatal(exitMessage(ctx, runErr))
	}
}

func run(ctx context.Context, cfg config.Config, stats *report.Stats) error {
	bcfg := browser.DefaultConfig()
	bcfg.ExecPath = cfg.ExecPath
	bcfg.DownloadDir = cfg.DownloadDir
	bcfg.Headless = cfg.Headless

	bc, err := browser.New(bcfg)
	if err != nil {
		stats.AddError("init", err.Error())
		return err
	}
	session := page.NewSession(bc, log.Default())
	defer session.Close()

	if err := browser.ConfigureDownloads(session.Ctx(), cfg.DownloadDir); err != nil {
		stats.AddError("init", err.Error())
		return err
	}
	tracker := download.NewTracker(session.Ctx(), cfg.DownloadDir, log.Default())

	trigger := download.New(session, download.Options{
		Selector:        cfg.Selector,
		DownloadDir:     cfg.DownloadDir,
		SaveSnapshot:    cfg.SaveSnapshot,
		ReadyTimeout:    cfg.ReadyTimeout,
		LocateTimeout:   cfg.LocateTimeout,
		ClickTimeout:    cfg.ClickTimeout,
		DownloadTimeout: cfg.DownloadTimeout,
		Pause:           cfg.Pause,
		NewAwaiter:      tracker.Expect,
	})

	results, err := trigger.RunAll(ctx, cfg.URLs)
	for _, res := range results {
		lobby := report.Lobby{
			URL:        res.URL,
			Activation: string(res.Activation),
			File:       res.File,
			Snapshot:   res.Snapshot,
		}
		for _, msg := range res.Errors {
			stats.AddError("recovered", msg)
		}
		if res.Err != nil {
			lobby.Err = res.Err.Error()
			stats.AddError("after "+res.Reached.String(), res.Err.Error())
		}
		stats.AddLobby(lobby)
	}
	if err != nil {
		return err
	}

	if failed := stats.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d lobbies failed", failed, len(results))
	}
	log.Printf("Files were downloaded to: %s", cfg.DownloadDir)
	return nil
}
