package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/cantalupo555/lobby-downloader/internal/browser"
	"github.com/cantalupo555/lobby-downloader/internal/config"
)

type cliOptions struct {
	cfg         config.Config
	showVersion bool
}

// urlList collects repeated -url flags.
type urlList []string

func (u *urlList) String() string {
	return strings.Join(*u, ",")
}

func (u *urlList) Set(v string) error {
	urls := config.SplitURLs(v)
	if len(urls) == 0 {
		return errors.New("empty URL")
	}
	*u = append(*u, urls...)
	return nil
}

// parseArgs applies command-line flags on top of the environment.
// An invalid environment value is only reported when the run goes ahead,
// so -version always works.
func parseArgs(args []string, output io.Writer) (cliOptions, error) {
	var opts cliOptions

	cfg, loadErr := config.Load()
	if loadErr != nil {
		cfg = config.Default()
	}

	fs := flag.NewFlagSet("lobby-downloader", flag.ContinueOnError)
	fs.SetOutput(output)

	var urls urlList
	fs.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	fs.Var(&urls, "url", "Lobby page to open (repeatable, replaces LOBBY_URLS)")
	fs.StringVar(&cfg.DownloadDir, "download", cfg.DownloadDir, "Directory to save downloads")
	fs.StringVar(&cfg.Selector, "selector", cfg.Selector, "CSS selector of the download button")
	fs.StringVar(&cfg.ExecPath, "exec", cfg.ExecPath, "Browser executable (auto-detect if empty)")
	fs.BoolVar(&cfg.Headless, "headless", cfg.Headless, "Run the browser without a window")
	fs.BoolVar(&cfg.SaveSnapshot, "snapshot", cfg.SaveSnapshot, "Save each loaded page's HTML next to the downloads")
	fs.DurationVar(&cfg.ReadyTimeout, "ready-timeout", cfg.ReadyTimeout, "Max wait for a page to load")
	fs.DurationVar(&cfg.LocateTimeout, "locate-timeout", cfg.LocateTimeout, "Max wait for the button to appear")
	fs.DurationVar(&cfg.ClickTimeout, "click-timeout", cfg.ClickTimeout, "Max wait for the button to become clickable")
	fs.DurationVar(&cfg.DownloadTimeout, "download-timeout", cfg.DownloadTimeout, "Max wait for each file to land")
	fs.DurationVar(&cfg.Pause, "pause", cfg.Pause, "Wait between two lobbies")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.showVersion {
		return opts, nil
	}
	if loadErr != nil {
		return opts, fmt.Errorf("loading configuration: %w", loadErr)
	}
	if len(urls) > 0 {
		cfg.URLs = urls
	}
	opts.cfg = cfg
	return opts, nil
}

// exitMessage describes why a run ended with err. An interrupt is reported
// as such even though it also tears the browser down.
func exitMessage(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil:
		return fmt.Sprintf("Interrupted, run stopped before all lobbies were processed: %v", err)
	case browser.IsBrowserClosed(err):
		return fmt.Sprintf("Error: browser closed before the download finished: %v", err)
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}
