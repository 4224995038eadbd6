// Package report collects run statistics and prints the final summary.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// ErrorEntry represents a single error that occurred during execution.
type ErrorEntry struct {
	Timestamp time.Time
	Stage     string
	Message   string
}

// Lobby is the outcome for one lobby page.
type Lobby struct {
	URL        string
	Activation string
	File       string
	FileSize   int64
	Snapshot   string
	// Err is empty when the lobby's file was downloaded.
	Err string
}

// OK reports whether the lobby's file was downloaded.
func (l Lobby) OK() bool {
	return l.Err == "" && l.File != ""
}

// Stats holds everything recorded about one run.
type Stats struct {
	RunID       string
	DownloadDir string
	StartTime   time.Time
	EndTime     time.Time
	Lobbies     []Lobby
	Errors      []ErrorEntry
}

// New creates a Stats with a fresh run ID and StartTime set to now.
func New(downloadDir string) *Stats {
	return &Stats{
		RunID:       uuid.NewString(),
		DownloadDir: downloadDir,
		StartTime:   time.Now(),
	}
}

// AddError records an error that occurred at stage.
func (s *Stats) AddError(stage, message string) {
	s.Errors = append(s.Errors, ErrorEntry{
		Timestamp: time.Now(),
		Stage:     stage,
		Message:   message,
	})
}

// AddLobby records one lobby's outcome. The file size is read from disk
// when it is not set.
func (s *Stats) AddLobby(l Lobby) {
	if l.File != "" && l.FileSize == 0 {
		if info, err := os.Stat(l.File); err == nil {
			l.FileSize = info.Size()
		}
	}
	s.Lobbies = append(s.Lobbies, l)
}

// Finish marks the end time of the execution.
func (s *Stats) Finish() {
	if s.EndTime.IsZero() {
		s.EndTime = time.Now()
	}
}

// Succeeded returns the number of lobbies whose file was downloaded.
func (s *Stats) Succeeded() int {
	n := 0
	for _, l := range s.Lobbies {
		if l.OK() {
			n++
		}
	}
	return n
}

// Failed returns the number of lobbies without a downloaded file.
func (s *Stats) Failed() int {
	return len(s.Lobbies) - s.Succeeded()
}

// Duration returns the total execution duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	d = d.Round(time.Second)
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second

	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

const (
	boxWidth   = 60
	labelWidth = 14
	maxErrors  = 5
)

// Print writes the final report box to w.
func (s *Stats) Print(w io.Writer) {
	s.Finish()

	rule := func(ch string) {
		fmt.Fprintf(w, "%s%s%s\n", colorCyan, strings.Repeat(ch, boxWidth), colorReset)
	}
	row := func(label, value, color string) {
		if color != "" {
			value = color + value + colorReset
		}
		fmt.Fprintf(w, "  %-*s %s\n", labelWidth, label, value)
	}

	fmt.Fprintln(w)
	rule("=")
	title := "FINAL REPORT"
	fmt.Fprintf(w, "%s%s%s%s\n", strings.Repeat(" ", (boxWidth-len(title))/2), colorBold, title, colorReset)
	rule("-")

	row("Run", s.RunID, "")
	row("Duration", formatDuration(s.Duration()), "")
	row("Folder", s.DownloadDir, "")

	for i, l := range s.Lobbies {
		rule("-")
		if l.OK() {
			row(fmt.Sprintf("[%d] Lobby", i+1), l.URL, colorGreen)
		} else {
			row(fmt.Sprintf("[%d] Lobby", i+1), l.URL, colorRed)
		}

		switch l.Activation {
		case "":
			row("Click", "not reached", colorRed)
		case "native":
			row("Click", l.Activation, colorGreen)
		default:
			row("Click", l.Activation+" (fallback)", colorYellow)
		}

		if l.OK() {
			row("File", l.File, colorGreen)
			row("Size", humanize.Bytes(uint64(l.FileSize)), "")
		} else {
			row("File", "none", colorRed)
			row("Error", l.Err, colorRed)
		}
		if l.Snapshot != "" {
			row("Snapshot", l.Snapshot, "")
		}
	}

	rule("-")
	row("Successful", fmt.Sprintf("%d", s.Succeeded()), colorGreen)
	if failed := s.Failed(); failed > 0 {
		row("Failed", fmt.Sprintf("%d", failed), colorRed)
	} else {
		row("Failed", "0", "")
	}

	if len(s.Errors) == 0 {
		row("Errors", "none", colorGreen)
	} else {
		row("Errors", fmt.Sprintf("%d", len(s.Errors)), colorRed)
		for i, e := range s.Errors {
			if i >= maxErrors {
				fmt.Fprintf(w, "      %s... and %d more errors%s\n", colorRed, len(s.Errors)-maxErrors, colorReset)
				break
			}
			fmt.Fprintf(w, "      %s- [%s] %s%s\n", colorRed, e.Stage, e.Message, colorReset)
		}
	}
	rule("=")
	fmt.Fprintln(w)
}

// Summary returns a brief one-line summary of the stats.
func (s *Stats) Summary() string {
	var size uint64
	for _, l := range s.Lobbies {
		if l.OK() {
			size += uint64(l.FileSize)
		}
	}
	return fmt.Sprintf("run %s: %d/%d lobbies downloaded (%s), %d failed, %d errors in %s",
		s.RunID, s.Succeeded(), len(s.Lobbies), humanize.Bytes(size), s.Failed(), len(s.Errors), formatDuration(s.Duration()))
}
