package browser

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ErrNoBrowser is returned when no Chrome-compatible executable can be found.
var ErrNoBrowser = errors.New("could not find Chrome/Chromium, install it or pass -exec")

// pathNames are looked up in $PATH after the well-known locations.
var pathNames = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"}

var lookPath = exec.LookPath

// ResolveExec returns execPath when set, otherwise the first detected browser.
func ResolveExec(execPath string) (string, error) {
	if execPath != "" {
		return execPath, nil
	}
	if found := DetectBrowser(); found != "" {
		return found, nil
	}
	return "", ErrNoBrowser
}

// DetectBrowser attempts to find a Chrome/Chromium executable on the system.
// Returns an empty string if none is installed.
func DetectBrowser() string {
	return detectFrom(candidates(runtime.GOOS))
}

func detectFrom(paths []string) string {
	for _, path := range paths {
		if path == "" {
			continue
		}
		expanded := os.ExpandEnv(path)
		if info, err := os.Stat(expanded); err == nil && !info.IsDir() {
			return expanded
		}
	}

	for _, name := range pathNames {
		if path, err := lookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// candidates lists install locations per OS, Chrome first and Brave last.
func candidates(goos string) []string {
	switch goos {
	case "windows":
		programFiles := os.Getenv("ProgramFiles")
		programFilesX86 := os.Getenv("ProgramFiles(x86)")
		localAppData := os.Getenv("LOCALAPPDATA")
		return []string{
			filepath.Join(programFiles, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(programFilesX86, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(localAppData, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(programFiles, "Chromium", "Application", "chrome.exe"),
			filepath.Join(localAppData, "Chromium", "Application", "chrome.exe"),
			filepath.Join(programFiles, "Microsoft", "Edge", "Application", "msedge.exe"),
			filepath.Join(programFilesX86, "Microsoft", "Edge", "Application", "msedge.exe"),
			filepath.Join(programFiles, "BraveSoftware", "Brave-Browser", "Application", "brave.exe"),
		}
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"$HOME/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
			"/Applications/Brave Browser.app/Contents/MacOS/Brave Browser",
		}
	default:
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
			"/usr/bin/microsoft-edge-stable",
			"/usr/bin/brave-browser",
		}
	}
}
