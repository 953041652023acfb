// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"os"
	"os/exec"
	"strings"

	"github.com/alnah/go-url2pdf/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// LookPath is exec.LookPath, replaceable in tests.
var LookPath = exec.LookPath

// ForRendererNotFound returns hints for a missing renderer binary.
// Suggests npx when the default electron-pdf binary is not installed globally.
func ForRendererNotFound(binary string) string {
	hints := []string{"set --renderer-bin or URL2PDF_RENDERER_BIN"}

	if binary == "electron-pdf" {
		if _, err := LookPath("npx"); err == nil {
			hints = append([]string{"use renderer.binary: npx with renderer.args: [electron-pdf]"}, hints...)
		} else {
			hints = append([]string{"install it with: npm install -g electron-pdf"}, hints...)
		}
	}
	return formatHints(hints)
}

// ForBrowserConnect returns hints for browser launch errors.
// Detects CI/Docker environment and suggests the sandbox switch.
func ForBrowserConnect() string {
	var hints []string

	inCI := os.Getenv("CI") != "" ||
		os.Getenv("GITHUB_ACTIONS") != "" ||
		os.Getenv("GITLAB_CI") != "" ||
		os.Getenv("JENKINS_URL") != ""

	if inCI || IsInContainer() {
		hints = append(hints, "set renderer.noSandbox: true for Docker/CI")
	}
	if os.Getenv("ROD_BROWSER_BIN") == "" {
		hints = append(hints, "set renderer.browserBin or ROD_BROWSER_BIN to use a custom Chrome")
	}
	return formatHints(hints)
}

// ForListen returns a hint for listener bind failures.
func ForListen() string {
	return format("is the port already in use? choose another with --port or PORT")
}

// ForWorkspace returns a hint for temp directory failures.
func ForWorkspace() string {
	return format("check the directory exists and is writable, or set --temp-dir")
}

// ForConfigNotFound returns hints for config file not found errors.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	for _, p := range searchedPaths {
		if strings.Contains(p, "go-url2pdf") {
			hint += " or create " + p
			break
		}
	}
	return format(hint)
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
