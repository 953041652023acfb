package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/go-rod/rod/lib/launcher"
	flag "github.com/spf13/pflag"

	url2pdf "github.com/alnah/go-url2pdf"
	"github.com/alnah/go-url2pdf/internal/config"
	"github.com/alnah/go-url2pdf/internal/fileutil"
	"github.com/alnah/go-url2pdf/internal/hints"
)

// Doctor statuses.
const (
	statusReady    = "ready"
	statusWarnings = "warnings"
	statusErrors   = "errors"
)

// ciEnvVars are set by common CI providers.
var ciEnvVars = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"}

// doctorResult is the outcome of every check, printed or encoded as JSON.
type doctorResult struct {
	Status   string       `json:"status"` // "ready", "warnings", "errors"
	Backend  string       `json:"backend"`
	Service  serviceInfo  `json:"service"`
	Renderer rendererInfo `json:"renderer"`
	Chrome   chromeInfo   `json:"chrome"`
	Env      envInfo      `json:"environment"`
	System   systemInfo   `json:"system"`
	Warnings []string     `json:"warnings,omitempty"`
	Errors   []string     `json:"errors,omitempty"`
}

// serviceInfo echoes the limits serve would start with.
type serviceInfo struct {
	Addr           string `json:"addr"`
	Workers        int    `json:"workers"`
	QueueDepth     int    `json:"queue_depth"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// rendererInfo holds renderer binary detection results.
type rendererInfo struct {
	Binary string `json:"binary"`
	Found  bool   `json:"found"`
	Path   string `json:"path,omitempty"`
}

// chromeInfo holds Chrome/Chromium detection results.
type chromeInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Sandbox bool   `json:"sandbox"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempDir      string `json:"temp_dir"`
	TempWritable bool   `json:"temp_writable"`
}

// runDoctorCmd checks whether serve could start with the resolved config.
// Exit codes: 0 = ready (warnings allowed), 1 = errors found, 2 = bad usage.
func runDoctorCmd(args []string, env *Environment) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	var (
		common     commonFlags
		jsonOutput bool
	)
	addCommonFlags(fs, &common)
	fs.BoolVar(&jsonOutput, "json", false, "machine-readable output")
	fs.Usage = func() { printDoctorUsage(env.Stderr) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitUsage
	}

	cfg, err := resolveConfig(&serveFlags{common: common, set: func(string) bool { return false }}, env.Stderr)
	if err != nil {
		fmt.Fprintf(env.Stderr, "url2pdf: %v\n", err)
		return exitCodeFor(err)
	}

	result := runDoctor(cfg)

	if jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == statusErrors {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks against cfg.
func runDoctor(cfg *config.Config) *doctorResult {
	result := &doctorResult{
		Status:  statusReady,
		Backend: cfg.Renderer.Backend,
		Env: envInfo{
			OS:   runtime.GOOS,
			Arch: runtime.GOARCH,
		},
	}

	checkEnvironment(result)
	checkService(result, cfg)
	checkRenderer(result, cfg)
	checkChrome(result, cfg)
	checkSystem(result, cfg)

	if len(result.Errors) > 0 {
		result.Status = statusErrors
	} else if len(result.Warnings) > 0 {
		result.Status = statusWarnings
	}
	return result
}

// checkService reports the resolved pool limits.
func checkService(result *doctorResult, cfg *config.Config) {
	result.Service = serviceInfo{
		Addr:           cfg.Addr(),
		Workers:        url2pdf.ResolvePoolSize(cfg.Pool.MaxConcurrentJobs),
		QueueDepth:     cfg.Pool.MaxQueueDepth,
		TimeoutSeconds: cfg.Renderer.TimeoutSeconds,
	}
	if cfg.Pool.MaxQueueDepth == 0 {
		result.Warnings = append(result.Warnings,
			"pool.maxQueueDepth is 0: requests beyond the worker count get 429 immediately")
	}
}

// checkRenderer resolves the process backend binary.
func checkRenderer(result *doctorResult, cfg *config.Config) {
	result.Renderer.Binary = cfg.Renderer.Binary
	if cfg.Renderer.Backend != config.BackendProcess {
		return
	}

	path, err := exec.LookPath(cfg.Renderer.Binary)
	if err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Renderer %q not found%s", cfg.Renderer.Binary, hints.ForRendererNotFound(cfg.Renderer.Binary)))
		return
	}
	result.Renderer.Found = true
	result.Renderer.Path = path
}

// checkChrome detects Chrome/Chromium. Missing Chrome is an error only for
// the chrome backend.
func checkChrome(result *doctorResult, cfg *config.Config) {
	report := func(msg string) {
		if cfg.Renderer.Backend == config.BackendChrome {
			result.Errors = append(result.Errors, msg+hints.ForBrowserConnect())
		}
	}

	chromePath := cfg.Renderer.BrowserBin
	if chromePath == "" {
		chromePath = os.Getenv("ROD_BROWSER_BIN")
	}
	if chromePath == "" {
		var found bool
		chromePath, found = launcher.LookPath()
		if !found {
			report("Chrome/Chromium not found")
			return
		}
	}

	if !fileutil.IsExecutable(chromePath) {
		report(fmt.Sprintf("Chrome not executable at %s", chromePath))
		return
	}

	result.Chrome.Found = true
	result.Chrome.Path = chromePath
	result.Chrome.Sandbox = !cfg.Renderer.NoSandbox

	out, err := exec.Command(chromePath, "--version").Output() // #nosec G204 -- operator-configured browser path
	if err == nil {
		result.Chrome.Version = strings.TrimSpace(string(out))
	} else if cfg.Renderer.Backend == config.BackendChrome {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Could not get Chrome version: %v", err))
	}

	if cfg.Renderer.Backend == config.BackendChrome && result.Chrome.Sandbox && (result.Env.Container || result.Env.CI) {
		result.Warnings = append(result.Warnings,
			"Container/CI detected with the Chrome sandbox enabled. Set renderer.noSandbox: true")
	}
}

// checkEnvironment flags containers and CI, where Chrome usually needs
// its sandbox disabled.
func checkEnvironment(result *doctorResult) {
	result.Env.Container, result.Env.ContainerHint = isContainer()
	for _, v := range ciEnvVars {
		if os.Getenv(v) != "" {
			result.Env.CI = true
			return
		}
	}
}

// isContainer returns whether we run in a container and which signal said so.
func isContainer() (bool, string) {
	if os.Getenv("URL2PDF_CONTAINER") == "1" {
		return true, "URL2PDF_CONTAINER=1"
	}
	if hints.IsInContainer() {
		return true, "/.dockerenv"
	}
	if v := os.Getenv("container"); v != "" {
		return true, "container=" + v
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkSystem verifies the workspace directory is writable.
func checkSystem(result *doctorResult, cfg *config.Config) {
	dir := cfg.Workspace.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	result.System.TempDir = dir

	if err := fileutil.CheckWritableDir(dir); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Temp directory not writable: %s%s", dir, hints.ForWorkspace()))
		return
	}
	result.System.TempWritable = true
}

// printDoctorResult writes the report grouped by section.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "url2pdf doctor")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Service")
	fmt.Fprintf(w, "  [OK] Listen: %s\n", r.Service.Addr)
	fmt.Fprintf(w, "  [OK] Pool: %d workers, queue depth %d, timeout %ds\n",
		r.Service.Workers, r.Service.QueueDepth, r.Service.TimeoutSeconds)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Renderer (%s backend)\n", r.Backend)
	if r.Backend == config.BackendProcess {
		if r.Renderer.Found {
			fmt.Fprintf(w, "  [OK] %s found at %s\n", r.Renderer.Binary, r.Renderer.Path)
		} else {
			fmt.Fprintf(w, "  [ERROR] %s not found\n", r.Renderer.Binary)
		}
	}
	if r.Chrome.Found {
		fmt.Fprintf(w, "  [OK] Chrome at %s\n", r.Chrome.Path)
		if r.Chrome.Version != "" {
			fmt.Fprintf(w, "  [OK] Version: %s\n", r.Chrome.Version)
		}
	} else if r.Backend == config.BackendChrome {
		fmt.Fprintln(w, "  [ERROR] Chrome not found")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		fmt.Fprintf(w, "  [OK] Container: detected (%s)\n", r.Env.ContainerHint)
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "System")
	if r.System.TempWritable {
		fmt.Fprintf(w, "  [OK] Temp directory: %s writable\n", r.System.TempDir)
	} else {
		fmt.Fprintf(w, "  [ERROR] Temp directory: %s not writable\n", r.System.TempDir)
	}
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
		}
		fmt.Fprintln(w)
	}

	switch r.Status {
	case statusReady:
		fmt.Fprintln(w, "Status: Ready to serve")
	case statusWarnings:
		fmt.Fprintln(w, "Status: Ready with warnings")
	case statusErrors:
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}
