package url2pdf

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/go-url2pdf/internal/process"
)

// ChromeRenderer renders URLs with an external headless Chrome driven
// over the DevTools protocol. One browser is shared; every render gets
// its own page.
type ChromeRenderer struct {
	page       PageSettings
	browserBin string
	noSandbox  bool

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// ChromeOption configures a ChromeRenderer.
type ChromeOption func(*ChromeRenderer)

// WithBrowserBin uses a pre-installed browser instead of letting rod
// locate or download one.
func WithBrowserBin(path string) ChromeOption {
	return func(r *ChromeRenderer) {
		r.browserBin = path
	}
}

// WithNoSandbox disables the Chrome sandbox (containers, CI).
func WithNoSandbox(disable bool) ChromeOption {
	return func(r *ChromeRenderer) {
		r.noSandbox = disable
	}
}

// NewChromeRenderer creates a ChromeRenderer. The browser is launched
// lazily on the first render.
func NewChromeRenderer(page PageSettings, opts ...ChromeOption) (*ChromeRenderer, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	r := &ChromeRenderer{page: page}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ensureBrowser lazily launches and connects to the browser.
func (r *ChromeRenderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New()
	if r.browserBin != "" {
		l = l.Bin(r.browserBin)
	}
	if r.noSandbox {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	r.launcher = l
	r.browser = browser
	return browser, nil
}

// Render loads sourceURL in a new page and prints it to outputPath.
func (r *ChromeRenderer) Render(ctx context.Context, sourceURL, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return contextError(err)
	}

	browser, err := r.ensureBrowser()
	if err != nil {
		return err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return r.fail(ctx, "creating page", err)
	}
	// Closed through the base page, which is not bound to ctx, so the tab
	// goes away even when ctx is already done.
	defer func() { _ = page.Close() }()

	p := page.Context(ctx)

	if err := p.Navigate(sourceURL); err != nil {
		return r.fail(ctx, "navigating", err)
	}
	if err := p.WaitLoad(); err != nil {
		return r.fail(ctx, "waiting for load", err)
	}

	reader, err := p.PDF(r.printOptions())
	if err != nil {
		return r.fail(ctx, "printing", err)
	}

	if err := writeOutput(outputPath, reader); err != nil {
		return r.fail(ctx, "writing output", err)
	}

	if err := verifyOutput(outputPath); err != nil {
		return &RenderError{Err: err}
	}
	return nil
}

// fail classifies a browser error, preferring the context's verdict.
func (r *ChromeRenderer) fail(ctx context.Context, stage string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return contextError(ctxErr)
	}
	return &RenderError{ExitCode: -1, Err: fmt.Errorf("%s: %w", stage, err)}
}

// printOptions builds the print request from the page settings.
func (r *ChromeRenderer) printOptions() *proto.PagePrintToPDF {
	width, height := r.page.Dimensions()
	return &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(width),
		PaperHeight:     floatPtr(height),
		MarginTop:       floatPtr(r.page.Margin),
		MarginBottom:    floatPtr(r.page.Margin),
		MarginLeft:      floatPtr(r.page.Margin),
		MarginRight:     floatPtr(r.page.Margin),
		PrintBackground: true,
	}
}

// Close shuts the browser down and reaps its process tree.
func (r *ChromeRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	if pid := r.launcher.PID(); pid > 0 {
		process.KillProcessGroup(pid)
	}
	r.launcher.Kill()
	r.browser = nil
	r.launcher = nil
	return err
}

// writeOutput streams src into a new file at path.
func writeOutput(path string, src io.Reader) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// floatPtr returns a pointer to a float64 value.
func floatPtr(v float64) *float64 {
	return &v
}
