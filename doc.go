// Package url2pdf converts web pages to PDF through an external renderer,
// with bounded concurrency and guaranteed cleanup.
//
// # Quick Start
//
// Pick a renderer, a workspace for temporary output, and start a converter:
//
//	renderer, err := url2pdf.NewProcessRenderer("electron-pdf", nil, 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ws, err := url2pdf.NewWorkspace("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ws.Close()
//	conv, err := url2pdf.NewConverter(renderer, ws, url2pdf.SchedulerConfig{
//	    Workers:    4,
//	    QueueDepth: 20,
//	    Timeout:    30 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	conv.Start()
//	defer conv.Shutdown(context.Background())
//
//	req, err := url2pdf.NewRequest("https://example.com", "example")
//	if err != nil {
//	    log.Fatal(err) // wraps ErrInvalidInput
//	}
//	artifact, err := conv.Convert(ctx, req)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer artifact.Release()
//
// # Scheduling
//
// Jobs run on a fixed number of worker slots. Up to QueueDepth further
// jobs wait in FIFO order; anything beyond that fails immediately with
// ErrOverloaded. Each job gets Timeout from the moment it starts running.
// Canceling the context passed to Convert cancels the job, terminating the
// renderer's process group.
//
// # Renderers
//
// ProcessRenderer invokes a binary as
//
//	<binary> [args...] <sourceURL> <outputPath>
//
// with an argument vector, never a shell. ChromeRenderer drives an
// external headless Chrome through go-rod instead.
//
// # Errors
//
// Failures wrap one of ErrInvalidInput, ErrOverloaded, ErrRenderTimedOut,
// ErrRenderFailed, ErrCanceled or ErrInternal; use errors.Is to classify.
package url2pdf
