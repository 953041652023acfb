package url2pdf_test

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/alnah/go-url2pdf"
)

// pdfStub stands in for a real renderer so the examples run anywhere.
type pdfStub struct{}

func (pdfStub) Render(ctx context.Context, sourceURL, outputPath string) error {
	return os.WriteFile(outputPath, []byte("%PDF-1.4\n% "+sourceURL+"\n"), 0o600)
}

func (pdfStub) Close() error { return nil }

// Example converts one URL with a custom Renderer.
// Use NewProcessRenderer or NewChromeRenderer in real deployments.
func Example() {
	dir, err := os.MkdirTemp("", "url2pdf-example")
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer os.RemoveAll(dir)

	ws, err := url2pdf.NewWorkspace(dir)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer ws.Close()

	conv, err := url2pdf.NewConverter(pdfStub{}, ws, url2pdf.SchedulerConfig{Workers: 2, QueueDepth: 4})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	conv.Start()
	defer conv.Shutdown(context.Background())

	req, err := url2pdf.NewRequest("https://example.com/invoice/42", "invoice-42.pdf")
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	artifact, err := conv.Convert(context.Background(), req)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer artifact.Release()

	if err := artifact.Verify(); err == nil {
		fmt.Println("PDF ready:", req.Filename())
	}
	// Output: PDF ready: invoice-42.pdf
}

// ExampleNewRequest shows how validation errors are classified.
func ExampleNewRequest() {
	inputs := []struct{ url, name string }{
		{"https://example.com", "report"},
		{"file:///etc/passwd", "report"},
		{"https://example.com", "../../etc/cron.d/x"},
	}

	for _, in := range inputs {
		_, err := url2pdf.NewRequest(in.url, in.name)
		switch {
		case err == nil:
			fmt.Println("ok")
		case errors.Is(err, url2pdf.ErrInvalidURL):
			fmt.Println("bad url")
		case errors.Is(err, url2pdf.ErrInvalidName):
			fmt.Println("bad name")
		}
	}
	// Output:
	// ok
	// bad url
	// bad name
}

// ExampleValidateName shows the default name and the ".pdf" suffix.
func ExampleValidateName() {
	for _, name := range []string{"", "summary.pdf", "q4_report"} {
		got, _ := url2pdf.ValidateName(name)
		fmt.Println(got)
	}
	// Output:
	// document
	// summary
	// q4_report
}
