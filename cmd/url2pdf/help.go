package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: url2pdf [command] [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve      Run the HTTP service (default)")
	fmt.Fprintln(w, "  doctor     Check the renderer and environment")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'url2pdf help <command>' for details on a specific command.")
}

// printServeUsage prints usage for the serve command.
func printServeUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: url2pdf serve [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Serve GET /pdf?url=<url>&name=<name> and render pages to PDF.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Server:")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -p, --port <n>            Listen port (env PORT, default 8080)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Scheduling:")
	fmt.Fprintln(w, "  -w, --workers <n>         Concurrent jobs (env MAX_CONCURRENT_JOBS, default 4)")
	fmt.Fprintln(w, "      --queue-depth <n>     Waiting jobs (env MAX_QUEUE_DEPTH, default 20)")
	fmt.Fprintln(w, "  -t, --timeout <s>         Render timeout in seconds (env RENDER_TIMEOUT_SECONDS, default 30)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Renderer:")
	fmt.Fprintln(w, "      --renderer <s>        Backend: process, chrome (env URL2PDF_RENDERER)")
	fmt.Fprintln(w, "      --renderer-bin <path> Renderer binary (env URL2PDF_RENDERER_BIN)")
	fmt.Fprintln(w, "      --temp-dir <dir>      Temporary output directory (env URL2PDF_TEMP_DIR)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Logging:")
	fmt.Fprintln(w, "      --log-level <s>       debug, info, warn, error (env URL2PDF_LOG_LEVEL)")
	fmt.Fprintln(w, "      --log-format <s>      json, console (env URL2PDF_LOG_FORMAT)")
	fmt.Fprintln(w, "  -v, --verbose             Debug logging on the console")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Other:")
	fmt.Fprintln(w, "      --print-config        Print the effective config and exit")
}

// printDoctorUsage prints usage for the doctor command.
func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: url2pdf doctor [--json] [--config <name>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check that the configured renderer, Chrome and temp directory are usable.")
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return
	}

	switch args[0] {
	case "serve":
		printServeUsage(env.Stdout)
	case "doctor":
		printDoctorUsage(env.Stdout)
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: url2pdf version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: url2pdf help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
	}
}
