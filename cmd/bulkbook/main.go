// Command bulkbook checks attendee files and books them without the web
// console.
//
//	bulkbook validate [-category NAME] PATH...
//	bulkbook template [-format csv|txt|xlsx] [-o FILE]
//	bulkbook book -event ID [-category NAME] FILE
//
// validate accepts directories and checks every supported file inside them.
// book reads BOOKING_API_URL and the other booking settings from the
// environment (or a .env file).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/bulkbook/internal/booking"
	"github.com/JonMunkholm/bulkbook/internal/config"
	"github.com/JonMunkholm/bulkbook/internal/core"
	"github.com/JonMunkholm/bulkbook/internal/logging"
	"github.com/joho/godotenv"
)

const defaultCategory = "General Admission"

// errProblems means the command ran but found invalid input.
var errProblems = errors.New("problems found")

func main() {
	_ = godotenv.Load()
	slog.SetDefault(logging.New(os.Stderr, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT")))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	var err error
	switch args[0] {
	case "validate":
		err = validateCmd(args[1:], stdout, stderr)
	case "template":
		err = templateCmd(args[1:], stdout, stderr)
	case "book":
		err = bookCmd(ctx, args[1:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errProblems):
		return 1
	default:
		var usageErr usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintln(stderr, usageErr)
			return 2
		}
		fmt.Fprintln(stderr, core.FormatUserError(err))
		slog.Debug("command failed", "command", args[0], "error", err)
		return 1
	}
}

type usageError string

func (e usageError) Error() string { return string(e) }

func usage(w io.Writer) {
	fmt.Fprint(w, `usage:
  bulkbook validate [-category NAME] PATH...
  bulkbook template [-format csv|txt|xlsx] [-o FILE]
  bulkbook book -event ID [-category NAME] FILE
`)
}

func validateCmd(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	category := fs.String("category", defaultCategory, "category for rows without one")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usageError("validate: at least one file or directory is required")
	}

	files, err := collectFiles(fs.Args())
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return usageError("validate: no .csv, .txt, .xlsx or .xls files found")
	}
	return validateFiles(files, *category, stdout)
}

func templateCmd(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("template", flag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("format", "csv", "template format: csv, txt or xlsx")
	out := fs.String("o", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	data, err := core.Template(core.FileFormat(*format))
	if err != nil {
		return err
	}
	if *out == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	fmt.Fprintf(stdout, "wrote %s\n", *out)
	return nil
}

func bookCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("book", flag.ContinueOnError)
	fs.SetOutput(stderr)
	eventID := fs.String("event", "", "event ID to book tickets for (required)")
	category := fs.String("category", "", "category for rows without one (default SESSION_DEFAULT_CATEGORY)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *eventID == "" || fs.NArg() != 1 {
		return usageError("book: -event and exactly one FILE are required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *category == "" {
		*category = cfg.Session.DefaultCategory
	}

	client := booking.NewClient(booking.Config{
		BaseURL: cfg.Booking.BaseURL,
		Path:    cfg.Booking.Path,
		Timeout: cfg.Booking.HTTPTimeout,
		Token:   cfg.Booking.Token,
	}, nil)

	return bookFile(ctx, client, *eventID, fs.Arg(0), *category, stdout)
}
