// Command idcheck runs one capture check against a photo on disk:
//
//	idcheck -side FRONT -image photo.jpg
//
// It prints the verdict message and exits 0 for VALID, 1 for INVALID and 2
// when the check could not run.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/idcard-check/internal/capture"
	"github.com/example/idcard-check/internal/config"
	"github.com/example/idcard-check/internal/document"
	"github.com/example/idcard-check/internal/logging"
	"github.com/example/idcard-check/internal/messages"
	"github.com/example/idcard-check/internal/policy"
	"github.com/example/idcard-check/internal/providers"
)

const (
	exitValid   = 0
	exitInvalid = 1
	exitUsage   = 2
)

// openDetector connects the detection backend for a run.
type openDetector func(ctx context.Context, cfg *config.Checker, logger *zap.Logger) (policy.Detector, io.Closer, error)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, openProviders)
	stop()
	os.Exit(code)
}

func openProviders(ctx context.Context, cfg *config.Checker, logger *zap.Logger) (policy.Detector, io.Closer, error) {
	return providers.Open(ctx, cfg, logger)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, open openDetector) int {
	flags := flag.NewFlagSet("idcheck", flag.ContinueOnError)
	flags.SetOutput(stderr)
	sideFlag := flags.String("side", "", "side to check: FRONT, BACK or FACE")
	imagePath := flags.String("image", "", "path of the photo to check")
	lang := flags.String("lang", "en", "message language")
	if err := flags.Parse(args); err != nil {
		return exitUsage
	}
	if *sideFlag == "" || *imagePath == "" {
		flags.Usage()
		return exitUsage
	}

	side, err := document.ParseSide(*sideFlag)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	cfg, err := config.LoadChecker()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	defer logger.Sync() //nolint:errcheck

	detector, closer, err := open(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(stderr, "open detection providers:", err)
		return exitUsage
	}
	defer closer.Close()

	dir, err := os.MkdirTemp("", "idcheck-*")
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	defer os.RemoveAll(dir)

	store, err := capture.NewFileStore(dir)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	catalog := messages.NewCatalog()
	validation := policy.New(detector, policy.Keywords{Front: cfg.FrontKeywords, Back: cfg.BackKeywords}, logger)
	notifier := capture.Notifiers{capture.NewLogNotifier(logger), writerNotifier{w: stdout}}
	coordinator := capture.NewCoordinator(store, validation, notifier, catalog, logger)

	ctx = messages.WithLanguage(ctx, catalog.Match(*lang))
	outcome, err := coordinator.SelectSide(ctx, side, capture.FileProvider{Store: store, Owner: "cli", Path: *imagePath})
	if err != nil {
		fmt.Fprintln(stderr, "check failed:", err)
		return exitUsage
	}

	if outcome.Result.IsValid() {
		return exitValid
	}
	return exitInvalid
}

// writerNotifier prints every message on its own line.
type writerNotifier struct {
	w io.Writer
}

func (n writerNotifier) ShowMessage(ctx context.Context, text string) {
	fmt.Fprintln(n.w, text)
}
