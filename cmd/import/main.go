// Command import loads the three Funabashi disaster facility CSV files into
// the places table.
//
//	import -hinanjo hinanjo.csv -hinanbasyo hinanbasyo.csv -kitakukonnan kitakukonnan.csv [-truncate]
//
// Paths may also be s3://bucket/key. Database and encoding settings come from
// the same environment as the server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"hinan-bknd/internal/config"
	"hinan-bknd/internal/database"
	"hinan-bknd/internal/importer"
	"hinan-bknd/internal/logger"
	"hinan-bknd/internal/services"
	"hinan-bknd/internal/source"

	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cfg := config.Load()
	code := runAndFlush(ctx, cfg, logger.New(cfg), os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// runAndFlush runs the import and syncs the logger before returning, since
// os.Exit skips deferred calls.
func runAndFlush(ctx context.Context, cfg *config.Config, logr *logger.Logger, args []string, stdout, stderr io.Writer) int {
	defer logr.Sync()
	return run(ctx, cfg, logr.Named("import"), args, stdout, stderr)
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var paths importer.Paths
	fs.StringVar(&paths.Shelter, "hinanjo", "", "path to the hinanjo (避難所) CSV")
	fs.StringVar(&paths.EvacuationSite, "hinanbasyo", "", "path to the hinanbasyo (避難場所) CSV")
	fs.StringVar(&paths.StrandedSupport, "kitakukonnan", "", "path to the kitakukonnan (帰宅困難者支援施設) CSV")
	truncate := fs.Bool("truncate", false, "delete all place records before import")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := paths.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return 2
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "invalid configuration:", err)
		return 1
	}

	db, err := database.New(cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	opener, err := source.NewRouterWithS3(ctx, source.S3Config{
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		PathStyle: cfg.S3PathStyle,
	})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	im := importer.New(services.NewPlaceService(db), opener, logr, importer.WithEncoding(cfg.ImportEncoding))
	report, err := im.Run(ctx, paths, *truncate)
	printReport(stdout, report)
	if err != nil {
		if errors.Is(err, importer.ErrMissingFile) {
			fmt.Fprintln(stderr, "File not found:", err)
		} else {
			fmt.Fprintln(stderr, "Import failed:", err)
		}
		if report != nil && report.Partial {
			fmt.Fprintf(stderr, "Partial import: %d records stored.\n", report.Total)
		}
		return 1
	}

	fmt.Fprintf(stdout, "Import completed. Total records: %d\n", report.Total)
	return 0
}

func printReport(w io.Writer, report *importer.Report) {
	if report == nil {
		return
	}
	if report.Truncated {
		fmt.Fprintf(w, "ALL Place records deleted (truncate): %d\n", report.Deleted)
	}
	for _, s := range report.Sources {
		fmt.Fprintf(w, "%s (%s): %d created", s.Source, s.Category, s.Created)
		if s.Skipped > 0 {
			fmt.Fprintf(w, ", %d malformed rows skipped", s.Skipped)
		}
		fmt.Fprintln(w)
	}
}
