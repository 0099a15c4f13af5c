package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	cfgpkg "github.com/local/pagecomposer/internal/config"
	"github.com/local/pagecomposer/internal/dispatcher"
	"github.com/local/pagecomposer/internal/document"
	"github.com/local/pagecomposer/internal/pdfops"
	"github.com/local/pagecomposer/internal/pipeline"
	"github.com/local/pagecomposer/internal/raster"
)

const (
	exitOK      = 0
	exitConfig  = 1
	exitPartial = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		in       = flag.String("in", "", "input PDF (or comma-separated PDFs for -mode merge)")
		second   = flag.String("second", "", "second PDF for -mode pair-documents")
		outDir   = flag.String("out", "output", "output directory")
		mode     = flag.String("mode", "pair", "pair | quad | pair-documents | merge | split | encrypt | decrypt | watermark")
		format   = flag.String("format", "pdf", "output format: pdf | png | jpg")
		dpi      = flag.Int("dpi", 0, "render DPI (default from env)")
		stretch  = flag.Bool("stretch", false, "stretch pages to fill instead of preserving aspect ratio")
		noMargin = flag.Bool("no-margin", false, "disable the margin before each half")
		noFit    = flag.Bool("no-autofit", false, "keep clamped scales even when a page overflows its half")
		workers  = flag.Int("workers", 0, "worker count (0 = one per CPU)")
		password = flag.String("password", "", "password for encrypt/decrypt")
		text     = flag.String("text", "", "watermark text")
		asJSON   = flag.Bool("json", false, "print the batch report as JSON")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	lvl := zerolog.WarnLevel
	if *verbose {
		lvl = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "missing -in")
		flag.Usage()
		return exitConfig
	}

	switch *mode {
	case "merge":
		return fatalIf(pdfops.Merge(strings.Split(*in, ","), outPath(*outDir, "merged.pdf")))
	case "split":
		return fatalIf(pdfops.Split(*in, *outDir))
	case "encrypt":
		if *password == "" {
			fmt.Fprintln(os.Stderr, "encrypt requires -password")
			return exitConfig
		}
		return fatalIf(pdfops.Encrypt(*in, outPath(*outDir, "encrypted.pdf"), *password))
	case "decrypt":
		if *password == "" {
			fmt.Fprintln(os.Stderr, "decrypt requires -password")
			return exitConfig
		}
		return fatalIf(pdfops.Decrypt(*in, outPath(*outDir, "decrypted.pdf"), *password))
	case "watermark":
		if *text == "" {
			fmt.Fprintln(os.Stderr, "watermark requires -text")
			return exitConfig
		}
		return fatalIf(pdfops.Watermark(*in, outPath(*outDir, "watermarked.pdf"), *text))
	case "pair", "quad", "pair-documents":
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		return exitConfig
	}

	chain, err := raster.Select()
	if err != nil {
		fmt.Fprintf(os.Stderr, "no raster backend available: %v\n", err)
		return exitConfig
	}

	opts := cfg.Compose.Options()
	if *dpi > 0 {
		opts.DPI = *dpi
	}
	opts.PreserveAspectRatio = !*stretch
	opts.AddMargin = !*noMargin
	opts.AutoFit = !*noFit

	doc, err := document.Open(*in)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}

	var jobs []dispatcher.Job
	switch *mode {
	case "quad":
		jobs = dispatcher.QuadJobs(doc, opts, *outDir, *format, cfg.Worker.JobTimeout)
	case "pair-documents":
		if *second == "" {
			fmt.Fprintln(os.Stderr, "pair-documents requires -second")
			return exitConfig
		}
		sec, err := document.Open(*second)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitConfig
		}
		jobs = dispatcher.PairDocuments(doc, sec, opts, *outDir, *format, cfg.Worker.JobTimeout)
	default:
		jobs = dispatcher.PairJobs(doc, opts, *outDir, *format, cfg.Worker.JobTimeout)
	}

	pool, err := dispatcher.NewPool(pipeline.New(chain), *workers)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	batch := pool.Run(ctx, jobs)

	if *asJSON {
		if b, err := batch.JSON(); err == nil {
			fmt.Println(string(b))
		}
	} else {
		fmt.Println(batch.Summary())
	}

	if batch.AllSucceeded() {
		return exitOK
	}
	return exitPartial
}

func fatalIf(err error) int {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitPartial
	}
	return exitOK
}

func outPath(dir, name string) string {
	return filepath.Join(dir, name)
}
