package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/insightdelivered/spendsense/internal/aggregate"
	"github.com/insightdelivered/spendsense/internal/api"
	"github.com/insightdelivered/spendsense/internal/category"
	"github.com/insightdelivered/spendsense/internal/config"
	"github.com/insightdelivered/spendsense/internal/logger"
	"github.com/insightdelivered/spendsense/internal/models"
	"github.com/insightdelivered/spendsense/internal/parser"
	"github.com/insightdelivered/spendsense/internal/pipeline"
	"github.com/insightdelivered/spendsense/internal/service"
	"github.com/insightdelivered/spendsense/internal/session"
	"github.com/insightdelivered/spendsense/internal/writer"
)

func main() {
	// CLI flags
	formatFlag := flag.String("format", "", "Statement layout: rbc, original, ledger (auto-detected if omitted)")
	exportFlag := flag.String("export", "csv", "Export type: csv or excel")
	outputFlag := flag.String("output", "", "Output file path (defaults to input filename with the export extension)")
	summaryFlag := flag.Bool("summary", false, "Append category and grand totals to the export")
	serveFlag := flag.Bool("serve", false, "Run the HTTP API instead of converting files")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	helpFlag := flag.Bool("help", false, "Show usage help")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `SpendSense statement converter
by Insight Delivered

Extracts transactions from card and bank statements (PDF or text),
categorizes them and exports CSV or Excel files.

Usage:
  spendsense [flags] <statement> [statement2 ...]
  spendsense -serve

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Auto-detect layout and convert to CSV
  spendsense statement.pdf

  # Force a layout and export Excel with totals
  spendsense -format=original -export=excel -summary statement.pdf

  # Run the API on APP_PORT (default 8000)
  spendsense -serve

Supported layouts:
  rbc       - credit card statement (MON DD transaction and posting dates)
  original  - cardmember statement (D Mon YYYY or D/M/YY dates, day-first; per-cardmember sections)
  ledger    - bank ledger (DD.MM.YYYY dates, DR/CR indicators)
`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("spendsense v%s\n", api.Version)
		os.Exit(0)
	}

	cfg := config.Load()
	log := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProd())
	defer log.Sync()

	classifier, err := loadClassifier(cfg.Processing.CategoryRulesPath)
	if err != nil {
		fatalf("%v\n", err)
	}

	if *serveFlag {
		if err := serve(cfg, classifier, log); err != nil {
			log.Error("main", "server stopped", map[string]interface{}{"error": err})
			os.Exit(1)
		}
		return
	}

	if *helpFlag || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	format := models.FormatUnknown
	if *formatFlag != "" {
		if format, err = parser.ParseFormat(*formatFlag); err != nil {
			fatalf("%v. Supported: rbc, original, ledger\n", err)
		}
	}
	kind, err := writer.ParseKind(*exportFlag)
	if err != nil {
		fatalf("%v\n", err)
	}
	if *outputFlag != "" && flag.NArg() > 1 {
		fatalf("-output can only be used with a single input file\n")
	}

	p := pipeline.New(pipeline.Config{
		MaxDocumentBytes: cfg.Processing.MaxUploadBytes,
		Timeout:          cfg.Processing.Timeout,
		CardmemberHints:  cfg.Processing.CardmemberHints,
	}, classifier, log, nil)

	for _, inputPath := range flag.Args() {
		if err := processFile(p, inputPath, format, kind, *outputFlag, *summaryFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", inputPath, err)
			os.Exit(1)
		}
	}
}

func loadClassifier(path string) (category.Classifier, error) {
	if path == "" {
		return category.NewDefault(), nil
	}
	rules, err := category.LoadRules(path)
	if err != nil {
		return nil, err
	}
	return category.NewEngine(rules), nil
}

func processFile(p *pipeline.Pipeline, inputPath string, format models.FormatType, kind writer.Kind, outputPath string, includeSummary bool) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Printf("Processing: %s\n", inputPath)

	result, err := p.ProcessAs(context.Background(), data, format, nil)
	if err != nil {
		return err
	}

	currency := aggregate.Currency(result)
	fmt.Printf("  Layout: %s\n", result.FormatType)
	fmt.Printf("  Found %d transaction(s)", result.TransactionCount)
	if result.DateRange != nil {
		fmt.Printf(" from %s to %s", result.DateRange.Min, result.DateRange.Max)
	}
	fmt.Println()
	for _, g := range aggregate.ByCategory(result) {
		fmt.Printf("    %-16s %4d  %s\n", g.Key, g.Count, aggregate.Display(g.Total, currency))
	}
	fmt.Printf("  Total: %s\n", aggregate.Display(result.TotalAmount, currency))

	if n := len(result.Warnings); n > 0 {
		fmt.Printf("  Warning: %d row(s) skipped\n", n)
		for _, w := range result.Warnings {
			fmt.Printf("    page %d line %d: %s\n", w.Page, w.Line, w.Reason)
		}
	}

	outPath := outputPath
	if outPath == "" {
		outPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + kind.Extension()
	}
	out, err := writer.Export(kind, result, includeSummary)
	if err != nil {
		return fmt.Errorf("%s export failed: %w", kind, err)
	}
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	fmt.Printf("  Output: %s\n", outPath)
	fmt.Println("  Done.")
	return nil
}

func serve(cfg *config.Config, classifier category.Classifier, log logger.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store := session.NewMemoryStore(cfg.Session.TTL)
	sweeper, err := session.NewSweeper(store, cfg.Session.SweepInterval, log)
	if err != nil {
		return fmt.Errorf("scheduling session sweep: %w", err)
	}

	p := pipeline.New(pipeline.Config{
		MaxDocumentBytes: cfg.Processing.MaxUploadBytes,
		Timeout:          cfg.Processing.Timeout,
		CardmemberHints:  cfg.Processing.CardmemberHints,
	}, classifier, log, pipeline.NewMetrics(reg))

	svc := service.NewStatementService(store, p, log, cfg.Processing.MaxUploadBytes)
	h := api.NewHandler(svc, log, api.NewLimiter(cfg.App.ProcessRate, cfg.App.ProcessBurst))
	app := api.NewApp(api.ServerConfig{
		CorsAllowedOrigins: cfg.App.CorsAllowedOrigins,
		MaxUploadBytes:     cfg.Processing.MaxUploadBytes,
	}, h, reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper.Start()
	defer sweeper.Stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("main", "server listening", map[string]interface{}{"port": cfg.App.Port, "env": cfg.App.Environment})
		errCh <- app.Listen(":" + cfg.App.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("main", "shutting down", nil)
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
