package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-listings/app"
	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}
	config.BindFlags(flag.CommandLine, cfg)
	flag.Parse()
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)

	logger, level := app.NewLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	a, err := app.New(cfg, nil)
	if err != nil {
		slog.Error("initialising", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, releasing browser")
		a.Close()
	}()

	os.Exit(run(ctx, a))
}

func run(ctx context.Context, a *app.App) int {
	defer a.Close()
	cfg := a.Config

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	slog.Info("starting batch",
		slog.Int("targets", len(a.Targets)),
		slog.String("site", cfg.SiteURL),
		slog.String("output", cfg.OutputFile),
	)

	start := time.Now()
	result := a.Pipeline.SummarizeAll(ctx, a.Targets)
	if err := pipeline.Export(writer, result); err != nil {
		slog.Error("export failed", slog.Any("error", err))
		return 1
	}

	printSummary(result, time.Since(start), cfg.OutputFile, a.Pipeline.GetMetrics())
	if ctx.Err() != nil {
		return 130
	}
	return 0
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".jsonl"
		return pipeline.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(result models.BatchResult, duration time.Duration, outputFile string, metrics map[string]interface{}) {
	ok := 0
	listings := 0
	for _, entry := range result {
		if entry.OK {
			ok++
		}
		listings += entry.Sale.Count + entry.Jeonse.Count + entry.Monthly.Count
	}

	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Batch complete")
	fmt.Printf("  Summaries:     %d\n", len(result))
	fmt.Printf("  Succeeded:     %d\n", ok)
	fmt.Printf("  Failed:        %d\n", len(result)-ok)
	fmt.Printf("  Listings:      %d\n", listings)
	if failures, found := metrics["failures"].(map[string]int); found && len(failures) > 0 {
		fmt.Printf("  Failure kinds: %v\n", failures)
	}
	fmt.Printf("  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}
