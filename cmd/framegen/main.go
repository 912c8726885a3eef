// Command framegen turns a CSV or XLSX file into bar chart race frames.
//
//	framegen -in sales.csv -duration 20 -fps 30 -top 10 -out frames.csv
//
// Without -date-column or -columns the file is analyzed first and the
// detected columns are used. -analyze prints the analysis and exits.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"barrace/internal/config"
	"barrace/internal/dataprocessing"
	"barrace/internal/exporter"
	"barrace/internal/frames"
	"barrace/internal/infrastructure"
	"barrace/internal/validation"
	"barrace/pkg/contracts/domain"
)

type options struct {
	in         string
	out        string
	sheet      string
	dateColumn string
	columns    []string
	dateFormat string
	interp     string
	duration   float64
	fps        int
	top        int
	batch      int
	precision  int
	analyze    bool
	noHeader   bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	var columns string

	fs := flag.NewFlagSet("framegen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.in, "in", "", "input .csv or .xlsx file (required)")
	fs.StringVar(&opts.out, "out", "frames.json", "output file; .json writes the series, .csv writes one row per ranked item")
	fs.StringVar(&opts.sheet, "sheet", "", "workbook sheet for .xlsx input (default first non-empty sheet)")
	fs.StringVar(&opts.dateColumn, "date-column", "", "date column (default detected)")
	fs.StringVar(&columns, "columns", "", "comma-separated value columns (default detected)")
	fs.StringVar(&opts.dateFormat, "date-format", "", "date format, e.g. YYYY-MM-DD (default detected)")
	fs.StringVar(&opts.interp, "interp", "", "interpolation: linear, smooth, step or none")
	fs.Float64Var(&opts.duration, "duration", 10, "race length in seconds")
	fs.IntVar(&opts.fps, "fps", 0, "frames per second")
	fs.IntVar(&opts.top, "top", 0, "number of ranked items per frame")
	fs.IntVar(&opts.batch, "batch", config.FrameBatchSize, "frames generated between writes for .csv output")
	fs.IntVar(&opts.precision, "precision", -1, "decimals for .csv values; negative keeps full precision")
	fs.BoolVar(&opts.analyze, "analyze", false, "print the detected columns and exit")
	fs.BoolVar(&opts.noHeader, "no-header", false, "first line is data; columns are named Date, Column1, Column2... (default detected)")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.in == "" {
		return options{}, errors.New("-in is required")
	}
	for _, c := range strings.Split(columns, ",") {
		if c = strings.TrimSpace(c); c != "" {
			opts.columns = append(opts.columns, c)
		}
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to read .env file", slog.String("error", err.Error()))
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", slog.String("error", err.Error()))
		cfg = config.Default()
	}
	logger := infrastructure.NewLogger(cfg.Logging, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, cfg, os.Stdout, logger); err != nil {
		logger.Error("framegen failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, cfg *config.Config, stdout io.Writer, logger *slog.Logger) error {
	// Inputs must fit under the memory ceiling
	files := validation.NewFileValidator(logger, cfg.Cache.MemoryCeilingMB<<20)
	if err := files.ValidateInput(opts.in); err != nil {
		return err
	}
	if !opts.analyze {
		if err := files.ValidateOutput(opts.out); err != nil {
			return err
		}
	}

	dataset, err := dataprocessing.NewLoader(opts.sheet, logger).Load(opts.in)
	if err != nil {
		return err
	}

	engineOpts := config.EngineOptions{
		DateColumn:    opts.dateColumn,
		ValueColumns:  opts.columns,
		DateFormat:    opts.dateFormat,
		Interpolation: opts.interp,
		FPS:           opts.fps,
		TopN:          opts.top,
	}
	if opts.noHeader {
		hasHeader := false
		engineOpts.HasHeader = &hasHeader
	}

	if opts.analyze || engineOpts.DateColumn == "" || len(engineOpts.ValueColumns) == 0 {
		meta, err := dataprocessing.NewAnalyzer(logger).Analyze(dataset.Content)
		if err != nil {
			return err
		}
		meta.Filename = filepath.Base(opts.in)
		if opts.analyze {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(meta)
		}
		applyDetected(&engineOpts, meta)
	}
	if engineOpts.DateFormat == "" {
		hasHeader := engineOpts.HasHeader == nil || *engineOpts.HasHeader
		engineOpts.DateFormat = string(dataprocessing.DetectDateFormat(dataset.Content, engineOpts.DateColumn, hasHeader))
	}

	engineCfg, err := engineOpts.Build(cfg.Engine)
	if err != nil {
		return err
	}

	format, err := exporter.FormatFromPath(opts.out)
	if err != nil {
		return err
	}

	start := time.Now()
	var series *domain.ProcessedSeries
	switch format {
	case exporter.FormatCSV:
		series, err = generateCSV(ctx, opts, engineCfg, dataset.Content, logger)
	default:
		series, err = generateJSON(ctx, opts, engineCfg, dataset.Content, logger)
	}
	if err != nil {
		return err
	}

	logger.Info("frames written",
		slog.String("in", opts.in),
		slog.String("out", opts.out),
		slog.Int("frames", series.TotalFrames),
		slog.Int("categories", len(series.Categories)),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// applyDetected fills the options the user left out from the analysis.
func applyDetected(o *config.EngineOptions, meta *domain.CSVMetadata) {
	if o.DateColumn == "" {
		o.DateColumn = meta.DateColumn
	}
	if len(o.ValueColumns) == 0 {
		o.ValueColumns = meta.ValueColumns
	}
	if o.DateFormat == "" {
		o.DateFormat = string(meta.DateFormat)
	}
	if o.HasHeader == nil {
		hasHeader := meta.HasHeader
		o.HasHeader = &hasHeader
	}
}

// generateCSV writes frames batch by batch as they are generated.
func generateCSV(ctx context.Context, opts options, cfg config.EngineConfig, content string, logger *slog.Logger) (*domain.ProcessedSeries, error) {
	writer := exporter.NewCSVWriter("", logger)
	stream, err := writer.CreateStreamWriter(opts.out, exporter.WriteOptions{Precision: opts.precision})
	if err != nil {
		return nil, err
	}

	processor, err := frames.NewProcessor(cfg,
		frames.WithLogger(logger),
		frames.WithBatchSize(opts.batch),
		frames.WithOnBatch(stream.WriteBatch),
	)
	if err != nil {
		stream.Close()
		return nil, err
	}

	series, err := processor.Process(ctx, content, opts.duration)
	if closeErr := stream.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}
	return series, nil
}

func generateJSON(ctx context.Context, opts options, cfg config.EngineConfig, content string, logger *slog.Logger) (*domain.ProcessedSeries, error) {
	processor, err := frames.NewProcessor(cfg, frames.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	series, err := processor.Process(ctx, content, opts.duration)
	if err != nil {
		return nil, err
	}
	if err := exporter.Export(opts.out, series); err != nil {
		return nil, err
	}
	return series, nil
}
