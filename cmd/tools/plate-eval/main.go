// Command plate-eval runs the plate pipeline over a directory of labelled
// photos, records every outcome in an evaluation database and optionally
// writes an HTML report.
//
// A photo's expected plate is its file name up to the first '_' or '.', e.g.
// MH12AB1234_night.jpg.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/banshee-data/gatepass/internal/capture"
	"github.com/banshee-data/gatepass/internal/config"
	"github.com/banshee-data/gatepass/internal/evalstore"
	"github.com/banshee-data/gatepass/internal/monitoring"
	"github.com/banshee-data/gatepass/internal/plate/debug"
	"github.com/banshee-data/gatepass/internal/plate/pipeline"
	"github.com/banshee-data/gatepass/internal/plate/recognize"
	"github.com/banshee-data/gatepass/internal/version"
)

func main() {
	dir := flag.String("dir", "", "Directory of labelled plate photos (required)")
	dbPath := flag.String("db", "plate-eval.db", "Evaluation database path")
	configPath := flag.String("config", "", "Pipeline config JSON (default: built-in defaults)")
	endpoint := flag.String("endpoint", "", "Remote OCR endpoint; overrides recognizer_endpoint in the config")
	reportPath := flag.String("report", "", "Write an HTML report to this path")
	notes := flag.String("notes", "", "Free-form notes stored with the run")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "-dir is required")
		flag.Usage()
		os.Exit(2)
	}
	monitoring.Setup(os.Stderr, monitoring.ParseLevel(*logLevel), true)

	cfg := config.EmptyPipelineConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadPipelineConfig(*configPath); err != nil {
			fatalf("config: %v", err)
		}
	}
	rec, err := newRecognizer(cfg, *endpoint)
	if err != nil {
		fatalf("recognizer: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := evaluate(ctx, evalOptions{
		dir:        *dir,
		dbPath:     *dbPath,
		reportPath: *reportPath,
		notes:      *notes,
		cfg:        cfg,
		rec:        rec,
	})
	if err != nil {
		fatalf("%v", err)
	}
	printSummary(os.Stdout, summary)
}

func fatalf(format string, v ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", v...)
	os.Exit(1)
}

func newRecognizer(cfg *config.PipelineConfig, endpoint string) (recognize.Recognizer, error) {
	if endpoint == "" {
		endpoint = cfg.GetRecognizerEndpoint()
	}
	if endpoint != "" {
		return recognize.NewRemote(endpoint, nil), nil
	}
	return recognize.NewTesseract()
}

type evalOptions struct {
	dir        string
	dbPath     string
	reportPath string
	notes      string
	cfg        *config.PipelineConfig
	rec        recognize.Recognizer
}

func evaluate(ctx context.Context, o evalOptions) (*evalstore.Summary, error) {
	paths, err := capture.ListFrames(o.dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images in %s", o.dir)
	}

	store, err := evalstore.Open(o.dbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	cfgJSON, err := json.Marshal(o.cfg.Resolved())
	if err != nil {
		return nil, err
	}
	h := &evalstore.Harness{
		Pipeline: pipeline.NewFromConfig(o.cfg, o.rec),
		Store:    store,
		Settings: o.cfg.FrameSettings(),
		Observe: func(r *evalstore.Result) {
			status := "ok"
			switch {
			case r.Error != "":
				status = "error"
			case !r.Correct:
				status = "wrong"
			}
			monitoring.Logf("%-5s %s expected=%s got=%s", status, filepath.Base(r.ImagePath), r.Expected, r.Got)
		},
	}

	run := &evalstore.Run{Version: version.Version, ConfigJSON: cfgJSON, Notes: o.notes}
	runID, err := h.Run(ctx, run, paths)
	if err != nil {
		return nil, err
	}

	summary, err := store.Summarize(ctx, runID)
	if err != nil {
		return nil, err
	}
	if o.reportPath != "" {
		results, err := store.Results(ctx, runID)
		if err != nil {
			return nil, err
		}
		if err := writeReport(o.reportPath, runID, results); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

func writeReport(path, runID string, results []*evalstore.Result) error {
	rows := make([]debug.ReportRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, debug.ReportRow{
			Label:      filepath.Base(r.ImagePath),
			Expected:   r.Expected,
			Got:        r.Got,
			Method:     r.Method,
			Confidence: r.Confidence,
			Correct:    r.Correct,
		})
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()
	return debug.RenderReport(f, "Plate evaluation "+runID, rows)
}

func printSummary(w io.Writer, s *evalstore.Summary) {
	fmt.Fprintf(w, "run %s\n", s.RunID)
	fmt.Fprintf(w, "  frames:     %d\n", s.Total)
	fmt.Fprintf(w, "  correct:    %d (%.1f%%)\n", s.Correct, 100*s.Accuracy)
	fmt.Fprintf(w, "  failed:     %d\n", s.Failed)
	fmt.Fprintf(w, "  confidence: %.1f ± %.1f\n", s.MeanConfidence, s.StdDevConfidence)

	methods := make([]string, 0, len(s.ByMethod))
	for m := range s.ByMethod {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	for _, m := range methods {
		ms := s.ByMethod[m]
		fmt.Fprintf(w, "  %-10s  %d/%d\n", m, ms.Correct, ms.Total)
	}
}
