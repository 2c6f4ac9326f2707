// Command platereader reads the registration from a photo of an Indian licence
// plate, or serves the recognition API with -listen.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/banshee-data/gatepass/internal/api"
	"github.com/banshee-data/gatepass/internal/capture"
	"github.com/banshee-data/gatepass/internal/config"
	"github.com/banshee-data/gatepass/internal/monitoring"
	"github.com/banshee-data/gatepass/internal/plate/debug"
	"github.com/banshee-data/gatepass/internal/plate/pipeline"
	"github.com/banshee-data/gatepass/internal/plate/preprocess"
	"github.com/banshee-data/gatepass/internal/plate/recognize"
	"github.com/banshee-data/gatepass/internal/version"
)

// Exit codes.
const (
	exitOK      = 0
	exitError   = 1
	exitUsage   = 2
	exitNoPlate = 3
)

type options struct {
	image    string
	config   string
	listen   string
	endpoint string
	debugDir string
	logLevel string
	parallel bool
	jsonOut  bool
	version  bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("platereader", flag.ContinueOnError)
	fs.SetOutput(stderr)
	o := &options{}
	fs.StringVar(&o.image, "image", "", "Path to a plate photo")
	fs.StringVar(&o.config, "config", "", "Pipeline config JSON (default: built-in defaults)")
	fs.StringVar(&o.listen, "listen", "", "Serve the HTTP API on this address instead of reading -image")
	fs.StringVar(&o.endpoint, "endpoint", "", "Remote OCR endpoint; overrides recognizer_endpoint in the config")
	fs.StringVar(&o.debugDir, "debug-dir", "", "Write each preprocessed variant and the candidates here")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.BoolVar(&o.parallel, "parallel", false, "Run preprocessing modes concurrently")
	fs.BoolVar(&o.jsonOut, "json", false, "Print the full result as JSON")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if !o.version && (o.image == "") == (o.listen == "") {
		return nil, errors.New("exactly one of -image or -listen is required")
	}
	return o, nil
}

func loadConfig(path string) (*config.PipelineConfig, error) {
	if path == "" {
		return config.EmptyPipelineConfig(), nil
	}
	return config.LoadPipelineConfig(path)
}

// newRecognizer prefers a configured remote endpoint and falls back to the
// embedded Tesseract engine.
func newRecognizer(cfg *config.PipelineConfig, endpoint string) (recognize.Recognizer, error) {
	if endpoint == "" {
		endpoint = cfg.GetRecognizerEndpoint()
	}
	if endpoint != "" {
		monitoring.Logf("using remote recognizer at %s", endpoint)
		return recognize.NewRemote(endpoint, nil), nil
	}
	return recognize.NewTesseract()
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	if o.version {
		fmt.Fprintf(stdout, "platereader %s\n", version.String())
		return exitOK
	}
	monitoring.Setup(stderr, monitoring.ParseLevel(o.logLevel), true)

	cfg, err := loadConfig(o.config)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitUsage
	}
	rec, err := newRecognizer(cfg, o.endpoint)
	if err != nil {
		fmt.Fprintf(stderr, "recognizer: %v\n", err)
		return exitError
	}
	p := pipeline.NewFromConfig(cfg, rec)
	if o.parallel {
		p.Parallel = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if o.listen != "" {
		if err := api.NewServer(p, cfg).ListenAndServe(ctx, o.listen); err != nil {
			fmt.Fprintln(stderr, err)
			return exitError
		}
		monitoring.Logf("Graceful shutdown complete")
		return exitOK
	}
	return readImage(ctx, p, cfg.FrameSettings(), o, stdout, stderr)
}

func readImage(ctx context.Context, p *pipeline.Pipeline, settings preprocess.Settings, o *options, stdout, stderr io.Writer) int {
	original, err := capture.FileSource{Path: o.image}.AcquireFrame(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "read %s: %v\n", o.image, err)
		return exitError
	}
	img := capture.Prepare(original, settings)

	var dumper *debug.StageDumper
	if o.debugDir != "" {
		prefix := strings.TrimSuffix(filepath.Base(o.image), filepath.Ext(o.image))
		if dumper, err = debug.NewStageDumper(o.debugDir, prefix); err != nil {
			fmt.Fprintln(stderr, err)
			return exitError
		}
		if err := dumper.SaveOriginal(original); err != nil {
			monitoring.Logf("debug: %v", err)
		}
		p.Observer = dumper
		scores := preprocess.RotationScores(img, p.Preprocessor.Angles)
		if err := debug.PlotRotationScores(scores, "Rotation edge scores", dumper.Path("rotation")); err != nil {
			monitoring.Logf("debug: %v", err)
		}
	}

	res, err := p.WithLanguage(settings.Language).RecognizeAdjusted(ctx, original, img)
	if dumper != nil {
		if werr := dumper.WriteCandidates(); werr != nil {
			monitoring.Logf("debug: %v", werr)
		}
	}
	var failure *pipeline.RecognitionFailure
	switch {
	case errors.As(err, &failure):
		fmt.Fprintln(stderr, failure.Reason)
		for _, a := range failure.Attempts {
			fmt.Fprintf(stderr, "  %-10s %-14q %5.1f %s\n", a.Mode, a.Cleaned, a.Confidence, a.Error)
		}
		return exitNoPlate
	case err != nil:
		fmt.Fprintln(stderr, err)
		return exitError
	}

	if o.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			fmt.Fprintln(stderr, err)
			return exitError
		}
		return exitOK
	}
	fmt.Fprintf(stdout, "%s\t%.1f\t%s\n", res.CanonicalPlate, res.Confidence, res.Method)
	return exitOK
}
