package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/yaml"

	"github.com/specx2/openapi-irgen/core/diag"
	"github.com/specx2/openapi-irgen/core/ir"
	"github.com/specx2/openapi-irgen/core/parser"
	"github.com/specx2/openapi-irgen/internal/config"
)

// Spec describes an OpenAPI document to interpret.
type Spec struct {
	// Path to the OpenAPI document, used for output naming and for resolving
	// relative references.
	Path string
	// Data optionally holds the document bytes; Path is read when empty.
	Data []byte
}

// Options controls runner construction.
type Options struct {
	Specs        []Spec
	Format       string
	OutputDir    string
	CheckSchemas bool
	Concurrency  int
	Timeout      time.Duration
	Headers      http.Header
	Logger       log.Logger
}

// Result is the outcome of interpreting one spec.
type Result struct {
	Spec     Spec
	Document *ir.Document
	Output   []byte
	// Err is set when the document could not be loaded or encoded.
	Err error
	// Problems holds request bodies that were skipped and schemas that do not
	// compile.
	Problems    error
	Diagnostics []diag.Diagnostic
}

func (r Result) Failed(strict bool) bool {
	return r.Err != nil || (strict && r.Problems != nil)
}

type Runner struct {
	options    Options
	logger     log.Logger
	httpClient parser.HTTPClient
}

func New(opts Options) (*Runner, error) {
	if len(opts.Specs) == 0 {
		return nil, fmt.Errorf("at least one spec must be provided")
	}
	if opts.Format == "" {
		opts.Format = config.FormatYAML
	}
	if opts.Format != config.FormatYAML && opts.Format != config.FormatJSON {
		return nil, fmt.Errorf("unsupported format %q", opts.Format)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	if opts.OutputDir != "" {
		seen := make(map[string]string, len(opts.Specs))
		for _, spec := range opts.Specs {
			out := OutputPath(opts.OutputDir, spec.Path, opts.Format)
			if prev, ok := seen[out]; ok {
				return nil, fmt.Errorf("specs %s and %s would both be written to %s", prev, spec.Path, out)
			}
			seen[out] = spec.Path
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	httpClient := parser.NewFetchClient(parser.FetchOptions{
		Timeout: opts.Timeout,
		Headers: opts.Headers,
	})

	return &Runner{
		options:    opts,
		logger:     logger,
		httpClient: httpClient,
	}, nil
}

// Run interprets every spec, at most Concurrency at a time. Results are in the
// order of Options.Specs. Per-spec failures are reported on the result; the
// returned error is only set when ctx is cancelled.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	results := make([]Result, len(r.options.Specs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.options.Concurrency)
	for i, spec := range r.options.Specs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = r.interpret(spec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (r *Runner) interpret(spec Spec) Result {
	result := Result{Spec: spec}
	logger := log.With(r.logger, "spec", spec.Path)

	doc, err := r.load(spec)
	if err != nil {
		result.Err = err
		level.Error(logger).Log("msg", "failed to load spec", "err", err)
		return result
	}

	var collector diag.Collector
	sink := diag.Tee(collector.Sink(), diag.LogSink(logger))
	resolver := doc.NewResolver(parser.WithHTTPClient(r.httpClient))

	out, err := parser.NewDocumentParser(doc,
		parser.WithReferenceResolver(resolver),
		parser.WithDocumentDiagnostics(sink),
	).Parse()
	result.Document = out
	for _, problem := range multierr.Errors(err) {
		level.Error(logger).Log("msg", "request body skipped", "err", problem)
	}
	result.Problems = err

	if r.options.CheckSchemas {
		if err := out.CheckSchemas(); err != nil {
			for _, problem := range multierr.Errors(err) {
				level.Error(logger).Log("msg", "schema does not compile", "err", problem)
			}
			result.Problems = multierr.Append(result.Problems, err)
		}
	}
	result.Diagnostics = collector.Diagnostics()

	result.Output, err = Encode(out, r.options.Format)
	if err != nil {
		result.Err = err
		level.Error(logger).Log("msg", "failed to encode document", "err", err)
		return result
	}

	level.Info(logger).Log(
		"msg", "interpreted spec",
		"operations", len(out.Operations),
		"request_bodies", len(out.RequestBodies),
		"schemas", len(out.Schemas),
		"diagnostics", len(result.Diagnostics),
	)
	return result
}

func (r *Runner) load(spec Spec) (*parser.Document, error) {
	if len(spec.Data) == 0 {
		return parser.LoadFile(spec.Path)
	}
	specURL := ""
	if spec.Path != "" {
		abs, err := filepath.Abs(spec.Path)
		if err != nil {
			abs = spec.Path
		}
		specURL = (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	}
	return parser.Load(spec.Data, specURL)
}

// Write emits the outputs of results in order: one file per spec under
// OutputDir when set, otherwise a YAML or JSON stream on w.
func (r *Runner) Write(results []Result, w io.Writer) error {
	var errs error
	first := true
	for _, result := range results {
		if result.Output == nil {
			continue
		}
		if r.options.OutputDir == "" {
			if !first && r.options.Format == config.FormatYAML {
				if _, err := io.WriteString(w, "---\n"); err != nil {
					return err
				}
			}
			first = false
			if _, err := w.Write(result.Output); err != nil {
				return err
			}
			continue
		}

		target := OutputPath(r.options.OutputDir, result.Spec.Path, r.options.Format)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := os.WriteFile(target, result.Output, 0o644); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to write %s: %w", target, err))
			continue
		}
		level.Debug(r.logger).Log("msg", "wrote output", "spec", result.Spec.Path, "path", target)
	}
	return errs
}

// OutputPath returns DIR/<base>.ir.<format> for a spec path.
func OutputPath(dir, specPath, format string) string {
	base := filepath.Base(specPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, base+".ir."+format)
}

func Encode(doc *ir.Document, format string) ([]byte, error) {
	switch format {
	case config.FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode document: %w", err)
		}
		return append(data, '\n'), nil
	case config.FormatYAML, "":
		data, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode document: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}
