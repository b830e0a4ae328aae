package main

import (
	"context"
	"fmt"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/specx2/openapi-irgen/cmd/openapi-irgen/runner"
	"github.com/specx2/openapi-irgen/internal/config"
	"github.com/specx2/openapi-irgen/internal/watch"
)

func newInterpretCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interpret <file>...",
		Short: "Interpret OpenAPI documents and print their intermediate representation",
		Long: `Interpret one or more OpenAPI 3.x documents.

Each document is interpreted independently. Outputs are written in argument
order, to stdout as a YAML or JSON stream, or with --output-dir as one
<name>.ir.<format> file per document.

Request bodies that cannot be interpreted are logged and left out of the
output; --strict turns them into a failing exit status.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runInterpret,
	}

	flags := cmd.Flags()
	flags.StringP("format", "f", config.FormatYAML, "Output format: yaml or json")
	flags.StringP("output-dir", "o", "", "Write one file per document to this directory instead of stdout")
	flags.Bool("strict", false, "Fail when a request body is skipped or a schema does not compile")
	flags.Bool("check-schemas", false, "Compile every request body schema as JSON Schema")
	flags.Int("concurrency", 0, "Number of documents interpreted at once")
	flags.Bool("watch", false, "Interpret the document again whenever it changes (single file only)")
	return cmd
}

func runInterpret(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, cleanup, err := configureLogging(cfg.Log.Output, cfg.Log.TeeConsole, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	defer cleanup()

	watchMode, _ := cmd.Flags().GetBool("watch")
	if watchMode && len(args) != 1 {
		return fmt.Errorf("--watch takes exactly one document, got %d", len(args))
	}

	timeout, err := cfg.Remote.FetchTimeout()
	if err != nil {
		return err
	}

	specs := make([]runner.Spec, 0, len(args))
	for _, path := range args {
		specs = append(specs, runner.Spec{Path: path})
	}

	r, err := runner.New(runner.Options{
		Specs:        specs,
		Format:       cfg.Format,
		OutputDir:    cfg.OutputDir,
		CheckSchemas: cfg.CheckSchemas,
		Concurrency:  cfg.Concurrency,
		Timeout:      timeout,
		Headers:      cfg.Remote.HTTPHeaders(),
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	if watchMode {
		return watchSpec(cmd.Context(), r, args[0], cfg.Strict, cmd.OutOrStdout(), logger)
	}
	return interpretOnce(cmd.Context(), r, cfg.Strict, cmd.OutOrStdout())
}

// loadConfig reads the config file and applies the flags that were set
// explicitly on top of it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if flags.Changed("format") {
		cfg.Format, _ = flags.GetString("format")
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir, _ = flags.GetString("output-dir")
	}
	if flags.Changed("strict") {
		cfg.Strict, _ = flags.GetBool("strict")
	}
	if flags.Changed("check-schemas") {
		cfg.CheckSchemas, _ = flags.GetBool("check-schemas")
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("log-output") {
		cfg.Log.Output, _ = flags.GetString("log-output")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-tee-console") {
		cfg.Log.TeeConsole, _ = flags.GetBool("log-tee-console")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func interpretOnce(ctx context.Context, r *runner.Runner, strict bool, out io.Writer) error {
	results, err := r.Run(ctx)
	if err != nil {
		return err
	}
	if err := r.Write(results, out); err != nil {
		return err
	}

	failed := 0
	for _, result := range results {
		if result.Failed(strict) {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(results))
	}
	return nil
}

func watchSpec(ctx context.Context, r *runner.Runner, path string, strict bool, out io.Writer, logger log.Logger) error {
	w, err := watch.WatchFile(path, watch.DefaultDebounce)
	if err != nil {
		return err
	}
	defer w.Close()

	run := func() {
		if err := interpretOnce(ctx, r, strict, out); err != nil {
			level.Error(logger).Log("msg", "interpretation failed", "spec", path, "err", err)
		}
	}

	run()
	level.Info(logger).Log("msg", "watching for changes", "spec", path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.Update:
			if err != nil {
				level.Warn(logger).Log("msg", "watch error", "spec", path, "err", err)
				continue
			}
			level.Debug(logger).Log("msg", "spec changed", "spec", path)
			run()
		}
	}
}
