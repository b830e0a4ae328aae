package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/specx2/openapi-irgen/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// getVersionInfo prefers ldflags values and falls back to the build info.
func getVersionInfo() (string, string, string) {
	if version != "dev" || commit != "none" || date != "unknown" {
		return version, commit, date
	}

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return version, commit, date
	}

	moduleVersion := version
	if buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
		moduleVersion = buildInfo.Main.Version
	}

	vcsCommit := commit
	vcsTime := date
	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case "vcs.revision":
			vcsCommit = setting.Value
			if len(vcsCommit) > 7 {
				vcsCommit = vcsCommit[:7]
			}
		case "vcs.time":
			vcsTime = setting.Value
		}
	}
	return moduleVersion, vcsCommit, vcsTime
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "openapi-irgen",
		Short: "Interpret OpenAPI request bodies into an intermediate representation",
		Long: `openapi-irgen reads OpenAPI 3.x documents and emits the intermediate
representation code generators consume: component schemas, component request
bodies and the request body of every operation, with media type flags and
binary file fields split out of multipart form schemas.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to a config file (defaults to "+config.DefaultPath+" when present)")
	flags.String("log-output", "", "Write logs to this destination (stdout, stderr, or file path)")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.Bool("log-tee-console", false, "If true and log-output is a file, also write logs to stderr")

	rootCmd.AddCommand(newInterpretCommand())
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			v, c, d := getVersionInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "openapi-irgen %s (commit %s, built %s)\n", v, c, d)
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
