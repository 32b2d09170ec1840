package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/dllexports/export"
	"github.com/wippyai/dllexports/internal/config"
	"github.com/wippyai/dllexports/isolation"
	"github.com/wippyai/dllexports/request"
)

// runner executes a validated request. isolation.Host is the production runner.
type runner interface {
	Run(ctx context.Context, req request.Request) (isolation.Result, error)
}

func defaultRunner() (runner, error) {
	return isolation.NewHost()
}

func newRootCmd(newRunner func() (runner, error)) *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "dllexports",
		Short: "Turn marked static methods into unmanaged exports",
		Long: `dllexports rewrites a managed library so that static methods carrying the
DllExports marker become unmanaged exports callable from native code.

With --arch, one binary is written per architecture; --name-format names
each output from the placeholders {name} (output file name without
extension) and {arch} (x86 or x64).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, file, err := config.Load(config.LoadOptions{
				ConfigFile: cfgFile,
				Flags:      cmd.Flags(),
			})
			if err != nil {
				return err
			}

			log, err := newLogger(cfg.Verbose)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer func() { _ = log.Sync() }()
			export.SetLogger(log)
			isolation.SetLogger(log)

			if file != "" {
				log.Debug("configuration loaded", zap.String("file", file))
			}

			r, err := newRunner()
			if err != nil {
				return err
			}
			return runExport(cmd.Context(), r, cfg.Request(), log, cmd.OutOrStdout(), isTerminal(cmd.OutOrStdout()))
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "managed library to process")
	flags.String("output", "", "output path")
	flags.StringSlice("arch", nil, "target architecture, I386 or AMD64 (repeatable)")
	flags.String("name-format", "", "output name per architecture, e.g. {name}.{arch}")
	flags.Bool("remove-input", false, "delete the input file after a successful export")
	flags.Bool("enabled", true, "run the export; false makes the command a no-op")
	flags.BoolP("verbose", "v", false, "enable verbose output")
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./dllexports.{yaml,toml,json})")

	return cmd
}

// runExport runs one request and, on success, performs post-export housekeeping
// and prints one line per written target.
func runExport(ctx context.Context, r runner, req request.Request, log *zap.Logger, out io.Writer, styled bool) error {
	targets, err := req.Validate()
	if err != nil {
		return err
	}
	if !req.Enabled {
		log.Info("export disabled, nothing to do")
		return nil
	}

	log.Info("processing file", zap.String("input", req.InputPath))

	res, err := r.Run(ctx, req)
	if err != nil {
		return err
	}
	log.Debug("export finished", zap.Strings("exports", res.Exports), zap.Strings("outputs", res.Outputs))

	if err := cleanup(req, log); err != nil {
		return err
	}

	printReport(out, targets, styled)
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
