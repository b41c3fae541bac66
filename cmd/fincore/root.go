package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"fincore/internal/app"
	"fincore/internal/config"
	"fincore/internal/fetcher"
	"fincore/internal/logger"
)

const configEnv = "FINCORE_CONFIG"

type rootOptions struct {
	configPath string
	closers    []io.Closer
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "fincore",
		Short:         "Financial data provider interface",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `fincore routes queries for standard financial datasets to the providers
registered for them and returns one normalized envelope.`,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to the YAML config file (default $"+configEnv+")")

	root.AddCommand(
		newServeCmd(opts),
		newCatalogCmd(opts),
		newQueryCmd(opts),
		newStreamCmd(opts),
		newGenCmd(opts),
	)
	return root
}

func (o *rootOptions) path() string {
	if p := strings.TrimSpace(o.configPath); p != "" {
		return p
	}
	return strings.TrimSpace(os.Getenv(configEnv))
}

// load reads the config and routes log output the way it asks.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.path())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if f, err := setupLogOutput(cfg.App.LogPath); err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	} else if f != nil {
		o.closers = append(o.closers, f)
	}
	if f, err := setupPayloadOutput(cfg.App.PayloadLogPath); err != nil {
		return nil, fmt.Errorf("open payload log: %w", err)
	} else if f != nil {
		o.closers = append(o.closers, f)
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.EnablePayloadDump(cfg.App.PayloadDump)
	return cfg, nil
}

func (o *rootOptions) buildApp(cmd *cobra.Command, appOpts ...app.AppBuilderOption) (*app.App, *config.Config, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	a, err := app.NewApp(cmd.Context(), cfg, appOpts...)
	if err != nil {
		return nil, nil, err
	}
	o.closers = append(o.closers, a)
	return a, cfg, nil
}

func (o *rootOptions) close() {
	for i := len(o.closers) - 1; i >= 0; i-- {
		_ = o.closers[i].Close()
	}
	o.closers = nil
}

// credentials resolves configured credentials and overlays name=value
// pairs given on the command line.
func credentials(a *app.App, pairs []string) (fetcher.Credentials, error) {
	creds := fetcher.Credentials(a.Config().Current().ResolveCredentials(a.Interface().CredentialNames()))
	extra, err := parsePairs(pairs)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		creds[strings.ToLower(k)] = fmt.Sprint(v)
	}
	return creds, nil
}

// parsePairs reads repeated key=value flags. Repeated keys are joined with
// commas, the same as repeated query string parameters.
func parsePairs(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		if prev, seen := out[k]; seen {
			out[k] = prev.(string) + "," + v
			continue
		}
		out[k] = v
	}
	return out, nil
}

// setupLogOutput keeps stdout for command output: logs go to stderr and,
// when path is set, to the file as well.
func setupLogOutput(path string) (*os.File, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	if f == nil {
		logger.SetOutput(os.Stderr)
		return nil, nil
	}
	mw := io.MultiWriter(os.Stderr, f)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return f, nil
}

func setupPayloadOutput(path string) (*os.File, error) {
	f, err := openAppend(path)
	if err != nil || f == nil {
		return nil, err
	}
	logger.SetPayloadWriter(f)
	return f, nil
}

func openAppend(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	if dir := filepath.Dir(trimmed); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
