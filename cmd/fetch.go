package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"scryfall-ndjson/internal/bulkdata"
	"scryfall-ndjson/internal/config"
	"scryfall-ndjson/internal/sink"
	"scryfall-ndjson/internal/transcoder"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	// Configure global logger (timestamped, stderr so stdout stays clean).
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logrus.SetLevel(level)

	// Prepare cancellable context that listens to OS signals (Ctrl+C).
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logrus.Info("interrupt received, aborting download…")
		cancel()
	}()

	if err := run(ctx, cfg, opts); err != nil {
		logrus.Errorf("fetch failed: %v", err)
		os.Exit(1)
	}
}

type options struct {
	infoOnly bool
}

// parseFlags loads the optional config file and overlays every flag that was
// set explicitly on the command line.
func parseFlags(args []string) (*config.Config, options, error) {
	var (
		opts       options
		configPath string
		output     string
		also       []string
		timeout    float64
		limit      int
		dataset    string
		indexURL   string
		compact    bool
		logLevel   string
	)

	defaults := config.Default()
	fs := pflag.NewFlagSet("fetch", pflag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "optional YAML config file")
	fs.StringVarP(&output, "output", "o", config.DefaultOutput, "primary output path (.gz = gzip, .zst = zstd, otherwise plain NDJSON)")
	fs.StringArrayVar(&also, "also", nil, "additional output path receiving the same lines (repeatable)")
	fs.Float64Var(&timeout, "timeout", defaults.TimeoutSeconds, "download timeout in seconds")
	fs.IntVar(&limit, "limit", 0, "stop after this many records (testing aid, 0 = all)")
	fs.StringVar(&dataset, "dataset", defaults.Dataset, "bulk-data type to fetch (e.g. default_cards, oracle_cards)")
	fs.StringVar(&indexURL, "index-url", defaults.IndexURL, "bulk-data index endpoint")
	fs.BoolVar(&compact, "compact", false, "emit records without whitespace after separators")
	fs.StringVar(&logLevel, "log-level", defaults.LogLevel, "log level (debug, info, warn, error)")
	fs.BoolVar(&opts.infoOnly, "info-only", false, "print dataset metadata and exit without downloading")

	if err := fs.Parse(args); err != nil {
		return nil, opts, err
	}
	if fs.NArg() > 0 {
		return nil, opts, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	cfg := defaults
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, opts, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if fs.Changed("output") {
		if len(cfg.Outputs) == 0 {
			cfg.Outputs = []string{output}
		} else {
			cfg.Outputs[0] = output
		}
	}
	cfg.Outputs = append(cfg.Outputs, also...)
	if fs.Changed("timeout") {
		cfg.TimeoutSeconds = timeout
	}
	if fs.Changed("limit") {
		cfg.Limit = limit
	}
	if fs.Changed("dataset") {
		cfg.Dataset = dataset
	}
	if fs.Changed("index-url") {
		cfg.IndexURL = indexURL
	}
	if compact {
		cfg.Style = config.StyleCompact
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, opts, err
	}
	return cfg, opts, nil
}

// run resolves the dataset, then streams it into every configured output.
func run(ctx context.Context, cfg *config.Config, opts options) error {
	client := bulkdata.NewClient(cfg)

	entry, err := client.Resolve(ctx, cfg.Dataset)
	if err != nil {
		return err
	}
	logrus.Infof("%s: updated_at=%s, size=%d, encoding=%s", entry.Type, entry.UpdatedAt, entry.Size, entry.ContentEncoding)
	if opts.infoOnly {
		logrus.Infof("download_uri: %s", entry.DownloadURI)
		return nil
	}

	tc, err := transcoder.New(cfg, client)
	if err != nil {
		return err
	}

	sinks, err := sink.OpenAll(cfg.Outputs)
	if err != nil {
		return err
	}

	logrus.Infof("downloading: %s", entry.DownloadURI)
	written, err := tc.Run(ctx, entry.DownloadURI, sinks, cfg.Limit)
	if err != nil {
		return fmt.Errorf("transcoding stopped after %d records: %w", written, err)
	}

	logrus.Infof("wrote %d NDJSON lines -> %s", written, strings.Join(cfg.Outputs, ", "))
	return nil
}
