// dirfetch - interactive client for directory-listing HTTP servers
//
// Connects to a server that publishes http.server style index pages and
// offers a small shell on top of it:
//   - ls / cd / pwd over a virtual remote directory
//   - print of remote text files
//   - get of single files or whole trees (-r)
//   - downloads into a local directory or an s3://bucket/prefix
//   - optional Prometheus metrics & structured logging (zap)
//
// Usage:
//
//	dirfetch [flags] url
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fruitsalade/dirfetch/internal/config"
	"github.com/fruitsalade/dirfetch/internal/download"
	"github.com/fruitsalade/dirfetch/internal/logging"
	"github.com/fruitsalade/dirfetch/internal/metrics"
	"github.com/fruitsalade/dirfetch/internal/progress"
	"github.com/fruitsalade/dirfetch/internal/prompt"
	"github.com/fruitsalade/dirfetch/internal/session"
	"github.com/fruitsalade/dirfetch/internal/shell"
	"github.com/fruitsalade/dirfetch/internal/sink"
	"github.com/fruitsalade/dirfetch/pkg/client"
)

const banner = `     _ _      __      _       _
  __| (_)_ __/ _| ___| |_ ___| |__
 / _' | | '__| |_ / _ \ __/ __| '_ \
| (_| | | |  |  _|  __/ || (__| | | |
 \__,_|_|_|  |_|  \___|\__\___|_| |_|
`

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (default $DIRFETCH_CONFIG)")
	encoding := flag.String("encoding", "", "Text encoding of listings and printed files (default utf-8)")
	dest := flag.String("dest", "", "Download destination: local directory or s3://bucket/prefix")
	overwrite := flag.String("overwrite", "", "What to do when a destination exists: ask, always, never")
	noProgress := flag.Bool("no-progress", false, "Disable the download progress bar")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "", "Log format: console, json")
	quiet := flag.Bool("q", false, "Do not print the banner")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] url\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Flags given on the command line win over file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "encoding":
			cfg.Encoding = *encoding
		case "dest":
			cfg.Destination = *dest
		case "overwrite":
			cfg.Overwrite = *overwrite
		case "no-progress":
			cfg.NoProgress = *noProgress
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		}
	})
	if flag.NArg() > 0 {
		cfg.ServerURL = flag.Arg(0)
	}
	if flag.NArg() > 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		startMetricsServer(cfg.MetricsAddr)
	}

	code := run(ctx, cfg, *quiet)
	stop()
	logging.Sync()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, quiet bool) int {
	c, err := client.New(client.Config{
		BaseURL:           cfg.ServerURL,
		Encoding:          cfg.Encoding,
		MaxAttempts:       cfg.MaxAttempts,
		AttemptTimeout:    cfg.AttemptTimeout,
		ChunkSize:         cfg.ChunkSize,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	dst, err := openSink(ctx, cfg)
	if err != nil {
		logging.Error("failed to open destination", logging.String("dest", cfg.Destination), logging.Err(err))
		return 1
	}

	stdin := bufio.NewReader(os.Stdin)
	dl := &download.Downloader{
		Fetcher: c,
		Sink:    dst,
		Confirm: prompt.ForPolicy(cfg.Overwrite, stdin, os.Stdout),
		Out:     os.Stdout,
	}
	if progress.Enabled(os.Stderr, cfg.NoProgress) {
		dl.NewProgress = func() client.Progress { return progress.New(os.Stderr) }
	}
	sess := session.New(c, dl)

	logging.Debug("session started",
		logging.String("session_id", sess.ID()),
		logging.String("server", c.BaseURL()),
		logging.String("sink", dst.Type()),
		logging.String("dest", cfg.Destination))

	if !quiet {
		fmt.Print(banner)
	}
	fmt.Printf("Connecting to %s\n", sess.BaseURL())
	if err := sess.Connect(ctx); err != nil {
		fmt.Println(err)
		return 1
	}
	fmt.Println("Connected Successfully")

	// Ctrl-C never kills the shell; it is delivered to the loop instead.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	if err := shell.New(sess, stdin, os.Stdout).Run(ctx, interrupts); err != nil && ctx.Err() == nil {
		logging.Error("shell stopped", logging.Err(err))
		return 1
	}
	return 0
}

func openSink(ctx context.Context, cfg *config.Config) (sink.Sink, error) {
	if !cfg.IsS3Destination() {
		return sink.NewLocal(cfg.Destination)
	}
	bucket, prefix := cfg.S3Location()
	return sink.NewS3(ctx, sink.S3Config{
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
		Bucket:    bucket,
		Prefix:    prefix,
	})
}

func startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logging.Info("metrics server listening", logging.String("addr", addr))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", logging.Err(err))
		}
	}()
}
