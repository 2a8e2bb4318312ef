// dropboxfs mounts a remote account-scoped storage tree as a local
// filesystem.
//
//	dropboxfs -mount /mnt/dropbox -token <access-token>
//	dropboxfs -mount /mnt/data -provider s3 -config dropboxfs.yaml
//
// Configuration layers in order: built-in defaults, then the YAML file
// given with -config, then DROPBOXFS_* environment variables, then
// command-line flags. The process stays in the foreground until the
// filesystem is unmounted or a termination signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Mayank-software/dropboxfs/internal/cache"
	"github.com/Mayank-software/dropboxfs/internal/config"
	fsadapter "github.com/Mayank-software/dropboxfs/internal/fuse"
	"github.com/Mayank-software/dropboxfs/internal/handle"
	"github.com/Mayank-software/dropboxfs/internal/metrics"
	"github.com/Mayank-software/dropboxfs/internal/storage/dropbox"
	"github.com/Mayank-software/dropboxfs/internal/storage/s3"
	"github.com/Mayank-software/dropboxfs/pkg/types"
	"github.com/Mayank-software/dropboxfs/pkg/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configFile := flag.String("config", "", "Path to YAML configuration file")
	mountpoint := flag.String("mount", "", "Mount point for the filesystem (required)")
	token := flag.String("token", "", "Dropbox access token (or DROPBOXFS_TOKEN)")
	provider := flag.String("provider", "", "Storage provider: dropbox or s3")
	logLevel := flag.String("log-level", "", "Log level: DEBUG, INFO, WARN, ERROR")
	metricsPort := flag.Int("metrics-port", 0, "Prometheus metrics port (0 = config default)")
	allowOther := flag.Bool("allow-other", false, "Allow other users to access the mount")
	readOnly := flag.Bool("read-only", false, "Mount read-only")
	flag.Parse()

	cfg := config.NewDefault()
	if *configFile != "" {
		if err := cfg.LoadFromFile(*configFile); err != nil {
			return err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}

	// Flags override file and environment.
	if *mountpoint != "" {
		cfg.Mount.Mountpoint = *mountpoint
	}
	if *token != "" {
		cfg.Remote.Dropbox.Token = *token
	}
	if *provider != "" {
		cfg.Remote.Provider = *provider
	}
	if *logLevel != "" {
		cfg.Global.LogLevel = *logLevel
	}
	if *metricsPort != 0 {
		cfg.Metrics.Port = *metricsPort
	}
	if *allowOther {
		cfg.Mount.AllowOther = true
	}
	if *readOnly {
		cfg.Mount.ReadOnly = true
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := utils.SetupLogging(cfg.Global.LogLevel, cfg.Global.LogFile); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	remote, err := newRemote(ctx, cfg)
	if err != nil {
		return err
	}

	attrs := cache.NewAttrCache(remote, cache.Config{
		FreshnessWindow:  cfg.Cache.FreshnessWindow,
		CleanupThreshold: cfg.Cache.CleanupThreshold,
		SweepInterval:    cfg.Cache.SweepInterval,
	})

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   cfg.Metrics.Enabled,
		Port:      cfg.Metrics.Port,
		Path:      cfg.Metrics.Path,
		Namespace: cfg.Metrics.Namespace,
	})
	if err != nil {
		return err
	}

	fsys := fsadapter.NewFileSystem(remote, attrs, handle.NewTable(), collector, &fsadapter.Config{
		Mountpoint: cfg.Mount.Mountpoint,
		FSName:     cfg.Mount.FSName,
		AllowOther: cfg.Mount.AllowOther,
		ReadOnly:   cfg.Mount.ReadOnly,
		UID:        cfg.Mount.UID,
		GID:        cfg.Mount.GID,
		FileMode:   cfg.Mount.FileMode,
		DirMode:    cfg.Mount.DirMode,
	})
	host := fsadapter.NewHost(fsys)

	attrs.StartSweep(ctx)
	defer attrs.Stop()

	if err := collector.Start(ctx); err != nil {
		return err
	}
	defer collector.Stop(context.Background())

	// Kernel-initiated teardown reaches fsys.Destroy, which stops the
	// sweep and then this hook; the defers above cover mount failures.
	fsys.OnShutdown(func() {
		if err := collector.Stop(context.Background()); err != nil {
			slog.Error("metrics server shutdown failed", "error", err)
		}
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("signal received, unmounting", "signal", sig.String())
		if err := host.Unmount(); err != nil {
			slog.Error("unmount failed", "error", err)
		}
	}()

	slog.Info("mounting filesystem",
		"mountpoint", cfg.Mount.Mountpoint,
		"provider", cfg.Remote.Provider,
		"metrics_enabled", cfg.Metrics.Enabled)

	// Mount blocks until the filesystem is unmounted.
	if err := host.Mount(); err != nil {
		return err
	}

	slog.Info("filesystem unmounted")
	return nil
}

// newRemote builds the storage client selected by the configuration.
func newRemote(ctx context.Context, cfg *config.Configuration) (types.RemoteClient, error) {
	switch cfg.Remote.Provider {
	case "dropbox":
		return dropbox.NewClient(cfg.Remote.Dropbox)
	case "s3":
		return s3.NewClient(ctx, cfg.Remote.S3)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Remote.Provider)
	}
}
