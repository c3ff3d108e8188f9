package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kestrel-vision/stereolink/internal/cliconfig"
	"github.com/kestrel-vision/stereolink/internal/settings"
	"github.com/kestrel-vision/stereolink/pkg/discovery"
	"github.com/kestrel-vision/stereolink/pkg/log"
	"github.com/kestrel-vision/stereolink/pkg/transfer"
)

// captureSettings holds the live settings a watcher may replace mid-run.
type captureSettings struct {
	mu sync.RWMutex
	s  settings.Settings
}

func (c *captureSettings) get() settings.Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s
}

func (c *captureSettings) set(s settings.Settings) {
	c.mu.Lock()
	c.s = s
	c.mu.Unlock()
}

func captureCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Receive image sets and write them as PGM files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd, cfg, *cfgPath); err != nil {
				return err
			}
			return runCapture(cmd.Context(), *cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Device, "device", cfg.Device, "device serial to capture from (default: first discovered)")
	cmd.Flags().StringVar(&cfg.DirectAddr, "addr", cfg.DirectAddr, "skip discovery and dial host:port directly")
	cmd.Flags().StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "directory for captured PGM files")
	cmd.Flags().StringVar(&cfg.SettingsPath, "settings", cfg.SettingsPath, "settings file to load and watch for changes")
	cmd.Flags().DurationVar(&cfg.PollTimeout, "poll-timeout", cfg.PollTimeout, "per-poll wait for an image set")
	cmd.Flags().DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "connection attempt timeout")
	cmd.Flags().DurationVar(&cfg.LivenessTimeout, "liveness-timeout", cfg.LivenessTimeout, "silence threshold before the session is considered lost")
	cmd.Flags().IntVar(&cfg.Count, "count", cfg.Count, "image sets to capture before exiting (0 = until interrupted)")

	return cmd
}

func runCapture(parent context.Context, cfg cliconfig.Config) error {
	zl := cliconfig.Logger(cfg.LogLevel)
	logger := log.NewZerologAdapterWithLogger(zl)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Seed live settings from flags, then from the settings file when one
	// is configured.
	live := &captureSettings{}
	live.set(settings.Settings{
		Device:    cfg.Device,
		OutputDir: cfg.OutputDir,
		MaxSets:   cfg.Count,
	})
	if cfg.SettingsPath != "" {
		s, err := settings.Load(cfg.SettingsPath)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		live.set(s)

		watcher := settings.NewWatcher(cfg.SettingsPath, live.set, logger)
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("settings watcher stopped", log.Err(err))
			}
		}()
	}

	device, err := pickDevice(ctx, cfg, live.get().Device, logger)
	if err != nil {
		return err
	}
	fmt.Printf("capturing from %s\n", device)

	client, err := transfer.NewAsyncClient(device,
		transfer.WithLogger(logger),
		transfer.WithDialTimeout(cfg.DialTimeout),
		transfer.WithLivenessTimeout(cfg.LivenessTimeout),
	)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer client.Close()

	captured := 0
	for ctx.Err() == nil {
		s := live.get()
		if s.MaxSets > 0 && captured >= s.MaxSets {
			break
		}

		// Short poll timeout keeps the loop responsive to signals and
		// settings changes; a miss is a normal outcome.
		set, ok := client.CollectReceivedImageSet(cfg.PollTimeout)
		if !ok {
			continue
		}

		for i := 0; i < set.ChannelCount(); i++ {
			name := fmt.Sprintf("image%03d_%d.pgm", captured, i)
			path := filepath.Join(s.OutputDir, name)
			if err := set.WritePGMFile(i, path); err != nil {
				logger.Error("write image failed",
					log.String("path", path),
					log.Err(err),
				)
				continue
			}
		}
		logger.Info("image set captured",
			log.Uint64("seq", set.Seq()),
			log.Int("channels", set.ChannelCount()),
			log.Time("timestamp", set.Timestamp()),
		)
		captured++
	}

	stats := client.Stats()
	logger.Info("capture finished",
		log.Int("captured", captured),
		log.Uint64("received", stats.FramesReceived),
		log.Uint64("dropped", stats.FramesDropped),
		log.Uint64("integrity_faults", stats.IntegrityFaults),
		log.Uint64("reconnects", stats.Reconnects),
	)
	return nil
}

// pickDevice resolves the capture target: a direct address when given,
// otherwise the first discovered device matching the serial filter.
func pickDevice(ctx context.Context, cfg cliconfig.Config, serial string, logger log.Logger) (discovery.DeviceInfo, error) {
	if cfg.DirectAddr != "" {
		host, portStr, err := net.SplitHostPort(cfg.DirectAddr)
		if err != nil {
			return discovery.DeviceInfo{}, fmt.Errorf("parse addr %q: %w", cfg.DirectAddr, err)
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return discovery.DeviceInfo{}, fmt.Errorf("parse addr %q: %w", cfg.DirectAddr, err)
		}
		return discovery.DeviceInfo{
			Address:    host,
			StreamPort: uint16(port),
			Model:      "direct",
			Serial:     cfg.DirectAddr,
		}, nil
	}

	enum := discovery.NewEnumerator(discovery.WithLogger(logger))
	devices, err := enum.Discover(ctx, discovery.ScanConfig{
		BroadcastAddr: cfg.BroadcastAddr,
		Window:        cfg.ScanWindow,
	})
	if err != nil {
		return discovery.DeviceInfo{}, fmt.Errorf("discover: %w", err)
	}
	for _, d := range devices {
		if serial == "" || d.Serial == serial {
			return d, nil
		}
	}
	if serial != "" {
		return discovery.DeviceInfo{}, fmt.Errorf("device %q not found", serial)
	}
	return discovery.DeviceInfo{}, fmt.Errorf("no devices discovered")
}
