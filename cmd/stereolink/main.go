package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/kestrel-vision/stereolink/internal/cliconfig"
	"github.com/kestrel-vision/stereolink/internal/simulator"
	"github.com/kestrel-vision/stereolink/pkg/discovery"
	"github.com/kestrel-vision/stereolink/pkg/imageset"
	"github.com/kestrel-vision/stereolink/pkg/log"
)

const helpDescription = `
Discover stereo-vision capture devices on the local network and stream
image sets from them.

Highlights:
  - Broadcast discovery with a bounded scan window.
  - Background receive loop with automatic reconnection; polling callers
    always see the most recent complete image set.
  - Captured channels are written as PGM files.

Configuration precedence: flags > STEREOLINK_* environment > config file.
`

var exampleUsage = strings.TrimSpace(`
  stereolink discover
  stereolink capture --count 100 --output-dir ./frames
  stereolink capture --addr 192.168.10.40:7680 --poll-timeout 100ms
  stereolink simulate --listen 127.0.0.1:7680
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// resolveConfig layers the config file and environment under any explicitly
// set flags.
func resolveConfig(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string) error {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}
	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	}
	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return err
	}
	return cfg.Validate()
}

func main() {
	// A .env beside the binary is a convenience for development setups.
	_ = godotenv.Load()

	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:     "stereolink",
		Short:   "Stream image sets from stereo-vision capture devices",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.stereolink/config.toml)")
	root.PersistentFlags().StringVar(&cfg.BroadcastAddr, "broadcast-addr", cfg.BroadcastAddr, "UDP discovery broadcast address")
	root.PersistentFlags().DurationVar(&cfg.ScanWindow, "scan-window", cfg.ScanWindow, "discovery scan duration")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	root.AddCommand(discoverCmd(&cfg, &cfgPath))
	root.AddCommand(captureCmd(&cfg, &cfgPath))
	root.AddCommand(simulateCmd(&cfg))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func discoverCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Scan the local network for capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd, cfg, *cfgPath); err != nil {
				return err
			}
			logger := cliconfig.Logger(cfg.LogLevel)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			enum := discovery.NewEnumerator(
				discovery.WithLogger(log.NewZerologAdapterWithLogger(logger)),
			)
			devices, err := enum.Discover(ctx, discovery.ScanConfig{
				BroadcastAddr: cfg.BroadcastAddr,
				Window:        cfg.ScanWindow,
			})
			if err != nil {
				return fmt.Errorf("discover: %w", err)
			}
			if len(devices) == 0 {
				fmt.Println("no devices discovered")
				return nil
			}
			for _, d := range devices {
				fmt.Println(d)
			}
			return nil
		},
	}
}

func simulateCmd(cfg *cliconfig.Config) *cobra.Command {
	simCfg := simulator.Config{
		StreamAddr:    "127.0.0.1:7680",
		DiscoveryAddr: "0.0.0.0:7681",
		Channels:      2,
		Width:         640,
		Height:        480,
		Format:        imageset.FormatMono8,
		FrameInterval: 33 * time.Millisecond,
	}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run an in-process simulated capture device",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := cliconfig.Logger(cfg.LogLevel)
			simCfg.Logger = log.NewZerologAdapterWithLogger(logger)

			sim, err := simulator.Start(simCfg)
			if err != nil {
				return err
			}
			defer sim.Close()

			fmt.Printf("simulated device %s streaming on %s\n", simCfg.Serial, sim.StreamAddr())

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&simCfg.StreamAddr, "listen", simCfg.StreamAddr, "TCP listen address for the image stream")
	cmd.Flags().StringVar(&simCfg.DiscoveryAddr, "discovery-listen", simCfg.DiscoveryAddr, "UDP listen address for discovery (empty to disable)")
	cmd.Flags().StringVar(&simCfg.Serial, "serial", "SIM0001", "simulated device serial")
	cmd.Flags().IntVar(&simCfg.Channels, "channels", simCfg.Channels, "channel images per set")
	cmd.Flags().IntVar(&simCfg.Width, "width", simCfg.Width, "image width in pixels")
	cmd.Flags().IntVar(&simCfg.Height, "height", simCfg.Height, "image height in pixels")
	cmd.Flags().DurationVar(&simCfg.FrameInterval, "interval", simCfg.FrameInterval, "pacing between frames")
	cmd.Flags().IntVar(&simCfg.CorruptEvery, "corrupt-every", 0, "corrupt every Nth frame (0 disables)")
	cmd.Flags().IntVar(&simCfg.DropAfter, "drop-after", 0, "drop the connection after N frames (0 disables)")

	return cmd
}
