// vidwall: media wallpaper player. Decodes a video, animated image, or
// still with FFmpeg and presents it into an SDL window, with independent
// audio playback and optional hot-reload when the media file changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vidwall/vidwall/display"
	"github.com/vidwall/vidwall/media"
	"github.com/vidwall/vidwall/pace"
	"github.com/vidwall/vidwall/player"
	"github.com/vidwall/vidwall/watch"
)

// Build-time variable set via -ldflags.
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "vidwall",
		Short: "vidwall — FFmpeg-backed media wallpaper player",
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runCmd starts the render loop, the audio pipeline for sources that carry
// audio, and (optionally) a watcher that reloads the session when the media
// file is replaced on disk.
func runCmd() *cobra.Command {
	var (
		fps       float64
		volume    int
		muted     bool
		autoMute  bool
		scaling   string
		width     int
		height    int
		title     string
		hotReload bool
	)

	cmd := &cobra.Command{
		Use:   "run <media-file>",
		Short: "Play a media file in a window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if os.Getenv("DEBUG") != "" {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			mediaPath := args[0]

			mode := media.ParseScalingMode(scaling)

			slog.Info("vidwall starting",
				"version", version,
				"media", mediaPath,
				"fps", fps,
				"scaling", scaling,
			)

			backend, err := display.NewSDLWindow(title, width, height, nil)
			if err != nil {
				return err
			}
			defer backend.Close()

			p := player.New(nil, backend, player.Options{
				TargetFPS:   fps,
				Volume:      volume,
				Muted:       muted,
				AutoMute:    autoMute,
				ScalingMode: mode,
			}, nil)
			defer p.Close()

			if err := p.Load(mediaPath); err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigCh
				slog.Info("received signal, shutting down", "signal", sig)
				cancel()
			}()

			g, ctx := errgroup.WithContext(ctx)

			if hotReload {
				w, err := watch.New(mediaPath, p.RequestLoad, nil)
				if err != nil {
					return fmt.Errorf("watching %s: %w", mediaPath, err)
				}
				g.Go(func() error {
					return w.Start()
				})
				g.Go(func() error {
					<-ctx.Done()
					w.Stop()
					return nil
				})
			}

			g.Go(func() error {
				defer cancel()
				return p.Run(ctx)
			})

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("player error", "error", err)
				return err
			}
			slog.Info("shutdown complete")
			return nil
		},
	}

	cmd.Flags().Float64Var(&fps, "fps", pace.UseNativeRate, "Target display rate; -1 plays at the media's native rate")
	cmd.Flags().IntVar(&volume, "volume", 100, "Audio volume, 0-100")
	cmd.Flags().BoolVar(&muted, "muted", false, "Start with audio muted")
	cmd.Flags().BoolVar(&autoMute, "auto-mute", false, "Mute automatically while other applications play audio")
	cmd.Flags().StringVar(&scaling, "scaling", "fit", "Scaling mode: stretch, fit, fill, or default")
	cmd.Flags().IntVar(&width, "width", 1280, "Window width in pixels")
	cmd.Flags().IntVar(&height, "height", 720, "Window height in pixels")
	cmd.Flags().StringVar(&title, "title", "vidwall", "Window title")
	cmd.Flags().BoolVar(&hotReload, "watch", false, "Reload the session when the media file changes on disk")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vidwall %s\n", version)
		},
	}
}
