package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arthurhrk/meetingscribe-sub001/internal/audio"
	"github.com/arthurhrk/meetingscribe-sub001/internal/capture"
	"github.com/arthurhrk/meetingscribe-sub001/internal/config"
	"github.com/arthurhrk/meetingscribe-sub001/internal/logging"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newService initializes the audio subsystem and wires the capture service.
// The returned cleanup releases the native host.
func newService() (*capture.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := logging.NewWithLevel(cfg.LogLevel)

	host, err := audio.NewHost()
	if err != nil {
		return nil, nil, err
	}

	catalog := audio.NewCatalog(host)
	store := audio.NewPrefStore(cfg.Capture.PrefsPath)
	selector, err := audio.NewSelector(catalog, store, log)
	if err != nil {
		host.Close()
		return nil, nil, err
	}

	svc := capture.New(capture.Config{
		Host:     host,
		Selector: selector,
		Config:   cfg,
		Logger:   log,
	})
	return svc, func() { host.Close() }, nil
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "meetingscribe",
		Short:   "Capture system and microphone audio for later transcription",
		Version: Version,
	}
	root.AddCommand(devicesCmd(), recordCmd(), outcomeCmd(), unblockCmd())
	return root
}

func devicesCmd() *cobra.Command {
	var contextName string

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List audio endpoints with classification and context score",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := newService()
			if err != nil {
				return err
			}
			defer cleanup()

			scores, err := svc.RankDevices(audio.ParseContext(contextName))
			if err != nil {
				return err
			}
			for _, sc := range scores {
				ep := sc.Endpoint
				flags := ""
				if ep.IsLoopback {
					flags += " [loopback]"
				}
				if ep.IsDefault {
					flags += " [default]"
				}
				fmt.Printf("%3d  %-50s %s  in=%d out=%d rate=%.0f  score=%d\n",
					ep.Index, ep.Name, flags, ep.MaxInputChannels, ep.MaxOutputChannels,
					ep.DefaultSampleRate, sc.Value)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&contextName, "context", "default", "scoring context: meeting, manual, default")
	return cmd
}

func recordCmd() *cobra.Command {
	var (
		dual     bool
		duration time.Duration
		output   string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record audio until Ctrl+C or --duration elapses",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := newService()
			if err != nil {
				return err
			}
			defer cleanup()

			opts := audio.StartOptions{
				Filename:    output,
				MaxDuration: duration,
				Format:      audio.Format(format),
				Progress: func(elapsed float64) {
					fmt.Printf("\rrecording... %.1fs", elapsed)
				},
			}

			var path string
			if dual {
				path, err = svc.StartDual(opts)
			} else {
				path, err = svc.Start(opts)
			}
			if err != nil {
				return err
			}
			fmt.Println("recording to", path)

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			if duration > 0 {
				select {
				case <-sigChan:
				case <-time.After(duration + 500*time.Millisecond):
				}
			} else {
				<-sigChan
			}

			stats, err := svc.Stop()
			if err != nil {
				return err
			}
			fmt.Printf("\nsaved %s (%.1fs, %d bytes, %d samples)\n",
				stats.Path, stats.Duration.Seconds(), stats.ByteSize, stats.SampleCount)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dual, "dual", false, "record system loopback and microphone mixed")
	cmd.Flags().DurationVar(&duration, "duration", 0, "maximum recording duration (0 = until Ctrl+C)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file name or stem")
	cmd.Flags().StringVar(&format, "format", "", "container format: wav or aac")
	return cmd
}

func outcomeCmd() *cobra.Command {
	var (
		contextName string
		failed      bool
	)

	cmd := &cobra.Command{
		Use:   "outcome <device-name>",
		Short: "Record a success or failure for a device to tune selection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := newService()
			if err != nil {
				return err
			}
			defer cleanup()

			eps, err := svc.EnumerateDevices()
			if err != nil {
				return err
			}
			for _, ep := range eps {
				if ep.Name == args[0] {
					return svc.RecordOutcome(ep, audio.ParseContext(contextName), !failed)
				}
			}
			return fmt.Errorf("device %q not found: %w", args[0], audio.ErrDeviceUnavailable)
		},
	}
	cmd.Flags().StringVar(&contextName, "context", "default", "recording context: meeting, manual, default")
	cmd.Flags().BoolVar(&failed, "failed", false, "record the outcome as a failure")
	return cmd
}

func unblockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unblock <device-name>",
		Short: "Remove a device from the selector block-list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logging.NewWithLevel(cfg.LogLevel)

			host, err := audio.NewHost()
			if err != nil {
				return err
			}
			defer host.Close()

			store := audio.NewPrefStore(cfg.Capture.PrefsPath)
			selector, err := audio.NewSelector(audio.NewCatalog(host), store, log)
			if err != nil {
				return err
			}
			return selector.Unblock(args[0])
		},
	}
}
