package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"screenshot-native/src/bridge"
	"screenshot-native/src/config"
	"screenshot-native/src/eventloop"
	"screenshot-native/src/hotkey"
	"screenshot-native/src/logutil"
	"screenshot-native/src/messages"
	"screenshot-native/src/methodchannel"
	"screenshot-native/src/notification"
	"screenshot-native/src/overlay"
	"screenshot-native/src/runtimeinit"
	"screenshot-native/src/selection"
	"screenshot-native/src/session"
	"screenshot-native/src/singleinstance"
	"screenshot-native/src/tray"
)

const appTitle = "Screenshot Native"

type mainOptions struct {
	runOnce     bool
	stdout      bool
	channelAddr string
	hotkey      string
}

type runOnceClient interface {
	TryRunOnce(ctx context.Context, outputToStdout bool) (bool, []byte, error)
}

func main() {
	// Ensure DPI awareness before creating any windows or querying metrics
	enableDPIAwareness()

	cmd := newRootCmd(&mainOptions{})
	cmd.SetArgs(normalizeLegacyArgs(os.Args)[1:])
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "screenshot-native",
		Short:         "Native region, window and full-screen capture host",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.runOnce {
				return handleRunOnceWithDelegation(cmd.Context(), singleinstance.NewClient(), opts.stdout, cmd.OutOrStdout(), func() error {
					return runStandalone(*opts, cmd.OutOrStdout())
				})
			}
			return runResident(*opts)
		},
	}
	cmd.Flags().BoolVar(&opts.runOnce, "run-once", false, "Select a region once, copy the PNG to the clipboard and exit")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "With --run-once, write the PNG to stdout instead of the clipboard")
	cmd.Flags().StringVar(&opts.channelAddr, "channel-addr", "", "Loopback address for the method channel (overrides CHANNEL_ADDR)")
	cmd.Flags().StringVar(&opts.hotkey, "hotkey", "", "Region capture hotkey (overrides HOTKEY)")

	return cmd
}

// normalizeLegacyArgs maps single-dash long flags (-run-once) to the
// double-dash form cobra expects.
func normalizeLegacyArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 1; i < len(out); i++ {
		arg := out[i]
		if arg == "--" {
			break
		}
		if strings.HasPrefix(arg, "--") || !strings.HasPrefix(arg, "-") {
			continue
		}
		name, _, _ := strings.Cut(arg[1:], "=")
		if len(name) > 1 {
			out[i] = "-" + arg
		}
	}
	return out
}

// handleRunOnceWithDelegation hands the request to a resident instance and
// falls back to a standalone capture when none answers.
func handleRunOnceWithDelegation(ctx context.Context, client runOnceClient, stdout bool, out io.Writer, fallback func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// Load .env early so SINGLEINSTANCE_PORT_* are applied before delegation scan
	_, _ = config.Load()

	delegated, data, err := client.TryRunOnce(ctx, stdout)
	if err != nil {
		log.Printf("Delegation error: %v; falling back to standalone", err)
		return fallback()
	}
	if !delegated {
		log.Printf("No resident detected (not delegated), running standalone")
		return fallback()
	}
	log.Printf("Delegated to resident")
	if stdout && len(data) > 0 {
		if _, err := out.Write(data); err != nil {
			return fmt.Errorf("write PNG to stdout: %w", err)
		}
	}
	return nil
}

func bootstrap(opts mainOptions, blocking bool) (*config.Config, error) {
	return runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions: config.LoadOptions{
			ChannelAddrOverride: opts.channelAddr,
			HotkeyOverride:      opts.hotkey,
		},
		SetupLogging:        logutil.Setup,
		ShowBlockingErrors:  blocking,
		RequireValidHotkeys: !opts.runOnce,
	})
}

// runStandalone selects and captures in this process.
func runStandalone(opts mainOptions, out io.Writer) error {
	if _, err := bootstrap(opts, false); err != nil {
		return err
	}

	var target session.ResultTarget = session.ClipboardTarget{}
	if opts.stdout {
		target = session.StdoutTarget{Writer: out}
	}
	res, err := session.Execute(context.Background(), session.Options{
		Select: overlay.NewSelector().Select,
		Target: target,
	})
	if err != nil {
		return err
	}
	log.Printf("Run-once capture done: %dx%d, %d bytes", res.Region.Width, res.Region.Height, len(res.PNG))
	return nil
}

func runResident(opts mainOptions) error {
	// Pre-flight: refuse to start a second resident
	detectCtx, detectCancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	port, found := singleinstance.DetectResidentPort(detectCtx)
	detectCancel()
	if found {
		log.Printf("Pre-flight: resident answered PING on port %d", port)
		return fmt.Errorf("another instance is already running on port %d", port)
	}
	startPort := singleinstance.ConfiguredPorts().Start
	addr := fmt.Sprintf("127.0.0.1:%d", startPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("Pre-flight: port %d busy → resident already exists", startPort)
		return fmt.Errorf("another instance is already running on port %d", startPort)
	}
	// We claimed the port; release it so the event loop can re-bind.
	_ = listener.Close()

	cfg, err := bootstrap(opts, true)
	if err != nil {
		return err
	}
	logMonitorConfiguration()
	log.Printf("%s initialized, hotkey %s, channel %s", appTitle, cfg.Hotkey, cfg.ChannelAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := methodchannel.NewDispatcher()
	channel := methodchannel.NewServer(dispatcher)
	publisher := messages.NewPublisher(channel)

	runner := session.NewRunner(overlay.NewSelector(), &session.Slot{}, func(r selection.Result, err error) {
		publisher.Publish(messages.FromSelection(r, err))
	})
	loop := eventloop.New(eventloop.Options{Runner: runner, Publisher: publisher})
	tooltip := fmt.Sprintf("%s - Press %s to capture", appTitle, cfg.Hotkey)
	loop.SetDefaultTooltip(tooltip)

	registrar, err := hotkey.NewRegistrar()
	if err != nil {
		notification.ShowBlockingError("Hotkeys unavailable", err.Error())
		return fmt.Errorf("hotkey registrar: %w", err)
	}
	hotkeys := hotkey.NewManager(registrar, loop.HotkeyPressed)
	defer func() {
		if err := hotkeys.Close(); err != nil {
			log.Printf("hotkey shutdown: %v", err)
		}
	}()
	if !hotkeys.Register(config.RegionCaptureAction, cfg.Hotkey) {
		notification.ShowBlockingError("Hotkey unavailable", fmt.Sprintf("Could not register %s. It may be in use by another application.", cfg.Hotkey))
	}
	if cfg.FullscreenHotkey != "" && !hotkeys.Register(config.FullscreenCaptureAction, cfg.FullscreenHotkey) {
		log.Printf("Could not register full screen hotkey %s", cfg.FullscreenHotkey)
	}

	bridge.Register(dispatcher, bridge.Deps{
		Sessions: bridge.RunnerSessions{Runner: runner},
		Hotkeys:  hotkeys,
	})
	if err := channel.Start(cfg.ChannelAddr); err != nil {
		notification.ShowBlockingError("Method channel unavailable", err.Error())
		return err
	}
	defer func() {
		if err := channel.Close(); err != nil {
			log.Printf("method channel shutdown: %v", err)
		}
	}()
	log.Printf("Method channel listening on ws://%s%s", channel.Addr(), methodchannel.Path)

	go tray.Run(tray.Config{
		Title:               appTitle,
		Tooltip:             tooltip,
		RegionHotkey:        cfg.Hotkey,
		FullscreenHotkey:    cfg.FullscreenHotkey,
		OnCaptureRegion:     func() { loop.Trigger(config.RegionCaptureAction) },
		OnCaptureFullScreen: func() { loop.Trigger(config.FullscreenCaptureAction) },
		OnExit:              cancel,
	})
	defer tray.Quit()

	// Handle SIGINT/SIGTERM
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("event loop stopped: %v", err)
		return err
	}
	return nil
}
