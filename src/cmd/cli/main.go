package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"screenshot-native/src/config"
	"screenshot-native/src/messages"
	"screenshot-native/src/methodchannel"
	"screenshot-native/src/windowlist"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

type cliOptions struct {
	addr       string
	out        string
	jsonOutput bool
	verbose    bool
	timeout    time.Duration
}

// channelClient is the part of methodchannel.Client the commands use.
type channelClient interface {
	Call(ctx context.Context, method string, args any, out any) error
	Events() <-chan methodchannel.Event
	Close() error
}

var dial = func(ctx context.Context, addr string) (channelClient, error) {
	return methodchannel.Dial(ctx, addr)
}

func main() {
	if err := runWithArgs(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string, stdout, stderr io.Writer) error {
	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return cmd.ExecuteContext(ctx)
}

func defaultAddr() string {
	if v := os.Getenv(config.ChannelAddrEnvVar); v != "" {
		return v
	}
	return config.DefaultChannelAddr
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "screenshot-cli",
		Short:         "Drive a running screenshot-native resident over its method channel",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Configure logging BEFORE any other operations.
			if opts.verbose {
				log.SetOutput(cmd.ErrOrStderr())
			} else {
				log.SetOutput(io.Discard)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.addr, "addr", defaultAddr(), "Method channel address (host:port)")
	cmd.PersistentFlags().StringVarP(&opts.out, "out", "o", "-", "Where to write PNG output ('-' for stdout)")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "Per-call timeout")

	cmd.AddCommand(
		newFullCmd(opts),
		newRegionCmd(opts),
		newWindowCmd(opts),
		newWindowsCmd(opts),
		newSelectCmd(opts),
		newHotkeyCmd(opts),
	)
	return cmd
}

func connect(cmd *cobra.Command, opts *cliOptions) (channelClient, error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	log.Printf("connecting to %s", opts.addr)
	c, err := dial(ctx, opts.addr)
	if err != nil {
		return nil, fmt.Errorf("is the resident running? %w", err)
	}
	return c, nil
}

// call runs one method with the per-call timeout.
func call(cmd *cobra.Command, opts *cliOptions, c channelClient, method string, args any, out any) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	start := time.Now()
	err := c.Call(ctx, method, args, out)
	log.Printf("%s finished in %v, err=%v", method, time.Since(start), err)
	return err
}

func newFullCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "full",
		Short: "Capture every display",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return captureTo(cmd, opts, "captureFullScreen", nil, "full screen")
		},
	}
}

func newRegionCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "region X Y WIDTH HEIGHT",
		Short: "Capture a rectangle in virtual-screen coordinates",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRegion(args)
			if err != nil {
				return err
			}
			return captureTo(cmd, opts, "captureRegion", r, fmt.Sprintf("region %d,%d %dx%d", r.X, r.Y, r.Width, r.Height))
		},
	}
}

func newWindowCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "window ID",
		Short: "Capture one window by the id listed by 'windows'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return captureTo(cmd, opts, "captureWindow", map[string]string{"windowId": args[0]}, "window "+args[0])
		},
	}
}

func newWindowsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "windows",
		Short: "List capturable windows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd, opts)
			if err != nil {
				return err
			}
			defer c.Close()

			var list []windowlist.Descriptor
			if err := call(cmd, opts, c, "getAvailableWindows", nil, &list); err != nil {
				return err
			}
			return printWindows(cmd.OutOrStdout(), list, opts.jsonOutput)
		},
	}
}

func newSelectCmd(opts *cliOptions) *cobra.Command {
	var capture bool
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Show the selection overlay and print the chosen region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd, opts)
			if err != nil {
				return err
			}
			defer c.Close()

			var started bool
			if err := call(cmd, opts, c, "showNativeRegionCapture", nil, &started); err != nil {
				return err
			}
			if !started {
				return errors.New("a selection session is already running")
			}

			r, err := waitForSelection(cmd.Context(), c, 250*time.Millisecond)
			if err != nil {
				return err
			}
			if r == nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "selection cancelled")
				return nil
			}
			if capture {
				return captureWith(cmd, opts, c, "captureRegion", r, "selection")
			}
			return printRegion(cmd.OutOrStdout(), *r, opts.jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&capture, "capture", false, "Capture the selected region instead of printing it")
	return cmd
}

func newHotkeyCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hotkey",
		Short: "Manage global hotkeys on the resident",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "register ACTION SHORTCUT",
		Short: "Bind SHORTCUT (e.g. Ctrl+Shift+S) to ACTION",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return hotkeyCall(cmd, opts, "registerHotkey", map[string]string{"actionId": args[0], "shortcut": args[1]}, args[0])
		},
	}, &cobra.Command{
		Use:   "unregister ACTION",
		Short: "Remove the binding of ACTION",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return hotkeyCall(cmd, opts, "unregisterHotkey", map[string]string{"actionId": args[0]}, args[0])
		},
	}, &cobra.Command{
		Use:   "listen",
		Short: "Print hotkey presses until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd, opts)
			if err != nil {
				return err
			}
			defer c.Close()
			return listenHotkeys(cmd.Context(), c, cmd.OutOrStdout())
		},
	})
	return cmd
}

func hotkeyCall(cmd *cobra.Command, opts *cliOptions, method string, args map[string]string, action string) error {
	c, err := connect(cmd, opts)
	if err != nil {
		return err
	}
	defer c.Close()

	var ok bool
	if err := call(cmd, opts, c, method, args, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %q was refused", method, action)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", action)
	return nil
}

type regionArgs struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func parseRegion(args []string) (*regionArgs, error) {
	vals := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d (%q) is not an integer", i+1, a)
		}
		vals[i] = v
	}
	if vals[2] <= 0 || vals[3] <= 0 {
		return nil, fmt.Errorf("width and height must be positive")
	}
	return &regionArgs{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}

// waitForSelection waits for the outcome of a session, listening for push
// events and polling the result slot in case a push was missed. A nil
// region means the user cancelled.
func waitForSelection(ctx context.Context, c channelClient, poll time.Duration) (*regionArgs, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-c.Events():
			if !ok {
				return nil, methodchannel.ErrClientClosed
			}
			switch ev.Name {
			case messages.TypeRegionSelected:
				var r regionArgs
				if err := json.Unmarshal(ev.Data, &r); err != nil {
					return nil, fmt.Errorf("decode %s: %w", ev.Name, err)
				}
				return &r, nil
			case messages.TypeRegionCancelled:
				return nil, nil
			case messages.TypeOverlayFailed:
				var m messages.OverlayFailed
				_ = json.Unmarshal(ev.Data, &m)
				return nil, fmt.Errorf("overlay failed: %s", m.Message)
			}
		case <-ticker.C:
			var res *struct {
				Cancelled bool `json:"cancelled"`
				regionArgs
			}
			if err := c.Call(ctx, "getRegionSelectionResult", nil, &res); err != nil {
				return nil, err
			}
			if res == nil {
				continue
			}
			if res.Cancelled {
				return nil, nil
			}
			return &res.regionArgs, nil
		}
	}
}

func listenHotkeys(ctx context.Context, c channelClient, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-c.Events():
			if !ok {
				return methodchannel.ErrClientClosed
			}
			if ev.Name != messages.TypeHotkeyPressed {
				continue
			}
			var m messages.HotkeyPressed
			if err := json.Unmarshal(ev.Data, &m); err != nil {
				return fmt.Errorf("decode %s: %w", ev.Name, err)
			}
			fmt.Fprintf(w, "%s %s\n", time.Now().Format(time.RFC3339), m.ActionID)
		}
	}
}

func captureTo(cmd *cobra.Command, opts *cliOptions, method string, args any, source string) error {
	c, err := connect(cmd, opts)
	if err != nil {
		return err
	}
	defer c.Close()
	return captureWith(cmd, opts, c, method, args, source)
}

func captureWith(cmd *cobra.Command, opts *cliOptions, c channelClient, method string, args any, source string) error {
	if opts.jsonOutput && (opts.out == "" || opts.out == "-") {
		return errors.New("--json needs --out to point at a file")
	}
	start := time.Now()
	var data []byte
	if err := call(cmd, opts, c, method, args, &data); err != nil {
		return err
	}
	if err := validatePNG(data); err != nil {
		return err
	}
	if err := writeImage(cmd.OutOrStdout(), opts.out, data); err != nil {
		return err
	}
	if opts.jsonOutput {
		return outputResult(cmd.OutOrStdout(), CaptureResult{
			Source:    source,
			Path:      opts.out,
			Bytes:     len(data),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Duration:  time.Since(start).Seconds(),
		})
	}
	return nil
}

func validatePNG(data []byte) error {
	if len(data) == 0 {
		return errors.New("resident returned no image data")
	}
	if len(data) < len(pngMagic) || !bytes.Equal(data[:len(pngMagic)], pngMagic) {
		return errors.New("resident returned data that is not a PNG (invalid magic number)")
	}
	return nil
}

func writeImage(stdout io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.Printf("wrote %d bytes to %s", len(data), path)
	return nil
}

type CaptureResult struct {
	Source    string  `json:"source"`
	Path      string  `json:"path"`
	Bytes     int     `json:"bytes"`
	Timestamp string  `json:"timestamp"`
	Duration  float64 `json:"duration_seconds"`
}

func outputResult(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}

func printRegion(w io.Writer, r regionArgs, jsonOutput bool) error {
	if jsonOutput {
		return outputResult(w, r)
	}
	_, err := fmt.Fprintf(w, "%d %d %d %d\n", r.X, r.Y, r.Width, r.Height)
	return err
}

func printWindows(w io.Writer, list []windowlist.Descriptor, jsonOutput bool) error {
	if jsonOutput {
		for i := range list {
			list[i].Icon = nil
		}
		return outputResult(w, list)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAPP\tTITLE")
	for _, d := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.ID, d.AppName, d.Title)
	}
	return tw.Flush()
}
