// Command stress-runonce fires concurrent run-once clients at a resident and
// reports how the single capture slot handled the contention.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"screenshot-native/src/singleinstance"
)

type stressOptions struct {
	n        int
	mode     string
	deadline time.Duration
	stagger  time.Duration
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeBusy
	outcomeCancelled
	outcomeStandalone
	outcomeError
)

var outcomeNames = [...]string{"ok", "busy", "cancelled", "standalone", "err"}

func (o outcome) String() string { return outcomeNames[o] }

type sample struct {
	outcome outcome
	bytes   int
	latency time.Duration
}

func main() {
	opts := &stressOptions{}
	if err := newRootCmd(opts).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-runonce",
		Short:         "Fire concurrent run-once clients at the resident",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(*opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().StringVar(&opts.mode, "mode", "std", "std|clip: PNG returned to the client or left on the clipboard")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")
	cmd.Flags().DurationVar(&opts.stagger, "stagger", 0, "delay between client launches")

	return cmd
}

func runWithOptions(opts stressOptions, out io.Writer) error {
	if opts.mode != "std" && opts.mode != "clip" {
		return fmt.Errorf("unknown mode %q (want std or clip)", opts.mode)
	}
	if opts.n <= 0 {
		return fmt.Errorf("--n must be positive, got %d", opts.n)
	}
	stdout := opts.mode == "std"

	samples := make([]sample, opts.n)
	var wg sync.WaitGroup
	start := time.Now()
	for i := range samples {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), opts.deadline)
			defer cancel()
			began := time.Now()
			delegated, data, err := singleinstance.NewClient().TryRunOnce(ctx, stdout)
			samples[i] = sample{
				outcome: classify(delegated, data, err, stdout),
				bytes:   len(data),
				latency: time.Since(began),
			}
		}()
		if opts.stagger > 0 {
			time.Sleep(opts.stagger)
		}
	}
	wg.Wait()

	fmt.Fprintln(out, summarize(samples, time.Since(start)))
	return nil
}

// classify maps one client's result onto an outcome. The resident reports
// contention and user cancellation as plain error text.
func classify(delegated bool, data []byte, err error, stdout bool) outcome {
	switch {
	case err != nil:
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "busy") {
			return outcomeBusy
		}
		if strings.Contains(msg, "cancelled") {
			return outcomeCancelled
		}
		return outcomeError
	case !delegated:
		return outcomeStandalone
	case stdout && !isPNG(data):
		return outcomeError
	}
	return outcomeOK
}

func summarize(samples []sample, elapsed time.Duration) string {
	counts := make([]int, len(outcomeNames))
	total := 0
	latencies := make([]time.Duration, 0, len(samples))
	for _, s := range samples {
		counts[s.outcome]++
		total += s.bytes
		latencies = append(latencies, s.latency)
	}
	slices.Sort(latencies)

	var b strings.Builder
	fmt.Fprintf(&b, "launched=%d", len(samples))
	for o, c := range counts {
		fmt.Fprintf(&b, " %s=%d", outcome(o), c)
	}
	fmt.Fprintf(&b, " bytes=%d p50=%s p95=%s max=%s elapsed=%s",
		total, percentile(latencies, 50), percentile(latencies, 95), percentile(latencies, 100), elapsed.Round(time.Millisecond))
	return b.String()
}

// percentile uses nearest-rank on an already sorted slice.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1].Round(time.Millisecond)
}

func isPNG(data []byte) bool {
	return bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n"))
}
