package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DaphneDana/Matlab-app/internal/jobs"
	"github.com/DaphneDana/Matlab-app/internal/simulator"
)

const barWidth = 40

var (
	simView    string
	simTickMS  int
	simDelayMS int
	simQuiet   bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the progress simulator in the terminal",
	Long: `Runs one simulated analysis and prints each tick.
Press Ctrl-C to tear the run down before it completes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		view, ok := jobs.ParseView(simView)
		if !ok {
			return fmt.Errorf("unknown view: %q (use home or input)", simView)
		}
		profile := jobs.ProfileFor(view).WithTiming(
			time.Duration(simTickMS)*time.Millisecond,
			time.Duration(simDelayMS)*time.Millisecond,
		)

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(stop)

		return runSimulation(cmd.OutOrStdout(), profile, simulator.Options{}, stop, simQuiet)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simView, "view", string(jobs.ViewHome), "hosting view (home or input)")
	simulateCmd.Flags().IntVar(&simTickMS, "tick-ms", 0, "tick interval in milliseconds (0 keeps the profile default)")
	simulateCmd.Flags().IntVar(&simDelayMS, "delay-ms", 0, "completion delay in milliseconds (0 keeps the profile default)")
	simulateCmd.Flags().BoolVar(&simQuiet, "quiet", false, "print only the final state")
	rootCmd.AddCommand(simulateCmd)
}

// runSimulation はシミュレーターを開始し、完了か stop の受信まで進捗を出力します。
func runSimulation(out io.Writer, profile simulator.Profile, opts simulator.Options, stop <-chan os.Signal, quiet bool) error {
	updates := make(chan simulator.State, 16)
	done := make(chan simulator.State, 1)
	opts.OnProgress = func(st simulator.State) { updates <- st }
	opts.OnComplete = func(st simulator.State) { done <- st }

	sim, err := simulator.New(profile, opts)
	if err != nil {
		return err
	}
	if outcome := sim.Start(simulator.PreconditionFunc(func() bool { return true })); outcome != simulator.OutcomeStarted {
		return fmt.Errorf("simulation did not start: %s", outcome)
	}
	fmt.Fprintf(out, "Running %s simulation (tick %s)\n", color.CyanString(profile.Name), profile.TickInterval)

	for {
		select {
		case st := <-updates:
			if !quiet {
				fmt.Fprintln(out, renderProgress(st))
			}
		case st := <-done:
			// 完了前に届いた進捗を出し切る
			for drained := false; !drained; {
				select {
				case pending := <-updates:
					if !quiet {
						fmt.Fprintln(out, renderProgress(pending))
					}
				default:
					drained = true
				}
			}
			fmt.Fprintf(out, "%s after %d ticks\n", color.GreenString(st.Phase.Caption()), st.Ticks)
			return nil
		case <-stop:
			sim.Cancel()
			st := sim.Snapshot()
			fmt.Fprintf(out, "%s at %.0f%%\n", color.YellowString("Cancelled"), st.Progress)
			return nil
		}
	}
}

// renderProgress は進捗バーを1行で返します。
func renderProgress(st simulator.State) string {
	filled := int(st.Progress / simulator.MaxProgress * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled)
	return fmt.Sprintf("[%s] %3.0f%%  %s", bar, st.Progress, st.Phase.Caption())
}
