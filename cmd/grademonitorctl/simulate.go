package main

import (
	"context"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/grademonitor-api/internal/models"
	"github.com/noah-isme/grademonitor-api/internal/service"
	"github.com/noah-isme/grademonitor-api/pkg/coalesce"
	"github.com/noah-isme/grademonitor-api/pkg/i18n"
)

var simulateClose bool

var simulateCmd = &cobra.Command{
	Use:   "simulate <fixture.yaml>",
	Short: "Replay a fixture's edits and print every flushed change-set",
	Long: `simulate opens a monitor session on the fixture dataset, applies each
edit after its delay on a virtual clock and prints the self-estimate after
every edit together with each change-set the session flushes.

Without --close the clock is advanced past the flush delay once the script
ends; with --close the session is torn down instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadFixture(args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return simulate(ctx, cmd.OutOrStdout(), f, simulateClose)
	},
}

func init() {
	simulateCmd.Flags().BoolVar(&simulateClose, "close", false, "close the session after the last edit instead of waiting for the timer")
	rootCmd.AddCommand(simulateCmd)
}

func simulate(ctx context.Context, w io.Writer, f *fixture, closeAtEnd bool) error {
	catalog, err := i18n.Default("en")
	if err != nil {
		return err
	}
	clock := coalesce.NewManualScheduler()
	delay := f.FlushDelay
	if delay <= 0 {
		delay = coalesce.DefaultDelay
	}

	var printErr error
	sink := coalesce.SinkFunc(func(batch models.ChangeBatch) {
		fmt.Fprintf(w, "[%s] flush\n", clock.Now())
		out, err := yaml.Marshal(batch)
		if err != nil {
			printErr = fmt.Errorf("encode batch: %w", err)
			return
		}
		_, _ = w.Write(out)
	})

	monitors := service.NewMonitorService(staticDatasets{dataset: f.Dataset}, catalog, sink, nil, zap.NewNop(), service.MonitorConfig{
		FlushDelay:    delay,
		DefaultLocale: "en",
		Scheduler:     clock,
	})
	session, err := monitors.Open(ctx, f.Scope)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "[%s] open: current %s, self estimation %s, best possible %s\n",
		clock.Now(), session.View.Current, session.View.SelfEstimation, session.View.BestPossible)

	validate := validator.New()
	for i, e := range f.Edits {
		clock.Advance(e.After)
		if err := validate.Struct(e.Command); err != nil {
			return fmt.Errorf("edit %d: %w", i+1, err)
		}
		command, err := e.Command.ToCommand()
		if err != nil {
			return fmt.Errorf("edit %d: %w", i+1, err)
		}
		result, err := monitors.Dispatch(session.ID, command)
		if err != nil {
			fmt.Fprintf(w, "[%s] %s rejected: %v\n", clock.Now(), service.CommandType(command), err)
			continue
		}
		fmt.Fprintf(w, "[%s] %s: self estimation %s, goal %s\n",
			clock.Now(), service.CommandType(command), result.View.SelfEstimation, result.View.Goal.Status)
	}

	if closeAtEnd {
		if err := monitors.Close(session.ID); err != nil {
			return err
		}
	} else {
		clock.Advance(delay)
	}
	return printErr
}
