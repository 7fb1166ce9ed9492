package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/motion"
	"example.com/fittrack/internal/observability"
)

func newTodayCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Show today's steps, calories, distance and entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			today, err := s.activities.GetTodaysActivity(cmd.Context(), s.userID)
			if err != nil {
				return err
			}
			profile, err := s.profiles.GetProfile(cmd.Context(), s.userID)
			if err != nil {
				return err
			}
			printActivity(cmd.OutOrStdout(), today, &profile)
			return nil
		},
	}
}

func newStepsCommand(s *session) *cobra.Command {
	steps := &cobra.Command{
		Use:   "steps",
		Short: "Set or add to today's step count",
	}

	set := &cobra.Command{
		Use:   "set <count>",
		Short: "Overwrite today's step count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseCount(args[0])
			if err != nil {
				return err
			}
			today, err := s.activities.UpdateTodaysSteps(cmd.Context(), s.userID, n)
			if err != nil {
				return err
			}
			printActivity(cmd.OutOrStdout(), today, nil)
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <count>",
		Short: "Add steps to today's count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseCount(args[0])
			if err != nil {
				return err
			}
			updated, err := s.activities.AdvanceTodaysSteps(cmd.Context(), s.userID, func(today domain.DailyActivity) (int, error) {
				return today.Steps + n, nil
			})
			if err != nil {
				return err
			}
			printActivity(cmd.OutOrStdout(), updated, nil)
			return nil
		},
	}

	steps.AddCommand(set, add)
	return steps
}

func newEntryCommand(s *session) *cobra.Command {
	entry := &cobra.Command{
		Use:   "entry",
		Short: "Manage manually logged exercise",
	}

	var (
		activity string
		calories int
		duration int
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Log an exercise against today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input := domain.ManualEntryInput{Activity: activity, Calories: calories}
			if cmd.Flags().Changed("duration") {
				d := duration
				input.Duration = &d
			}
			today, err := s.activities.AddManualEntry(cmd.Context(), s.userID, input)
			if err != nil {
				return err
			}
			printActivity(cmd.OutOrStdout(), today, nil)
			return nil
		},
	}
	add.Flags().StringVar(&activity, "activity", "", "Exercise name, 2 to 50 characters")
	add.Flags().IntVar(&calories, "calories", 0, "Calories burned, 0 to 5000")
	add.Flags().IntVar(&duration, "duration", 0, "Duration in minutes, 0 to 1440 (optional)")
	_ = add.MarkFlagRequired("activity")
	_ = add.MarkFlagRequired("calories")

	var date, nameFilter string
	list := &cobra.Command{
		Use:   "list",
		Short: "List logged exercise",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := domain.EntryFilter{Activity: nameFilter}
			if date != "" {
				days, _, err := s.activities.ListActivities(cmd.Context(), s.userID, domain.ActivityFilter{Date: date})
				if err != nil {
					return err
				}
				if len(days) == 0 {
					printEntries(cmd.OutOrStdout(), nil)
					return nil
				}
				filter.ActivityID = days[0].ID
			}
			entries, err := s.activities.ListManualEntries(cmd.Context(), s.userID, filter)
			if err != nil {
				return err
			}
			printEntries(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	list.Flags().StringVar(&date, "date", "", "Only entries of this day, YYYY-MM-DD")
	list.Flags().StringVar(&nameFilter, "activity", "", "Filter by exercise name (substring)")

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a logged exercise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.activities.DeleteManualEntry(cmd.Context(), s.userID, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted entry %s\n", args[0])
			return nil
		},
	}

	entry.AddCommand(add, list, remove)
	return entry
}

func newHistoryCommand(s *session) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded days, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			history, err := s.activities.GetHistoryData(cmd.Context(), s.userID, days)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), history)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "Maximum number of days to show")
	return cmd
}

func newExportCommand(s *session) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every recorded day as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := s.activities.ExportCSV(cmd.Context(), s.userID, w); err != nil {
				return err
			}
			if output != "" && output != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func newWeeklyCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "weekly",
		Short: "Averages over the last seven days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary, err := s.activities.WeeklySummary(cmd.Context(), s.userID)
			if err != nil {
				return err
			}
			printWeekly(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}

func newResetCommand(s *session) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every recorded day and entry; the profile is kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("reset deletes all activity data; pass --yes to confirm")
			}
			if err := s.activities.ClearAllData(cmd.Context(), s.userID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All activity data cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}

func newTrackCommand(s *session) *cobra.Command {
	var samples string
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Count steps from a recorded accelerometer log (x,y,z per line)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			today, err := s.activities.GetTodaysActivity(cmd.Context(), s.userID)
			if err != nil {
				return err
			}

			var in io.Reader
			switch samples {
			case "":
			case "-":
				in = cmd.InOrStdin()
			default:
				f, err := os.Open(samples)
				if err != nil {
					return fmt.Errorf("open samples: %w", err)
				}
				defer f.Close()
				in = f
			}

			source := motion.NewReaderSource(in)
			detector := motion.NewDetector(source, motion.WithThreshold(s.cfg.StepThreshold), motion.WithLogger(s.logger))
			unsubscribe := detector.OnStepUpdate(func(steps int) {
				s.logger.Debug("step detected", "steps", steps)
			})
			defer unsubscribe()

			if !detector.StartTracking(today.Steps) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Step tracking unavailable: %v\n", detector.Err())
				printActivity(cmd.OutOrStdout(), today, nil)
				return nil
			}

			select {
			case <-source.Done():
			case <-cmd.Context().Done():
			}
			detector.StopTracking()

			// An interrupted replay still stores what was counted.
			detected := detector.Steps() - today.Steps
			observability.RecordStepsDetected(detected)
			updated, err := s.activities.AdvanceTodaysSteps(context.WithoutCancel(cmd.Context()), s.userID, func(current domain.DailyActivity) (int, error) {
				return current.Steps + detected, nil
			})
			if err != nil {
				return err
			}
			if err := source.Err(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Detected %d steps\n", detected)
			printActivity(cmd.OutOrStdout(), updated, nil)
			return nil
		},
	}
	cmd.Flags().StringVar(&samples, "samples", "", "CSV file of accelerometer samples, or - for stdin")
	return cmd
}

func parseCount(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("step count must be a non-negative integer, got %q", raw)
	}
	return n, nil
}
