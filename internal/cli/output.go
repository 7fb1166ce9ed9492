package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/metrics"
)

func printActivity(w io.Writer, a domain.DailyActivity, profile *domain.UserProfile) {
	fmt.Fprintf(w, "Date:     %s\n", a.Date)
	if profile != nil && profile.StepGoal > 0 {
		pct := float64(a.Steps) / float64(profile.StepGoal) * 100
		fmt.Fprintf(w, "Steps:    %d / %d (%.0f%%)\n", a.Steps, profile.StepGoal, pct)
	} else {
		fmt.Fprintf(w, "Steps:    %d\n", a.Steps)
	}
	fmt.Fprintf(w, "Calories: %d kcal\n", a.Calories)
	fmt.Fprintf(w, "Distance: %.2f km\n", metrics.Kilometers(a.Distance))
	if len(a.ManualEntries) > 0 {
		fmt.Fprintln(w, "Entries:")
		printEntries(w, a.ManualEntries)
	}
}

func printEntries(w io.Writer, entries []domain.ManualEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tACTIVITY\tMINUTES\tKCAL\tLOGGED")
	for _, e := range entries {
		minutes := "-"
		if e.Duration != nil {
			minutes = fmt.Sprint(*e.Duration)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", e.ID, e.Activity, minutes, e.Calories, e.Timestamp.Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}

func printHistory(w io.Writer, history []domain.DailyActivity) {
	if len(history) == 0 {
		fmt.Fprintln(w, "No activity recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tSTEPS\tKCAL\tKM\tENTRIES")
	for _, a := range history {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%d\n", a.Date, a.Steps, a.Calories, metrics.Kilometers(a.Distance), len(a.ManualEntries))
	}
	_ = tw.Flush()
}

func printWeekly(w io.Writer, s domain.WeeklySummary) {
	fmt.Fprintf(w, "Week %s to %s (%d days recorded)\n", s.From, s.To, s.Days)
	fmt.Fprintf(w, "Average steps:    %.0f\n", s.AverageSteps)
	fmt.Fprintf(w, "Average calories: %.0f kcal\n", s.AverageCalories)
	fmt.Fprintf(w, "Average distance: %.2f km\n", s.AverageDistance/1000)
	fmt.Fprintf(w, "Total calories:   %d kcal\n", s.TotalCalories)
}

func printProfile(w io.Writer, p domain.UserProfile) {
	fmt.Fprintf(w, "Step goal: %d\n", p.StepGoal)
	fmt.Fprintf(w, "Weight:    %s\n", optional(p.Weight, "%.1f kg"))
	fmt.Fprintf(w, "Height:    %s\n", optional(p.Height, "%.0f cm"))
	fmt.Fprintf(w, "Age:       %s\n", optional(p.Age, "%d"))
	gender := string(p.Gender)
	if gender == "" {
		gender = "-"
	}
	fmt.Fprintf(w, "Gender:    %s\n", gender)
}

func optional[T any](v *T, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

// describeError renders failures the way a terminal user needs them.
func describeError(err error) string {
	var terr *domain.TransportError
	switch {
	case errors.Is(err, domain.ErrValidation):
		msg := "Invalid input:"
		for _, v := range domain.Violations(err) {
			msg += "\n  - " + v
		}
		return msg
	case errors.Is(err, domain.ErrAuthentication):
		return "Authentication failed: check FITTRACK_REMOTE_USERNAME and FITTRACK_REMOTE_PASSWORD"
	case errors.Is(err, domain.ErrNotFound):
		return "Not found: " + err.Error()
	case errors.As(err, &terr):
		return "Backend unavailable, try again later: " + err.Error()
	}
	return "Error: " + err.Error()
}
