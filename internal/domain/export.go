package domain

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"example.com/fittrack/internal/metrics"
)

// CSVHeader is the first row of an activity export.
var CSVHeader = []string{"Date", "Steps", "Calories", "Distance (km)", "Manual Entries"}

// ExportCSV writes every recorded day of the user in chronological order.
func (s *ActivityService) ExportCSV(ctx context.Context, userID string, w io.Writer) error {
	activities, err := s.repo.ListActivities(ctx, userID, ActivityFilter{})
	if err != nil {
		return err
	}
	activities = s.deriveAll(activities)
	sortByDateDesc(activities)

	out := csv.NewWriter(w)
	if err := out.Write(CSVHeader); err != nil {
		return err
	}
	for i := len(activities) - 1; i >= 0; i-- {
		a := activities[i]
		if err := out.Write([]string{
			a.Date,
			strconv.Itoa(a.Steps),
			strconv.Itoa(a.Calories),
			fmt.Sprintf("%.2f", metrics.Kilometers(a.Distance)),
			strconv.Itoa(len(a.ManualEntries)),
		}); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}
