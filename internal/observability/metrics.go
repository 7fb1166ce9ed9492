package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fittrack",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent daily activity written to Postgres.",
	})
	stepUpdatesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "activity",
		Name:      "step_updates_total",
		Help:      "Number of step count overwrites applied to daily activities.",
	})
	manualEntriesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "activity",
		Name:      "manual_entries_total",
		Help:      "Number of manual exercise entries recorded.",
	})
	manualCaloriesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "activity",
		Name:      "manual_entry_calories_total",
		Help:      "Calories logged through manual exercise entries.",
	})
	detectedStepsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "motion",
		Name:      "detected_steps_total",
		Help:      "Steps detected from uploaded accelerometer samples.",
	})
	dataResetsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "activity",
		Name:      "data_resets_total",
		Help:      "Number of clear-all-data operations.",
	})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, stepUpdatesCounter, manualEntriesCounter, manualCaloriesCounter, detectedStepsCounter, dataResetsCounter)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordStepsUpdated counts a step overwrite.
func RecordStepsUpdated() {
	stepUpdatesCounter.Inc()
}

// RecordManualEntry counts a manual entry and its calories.
func RecordManualEntry(calories int) {
	manualEntriesCounter.Inc()
	if calories > 0 {
		manualCaloriesCounter.Add(float64(calories))
	}
}

// RecordStepsDetected counts steps produced by the motion detector.
func RecordStepsDetected(n int) {
	if n > 0 {
		detectedStepsCounter.Add(float64(n))
	}
}

// RecordDataReset counts a clear-all-data call.
func RecordDataReset() {
	dataResetsCounter.Inc()
}
