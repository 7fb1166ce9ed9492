package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"example.com/fittrack/internal/auth"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/motion"
	"example.com/fittrack/internal/observability"
	"example.com/fittrack/internal/persistence"
)

const (
	defaultHistoryDays = 7
	maxHistoryDays     = 366
)

func (h *Handler) today(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r, "", readScopes()...)
	if !ok {
		return
	}
	activity, err := h.activities.GetTodaysActivity(r.Context(), userID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ToActivityView(activity))
}

func (h *Handler) setTodaysSteps(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r, "", auth.ScopeActivityWrite)
	if !ok {
		return
	}
	var req StepsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Steps == nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "steps is required")
		return
	}

	activity, err := h.activities.UpdateTodaysSteps(r.Context(), userID, *req.Steps)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	h.detectors.Forget(userID)
	writeJSON(w, http.StatusOK, ToActivityView(activity))
}

func (h *Handler) addTodaysEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r, "", auth.ScopeActivityWrite)
	if !ok {
		return
	}
	var req EntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	activity, err := h.activities.AddManualEntry(r.Context(), userID, domain.ManualEntryInput{
		Activity: req.Activity,
		Duration: req.Duration,
		Calories: req.Calories,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, ToActivityView(activity))
}

// ingestSamples runs a batch of accelerometer readings through the caller's detector for today
// and stores the resulting count. Feeding and storing happen under today's writer lock.
func (h *Handler) ingestSamples(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r, "", auth.ScopeActivityWrite)
	if !ok {
		return
	}
	var req SamplesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var detected int
	activity, err := h.activities.AdvanceTodaysSteps(r.Context(), userID, func(current domain.DailyActivity) (int, error) {
		detector, err := h.detectors.Detector(userID, current.Date, func() (int, error) {
			return current.Steps, nil
		})
		if err != nil {
			return 0, err
		}
		before := detector.Steps()
		for _, s := range req.Samples {
			detector.HandleSample(motion.Sample{X: s.X, Y: s.Y, Z: s.Z})
		}
		detected = detector.Steps() - before
		return detector.Steps(), nil
	})
	if err != nil {
		h.detectors.Forget(userID)
		writeDomainError(w, h.logger, err)
		return
	}
	observability.RecordStepsDetected(detected)
	writeJSON(w, http.StatusOK, SamplesResponse{Detected: detected, Activity: ToActivityView(activity)})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r, r.URL.Query().Get("user_id"), readScopes()...)
	if !ok {
		return
	}

	days := defaultHistoryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxHistoryDays {
			writeError(w, http.StatusBadRequest, "validation_failed", fmt.Sprintf("days must be between 1 and %d", maxHistoryDays))
			return
		}
		days = parsed
	}

	activities, err := h.activities.GetHistoryData(r.Context(), userID, days)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{Items: activityViews(activities)})
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r, r.URL.Query().Get("user_id"), readScopes()...)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.activities.ExportCSV(r.Context(), userID, &buf); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="fittrack-%s.csv"`, h.activities.Today()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, ok := h.ownUser(w, r, q.Get("user_id"), readScopes()...)
	if !ok {
		return
	}

	filter := domain.ActivityFilter{
		Date: q.Get("date"),
		From: q.Get("start_date"),
		To:   q.Get("end_date"),
	}
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a non-negative integer")
			return
		}
		filter.Limit = parsed
	}
	cursor, err := persistence.DecodeCursor(q.Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}
	filter.Cursor = cursor

	activities, next, err := h.activities.ListActivities(r.Context(), userID, filter)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{
		Items:      activityViews(activities),
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r, "", auth.ScopeActivityWrite)
	if !ok {
		return
	}
	var req CreateActivityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	activity, err := h.activities.CreateActivity(r.Context(), userID, req.Date, req.Steps)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, ToActivityView(activity))
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r, "", readScopes()...)
	if !ok {
		return
	}
	activity, err := h.activities.GetActivity(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ToActivityView(activity))
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r, "", auth.ScopeActivityWrite)
	if !ok {
		return
	}
	var req ActivityPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	activity, err := h.activities.UpdateActivity(r.Context(), userID, mux.Vars(r)["id"], req.Steps)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if req.Steps != nil && activity.Date == h.activities.Today() {
		h.detectors.Forget(userID)
	}
	writeJSON(w, http.StatusOK, ToActivityView(activity))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r, "", auth.ScopeActivityWrite)
	if !ok {
		return
	}
	if err := h.activities.DeleteActivity(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	h.detectors.Forget(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, ok := h.ownUser(w, r, q.Get("user_id"), readScopes()...)
	if !ok {
		return
	}

	entries, err := h.activities.ListManualEntries(r.Context(), userID, domain.EntryFilter{
		ActivityID: q.Get("daily_activity"),
		Activity:   q.Get("activity"),
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	items := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		items = append(items, ToEntryView(e))
	}
	writeJSON(w, http.StatusOK, ListEntriesResponse{Items: items})
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r, "", auth.ScopeActivityWrite)
	if !ok {
		return
	}
	var req EntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DailyActivity == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "daily_activity is required")
		return
	}

	entry, err := h.activities.AddEntryToActivity(r.Context(), userID, req.DailyActivity, domain.ManualEntryInput{
		Activity: req.Activity,
		Duration: req.Duration,
		Calories: req.Calories,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, ToEntryView(entry))
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r, "", readScopes()...)
	if !ok {
		return
	}
	entry, err := h.activities.GetManualEntry(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ToEntryView(entry))
}

func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r, "", auth.ScopeActivityWrite)
	if !ok {
		return
	}
	var req EntryPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.activities.UpdateManualEntry(r.Context(), userID, mux.Vars(r)["id"], domain.EntryPatch{
		Activity: req.Activity,
		Duration: req.Duration,
		Calories: req.Calories,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ToEntryView(entry))
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r, "", auth.ScopeActivityWrite)
	if !ok {
		return
	}
	if err := h.activities.DeleteManualEntry(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func activityViews(activities []domain.DailyActivity) []ActivityView {
	items := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		items = append(items, ToActivityView(a))
	}
	return items
}
