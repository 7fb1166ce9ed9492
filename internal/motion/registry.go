package motion

import "sync"

type registryEntry struct {
	date     string
	detector *Detector
}

// Registry keeps one Detector per user for the current day. Creating a detector for a date drops
// every detector kept for an earlier date, including those of users who have gone quiet.
type Registry struct {
	opts []Option

	mu        sync.Mutex
	detectors map[string]registryEntry
}

// NewRegistry constructs a Registry applying opts to every detector it creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{opts: opts, detectors: make(map[string]registryEntry)}
}

// Detector returns the user's detector for date, creating it with the count returned by seed.
func (r *Registry) Detector(userID, date string, seed func() (int, error)) (*Detector, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.detectors[userID]; ok && entry.date == date {
		return entry.detector, nil
	}

	initial, err := seed()
	if err != nil {
		return nil, err
	}
	for id, entry := range r.detectors {
		if id == userID || entry.date < date {
			entry.detector.StopTracking()
			delete(r.detectors, id)
		}
	}

	detector := NewDetector(nil, r.opts...)
	detector.mu.Lock()
	detector.steps = initial
	detector.mu.Unlock()

	r.detectors[userID] = registryEntry{date: date, detector: detector}
	return detector, nil
}

// Forget drops the user's detector.
func (r *Registry) Forget(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.detectors, userID)
}
