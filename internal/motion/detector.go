// Package motion turns raw accelerometer samples into step counts.
package motion

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// DefaultThreshold is the minimum change in acceleration magnitude that counts as a step.
const DefaultThreshold = 1.2

var (
	// ErrCapabilityUnavailable reports that motion sensing cannot be used; callers fall back to manual entry.
	ErrCapabilityUnavailable = errors.New("motion sensing unavailable")
	// ErrUnsupported is returned when no usable motion source exists.
	ErrUnsupported = fmt.Errorf("%w: not supported", ErrCapabilityUnavailable)
	// ErrPermissionDenied is returned when the source refuses to deliver samples.
	ErrPermissionDenied = fmt.Errorf("%w: permission denied", ErrCapabilityUnavailable)
)

// Sample is one 3-axis acceleration reading.
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Magnitude returns the euclidean norm of the sample.
func (s Sample) Magnitude() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// Source delivers acceleration samples to a handler until stopped.
type Source interface {
	Supported() bool
	Start(handle func(Sample)) (stop func(), err error)
}

// Option configures a Detector.
type Option func(*Detector)

// WithThreshold overrides the magnitude delta threshold.
func WithThreshold(threshold float64) Option {
	return func(d *Detector) {
		if threshold > 0 {
			d.threshold = threshold
		}
	}
}

// WithLogger overrides the logger used for capability reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

type listener struct {
	id uint64
	fn func(int)
}

// Detector counts steps with a magnitude-delta heuristic and notifies subscribers of the running total.
type Detector struct {
	source    Source
	threshold float64
	logger    *slog.Logger

	mu        sync.Mutex
	steps     int
	last      Sample
	tracking  bool
	stop      func()
	err       error
	nextID    uint64
	listeners []listener
}

// NewDetector constructs a Detector reading from source. A nil source means sensing is unsupported.
func NewDetector(source Source, opts ...Option) *Detector {
	d := &Detector{
		source:    source,
		threshold: DefaultThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// StartTracking seeds the step count and subscribes to the source. It reports whether tracking started;
// when it did not, Err explains why.
func (d *Detector) StartTracking(initialSteps int) bool {
	if initialSteps < 0 {
		initialSteps = 0
	}

	d.mu.Lock()
	d.steps = initialSteps
	if d.tracking {
		d.mu.Unlock()
		return true
	}
	d.mu.Unlock()

	if d.source == nil || !d.source.Supported() {
		d.setErr(ErrUnsupported)
		return false
	}

	stop, err := d.source.Start(d.HandleSample)
	if err != nil {
		if !errors.Is(err, ErrCapabilityUnavailable) {
			err = fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
		}
		d.setErr(err)
		return false
	}

	d.mu.Lock()
	d.tracking = true
	d.stop = stop
	d.err = nil
	d.mu.Unlock()
	return true
}

// StopTracking unsubscribes from the source. Calling it more than once is a no-op.
func (d *Detector) StopTracking() {
	d.mu.Lock()
	stop := d.stop
	d.stop = nil
	d.tracking = false
	d.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// Tracking reports whether the detector is subscribed to its source.
func (d *Detector) Tracking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tracking
}

// Err returns the reason the last StartTracking call failed, if any.
func (d *Detector) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// HandleSample counts a step when the magnitude moved by more than the threshold since the previous sample.
func (d *Detector) HandleSample(s Sample) {
	d.mu.Lock()
	delta := math.Abs(s.Magnitude() - d.last.Magnitude())
	d.last = s
	if delta <= d.threshold {
		d.mu.Unlock()
		return
	}
	d.steps++
	steps := d.steps
	fns := d.snapshot()
	d.mu.Unlock()

	notify(fns, steps)
}

// AddSteps increments the count by n without sensor input.
func (d *Detector) AddSteps(n int) {
	if n < 0 {
		return
	}
	d.mu.Lock()
	d.steps += n
	steps := d.steps
	fns := d.snapshot()
	d.mu.Unlock()

	notify(fns, steps)
}

// Reset zeroes the count.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.steps = 0
	fns := d.snapshot()
	d.mu.Unlock()

	notify(fns, 0)
}

// Steps returns the current count.
func (d *Detector) Steps() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.steps
}

// OnStepUpdate registers fn and returns a function removing exactly that registration.
func (d *Detector) OnStepUpdate(fn func(steps int)) (unsubscribe func()) {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.listeners = append(d.listeners, listener{id: id, fn: fn})
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			for i, l := range d.listeners {
				if l.id == id {
					d.listeners = append(d.listeners[:i:i], d.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (d *Detector) setErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
	d.logger.Warn("motion tracking unavailable", "error", err)
}

// snapshot copies the listener list; callers hold d.mu.
func (d *Detector) snapshot() []func(int) {
	fns := make([]func(int), 0, len(d.listeners))
	for _, l := range d.listeners {
		fns = append(fns, l.fn)
	}
	return fns
}

func notify(fns []func(int), steps int) {
	for _, fn := range fns {
		fn(steps)
	}
}
