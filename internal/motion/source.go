package motion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// ChannelSource delivers samples pushed onto C.
type ChannelSource struct {
	C chan Sample
}

// NewChannelSource constructs a ChannelSource with the given buffer size.
func NewChannelSource(buffer int) *ChannelSource {
	return &ChannelSource{C: make(chan Sample, buffer)}
}

// Supported implements Source.
func (s *ChannelSource) Supported() bool { return s != nil && s.C != nil }

// Start implements Source. The returned stop function waits for the delivery goroutine to exit.
func (s *ChannelSource) Start(handle func(Sample)) (func(), error) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			case sample, ok := <-s.C:
				if !ok {
					return
				}
				handle(sample)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}, nil
}

// ReaderSource replays recorded samples, one "x,y,z" record per line. A non-numeric first line is
// treated as a header.
type ReaderSource struct {
	r    io.Reader
	done chan struct{}

	mu      sync.Mutex
	err     error
	started bool
}

// NewReaderSource constructs a ReaderSource over r.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: r, done: make(chan struct{})}
}

// Supported implements Source.
func (s *ReaderSource) Supported() bool { return s != nil && s.r != nil }

// Start implements Source. Samples are delivered from a goroutine until the input is exhausted or
// stop is called. A reader replays once; later calls fail with ErrUnsupported.
func (s *ReaderSource) Start(handle func(Sample)) (func(), error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: recorded samples already replayed", ErrUnsupported)
	}
	s.started = true
	s.mu.Unlock()

	stopped := make(chan struct{})
	go func() {
		defer close(s.done)
		reader := csv.NewReader(s.r)
		reader.FieldsPerRecord = 3
		reader.TrimLeadingSpace = true
		line := 0
		for {
			select {
			case <-stopped:
				return
			default:
			}

			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			line++
			if err != nil {
				s.setErr(fmt.Errorf("read sample line %d: %w", line, err))
				return
			}

			sample, err := parseSample(record)
			if err != nil {
				if line == 1 {
					continue
				}
				s.setErr(fmt.Errorf("parse sample line %d: %w", line, err))
				return
			}
			handle(sample)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stopped) })
	}, nil
}

// Done is closed once every sample has been delivered or replay aborted.
func (s *ReaderSource) Done() <-chan struct{} { return s.done }

// Err returns the first read or parse failure.
func (s *ReaderSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *ReaderSource) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func parseSample(record []string) (Sample, error) {
	var values [3]float64
	for i, field := range record {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return Sample{}, err
		}
		values[i] = v
	}
	return Sample{X: values[0], Y: values[1], Z: values[2]}, nil
}
