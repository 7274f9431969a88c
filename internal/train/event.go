package train

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies a point in the training loop.
type EventKind int

const (
	TrainingStarted EventKind = iota
	IterationFinished
	EpochFinished
	TrainingStopped
)

var eventNames = map[EventKind]string{
	TrainingStarted:   "training_started",
	IterationFinished: "iteration_finished",
	EpochFinished:     "epoch_finished",
	TrainingStopped:   "training_stopped",
}

func (k EventKind) String() string {
	if s, ok := eventNames[k]; ok {
		return s
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// StopReason tells why a run ended.
type StopReason int

const (
	ReasonNone StopReason = iota
	ReasonMaxEpochs
	ReasonMaxError
	ReasonEarlyStopping
	ReasonExternal
	ReasonNumericInstability
)

var reasonNames = map[StopReason]string{
	ReasonNone:               "none",
	ReasonMaxEpochs:          "max_epochs",
	ReasonMaxError:           "max_error",
	ReasonEarlyStopping:      "early_stopping",
	ReasonExternal:           "external",
	ReasonNumericInstability: "numeric_instability",
}

func (r StopReason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return fmt.Sprintf("StopReason(%d)", int(r))
}

// Event describes the trainer state at the moment it was fired.
type Event struct {
	Kind  EventKind
	RunID uuid.UUID

	// Epoch is 1-based; it is 0 in TrainingStarted.
	Epoch int
	// Iteration counts the patterns processed since the run started.
	Iteration int

	// Loss is the running training loss of the current epoch. In
	// EpochFinished and TrainingStopped it includes the weight penalty.
	Loss float64
	// TestLoss and TestAccuracy are NaN when no test set is in use.
	TestLoss     float64
	TestAccuracy float64

	LearningRate float64
	Reason       StopReason
	Elapsed      time.Duration
}

// Listener receives trainer events on the training goroutine.
type Listener interface {
	HandleEvent(e Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(e Event)

func (f ListenerFunc) HandleEvent(e Event) { f(e) }

type registry struct {
	mu      sync.Mutex
	nextID  uint64
	entries []entry
}

type entry struct {
	id uint64
	l  Listener
}

// add registers l and returns the function that removes it again.
func (r *registry) add(l Listener) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.entries = append(r.entries, entry{id: id, l: l})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for i, e := range r.entries {
				if e.id == id {
					r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
					return
				}
			}
		})
	}
}

// emit delivers e to a snapshot of the listeners, so a listener may remove
// itself or register another while handling an event.
func (r *registry) emit(e Event) {
	r.mu.Lock()
	snapshot := make([]Listener, len(r.entries))
	for i, en := range r.entries {
		snapshot[i] = en.l
	}
	r.mu.Unlock()

	for _, l := range snapshot {
		l.HandleEvent(e)
	}
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
