package pipeline

import "context"

// Event is a progress notification of a run. It is one of TotalEvent,
// ProgressEvent or PhaseEvent.
type Event interface {
	isEvent()
}

// TotalEvent announces N more units of work
type TotalEvent struct {
	N int
}

// ProgressEvent reports one finished unit of work
type ProgressEvent struct{}

// PhaseEvent names the phase the run entered
type PhaseEvent struct {
	Label string
}

func (TotalEvent) isEvent()    {}
func (ProgressEvent) isEvent() {}
func (PhaseEvent) isEvent()    {}

// emitter sends events until the run's context is done. Sends block, so a
// slow consumer slows the run down.
type emitter struct {
	ctx context.Context
	ch  chan<- Event
}

func (e emitter) emit(ev Event) {
	if e.ch == nil {
		return
	}
	select {
	case e.ch <- ev:
	case <-e.ctx.Done():
	}
}

func (e emitter) total(n int) {
	e.emit(TotalEvent{N: n})
}

func (e emitter) progress() {
	e.emit(ProgressEvent{})
}

func (e emitter) phase(label string) {
	e.emit(PhaseEvent{Label: label})
}
