package compute

import "fmt"

// Event is the completion token of one launch. Launches that list an event as
// a dependency do not start until it completes.
type Event struct {
	done chan struct{}
	err  error
}

func newEvent() *Event {
	return &Event{done: make(chan struct{})}
}

// Completed returns an event that is already complete.
func Completed() *Event {
	e := newEvent()
	close(e.done)
	return e
}

func (e *Event) complete(err error) {
	e.err = err
	close(e.done)
}

// Done is closed when the launch finishes.
func (e *Event) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the launch finishes and returns its error.
func (e *Event) Wait() error {
	<-e.done
	return e.err
}

// waitAll blocks on every dependency and reports the first failure.
func waitAll(deps []*Event) error {
	var first error
	for i, dep := range deps {
		if dep == nil {
			continue
		}
		if err := dep.Wait(); err != nil && first == nil {
			first = fmt.Errorf("%w: event %d: %w", ErrDependency, i, err)
		}
	}
	return first
}
