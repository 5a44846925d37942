// moderation/live/dispatcher.go
package live

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// ErrDispatcherStopped is returned when a task is submitted after Stop.
var ErrDispatcherStopped = errors.New("live dispatcher stopped")

type task struct {
	label  string
	fn     func(ctx context.Context) error
	result chan error // nil for fire-and-forget tasks
	ctx    context.Context
}

// Dispatcher serializes all game-world effects onto a single worker goroutine.
// The game server processes world mutations on one thread; funneling every
// Effects call through one goroutine keeps our requests ordered the same way
// they will be applied, and lets engine code mutate its own state without
// racing the effect that observes it.
type Dispatcher struct {
	tasks    chan task
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewDispatcher creates a Dispatcher with a bounded task queue.
func NewDispatcher(queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		tasks:    make(chan task, queueSize),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (d *Dispatcher) Start() {
	log.Println("INFO: Live dispatcher starting.")
	go d.run()
}

// Stop drains no further tasks and waits for the worker to exit. Tasks already
// queued are still executed before the worker returns.
func (d *Dispatcher) Stop() {
	close(d.stopChan)
	<-d.doneChan
	log.Println("INFO: Live dispatcher stopped.")
}

func (d *Dispatcher) run() {
	defer close(d.doneChan)
	for {
		select {
		case t := <-d.tasks:
			d.execute(t)
		case <-d.stopChan:
			// Drain what is already queued so queued kicks/restores still land.
			for {
				select {
				case t := <-d.tasks:
					d.execute(t)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) execute(t task) {
	err := t.fn(t.ctx)
	if t.result != nil {
		t.result <- err
		return
	}
	if err != nil {
		log.Printf("WARN: Live effect %q failed: %v", t.label, err)
	}
}

// Async queues a fire-and-forget effect. Failures are logged by the worker;
// the caller does not wait. Returns ErrDispatcherStopped if the dispatcher is
// shutting down.
func (d *Dispatcher) Async(label string, fn func(ctx context.Context) error) error {
	select {
	case <-d.stopChan:
		return ErrDispatcherStopped
	default:
	}
	select {
	case d.tasks <- task{label: label, fn: fn, ctx: context.Background()}:
		return nil
	case <-d.stopChan:
		return ErrDispatcherStopped
	}
}

// Call queues an effect and waits for its result. The caller's context bounds
// both the wait for a worker slot and the effect itself.
func (d *Dispatcher) Call(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	result := make(chan error, 1)
	select {
	case d.tasks <- task{label: label, fn: fn, result: result, ctx: ctx}:
	case <-ctx.Done():
		return fmt.Errorf("live effect %q not queued: %w", label, ctx.Err())
	case <-d.stopChan:
		return ErrDispatcherStopped
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("live effect %q abandoned: %w", label, ctx.Err())
	}
}
