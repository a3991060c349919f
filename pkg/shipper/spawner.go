package shipper

import (
	"context"
	"runtime/pprof"
)

// Handle is the join handle of a spawned task. Done is closed when the task
// returns.
type Handle interface {
	Done() <-chan struct{}
}

// Spawner starts the worker task. Tests inject their own to control when the
// worker begins consuming.
type Spawner interface {
	Spawn(name string, fn func()) Handle
}

type doneHandle chan struct{}

func (h doneHandle) Done() <-chan struct{} { return h }

type goSpawner struct{}

// GoSpawner runs each task on its own goroutine, labelled worker=<name> in
// CPU and goroutine profiles. Goroutines do not keep the process alive, so a
// client that is never stopped does not block exit.
func GoSpawner() Spawner { return goSpawner{} }

func (goSpawner) Spawn(name string, fn func()) Handle {
	done := make(doneHandle)
	go func() {
		defer close(done)
		pprof.Do(context.Background(), pprof.Labels("worker", name), func(context.Context) {
			fn()
		})
	}()
	return done
}
