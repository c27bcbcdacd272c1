package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/taskrouter/internal/adapters/mq/queue"
	worker "github.com/okian/taskrouter/internal/adapters/mq/worker"
	model "github.com/okian/taskrouter/internal/domain/model"
	logging "github.com/okian/taskrouter/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	ch chan model.Message
}

func newMockQueue() *mockQueue {
	return &mockQueue{ch: make(chan model.Message, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan model.Message { return mq.ch }

// recorder is a Processor that remembers what it saw.
type recorder struct {
	mu     sync.Mutex
	seen   []string
	failOn map[string]error
	panic  map[string]bool
}

func newRecorder() *recorder {
	return &recorder{failOn: map[string]error{}, panic: map[string]bool{}}
}

func (r *recorder) Process(_ context.Context, m model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.panic[m.ID] {
		panic("bad message")
	}
	r.seen = append(r.seen, m.ID)
	return r.failOn[m.ID]
}

func (r *recorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading from a queue", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		rec := newRecorder()
		w := worker.NewInMemoryWorker(q, rec, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When messages arrive", func() {
			q.ch <- model.Message{ID: "m1"}
			q.ch <- model.Message{ID: "m2"}

			convey.Convey("Then each one is processed in order", func() {
				convey.So(waitFor(func() bool { return len(rec.ids()) == 2 }), convey.ShouldBeTrue)
				convey.So(rec.ids(), convey.ShouldResemble, []string{"m1", "m2"})
			})
		})

		convey.Convey("When processing fails or panics", func() {
			rec.failOn["m1"] = errors.New("pipeline error")
			rec.panic["m2"] = true
			q.ch <- model.Message{ID: "m1"}
			q.ch <- model.Message{ID: "m2"}
			q.ch <- model.Message{ID: "m3"}

			convey.Convey("Then the worker keeps going", func() {
				convey.So(waitFor(func() bool { return len(rec.ids()) == 2 }), convey.ShouldBeTrue)
				convey.So(rec.ids(), convey.ShouldResemble, []string{"m1", "m3"})
			})
		})

		convey.Convey("When the worker is shut down", func() {
			err := w.Shutdown(context.Background())

			convey.Convey("Then it stops and a second shutdown is harmless", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool over an in-memory queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		var mu sync.Mutex
		processed := map[string]int{}
		proc := worker.ProcessorFunc(func(_ context.Context, m model.Message) error {
			mu.Lock()
			processed[m.ID]++
			mu.Unlock()
			return nil
		})

		pool := worker.NewPool(4, q, proc)
		convey.So(pool.Size(), convey.ShouldEqual, 4)
		pool.Start(context.Background())

		for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
			convey.So(q.Enqueue(context.Background(), model.Message{ID: id}), convey.ShouldBeNil)
		}

		convey.Convey("When the pool shuts down", func() {
			err := pool.Shutdown(context.Background())

			convey.Convey("Then queued messages are drained exactly once", func() {
				convey.So(err, convey.ShouldBeNil)
				mu.Lock()
				defer mu.Unlock()
				convey.So(processed, convey.ShouldHaveLength, 6)
				for _, n := range processed {
					convey.So(n, convey.ShouldEqual, 1)
				}
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool size below one", t, func() {
		_ = logging.Init()
		pool := worker.NewPool(0, newMockQueue(), worker.ProcessorFunc(func(context.Context, model.Message) error { return nil }))

		convey.Convey("Then a CPU based default is used", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
