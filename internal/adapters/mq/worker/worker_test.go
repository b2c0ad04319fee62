package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/scoreboard/internal/adapters/mq/queue"
	"github.com/okian/scoreboard/internal/adapters/mq/worker"
	"github.com/okian/scoreboard/internal/domain/ranking"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	ch chan queue.SweepRequest
}

func newMockQueue() *mockQueue {
	return &mockQueue{ch: make(chan queue.SweepRequest, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.SweepRequest { return mq.ch }

func (mq *mockQueue) Close() error {
	close(mq.ch)
	return nil
}

type sweepCall struct {
	courseID string
	at       time.Time
}

type mockSweeper struct {
	mu    sync.Mutex
	calls []sweepCall
	err   error
	swept chan string
}

func newMockSweeper() *mockSweeper {
	return &mockSweeper{swept: make(chan string, 10)}
}

func (m *mockSweeper) Sweep(_ context.Context, courseID string) (ranking.SweepResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, sweepCall{courseID: courseID, at: time.Now()})
	err := m.err
	m.mu.Unlock()
	m.swept <- courseID
	if err != nil {
		return ranking.SweepResult{}, err
	}
	return ranking.SweepResult{CourseID: courseID, Entries: 1}, nil
}

type mockMarks struct {
	mu      sync.Mutex
	cleared []string
}

func (m *mockMarks) Clear(_ context.Context, courseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, courseID)
	return nil
}

func (m *mockMarks) list() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cleared...)
}

func waitSwept(t *testing.T, s *mockSweeper) string {
	t.Helper()
	select {
	case c := <-s.swept:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sweep")
		return ""
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a queue", t, func() {
		q := newMockQueue()
		sweeper := newMockSweeper()
		marks := &mockMarks{}
		w := worker.NewInMemoryWorker(q, sweeper, marks, worker.WithName("test-worker"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a request is due immediately", func() {
			now := time.Now()
			q.ch <- queue.SweepRequest{CourseID: "course-1", RequestedAt: now, NotBefore: now}

			convey.Convey("Then the mark is cleared and the course swept", func() {
				convey.So(waitSwept(t, sweeper), convey.ShouldEqual, "course-1")
				convey.So(marks.list(), convey.ShouldResemble, []string{"course-1"})
			})
		})

		convey.Convey("When a request carries a debounce window", func() {
			now := time.Now()
			notBefore := now.Add(80 * time.Millisecond)
			q.ch <- queue.SweepRequest{CourseID: "course-2", RequestedAt: now, NotBefore: notBefore}

			convey.Convey("Then the sweep waits until the window ends", func() {
				convey.So(waitSwept(t, sweeper), convey.ShouldEqual, "course-2")
				sweeper.mu.Lock()
				at := sweeper.calls[0].at
				sweeper.mu.Unlock()
				convey.So(at.Before(notBefore), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When the sweep fails", func() {
			sweeper.mu.Lock()
			sweeper.err = errors.New("db down")
			sweeper.mu.Unlock()
			now := time.Now()
			q.ch <- queue.SweepRequest{CourseID: "bad", RequestedAt: now, NotBefore: now}
			q.ch <- queue.SweepRequest{CourseID: "next", RequestedAt: now, NotBefore: now}

			convey.Convey("Then the worker keeps going", func() {
				convey.So(waitSwept(t, sweeper), convey.ShouldEqual, "bad")
				convey.So(waitSwept(t, sweeper), convey.ShouldEqual, "next")
			})
		})

		convey.Convey("When the worker is shut down while waiting out a window", func() {
			now := time.Now()
			q.ch <- queue.SweepRequest{CourseID: "late", RequestedAt: now, NotBefore: now.Add(time.Hour)}
			time.Sleep(20 * time.Millisecond)

			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			err := w.Shutdown(shutdownCtx)

			convey.Convey("Then the pending request is swept before stopping", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(waitSwept(t, sweeper), convey.ShouldEqual, "late")
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		sweeper := newMockSweeper()
		marks := &mockMarks{}
		pool := worker.NewPool(3, q, sweeper, marks)

		convey.So(pool.Size(), convey.ShouldEqual, 3)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When requests for several courses are queued", func() {
			now := time.Now()
			for _, c := range []string{"a", "b", "c"} {
				convey.So(q.Enqueue(ctx, queue.SweepRequest{CourseID: c, RequestedAt: now, NotBefore: now}), convey.ShouldBeNil)
			}

			got := map[string]bool{}
			for i := 0; i < 3; i++ {
				got[waitSwept(t, sweeper)] = true
			}

			convey.Convey("Then every course is swept", func() {
				convey.So(got, convey.ShouldResemble, map[string]bool{"a": true, "b": true, "c": true})
			})

			convey.Convey("And shutdown closes the queue", func() {
				convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool with sweeps still queued behind their windows", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		sweeper := newMockSweeper()
		pool := worker.NewPool(2, q, sweeper, &mockMarks{})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		now := time.Now()
		courses := []string{"a", "b", "c", "d", "e", "f"}
		for _, c := range courses {
			convey.So(q.Enqueue(ctx, queue.SweepRequest{CourseID: c, RequestedAt: now, NotBefore: now.Add(time.Hour)}), convey.ShouldBeNil)
		}

		convey.Convey("When the pool shuts down", func() {
			err := pool.Shutdown(context.Background())

			convey.Convey("Then every queued course is swept", func() {
				convey.So(err, convey.ShouldBeNil)
				got := map[string]bool{}
				for range courses {
					got[waitSwept(t, sweeper)] = true
				}
				convey.So(len(got), convey.ShouldEqual, len(courses))
			})
		})
	})

	convey.Convey("Given a pool with no worker count", t, func() {
		pool := worker.NewPool(0, newMockQueue(), newMockSweeper(), &mockMarks{})

		convey.Convey("Then it defaults to at least one worker", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
