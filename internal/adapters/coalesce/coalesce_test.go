package coalesce

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func exerciseCoalescer(c Coalescer, course string) {
	ctx := context.Background()

	Convey("When a course is marked", func() {
		won, err := c.TryMark(ctx, course, time.Minute)
		So(err, ShouldBeNil)
		So(won, ShouldBeTrue)

		Convey("Then a second mark loses", func() {
			won, err := c.TryMark(ctx, course, time.Minute)
			So(err, ShouldBeNil)
			So(won, ShouldBeFalse)
		})

		Convey("Then another course can still be marked", func() {
			won, err := c.TryMark(ctx, course+"-other", time.Minute)
			So(err, ShouldBeNil)
			So(won, ShouldBeTrue)
			So(c.Clear(ctx, course+"-other"), ShouldBeNil)
		})

		Convey("Then clearing allows a new mark", func() {
			So(c.Clear(ctx, course), ShouldBeNil)
			won, err := c.TryMark(ctx, course, time.Minute)
			So(err, ShouldBeNil)
			So(won, ShouldBeTrue)
		})

		Reset(func() { _ = c.Clear(ctx, course) })
	})
}

func TestMemoryCoalescer(t *testing.T) {
	Convey("Given an in-memory coalescer", t, func() {
		exerciseCoalescer(NewMemory(), "course-1")
	})

	Convey("Given an expired mark", t, func() {
		m := NewMemory()
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		m.now = func() time.Time { return now }

		won, _ := m.TryMark(context.Background(), "course-1", time.Second)
		So(won, ShouldBeTrue)
		now = now.Add(2 * time.Second)

		Convey("Then it no longer blocks a new mark", func() {
			won, _ := m.TryMark(context.Background(), "course-1", time.Second)
			So(won, ShouldBeTrue)
		})
	})

	Convey("Given racing callers", t, func() {
		m := NewMemory()
		var winners atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if won, _ := m.TryMark(context.Background(), "course-1", time.Minute); won {
					winners.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one wins", func() {
			So(winners.Load(), ShouldEqual, 1)
		})
	})
}

func TestRedisCoalescer(t *testing.T) {
	url := os.Getenv("SCOREBOARD_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SCOREBOARD_TEST_REDIS_URL not set")
	}
	r, err := NewRedis(context.Background(), url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = r.Close() }()

	Convey("Given a redis coalescer", t, func() {
		exerciseCoalescer(r, "test-course-"+time.Now().Format("150405.000000"))
	})
}

func TestNewRedis_InvalidURL(t *testing.T) {
	if _, err := NewRedis(context.Background(), ""); err == nil {
		t.Error("expected error for empty url")
	}
	if _, err := NewRedis(context.Background(), "not-a-url"); err == nil {
		t.Error("expected error for invalid url")
	}
}
