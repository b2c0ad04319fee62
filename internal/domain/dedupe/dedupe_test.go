package dedupe_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/scoreboard/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

// apply claims id and commits it when it is new.
func apply(ctx context.Context, d dedupe.Deduper, id string) bool {
	seen, err := d.Claim(ctx, id)
	So(err, ShouldBeNil)
	if !seen {
		d.Commit(ctx, id)
	}
	return seen
}

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new in-memory deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When a submission id is committed for the first time", func() {
			seen := apply(ctx, d, "sub-1")

			Convey("Then it is reported as new", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And a retry of the same id is reported as seen", func() {
				So(apply(ctx, d, "sub-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a claim is released", func() {
			seen, err := d.Claim(ctx, "sub-1")
			So(err, ShouldBeNil)
			So(seen, ShouldBeFalse)
			d.Release(ctx, "sub-1")

			Convey("Then nothing is remembered and the id can be claimed again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(apply(ctx, d, "sub-1"), ShouldBeFalse)
			})
		})

		Convey("When an unknown id is released", func() {
			d.Release(ctx, "missing")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given an id claimed by a running attempt", t, func() {
		d := dedupe.NewInMemoryDeduper()
		seen, err := d.Claim(ctx, "sub-1")
		So(err, ShouldBeNil)
		So(seen, ShouldBeFalse)

		type claim struct {
			seen bool
			err  error
		}
		retry := make(chan claim, 1)
		go func() {
			s, err := d.Claim(ctx, "sub-1")
			retry <- claim{s, err}
		}()

		Convey("Then a retry waits for the attempt", func() {
			waited := true
			select {
			case <-retry:
				waited = false
			case <-time.After(30 * time.Millisecond):
			}
			So(waited, ShouldBeTrue)
			d.Release(ctx, "sub-1")
			<-retry
		})

		Convey("When the attempt commits", func() {
			d.Commit(ctx, "sub-1")

			Convey("Then the retry sees it as applied", func() {
				r := <-retry
				So(r.err, ShouldBeNil)
				So(r.seen, ShouldBeTrue)
			})
		})

		Convey("When the attempt fails and releases", func() {
			d.Release(ctx, "sub-1")

			Convey("Then the retry takes over the claim", func() {
				r := <-retry
				So(r.err, ShouldBeNil)
				So(r.seen, ShouldBeFalse)
				d.Commit(ctx, "sub-1")
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a waiting caller gives up", func() {
			waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()
			_, err := d.Claim(waitCtx, "sub-1")
			d.Release(ctx, "sub-1")
			<-retry

			Convey("Then it gets the context error", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for _, id := range []string{"a", "b", "c"} {
			So(apply(ctx, d, id), ShouldBeFalse)
		}

		Convey("When one more id is committed", func() {
			So(apply(ctx, d, "d"), ShouldBeFalse)

			Convey("Then the oldest id is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(apply(ctx, d, "d"), ShouldBeTrue)
				So(apply(ctx, d, "c"), ShouldBeTrue)
				So(apply(ctx, d, "b"), ShouldBeTrue)
				So(apply(ctx, d, "a"), ShouldBeFalse)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))

		Convey("When many ids are committed", func() {
			for i := 0; i < 1000; i++ {
				apply(ctx, d, fmt.Sprintf("sub-%d", i))
			}

			Convey("Then none are evicted", func() {
				So(d.Size(), ShouldEqual, 1000)
				So(apply(ctx, d, "sub-0"), ShouldBeTrue)
			})
		})
	})
}

func TestScope(t *testing.T) {
	Convey("Given the same submission id in two ledgers", t, func() {
		a := dedupe.Scope("learner-1", "course-1", "sub-1")
		b := dedupe.Scope("learner-2", "course-1", "sub-1")
		c := dedupe.Scope("learner-1", "course-2", "sub-1")

		Convey("Then the scoped ids differ", func() {
			So(a, ShouldNotEqual, b)
			So(a, ShouldNotEqual, c)
			So(a, ShouldEqual, dedupe.Scope("learner-1", "course-1", "sub-1"))
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given goroutines racing on the same ids", t, func() {
		d := dedupe.NewInMemoryDeduper()
		const goroutines = 16
		const ids = 50

		var wg sync.WaitGroup
		var mu sync.Mutex
		fresh := 0
		for g := 0; g < goroutines; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ctx := context.Background()
				for i := 0; i < ids; i++ {
					id := fmt.Sprintf("sub-%d", i)
					seen, err := d.Claim(ctx, id)
					if err != nil || seen {
						continue
					}
					d.Commit(ctx, id)
					mu.Lock()
					fresh++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		Convey("Then each id is applied exactly once", func() {
			So(fresh, ShouldEqual, ids)
			So(d.Size(), ShouldEqual, ids)
		})
	})
}
