package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/kpiboard/internal/app"
	"github.com/okian/kpiboard/internal/domain/kpi"
	"github.com/okian/kpiboard/internal/domain/model"
	"github.com/okian/kpiboard/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var errBackend = errors.New("backend down")

var sprintStart = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

// fakeSource serves a fixed snapshot. Setting gate makes task fetches wait
// until the gate is closed.
type fakeSource struct {
	mu    sync.Mutex
	snap  model.Snapshot
	err   error
	calls int
	gate  chan struct{}
}

func (f *fakeSource) FetchTasks(ctx context.Context) ([]model.Task, error) {
	f.mu.Lock()
	f.calls++
	gate, err, tasks := f.gate, f.err, f.snap.Tasks
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return tasks, err
}

func (f *fakeSource) FetchUsers(context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap.Users, nil
}

func (f *fakeSource) FetchSprints(context.Context) ([]model.Sprint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap.Sprints, nil
}

func (f *fakeSource) set(fn func(f *fakeSource)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func fixture() model.Snapshot {
	day := 24 * time.Hour
	sprints := make([]model.Sprint, 3)
	for i := range sprints {
		start := sprintStart.Add(time.Duration(i) * 14 * day)
		sprints[i] = model.Sprint{
			ID:       int64(i + 1),
			Name:     []string{"Sprint 1", "Sprint 2", "Sprint 3"}[i],
			StartsAt: start,
			EndsAt:   start.Add(14*day - time.Second),
		}
	}
	return model.Snapshot{
		Users:   []model.User{{ID: 10, Name: "Alice"}, {ID: 20, Name: "Bob"}},
		Sprints: sprints,
		Tasks: []model.Task{
			{ID: 1, State: model.StateDone, SprintID: 1, AssignedTo: 10, HoursEstimated: model.Hours(5), HoursReal: model.Hours(6)},
			{ID: 2, State: model.StateDone, SprintID: 2, AssignedTo: 20, HoursEstimated: model.Hours(3), HoursReal: model.Hours(2)},
			{ID: 3, State: model.StateInProgress, SprintID: 2, AssignedTo: 10, HoursEstimated: model.Hours(8)},
			{ID: 4, State: model.StateTodo, SprintID: model.BacklogSprintID, HoursEstimated: model.Hours(1)},
		},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["queueSize"], ShouldEqual, 8)
			So(stats["memoSize"], ShouldEqual, 16)
			So(stats["snapshotLoaded"], ShouldEqual, false)
			So(svc.Engine().Locale(), ShouldEqual, kpi.DefaultLocale)
		})

		Convey("Then starting without a source fails", func() {
			So(svc.Start(context.Background()), ShouldEqual, service.ErrNoSource)
		})

		Convey("Then reads report the missing snapshot", func() {
			_, err := svc.Bundle(context.Background())
			So(errors.Is(err, service.ErrNoSnapshot), ShouldBeTrue)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a service over a healthy source", t, func() {
		src := &fakeSource{snap: fixture()}
		svc := service.New(
			service.WithSource(src),
			service.WithClock(fixedClock(sprintStart.Add(16*24*time.Hour))),
		)
		// Ensure service is stopped after test
		defer svc.Stop()

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := svc.Start(ctx)

			Convey("Then the first snapshot is loaded synchronously", func() {
				So(err, ShouldBeNil)
				So(src.callCount(), ShouldEqual, 1)

				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["snapshotLoaded"], ShouldEqual, true)
				So(stats["tasks"], ShouldEqual, 4)
			})

			Convey("Then starting again is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
				So(src.callCount(), ShouldEqual, 1)
			})

			Convey("Then the bundle reflects the snapshot", func() {
				b, err := svc.Bundle(ctx)
				So(err, ShouldBeNil)
				So(b.CurrentSprint, ShouldNotBeNil)
				So(b.CurrentSprint.ID, ShouldEqual, 2)
				So(b.CurrentSprint.Expired, ShouldBeFalse)
				So(b.CurrentSprintEstimatedHours, ShouldEqual, 11)
				So(b.TeamPerformancePerSprint, ShouldHaveLength, 4)
				So(b.TotalCompletedTasksPerUser, ShouldResemble, []kpi.UserDoneTasks{
					{Name: "Alice", DoneTasks: 1},
					{Name: "Bob", DoneTasks: 1},
				})
			})
		})
	})

	Convey("Given a service over a failing source", t, func() {
		src := &fakeSource{snap: fixture(), err: errBackend}
		svc := service.New(service.WithSource(src))
		defer svc.Stop()

		ctx := context.Background()
		err := svc.Start(ctx)

		Convey("Then the service still starts", func() {
			So(err, ShouldBeNil)
			So(svc.GetStats()["lastError"], ShouldContainSubstring, "backend down")
		})

		Convey("Then reads wrap the fetch error", func() {
			_, err := svc.Bundle(ctx)
			So(errors.Is(err, service.ErrNoSnapshot), ShouldBeTrue)
			So(errors.Is(err, service.ErrFetch), ShouldBeTrue)
			So(errors.Is(err, errBackend), ShouldBeTrue)
		})

		Convey("When the source recovers", func() {
			src.set(func(f *fakeSource) { f.err = nil })
			So(svc.Refresh(ctx), ShouldBeNil)

			Convey("Then reads succeed", func() {
				_, err := svc.Bundle(ctx)
				So(err, ShouldBeNil)
				So(svc.GetStats()["lastError"], ShouldBeNil)
			})
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithSource(&fakeSource{snap: fixture()}))
		So(svc.Start(context.Background()), ShouldBeNil)

		Convey("When stopping it twice", func() {
			svc.Stop()
			svc.Stop()

			Convey("Then it is marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})

			Convey("Then refresh requests are refused", func() {
				_, err := svc.RequestRefresh(context.Background(), "manual")
				So(err, ShouldEqual, service.ErrNotStarted)
			})

			Convey("Then the last snapshot is still served", func() {
				_, err := svc.Bundle(context.Background())
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestService_RequestRefresh(t *testing.T) {
	Convey("Given a started service", t, func() {
		src := &fakeSource{snap: fixture()}
		svc := service.New(service.WithSource(src), service.WithQueueSize(1))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("When a refresh is requested", func() {
			src.set(func(f *fakeSource) {
				f.snap.Tasks = append(f.snap.Tasks, model.Task{ID: 5, State: model.StateDone, SprintID: 3, AssignedTo: 20})
			})
			req, err := svc.RequestRefresh(context.Background(), "manual")

			Convey("Then it is accepted and applied by the worker", func() {
				So(err, ShouldBeNil)
				So(req.ID, ShouldNotBeEmpty)
				So(req.Reason, ShouldEqual, "manual")
				So(eventually(func() bool {
					return svc.GetStats()["tasks"] == 5
				}), ShouldBeTrue)
			})
		})

		Convey("When the worker is busy and requests pile up", func() {
			gate := make(chan struct{})
			src.set(func(f *fakeSource) { f.gate = gate })
			defer close(gate)

			var refused int
			for i := 0; i < 6; i++ {
				_, err := svc.RequestRefresh(context.Background(), "burst")
				if errors.Is(err, service.ErrBackpressure) {
					refused++
				}
				time.Sleep(10 * time.Millisecond)
			}

			Convey("Then backpressure is reported", func() {
				So(refused, ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestService_Sprints(t *testing.T) {
	Convey("Given a loaded service", t, func() {
		now := sprintStart.Add(20 * 24 * time.Hour)
		svc := service.New(
			service.WithSource(&fakeSource{snap: fixture()}),
			service.WithClock(fixedClock(now)),
		)
		So(svc.Refresh(context.Background()), ShouldBeNil)
		ctx := context.Background()

		Convey("Then the current sprint is the one containing now", func() {
			cur, err := svc.CurrentSprint(ctx)
			So(err, ShouldBeNil)
			So(cur.Name, ShouldEqual, "Sprint 2")
		})

		Convey("Then expiry is reported per sprint", func() {
			expired, err := svc.SprintExpired(ctx, 1)
			So(err, ShouldBeNil)
			So(expired, ShouldBeTrue)

			expired, err = svc.SprintExpired(ctx, 3)
			So(err, ShouldBeNil)
			So(expired, ShouldBeFalse)
		})

		Convey("Then unknown sprints are reported", func() {
			_, err := svc.SprintExpired(ctx, 99)
			So(errors.Is(err, service.ErrSprintNotFound), ShouldBeTrue)
		})
	})

	Convey("Given a clock outside every sprint", t, func() {
		svc := service.New(
			service.WithSource(&fakeSource{snap: fixture()}),
			service.WithClock(fixedClock(sprintStart.AddDate(1, 0, 0))),
		)
		So(svc.Refresh(context.Background()), ShouldBeNil)

		Convey("Then there is no current sprint", func() {
			_, err := svc.CurrentSprint(context.Background())
			So(err, ShouldEqual, service.ErrNoCurrentSprint)

			b, err := svc.Bundle(context.Background())
			So(err, ShouldBeNil)
			So(b.CurrentSprint, ShouldBeNil)
			So(b.CurrentSprintEstimatedHours, ShouldEqual, 0)
		})
	})
}

func TestLoadSnapshot(t *testing.T) {
	Convey("Given a source that fails one collection", t, func() {
		src := &fakeSource{snap: fixture(), err: errBackend}

		Convey("Then no partial snapshot is returned", func() {
			snap, err := service.LoadSnapshot(context.Background(), src)
			So(errors.Is(err, service.ErrFetch), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "tasks")
			So(snap.Empty(), ShouldBeTrue)
		})
	})

	Convey("Given a healthy source", t, func() {
		src := &fakeSource{snap: fixture()}

		Convey("Then all three collections are loaded", func() {
			snap, err := service.LoadSnapshot(context.Background(), src)
			So(err, ShouldBeNil)
			So(snap.Tasks, ShouldHaveLength, 4)
			So(snap.Users, ShouldHaveLength, 2)
			So(snap.Sprints, ShouldHaveLength, 3)
		})
	})
}
