package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/xuri/excelize/v2"

	"github.com/okian/kpiboard/internal/adapters/http/api"
	"github.com/okian/kpiboard/internal/adapters/mq/queue"
	service "github.com/okian/kpiboard/internal/app"
	"github.com/okian/kpiboard/internal/domain/kpi"
	"github.com/okian/kpiboard/internal/domain/model"
	"github.com/okian/kpiboard/internal/domain/sprint"
)

var now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// Mock implementations for testing
type mockDependencies struct {
	bundle     kpi.Bundle
	bundleErr  error
	currentErr error
	expired    map[int64]bool
	refreshErr error
	reasons    []string
}

func (m *mockDependencies) Bundle(context.Context) (kpi.Bundle, error) {
	return m.bundle, m.bundleErr
}

func (m *mockDependencies) Engine() *kpi.Engine { return kpi.New() }

func (m *mockDependencies) CurrentSprint(context.Context) (kpi.SprintInfo, error) {
	if m.currentErr != nil {
		return kpi.SprintInfo{}, m.currentErr
	}
	if m.bundle.CurrentSprint == nil {
		return kpi.SprintInfo{}, service.ErrNoCurrentSprint
	}
	return *m.bundle.CurrentSprint, nil
}

func (m *mockDependencies) SprintExpired(_ context.Context, id int64) (bool, error) {
	expired, ok := m.expired[id]
	if !ok {
		return false, fmt.Errorf("%w: %d", service.ErrSprintNotFound, id)
	}
	return expired, nil
}

func (m *mockDependencies) RequestRefresh(_ context.Context, reason string) (queue.RefreshRequest, error) {
	if m.refreshErr != nil {
		return queue.RefreshRequest{}, m.refreshErr
	}
	m.reasons = append(m.reasons, reason)
	return queue.NewRefreshRequest(reason, now), nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func fixtureBundle() kpi.Bundle {
	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	snap := model.Snapshot{
		Users: []model.User{{ID: 10, Name: "Alice"}, {ID: 20, Name: "Bob"}},
		Sprints: []model.Sprint{
			{ID: 1, Name: "Sprint 1", StartsAt: start, EndsAt: start.AddDate(0, 0, 14)},
		},
		Tasks: []model.Task{
			{ID: 1, Description: "Login", State: model.StateDone, SprintID: 1, AssignedTo: 10, HoursEstimated: model.Hours(5), HoursReal: model.Hours(6)},
			{ID: 2, Description: "Docs", State: model.StateDone, SprintID: 7, AssignedTo: 20, HoursEstimated: model.Hours(2), HoursReal: model.Hours(1)},
		},
	}
	return kpi.Aggregate(snap, now)
}

func newMux(deps *mockDependencies) *http.ServeMux {
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}},
		api.WithClock(func() time.Time { return now }),
	)
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func serve(mux http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServer_Register(t *testing.T) {
	Convey("Given a new API server", t, func() {
		mux := newMux(&mockDependencies{bundle: fixtureBundle()})

		Convey("Then every read endpoint answers GET", func() {
			for _, path := range []string{
				"/healthz",
				"/stats",
				"/kpi",
				"/kpi/completed-tasks",
				"/kpi/team-performance",
				"/kpi/individual-performance",
				"/kpi/estimation-accuracy",
				"/kpi/users/hours",
				"/kpi/users/done-tasks",
				"/kpi/summary",
				"/kpi/export.xlsx",
				"/sprints/current",
			} {
				So(serve(mux, http.MethodGet, path).Code, ShouldEqual, http.StatusOK)
			}
		})

		Convey("Then unknown paths are not found", func() {
			So(serve(mux, http.MethodGet, "/unknown").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then wrong methods are not found", func() {
			So(serve(mux, http.MethodPost, "/kpi").Code, ShouldEqual, http.StatusNotFound)
			So(serve(mux, http.MethodGet, "/refresh").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestKPIHandler(t *testing.T) {
	Convey("Given a server over a loaded snapshot", t, func() {
		mux := newMux(&mockDependencies{bundle: fixtureBundle()})

		Convey("When fetching the bundle", func() {
			w := serve(mux, http.MethodGet, "/kpi")

			Convey("Then it is JSON with every view", func() {
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
				var body map[string]json.RawMessage
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				for _, key := range []string{
					"generatedAt", "currentSprint", "currentSprintEstimatedHours",
					"completedTasksBySprint", "teamPerformancePerSprint", "individualPerformancePerSprint",
					"estimationAccuracyPerSprint", "totalHoursPerUser", "totalCompletedTasksPerUser",
				} {
					So(body, ShouldContainKey, key)
				}
				So(body, ShouldHaveLength, 9)
			})
		})

		Convey("When fetching completed tasks", func() {
			w := serve(mux, http.MethodGet, "/kpi/completed-tasks")

			Convey("Then groups are ordered and unknown sprints keep their id label", func() {
				var groups []kpi.CompletedTaskGroup
				So(json.Unmarshal(w.Body.Bytes(), &groups), ShouldBeNil)
				So(groups, ShouldHaveLength, 2)
				So(groups[0].SprintName, ShouldEqual, "Sprint 1")
				So(groups[1].SprintName, ShouldEqual, "Sprint 7")
				So(groups[1].Tasks[0].Developer, ShouldEqual, "Bob")
			})
		})

		Convey("When fetching team performance", func() {
			w := serve(mux, http.MethodGet, "/kpi/team-performance")

			Convey("Then unknown sprints fold into the backlog row", func() {
				var rows []kpi.SprintPerformance
				So(json.Unmarshal(w.Body.Bytes(), &rows), ShouldBeNil)
				So(rows, ShouldResemble, []kpi.SprintPerformance{
					{SprintName: sprint.BacklogName, CompletedTasks: 1, TotalRealHours: 1},
					{SprintName: "Sprint 1", CompletedTasks: 1, TotalRealHours: 6},
				})
			})
		})

		Convey("When fetching individual performance", func() {
			w := serve(mux, http.MethodGet, "/kpi/individual-performance")

			Convey("Then the matrix comes with its sprint order", func() {
				var body struct {
					Sprints     []string             `json:"sprints"`
					Performance kpi.IndividualMatrix `json:"performance"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Sprints, ShouldResemble, []string{sprint.BacklogName, "Sprint 1"})
				So(body.Performance["Sprint 1"]["Bob"], ShouldResemble, kpi.UserSprintCell{})
				So(body.Performance["Sprint 1"]["Alice"].CompletedTasks, ShouldEqual, 1)
			})
		})

		Convey("When fetching the summary", func() {
			w := serve(mux, http.MethodGet, "/kpi/summary")

			Convey("Then it is the plain-text digest", func() {
				So(w.Header().Get("Content-Type"), ShouldEqual, "text/plain; charset=utf-8")
				So(w.Body.String(), ShouldContainSubstring, "- Sprint 1: 1 tasks completed, 6.0 total real hours.")
			})

			Convey("Then the prompt format adds instructions", func() {
				w := serve(mux, http.MethodGet, "/kpi/summary?format=prompt")
				So(w.Body.String(), ShouldStartWith, "Please provide a brief")
			})

			Convey("Then unknown formats are rejected", func() {
				w := serve(mux, http.MethodGet, "/kpi/summary?format=html")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When exporting a workbook", func() {
			w := serve(mux, http.MethodGet, "/kpi/export.xlsx")

			Convey("Then it is a dated xlsx attachment", func() {
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
				So(w.Header().Get("Content-Disposition"), ShouldEqual, `attachment; filename="kpi-20250310.xlsx"`)

				f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
				So(err, ShouldBeNil)
				defer f.Close()
				So(f.GetSheetList(), ShouldContain, "Team Performance")
			})
		})
	})

	Convey("Given a server whose snapshot failed to load", t, func() {
		err := fmt.Errorf("%w: %w", service.ErrNoSnapshot, errors.New("tracker unreachable"))
		mux := newMux(&mockDependencies{bundleErr: err, currentErr: err})

		Convey("Then reads report fetch_failed", func() {
			for _, path := range []string{"/kpi", "/kpi/team-performance", "/kpi/summary", "/kpi/export.xlsx", "/sprints/current"} {
				w := serve(mux, http.MethodGet, path)
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)

				var body map[string]string
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["code"], ShouldEqual, "fetch_failed")
				So(body["message"], ShouldContainSubstring, "tracker unreachable")
			}
		})
	})
}

func TestSprintHandler(t *testing.T) {
	Convey("Given sprint dependencies", t, func() {
		deps := &mockDependencies{
			bundle:  fixtureBundle(),
			expired: map[int64]bool{1: false, 2: true},
		}
		mux := newMux(deps)

		Convey("When asking for the current sprint", func() {
			w := serve(mux, http.MethodGet, "/sprints/current")

			Convey("Then it is returned", func() {
				var cur kpi.SprintInfo
				So(json.Unmarshal(w.Body.Bytes(), &cur), ShouldBeNil)
				So(cur.ID, ShouldEqual, 1)
				So(cur.Name, ShouldEqual, "Sprint 1")
			})
		})

		Convey("When no sprint is current", func() {
			deps.bundle.CurrentSprint = nil

			Convey("Then the answer is not found", func() {
				So(serve(mux, http.MethodGet, "/sprints/current").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When asking whether sprints expired", func() {
			Convey("Then known sprints answer", func() {
				w := serve(mux, http.MethodGet, "/sprints/2/expired")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"expired":true`)
			})

			Convey("Then unknown sprints are not found", func() {
				So(serve(mux, http.MethodGet, "/sprints/9/expired").Code, ShouldEqual, http.StatusNotFound)
			})

			Convey("Then malformed ids are rejected", func() {
				So(serve(mux, http.MethodGet, "/sprints/abc/expired").Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestRefreshHandler(t *testing.T) {
	Convey("Given refresh dependencies", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("When a refresh is posted", func() {
			w := serve(mux, http.MethodPost, "/refresh?reason=deploy")

			Convey("Then it is accepted with the request id", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				var body map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["status"], ShouldEqual, "accepted")
				So(body["id"], ShouldNotBeEmpty)
				So(deps.reasons, ShouldResemble, []string{"deploy"})
			})
		})

		Convey("When no reason is given", func() {
			serve(mux, http.MethodPost, "/refresh")

			Convey("Then the manual reason is used", func() {
				So(deps.reasons, ShouldResemble, []string{"manual"})
			})
		})

		Convey("When the queue is full", func() {
			deps.refreshErr = fmt.Errorf("%w: %w", service.ErrBackpressure, queue.ErrFull)

			Convey("Then backpressure is reported", func() {
				w := serve(mux, http.MethodPost, "/refresh")
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(w.Body.String(), ShouldContainSubstring, `"code":"backpressure"`)
			})
		})

		Convey("When the service is stopped", func() {
			deps.refreshErr = service.ErrNotStarted

			Convey("Then the service is unavailable", func() {
				So(serve(mux, http.MethodPost, "/refresh").Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	Convey("Given the request id middleware", t, func() {
		h := api.RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		Convey("Then a missing id is generated", func() {
			w := serve(h, http.MethodGet, "/")
			So(w.Header().Get(api.RequestIDHeader), ShouldHaveLength, 36)
		})

		Convey("Then a supplied id is echoed", func() {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set(api.RequestIDHeader, "abc-123")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "abc-123")
		})
	})
}

func TestOpErrors(t *testing.T) {
	Convey("Given operation errors", t, func() {
		cause := errors.New("boom")

		Convey("Then kinds and causes are both matched", func() {
			err := api.WrapKind("api.refresh", api.ErrBackpressure, cause)
			So(errors.Is(err, api.ErrBackpressure), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.refresh: backpressure: boom")
		})

		Convey("Then messages omit missing parts", func() {
			So(api.NewKind("api.kpi", api.ErrNotFound).Error(), ShouldEqual, "api.kpi: not found")
			So(api.Wrap("api.kpi", cause).Error(), ShouldEqual, "api.kpi: boom")
			So(api.Wrap("api.kpi", nil), ShouldBeNil)
		})
	})
}
