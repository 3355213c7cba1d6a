package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/bulkbook/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			manager := NewManager()

			Convey("Then it should own a fresh registry", func() {
				So(manager, ShouldNotBeNil)
				So(manager.Registry(), ShouldNotBeNil)
			})
		})

		Convey("When creating two managers on separate registries", func() {
			Convey("Then registration should not collide", func() {
				So(func() {
					NewManager()
					NewManager()
				}, ShouldNotPanic)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("booking"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithRegistry(registry),
			)

			Convey("Then metrics should use the namespace and registry", func() {
				manager.SetActiveSessions(1)
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_booking_sessions_active")
			})
		})
	})
}

func TestImportMetrics(t *testing.T) {
	Convey("Given a metrics manager", t, func() {
		manager := NewManager()

		Convey("When a csv import succeeds with invalid rows", func() {
			manager.ObserveImport(core.FormatCSV, 10, 3, nil)

			Convey("Then records and invalid rows should be counted", func() {
				So(testutil.ToFloat64(manager.importsTotal.WithLabelValues("csv", "ok")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.importedRecords.WithLabelValues("csv")), ShouldEqual, 10)
				So(testutil.ToFloat64(manager.importedInvalid), ShouldEqual, 3)
			})
		})

		Convey("When an import fails before the format is known", func() {
			manager.ObserveImport("", 0, 0, errors.New("unsupported file type"))

			Convey("Then it should be counted as an unknown-format error", func() {
				So(testutil.ToFloat64(manager.importsTotal.WithLabelValues("unknown", "error")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.importedInvalid), ShouldEqual, 0)
			})
		})

		Convey("When the limiter status is updated", func() {
			manager.UpdateImportLimiter(core.LimiterStatus{Active: 2, Available: 3, Capacity: 5})

			Convey("Then the gauges should reflect it", func() {
				So(testutil.ToFloat64(manager.importsActive), ShouldEqual, 2)
				So(testutil.ToFloat64(manager.importsAvailable), ShouldEqual, 3)
			})
		})
	})
}

func TestSubmissionMetrics(t *testing.T) {
	Convey("Given a metrics manager", t, func() {
		manager := NewManager()

		Convey("When submissions complete", func() {
			manager.ObserveSubmission(core.StatusSucceeded, 4, 200*time.Millisecond)
			manager.ObserveSubmission(core.StatusFailed, 2, 100*time.Millisecond)
			manager.ObserveSubmission(core.StatusRefused, 10, 0)

			Convey("Then each status should be counted", func() {
				So(testutil.ToFloat64(manager.submissionsTotal.WithLabelValues("succeeded")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.submissionsTotal.WithLabelValues("failed")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.submissionsTotal.WithLabelValues("refused")), ShouldEqual, 1)
			})

			Convey("Then refused submissions should not count as sent attendees", func() {
				So(testutil.ToFloat64(manager.attendeesSubmitted), ShouldEqual, 6)
			})
		})

		Convey("When the session count changes", func() {
			manager.SetActiveSessions(7)
			manager.SetActiveSessions(3)

			Convey("Then the gauge should hold the latest value", func() {
				So(testutil.ToFloat64(manager.sessionsActive), ShouldEqual, 3)
			})
		})
	})
}

func TestHandler(t *testing.T) {
	Convey("Given a manager with recorded requests", t, func() {
		manager := NewManager()
		manager.RecordHTTPRequest("/api/sessions/{id}", http.MethodGet, http.StatusOK, 5*time.Millisecond)

		Convey("When scraping the handler", func() {
			rec := httptest.NewRecorder()
			manager.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Convey("Then the exposition should include the request counter", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				body := rec.Body.String()
				So(strings.Contains(body, `bulkbook_http_requests_total{method="GET",route="/api/sessions/{id}",status_code="200"} 1`), ShouldBeTrue)
			})
		})
	})
}
