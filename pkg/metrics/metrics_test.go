package metrics

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When applying them to a manager", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_ns"),
				WithSubsystem("test_sub"),
				WithMetricPrefix("pfx"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(5*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the manager should carry the configured values", func() {
				So(manager.namespace, ShouldEqual, "test_ns")
				So(manager.subsystem, ShouldEqual, "test_sub")
				So(manager.metricPrefix, ShouldEqual, "pfx")
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
				So(manager.refreshInterval, ShouldEqual, 5*time.Second)
				So(manager.customLabels["env"], ShouldEqual, "test")
			})

			Convey("And metric names should include namespace, subsystem and prefix", func() {
				manager.tasksCreated.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				found := false
				for _, mf := range families {
					if mf.GetName() == "test_ns_test_sub_pfx_tasks_created_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When passing empty values", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithRefreshInterval(0),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults should be kept", func() {
				So(manager.namespace, ShouldEqual, "taskrouter")
				So(manager.subsystem, ShouldEqual, "engine")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
				So(manager.refreshInterval, ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a manager on an isolated registry", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(WithPrometheusRegistry(registry))

		Convey("When recording detection outcomes", func() {
			m.detections.WithLabelValues(OutcomeTask).Inc()
			m.detections.WithLabelValues(OutcomeTask).Inc()
			m.detections.WithLabelValues(OutcomeNotTask).Inc()

			Convey("Then each outcome should be counted separately", func() {
				So(testutil.ToFloat64(m.detections.WithLabelValues(OutcomeTask)), ShouldEqual, 2)
				So(testutil.ToFloat64(m.detections.WithLabelValues(OutcomeNotTask)), ShouldEqual, 1)
			})
		})

		Convey("When setting gauges", func() {
			m.queueSize.Set(12)
			m.workerCount.Set(4)

			Convey("Then the gauge values should be exposed", func() {
				So(testutil.ToFloat64(m.queueSize), ShouldEqual, 12)
				So(testutil.ToFloat64(m.workerCount), ShouldEqual, 4)
			})
		})
	})

	Convey("Given the global helpers", t, func() {
		Convey("Then recording should not panic", func() {
			So(func() {
				RecordMessageReceived()
				RecordMessageDuplicate()
				RecordMessageRejected("too_short")
				RecordDetection(true, 0.8)
				RecordDetection(false, 0.1)
				RecordDetectionLatency(0.4)
				RecordDetectionRuleHit("imperative")
				RecordRanking(1.5, 3, 88)
				RecordRanking(0.1, 0, 0)
				RecordTaskCreated()
				RecordTaskAssigned()
				UpdateTotalTasks(7)
				UpdateQueueSize(10)
				UpdateQueueCapacity(100)
				UpdateQueueUtilization(0.1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerCount(2)
				RecordWorkerProcessingLatency(3)
				RecordWorkerError()
				RecordHTTPRequest("detect", "POST", "200")
				RecordHTTPRequestDuration("detect", "POST", "200", 1.2)
				RecordErrorByComponent("worker", "process_error")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
			}, ShouldNotPanic)
		})

		Convey("And the custom registry should expose taskrouter metrics", func() {
			RecordTaskCreated()
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)

			names := make([]string, 0, len(families))
			for _, mf := range families {
				names = append(names, mf.GetName())
			}
			So(strings.Join(names, ","), ShouldContainSubstring, "taskrouter_engine_tasks_created_total")
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent metric updates", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(WithPrometheusRegistry(registry))

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					m.candidatesRanked.Inc()
				}
			}()
		}
		wg.Wait()

		Convey("Then no increments should be lost", func() {
			So(testutil.ToFloat64(m.candidatesRanked), ShouldEqual, 1000)
		})
	})
}
