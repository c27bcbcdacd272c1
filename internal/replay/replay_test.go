package replay

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/taskrouter/internal/adapters/http/api"
	"github.com/okian/taskrouter/internal/adapters/repository"
	service "github.com/okian/taskrouter/internal/app"
	"github.com/okian/taskrouter/pkg/logger"
)

var rosterFile = filepath.Join("..", "adapters", "repository", "testdata", "directory.yaml")

func TestGenerateMessages(t *testing.T) {
	_ = logger.Init()
	ctx := context.Background()

	Convey("Given a seeded generator", t, func() {
		cfg := &Config{NumMessages: 200, TaskRatio: 0.5, Seed: 7}

		Convey("When generating twice with the same seed", func() {
			a := generateMessages(ctx, cfg, defaultSenders, &Stats{})
			b := generateMessages(ctx, cfg, defaultSenders, &Stats{})

			Convey("Then the texts and senders should match", func() {
				So(len(a), ShouldEqual, 200)
				for i := range a {
					So(a[i].Text, ShouldEqual, b[i].Text)
					So(a[i].SenderID, ShouldEqual, b[i].SenderID)
				}
			})
		})

		Convey("When counting expectations", func() {
			stats := &Stats{}
			msgs := generateMessages(ctx, cfg, defaultSenders, stats)

			Convey("Then the ratio should be roughly honored and ids unique", func() {
				So(stats.Generated, ShouldEqual, 200)
				So(stats.Expected, ShouldBeBetween, 60, 140)
				seen := map[string]bool{}
				for _, m := range msgs {
					So(seen[m.ID], ShouldBeFalse)
					seen[m.ID] = true
				}
			})
		})
	})

	Convey("Given a roster file", t, func() {
		senders, err := loadSenders(ctx, rosterFile)

		Convey("Then every team membership should be a sender", func() {
			So(err, ShouldBeNil)
			So(senders, ShouldResemble, []sender{
				{team: "mobile", user: "alice"},
				{team: "platform", user: "alice"},
				{team: "platform", user: "bob"},
			})
		})
	})
}

func TestMessagesFile(t *testing.T) {
	Convey("Given messages written as JSON lines", t, func() {
		msgs := []Message{
			{ID: "m1", TeamID: "t", SenderID: "u", Text: "please ship it", ExpectTask: true},
			{ID: "m2", TeamID: "t", SenderID: "v", Text: "hello"},
		}
		var buf bytes.Buffer
		So(writeMessages(&buf, msgs), ShouldBeNil)

		Convey("Then reading them back should drop only the local marker", func() {
			got, err := readMessages(strings.NewReader(buf.String() + "\n\n"))
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 2)
			So(got[0].Text, ShouldEqual, "please ship it")
			So(got[0].ExpectTask, ShouldBeFalse)
		})

		Convey("Then a corrupt line should be reported by number", func() {
			_, err := readMessages(strings.NewReader(buf.String() + "{oops\n"))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "line 3")
		})
	})
}

func TestVerifyTasks(t *testing.T) {
	_ = logger.Init()
	ctx := context.Background()

	Convey("Given submitted messages", t, func() {
		msgs := []Message{{ID: "m1", TeamID: "platform", SenderID: "alice"}}

		Convey("When the sender is suggested for their own request", func() {
			tasks := []Task{{ID: "t1", MessageID: "m1", TeamID: "platform"}}
			tasks[0].Suggestions = append(tasks[0].Suggestions, struct {
				UserID     string  `json:"user_id"`
				TotalScore float64 `json:"total_score"`
			}{UserID: "alice", TotalScore: 50})

			Convey("Then verification should fail", func() {
				So(verifyTasks(ctx, msgs, tasks, &Stats{}), ShouldNotBeNil)
			})
		})

		Convey("When tasks belong to other runs", func() {
			stats := &Stats{}
			err := verifyTasks(ctx, msgs, []Task{{ID: "t9", MessageID: "other"}}, stats)

			Convey("Then they should be stored but not counted as detected", func() {
				So(err, ShouldBeNil)
				So(stats.TasksStored, ShouldEqual, 1)
				So(stats.Detected, ShouldEqual, 0)
			})
		})
	})
}

func TestWaitForDrain(t *testing.T) {
	Convey("Given a service whose workers finish after the queue empties", t, func() {
		script := []string{
			`{"queueLength":2,"totalTasks":0}`,
			`{"queueLength":0,"totalTasks":3}`,
			`{"queueLength":0,"totalTasks":5}`,
			`{"queueLength":0,"totalTasks":5}`,
		}
		var polls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			n := int(polls.Add(1)) - 1
			if n >= len(script) {
				n = len(script) - 1
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(script[n]))
		}))
		defer srv.Close()

		Convey("When waiting for the pipeline to drain", func() {
			err := waitForDrain(context.Background(), newClient(srv.URL, time.Second), 5*time.Second)

			Convey("Then it should return only once totalTasks stops moving", func() {
				So(err, ShouldBeNil)
				So(polls.Load(), ShouldEqual, 4)
			})
		})
	})

	Convey("Given a service that never settles", t, func() {
		var total atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"queueLength":0,"totalTasks":` + strconv.Itoa(int(total.Add(1))) + `}`))
		}))
		defer srv.Close()

		Convey("Then waiting should time out", func() {
			err := waitForDrain(context.Background(), newClient(srv.URL, time.Second), 600*time.Millisecond)
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
		})
	})
}

func TestRunAgainstService(t *testing.T) {
	_ = logger.Init()

	Convey("Given a running service behind an HTTP server", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		dir, err := repository.LoadDirectoryFile(rosterFile)
		So(err, ShouldBeNil)

		svc := service.New(
			service.WithWorkerCount(2),
			service.WithQueueSize(256),
			service.WithDirectory(dir),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		Convey("When replaying generated messages", func() {
			stats, err := Run(ctx, &Config{
				BaseURL:       srv.URL,
				DirectoryFile: rosterFile,
				NumMessages:   40,
				TaskRatio:     0.6,
				Seed:          3,
				Workers:       4,
				Timeout:       5 * time.Second,
				Settle:        5 * time.Second,
				OutputFile:    filepath.Join(t.TempDir(), "messages.jsonl"),
			})

			Convey("Then every message should be accepted and tasks verified", func() {
				So(err, ShouldBeNil)
				So(stats.Submitted, ShouldEqual, 40)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.Accepted, ShouldEqual, 40)
				So(stats.Detected, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the service is unreachable", func() {
			_, err := Run(ctx, &Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})

			Convey("Then the run should stop at the health check", func() {
				So(errors.Is(err, ErrUnhealthy), ShouldBeTrue)
			})
		})
	})
}
