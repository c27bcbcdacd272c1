package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/taskrouter/internal/adapters/repository"
	"github.com/okian/taskrouter/internal/domain/detect"
	"github.com/okian/taskrouter/internal/domain/model"
	"github.com/okian/taskrouter/pkg/logger"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const taskText = "Can you please fix the Go deployment bug tomorrow, it's urgent"

func testDirectory() *repository.MemoryDirectory {
	return repository.NewMemoryDirectory(
		[]model.Skill{
			{ID: "go", Name: "Go"},
			{ID: "docker", Name: "Docker"},
			{ID: "react", Name: "React"},
		},
		[]model.Member{
			{
				UserID: "alice", TeamID: "platform", Name: "Alice", ContactHandle: "@alice",
				Skills: []model.UserSkillProfile{
					{UserID: "alice", SkillID: "go", ProficiencyLevel: 5},
					{UserID: "alice", SkillID: "docker", ProficiencyLevel: 3},
				},
				LastActive:  now.Add(-time.Hour),
				ActiveTasks: 1,
			},
			{
				UserID: "bob", TeamID: "platform", Name: "Bob",
				Skills: []model.UserSkillProfile{
					{UserID: "bob", SkillID: "react", ProficiencyLevel: 4},
				},
				LastActive:  now.Add(-36 * time.Hour),
				ActiveTasks: 1,
			},
			{UserID: "carol", TeamID: "platform", Name: "Carol", ActiveTasks: 1},
		},
	)
}

type eventLog struct {
	mu     sync.Mutex
	events []model.TaskEvent
}

func (l *eventLog) record(_ context.Context, ev model.TaskEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Type)
	}
	return out
}

// gatedDirectory holds every Touch until the gate is closed.
type gatedDirectory struct {
	*repository.MemoryDirectory
	gate chan struct{}
}

func (d *gatedDirectory) Touch(ctx context.Context, userID string, at time.Time) error {
	<-d.gate
	return d.MemoryDirectory.Touch(ctx, userID, at)
}

func newTestService(dir repository.Directory, events *eventLog, opts ...Option) *Service {
	base := []Option{
		WithDirectory(dir),
		WithTaskListener(TaskListenerFunc(events.record)),
		WithClock(func() time.Time { return now }),
		WithWorkerCount(2),
		WithQueueSize(16),
		WithDetectorOptions(
			detect.WithDateRecognizer(nil),
			detect.WithSentenceSplitter(detect.PeriodSplitter{}),
		),
	}
	return New(append(base, opts...)...)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestProcess(t *testing.T) {
	_ = logger.Init()
	ctx := context.Background()

	Convey("Given a service over a platform team", t, func() {
		dir := testDirectory()
		events := &eventLog{}
		svc := newTestService(dir, events)

		Convey("When a task message from carol is processed", func() {
			msg := model.Message{ID: "m1", TeamID: "platform", SenderID: "carol", Text: taskText}
			So(svc.Process(ctx, msg), ShouldBeNil)

			tasks, err := svc.Tasks(ctx, repository.ListFilter{})
			So(err, ShouldBeNil)
			So(len(tasks), ShouldEqual, 1)
			task := tasks[0]

			Convey("Then the task should carry the extracted attributes", func() {
				So(task.MessageID, ShouldEqual, "m1")
				So(task.RequesterID, ShouldEqual, "carol")
				So(task.Priority, ShouldEqual, model.PriorityHigh)
				So(task.Deadline, ShouldEqual, "tomorrow")
				So(task.Skills, ShouldContain, "Go")
				So(task.Status, ShouldEqual, model.TaskPending)
				So(task.CreatedAt, ShouldEqual, now)
			})

			Convey("Then suggestions should exclude the sender and favour the Go expert", func() {
				So(len(task.Suggestions), ShouldEqual, 2)
				So(task.Suggestions[0].UserID, ShouldEqual, "alice")
				So(task.Suggestions[0].SkillMatchScore, ShouldEqual, 100)
				So(task.Suggestions[1].UserID, ShouldEqual, "bob")
			})

			Convey("Then listeners should hear about the new task", func() {
				So(events.types(), ShouldResemble, []string{model.TaskEventCreated})
			})

			Convey("Then the sender should be marked active", func() {
				members, _ := dir.TeamMembers(ctx, "platform")
				So(members[2].LastActive, ShouldEqual, now)
			})

			Convey("And the same message is processed again", func() {
				So(svc.Process(ctx, msg), ShouldBeNil)

				Convey("Then no second task should be stored", func() {
					tasks, _ := svc.Tasks(ctx, repository.ListFilter{})
					So(len(tasks), ShouldEqual, 1)
				})
			})
		})

		Convey("When chatter is processed", func() {
			msg := model.Message{ID: "m2", TeamID: "platform", SenderID: "bob", Text: "lol that meme was great"}
			So(svc.Process(ctx, msg), ShouldBeNil)

			Convey("Then no task should be created", func() {
				tasks, _ := svc.Tasks(ctx, repository.ListFilter{})
				So(tasks, ShouldBeEmpty)
				So(events.types(), ShouldBeEmpty)
			})
		})

		Convey("When a task arrives from a team the directory does not know", func() {
			msg := model.Message{ID: "m3", TeamID: "ghost", SenderID: "zed", Text: taskText}
			So(svc.Process(ctx, msg), ShouldBeNil)

			Convey("Then the task should be stored without suggestions", func() {
				tasks, _ := svc.Tasks(ctx, repository.ListFilter{})
				So(len(tasks), ShouldEqual, 1)
				So(tasks[0].Suggestions, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a service with auto assignment and one suggestion", t, func() {
		dir := testDirectory()
		events := &eventLog{}
		svc := newTestService(dir, events, WithAutoAssign(true), WithMaxSuggestions(1))

		Convey("When a task message is processed", func() {
			msg := model.Message{ID: "m1", TeamID: "platform", SenderID: "carol", Text: taskText}
			So(svc.Process(ctx, msg), ShouldBeNil)

			Convey("Then the top candidate should be assigned", func() {
				tasks, _ := svc.Tasks(ctx, repository.ListFilter{})
				So(len(tasks), ShouldEqual, 1)
				So(tasks[0].Status, ShouldEqual, model.TaskAssigned)
				So(tasks[0].AssigneeID, ShouldEqual, "alice")
				So(len(tasks[0].Suggestions), ShouldEqual, 1)
				So(events.types(), ShouldResemble, []string{model.TaskEventCreated, model.TaskEventAssigned})

				members, _ := dir.TeamMembers(ctx, "platform")
				So(members[0].ActiveTasks, ShouldEqual, 2)
			})
		})
	})
}

func TestAssign(t *testing.T) {
	_ = logger.Init()
	ctx := context.Background()

	Convey("Given a stored pending task", t, func() {
		dir := testDirectory()
		events := &eventLog{}
		svc := newTestService(dir, events)
		So(svc.Process(ctx, model.Message{ID: "m1", TeamID: "platform", SenderID: "carol", Text: taskText}), ShouldBeNil)
		tasks, _ := svc.Tasks(ctx, repository.ListFilter{})
		id := tasks[0].ID

		Convey("When assigning to bob and then to alice", func() {
			first, err := svc.Assign(ctx, id, "bob")
			So(err, ShouldBeNil)
			So(first.AssigneeID, ShouldEqual, "bob")

			second, err := svc.Assign(ctx, id, "alice")
			So(err, ShouldBeNil)

			Convey("Then the workload should follow the assignee", func() {
				So(second.AssigneeID, ShouldEqual, "alice")
				So(second.Status, ShouldEqual, model.TaskAssigned)
				members, _ := dir.TeamMembers(ctx, "platform")
				So(members[0].ActiveTasks, ShouldEqual, 2)
				So(members[1].ActiveTasks, ShouldEqual, 1)
				So(events.types(), ShouldResemble, []string{
					model.TaskEventCreated, model.TaskEventAssigned, model.TaskEventAssigned,
				})
			})
		})

		Convey("Then assigning to an outsider should fail", func() {
			_, err := svc.Assign(ctx, id, "zed")
			So(errors.Is(err, ErrNotMember), ShouldBeTrue)
		})

		Convey("Then an empty user should be invalid", func() {
			_, err := svc.Assign(ctx, id, " ")
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
		})

		Convey("Then an unknown task should be not found", func() {
			_, err := svc.Assign(ctx, "missing", "bob")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestSubmit(t *testing.T) {
	_ = logger.Init()
	ctx := context.Background()

	Convey("Given a service that has not been started", t, func() {
		svc := newTestService(testDirectory(), &eventLog{})

		Convey("Then submissions should be rejected", func() {
			So(svc.Submit(ctx, model.Message{ID: "x", Text: taskText}), ShouldEqual, StatusRejected)
		})
	})

	Convey("Given a started service", t, func() {
		svc := newTestService(testDirectory(), &eventLog{})
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("Then intake guards should ignore short and automated messages", func() {
			So(svc.Submit(ctx, model.Message{ID: "s1", Text: "fix it"}), ShouldEqual, StatusIgnored)
			So(svc.Submit(ctx, model.Message{ID: "s2", Text: taskText, Automated: true}), ShouldEqual, StatusIgnored)
		})

		Convey("When a task message is submitted twice", func() {
			msg := model.Message{ID: "m1", TeamID: "platform", SenderID: "carol", Text: taskText}
			first := svc.Submit(ctx, msg)
			second := svc.Submit(ctx, msg)

			Convey("Then it should be queued once and produce a task", func() {
				So(first, ShouldEqual, StatusAccepted)
				So(second, ShouldEqual, StatusDuplicate)
				So(waitFor(func() bool {
					tasks, _ := svc.Tasks(ctx, repository.ListFilter{})
					return len(tasks) == 1
				}), ShouldBeTrue)
			})
		})

		Convey("Then stats should describe the running pipeline", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["workerCount"], ShouldEqual, 2)
			So(stats["queueSize"], ShouldEqual, 16)
			So(stats, ShouldContainKey, "queueLength")
			So(stats, ShouldContainKey, "totalTasks")
		})
	})

	Convey("Given a stopped service", t, func() {
		svc := newTestService(testDirectory(), &eventLog{})
		So(svc.Start(ctx), ShouldBeNil)
		svc.Stop()

		Convey("Then submissions should be rejected and stats should say so", func() {
			So(svc.Submit(ctx, model.Message{ID: "late", Text: taskText}), ShouldEqual, StatusRejected)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})
}

func TestCandidatePoolAndRank(t *testing.T) {
	_ = logger.Init()
	ctx := context.Background()

	Convey("Given the platform team", t, func() {
		svc := newTestService(testDirectory(), &eventLog{})

		Convey("When resolving candidates for a message from carol", func() {
			pool, err := svc.CandidatePool(ctx, "platform", "carol")
			So(err, ShouldBeNil)

			Convey("Then carol should be excluded and signals derived", func() {
				So(len(pool), ShouldEqual, 2)
				So(pool[0].UserID, ShouldEqual, "alice")
				// One hour into the 72 hour window.
				So(pool[0].ActivityScore, ShouldAlmostEqual, 100*(1-1.0/72), 1e-9)
				// One task against a team average of one.
				So(pool[0].WorkloadScore, ShouldEqual, 50)
				So(pool[1].ActivityScore, ShouldEqual, 50)
			})
		})

		Convey("Then an unknown team should surface not found", func() {
			_, err := svc.CandidatePool(ctx, "ghost", "")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When ranking with the directory catalog", func() {
			scores, err := svc.Rank(ctx, "Fix the Go service", []string{"Go"}, []model.Candidate{
				{UserID: "a", Skills: []model.UserSkillProfile{{SkillID: "go", ProficiencyLevel: 5}}, ActivityScore: 80, WorkloadScore: 40},
				{UserID: "b", ActivityScore: 50, WorkloadScore: 10},
			}, nil)

			Convey("Then the expert should lead with the documented totals", func() {
				So(err, ShouldBeNil)
				So(scores[0].UserID, ShouldEqual, "a")
				So(scores[0].TotalScore, ShouldAlmostEqual, 89, 1e-9)
				So(scores[1].TotalScore, ShouldAlmostEqual, 25.5, 1e-9)
			})
		})

		Convey("When detecting with verbose output", func() {
			res, err := svc.Detect(ctx, "Please review the Docker setup", detect.Verbose())

			Convey("Then the directory vocabulary should be used", func() {
				So(err, ShouldBeNil)
				So(res.IsTask, ShouldBeTrue)
				So(res.SuggestedSkills, ShouldContain, "Docker")
			})
		})

		Convey("Then Skills should return the catalog", func() {
			skills, err := svc.Skills(ctx)
			So(err, ShouldBeNil)
			So(len(skills), ShouldEqual, 3)
		})
	})
}

func TestStopDrainsQueue(t *testing.T) {
	_ = logger.Init()

	Convey("Given a single worker blocked on the directory", t, func() {
		dir := &gatedDirectory{MemoryDirectory: testDirectory(), gate: make(chan struct{})}
		events := &eventLog{}
		svc := newTestService(dir, events, WithWorkerCount(1))

		startCtx, cancel := context.WithCancel(context.Background())
		So(svc.Start(startCtx), ShouldBeNil)

		for _, id := range []string{"d1", "d2", "d3", "d4", "d5"} {
			msg := model.Message{ID: id, TeamID: "platform", SenderID: "carol", Text: taskText}
			So(svc.Submit(context.Background(), msg), ShouldEqual, StatusAccepted)
		}

		Convey("When the start context is cancelled before the service stops", func() {
			cancel()
			close(dir.gate)
			svc.Stop()

			Convey("Then every accepted message should still produce a task", func() {
				tasks, err := svc.Tasks(context.Background(), repository.ListFilter{})
				So(err, ShouldBeNil)
				So(len(tasks), ShouldEqual, 5)
				So(len(events.types()), ShouldEqual, 5)
			})
		})
	})
}
