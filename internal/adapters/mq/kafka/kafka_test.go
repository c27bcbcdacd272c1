package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/taskrouter/internal/app"
	"github.com/okian/taskrouter/internal/domain/model"
	"github.com/okian/taskrouter/pkg/logger"
)

type fakeFetcher struct {
	mu        sync.Mutex
	records   []kafkago.Message
	committed []int64
	closed    bool
}

func (f *fakeFetcher) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.records) == 0 {
		return kafkago.Message{}, io.EOF
	}
	rec := f.records[0]
	f.records = f.records[1:]
	return rec, nil
}

func (f *fakeFetcher) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeFetcher) Close() error {
	f.closed = true
	return nil
}

type fakeSubmitter struct {
	mu       sync.Mutex
	statuses []service.SubmitStatus
	got      []model.Message
}

func (s *fakeSubmitter) Submit(_ context.Context, msg model.Message) service.SubmitStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, msg)
	if len(s.statuses) == 0 {
		return service.StatusAccepted
	}
	st := s.statuses[0]
	s.statuses = s.statuses[1:]
	return st
}

type fakeWriter struct {
	msgs []kafkago.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func record(offset int64, v any) kafkago.Message {
	b, _ := json.Marshal(v)
	return kafkago.Message{Topic: "chat.messages", Partition: 2, Offset: offset, Value: b}
}

func TestConsumer(t *testing.T) {
	_ = logger.Init()

	Convey("Given a consumer over a scripted partition", t, func() {
		fetcher := &fakeFetcher{records: []kafkago.Message{
			record(1, model.Message{ID: "m1", TeamID: "platform", Text: "Please review the rollout plan"}),
			{Topic: "chat.messages", Partition: 2, Offset: 2, Value: []byte("{not json")},
			record(3, model.Message{TeamID: "platform", Text: "Could you fix the flaky test"}),
			record(4, model.Message{ID: "m4"}),
		}}
		submitter := &fakeSubmitter{statuses: []service.SubmitStatus{service.StatusAccepted, service.StatusRejected}}
		c := newConsumer(Config{MessagesTopic: "chat.messages", GroupID: "g"}, fetcher, submitter)

		err := c.Run(context.Background())

		Convey("Then it should stop cleanly at the end of the stream", func() {
			So(err, ShouldBeNil)
		})

		Convey("Then decodable messages should be submitted and rejected ones retried", func() {
			So(len(submitter.got), ShouldEqual, 3)
			So(submitter.got[0].ID, ShouldEqual, "m1")
			So(submitter.got[1].ID, ShouldEqual, "chat.messages-2-3")
			So(submitter.got[2].ID, ShouldEqual, "chat.messages-2-3")
		})

		Convey("Then every record should be committed once", func() {
			So(fetcher.committed, ShouldResemble, []int64{1, 2, 3, 4})
		})

		Convey("Then Close should close the reader", func() {
			So(c.Close(), ShouldBeNil)
			So(fetcher.closed, ShouldBeTrue)
		})
	})

	Convey("Given a cancelled context", t, func() {
		c := newConsumer(Config{}, &fakeFetcher{}, &fakeSubmitter{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Convey("Then Run should return the context error", func() {
			So(errors.Is(c.Run(ctx), context.Canceled), ShouldBeTrue)
		})
	})

	Convey("Given incomplete configuration", t, func() {
		Convey("Then constructors should refuse it", func() {
			_, err := NewConsumer(Config{MessagesTopic: "t", GroupID: "g"}, &fakeSubmitter{})
			So(errors.Is(err, ErrNoBrokers), ShouldBeTrue)
			_, err = NewConsumer(Config{Brokers: []string{"k:9092"}, GroupID: "g"}, &fakeSubmitter{})
			So(errors.Is(err, ErrNoTopic), ShouldBeTrue)
			_, err = NewConsumer(Config{Brokers: []string{"k:9092"}, MessagesTopic: "t"}, &fakeSubmitter{})
			So(errors.Is(err, ErrNoGroup), ShouldBeTrue)
			_, err = NewPublisher(Config{Brokers: []string{"k:9092"}})
			So(errors.Is(err, ErrNoTopic), ShouldBeTrue)
		})
	})
}

func TestPublisher(t *testing.T) {
	_ = logger.Init()

	Convey("Given a publisher", t, func() {
		w := &fakeWriter{}
		p := newPublisher("taskrouter.tasks", w)
		ev := model.TaskEvent{Type: model.TaskEventCreated, Task: model.Task{ID: "t-1", Text: "Fix the build"}}

		Convey("When publishing a task event", func() {
			So(p.OnTask(context.Background(), ev), ShouldBeNil)

			Convey("Then the record should be keyed by task and tagged with the event", func() {
				So(len(w.msgs), ShouldEqual, 1)
				So(string(w.msgs[0].Key), ShouldEqual, "t-1")
				So(w.msgs[0].Headers[0].Key, ShouldEqual, eventHeader)
				So(string(w.msgs[0].Headers[0].Value), ShouldEqual, model.TaskEventCreated)

				var decoded model.TaskEvent
				So(json.Unmarshal(w.msgs[0].Value, &decoded), ShouldBeNil)
				So(decoded.Task.Text, ShouldEqual, "Fix the build")
			})
		})

		Convey("When the writer fails", func() {
			w.err = errors.New("broker down")
			err := p.OnTask(context.Background(), ev)

			Convey("Then the error should be returned with the task id", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "t-1")
			})
		})

		Convey("Then it should satisfy the service listener contract", func() {
			var l service.TaskListener = p
			So(l, ShouldNotBeNil)
			So(p.Close(), ShouldBeNil)
		})
	})
}
