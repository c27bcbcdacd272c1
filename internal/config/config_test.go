package config_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/okian/taskrouter/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.ConfidenceThreshold, convey.ShouldEqual, 0.4)
			convey.So(cfg.MinMessageLength, convey.ShouldEqual, 10)
			convey.So(cfg.DateRecognizer, convey.ShouldEqual, "natural")
			convey.So(cfg.SentenceSplitter, convey.ShouldEqual, "punkt")
			convey.So(cfg.TieBreak, convey.ShouldEqual, "input")
			convey.So(cfg.MaxSuggestions, convey.ShouldEqual, 3)
			convey.So(cfg.AutoAssign, convey.ShouldBeFalse)
			convey.So(cfg.KafkaEnabled(), convey.ShouldBeFalse)
		})

		convey.Convey("Then the defaults should validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with out of range fields", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"unknown log level", func(c *config.Config) { c.LogLevel = "trace" }},
			{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }},
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"zero queue", func(c *config.Config) { c.QueueSize = 0 }},
			{"threshold above one", func(c *config.Config) { c.ConfidenceThreshold = 1.5 }},
			{"unknown recognizer", func(c *config.Config) { c.DateRecognizer = "regex" }},
			{"unknown splitter", func(c *config.Config) { c.SentenceSplitter = "nltk" }},
			{"unknown tie break", func(c *config.Config) { c.TieBreak = "random" }},
			{"too many suggestions", func(c *config.Config) { c.MaxSuggestions = 50 }},
			{"broker without port", func(c *config.Config) { c.KafkaBrokers = []string{"kafka"} }},
			{"brokers without topic", func(c *config.Config) {
				c.KafkaBrokers = []string{"kafka:9092"}
				c.KafkaTasksTopic = ""
			}},
		}

		for _, tc := range cases {
			convey.Convey("Then "+tc.name+" should be rejected", func() {
				cfg := config.New()
				tc.mutate(cfg)
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}

		convey.Convey("Then a full kafka setup should validate", func() {
			cfg := config.New()
			cfg.KafkaBrokers = []string{"kafka-1:9092", "kafka-2:9092"}
			convey.So(cfg.Validate(), convey.ShouldBeNil)
			convey.So(cfg.KafkaEnabled(), convey.ShouldBeTrue)
		})
	})
}
