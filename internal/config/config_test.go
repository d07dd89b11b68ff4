package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/profiler/internal/config"
	"github.com/okian/profiler/internal/domain/quiz"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Sink.Kind, convey.ShouldEqual, "sqlite")
			convey.So(cfg.Model.Strategy, convey.ShouldEqual, "naive_bayes")
			convey.So(cfg.Model.MinTrainingRows, convey.ShouldEqual, 20)
			convey.So(cfg.Model.TrainJudgments, convey.ShouldResemble, []string{"match", "close"})
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.RareVariant, convey.ShouldResemble, config.DrawConfig{Range: 100, Hit: 1})
			convey.So(cfg.ShutdownTimeout, convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the default rarity table converts to one legendary rule", func() {
			rules := cfg.RarityRules()
			convey.So(len(rules), convey.ShouldEqual, 1)
			convey.So(rules[0].Name, convey.ShouldEqual, "legendary")
			convey.So(rules[0].Require[quiz.Personality], convey.ShouldEqual, "Mysterious & Cunning")
			convey.So(rules[0].Require[quiz.CoreStrength], convey.ShouldEqual, "Raw Power")
			convey.So(rules[0].Range, convey.ShouldEqual, 20)
		})

		convey.Convey("Then the training judgments parse", func() {
			js, err := cfg.Judgments()
			convey.So(err, convey.ShouldBeNil)
			convey.So(js, convey.ShouldResemble, []quiz.Judgment{quiz.JudgmentMatch, quiz.JudgmentClose})
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("When the sink kind is unknown", func() {
			cfg.Sink.Kind = "spreadsheet"
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "sink.kind")
		})

		convey.Convey("When the blob sink has no location", func() {
			cfg.Sink.Kind = "blob"
			err := cfg.Validate()
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "connection_string or account_url")
		})

		convey.Convey("When the strategy is unknown", func() {
			cfg.Model.Strategy = "forest"
			convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "model.strategy")
		})

		convey.Convey("When a training judgment is invalid", func() {
			cfg.Model.TrainJudgments = []string{"match", "meh"}
			err := cfg.Validate()
			convey.So(errors.Is(err, quiz.ErrInvalidJudgment), convey.ShouldBeTrue)
		})

		convey.Convey("When a rarity rule requires an unknown answer", func() {
			cfg.Rarity.Rules[0].Require["personality"] = "Grumpy"
			convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "legendary")
		})

		convey.Convey("When the variant hit is outside its range", func() {
			cfg.RareVariant = config.DrawConfig{Range: 10, Hit: 11}
			convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "variant rule")
		})

		convey.Convey("When several fields are wrong", func() {
			cfg.Addr = ""
			cfg.Retrain.WorkerCount = 0
			err := cfg.Validate()

			convey.Convey("Then every problem is reported", func() {
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr is required")
				convey.So(err.Error(), convey.ShouldContainSubstring, "retrain.worker_count")
			})
		})
	})
}
