package predictor

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/profiler/internal/domain/encoder"
	"github.com/okian/profiler/internal/domain/quiz"
	. "github.com/smartystreets/goconvey/convey"
)

type labelSet map[string]bool

func (l labelSet) Has(name string) bool { return l[name] }

var testLabels = labelSet{"Lapras": true, "Charizard": true, "Gengar": true}

func ocean() quiz.Answers {
	return quiz.Answers{
		Environment:  "Oceans & Lakes",
		Personality:  "Calm & Loyal",
		CoreStrength: "Resilience",
		BattleStyle:  "Balanced & Versatile",
	}
}

func volcano() quiz.Answers {
	return quiz.Answers{
		Environment:  "Mountains & Caves",
		Personality:  "Bold & Competitive",
		CoreStrength: "Raw Power",
		BattleStyle:  "Physical & Head-on",
	}
}

// records returns n match rows split evenly between two profiles.
func records(n int) []quiz.FeedbackRecord {
	out := make([]quiz.FeedbackRecord, 0, n)
	for i := 0; i < n; i++ {
		r := quiz.FeedbackRecord{Answers: ocean(), Outcome: "Lapras", Judgment: quiz.JudgmentMatch}
		if i%2 == 1 {
			r = quiz.FeedbackRecord{Answers: volcano(), Outcome: "Charizard", Judgment: quiz.JudgmentMatch}
		}
		out = append(out, r)
	}
	return out
}

func samples(enc *encoder.Encoder, rs []quiz.FeedbackRecord) []Sample {
	out := make([]Sample, len(rs))
	for i, r := range rs {
		out[i] = Sample{Vector: enc.Encode(r.Answers), Label: r.Outcome}
	}
	return out
}

type stubSource struct {
	mu    sync.Mutex
	rows  []quiz.FeedbackRecord
	err   error
	calls int
}

func (s *stubSource) Records(context.Context) ([]quiz.FeedbackRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]quiz.FeedbackRecord(nil), s.rows...), nil
}

func (s *stubSource) add(rs ...quiz.FeedbackRecord) {
	s.mu.Lock()
	s.rows = append(s.rows, rs...)
	s.mu.Unlock()
}

type stubScheduler struct {
	reasons []string
	accept  bool
}

func (s *stubScheduler) Schedule(_ context.Context, reason string) bool {
	s.reasons = append(s.reasons, reason)
	return s.accept
}

func TestStrategies(t *testing.T) {
	enc := encoder.MustNew()
	train := samples(enc, records(20))

	for _, name := range Strategies() {
		Convey("Given the "+name+" strategy trained on two clear profiles", t, func() {
			tr, err := NewTrainer(name, 3)
			So(err, ShouldBeNil)
			So(tr.Name(), ShouldEqual, name)
			m, err := tr.Train(enc, train)
			So(err, ShouldBeNil)
			So(m.Strategy(), ShouldEqual, name)
			So(m.Labels(), ShouldResemble, []string{"Charizard", "Lapras"})

			Convey("Then each profile predicts its own label", func() {
				got, err := m.Predict(enc.Encode(ocean()))
				So(err, ShouldBeNil)
				So(got, ShouldEqual, "Lapras")
				got, err = m.Predict(enc.Encode(volcano()))
				So(err, ShouldBeNil)
				So(got, ShouldEqual, "Charizard")
			})

			Convey("Then probabilities form a distribution led by the prediction", func() {
				d, err := m.PredictProbability(enc.Encode(ocean()))
				So(err, ShouldBeNil)
				var sum float64
				for _, p := range d {
					sum += p.P
				}
				So(math.Abs(sum-1), ShouldBeLessThan, 1e-9)
				top, ok := d.Top()
				So(ok, ShouldBeTrue)
				So(top.Outcome, ShouldEqual, "Lapras")
				So(d.Of("Lapras"), ShouldBeGreaterThan, d.Of("Charizard"))
			})

			Convey("Then answers with no known values still predict a trained label", func() {
				got, err := m.Predict(enc.Encode(quiz.Answers{Environment: "Space"}))
				So(err, ShouldBeNil)
				So(testLabels.Has(got), ShouldBeTrue)
			})

			Convey("Then a vector of the wrong width is rejected", func() {
				_, err := m.Predict(encoder.Vector{Width: 3})
				So(errors.Is(err, ErrWidthMismatch), ShouldBeTrue)
			})

			Convey("Then the payload restores an equivalent model", func() {
				payload, err := m.Payload()
				So(err, ShouldBeNil)
				r, err := tr.Restore(enc, payload)
				So(err, ShouldBeNil)
				want, _ := m.PredictProbability(enc.Encode(volcano()))
				got, _ := r.PredictProbability(enc.Encode(volcano()))
				So(got, ShouldResemble, want)
			})

			Convey("Then training with no samples fails", func() {
				_, err := tr.Train(enc, nil)
				So(errors.Is(err, ErrNoTrainingData), ShouldBeTrue)
			})
		})
	}

	Convey("Given an unknown strategy name", t, func() {
		_, err := NewTrainer("forest", 0)
		So(errors.Is(err, ErrUnknownStrategy), ShouldBeTrue)
	})
}

func TestArtifact(t *testing.T) {
	Convey("Given a trained model exported to disk", t, func() {
		enc := encoder.MustNew()
		m, err := NaiveBayes{Alpha: 1}.Train(enc, samples(enc, records(20)))
		So(err, ShouldBeNil)
		trainedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		a, err := Export(m, enc, 20, trainedAt)
		So(err, ShouldBeNil)
		path := filepath.Join(t.TempDir(), "model.json")
		So(WriteArtifact(path, a), ShouldBeNil)

		Convey("When read back against the same vocabulary", func() {
			got, err := ReadArtifact(path)
			So(err, ShouldBeNil)
			So(got.TrainingRows, ShouldEqual, 20)
			So(got.TrainedAt.Equal(trainedAt), ShouldBeTrue)
			r, err := got.Restore(enc, testLabels)
			So(err, ShouldBeNil)
			out, err := r.Predict(enc.Encode(ocean()))
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "Lapras")
		})

		Convey("When the encoder vocabulary differs", func() {
			got, _ := ReadArtifact(path)
			other := encoder.MustNew(quiz.Environment, quiz.Personality, quiz.CoreStrength, quiz.BattleStyle)
			_, err := got.Restore(other, testLabels)
			So(errors.Is(err, ErrIncompatibleArtifact), ShouldBeTrue)
		})

		Convey("When a label is missing from the catalog", func() {
			got, _ := ReadArtifact(path)
			_, err := got.Restore(enc, labelSet{"Lapras": true})
			So(errors.Is(err, ErrIncompatibleArtifact), ShouldBeTrue)
		})

		Convey("When the file is absent", func() {
			_, err := ReadArtifact(filepath.Join(t.TempDir(), "none.json"))
			So(errors.Is(err, ErrArtifact), ShouldBeTrue)
		})
	})
}

func TestProvider(t *testing.T) {
	ctx := context.Background()
	enc := encoder.MustNew()

	Convey("Given a provider over a feedback source", t, func() {
		src := &stubSource{rows: records(19)}
		p := NewProvider(enc, src, WithLabels(testLabels))

		Convey("Then the initial snapshot is not ready", func() {
			So(p.Current().Ready(), ShouldBeFalse)
			So(p.Current().Origin, ShouldEqual, OriginNone)
		})

		Convey("When 19 training rows exist", func() {
			s, err := p.Refresh(ctx)
			So(err, ShouldBeNil)
			So(s.Rows, ShouldEqual, 19)
			So(s.Ready(), ShouldBeFalse)
			So(s.Predictor, ShouldBeNil)
		})

		Convey("When the twentieth row arrives", func() {
			src.add(records(1)...)
			s, err := p.Refresh(ctx)
			So(err, ShouldBeNil)
			So(s.Rows, ShouldEqual, 20)
			So(s.Ready(), ShouldBeTrue)
			So(s.Version, ShouldEqual, p.Current().Version)
		})

		Convey("When rows are judged wrong or name unknown outcomes", func() {
			src.add(
				quiz.FeedbackRecord{Answers: ocean(), Outcome: "Lapras", Judgment: quiz.JudgmentWrong},
				quiz.FeedbackRecord{Answers: ocean(), Outcome: "Missingno", Judgment: quiz.JudgmentMatch},
			)
			s, err := p.Refresh(ctx)
			So(err, ShouldBeNil)
			So(s.Rows, ShouldEqual, 19)
		})

		Convey("When close judgments are excluded from training", func() {
			src.add(quiz.FeedbackRecord{Answers: ocean(), Outcome: "Lapras", Judgment: quiz.JudgmentClose})
			strict := NewProvider(enc, src, WithJudgments(quiz.JudgmentMatch))
			s, err := strict.Refresh(ctx)
			So(err, ShouldBeNil)
			So(s.Rows, ShouldEqual, 19)
		})

		Convey("When the source fails", func() {
			src.add(records(1)...)
			before, _ := p.Refresh(ctx)
			src.err = errors.New("disk gone")
			s, err := p.Refresh(ctx)
			So(errors.Is(err, ErrSourceUnavailable), ShouldBeTrue)
			So(s, ShouldEqual, before)
			So(p.Current().Ready(), ShouldBeTrue)
		})

		Convey("When invalidated without a scheduler", func() {
			first, _ := p.Refresh(ctx)
			src.add(records(1)...)
			p.Invalidate(ctx, "feedback")
			s, err := p.Acquire(ctx)
			So(err, ShouldBeNil)
			So(s.Version, ShouldBeGreaterThan, first.Version)
			So(s.Ready(), ShouldBeTrue)

			Convey("Then the next acquire reuses the fresh snapshot", func() {
				calls := src.calls
				again, err := p.Acquire(ctx)
				So(err, ShouldBeNil)
				So(again, ShouldEqual, s)
				So(src.calls, ShouldEqual, calls)
			})
		})

		Convey("When invalidated with a scheduler", func() {
			sched := &stubScheduler{accept: true}
			q := NewProvider(enc, src, WithScheduler(sched))
			q.Invalidate(ctx, "feedback")
			So(sched.reasons, ShouldResemble, []string{"feedback"})
			s, err := q.Acquire(ctx)
			So(err, ShouldBeNil)
			So(s, ShouldEqual, q.Current())
			So(src.calls, ShouldEqual, 0)
		})

		Convey("When pinned", func() {
			sched := &stubScheduler{accept: true}
			q := NewProvider(enc, src, WithScheduler(sched), WithPinned(true))
			q.Invalidate(ctx, "feedback")
			So(sched.reasons, ShouldBeEmpty)
		})

		Convey("When many goroutines refresh at once", func() {
			src.add(records(1)...)
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = p.Refresh(ctx)
				}()
			}
			wg.Wait()
			So(p.Current().Ready(), ShouldBeTrue)
		})

		Convey("When the model is saved and loaded through an artifact", func() {
			src.add(records(1)...)
			_, err := p.Refresh(ctx)
			So(err, ShouldBeNil)
			path := filepath.Join(t.TempDir(), "model.json")
			So(p.SaveArtifact(path), ShouldBeNil)

			q := NewProvider(enc, &stubSource{}, WithLabels(testLabels), WithPinned(true))
			s, err := q.LoadArtifact(ctx, path)
			So(err, ShouldBeNil)
			So(s.Origin, ShouldEqual, OriginArtifact)
			So(s.Ready(), ShouldBeTrue)
			So(s.Rows, ShouldEqual, 20)
		})

		Convey("When saving with no trained model", func() {
			err := p.SaveArtifact(filepath.Join(t.TempDir(), "model.json"))
			So(errors.Is(err, ErrNoTrainingData), ShouldBeTrue)
		})
	})
}
