package decision

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/profiler/internal/domain/catalog"
	"github.com/okian/profiler/internal/domain/encoder"
	"github.com/okian/profiler/internal/domain/predictor"
	"github.com/okian/profiler/internal/domain/quiz"
	. "github.com/smartystreets/goconvey/convey"
)

// scripted returns queued values, then n-1 (a miss for every rule) once
// the queue is drained.
type scripted struct {
	vals []int
}

func (s *scripted) IntN(n int) int {
	if len(s.vals) == 0 {
		return n - 1
	}
	v := s.vals[0]
	s.vals = s.vals[1:]
	return v
}

type rows []quiz.FeedbackRecord

func (r rows) Records(context.Context) ([]quiz.FeedbackRecord, error) { return r, nil }

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

func mystical() quiz.Answers {
	return quiz.Answers{
		Environment:  "Mysterious Places",
		Personality:  "Mysterious & Cunning",
		CoreStrength: "Raw Power",
		BattleStyle:  "Strategic & Long-Range",
		Destiny:      true,
	}
}

func history(n int) rows {
	out := make(rows, 0, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			out = append(out, quiz.FeedbackRecord{Answers: ocean(), Outcome: "Lapras", Judgment: quiz.JudgmentMatch})
		} else {
			out = append(out, quiz.FeedbackRecord{Answers: volcano(), Outcome: "Charizard", Judgment: quiz.JudgmentMatch})
		}
	}
	return out
}

func testCatalog(withRare, withCharizard bool) *catalog.Catalog {
	entries := []catalog.Entry{
		{Name: "Lapras", Type: "water", Image: "lapras.png", RareImage: "lapras-rare.png"},
	}
	if withCharizard {
		entries = append(entries, catalog.Entry{Name: "Charizard", Type: "fire", Image: "charizard.png"})
	}
	if withRare {
		entries = append(entries,
			catalog.Entry{Name: "Mewtwo", Type: "psychic", Legendary: true, Image: "mewtwo.png"},
			catalog.Entry{Name: "Mew", Type: "psychic", Mythical: true, Image: "mew.png"},
		)
	}
	c, err := catalog.New(entries)
	if err != nil {
		panic(err)
	}
	return c
}

func readyProvider(n int) *predictor.Provider {
	p := predictor.NewProvider(encoder.MustNew(), history(n))
	if _, err := p.Refresh(context.Background()); err != nil {
		panic(err)
	}
	return p
}

func fixedID() string { return "sub-1" }

func TestDecide(t *testing.T) {
	ctx := context.Background()

	Convey("Given a predictor trained on 19 feedback rows", t, func() {
		cy, err := New(readyProvider(19), testCatalog(true, true))
		So(err, ShouldBeNil)

		Convey("Then decide reports not ready", func() {
			_, err := cy.Decide(ctx, Request{Answers: ocean()})
			So(errors.Is(err, ErrNotReady), ShouldBeTrue)
		})
	})

	Convey("Given a ready predictor and a catalog with a rare pool", t, func() {
		p := readyProvider(20)
		cat := testCatalog(true, true)
		cy, err := New(p, cat, WithIDs(fixedID))
		So(err, ShouldBeNil)

		Convey("When destiny is unset", func() {
			res, err := cy.Decide(ctx, Request{Answers: ocean(), Rand: &scripted{}})
			So(err, ShouldBeNil)

			Convey("Then no override happens and the outcome is the raw prediction", func() {
				raw, err := p.Current().Predictor.Predict(p.Encoder().Encode(ocean()))
				So(err, ShouldBeNil)
				So(res.RarityOverride, ShouldBeFalse)
				So(res.Outcome, ShouldEqual, raw)
				So(res.BaseOutcome, ShouldEqual, raw)
				So(res.Outcome, ShouldEqual, "Lapras")
				So(res.SubmissionID, ShouldEqual, "sub-1")
				So(res.ModelVersion, ShouldEqual, p.Current().Version)
			})

			Convey("Then confidence is a probability", func() {
				So(res.Confidence, ShouldNotBeNil)
				So(*res.Confidence, ShouldBeBetweenOrEqual, 0.0, 1.0)
			})
		})

		Convey("When destiny and the mystical profile meet a winning draw", func() {
			res, err := cy.Decide(ctx, Request{Answers: mystical(), Rand: &scripted{vals: []int{0, 1}}})
			So(err, ShouldBeNil)

			Convey("Then the outcome is replaced from the rare pool", func() {
				So(res.RarityOverride, ShouldBeTrue)
				So(res.RarityRule, ShouldEqual, "legendary")
				So(cat.RarePool(), ShouldContain, res.Outcome)
				So(res.Outcome, ShouldEqual, "Mewtwo")
				So(res.Entry.IsRare(), ShouldBeTrue)
				So(res.Confidence, ShouldBeNil)
				So(res.Banners(), ShouldResemble, []string{BannerRarity})
			})
		})

		Convey("When destiny and the mystical profile meet a losing draw", func() {
			res, err := cy.Decide(ctx, Request{Answers: mystical(), Rand: &scripted{vals: []int{5}}})
			So(err, ShouldBeNil)
			So(res.RarityOverride, ShouldBeFalse)
			So(res.Outcome, ShouldEqual, res.BaseOutcome)
		})

		Convey("When the mystical profile lacks destiny", func() {
			a := mystical()
			a.Destiny = false
			res, err := cy.Decide(ctx, Request{Answers: a, Rand: &scripted{vals: []int{0, 0}}})
			So(err, ShouldBeNil)
			So(res.RarityOverride, ShouldBeFalse)
		})

		Convey("When the variant draw hits", func() {
			res, err := cy.Decide(ctx, Request{Answers: ocean(), Rand: &scripted{vals: []int{0}}})
			So(err, ShouldBeNil)

			Convey("Then only the image changes", func() {
				So(res.RareVariant, ShouldBeTrue)
				So(res.Outcome, ShouldEqual, res.BaseOutcome)
				So(res.Image(), ShouldEqual, "lapras-rare.png")
				So(res.Banners(), ShouldResemble, []string{BannerVariant})
			})
		})

		Convey("When answers carry unseen values", func() {
			a := ocean()
			a.Personality = "Sleepy"
			_, err := cy.Decide(ctx, Request{Answers: a})
			So(err, ShouldBeNil)
		})
	})

	Convey("Given a catalog with no legendary or mythical entries", t, func() {
		cy, err := New(readyProvider(20), testCatalog(false, true))
		So(err, ShouldBeNil)

		Convey("Then a winning draw leaves the prediction alone", func() {
			res, err := cy.Decide(ctx, Request{Answers: mystical(), Rand: &scripted{vals: []int{0}}})
			So(err, ShouldBeNil)
			So(res.RarityOverride, ShouldBeFalse)
			So(res.Outcome, ShouldEqual, res.BaseOutcome)
		})
	})

	Convey("Given a model that predicts an outcome missing from the catalog", t, func() {
		cy, err := New(readyProvider(20), testCatalog(true, false))
		So(err, ShouldBeNil)

		Convey("Then decide reports an integrity fault", func() {
			_, err := cy.Decide(ctx, Request{Answers: volcano()})
			So(errors.Is(err, ErrIntegrity), ShouldBeTrue)
		})
	})
}

func TestDecideDeterminism(t *testing.T) {
	ctx := context.Background()

	Convey("Given two cycles seeded identically", t, func() {
		p := readyProvider(20)
		cat := testCatalog(true, true)
		a, err := New(p, cat, WithRand(NewRand(42)), WithIDs(fixedID))
		So(err, ShouldBeNil)
		b, err := New(p, cat, WithRand(NewRand(42)), WithIDs(fixedID))
		So(err, ShouldBeNil)

		Convey("Then identical answers yield identical results", func() {
			for i := 0; i < 50; i++ {
				ra, errA := a.Decide(ctx, Request{Answers: mystical()})
				rb, errB := b.Decide(ctx, Request{Answers: mystical()})
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(ra, ShouldResemble, rb)
			}
		})
	})

	Convey("Given many decisions with always-winning rules", t, func() {
		cat := testCatalog(true, true)
		cy, err := New(readyProvider(20), cat,
			WithRules(RarityRule{Name: "always", Range: 1, Hit: 1}),
			WithVariant(VariantRule{Range: 2, Hit: 1}),
			WithRand(NewRand(7)),
		)
		So(err, ShouldBeNil)

		Convey("Then every outcome resolves in the catalog and stays in the rare pool", func() {
			for i := 0; i < 100; i++ {
				res, err := cy.Decide(ctx, Request{Answers: mystical()})
				So(err, ShouldBeNil)
				So(cat.Has(res.Outcome), ShouldBeTrue)
				So(res.RarityOverride, ShouldBeTrue)
				So(cat.RarePool(), ShouldContain, res.Outcome)
			}
		})
	})
}

func TestRules(t *testing.T) {
	Convey("Given rule validation", t, func() {
		p := readyProvider(20)
		cat := testCatalog(true, true)

		Convey("When the hit falls outside the range", func() {
			_, err := New(p, cat, WithRules(RarityRule{Name: "x", Range: 10, Hit: 11}))
			So(errors.Is(err, ErrInvalidRule), ShouldBeTrue)
		})

		Convey("When a required answer is not a valid choice", func() {
			_, err := New(p, cat, WithRules(RarityRule{
				Name: "x", Range: 10, Hit: 1,
				Require: map[quiz.Field]string{quiz.Personality: "Grumpy"},
			}))
			So(errors.Is(err, ErrInvalidRule), ShouldBeTrue)
		})

		Convey("When the variant range is zero", func() {
			_, err := New(p, cat, WithVariant(VariantRule{}))
			So(errors.Is(err, ErrInvalidRule), ShouldBeTrue)
		})

		Convey("When the first matching rule loses its draw", func() {
			cy, err := New(p, cat, WithRules(
				RarityRule{Name: "first", Range: 10, Hit: 1},
				RarityRule{Name: "second", Range: 1, Hit: 1},
			))
			So(err, ShouldBeNil)
			res, err := cy.Decide(context.Background(), Request{Answers: mystical(), Rand: &scripted{vals: []int{4}}})
			So(err, ShouldBeNil)
			So(res.RarityOverride, ShouldBeFalse)
		})

		Convey("Then the defaults are the legendary encounter rule", func() {
			r := DefaultRules()[0]
			So(r.Matches(mystical()), ShouldBeTrue)
			So(r.Matches(ocean()), ShouldBeFalse)
			So(DefaultVariant(), ShouldResemble, VariantRule{Range: 100, Hit: 1})
		})
	})
}
