package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/profiler/internal/domain/quiz"
	. "github.com/smartystreets/goconvey/convey"
)

func record(id, outcome string, j quiz.Judgment) quiz.FeedbackRecord {
	return quiz.FeedbackRecord{
		SubmissionID: id,
		Answers: quiz.Answers{
			Environment:  "Oceans & Lakes",
			Personality:  "Calm & Loyal",
			CoreStrength: "Resilience",
			BattleStyle:  "Balanced & Versatile",
			SocialStyle:  "Lone Wolf",
			Destiny:      true,
		},
		Outcome:    outcome,
		Judgment:   j,
		RecordedAt: time.Date(2026, 3, 4, 5, 6, 7, 8, time.UTC),
	}
}

// fakeTarget is an in-process append blob.
type fakeTarget struct {
	mu      sync.Mutex
	data    bytes.Buffer
	exists  bool
	failErr error
}

func (f *fakeTarget) create(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return false, f.failErr
	}
	if f.exists {
		return false, nil
	}
	f.exists = true
	return true, nil
}

func (f *fakeTarget) appendBlock(_ context.Context, b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.data.Write(b)
	return nil
}

func (f *fakeTarget) download(context.Context) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), f.data.Bytes()...))), nil
}

func (f *fakeTarget) fail(err error) {
	f.mu.Lock()
	f.failErr = err
	f.mu.Unlock()
}

var dbSeq atomic.Int64

// openSQLite opens a private in-memory database; every call gets its own.
func openSQLite(t *testing.T) *SQLite {
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"), dbSeq.Add(1))
	s, err := OpenSQLite(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// exerciseSink runs the behaviour every sink must share.
func exerciseSink(s Sink) {
	ctx := context.Background()

	Convey("Then a fresh sink is empty", func() {
		n, err := s.Count(ctx)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 0)
		ts, err := s.Tally(ctx)
		So(err, ShouldBeNil)
		So(ts, ShouldBeEmpty)
	})

	Convey("When records are appended", func() {
		So(s.Append(ctx, record("a", "Lapras", quiz.JudgmentMatch)), ShouldBeNil)
		So(AppendAll(ctx, s, []quiz.FeedbackRecord{
			record("b", "Gengar", quiz.JudgmentMatch),
			record("c", "Gengar", quiz.JudgmentMatch),
			record("d", "Lapras", quiz.JudgmentWrong),
			record("e", "Mew", quiz.JudgmentClose),
		}), ShouldBeNil)

		Convey("Then they read back in append order with every field", func() {
			rs, err := s.Records(ctx)
			So(err, ShouldBeNil)
			So(len(rs), ShouldEqual, 5)
			So(rs[0], ShouldResemble, record("a", "Lapras", quiz.JudgmentMatch))
			So(rs[3].Judgment, ShouldEqual, quiz.JudgmentWrong)
		})

		Convey("Then the tally counts only matches, most confirmed first", func() {
			ts, err := s.Tally(ctx)
			So(err, ShouldBeNil)
			So(ts, ShouldResemble, []Tally{{Outcome: "Gengar", Count: 2}, {Outcome: "Lapras", Count: 1}})
		})

		Convey("Then the count includes every judgment", func() {
			n, err := s.Count(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 5)
		})
	})
}

func TestMemory(t *testing.T) {
	Convey("Given an in-memory sink", t, func() {
		s := NewMemory()
		exerciseSink(s)

		Convey("When closed", func() {
			So(s.Close(), ShouldBeNil)
			err := s.Append(context.Background(), record("x", "Mew", quiz.JudgmentMatch))
			So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
			So(errors.Is(err, ErrClosed), ShouldBeTrue)
		})
	})
}

func TestSQLite(t *testing.T) {
	Convey("Given a sqlite sink", t, func() {
		exerciseSink(openSQLite(t))
	})

	Convey("Given a sqlite sink on an anonymous memory database", t, func() {
		ctx := context.Background()
		s, err := OpenSQLite(ctx, ":memory:")
		So(err, ShouldBeNil)
		defer s.Close()

		Convey("When one pooled connection is held while appending", func() {
			held, err := s.DB().Conn(ctx)
			So(err, ShouldBeNil)
			defer held.Close()
			So(s.Append(ctx, record("a", "Lapras", quiz.JudgmentMatch)), ShouldBeNil)

			Convey("Then every connection sees the same table", func() {
				var n int
				So(held.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&n), ShouldBeNil)
				So(n, ShouldEqual, 1)
				rs, err := s.Records(ctx)
				So(err, ShouldBeNil)
				So(len(rs), ShouldEqual, 1)
			})
		})

		Convey("Then a second anonymous database is independent", func() {
			So(s.Append(ctx, record("a", "Lapras", quiz.JudgmentMatch)), ShouldBeNil)
			other, err := OpenSQLite(ctx, ":memory:")
			So(err, ShouldBeNil)
			defer other.Close()
			n, err := other.Count(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
		})
	})

	Convey("Given a sqlite sink on disk", t, func() {
		ctx := context.Background()
		path := t.TempDir() + "/nested/feedback.db"
		s, err := OpenSQLite(ctx, path)
		So(err, ShouldBeNil)
		So(s.Append(ctx, record("a", "Lapras", quiz.JudgmentMatch)), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		Convey("Then records survive a reopen", func() {
			again, err := OpenSQLite(ctx, path)
			So(err, ShouldBeNil)
			defer again.Close()
			n, err := again.Count(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
		})

		Convey("Then a closed handle reports the sink unavailable", func() {
			_, err := s.Count(ctx)
			So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
		})
	})
}

func TestBlob(t *testing.T) {
	Convey("Given an append blob sink", t, func() {
		ctx := context.Background()
		target := &fakeTarget{}
		b, err := newBlob(ctx, target)
		So(err, ShouldBeNil)

		Convey("Then a new blob starts with the header row", func() {
			So(target.data.String(), ShouldStartWith, "submission_id,environment,")
		})

		exerciseSink(b)

		Convey("When the blob already exists", func() {
			So(b.Append(ctx, record("a", "Lapras", quiz.JudgmentMatch)), ShouldBeNil)
			again, err := newBlob(ctx, target)
			So(err, ShouldBeNil)

			Convey("Then no second header is written", func() {
				So(strings.Count(target.data.String(), "submission_id"), ShouldEqual, 1)
				n, err := again.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When values need quoting", func() {
			r := record("q", `Farfetch'd, "the duck"`, quiz.JudgmentMatch)
			So(b.Append(ctx, r), ShouldBeNil)
			rs, err := b.Records(ctx)
			So(err, ShouldBeNil)
			So(rs[0].Outcome, ShouldEqual, r.Outcome)
		})

		Convey("When the storage account is unreachable", func() {
			target.fail(errors.New("dial tcp: no route to host"))
			err := b.Append(ctx, record("a", "Lapras", quiz.JudgmentMatch))
			So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
			_, err = b.Records(ctx)
			So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
		})
	})

	Convey("Given blob settings without a location", t, func() {
		_, err := OpenBlob(context.Background(), BlobSettings{Container: "c", Blob: "b"})
		So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
		_, err = OpenBlob(context.Background(), BlobSettings{})
		So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
	})
}

func TestOpen(t *testing.T) {
	Convey("Given sink settings", t, func() {
		ctx := context.Background()

		Convey("When the kind is memory", func() {
			s, err := Open(ctx, Settings{Kind: KindMemory})
			So(err, ShouldBeNil)
			So(s, ShouldHaveSameTypeAs, &Memory{})
		})

		Convey("When the kind is unknown", func() {
			_, err := Open(ctx, Settings{Kind: "spreadsheet"})
			So(errors.Is(err, ErrUnknownKind), ShouldBeTrue)
		})
	})
}
