package sink

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/okian/profiler/internal/domain/quiz"
)

// csvHeader is the column layout of CSV feedback rows.
var csvHeader = []string{ //nolint:gochecknoglobals // fixed column layout
	"submission_id", "environment", "personality", "core_strength", "battle_style",
	"social_style", "destiny", "outcome", "judgment", "recorded_at",
}

// encodeCSV renders rs as CSV lines, with the header when header is set.
func encodeCSV(rs []quiz.FeedbackRecord, header bool) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if header {
		if err := w.Write(csvHeader); err != nil {
			return nil, err
		}
	}
	for _, r := range rs {
		at := r.RecordedAt
		if at.IsZero() {
			at = time.Now()
		}
		row := []string{
			r.SubmissionID,
			r.Answers.Environment,
			r.Answers.Personality,
			r.Answers.CoreStrength,
			r.Answers.BattleStyle,
			r.Answers.SocialStyle,
			strconv.FormatBool(r.Answers.Destiny),
			r.Outcome,
			string(r.Judgment),
			at.UTC().Format(time.RFC3339Nano),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// decodeCSV parses rows written by encodeCSV. A leading header row is
// skipped.
func decodeCSV(r io.Reader) ([]quiz.FeedbackRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	var out []quiz.FeedbackRecord
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if line == 1 && row[0] == csvHeader[0] {
			continue
		}
		destiny, err := strconv.ParseBool(row[6])
		if err != nil {
			return nil, fmt.Errorf("line %d: destiny: %w", line, err)
		}
		at, err := time.Parse(time.RFC3339Nano, row[9])
		if err != nil {
			return nil, fmt.Errorf("line %d: recorded_at: %w", line, err)
		}
		out = append(out, quiz.FeedbackRecord{
			SubmissionID: row[0],
			Answers: quiz.Answers{
				Environment:  row[1],
				Personality:  row[2],
				CoreStrength: row[3],
				BattleStyle:  row[4],
				SocialStyle:  row[5],
				Destiny:      destiny,
			},
			Outcome:    row[7],
			Judgment:   quiz.Judgment(row[8]),
			RecordedAt: at,
		})
	}
}
