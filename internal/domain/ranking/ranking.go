// Package ranking orders submission records for display and assigns
// positional ranks.
package ranking

import (
	"fmt"
	"sort"

	"github.com/nndl/courseboard/internal/domain/submission"
)

// Key identifies a sortable column. The set is closed so an unknown key
// is a parse error instead of a silent runtime lookup failure.
type Key string

const (
	KeyTeam                Key = "team"
	KeyModel               Key = "model"
	KeySubmitted           Key = "submitted"
	KeySuperAccuracy       Key = "superAcc"
	KeySeenSuperAccuracy   Key = "seenSuperAcc"
	KeyUnseenSuperAccuracy Key = "unseenSuperAcc"
	KeySubAccuracy         Key = "subAcc"
	KeySeenSubAccuracy     Key = "seenSubAcc"
	KeyUnseenSubAccuracy   Key = "unseenSubAcc"
)

// Direction is the sort direction for the active key.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Defaults match the landing view: best overall accuracy first.
const (
	DefaultKey       = KeySuperAccuracy
	DefaultDirection = Descending
)

// ParseKey validates a query-param sort key. Empty means the default.
func ParseKey(s string) (Key, error) {
	if s == "" {
		return DefaultKey, nil
	}
	k := Key(s)
	if _, ok := accessors[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, s)
	}
	return k, nil
}

// ParseDirection validates a query-param direction. Empty means the default.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case "":
		return DefaultDirection, nil
	case Ascending:
		return Ascending, nil
	case Descending:
		return Descending, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}

// accessor knows whether a record carries a value for a key and how two
// records with present values order ascending.
type accessor struct {
	present func(r submission.Record) bool
	less    func(a, b submission.Record) bool
}

func floatAccessor(get func(m submission.Metrics) *float64) accessor {
	return accessor{
		present: func(r submission.Record) bool { return get(r.Metrics) != nil },
		less:    func(a, b submission.Record) bool { return *get(a.Metrics) < *get(b.Metrics) },
	}
}

var accessors = map[Key]accessor{
	KeyTeam: {
		present: func(r submission.Record) bool { return r.TeamName != "" },
		less:    func(a, b submission.Record) bool { return a.TeamName < b.TeamName },
	},
	KeyModel: {
		present: func(r submission.Record) bool { return r.ModelName != "" },
		less:    func(a, b submission.Record) bool { return a.ModelName < b.ModelName },
	},
	KeySubmitted: {
		present: func(r submission.Record) bool { return !r.SubmissionTime.IsZero() },
		less:    func(a, b submission.Record) bool { return a.SubmissionTime.Before(b.SubmissionTime) },
	},
	KeySuperAccuracy:       floatAccessor(func(m submission.Metrics) *float64 { return m.SuperAccuracy }),
	KeySeenSuperAccuracy:   floatAccessor(func(m submission.Metrics) *float64 { return m.SeenSuperAccuracy }),
	KeyUnseenSuperAccuracy: floatAccessor(func(m submission.Metrics) *float64 { return m.UnseenSuperAccuracy }),
	KeySubAccuracy:         floatAccessor(func(m submission.Metrics) *float64 { return m.SubAccuracy }),
	KeySeenSubAccuracy:     floatAccessor(func(m submission.Metrics) *float64 { return m.SeenSubAccuracy }),
	KeyUnseenSubAccuracy:   floatAccessor(func(m submission.Metrics) *float64 { return m.UnseenSubAccuracy }),
}

// Sort orders rows in place. Records missing a value for the active key
// sort after all records with a present value, regardless of direction.
// The sort is stable, so re-sorting an already ordered slice by the same
// key and direction leaves it unchanged.
func Sort(rows []submission.Record, key Key, dir Direction) {
	acc, ok := accessors[key]
	if !ok {
		acc = accessors[DefaultKey]
	}
	sort.SliceStable(rows, func(i, j int) bool {
		pi, pj := acc.present(rows[i]), acc.present(rows[j])
		switch {
		case pi && !pj:
			return true
		case !pi:
			return false
		}
		if dir == Descending {
			return acc.less(rows[j], rows[i])
		}
		return acc.less(rows[i], rows[j])
	})
}

// Row is the display projection of a record: the record plus its
// positional rank and the baseline flag the UI styles on.
type Row struct {
	Rank int `json:"rank"`
	submission.Record
	Baseline bool `json:"baseline"`
}

// Rows sorts a copy of records and projects them into ranked rows.
// Rank is position+1 in the sorted order; it is recomputed on every call
// and is not stable across different keys.
func Rows(records []submission.Record, key Key, dir Direction) []Row {
	sorted := make([]submission.Record, len(records))
	copy(sorted, records)
	Sort(sorted, key, dir)

	rows := make([]Row, len(sorted))
	for i, r := range sorted {
		rows[i] = Row{
			Rank:     i + 1,
			Record:   r,
			Baseline: r.IsBaseline(),
		}
	}
	return rows
}
