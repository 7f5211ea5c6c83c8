package projection

import (
	"fmt"
	"math"

	"github.com/noah-isme/grademonitor-api/internal/models"
	appErrors "github.com/noah-isme/grademonitor-api/pkg/errors"
)

// PointScale is the number of Points units per grade point.
const PointScale = 1_000_000

// Points is a fixed-point point sum. Integer arithmetic keeps incremental
// add/remove sequences exactly reversible.
type Points int64

// PointsFrom converts a float amount of points.
func PointsFrom(v float64) Points {
	return Points(math.Round(v * PointScale))
}

// Float returns the amount in points.
func (p Points) Float() float64 {
	return float64(p) / PointScale
}

// Item is a single gradable component of a course.
type Item struct {
	ID           int64
	Name         string
	MaxScore     float64
	Score        *float64
	ClassAverage *float64
	Estimation   *float64
	Optional     bool
	Checked      bool
}

// Assessed reports whether the item has been graded.
func (it Item) Assessed() bool {
	return it.Score != nil && *it.Score >= 0
}

// Estimated reports whether the student estimated the item.
func (it Item) Estimated() bool {
	return it.Estimation != nil && *it.Estimation >= 0
}

// countable reports whether the item can sit in the estimate aggregates as
// checked: graded items are counted as scores instead.
func (it Item) countable() bool {
	return !it.Assessed() && it.Estimated()
}

// HasAverage reports whether a class average is known.
func (it Item) HasAverage() bool {
	return it.ClassAverage != nil && *it.ClassAverage >= 0
}

// estimatedPoints is the point contribution of percent for this item.
func (it Item) estimatedPoints(percent float64) Points {
	return PointsFrom(it.MaxScore / 100 * percent)
}

// Totals are the constant point sums of a session.
type Totals struct {
	Points          Points
	MandatoryPoints Points
}

// ComputeTotals sums max scores over all and over mandatory items.
func ComputeTotals(items []Item) Totals {
	var t Totals
	for _, it := range items {
		p := PointsFrom(it.MaxScore)
		t.Points += p
		if !it.Optional {
			t.MandatoryPoints += p
		}
	}
	return t
}

// ItemsFromDataset turns the parallel arrays delivered by the data source into
// items. Optional and checked index sets become per-item flags; a checked
// index on an item without an estimate is dropped.
func ItemsFromDataset(ds models.DatasetItems) ([]Item, error) {
	count := len(ds.IDs)
	if len(ds.Names) != count || len(ds.MaxScores) != count {
		return nil, appErrors.Clone(appErrors.ErrValidation, "item ids, names and max scores must have equal length")
	}
	for name, n := range map[string]int{"scores": len(ds.Scores), "class averages": len(ds.ClassAvgs), "estimations": len(ds.Estimations)} {
		if n != 0 && n != count {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be empty or match the item count", name))
		}
	}

	items := make([]Item, count)
	for i := 0; i < count; i++ {
		if ds.MaxScores[i] <= 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("item %d has a non-positive max score", ds.IDs[i]))
		}
		items[i] = Item{ID: ds.IDs[i], Name: ds.Names[i], MaxScore: ds.MaxScores[i]}
		if len(ds.Scores) > 0 {
			items[i].Score = ds.Scores[i]
		}
		if len(ds.ClassAvgs) > 0 {
			items[i].ClassAverage = ds.ClassAvgs[i]
		}
		if len(ds.Estimations) > 0 {
			items[i].Estimation = ds.Estimations[i]
		}
	}
	for _, idx := range ds.OptionalIndexes {
		if idx < 0 || idx >= count {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("optional index %d out of range", idx))
		}
		items[idx].Optional = true
	}
	for _, idx := range ds.CheckedIndexes {
		if idx < 0 || idx >= count {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("checked index %d out of range", idx))
		}
		items[idx].Checked = items[idx].Estimated()
	}
	return items, nil
}
