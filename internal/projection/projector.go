package projection

import (
	"math"
	"time"
)

// Localizer supplies formatted numbers and message strings for the view.
type Localizer interface {
	Number(v float64) string
	Points(v float64) string
	Date(t time.Time) string
	Message(key string) string
}

// NoValue is rendered for undetermined composite grades.
const NoValue = "–"

// Row is the projected view of a single item.
type Row struct {
	Index      int     `json:"index" yaml:"index"`
	ItemID     int64   `json:"itemId" yaml:"itemId"`
	Name       string  `json:"name" yaml:"name"`
	Assessed   bool    `json:"assessed" yaml:"assessed"`
	Checked    bool    `json:"checked" yaml:"checked"`
	Optional   bool    `json:"optional" yaml:"optional"`
	Weight     int     `json:"weight" yaml:"weight"`
	Value      float64 `json:"value" yaml:"value"`
	Average    string  `json:"average,omitempty" yaml:"average,omitempty"`
	Estimation string  `json:"estimation,omitempty" yaml:"estimation,omitempty"`
	Result     string  `json:"result,omitempty" yaml:"result,omitempty"`
}

// Table is the output of the per-item pass.
type Table struct {
	Rows            []Row
	GradeCompletion string
}

func weightOf(it Item, totals Totals) float64 {
	if totals.MandatoryPoints <= 0 {
		return 0
	}
	return it.MaxScore / totals.MandatoryPoints.Float() * 100
}

// Project builds one row per item in index order. Mandatory weights go through
// a PercentRounder so that they add up to 100.
func Project(items []Item, scheme Scheme, totals Totals, l Localizer) Table {
	rows := make([]Row, len(items))
	var rounder PercentRounder
	completion := 0.0

	for i, it := range items {
		assessed := it.Assessed()
		weight := weightOf(it, totals)
		row := Row{
			Index:    i,
			ItemID:   it.ID,
			Name:     it.Name,
			Assessed: assessed,
			Checked:  assessed || it.Checked,
			Optional: it.Optional,
		}
		// Mandatory estimates stay visible as a grade even once graded.
		row.Estimation = estimationText(it, scheme, l)

		if it.Optional {
			row.Weight = int(math.Round(weight))
			if it.HasAverage() {
				row.Average = l.Points(*it.ClassAverage)
			}
			if it.Estimated() {
				row.Value = *it.Estimation
			}
			if assessed {
				row.Result = l.Points(*it.Score)
				row.Value = *it.Score * 100 / it.MaxScore
			}
		} else {
			row.Weight = rounder.Round(weight)
			if it.HasAverage() {
				row.Average = gradeText(scheme.GradeFromScore(*it.ClassAverage, it.MaxScore), l)
			}
			if assessed {
				completion += weight
				row.Value = *it.Score * 100 / it.MaxScore
				row.Result = gradeText(scheme.GradeFromPercent(row.Value), l)
			} else if it.Estimated() {
				row.Value = *it.Estimation
			}
		}
		rows[i] = row
	}

	return Table{Rows: rows, GradeCompletion: l.Number(completion)}
}

// estimationText renders an item estimate the way Project does.
func estimationText(it Item, scheme Scheme, l Localizer) string {
	if !it.Estimated() {
		return ""
	}
	if it.Optional {
		return l.Points(it.MaxScore / 100 * *it.Estimation)
	}
	return gradeText(scheme.GradeFromPercent(*it.Estimation), l)
}

func gradeText(g Grade, l Localizer) string {
	if !g.Known() {
		return NoValue
	}
	return l.Number(float64(g))
}
