package projection

// Aggregates are the running point sums behind every composite grade. Only
// included items (graded, or checked and estimated) contribute.
type Aggregates struct {
	Score              Points
	OptionalScore      Points
	Average            Points
	Estimation         Points
	OptionalEstimation Points
	Remaining          Points
	RemainingMandatory Points

	MaxScore    Points
	MaxEstimate Points
	MaxAverage  Points
}

// Accumulation is the result of the global pass.
type Accumulation struct {
	Aggregates Aggregates
	// IndexToEstimate holds the estimate of every unassessed, estimated item.
	IndexToEstimate map[int]float64
}

// Accumulate runs the global pass over all items.
func Accumulate(items []Item, totals Totals) Accumulation {
	agg := Aggregates{
		Remaining:          totals.Points,
		RemainingMandatory: totals.MandatoryPoints,
	}
	estimates := make(map[int]float64)

	for i, it := range items {
		maxScore := PointsFrom(it.MaxScore)

		if it.HasAverage() {
			agg.Average += PointsFrom(*it.ClassAverage)
			if !it.Optional {
				agg.MaxAverage += maxScore
			}
		}

		if it.Assessed() {
			score := PointsFrom(*it.Score)
			agg.Score += score
			agg.Estimation += score
			if it.Optional {
				agg.OptionalScore += score
				agg.OptionalEstimation += score
			} else {
				agg.MaxScore += maxScore
				agg.MaxEstimate += maxScore
				agg.RemainingMandatory -= maxScore
			}
			agg.Remaining -= maxScore
			continue
		}

		if !it.Estimated() {
			continue
		}
		estimates[i] = *it.Estimation
		if it.Checked {
			contribution := it.estimatedPoints(*it.Estimation)
			agg.Estimation += contribution
			if it.Optional {
				agg.OptionalEstimation += contribution
			} else {
				agg.MaxEstimate += maxScore
			}
		}
	}

	return Accumulation{Aggregates: agg, IndexToEstimate: estimates}
}

// Composite holds the grades derived from the aggregates.
type Composite struct {
	Average        Grade `json:"average" yaml:"average"`
	Current        Grade `json:"current" yaml:"current"`
	SelfEstimation Grade `json:"selfEstimation" yaml:"selfEstimation"`
	BestPossible   Grade `json:"bestPossible" yaml:"bestPossible"`
}

// AverageGrade classifies the class average over mandatory items.
func (s Scheme) AverageGrade(agg Aggregates) Grade {
	return s.gradeFromPoints(agg.Average, agg.MaxAverage)
}

// CurrentGrade is the effective grade of everything graded so far.
func (s Scheme) CurrentGrade(agg Aggregates) Grade {
	return s.EffectiveGrade(agg.Score, agg.OptionalScore, agg.MaxScore)
}

// EstimatedGrade is the effective grade of graded plus included estimated items.
func (s Scheme) EstimatedGrade(agg Aggregates) Grade {
	return s.EffectiveGrade(agg.Estimation, agg.OptionalEstimation, agg.MaxEstimate)
}

// BestPossibleGrade assumes every remaining point is earned in full. Optional
// credit is counted against the mandatory total only.
func (s Scheme) BestPossibleGrade(agg Aggregates, totals Totals) Grade {
	if totals.MandatoryPoints <= 0 {
		return GradeUnknown
	}
	mandatory := s.gradeFromPoints(agg.Score-agg.OptionalScore+agg.RemainingMandatory, totals.MandatoryPoints)
	if mandatory < GradeFail {
		return s.gradeFromPoints(agg.Score+agg.Remaining, totals.MandatoryPoints)
	}
	return mandatory
}

// Composite derives all composite grades at once.
func (s Scheme) Composite(agg Aggregates, totals Totals) Composite {
	return Composite{
		Average:        s.AverageGrade(agg),
		Current:        s.CurrentGrade(agg),
		SelfEstimation: s.EstimatedGrade(agg),
		BestPossible:   s.BestPossibleGrade(agg, totals),
	}
}
