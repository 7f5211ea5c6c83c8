package projection

// EffectiveGrade grades points against maxPoints, counting optional credit
// only when the mandatory share alone already passes.
func (s Scheme) EffectiveGrade(points, optionalPoints, maxPoints Points) Grade {
	if maxPoints <= 0 {
		return GradeUnknown
	}
	mandatory := s.gradeFromPoints(points-optionalPoints, maxPoints)
	if mandatory < GradeFail {
		return s.gradeFromPoints(points, maxPoints)
	}
	return mandatory
}
