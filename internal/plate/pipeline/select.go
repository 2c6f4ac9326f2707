package pipeline

import "sort"

// eligible reports whether c may be selected under th.
func eligible(c Candidate, th Thresholds) bool {
	return c.Err == nil && c.Success && len(c.Cleaned) >= th.MinTextLength && c.Confidence > th.MinConfidence
}

// Select picks the best candidate. Grammar-valid candidates outrank invalid
// ones regardless of confidence; within each group higher confidence wins and
// exact ties keep the input order. A *RecognitionFailure is returned when
// nothing passes the thresholds.
func Select(cands []Candidate, th Thresholds) (Candidate, error) {
	kept := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if eligible(c, th) {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		attempts := make([]Candidate, len(cands))
		copy(attempts, cands)
		return Candidate{}, &RecognitionFailure{Reason: ErrNoPlateDetected.Error(), Attempts: attempts}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Valid != kept[j].Valid {
			return kept[i].Valid
		}
		return kept[i].Confidence > kept[j].Confidence
	})
	return kept[0], nil
}
