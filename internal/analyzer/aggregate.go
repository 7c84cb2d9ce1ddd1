package analyzer

import "reelocator/internal/models"

// Aggregate reduces the fan-out results to a single candidate: the one
// with the highest arithmetic mean of its landmark confidences. A
// candidate with no landmarks scores 0. Exact ties resolve to the
// earliest-dispatched candidate; completion order never matters because
// results arrive indexed by dispatch slot.
//
// The winner is returned with AvgConfidence set to its winning mean.
func Aggregate(results []models.LocationCandidate) (models.LocationCandidate, error) {
	if len(results) == 0 {
		return models.LocationCandidate{}, ErrNoCandidates
	}

	best := 0
	bestScore := meanLandmarkConfidence(results[0])
	for i := 1; i < len(results); i++ {
		// strictly greater keeps the earliest candidate on a tie
		if score := meanLandmarkConfidence(results[i]); score > bestScore {
			best = i
			bestScore = score
		}
	}

	winner := results[best]
	winner.AvgConfidence = bestScore
	return winner, nil
}

func meanLandmarkConfidence(c models.LocationCandidate) float64 {
	if len(c.Landmarks) == 0 {
		return 0
	}
	var sum float64
	for _, lm := range c.Landmarks {
		sum += lm.Confidence
	}
	return sum / float64(len(c.Landmarks))
}
