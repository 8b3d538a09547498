package nlq

import (
	"fmt"
	"math"

	"github.com/bitebase/intelligence-engine/pkg/models"
)

// Weights are the component weights for the overall confidence score.
type Weights struct {
	Intent           float64
	Entity           float64
	SQL              float64
	DataAvailability float64
	Historical       float64
}

// DefaultWeights is the shipped weighting. Config may override it but the
// components must still sum to one.
var DefaultWeights = Weights{
	Intent:           0.3,
	Entity:           0.25,
	SQL:              0.2,
	DataAvailability: 0.15,
	Historical:       0.1,
}

// Validate rejects weight sets that do not form a weighted mean.
func (w Weights) Validate() error {
	sum := w.Intent + w.Entity + w.SQL + w.DataAvailability + w.Historical
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("confidence weights must sum to 1, got %g", sum)
	}
	for _, c := range []float64{w.Intent, w.Entity, w.SQL, w.DataAvailability, w.Historical} {
		if c < 0 || c > 1 {
			return fmt.Errorf("confidence weight %g outside [0,1]", c)
		}
	}
	return nil
}

// Scorer combines the five component confidences into an overall score.
// Pure aggregation: no I/O, no state beyond the weights.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer, rejecting invalid weights.
func NewScorer(w Weights) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: w}, nil
}

// Score computes the weighted overall confidence. Components are clamped to
// [0,1] so one misbehaving signal cannot push the overall score out of range.
func (s *Scorer) Score(intent, entity, sqlConf, dataAvailability, historical float64) models.ConfidenceScore {
	score := models.ConfidenceScore{
		Intent:            clamp01(intent),
		Entity:            clamp01(entity),
		SQL:               clamp01(sqlConf),
		DataAvailability:  clamp01(dataAvailability),
		HistoricalSuccess: clamp01(historical),
	}
	score.Overall = s.weights.Intent*score.Intent +
		s.weights.Entity*score.Entity +
		s.weights.SQL*score.SQL +
		s.weights.DataAvailability*score.DataAvailability +
		s.weights.Historical*score.HistoricalSuccess
	return score
}

// EntityMeanConfidence is the arithmetic mean of entity confidences, zero
// when no entities were extracted.
func EntityMeanConfidence(entities []models.Entity) float64 {
	if len(entities) == 0 {
		return 0
	}
	var sum float64
	for _, e := range entities {
		sum += e.Confidence
	}
	return sum / float64(len(entities))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
