package nlq

import (
	"github.com/jinzhu/inflection"

	"github.com/bitebase/intelligence-engine/pkg/models"
)

const (
	keywordWeight  = 0.6
	coverageWeight = 0.4
)

// UnknownIntentName is the specific intent reported when no template scores
// above the classification threshold.
const UnknownIntentName = "unknown"

// Classifier scores intent templates against a query and its entities.
type Classifier struct {
	set       *TemplateSet
	threshold float64
	floor     float64
}

// NewClassifier creates a classifier over the template catalog. threshold is
// the minimum combined score for a usable intent; floor is the minimum
// entity confidence that counts toward required-entity coverage.
func NewClassifier(set *TemplateSet, threshold, floor float64) *Classifier {
	return &Classifier{set: set, threshold: threshold, floor: floor}
}

// Classify scores every template and returns the winning intent. Score is
// keywordWeight * keyword overlap + coverageWeight * required-entity
// coverage; a template with zero keyword overlap scores zero outright, so
// entity coverage alone can never select an intent. If the best score is
// below the threshold the unknown intent is returned carrying that best
// score, and the caller decides whether to proceed.
func (c *Classifier) Classify(normalized string, entities []models.Entity) models.Intent {
	queryTokens := foldedTokenSet(normalized)
	present := c.presentTypes(entities)

	var (
		best          *Template
		bestScore     float64
		bestSatisfied int
	)

	templates := c.set.All()
	for i := range templates {
		t := &templates[i]

		matched := 0
		for _, kw := range t.Keywords {
			if queryTokens[inflection.Singular(kw)] {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		keywordScore := float64(matched) / float64(len(t.Keywords))

		satisfied := 0
		for _, req := range t.RequiredEntities {
			if present[req] {
				satisfied++
			}
		}
		coverage := 1.0
		if len(t.RequiredEntities) > 0 {
			coverage = float64(satisfied) / float64(len(t.RequiredEntities))
		}

		score := keywordWeight*keywordScore + coverageWeight*coverage

		better := score > bestScore
		if !better && score == bestScore && best != nil {
			if satisfied != bestSatisfied {
				better = satisfied > bestSatisfied
			} else {
				better = t.SpecificIntent < best.SpecificIntent
			}
		}
		if best == nil || better {
			best = t
			bestScore = score
			bestSatisfied = satisfied
		}
	}

	if best == nil || bestScore < c.threshold {
		return models.Intent{
			Category:       models.IntentUnknown,
			SpecificIntent: UnknownIntentName,
			Confidence:     bestScore,
		}
	}

	return models.Intent{
		Category:         models.IntentCategory(best.Category),
		SpecificIntent:   best.SpecificIntent,
		Confidence:       bestScore,
		RequiredEntities: best.RequiredEntities,
		OptionalEntities: best.OptionalEntities,
	}
}

// presentTypes collects the entity types present at or above the confidence
// floor.
func (c *Classifier) presentTypes(entities []models.Entity) map[models.EntityType]bool {
	present := make(map[models.EntityType]bool, len(entities))
	for _, e := range entities {
		if e.Confidence >= c.floor {
			present[e.Type] = true
		}
	}
	return present
}

// foldedTokenSet builds a lookup of query tokens in singular form so that
// keyword matching tolerates plural phrasing.
func foldedTokenSet(normalized string) map[string]bool {
	tokens := tokenize(normalized)
	set := make(map[string]bool, len(tokens)*2)
	for _, tok := range tokens {
		set[tok.Text] = true
		set[inflection.Singular(tok.Text)] = true
	}
	return set
}
