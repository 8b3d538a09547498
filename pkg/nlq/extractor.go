package nlq

import (
	"sort"
	"strconv"

	"github.com/jinzhu/inflection"

	"github.com/bitebase/intelligence-engine/pkg/models"
)

// Extractor finds typed entities in normalized question text by scanning the
// gazetteer phrase tables at word boundaries.
type Extractor struct {
	gaz      *Gazetteer
	typeRank map[models.EntityType]int
}

// NewExtractor creates an extractor over the given gazetteer.
func NewExtractor(gaz *Gazetteer) *Extractor {
	rank := make(map[models.EntityType]int, len(models.EntityTypePriority))
	for i, t := range models.EntityTypePriority {
		rank[t] = i
	}
	return &Extractor{gaz: gaz, typeRank: rank}
}

// Extract returns the entities found in the normalized query, sorted by
// start position. Spans never overlap: where candidate matches collide, the
// longest span wins, then entity type priority, then the earlier start.
// Time entities are resolved against qctx.Now so the normalized value is a
// concrete start..end date range.
func (e *Extractor) Extract(normalized string, qctx models.QueryContext) []models.Entity {
	tokens := tokenize(normalized)
	if len(tokens) == 0 {
		return nil
	}

	gaz := e.gaz.ForContext(qctx.Locations)
	runes := []rune(normalized)

	var candidates []models.Entity
	for _, entityType := range models.EntityTypePriority {
		for _, p := range gaz.Phrases(entityType) {
			candidates = append(candidates, e.matchPhrase(runes, tokens, entityType, p, qctx)...)
		}
	}
	candidates = append(candidates, e.matchRelativeSpans(runes, tokens, qctx)...)

	return e.resolveOverlaps(candidates)
}

// matchPhrase slides the phrase over the token stream and emits a candidate
// for every window that matches. Full-window matches score 1.0 exact or 0.9
// after singular/plural folding. Shorter windows matching a contiguous run of
// at least half the phrase tokens score proportionally.
func (e *Extractor) matchPhrase(runes []rune, tokens []token, entityType models.EntityType, p gazPhrase, qctx models.QueryContext) []models.Entity {
	n := len(p.tokens)
	if n == 0 {
		return nil
	}

	var out []models.Entity
	emit := func(start, end int, confidence float64) {
		value := p.value
		if entityType == models.EntityTime {
			r, err := resolveTimeKey(p.value, qctx.Now)
			if err != nil {
				return
			}
			value = r.Normalized()
		}
		out = append(out, models.Entity{
			Type:            entityType,
			Value:           string(runes[tokens[start].Start:tokens[end].End]),
			NormalizedValue: value,
			Confidence:      confidence,
			StartPos:        tokens[start].Start,
			EndPos:          tokens[end].End,
		})
	}

	for i := 0; i+n <= len(tokens); i++ {
		if conf := matchWindow(tokens[i:i+n], p.tokens); conf > 0 {
			emit(i, i+n-1, conf)
		}
	}

	// Partial matches: a contiguous sub-phrase covering at least half the
	// phrase tokens still identifies the entity, with reduced confidence.
	for k := n - 1; k >= 1 && 2*k >= n; k-- {
		conf := float64(k) / float64(n)
		for i := 0; i+k <= len(tokens); i++ {
			window := tokens[i : i+k]
			for j := 0; j+k <= n; j++ {
				if windowEquals(window, p.tokens[j:j+k]) {
					emit(i, i+k-1, conf)
					break
				}
			}
		}
	}

	return out
}

// matchWindow compares a token window against a full phrase. Returns 1.0 for
// an exact match, 0.9 when they only match after singular/plural folding,
// and 0 otherwise.
func matchWindow(window []token, phrase []string) float64 {
	exact := true
	for i, tok := range window {
		if tok.Text == phrase[i] {
			continue
		}
		exact = false
		if inflection.Singular(tok.Text) != inflection.Singular(phrase[i]) {
			return 0
		}
	}
	if exact {
		return 1.0
	}
	return 0.9
}

// windowEquals reports whether a token window matches a phrase fragment,
// allowing singular/plural folding per token.
func windowEquals(window []token, fragment []string) bool {
	for i, tok := range window {
		if tok.Text != fragment[i] &&
			inflection.Singular(tok.Text) != inflection.Singular(fragment[i]) {
			return false
		}
	}
	return true
}

// matchRelativeSpans finds "last N days|weeks|months" expressions. These are
// matched at token level rather than from the gazetteer because the count is
// open-ended.
func (e *Extractor) matchRelativeSpans(runes []rune, tokens []token, qctx models.QueryContext) []models.Entity {
	var out []models.Entity
	for i := 0; i+3 <= len(tokens); i++ {
		lead := tokens[i].Text
		if lead != "last" && lead != "past" && lead != "previous" {
			continue
		}
		n, err := strconv.Atoi(tokens[i+1].Text)
		if err != nil || n <= 0 {
			continue
		}
		unit := inflection.Singular(tokens[i+2].Text)
		if unit != "day" && unit != "week" && unit != "month" {
			continue
		}
		r, err := resolveRelativeSpan(n, unit, qctx.Now)
		if err != nil {
			continue
		}
		out = append(out, models.Entity{
			Type:            models.EntityTime,
			Value:           string(runes[tokens[i].Start:tokens[i+2].End]),
			NormalizedValue: r.Normalized(),
			Confidence:      1.0,
			StartPos:        tokens[i].Start,
			EndPos:          tokens[i+2].End,
		})
	}
	return out
}

// resolveOverlaps picks a non-overlapping subset of candidates. Longer spans
// beat shorter ones, entity type priority breaks length ties, and earlier
// spans beat later ones. The survivors come back sorted by start position.
func (e *Extractor) resolveOverlaps(candidates []models.Entity) []models.Entity {
	if len(candidates) == 0 {
		return nil
	}

	ordered := make([]models.Entity, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		li := ordered[i].EndPos - ordered[i].StartPos
		lj := ordered[j].EndPos - ordered[j].StartPos
		if li != lj {
			return li > lj
		}
		ri := e.typeRank[ordered[i].Type]
		rj := e.typeRank[ordered[j].Type]
		if ri != rj {
			return ri < rj
		}
		if ordered[i].StartPos != ordered[j].StartPos {
			return ordered[i].StartPos < ordered[j].StartPos
		}
		return ordered[i].Confidence > ordered[j].Confidence
	})

	var accepted []models.Entity
	for _, c := range ordered {
		overlaps := false
		for _, a := range accepted {
			if c.StartPos < a.EndPos && a.StartPos < c.EndPos {
				overlaps = true
				break
			}
		}
		if !overlaps {
			accepted = append(accepted, c)
		}
	}

	sort.Slice(accepted, func(i, j int) bool {
		return accepted[i].StartPos < accepted[j].StartPos
	})
	return accepted
}
