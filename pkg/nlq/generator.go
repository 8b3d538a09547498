package nlq

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bitebase/intelligence-engine/pkg/models"
	enginesql "github.com/bitebase/intelligence-engine/pkg/sql"
)

const (
	// optionalPenalty is subtracted from sql confidence for every optional
	// slot that had to be defaulted or dropped.
	optionalPenalty = 0.1

	// generatedFloor is the lowest sql confidence a successful generation
	// reports. Below this the statement would still be valid, just heavily
	// defaulted; the floor keeps the component score meaningful.
	generatedFloor = 0.5
)

var (
	optionalSegmentPattern = regexp.MustCompile(`(?s)\[\[(.*?)\]\]`)
	placeholderPattern     = regexp.MustCompile(`\{\{([a-z_]+)\}\}`)

	inListPatterns = map[string]*regexp.Regexp{
		"location":  regexp.MustCompile(`(?i)IN\s*\(\s*\{\{location\}\}\s*\)`),
		"menu_item": regexp.MustCompile(`(?i)IN\s*\(\s*\{\{menu_item\}\}\s*\)`),
	}
)

// GenerationResult is the outcome of template substitution. On failure SQL
// is empty, Confidence is zero, and Errors lists every reason.
type GenerationResult struct {
	SQL        string
	Confidence float64
	Tables     []string
	Errors     []string
}

// Failed reports whether generation produced no usable statement.
func (r GenerationResult) Failed() bool {
	return len(r.Errors) > 0
}

// Generator substitutes extracted entities into intent templates. Pure:
// same template, entities, and clock always yield byte-identical SQL.
type Generator struct{}

// NewGenerator creates a Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate renders the template with the given entities. Entities must be in
// text order (the extractor returns them that way). The clock supplies the
// default trailing window when the question names no time frame.
func (g *Generator) Generate(tmpl *Template, entities []models.Entity, now time.Time) GenerationResult {
	st := &substitution{
		tmpl:       tmpl,
		entities:   entities,
		now:        now,
		confidence: 1.0,
	}

	body := st.applyOptionalSegments(tmpl.SQL)
	body = st.substituteTime(body)
	body = st.substituteMetric(body)
	body = st.substituteComparison(body)
	body = st.substituteValues(body, models.EntityLocation, "location")
	body = st.substituteValues(body, models.EntityMenuItem, "menu_item")

	if leftover := placeholderPattern.FindString(body); leftover != "" && len(st.errors) == 0 {
		st.fail(fmt.Sprintf("template %s has an unbound placeholder %s", tmpl.SpecificIntent, leftover))
	}

	if len(st.errors) > 0 {
		return GenerationResult{Errors: st.errors}
	}

	final := tidySQL(body)
	validated := enginesql.ValidateAndNormalize(final)
	if validated.Error != nil {
		return GenerationResult{Errors: []string{validated.Error.Error()}}
	}

	confidence := st.confidence
	if confidence < generatedFloor {
		confidence = generatedFloor
	}

	return GenerationResult{
		SQL:        validated.NormalizedSQL,
		Confidence: confidence,
		Tables:     enginesql.ReferencedTables(validated.NormalizedSQL),
	}
}

// substitution tracks state for one Generate call.
type substitution struct {
	tmpl       *Template
	entities   []models.Entity
	now        time.Time
	confidence float64
	errors     []string
}

func (s *substitution) fail(msg string) {
	s.errors = append(s.errors, msg)
}

func (s *substitution) penalize() {
	s.confidence -= optionalPenalty
}

func (s *substitution) requires(t models.EntityType) bool {
	for _, req := range s.tmpl.RequiredEntities {
		if req == t {
			return true
		}
	}
	return false
}

// best returns the highest-confidence entity of the given type, earlier
// start winning ties. nil when none exists.
func (s *substitution) best(t models.EntityType) *models.Entity {
	var found *models.Entity
	for i := range s.entities {
		e := &s.entities[i]
		if e.Type != t {
			continue
		}
		if found == nil || e.Confidence > found.Confidence {
			found = e
		}
	}
	return found
}

// values returns the normalized values of all entities of the given type in
// text order, deduplicated.
func (s *substitution) values(t models.EntityType) []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range s.entities {
		if e.Type != t || seen[e.NormalizedValue] {
			continue
		}
		seen[e.NormalizedValue] = true
		out = append(out, e.NormalizedValue)
	}
	return out
}

// applyOptionalSegments keeps each [[ ... ]] segment whose placeholders are
// all covered by extracted entities and drops the rest, one confidence
// penalty per dropped segment.
func (s *substitution) applyOptionalSegments(body string) string {
	return optionalSegmentPattern.ReplaceAllStringFunc(body, func(segment string) string {
		inner := segment[2 : len(segment)-2]
		for _, m := range placeholderPattern.FindAllStringSubmatch(inner, -1) {
			if s.best(slotEntityType(m[1])) == nil {
				s.penalize()
				return ""
			}
		}
		return inner
	})
}

// slotEntityType maps a placeholder name to the entity type that fills it.
func slotEntityType(name string) models.EntityType {
	switch name {
	case "time_start", "time_end":
		return models.EntityTime
	default:
		return models.EntityType(name)
	}
}

func (s *substitution) substituteTime(body string) string {
	if !strings.Contains(body, "{{time_start}}") {
		return body
	}

	var rng DateRange
	if e := s.best(models.EntityTime); e != nil {
		parsed, err := parseDateRange(e.NormalizedValue)
		if err != nil {
			s.fail(fmt.Sprintf("time range %q is invalid: %v", e.Value, err))
			return body
		}
		rng = parsed
	} else {
		if s.requires(models.EntityTime) {
			s.fail(fmt.Sprintf("no time frame found in the question, but %s requires one", s.tmpl.SpecificIntent))
			return body
		}
		rng = defaultTimeRange(s.now)
		s.penalize()
	}

	body = strings.ReplaceAll(body, "{{time_start}}", enginesql.QuoteLiteral(rng.Start.Format("2006-01-02")))
	body = strings.ReplaceAll(body, "{{time_end}}", enginesql.QuoteLiteral(rng.End.Format("2006-01-02")))
	return body
}

func (s *substitution) substituteMetric(body string) string {
	if !strings.Contains(body, "{{metric}}") {
		return body
	}

	column := ""
	if e := s.best(models.EntityMetric); e != nil {
		if !identifierPattern.MatchString(e.NormalizedValue) {
			s.fail(fmt.Sprintf("metric %q does not normalize to a column name", e.Value))
			return body
		}
		if s.tmpl.AllowsMetric(e.NormalizedValue) {
			column = e.NormalizedValue
		} else if s.requires(models.EntityMetric) {
			s.fail(fmt.Sprintf("the %s intent cannot analyze %q", s.tmpl.SpecificIntent, e.Value))
			return body
		} else {
			// Metric named in the question does not fit this intent;
			// fall back to the template default.
			column = s.tmpl.DefaultMetric
			s.penalize()
		}
	} else {
		if s.requires(models.EntityMetric) {
			s.fail(fmt.Sprintf("no metric found in the question, but %s requires one", s.tmpl.SpecificIntent))
			return body
		}
		column = s.tmpl.DefaultMetric
		s.penalize()
	}

	return strings.ReplaceAll(body, "{{metric}}", column)
}

func (s *substitution) substituteComparison(body string) string {
	if !strings.Contains(body, "{{comparison}}") {
		return body
	}

	var bestDir *models.Entity
	for i := range s.entities {
		e := &s.entities[i]
		if e.Type != models.EntityComparison {
			continue
		}
		if e.NormalizedValue != "ASC" && e.NormalizedValue != "DESC" {
			continue // "versus" carries no sort direction
		}
		if bestDir == nil || e.Confidence > bestDir.Confidence {
			bestDir = e
		}
	}

	direction := ""
	if bestDir != nil {
		direction = bestDir.NormalizedValue
	}
	if direction == "" {
		if s.requires(models.EntityComparison) {
			s.fail(fmt.Sprintf("no ranking direction found in the question, but %s requires one", s.tmpl.SpecificIntent))
			return body
		}
		direction = "DESC"
		s.penalize()
	}

	return strings.ReplaceAll(body, "{{comparison}}", direction)
}

// substituteValues fills string-valued slots (locations, menu items). A
// placeholder inside an IN (...) clause receives every entity of the type in
// text order; a bare placeholder receives the single best entity. Every
// value is screened for injection patterns and quoted.
func (s *substitution) substituteValues(body string, t models.EntityType, slot string) string {
	placeholder := "{{" + slot + "}}"
	if !strings.Contains(body, placeholder) {
		return body
	}

	vals := s.values(t)
	if len(vals) == 0 {
		s.fail(fmt.Sprintf("no %s found in the question, but %s requires one", slot, s.tmpl.SpecificIntent))
		return body
	}
	for _, v := range vals {
		if hit := enginesql.CheckValueForInjection(slot, v); hit != nil {
			s.fail(fmt.Sprintf("%s value %q rejected (pattern %s)", slot, v, hit.Fingerprint))
			return body
		}
	}

	body = inListPatterns[slot].ReplaceAllString(body, "IN ("+enginesql.QuoteList(vals)+")")

	if strings.Contains(body, placeholder) {
		bestVal := s.best(t).NormalizedValue
		body = strings.ReplaceAll(body, placeholder, enginesql.QuoteLiteral(bestVal))
	}
	return body
}

// tidySQL trims per-line whitespace left behind by dropped segments and
// collapses blank lines so rendered SQL is stable for caching.
func tidySQL(body string) string {
	lines := strings.Split(body, "\n")
	var kept []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, "\n")
}
