package nlq

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bitebase/intelligence-engine/pkg/models"
)

//go:embed templates.yaml
var templatesYAML []byte

// Template binds one specific intent to keywords, entity requirements, and a
// parameterized SQL statement over the warehouse.
type Template struct {
	SpecificIntent   string              `yaml:"specific_intent"`
	Category         string              `yaml:"category"`
	Description      string              `yaml:"description"`
	Keywords         []string            `yaml:"keywords"`
	RequiredEntities []models.EntityType `yaml:"required_entities"`
	OptionalEntities []models.EntityType `yaml:"optional_entities"`
	MetricColumns    []string            `yaml:"metric_columns"`
	DefaultMetric    string              `yaml:"default_metric"`
	SQL              string              `yaml:"sql"`
	Columns          []string            `yaml:"columns"`
	Examples         []string            `yaml:"examples"`
}

// AllowsMetric reports whether column is in the template's metric allowlist.
func (t *Template) AllowsMetric(column string) bool {
	for _, c := range t.MetricColumns {
		if c == column {
			return true
		}
	}
	return false
}

// TemplateSet is the validated intent template catalog.
type TemplateSet struct {
	templates []Template
	byIntent  map[string]*Template
}

var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// LoadTemplates parses and validates the embedded template catalog. The
// catalog ships inside the binary; a validation failure here is a build
// defect and should abort startup.
func LoadTemplates() (*TemplateSet, error) {
	var doc struct {
		Templates []Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(templatesYAML, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse template catalog: %w", err)
	}
	if len(doc.Templates) == 0 {
		return nil, fmt.Errorf("template catalog is empty")
	}

	set := &TemplateSet{
		templates: doc.Templates,
		byIntent:  make(map[string]*Template, len(doc.Templates)),
	}
	for i := range set.templates {
		t := &set.templates[i]
		if err := validateTemplate(t); err != nil {
			return nil, fmt.Errorf("template %q: %w", t.SpecificIntent, err)
		}
		if _, dup := set.byIntent[t.SpecificIntent]; dup {
			return nil, fmt.Errorf("duplicate specific_intent %q", t.SpecificIntent)
		}
		set.byIntent[t.SpecificIntent] = t
	}
	return set, nil
}

func validateTemplate(t *Template) error {
	if t.SpecificIntent == "" {
		return fmt.Errorf("missing specific_intent")
	}
	if !models.IntentCategory(t.Category).Valid() {
		return fmt.Errorf("unknown category %q", t.Category)
	}
	if len(t.Keywords) == 0 {
		return fmt.Errorf("no keywords")
	}
	if strings.TrimSpace(t.SQL) == "" {
		return fmt.Errorf("empty sql")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("no output columns")
	}

	for _, et := range append(append([]models.EntityType{}, t.RequiredEntities...), t.OptionalEntities...) {
		if !et.Valid() {
			return fmt.Errorf("unknown entity type %q", et)
		}
	}

	if strings.Contains(t.SQL, "{{metric}}") {
		if len(t.MetricColumns) == 0 {
			return fmt.Errorf("metric placeholder without metric_columns")
		}
		if !t.AllowsMetric(t.DefaultMetric) {
			return fmt.Errorf("default_metric %q not in metric_columns", t.DefaultMetric)
		}
	}
	for _, c := range t.MetricColumns {
		if !identifierPattern.MatchString(c) {
			return fmt.Errorf("metric column %q is not a valid identifier", c)
		}
	}

	hasStart := strings.Contains(t.SQL, "{{time_start}}")
	hasEnd := strings.Contains(t.SQL, "{{time_end}}")
	if hasStart != hasEnd {
		return fmt.Errorf("time placeholders must appear as a start/end pair")
	}

	return nil
}

// Shape describes the template's declared output columns as a result shape
// with an unknown row count, for chart suggestion on validate-only runs.
// Column classes follow the catalog's naming convention: date-bucket columns
// are temporal, label columns are categorical, everything else is a measure.
func (t *Template) Shape() models.ResultShape {
	cols := make([]models.ColumnInfo, len(t.Columns))
	for i, name := range t.Columns {
		cols[i] = models.ColumnInfo{Name: name, Class: classifyTemplateColumn(name)}
	}
	return models.ResultShape{RowCount: -1, Columns: cols}
}

func classifyTemplateColumn(name string) models.ColumnClass {
	switch name {
	case "business_date", "week_start":
		return models.ColumnTemporal
	case "location", "menu_item", "category":
		return models.ColumnCategorical
	default:
		return models.ColumnNumeric
	}
}

// All returns every template in catalog order.
func (s *TemplateSet) All() []Template {
	return s.templates
}

// ByIntent looks up a template by its specific intent name.
func (s *TemplateSet) ByIntent(name string) (*Template, bool) {
	t, ok := s.byIntent[name]
	return t, ok
}

// Len returns the number of templates in the catalog.
func (s *TemplateSet) Len() int {
	return len(s.templates)
}
