package reporting

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed reports.yaml
var defaultReports []byte

type ReturnFields struct {
	Name  string `yaml:"name"`
	Count string `yaml:"count"`
}

type ExtraFilter struct {
	FilterField Dimension `yaml:"filter_field"`
}

// ReportConfig describes one configuration-driven report.
type ReportConfig struct {
	Model        Dimension              `yaml:"model"`
	FilterField  Dimension              `yaml:"filter_field"`
	Return       ReturnFields           `yaml:"return"`
	ExtraFilters map[string]ExtraFilter `yaml:"extra_filters"`
}

// Reports is the configuration table keyed by report type.
type Reports map[string]ReportConfig

// LoadReports reads the table at path, or the built-in table when path is empty.
func LoadReports(path string) (Reports, error) {
	if path == "" {
		return ParseReports(defaultReports)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading reports config: %w", err)
	}
	return ParseReports(data)
}

func ParseReports(data []byte) (Reports, error) {
	var r Reports
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing reports config: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks every entry references known dimensions and that extra
// filters name a column the model rows carry.
func (r Reports) Validate() error {
	for _, name := range r.Names() {
		rc := r[name]
		if ParseKind(name) != KindConfigured {
			return fmt.Errorf("report %q: name is reserved for a built-in report", name)
		}
		if !rc.Model.Valid() {
			return fmt.Errorf("report %q: unknown model %q", name, rc.Model)
		}
		if rc.FilterField == "" {
			rc.FilterField = rc.Model
		}
		if rc.FilterField != rc.Model {
			return fmt.Errorf("report %q: filter_field %q must reference model %q", name, rc.FilterField, rc.Model)
		}
		if rc.Return.Name == "" || rc.Return.Count == "" {
			return fmt.Errorf("report %q: return.name and return.count are required", name)
		}
		for key, ef := range rc.ExtraFilters {
			if !rc.Model.hasRelation(Dimension(key)) {
				return fmt.Errorf("report %q: %s rows cannot be filtered by %q", name, rc.Model, key)
			}
			if !ef.FilterField.Valid() {
				return fmt.Errorf("report %q: extra filter %q has unknown filter_field %q", name, key, ef.FilterField)
			}
		}
		r[name] = rc
	}
	return nil
}

func (r Reports) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
