package detect

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CatalogRule carries curated text for one external risk-scan rule ID.
// Empty fields leave the scanner's own text in place.
type CatalogRule struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Impact      string `yaml:"impact"`
	Remediation string `yaml:"remediation"`
}

// catalogFile is one YAML catalog document.
type catalogFile struct {
	Scanner string        `yaml:"scanner"`
	Rules   []CatalogRule `yaml:"rules"`
}

// RuleCatalog maps external rule IDs to curated finding text.
type RuleCatalog struct {
	rules map[string]CatalogRule
}

// Lookup returns the catalog entry for a rule ID.
func (c *RuleCatalog) Lookup(id string) (CatalogRule, bool) {
	r, ok := c.rules[id]
	return r, ok
}

// Len returns the number of catalog entries.
func (c *RuleCatalog) Len() int { return len(c.rules) }

// LoadCatalog reads YAML catalog files from a directory. Later files win on
// duplicate IDs within one run, matching lexical directory order.
func LoadCatalog(dir string) (*RuleCatalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	catalog := &RuleCatalog{rules: make(map[string]CatalogRule)}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		var f catalogFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", entry.Name(), err)
		}
		for _, r := range f.Rules {
			if r.ID != "" {
				catalog.rules[r.ID] = r
			}
		}
	}
	return catalog, nil
}
