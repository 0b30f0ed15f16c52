package plans

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileSource loads the catalog from a YAML file so deployments can override
// limits and prices without a rebuild.
//
// Expected layout:
//
//	plans:
//	  - id: free
//	    name: Free
//	    limits: {articles: 5, images: 2, code: 5}
//	    prices:
//	      monthly: {amount: 0, currency: USD}
//	      yearly: {amount: 0, currency: USD}
type fileSource struct {
	path string
}

// NewFileSource returns a Source reading the catalog from the YAML file at
// path. The file is read on every Load; NewCatalog validates the result.
func NewFileSource(path string) Source {
	return &fileSource{path: path}
}

func (s *fileSource) Load(ctx context.Context) (map[PlanID]Plan, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog %s: %w", s.path, err)
	}

	var doc struct {
		Plans []Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse plan catalog %s: %w", s.path, err)
	}

	loaded := make(map[PlanID]Plan, len(doc.Plans))
	for _, plan := range doc.Plans {
		loaded[plan.ID] = plan
	}
	return loaded, nil
}
