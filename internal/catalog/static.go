package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"finitefield.org/saro-web/internal/boutique"
)

//go:embed data/products.yaml
var defaultCatalog []byte

type yamlCatalog struct {
	Products []record `yaml:"products"`
}

// StaticSource serves products from a YAML document. An empty Path uses the
// embedded demo catalog.
type StaticSource struct {
	Path string
}

// NewStaticSource returns a source reading path, or the embedded catalog when path is empty.
func NewStaticSource(path string) *StaticSource {
	return &StaticSource{Path: strings.TrimSpace(path)}
}

// Products implements Source.
func (s *StaticSource) Products(ctx context.Context) ([]boutique.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := defaultCatalog
	if s != nil && s.Path != "" {
		raw, err := os.ReadFile(s.Path)
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", s.Path, err)
		}
		data = raw
	}
	return ParseYAML(data)
}

// ParseYAML decodes and validates a catalog document.
func ParseYAML(data []byte) ([]boutique.Product, error) {
	var doc yamlCatalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	return toProducts(doc.Products)
}
