package services

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/markjakearzadon/shoegame-gobackend/internal/models"
)

//go:embed data/products.yaml
var productsYAML []byte

const featuredCount = 6

// ErrProductNotFound is returned for unknown product ids.
var ErrProductNotFound = errors.New("product not found")

// CatalogService serves the static product list. It is read-only after
// construction and safe for concurrent use.
type CatalogService struct {
	products []models.Product
	byID     map[string]int
}

// NewCatalogService loads the embedded catalog.
func NewCatalogService() (*CatalogService, error) {
	return LoadCatalog(productsYAML)
}

// LoadCatalog parses a YAML list of products. Ids must be present and unique.
func LoadCatalog(data []byte) (*CatalogService, error) {
	var products []models.Product
	if err := yaml.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	byID := make(map[string]int, len(products))
	for i, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog entry %d has no id", i)
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog id %q", p.ID)
		}
		byID[p.ID] = i
	}
	return &CatalogService{products: products, byID: byID}, nil
}

func (c *CatalogService) All() []models.Product {
	return append([]models.Product{}, c.products...)
}

func (c *CatalogService) ByID(id string) (models.Product, error) {
	i, ok := c.byID[id]
	if !ok {
		return models.Product{}, ErrProductNotFound
	}
	return c.products[i], nil
}

// Featured returns the first six products.
func (c *CatalogService) Featured() []models.Product {
	n := featuredCount
	if len(c.products) < n {
		n = len(c.products)
	}
	return append([]models.Product{}, c.products[:n]...)
}

// Filter keeps products in category (any when empty) priced at or below
// maxPrice (no limit when maxPrice <= 0).
func (c *CatalogService) Filter(category string, maxPrice float64) []models.Product {
	out := []models.Product{}
	for _, p := range c.products {
		if category != "" && p.Category != category {
			continue
		}
		if maxPrice > 0 && p.Price > maxPrice {
			continue
		}
		out = append(out, p)
	}
	return out
}
