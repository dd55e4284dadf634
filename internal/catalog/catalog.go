// Package catalog holds the immutable product data the storefront sells.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Category string

const (
	CategoryJewelry     Category = "Jewelry"
	CategoryPerfumes    Category = "Perfumes"
	CategoryCoupleItems Category = "Couple Items"
	CategoryLipglosses  Category = "Lipglosses"

	// CategoryAll is the browsing pseudo-category that matches everything.
	CategoryAll Category = "All"
)

var knownCategories = []Category{CategoryJewelry, CategoryPerfumes, CategoryCoupleItems, CategoryLipglosses}

func (c Category) Valid() bool {
	for _, k := range knownCategories {
		if c == k {
			return true
		}
	}
	return false
}

type Product struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Category    Category `json:"category" yaml:"category"`
	Price       int64    `json:"price" yaml:"price"`
	Description string   `json:"description" yaml:"description"`
	Image       string   `json:"image" yaml:"image"`
	IsNew       bool     `json:"isNew,omitempty" yaml:"isNew"`
	IsFeatured  bool     `json:"isFeatured,omitempty" yaml:"isFeatured"`
}

type Availability string

const (
	AvailabilityInStock  Availability = "In Stock"
	AvailabilityLimited  Availability = "Limited"
	AvailabilityPreOrder Availability = "Pre-Order"
)

// StockItem is an entry of the live stock listing. Prices are ranges and
// categories are free-form, unlike Product.
type StockItem struct {
	ID           string       `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name"`
	Category     string       `json:"category" yaml:"category"`
	PriceRange   string       `json:"priceRange" yaml:"priceRange"`
	Image        string       `json:"image" yaml:"image"`
	Description  string       `json:"description" yaml:"description"`
	Availability Availability `json:"availability" yaml:"availability"`
}

type Company struct {
	Name        string   `json:"name" yaml:"name"`
	Tagline     string   `json:"tagline" yaml:"tagline"`
	Description string   `json:"description" yaml:"description"`
	Phones      []string `json:"phones" yaml:"phones"`
}

// PrimaryPhone is the number used for WhatsApp handoff and fallback messages.
func (c Company) PrimaryPhone() string {
	if len(c.Phones) == 0 {
		return ""
	}
	return c.Phones[0]
}

// SecondaryPhone is the number for stock update requests. It falls back to
// the primary number when only one is listed.
func (c Company) SecondaryPhone() string {
	if len(c.Phones) < 2 {
		return c.PrimaryPhone()
	}
	return c.Phones[1]
}

var (
	ErrUnknownCategory     = errors.New("unknown category")
	ErrDuplicateProduct    = errors.New("duplicate product id")
	ErrInvalidProduct      = errors.New("invalid product")
	ErrUnknownAvailability = errors.New("unknown availability")
)

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	company  Company
	products []Product
	stock    []StockItem
	byID     map[string]int
}

type catalogFile struct {
	Company  Company     `yaml:"company"`
	Products []Product   `yaml:"products"`
	Stock    []StockItem `yaml:"stock"`
}

//go:embed catalog.yaml
var defaultCatalog []byte

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded catalog is invalid: %v", err))
	}
	return c
}

// Load reads a YAML catalog from path. An empty path yields Default().
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(f.Company, f.Products, f.Stock)
}

func New(company Company, products []Product, stock []StockItem) (*Catalog, error) {
	byID := make(map[string]int, len(products))
	for i, p := range products {
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("%w: product at index %d needs an id and a name", ErrInvalidProduct, i)
		}
		if p.Price < 0 {
			return nil, fmt.Errorf("%w: product %s has negative price %d", ErrInvalidProduct, p.ID, p.Price)
		}
		if !p.Category.Valid() {
			return nil, fmt.Errorf("%w: %q (product %s)", ErrUnknownCategory, p.Category, p.ID)
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProduct, p.ID)
		}
		byID[p.ID] = i
	}
	for _, s := range stock {
		switch s.Availability {
		case AvailabilityInStock, AvailabilityLimited, AvailabilityPreOrder:
		default:
			return nil, fmt.Errorf("%w: %q (stock item %s)", ErrUnknownAvailability, s.Availability, s.ID)
		}
	}

	return &Catalog{
		company:  company,
		products: append([]Product(nil), products...),
		stock:    append([]StockItem(nil), stock...),
		byID:     byID,
	}, nil
}

func (c *Catalog) Company() Company {
	return c.company
}

// Products returns every product in catalog order.
func (c *Catalog) Products() []Product {
	return append([]Product(nil), c.products...)
}

func (c *Catalog) Lookup(id string) (Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Product{}, false
	}
	return c.products[i], true
}

func (c *Catalog) Stock() []StockItem {
	return append([]StockItem(nil), c.stock...)
}

func (c *Catalog) LookupStock(id string) (StockItem, bool) {
	for _, s := range c.stock {
		if s.ID == id {
			return s, true
		}
	}
	return StockItem{}, false
}

// Categories returns the browsing filters: All first, then the fixed set.
func Categories() []Category {
	return append([]Category{CategoryAll}, knownCategories...)
}
