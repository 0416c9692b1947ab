package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ProductID identifies a product within one working set. Source documents use
// either numbers or strings, so it is kept in its textual form.
type ProductID string

// UnmarshalJSON accepts both JSON numbers and strings
func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ProductID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("product id must be a number or string: %w", err)
	}
	*id = ProductID(n.String())
	return nil
}

// Int64 returns the numeric form used by key-based store updates
func (id ProductID) Int64() (int64, error) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: product id %q is not numeric", ErrInvalidInput, id)
	}
	return n, nil
}

// Synthetic reports whether the id was assigned positionally at load time
func (id ProductID) Synthetic() bool {
	return strings.HasPrefix(string(id), "#")
}

// PositionalID builds the id given to records that carry none
func PositionalID(index int) ProductID {
	return ProductID(fmt.Sprintf("#%d", index))
}

// Product represents one catalog item as loaded from an export or the store
type Product struct {
	ID       ProductID       `json:"id"`
	Title    string          `json:"title" validate:"required"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
	Category Category        `json:"category,omitempty"`
	Image    string          `json:"image,omitempty"`
	Images   []string        `json:"images,omitempty"`
	Size     string          `json:"size,omitempty"`
	Barcode  string          `json:"barcode,omitempty"`
	Comment  string          `json:"comment,omitempty"`
	Discount decimal.Decimal `json:"discount,omitempty"`

	// Index is the position in the source document
	Index int `json:"-"`
	// Quarantined records failed validation; they are written back untouched
	// and skipped by matching, classification and deduplication.
	Quarantined bool `json:"-"`
	// ImageField is the key the primary photo was read from ("image" or "image_path")
	ImageField string `json:"-"`
	// HasImages is set when the source record carried a secondary photo list
	HasImages bool `json:"-"`
	// Raw holds every field of the source object for shape-preserving writes
	Raw map[string]json.RawMessage `json:"-"`
}

// HasPrice reports whether the product carries a positive price
func (p *Product) HasPrice() bool {
	return p.Price.IsPositive()
}

// ExternalImage reports whether the primary photo points outside the photo directory
func (p *Product) ExternalImage() bool {
	return IsExternalRef(p.Image)
}

// IsExternalRef reports whether ref is an absolute http(s) URL
func IsExternalRef(ref string) bool {
	lower := strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Catalog is a loaded working set together with its unmodified snapshot
type Catalog struct {
	Products []*Product
	// Snapshot is the exact pre-run content; backups are written from it
	Snapshot []byte
	// Source describes where the catalog came from (file path or store DSN)
	Source string
	// Issues collects per-record problems found while loading
	Issues []Issue
}
