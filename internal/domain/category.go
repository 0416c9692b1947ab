package domain

import "strings"

// Category is one value of the closed storefront category set
type Category string

const (
	CategoryVases        Category = "vases"
	CategoryCandlesticks Category = "candlesticks"
	CategoryFrames       Category = "frames"
	CategoryFlowers      Category = "flowers"
	CategoryJewelryBoxes Category = "jewelry-boxes"
	CategoryFigurines    Category = "figurines"
	CategoryBookends     Category = "bookends"
)

// categoryLabels are the storefront display names, also found as free-text
// categories in older exports.
var categoryLabels = map[Category]string{
	CategoryVases:        "Вазы",
	CategoryCandlesticks: "Подсвечники",
	CategoryFrames:       "Фоторамки",
	CategoryFlowers:      "Цветы",
	CategoryJewelryBoxes: "Шкатулки",
	CategoryFigurines:    "Статуэтки",
	CategoryBookends:     "Держатели для книг",
}

// AllCategories returns the closed set in storefront menu order
func AllCategories() []Category {
	return []Category{
		CategoryVases,
		CategoryCandlesticks,
		CategoryFrames,
		CategoryFlowers,
		CategoryJewelryBoxes,
		CategoryFigurines,
		CategoryBookends,
	}
}

// Valid reports whether c belongs to the closed set
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the Russian display name, or the raw value for legacy labels
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// Empty reports whether no category is set
func (c Category) Empty() bool {
	return strings.TrimSpace(string(c)) == ""
}

// ParseCategory resolves a slug or display label (case-insensitive)
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	lower := strings.ToLower(s)
	for c, label := range categoryLabels {
		if string(c) == lower || strings.ToLower(label) == lower {
			return c, true
		}
	}
	return "", false
}
