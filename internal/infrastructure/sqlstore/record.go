package sqlstore

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/provansdecor/catalog/internal/domain"
)

//go:embed schema.sql
var schema string

// Both dialects accept the same read query
const selectProducts = `SELECT id, title, CAST(price AS TEXT), category, image, images,
	size, barcode, comment, CAST(discount AS TEXT)
	FROM products ORDER BY id`

// row is one products row as scanned from either driver
type row struct {
	ID       int64
	Title    string
	Price    sql.NullString
	Category sql.NullString
	Image    sql.NullString
	Images   sql.NullString
	Size     sql.NullString
	Barcode  sql.NullString
	Comment  sql.NullString
	Discount sql.NullString
}

func (r *row) dest() []interface{} {
	return []interface{}{
		&r.ID, &r.Title, &r.Price, &r.Category, &r.Image, &r.Images,
		&r.Size, &r.Barcode, &r.Comment, &r.Discount,
	}
}

// toProduct converts a row. Rows with no title or a bad price are quarantined.
func (r *row) toProduct(index int) (*domain.Product, []domain.Issue) {
	p := &domain.Product{
		ID:         domain.ProductID(strconv.FormatInt(r.ID, 10)),
		Title:      strings.TrimSpace(r.Title),
		Category:   domain.Category(strings.TrimSpace(r.Category.String)),
		Image:      strings.TrimSpace(r.Image.String),
		Size:       r.Size.String,
		Barcode:    r.Barcode.String,
		Comment:    r.Comment.String,
		Index:      index,
		ImageField: "image",
	}
	var issues []domain.Issue

	if r.Images.Valid && r.Images.String != "" {
		var images []string
		if err := json.Unmarshal([]byte(r.Images.String), &images); err == nil {
			p.HasImages = true
			p.Images = images
		}
	}

	if p.Title == "" {
		p.Quarantined = true
		issues = append(issues, domain.NewIssue(p, domain.ErrMissingTitle, ""))
	}

	if r.Price.Valid {
		price, err := decimal.NewFromString(strings.TrimSpace(r.Price.String))
		if err != nil || price.IsNegative() {
			p.Quarantined = true
			issues = append(issues, domain.NewIssue(p, domain.ErrInvalidPrice, r.Price.String))
		} else {
			p.Price = price
		}
	}
	if r.Discount.Valid {
		if discount, err := decimal.NewFromString(strings.TrimSpace(r.Discount.String)); err == nil {
			p.Discount = discount
		}
	}

	return p, issues
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func encodeImages(images []string) (string, error) {
	if images == nil {
		images = []string{}
	}
	data, err := json.Marshal(images)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
