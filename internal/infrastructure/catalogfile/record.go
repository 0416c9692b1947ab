package catalogfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/provansdecor/catalog/internal/domain"
)

// Field names understood in product objects
const (
	fieldID        = "id"
	fieldTitle     = "title"
	fieldPrice     = "price"
	fieldCategory  = "category"
	fieldImage     = "image"
	fieldImagePath = "image_path"
	fieldImages    = "images"
	fieldSize      = "size"
	fieldBarcode   = "barcode"
	fieldComment   = "comment"
	fieldDiscount  = "discount"
)

var priceCleaner = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", ",", ".", "₽", "", "руб.", "", "руб", "")

// newValidator returns a validator that understands decimal prices
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// parseRecord turns one raw product object into a validated product. Records
// that fail validation come back quarantined together with their issues.
func parseRecord(v *validator.Validate, index int, raw map[string]json.RawMessage) (*domain.Product, []domain.Issue) {
	p := &domain.Product{
		Index:      index,
		Raw:        raw,
		ImageField: fieldImage,
	}
	var issues []domain.Issue

	if data, ok := raw[fieldID]; ok {
		if err := json.Unmarshal(data, &p.ID); err != nil {
			p.ID = ""
		}
	}
	if p.ID == "" {
		p.ID = domain.PositionalID(index)
	}

	p.Title = strings.TrimSpace(rawString(raw, fieldTitle))
	p.Category = domain.Category(strings.TrimSpace(rawString(raw, fieldCategory)))
	p.Size = rawString(raw, fieldSize)
	p.Barcode = rawString(raw, fieldBarcode)
	p.Comment = rawString(raw, fieldComment)

	if _, ok := raw[fieldImage]; ok {
		p.Image = strings.TrimSpace(rawString(raw, fieldImage))
	} else if _, ok := raw[fieldImagePath]; ok {
		p.ImageField = fieldImagePath
		p.Image = strings.TrimSpace(rawString(raw, fieldImagePath))
	}

	if data, ok := raw[fieldImages]; ok && !isNull(data) {
		var images []string
		if err := json.Unmarshal(data, &images); err == nil {
			p.HasImages = true
			p.Images = images
		}
	}

	price, err := rawDecimal(raw, fieldPrice)
	if err != nil {
		p.Quarantined = true
		issues = append(issues, domain.NewIssue(p, domain.ErrInvalidPrice, rawString(raw, fieldPrice)))
	}
	p.Price = price

	if discount, err := rawDecimal(raw, fieldDiscount); err == nil {
		p.Discount = discount
	}

	if err := v.Struct(p); err != nil {
		p.Quarantined = true
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				switch fe.Field() {
				case "Title":
					issues = append(issues, domain.NewIssue(p, domain.ErrMissingTitle, ""))
				case "Price":
					issues = append(issues, domain.NewIssue(p, domain.ErrInvalidPrice, p.Price.String()))
				default:
					issues = append(issues, domain.NewIssue(p, domain.ErrInvalidInput, fe.Error()))
				}
			}
		} else {
			issues = append(issues, domain.NewIssue(p, domain.ErrInvalidInput, err.Error()))
		}
	}

	return p, issues
}

func isNull(data json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

// rawString reads a string field; numbers are kept in their literal form
func rawString(raw map[string]json.RawMessage, key string) string {
	data, ok := raw[key]
	if !ok || isNull(data) {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		return n.String()
	}
	return ""
}

// rawDecimal reads a price-like field given as a number or a formatted string
// such as "1 200,50 ₽". A missing field is zero.
func rawDecimal(raw map[string]json.RawMessage, key string) (decimal.Decimal, error) {
	data, ok := raw[key]
	if !ok || isNull(data) {
		return decimal.Zero, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = priceCleaner.Replace(strings.TrimSpace(s))
		if s == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(s)
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}

// applyProduct writes the reconciled fields back into a copy of the raw object.
// Untouched fields keep their original encoding.
func applyProduct(p *domain.Product) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(p.Raw)+2)
	for k, v := range p.Raw {
		out[k] = v
	}

	_, hadImage := p.Raw[p.ImageField]
	if p.Image != strings.TrimSpace(rawString(p.Raw, p.ImageField)) {
		if p.Image == "" {
			if hadImage {
				out[p.ImageField] = json.RawMessage("null")
			}
		} else {
			data, err := json.Marshal(p.Image)
			if err != nil {
				return nil, err
			}
			out[p.ImageField] = data
		}
	}

	if string(p.Category) != strings.TrimSpace(rawString(p.Raw, fieldCategory)) && !p.Category.Empty() {
		data, err := json.Marshal(string(p.Category))
		if err != nil {
			return nil, err
		}
		out[fieldCategory] = data
	}

	if p.HasImages {
		data, err := json.Marshal(p.Images)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(compactJSON(p.Raw[fieldImages]), data) {
			out[fieldImages] = data
		}
	}

	return out, nil
}

func compactJSON(data json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return data
	}
	return buf.Bytes()
}
