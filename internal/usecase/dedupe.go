package usecase

import (
	"strings"

	"github.com/provansdecor/catalog/internal/domain"
)

// Deduplicator groups equivalent products. It only reports; removing
// redundant members is left to the caller.
type Deduplicator struct {
	normalizer *Normalizer
}

// NewDeduplicator creates a deduplicator sharing the run's normalizer
func NewDeduplicator(normalizer *Normalizer) *Deduplicator {
	return &Deduplicator{normalizer: normalizer}
}

// PhotoCheck reports whether a product holds a verified photo
type PhotoCheck func(p *domain.Product) bool

// FindDuplicateGroups returns title, strict and photo groups, in that order.
// Within a kind, groups follow the position of their first member.
func (d *Deduplicator) FindDuplicateGroups(products []*domain.Product, hasPhoto PhotoCheck) []domain.DuplicateGroup {
	if hasPhoto == nil {
		hasPhoto = func(p *domain.Product) bool { return false }
	}

	var groups []domain.DuplicateGroup
	groups = append(groups, d.group(domain.DuplicateByTitle, products, hasPhoto, d.titleKey)...)
	groups = append(groups, d.group(domain.DuplicateStrict, products, hasPhoto, d.strictKey)...)
	groups = append(groups, d.group(domain.DuplicateByPhoto, products, hasPhoto, d.photoKey)...)
	return groups
}

func (d *Deduplicator) group(kind domain.DuplicateKind, products []*domain.Product, hasPhoto PhotoCheck, key func(*domain.Product) string) []domain.DuplicateGroup {
	var order []string
	members := make(map[string][]*domain.Product)
	for _, p := range products {
		if p.Quarantined {
			continue
		}
		k := key(p)
		if k == "" {
			continue
		}
		if _, ok := members[k]; !ok {
			order = append(order, k)
		}
		members[k] = append(members[k], p)
	}

	var groups []domain.DuplicateGroup
	for _, k := range order {
		list := members[k]
		if len(list) < 2 {
			continue
		}
		ids := make([]domain.ProductID, len(list))
		for i, p := range list {
			ids[i] = p.ID
		}
		groups = append(groups, domain.DuplicateGroup{
			Kind:      kind,
			Key:       k,
			Members:   ids,
			Canonical: SelectCanonical(list, hasPhoto).ID,
		})
	}
	return groups
}

func (d *Deduplicator) titleKey(p *domain.Product) string {
	if d.normalizer.IsDamaged(p.Title) {
		return ""
	}
	return d.normalizer.Normalize(p.Title)
}

func (d *Deduplicator) strictKey(p *domain.Product) string {
	title := d.titleKey(p)
	if title == "" {
		return ""
	}
	return strings.Join([]string{title, p.Price.String(), d.normalizer.Literal(p.Size)}, "|")
}

func (d *Deduplicator) photoKey(p *domain.Product) string {
	if strings.TrimSpace(p.Image) == "" {
		return ""
	}
	return d.normalizer.Literal(strings.ReplaceAll(p.Image, `\`, "/"))
}

// SelectCanonical picks the member to keep: the first one with a verified
// photo and a positive price, else the first with a verified photo, else the
// first member. The choice depends only on member order, so repeated calls agree.
func SelectCanonical(members []*domain.Product, hasPhoto PhotoCheck) *domain.Product {
	if len(members) == 0 {
		return nil
	}
	var firstWithPhoto *domain.Product
	for _, p := range members {
		if !hasPhoto(p) {
			continue
		}
		if p.HasPrice() {
			return p
		}
		if firstWithPhoto == nil {
			firstWithPhoto = p
		}
	}
	if firstWithPhoto != nil {
		return firstWithPhoto
	}
	return members[0]
}

// RedundantMembers collects the non-canonical members of groups of one kind
func RedundantMembers(groups []domain.DuplicateGroup, kind domain.DuplicateKind) map[domain.ProductID]bool {
	out := make(map[domain.ProductID]bool)
	keep := make(map[domain.ProductID]bool)
	for _, g := range groups {
		if g.Kind != kind {
			continue
		}
		keep[g.Canonical] = true
		for _, id := range g.Redundant() {
			out[id] = true
		}
	}
	// a product canonical in one group is never removed through another
	for id := range keep {
		delete(out, id)
	}
	return out
}
