package usecase

import (
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/provansdecor/catalog/internal/domain"
)

// DefaultMatchThreshold is the lower of the two thresholds the legacy scripts used
const DefaultMatchThreshold = 0.90

// MatcherConfig holds configuration for the photo matcher
type MatcherConfig struct {
	// Threshold is the minimum similarity for a fuzzy assignment
	Threshold float64
	// UseLegacyPath also scores the file name of an unresolved image reference
	UseLegacyPath      bool
	EnableDebugLogging bool
}

// PhotoMatcher assigns photo files to products, one photo per product
type PhotoMatcher struct {
	threshold          float64
	useLegacyPath      bool
	enableDebugLogging bool
	normalizer         *Normalizer
	logger             *zap.Logger
}

// MatchReport is the outcome of MatchAll
type MatchReport struct {
	// Assignments is one-to-one: no photo appears twice
	Assignments map[domain.ProductID]*domain.Assignment
	// Shared lists products whose existing reference points at a file another
	// product already holds; those references are kept as they are.
	Shared         []domain.Assignment
	Unmatched      []domain.UnmatchedProduct
	UnusedPhotos   []string
	ShadowedPhotos []string
}

// Counts returns the number of exact and fuzzy assignments
func (r *MatchReport) Counts() (exact, fuzzy int) {
	for _, a := range r.Assignments {
		if a.Kind.Exact() {
			exact++
		} else {
			fuzzy++
		}
	}
	return exact, fuzzy
}

// NewPhotoMatcher creates a new photo matcher with the given configuration
func NewPhotoMatcher(config MatcherConfig, normalizer *Normalizer, logger *zap.Logger) *PhotoMatcher {
	threshold := config.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultMatchThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PhotoMatcher{
		threshold:          threshold,
		useLegacyPath:      config.UseLegacyPath,
		enableDebugLogging: config.EnableDebugLogging,
		normalizer:         normalizer,
		logger:             logger.Named("matcher"),
	}
}

// Threshold returns the effective fuzzy threshold
func (m *PhotoMatcher) Threshold() float64 {
	return m.threshold
}

// IndexPhotos turns a directory listing into photo files. Paths are sorted so
// that among files sharing a normalized name the lexicographically first one
// stays a candidate and the others are marked shadowed.
func (m *PhotoMatcher) IndexPhotos(paths []string) []*domain.PhotoFile {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	photos := make([]*domain.PhotoFile, 0, len(sorted))
	seen := make(map[string]bool, len(sorted))
	for _, p := range sorted {
		stem := m.normalizer.PhotoStem(p)
		photo := &domain.PhotoFile{
			Path:     p,
			Key:      m.normalizer.Literal(stem),
			FuzzyKey: m.normalizer.Normalize(stem),
		}
		if seen[photo.Key] {
			photo.Shadowed = true
		}
		seen[photo.Key] = true
		photos = append(photos, photo)
	}
	return photos
}

type photoIndex struct {
	byName     map[string]*domain.PhotoFile
	byFoldName map[string]*domain.PhotoFile
	byKey      map[string]*domain.PhotoFile
}

func newPhotoIndex(photos []*domain.PhotoFile) *photoIndex {
	idx := &photoIndex{
		byName:     make(map[string]*domain.PhotoFile, len(photos)),
		byFoldName: make(map[string]*domain.PhotoFile, len(photos)),
		byKey:      make(map[string]*domain.PhotoFile, len(photos)),
	}
	for _, p := range photos {
		name := path.Base(p.Path)
		idx.byName[name] = p
		if _, ok := idx.byFoldName[strings.ToLower(name)]; !ok {
			idx.byFoldName[strings.ToLower(name)] = p
		}
		if !p.Shadowed && p.Key != "" {
			idx.byKey[p.Key] = p
		}
	}
	return idx
}

// RefFileName returns the file name part of an image reference
func RefFileName(ref string) string {
	ref = strings.TrimSpace(strings.ReplaceAll(ref, `\`, "/"))
	if ref == "" {
		return ""
	}
	return path.Base(ref)
}

type pending struct {
	product *domain.Product
	order   int
	title   string
	legacy  string
}

// MatchAll assigns photos to products: exact reference, exact title, then a
// greedy fuzzy pass over candidates at or above the threshold. Products and
// photos left over are reported, not treated as errors.
func (m *PhotoMatcher) MatchAll(products []*domain.Product, photos []*domain.PhotoFile) *MatchReport {
	report := &MatchReport{Assignments: make(map[domain.ProductID]*domain.Assignment)}
	idx := newPhotoIndex(photos)

	assign := func(p *domain.Product, photo *domain.PhotoFile, kind domain.MatchKind, score float64, source domain.CandidateSource, verified bool) {
		photo.Used = true
		report.Assignments[p.ID] = &domain.Assignment{
			ProductID: p.ID,
			Photo:     photo,
			Kind:      kind,
			Score:     score,
			Source:    source,
			Verified:  verified,
		}
		if m.enableDebugLogging {
			m.logger.Debug("assigned",
				zap.String("product", string(p.ID)),
				zap.String("title", p.Title),
				zap.String("photo", photo.Path),
				zap.String("kind", string(kind)),
				zap.Float64("score", score))
		}
	}

	eligible := make([]*domain.Product, 0, len(products))
	for _, p := range products {
		if p.Quarantined || p.ExternalImage() {
			continue
		}
		eligible = append(eligible, p)
	}

	// Exact pass, references to files that exist as written
	done := make(map[domain.ProductID]bool, len(eligible))
	for _, p := range eligible {
		if p.Image == "" {
			continue
		}
		photo, ok := idx.byName[RefFileName(p.Image)]
		if !ok {
			continue
		}
		done[p.ID] = true
		if photo.Used {
			report.Shared = append(report.Shared, domain.Assignment{
				ProductID: p.ID,
				Photo:     photo,
				Kind:      domain.MatchShared,
				Score:     1,
				Source:    domain.SourceReference,
				Verified:  true,
			})
			continue
		}
		assign(p, photo, domain.MatchExactReference, 1, domain.SourceReference, true)
	}

	// Exact pass, dangling references repaired by case or normalized name
	for _, p := range eligible {
		if done[p.ID] || p.Image == "" {
			continue
		}
		name := RefFileName(p.Image)
		photo, ok := idx.byFoldName[strings.ToLower(name)]
		if !ok || photo.Used {
			photo, ok = idx.byKey[m.normalizer.Literal(m.normalizer.PhotoStem(name))]
		}
		if ok && !photo.Used {
			done[p.ID] = true
			assign(p, photo, domain.MatchExactReference, 1, domain.SourceReference, false)
		}
	}

	// Exact pass, literal title equal to a file name
	var rest []pending
	for i, p := range eligible {
		if done[p.ID] || m.normalizer.IsDamaged(p.Title) {
			continue
		}
		if photo, ok := idx.byKey[m.normalizer.Literal(p.Title)]; ok && !photo.Used {
			done[p.ID] = true
			assign(p, photo, domain.MatchExactTitle, 1, domain.SourceTitle, false)
			continue
		}
		item := pending{product: p, order: i, title: m.normalizer.Normalize(p.Title)}
		if m.useLegacyPath && p.Image != "" {
			item.legacy = m.normalizer.Normalize(m.normalizer.PhotoStem(p.Image))
		}
		rest = append(rest, item)
	}

	// Fuzzy pass
	type scored struct {
		candidate domain.MatchCandidate
		item      *pending
		photo     *domain.PhotoFile
	}
	var candidates []scored
	best := make(map[domain.ProductID]domain.MatchCandidate, len(rest))
	for i := range rest {
		item := &rest[i]
		for _, photo := range photos {
			if photo.Used || photo.Shadowed {
				continue
			}
			score := Similarity(item.title, photo.FuzzyKey)
			source := domain.SourceTitle
			if item.legacy != "" {
				if legacyScore := Similarity(item.legacy, photo.FuzzyKey); legacyScore > score {
					score = legacyScore
					source = domain.SourceLegacyPath
				}
			}
			candidate := domain.MatchCandidate{
				ProductID: item.product.ID,
				PhotoPath: photo.Path,
				Score:     score,
				Source:    source,
			}
			if prev, ok := best[item.product.ID]; !ok || score > prev.Score {
				best[item.product.ID] = candidate
			}
			if score >= m.threshold {
				candidates = append(candidates, scored{candidate: candidate, item: item, photo: photo})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.candidate.Score != b.candidate.Score {
			return a.candidate.Score > b.candidate.Score
		}
		if a.item.order != b.item.order {
			return a.item.order < b.item.order
		}
		return a.photo.Path < b.photo.Path
	})

	for _, c := range candidates {
		if done[c.item.product.ID] || c.photo.Used {
			continue
		}
		done[c.item.product.ID] = true
		assign(c.item.product, c.photo, domain.MatchFuzzy, c.candidate.Score, c.candidate.Source, false)
	}

	for _, p := range eligible {
		if done[p.ID] {
			continue
		}
		unmatched := domain.UnmatchedProduct{ProductID: p.ID, Title: p.Title}
		if b, ok := best[p.ID]; ok {
			unmatched.Best = &b
		}
		report.Unmatched = append(report.Unmatched, unmatched)
	}

	for _, photo := range photos {
		switch {
		case photo.Shadowed:
			report.ShadowedPhotos = append(report.ShadowedPhotos, photo.Path)
		case !photo.Used:
			report.UnusedPhotos = append(report.UnusedPhotos, photo.Path)
		}
	}

	return report
}
