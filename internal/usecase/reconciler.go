package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/provansdecor/catalog/internal/domain"
)

// Category output formats
const (
	CategoryFormatSlug  = "slug"
	CategoryFormatLabel = "label"
)

// ReconcilerConfig holds configuration for the reconciliation driver
type ReconcilerConfig struct {
	// ImagePrefix is prepended to photo file names written into products
	ImagePrefix string
	// CategoryFormat selects "slug" (vases) or "label" (Вазы) for filled categories
	CategoryFormat string
	// DeleteKind selects which duplicate groups are removed in delete mode
	DeleteKind domain.DuplicateKind
	// SampleSize bounds the list of changes echoed in the summary
	SampleSize int
}

// RunOptions are the per-invocation switches. Both default to a dry run.
type RunOptions struct {
	Apply  bool
	Delete bool
}

// Summary is the structured result of one run
type Summary struct {
	RunID     string        `json:"runId"`
	Mode      string        `json:"mode"`
	Source    string        `json:"source"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`

	Products int `json:"products"`
	Photos   int `json:"photos"`

	ExactMatches        int `json:"exactMatches"`
	FuzzyMatches        int `json:"fuzzyMatches"`
	Unmatched           int `json:"unmatched"`
	SharedPhotos        int `json:"sharedPhotos"`
	DanglingCleared     int `json:"danglingCleared"`
	CategoriesFilled    int `json:"categoriesFilled"`
	CategoriesAmbiguous int `json:"categoriesAmbiguous"`
	DuplicateGroups     int `json:"duplicateGroups"`
	DuplicatesRemoved   int `json:"duplicatesRemoved"`

	BackupPath   string          `json:"backupPath,omitempty"`
	TotalChanges int             `json:"totalChanges"`
	Changes      []domain.Change `json:"changes"`

	Groups         []domain.DuplicateGroup   `json:"groups"`
	UnmatchedItems []domain.UnmatchedProduct `json:"unmatchedItems"`
	UnusedPhotos   []string                  `json:"unusedPhotos"`
	ShadowedPhotos []string                  `json:"shadowedPhotos"`
	Issues         []domain.Issue            `json:"issues"`
}

// Reconciler orchestrates matching, classification and deduplication over a
// full catalog and, in apply mode, persists the result behind a backup.
type Reconciler struct {
	source domain.CatalogSource
	photos domain.PhotoSource
	sink   domain.CatalogSink
	engine *Engine

	imagePrefix    string
	categoryFormat string
	deleteKind     domain.DuplicateKind
	sampleSize     int

	logger *zap.Logger
	now    func() time.Time
}

// NewReconciler creates a driver. sink may be nil for report-only use.
func NewReconciler(
	source domain.CatalogSource,
	photos domain.PhotoSource,
	sink domain.CatalogSink,
	engine *Engine,
	config ReconcilerConfig,
	logger *zap.Logger,
) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}

	format := config.CategoryFormat
	if format != CategoryFormatLabel {
		format = CategoryFormatSlug
	}

	deleteKind := config.DeleteKind
	if deleteKind == "" {
		deleteKind = domain.DuplicateStrict
	}

	sampleSize := config.SampleSize
	if sampleSize <= 0 {
		sampleSize = 20
	}

	return &Reconciler{
		source:         source,
		photos:         photos,
		sink:           sink,
		engine:         engine,
		imagePrefix:    config.ImagePrefix,
		categoryFormat: format,
		deleteKind:     deleteKind,
		sampleSize:     sampleSize,
		logger:         logger.Named("reconciler"),
		now:            time.Now,
	}
}

// Run executes one reconciliation. Load and backup failures are returned as
// errors and nothing is written; every per-record problem ends up in
// Summary.Issues instead.
func (r *Reconciler) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	if opts.Apply && r.sink == nil {
		return nil, fmt.Errorf("%w: apply mode needs a catalog sink", domain.ErrInvalidRequest)
	}

	start := r.now()
	summary := &Summary{
		RunID:     uuid.NewString(),
		Mode:      "dry-run",
		StartedAt: start,
	}
	if opts.Apply {
		summary.Mode = "apply"
	}

	catalog, err := r.source.Load(ctx)
	if err != nil {
		return nil, err
	}
	names, err := r.photos.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary.Source = catalog.Source
	summary.Products = len(catalog.Products)
	summary.Photos = len(names)
	summary.Issues = append(summary.Issues, catalog.Issues...)

	onDisk := make(map[string]bool, len(names))
	for _, name := range names {
		onDisk[RefFileName(name)] = true
	}
	hasPhoto := func(p *domain.Product) bool {
		if p.Image == "" {
			return false
		}
		return p.ExternalImage() || onDisk[RefFileName(p.Image)]
	}

	for _, p := range catalog.Products {
		if p.Quarantined {
			continue
		}
		if r.engine.Normalizer.IsDamaged(p.Title) {
			summary.Issues = append(summary.Issues, domain.NewIssue(p, domain.ErrDamagedTitle, ""))
		}
		if !p.HasPrice() {
			summary.Issues = append(summary.Issues, domain.NewIssue(p, domain.ErrZeroPrice, p.Price.String()))
		}
	}

	var changes []domain.Change

	// Photos
	photos := r.engine.Matcher.IndexPhotos(names)
	report := r.engine.Matcher.MatchAll(catalog.Products, photos)
	summary.ExactMatches, summary.FuzzyMatches = report.Counts()
	summary.SharedPhotos = len(report.Shared)
	summary.UnusedPhotos = report.UnusedPhotos
	summary.ShadowedPhotos = report.ShadowedPhotos

	for _, p := range catalog.Products {
		if p.Quarantined {
			continue
		}
		assignment, ok := report.Assignments[p.ID]
		switch {
		case ok && !assignment.Verified:
			changes = append(changes, r.fillImage(p, assignment.Photo)...)
		case !ok && p.Image != "" && !hasPhoto(p):
			// dangling reference with nothing to repair it
			changes = append(changes, domain.Change{
				ProductID: p.ID,
				Title:     p.Title,
				Kind:      domain.ChangeImageCleared,
				Old:       p.Image,
			})
			p.Image = ""
			summary.DanglingCleared++
		}
	}

	for _, u := range report.Unmatched {
		detail := ""
		if u.Best != nil {
			detail = fmt.Sprintf("closest %q scored %.2f (threshold %.2f)", u.Best.PhotoPath, u.Best.Score, r.engine.Matcher.Threshold())
		}
		summary.Issues = append(summary.Issues, domain.Issue{
			ProductID: u.ProductID,
			Title:     u.Title,
			Code:      domain.ErrNoCandidate.Error(),
			Detail:    detail,
			Err:       domain.ErrNoCandidate,
		})
	}
	summary.Unmatched = len(report.Unmatched)
	summary.UnmatchedItems = report.Unmatched

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Categories
	for _, p := range catalog.Products {
		if p.Quarantined || !p.Category.Empty() {
			continue
		}
		guess := r.engine.Classifier.Classify(p.Title, p.Image)
		switch {
		case guess.Ambiguous:
			summary.CategoriesAmbiguous++
			summary.Issues = append(summary.Issues, domain.NewIssue(p, domain.ErrAmbiguousCategory, fmt.Sprint(guess.Matched)))
		case !guess.Found():
			summary.Issues = append(summary.Issues, domain.NewIssue(p, domain.ErrNoCategory, ""))
		default:
			value := guess.Category
			if r.categoryFormat == CategoryFormatLabel {
				value = domain.Category(guess.Category.Label())
			}
			p.Category = value
			summary.CategoriesFilled++
			changes = append(changes, domain.Change{
				ProductID: p.ID,
				Title:     p.Title,
				Kind:      domain.ChangeCategorySet,
				New:       string(value),
			})
		}
	}

	// Duplicates
	groups := r.engine.Deduplicator.FindDuplicateGroups(catalog.Products, hasPhoto)
	summary.Groups = groups
	summary.DuplicateGroups = len(groups)

	if opts.Apply && opts.Delete {
		redundant := RedundantMembers(groups, r.deleteKind)
		kept := make([]*domain.Product, 0, len(catalog.Products))
		for _, p := range catalog.Products {
			// quarantined records may repeat a member's id; they are written back untouched
			if p.Quarantined || !redundant[p.ID] {
				kept = append(kept, p)
				continue
			}
			changes = append(changes, domain.Change{
				ProductID: p.ID,
				Title:     p.Title,
				Kind:      domain.ChangeProductRemoved,
			})
		}
		summary.DuplicatesRemoved = len(catalog.Products) - len(kept)
		catalog.Products = kept
	}

	summary.TotalChanges = len(changes)
	summary.Changes = changes[:min(len(changes), r.sampleSize)]

	if opts.Apply && len(changes) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		backupPath, err := r.sink.Backup(ctx, catalog)
		if err != nil {
			if !errors.Is(err, domain.ErrBackupFailed) {
				err = fmt.Errorf("%w: %w", domain.ErrBackupFailed, err)
			}
			return nil, err
		}
		summary.BackupPath = backupPath
		r.logger.Info("backup written", zap.String("path", backupPath))

		issues, err := r.sink.Commit(ctx, catalog, changes)
		if err != nil {
			return nil, err
		}
		summary.Issues = append(summary.Issues, issues...)
	}

	summary.Duration = r.now().Sub(start)
	r.logger.Info("reconciliation finished",
		zap.String("run_id", summary.RunID),
		zap.String("mode", summary.Mode),
		zap.Int("products", summary.Products),
		zap.Int("photos", summary.Photos),
		zap.Int("exact", summary.ExactMatches),
		zap.Int("fuzzy", summary.FuzzyMatches),
		zap.Int("unmatched", summary.Unmatched),
		zap.Int("categories_filled", summary.CategoriesFilled),
		zap.Int("duplicate_groups", summary.DuplicateGroups),
		zap.Int("duplicates_removed", summary.DuplicatesRemoved),
		zap.Int("issues", len(summary.Issues)))

	return summary, nil
}

// fillImage writes the matched photo into empty or dangling fields only
func (r *Reconciler) fillImage(p *domain.Product, photo *domain.PhotoFile) []domain.Change {
	ref := r.imagePrefix + photo.Path
	var changes []domain.Change

	if p.Image != ref {
		changes = append(changes, domain.Change{
			ProductID: p.ID,
			Title:     p.Title,
			Kind:      domain.ChangeImageSet,
			Old:       p.Image,
			New:       ref,
		})
		p.Image = ref
	}

	if p.HasImages && !containsString(p.Images, ref) {
		p.Images = append(p.Images, ref)
		changes = append(changes, domain.Change{
			ProductID: p.ID,
			Title:     p.Title,
			Kind:      domain.ChangeImagesAppended,
			New:       ref,
		})
	}

	return changes
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
