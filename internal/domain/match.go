package domain

// PhotoFile is one file of the photo directory
type PhotoFile struct {
	Path string `json:"path"`
	// Key is the literal normalized base name used by the exact pass
	Key string `json:"key"`
	// FuzzyKey is the fully normalized base name used for similarity scoring
	FuzzyKey string `json:"fuzzyKey"`
	Used     bool   `json:"used"`
	// Shadowed copies share a Key with a lexicographically smaller path
	Shadowed bool `json:"shadowed,omitempty"`
}

// MatchKind records how a product got its photo
type MatchKind string

const (
	MatchExactReference MatchKind = "exact_reference"
	MatchExactTitle     MatchKind = "exact_title"
	MatchFuzzy          MatchKind = "fuzzy"
	MatchShared         MatchKind = "shared"
)

// Exact reports whether the kind came from the exact pass
func (k MatchKind) Exact() bool {
	return k == MatchExactReference || k == MatchExactTitle
}

// CandidateSource tells which product field produced a score
type CandidateSource string

const (
	SourceReference  CandidateSource = "reference"
	SourceTitle      CandidateSource = "title"
	SourceLegacyPath CandidateSource = "legacy_path"
)

// MatchCandidate is a scored product/photo pair considered by the fuzzy pass
type MatchCandidate struct {
	ProductID ProductID       `json:"productId"`
	PhotoPath string          `json:"photoPath"`
	Score     float64         `json:"score"`
	Source    CandidateSource `json:"source"`
}

// Assignment is the final photo chosen for one product
type Assignment struct {
	ProductID ProductID       `json:"productId"`
	Photo     *PhotoFile      `json:"photo"`
	Kind      MatchKind       `json:"kind"`
	Score     float64         `json:"score"`
	Source    CandidateSource `json:"source"`
	// Verified is set when the product already referenced this exact file
	Verified bool `json:"verified"`
}

// UnmatchedProduct is left for manual resolution, with the closest candidate if any
type UnmatchedProduct struct {
	ProductID ProductID       `json:"productId"`
	Title     string          `json:"title"`
	Best      *MatchCandidate `json:"best,omitempty"`
}

// CategoryGuess is the classifier verdict for one product
type CategoryGuess struct {
	Category   Category   `json:"category,omitempty"`
	Confidence int        `json:"confidence"`
	Ambiguous  bool       `json:"ambiguous"`
	Matched    []Category `json:"matched,omitempty"`
}

// Found reports whether the guess names a single category
func (g CategoryGuess) Found() bool {
	return !g.Ambiguous && g.Category != ""
}

// DuplicateKind names the grouping key of a duplicate group
type DuplicateKind string

const (
	DuplicateByTitle DuplicateKind = "title"
	DuplicateStrict  DuplicateKind = "strict"
	DuplicateByPhoto DuplicateKind = "photo"
)

// ParseDuplicateKind validates a configured kind
func ParseDuplicateKind(s string) (DuplicateKind, bool) {
	switch DuplicateKind(s) {
	case DuplicateByTitle, DuplicateStrict, DuplicateByPhoto:
		return DuplicateKind(s), true
	}
	return "", false
}

// DuplicateGroup is a set of products considered equivalent
type DuplicateGroup struct {
	Kind      DuplicateKind `json:"kind"`
	Key       string        `json:"key"`
	Members   []ProductID   `json:"members"`
	Canonical ProductID     `json:"canonical"`
}

// Redundant returns the members that are not canonical
func (g DuplicateGroup) Redundant() []ProductID {
	out := make([]ProductID, 0, len(g.Members)-1)
	for _, id := range g.Members {
		if id != g.Canonical {
			out = append(out, id)
		}
	}
	return out
}

// ChangeKind names one mutation made by a reconciliation run
type ChangeKind string

const (
	ChangeImageSet       ChangeKind = "image_set"
	ChangeImageCleared   ChangeKind = "image_cleared"
	ChangeImagesAppended ChangeKind = "images_appended"
	ChangeCategorySet    ChangeKind = "category_set"
	ChangeProductRemoved ChangeKind = "product_removed"
)

// Change describes a single field update
type Change struct {
	ProductID ProductID  `json:"productId"`
	Title     string     `json:"title"`
	Kind      ChangeKind `json:"kind"`
	Old       string     `json:"old,omitempty"`
	New       string     `json:"new,omitempty"`
}

// Issue is a recoverable per-record problem
type Issue struct {
	ProductID ProductID `json:"productId,omitempty"`
	Title     string    `json:"title,omitempty"`
	Code      string    `json:"code"`
	Detail    string    `json:"detail,omitempty"`
	Err       error     `json:"-"`
}

// NewIssue builds an issue whose code is the sentinel error text
func NewIssue(p *Product, err error, detail string) Issue {
	issue := Issue{Code: err.Error(), Detail: detail, Err: err}
	if p != nil {
		issue.ProductID = p.ID
		issue.Title = p.Title
	}
	return issue
}
