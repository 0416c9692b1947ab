package usecase

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NumberStripStage controls where trailing numbering is removed in the pipeline
type NumberStripStage string

const (
	StripAfterQuotes  NumberStripStage = "after_quotes"
	StripBeforeQuotes NumberStripStage = "before_quotes"
	StripOff          NumberStripStage = "off"
)

// ParseNumberStripStage validates a configured stage
func ParseNumberStripStage(s string) (NumberStripStage, error) {
	switch NumberStripStage(s) {
	case "":
		return StripAfterQuotes, nil
	case StripAfterQuotes, StripBeforeQuotes, StripOff:
		return NumberStripStage(s), nil
	}
	return "", fmt.Errorf("number strip stage must be one of after_quotes, before_quotes, off; got %q", s)
}

// DefaultPhotoExtensions are the file types treated as product photos
var DefaultPhotoExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif", ".bmp", ".tif", ".tiff", ".heic"}

var (
	// Unicode whitespace incl. NBSP; Go's \s only covers ASCII
	whitespaceRunPattern = regexp.MustCompile(`[\s\p{Z}\x{0085}]+`)

	// " 2", " №3", " - 4" at the very end of the string
	trailingNumberPattern = regexp.MustCompile(`[\s\p{Z}]+(?:[№#]\s*|[-–—]\s*)?\d+$`)

	// "Ваза - копия", "Ваза copy", "Ваза — копия (2)"
	copySuffixPattern = regexp.MustCompile(`(?i)[\s\p{Z}]*(?:[-–—_]\s*)?(?:копия|copy)(?:\s*\(\d+\))?$`)

	zeroWidthReplacer = strings.NewReplacer(
		"\u200b", "", "\u200c", "", "\u200d", "", "\u2060", "", "\ufeff", "", "\u00ad", "",
	)

	quoteReplacer = strings.NewReplacer(
		"“", `"`, "”", `"`, "„", `"`, "‟", `"`, "«", `"`, "»", `"`, "‹", `"`, "›", `"`,
		"″", `"`, "'", `"`, "‘", `"`, "’", `"`, "‚", `"`, "‛", `"`, "`", `"`,
	)
)

// NormalizerConfig holds the knobs that differed between the old import scripts
type NormalizerConfig struct {
	NumberStripStage NumberStripStage
	Extensions       []string
}

// Normalizer canonicalizes titles and file names for comparison
type Normalizer struct {
	stage      NumberStripStage
	extensions map[string]bool
	lang       language.Tag
}

// NewNormalizer creates a normalizer with the given configuration
func NewNormalizer(config NormalizerConfig) *Normalizer {
	stage := config.NumberStripStage
	if stage == "" {
		stage = StripAfterQuotes
	}

	exts := config.Extensions
	if len(exts) == 0 {
		exts = DefaultPhotoExtensions
	}
	extSet := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extSet[ext] = true
	}

	return &Normalizer{
		stage:      stage,
		extensions: extSet,
		lang:       language.Russian,
	}
}

// Normalize returns the comparison form of s: case folded, whitespace collapsed,
// quotes unified and trailing numbering removed. Normalize is idempotent.
func (n *Normalizer) Normalize(s string) string {
	return n.run(s, n.stage)
}

// Literal is Normalize without trailing number removal. Exact matching uses it
// so that "Ваза" and "Ваза 2" stay distinct.
func (n *Normalizer) Literal(s string) string {
	return n.run(s, StripOff)
}

func (n *Normalizer) run(s string, stage NumberStripStage) string {
	if s == "" {
		return ""
	}

	// Casers carry state, so one per call keeps Normalizer safe for concurrent use
	s = cases.Lower(n.lang).String(s)
	s = norm.NFC.String(s)
	s = zeroWidthReplacer.Replace(s)

	if stage == StripBeforeQuotes {
		s = collapseWhitespace(s)
		s = stripTrailingNumbers(s)
		return quoteReplacer.Replace(s)
	}

	s = quoteReplacer.Replace(s)
	s = collapseWhitespace(s)
	if stage == StripAfterQuotes {
		s = stripTrailingNumbers(s)
	}
	return s
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRunPattern.ReplaceAllString(s, " "))
}

// stripTrailingNumbers repeats until no standalone trailing number is left,
// which keeps "ваза 2 3" and its normalized form equal.
func stripTrailingNumbers(s string) string {
	for {
		stripped := strings.TrimSpace(trailingNumberPattern.ReplaceAllString(s, ""))
		if stripped == s {
			return s
		}
		s = stripped
	}
}

// BaseName returns the file name of ref without directory and known photo extension
func (n *Normalizer) BaseName(ref string) string {
	ref = strings.TrimSpace(strings.ReplaceAll(ref, `\`, "/"))
	if ref == "" {
		return ""
	}
	if i := strings.IndexAny(ref, "?#"); i >= 0 && strings.Contains(ref, "://") {
		ref = ref[:i]
	}
	base := path.Base(ref)
	if base == "." || base == "/" {
		return ""
	}
	if ext := path.Ext(base); n.extensions[strings.ToLower(ext)] {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// HasPhotoExtension reports whether name carries a configured photo extension
func (n *Normalizer) HasPhotoExtension(name string) bool {
	return n.extensions[strings.ToLower(path.Ext(name))]
}

// PhotoStem is BaseName with "copy"/"копия" suffixes removed
func (n *Normalizer) PhotoStem(ref string) string {
	return strings.TrimSpace(copySuffixPattern.ReplaceAllString(n.BaseName(ref), ""))
}

// IsDamaged reports whether a title has no letter or digit left after normalization
func (n *Normalizer) IsDamaged(title string) bool {
	for _, r := range n.Literal(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
