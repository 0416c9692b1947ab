package usecase

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/provansdecor/catalog/internal/domain"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// ClassifierRules is the ordered keyword table. Priority is data: tiers are
// evaluated in file order and nothing is reordered at runtime.
type ClassifierRules struct {
	Tiers     []RuleTier                   `yaml:"tiers"`
	Overrides []RuleOverride               `yaml:"overrides"`
	Aliases   map[domain.Category][]string `yaml:"aliases"`
}

// RuleTier groups rules of equal precedence
type RuleTier struct {
	Name  string         `yaml:"name"`
	Rules []CategoryRule `yaml:"rules"`
}

// CategoryRule maps keyword patterns to one category
type CategoryRule struct {
	Category domain.Category `yaml:"category"`
	// Stems must match at the start of a word
	Stems []string `yaml:"stems"`
	// Words must match a whole word
	Words []string `yaml:"words"`
}

// RuleOverride removes Suppresses from the verdict whenever Category matched
type RuleOverride struct {
	Category   domain.Category   `yaml:"category"`
	Suppresses []domain.Category `yaml:"suppresses"`
}

// DefaultClassifierRules returns the built-in storefront rule set
func DefaultClassifierRules() (*ClassifierRules, error) {
	return ParseClassifierRules(defaultRulesYAML)
}

// LoadClassifierRules reads a rule file; an empty path yields the defaults
func LoadClassifierRules(path string) (*ClassifierRules, error) {
	if path == "" {
		return DefaultClassifierRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classifier rules: %w", err)
	}
	return ParseClassifierRules(data)
}

// ParseClassifierRules decodes and validates a YAML rule set
func ParseClassifierRules(data []byte) (*ClassifierRules, error) {
	var rules ClassifierRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("decode classifier rules: %w", err)
	}
	if len(rules.Tiers) == 0 {
		return nil, fmt.Errorf("classifier rules: no tiers defined")
	}
	for _, tier := range rules.Tiers {
		for _, rule := range tier.Rules {
			if !rule.Category.Valid() {
				return nil, fmt.Errorf("classifier rules: tier %q: unknown category %q", tier.Name, rule.Category)
			}
			if len(rule.Stems)+len(rule.Words) == 0 {
				return nil, fmt.Errorf("classifier rules: tier %q: category %q has no patterns", tier.Name, rule.Category)
			}
		}
	}
	for _, o := range rules.Overrides {
		if !o.Category.Valid() {
			return nil, fmt.Errorf("classifier rules: override for unknown category %q", o.Category)
		}
	}
	for c := range rules.Aliases {
		if !c.Valid() {
			return nil, fmt.Errorf("classifier rules: aliases for unknown category %q", c)
		}
	}
	return &rules, nil
}

type compiledRule struct {
	category domain.Category
	patterns []*regexp.Regexp
}

// Classifier maps product titles to a category of the closed set
type Classifier struct {
	normalizer *Normalizer
	tiers      [][]compiledRule
	suppress   map[domain.Category][]domain.Category
	aliases    map[string]domain.Category
	logger     *zap.Logger
}

// NewClassifier compiles rules into a classifier
func NewClassifier(rules *ClassifierRules, normalizer *Normalizer, logger *zap.Logger) (*Classifier, error) {
	if rules == nil {
		return nil, fmt.Errorf("classifier rules are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Classifier{
		normalizer: normalizer,
		suppress:   make(map[domain.Category][]domain.Category),
		aliases:    make(map[string]domain.Category),
		logger:     logger.Named("classifier"),
	}

	for _, tier := range rules.Tiers {
		compiled := make([]compiledRule, 0, len(tier.Rules))
		for _, rule := range tier.Rules {
			cr := compiledRule{category: rule.Category}
			for _, stem := range rule.Stems {
				re, err := compileKeyword(stem, false)
				if err != nil {
					return nil, fmt.Errorf("tier %q, %s: %w", tier.Name, rule.Category, err)
				}
				cr.patterns = append(cr.patterns, re)
			}
			for _, word := range rule.Words {
				re, err := compileKeyword(word, true)
				if err != nil {
					return nil, fmt.Errorf("tier %q, %s: %w", tier.Name, rule.Category, err)
				}
				cr.patterns = append(cr.patterns, re)
			}
			compiled = append(compiled, cr)
		}
		c.tiers = append(c.tiers, compiled)
	}

	for _, o := range rules.Overrides {
		c.suppress[o.Category] = append(c.suppress[o.Category], o.Suppresses...)
	}
	for category, labels := range rules.Aliases {
		for _, label := range labels {
			c.aliases[normalizer.Literal(label)] = category
		}
	}

	return c, nil
}

// compileKeyword anchors a pattern on a Unicode word boundary. Go's \b only
// knows ASCII, which would never fire between Cyrillic letters.
func compileKeyword(pattern string, whole bool) (*regexp.Regexp, error) {
	expr := `(?:^|[^\p{L}\p{N}])(?:` + strings.ToLower(pattern) + `)`
	if whole {
		expr += `(?:$|[^\p{L}\p{N}])`
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile keyword %q: %w", pattern, err)
	}
	return re, nil
}

// Classify returns the category for a title and optional photo reference.
// Conflicting categories inside the deciding tier yield an ambiguous guess
// with no category: leaving the field empty beats a wrong assignment.
func (c *Classifier) Classify(title, imageRef string) domain.CategoryGuess {
	text := c.normalizer.Normalize(title)
	if imageRef != "" {
		if stem := c.normalizer.Normalize(c.normalizer.PhotoStem(imageRef)); stem != "" {
			text += " " + stem
		}
	}
	if text == "" {
		return domain.CategoryGuess{}
	}

	tierHits := make([]map[domain.Category]int, len(c.tiers))
	present := make(map[domain.Category]bool)
	for i, tier := range c.tiers {
		for _, rule := range tier {
			for _, re := range rule.patterns {
				if re.MatchString(text) {
					if tierHits[i] == nil {
						tierHits[i] = make(map[domain.Category]int)
					}
					tierHits[i][rule.category]++
					present[rule.category] = true
				}
			}
		}
	}

	suppressed := make(map[domain.Category]bool)
	for category := range present {
		for _, s := range c.suppress[category] {
			suppressed[s] = true
		}
	}

	var matched []domain.Category
	seen := make(map[domain.Category]bool)
	for i, tier := range c.tiers {
		for _, rule := range tier {
			if tierHits[i][rule.category] > 0 && !suppressed[rule.category] && !seen[rule.category] {
				seen[rule.category] = true
				matched = append(matched, rule.category)
			}
		}
	}

	for i, tier := range c.tiers {
		var winners []domain.Category
		confidence := 0
		for _, rule := range tier {
			hits := tierHits[i][rule.category]
			if hits == 0 || suppressed[rule.category] || containsCategory(winners, rule.category) {
				continue
			}
			winners = append(winners, rule.category)
			confidence = hits
		}

		switch len(winners) {
		case 0:
			continue
		case 1:
			return domain.CategoryGuess{Category: winners[0], Confidence: confidence, Matched: matched}
		default:
			c.logger.Debug("ambiguous title",
				zap.String("text", text),
				zap.Int("tier", i),
				zap.Any("categories", winners))
			return domain.CategoryGuess{Ambiguous: true, Matched: winners}
		}
	}

	return domain.CategoryGuess{}
}

// ResolveLabel maps a slug, display label or legacy alias to a category
func (c *Classifier) ResolveLabel(label string) (domain.Category, bool) {
	if category, ok := domain.ParseCategory(label); ok {
		return category, true
	}
	category, ok := c.aliases[c.normalizer.Literal(label)]
	return category, ok
}

func containsCategory(list []domain.Category, c domain.Category) bool {
	for _, v := range list {
		if v == c {
			return true
		}
	}
	return false
}
