package usecase

import (
	"fmt"

	"go.uber.org/zap"
)

// EngineConfig gathers the knobs of the pure matching components
type EngineConfig struct {
	Normalizer NormalizerConfig
	Matcher    MatcherConfig
	// RulesPath points at a classifier rule file; empty uses the built-in rules
	RulesPath string
}

// Engine bundles the components shared by the batch driver and the HTTP
// preview service. Everything in it is constructed explicitly; there are no
// package-level singletons.
type Engine struct {
	Normalizer   *Normalizer
	Matcher      *PhotoMatcher
	Classifier   *Classifier
	Deduplicator *Deduplicator
}

// NewEngine builds the normalizer, matcher, classifier and deduplicator
func NewEngine(config EngineConfig, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	normalizer := NewNormalizer(config.Normalizer)

	rules, err := LoadClassifierRules(config.RulesPath)
	if err != nil {
		return nil, err
	}
	classifier, err := NewClassifier(rules, normalizer, logger)
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}

	return &Engine{
		Normalizer:   normalizer,
		Matcher:      NewPhotoMatcher(config.Matcher, normalizer, logger),
		Classifier:   classifier,
		Deduplicator: NewDeduplicator(normalizer),
	}, nil
}
