package usecase

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provansdecor/catalog/internal/domain"
)

func testProduct(id, title, image string) *domain.Product {
	return &domain.Product{
		ID:         domain.ProductID(id),
		Title:      title,
		Price:      decimal.NewFromInt(100),
		Image:      image,
		ImageField: "image",
	}
}

func newTestMatcher(config MatcherConfig) *PhotoMatcher {
	return NewPhotoMatcher(config, NewNormalizer(NormalizerConfig{}), nil)
}

func TestNewPhotoMatcher_Threshold(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		{0, DefaultMatchThreshold},
		{-1, DefaultMatchThreshold},
		{1.5, DefaultMatchThreshold},
		{0.92, 0.92},
		{1, 1},
	}
	for _, tt := range tests {
		if got := newTestMatcher(MatcherConfig{Threshold: tt.input}).Threshold(); got != tt.want {
			t.Errorf("Threshold(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPhotoMatcher_NumberedVariantsStayApart(t *testing.T) {
	m := newTestMatcher(MatcherConfig{})
	products := []*domain.Product{
		testProduct("1", "Ваза", ""),
		testProduct("2", "Ваза 2", ""),
	}
	photos := m.IndexPhotos([]string{"Ваза.jpeg", "Ваза 2.jpeg"})

	report := m.MatchAll(products, photos)

	require.Len(t, report.Assignments, 2)
	assert.Equal(t, "Ваза.jpeg", report.Assignments["1"].Photo.Path)
	assert.Equal(t, "Ваза 2.jpeg", report.Assignments["2"].Photo.Path)
	assert.Equal(t, domain.MatchExactTitle, report.Assignments["1"].Kind)
	assert.Equal(t, domain.MatchExactTitle, report.Assignments["2"].Kind)
	assert.Empty(t, report.Unmatched)
	assert.Empty(t, report.UnusedPhotos)
}

func TestPhotoMatcher_BelowThresholdIsUnmatched(t *testing.T) {
	m := newTestMatcher(MatcherConfig{Threshold: 0.90})
	// two substitutions over eighteen runes scores 0.889
	products := []*domain.Product{testProduct("1", "ваза мраморная бел", "")}
	photos := m.IndexPhotos([]string{"ваза мраморная бух.jpg"})

	report := m.MatchAll(products, photos)

	assert.Empty(t, report.Assignments)
	require.Len(t, report.Unmatched, 1)
	best := report.Unmatched[0].Best
	require.NotNil(t, best)
	assert.InDelta(t, 1-2.0/18, best.Score, 1e-9)
	assert.Equal(t, "ваза мраморная бух.jpg", best.PhotoPath)
	assert.Equal(t, []string{"ваза мраморная бух.jpg"}, report.UnusedPhotos)

	// the same pair is accepted once the threshold allows it
	m = newTestMatcher(MatcherConfig{Threshold: 0.88})
	report = m.MatchAll(products, m.IndexPhotos([]string{"ваза мраморная бух.jpg"}))
	require.Contains(t, report.Assignments, domain.ProductID("1"))
	assert.Equal(t, domain.MatchFuzzy, report.Assignments["1"].Kind)
}

func TestPhotoMatcher_OneToOne(t *testing.T) {
	m := newTestMatcher(MatcherConfig{Threshold: 0.8})
	products := []*domain.Product{
		testProduct("1", "Ваза керамическая синяя", ""),
		testProduct("2", "Ваза керамическая синия", ""),
		testProduct("3", "Ваза керамическая синея", ""),
		testProduct("4", "Рамка дубовая", ""),
	}
	photos := m.IndexPhotos([]string{
		"Ваза керамическая синяя.jpg",
		"Ваза керамическая синяя 1.jpg",
		"Рамка дубовая.png",
	})

	report := m.MatchAll(products, photos)

	used := make(map[string]domain.ProductID)
	for id, a := range report.Assignments {
		if other, ok := used[a.Photo.Path]; ok {
			t.Fatalf("photo %s assigned to %s and %s", a.Photo.Path, other, id)
		}
		used[a.Photo.Path] = id
	}
	assert.Len(t, report.Assignments, 3)
	assert.Len(t, report.Unmatched, 1)
	assert.Equal(t, domain.ProductID("1"), used["Ваза керамическая синяя.jpg"])
	assert.Equal(t, domain.ProductID("4"), used["Рамка дубовая.png"])
}

func TestPhotoMatcher_GreedyOrder(t *testing.T) {
	m := newTestMatcher(MatcherConfig{Threshold: 0.5})
	products := []*domain.Product{
		testProduct("1", "abcxyz", ""),
		testProduct("2", "abcdeX", ""),
	}
	photos := m.IndexPhotos([]string{"abcdef.jpg"})

	report := m.MatchAll(products, photos)

	// the stronger candidate wins even though its product comes later
	require.Len(t, report.Assignments, 1)
	assert.Contains(t, report.Assignments, domain.ProductID("2"))
	require.Len(t, report.Unmatched, 1)
	assert.Equal(t, domain.ProductID("1"), report.Unmatched[0].ProductID)
	assert.Equal(t, domain.MatchFuzzy, report.Assignments["2"].Kind)
}

func TestPhotoMatcher_References(t *testing.T) {
	t.Run("existing reference is verified", func(t *testing.T) {
		m := newTestMatcher(MatcherConfig{})
		products := []*domain.Product{testProduct("1", "Что-то другое", "/uploads/Ваза.jpg")}
		report := m.MatchAll(products, m.IndexPhotos([]string{"Ваза.jpg"}))

		a := report.Assignments["1"]
		require.NotNil(t, a)
		assert.True(t, a.Verified)
		assert.Equal(t, domain.MatchExactReference, a.Kind)
	})

	t.Run("dangling reference repaired by case", func(t *testing.T) {
		m := newTestMatcher(MatcherConfig{})
		products := []*domain.Product{testProduct("1", "Товар", "old/ВАЗА.JPG")}
		report := m.MatchAll(products, m.IndexPhotos([]string{"ваза.jpg"}))

		a := report.Assignments["1"]
		require.NotNil(t, a)
		assert.False(t, a.Verified)
		assert.Equal(t, "ваза.jpg", a.Photo.Path)
	})

	t.Run("shared reference is reported", func(t *testing.T) {
		m := newTestMatcher(MatcherConfig{})
		products := []*domain.Product{
			testProduct("1", "Ваза", "Ваза.jpg"),
			testProduct("2", "Ваза белая", "Ваза.jpg"),
		}
		report := m.MatchAll(products, m.IndexPhotos([]string{"Ваза.jpg"}))

		assert.Len(t, report.Assignments, 1)
		require.Len(t, report.Shared, 1)
		assert.Equal(t, domain.ProductID("2"), report.Shared[0].ProductID)
		assert.Equal(t, domain.MatchShared, report.Shared[0].Kind)
		assert.Empty(t, report.Unmatched)
	})

	t.Run("external urls are left alone", func(t *testing.T) {
		m := newTestMatcher(MatcherConfig{})
		products := []*domain.Product{testProduct("1", "Ваза", "https://cdn.example.com/Ваза.jpg")}
		report := m.MatchAll(products, m.IndexPhotos([]string{"Ваза.jpg"}))

		assert.Empty(t, report.Assignments)
		assert.Empty(t, report.Unmatched)
	})

	t.Run("quarantined products are skipped", func(t *testing.T) {
		m := newTestMatcher(MatcherConfig{})
		p := testProduct("1", "Ваза", "")
		p.Quarantined = true
		report := m.MatchAll([]*domain.Product{p}, m.IndexPhotos([]string{"Ваза.jpg"}))

		assert.Empty(t, report.Assignments)
		assert.Equal(t, []string{"Ваза.jpg"}, report.UnusedPhotos)
	})
}

func TestPhotoMatcher_LegacyPath(t *testing.T) {
	products := []*domain.Product{testProduct("1", "Товар без названия", "import/2019/Подсвечник бронза.jpg")}
	// last letter of the file name is a latin "a"
	paths := []string{"Подсвечник бронзa.jpg"}

	m := newTestMatcher(MatcherConfig{})
	report := m.MatchAll(products, m.IndexPhotos(paths))
	assert.Empty(t, report.Assignments)

	m = newTestMatcher(MatcherConfig{UseLegacyPath: true})
	report = m.MatchAll(products, m.IndexPhotos(paths))
	a := report.Assignments["1"]
	require.NotNil(t, a)
	assert.Equal(t, domain.SourceLegacyPath, a.Source)
	assert.Equal(t, domain.MatchFuzzy, a.Kind)
}

func TestPhotoMatcher_ShadowedCopies(t *testing.T) {
	m := newTestMatcher(MatcherConfig{})
	photos := m.IndexPhotos([]string{"Ваза.jpg", "Ваза - копия.jpg"})

	require.Len(t, photos, 2)
	assert.Equal(t, "Ваза - копия.jpg", photos[0].Path)
	assert.False(t, photos[0].Shadowed)
	assert.True(t, photos[1].Shadowed)

	report := m.MatchAll([]*domain.Product{testProduct("1", "Ваза", "")}, photos)
	require.Contains(t, report.Assignments, domain.ProductID("1"))
	assert.Equal(t, "Ваза - копия.jpg", report.Assignments["1"].Photo.Path)
	assert.Equal(t, []string{"Ваза.jpg"}, report.ShadowedPhotos)

	// repeated runs pick the same file
	again := m.MatchAll([]*domain.Product{testProduct("1", "Ваза", "")}, m.IndexPhotos([]string{"Ваза - копия.jpg", "Ваза.jpg"}))
	assert.Equal(t, "Ваза - копия.jpg", again.Assignments["1"].Photo.Path)
}

func TestRefFileName(t *testing.T) {
	tests := map[string]string{
		"Ваза.jpg":            "Ваза.jpg",
		"/uploads/Ваза.jpg":   "Ваза.jpg",
		`C:\photos\Ваза.jpg`:  "Ваза.jpg",
		"  photos/Ваза.jpg  ": "Ваза.jpg",
		"":                    "",
	}
	for ref, want := range tests {
		if got := RefFileName(ref); got != want {
			t.Errorf("RefFileName(%q) = %q, want %q", ref, got, want)
		}
	}
}
