package catalogfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provansdecor/catalog/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func fixedClock(f *File) {
	f.now = func() time.Time { return time.Date(2024, 10, 18, 15, 30, 0, 0, time.UTC) }
}

func TestFile_LoadJSON(t *testing.T) {
	ctx := context.Background()

	t.Run("bare array", func(t *testing.T) {
		path := writeFile(t, "products.json", `[
  {"id": 1, "title": "Ваза Прованс", "price": 1200, "image": "vaza.jpg"},
  {"id": "A-2", "title": "Подсвечник", "price": "1 500,50 ₽", "image_path": "p.jpg", "images": ["p2.jpg"]},
  {"title": "Без id", "price": 10}
]`)
		f := New(path, Options{})

		cat, err := f.Load(ctx)
		require.NoError(t, err)
		require.Len(t, cat.Products, 3)
		assert.Empty(t, cat.Issues)

		assert.Equal(t, domain.ProductID("1"), cat.Products[0].ID)
		assert.Equal(t, "vaza.jpg", cat.Products[0].Image)
		assert.Equal(t, "1200", cat.Products[0].Price.String())

		assert.Equal(t, domain.ProductID("A-2"), cat.Products[1].ID)
		assert.Equal(t, "image_path", cat.Products[1].ImageField)
		assert.Equal(t, "p.jpg", cat.Products[1].Image)
		assert.Equal(t, "1500.5", cat.Products[1].Price.String())
		assert.True(t, cat.Products[1].HasImages)
		assert.Equal(t, []string{"p2.jpg"}, cat.Products[1].Images)

		assert.Equal(t, domain.ProductID("#2"), cat.Products[2].ID)
		assert.True(t, cat.Products[2].ID.Synthetic())
	})

	t.Run("envelope object", func(t *testing.T) {
		path := writeFile(t, "export.json", `{"version": 3, "products": [{"id": 7, "title": "Рамка", "price": 300}]}`)
		f := New(path, Options{})

		cat, err := f.Load(ctx)
		require.NoError(t, err)
		require.Len(t, cat.Products, 1)
		assert.Equal(t, "Рамка", cat.Products[0].Title)
	})

	t.Run("quarantines invalid records", func(t *testing.T) {
		path := writeFile(t, "products.json", `[
  {"id": 1, "title": "", "price": 100},
  {"id": 2, "title": "Ваза", "price": "дорого"},
  {"id": 3, "title": "Ваза", "price": -5},
  {"id": 3, "title": "Копия id", "price": 5}
]`)
		f := New(path, Options{})

		cat, err := f.Load(ctx)
		require.NoError(t, err)
		require.Len(t, cat.Products, 4)
		for _, p := range cat.Products {
			assert.True(t, p.Quarantined, "product %s", p.ID)
		}

		codes := make(map[string]int)
		for _, issue := range cat.Issues {
			codes[issue.Code]++
		}
		assert.Equal(t, 1, codes[domain.ErrMissingTitle.Error()])
		assert.Equal(t, 2, codes[domain.ErrInvalidPrice.Error()])
		assert.Equal(t, 1, codes[domain.ErrInvalidInput.Error()])
	})

	t.Run("missing file", func(t *testing.T) {
		f := New(filepath.Join(t.TempDir(), "nope.json"), Options{})
		_, err := f.Load(ctx)
		assert.ErrorIs(t, err, domain.ErrInputNotFound)
	})

	t.Run("malformed document", func(t *testing.T) {
		tests := map[string]string{
			"broken json":    `[{"id": 1,`,
			"no products":    `{"items": []}`,
			"empty":          "  ",
			"scalar records": `[1, 2, 3]`,
		}
		for name, content := range tests {
			t.Run(name, func(t *testing.T) {
				f := New(writeFile(t, "products.json", content), Options{})
				_, err := f.Load(ctx)
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
			})
		}
	})
}

func TestFile_BackupAndCommit(t *testing.T) {
	ctx := context.Background()
	original := `{"version": 3, "products": [
  {"id": 1, "title": "Ваза <Прованс>", "price": 1200, "image": "", "extra": {"keep": true}},
  {"id": 2, "title": "Рамка", "price": 300, "image": "gone.jpg", "images": []}
]}`

	t.Run("commit without backup is refused", func(t *testing.T) {
		path := writeFile(t, "products.json", original)
		f := New(path, Options{})
		cat, err := f.Load(ctx)
		require.NoError(t, err)

		_, err = f.Commit(ctx, cat, nil)
		assert.ErrorIs(t, err, domain.ErrBackupFailed)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, original, string(data))
	})

	t.Run("writes reconciled fields and keeps the rest", func(t *testing.T) {
		path := writeFile(t, "products.json", original)
		f := New(path, Options{})
		fixedClock(f)

		cat, err := f.Load(ctx)
		require.NoError(t, err)

		cat.Products[0].Image = "/photos/vaza.jpg"
		cat.Products[0].Category = domain.CategoryVases
		cat.Products[1].Image = ""
		cat.Products[1].Images = append(cat.Products[1].Images, "/photos/ramka.jpg")

		backupPath, err := f.Backup(ctx, cat)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(filepath.Dir(path), "products.backup-20241018-153000.json"), backupPath)

		backupData, err := os.ReadFile(backupPath)
		require.NoError(t, err)
		assert.Equal(t, original, string(backupData))

		issues, err := f.Commit(ctx, cat, []domain.Change{{ProductID: "1", Kind: domain.ChangeImageSet}})
		require.NoError(t, err)
		assert.Empty(t, issues)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "<Прованс>", "html must not be escaped")

		var doc struct {
			Version  int                          `json:"version"`
			Products []map[string]json.RawMessage `json:"products"`
		}
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Equal(t, 3, doc.Version)
		require.Len(t, doc.Products, 2)
		assert.JSONEq(t, `"/photos/vaza.jpg"`, string(doc.Products[0]["image"]))
		assert.JSONEq(t, `"vases"`, string(doc.Products[0]["category"]))
		assert.JSONEq(t, `{"keep": true}`, string(doc.Products[0]["extra"]))
		assert.JSONEq(t, `null`, string(doc.Products[1]["image"]))
		assert.JSONEq(t, `["/photos/ramka.jpg"]`, string(doc.Products[1]["images"]))
		_, hasCategory := doc.Products[1]["category"]
		assert.False(t, hasCategory)
	})

	t.Run("backup into separate directory", func(t *testing.T) {
		path := writeFile(t, "products.json", original)
		backupDir := filepath.Join(t.TempDir(), "backups")
		f := New(path, Options{BackupDir: backupDir})
		fixedClock(f)

		cat, err := f.Load(ctx)
		require.NoError(t, err)

		backupPath, err := f.Backup(ctx, cat)
		require.NoError(t, err)
		assert.Equal(t, backupDir, filepath.Dir(backupPath))
	})
}

func TestFile_CSV(t *testing.T) {
	ctx := context.Background()
	content := "\xEF\xBB\xBFID;Title;Price;Images\n" +
		"1;Ваза белая;1 200,00;a.jpg, b.jpg\n" +
		"2;\"Рамка; дуб\";300;\n"
	path := writeFile(t, "export.csv", content)
	f := New(path, Options{})
	fixedClock(f)

	cat, err := f.Load(ctx)
	require.NoError(t, err)
	require.Len(t, cat.Products, 2)

	assert.Equal(t, domain.ProductID("1"), cat.Products[0].ID)
	assert.Equal(t, "Ваза белая", cat.Products[0].Title)
	assert.Equal(t, "1200", cat.Products[0].Price.String())
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, cat.Products[0].Images)
	assert.Equal(t, "Рамка; дуб", cat.Products[1].Title)
	assert.Empty(t, cat.Products[1].Images)

	cat.Products[1].Image = "/photos/ramka.jpg"
	cat.Products[1].Category = domain.CategoryFrames

	_, err = f.Backup(ctx, cat)
	require.NoError(t, err)
	_, err = f.Commit(ctx, cat, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.HasPrefix(out, "\xEF\xBB\xBF"), "bom must be preserved")

	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(out, "\xEF\xBB\xBF")), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ID;Title;Price;Images;image;category", lines[0])
	assert.Equal(t, "1;Ваза белая;1 200,00;a.jpg, b.jpg;;", lines[1])
	assert.Equal(t, `2;"Рамка; дуб";300;;/photos/ramka.jpg;frames`, lines[2])
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"a.jpg", []string{"a.jpg"}},
		{"a.jpg, b.jpg", []string{"a.jpg", "b.jpg"}},
		{"a.jpg|b.jpg; c.jpg", []string{"a.jpg", "b.jpg", "c.jpg"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, splitList(tt.in))
		})
	}
}
