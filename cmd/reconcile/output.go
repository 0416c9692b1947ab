package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/provansdecor/catalog/internal/domain"
	"github.com/provansdecor/catalog/internal/usecase"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSummary renders a run summary for humans or as JSON
func printSummary(w io.Writer, s *usecase.Summary, asJSON bool) error {
	if asJSON {
		return writeJSON(w, s)
	}

	fmt.Fprintf(w, "Run %s (%s) on %s\n\n", s.RunID, s.Mode, s.Source)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := []struct {
		label string
		value int
	}{
		{"Products", s.Products},
		{"Photos", s.Photos},
		{"Exact matches", s.ExactMatches},
		{"Fuzzy matches", s.FuzzyMatches},
		{"Unmatched", s.Unmatched},
		{"Shared photos", s.SharedPhotos},
		{"Dangling references cleared", s.DanglingCleared},
		{"Categories filled", s.CategoriesFilled},
		{"Ambiguous categories", s.CategoriesAmbiguous},
		{"Duplicate groups", s.DuplicateGroups},
		{"Duplicates removed", s.DuplicatesRemoved},
		{"Issues", len(s.Issues)},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "  %s\t%d\n", r.label, r.value)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if s.BackupPath != "" {
		fmt.Fprintf(w, "\nBackup: %s\n", s.BackupPath)
	}

	if len(s.Changes) > 0 {
		fmt.Fprintf(w, "\nChanges (%d of %d):\n", len(s.Changes), s.TotalChanges)
		for _, c := range s.Changes {
			fmt.Fprintf(w, "  %s\n", formatChange(c))
		}
	}

	if len(s.UnmatchedItems) > 0 {
		fmt.Fprintf(w, "\nUnmatched:\n")
		for _, u := range s.UnmatchedItems {
			line := fmt.Sprintf("  [%s] %s", u.ProductID, u.Title)
			if u.Best != nil {
				line += fmt.Sprintf("  (closest %s, %.2f)", u.Best.PhotoPath, u.Best.Score)
			}
			fmt.Fprintln(w, line)
		}
	}

	if s.Mode == "dry-run" && s.TotalChanges > 0 {
		fmt.Fprintf(w, "\nDry run: nothing was written. Re-run with --apply to save.\n")
	}
	return nil
}

func formatChange(c domain.Change) string {
	switch c.Kind {
	case domain.ChangeImageSet:
		if c.Old != "" {
			return fmt.Sprintf("[%s] %s: image %q -> %q", c.ProductID, c.Title, c.Old, c.New)
		}
		return fmt.Sprintf("[%s] %s: image -> %q", c.ProductID, c.Title, c.New)
	case domain.ChangeImageCleared:
		return fmt.Sprintf("[%s] %s: image %q cleared (file missing)", c.ProductID, c.Title, c.Old)
	case domain.ChangeImagesAppended:
		return fmt.Sprintf("[%s] %s: images += %q", c.ProductID, c.Title, c.New)
	case domain.ChangeCategorySet:
		return fmt.Sprintf("[%s] %s: category -> %s", c.ProductID, c.Title, c.New)
	case domain.ChangeProductRemoved:
		return fmt.Sprintf("[%s] %s: removed as duplicate", c.ProductID, c.Title)
	}
	return fmt.Sprintf("[%s] %s: %s", c.ProductID, c.Title, c.Kind)
}

// printGroups lists duplicate groups with the canonical member first
func printGroups(w io.Writer, groups []domain.DuplicateGroup, asJSON bool) error {
	if asJSON {
		if groups == nil {
			groups = []domain.DuplicateGroup{}
		}
		return writeJSON(w, groups)
	}

	if len(groups) == 0 {
		fmt.Fprintln(w, "No duplicates found.")
		return nil
	}

	for _, g := range groups {
		ids := make([]string, 0, len(g.Members))
		for _, id := range g.Redundant() {
			ids = append(ids, string(id))
		}
		fmt.Fprintf(w, "%-6s %q\n  keep %s, redundant %s\n", g.Kind, g.Key, g.Canonical, strings.Join(ids, ", "))
	}
	return nil
}
