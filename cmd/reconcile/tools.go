package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/provansdecor/catalog/internal/app"
	"github.com/provansdecor/catalog/internal/domain"
)

func classifyCmd(c *cli) *cobra.Command {
	var image string

	cmd := &cobra.Command{
		Use:   "classify [title]",
		Short: "Show the category the rules assign to a title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := app.NewEngine(c.cfg, c.logger)
			if err != nil {
				return err
			}

			title := strings.Join(args, " ")
			guess := engine.Classifier.Classify(title, image)
			if c.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), guess)
			}

			out := cmd.OutOrStdout()
			switch {
			case guess.Ambiguous:
				fmt.Fprintf(out, "ambiguous: %v\n", guess.Matched)
			case !guess.Found():
				fmt.Fprintln(out, "no category")
			default:
				fmt.Fprintf(out, "%s (%s), confidence %d\n", guess.Category, guess.Category.Label(), guess.Confidence)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&image, "image", "", "photo reference considered together with the title")
	return cmd
}

func normalizeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize [text]",
		Short: "Print the comparison forms of a title or file name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := app.NewEngine(c.cfg, c.logger)
			if err != nil {
				return err
			}

			text := strings.Join(args, " ")
			n := engine.Normalizer
			resp := domain.NormalizeResponse{
				Normalized: n.Normalize(text),
				Literal:    n.Literal(text),
				Damaged:    n.IsDamaged(text),
			}
			if c.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "normalized: %q\nliteral:    %q\n", resp.Normalized, resp.Literal)
			if resp.Damaged {
				fmt.Fprintln(cmd.OutOrStdout(), "damaged:    title has no letters or digits")
			}
			return nil
		},
	}
}
