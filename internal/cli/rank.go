package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/webvoca/internal/highlight"
)

var (
	rankFile    string
	rankHTML    bool
	rankURL     string
	rankTopN    int
	rankDensity string
	rankMarks   bool
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank saved words against a text or HTML page",
	Long: `Rank reads page text from --file or stdin and scores every saved word found
on it by page prominence and unfamiliarity. With --html the readable article
text is extracted first. With --url the highlight enabled flag and domain
filters apply.

Examples:
  webvoca rank --file article.txt
  curl -s https://example.com/post | webvoca rank --html --url https://example.com/post`,
	Args: cobra.NoArgs,
	RunE: runRank,
}

func runRank(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	var in io.Reader = cmd.InOrStdin()
	if rankFile != "" {
		f, err := os.Open(rankFile)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", rankFile, err)
		}
		defer f.Close()
		in = f
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read page: %w", err)
	}

	return withApp(ctx, func(a *app) error {
		text := string(data)
		if rankHTML {
			page, err := highlight.ExtractPage(bytes.NewReader(data), rankURL)
			if err != nil {
				return err
			}
			if page.Title != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n", page.Title)
			}
			text = page.Text
		}

		var (
			plan highlight.Plan
			err  error
		)
		overridden := cmd.Flags().Changed("topn") || cmd.Flags().Changed("density")
		switch {
		case overridden:
			settings := a.vocab.HighlightSettings()
			if rankDensity != "" {
				settings.Density = highlight.Density(rankDensity)
			}
			if cmd.Flags().Changed("topn") {
				settings.MaxHighlights = rankTopN
			}
			h, err := highlight.NewHighlighter(settings, cfg.Highlight.RankOptions(), logger)
			if err != nil {
				return err
			}
			candidates, err := a.vocab.Candidates(ctx)
			if err != nil {
				return err
			}
			fam, err := a.vocab.FamiliarityByWord(ctx)
			if err != nil {
				return err
			}
			if rankURL != "" {
				plan, err = h.PlanPage(rankURL, text, candidates, fam)
				if err != nil {
					return err
				}
			} else {
				plan = h.Plan(text, candidates, fam)
			}
		case rankURL != "":
			plan, err = a.vocab.Highlight(ctx, rankURL, text)
		default:
			plan, err = a.vocab.HighlightText(ctx, text)
		}
		if err != nil {
			return err
		}
		return printPlan(cmd.OutOrStdout(), plan, rankMarks)
	})
}

func printPlan(out io.Writer, plan highlight.Plan, marks bool) error {
	fmt.Fprintf(out, "%d terms on page, showing up to %d\n", plan.TotalTerms, plan.TopN)
	if len(plan.Terms) == 0 {
		fmt.Fprintln(out, "No saved words found.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WORD\tSCORE\tLEVEL\tPAGE\tUNFAMILIAR")
	for _, t := range plan.Terms {
		fmt.Fprintf(tw, "%s\t%.3f\t%d\t%.3f\t%.3f\n", t.Word, t.Score, t.Level, t.PageImportance, t.Unfamiliarity)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if marks {
		fmt.Fprintln(out)
		for _, m := range plan.Marks {
			fmt.Fprintf(out, "%d-%d\t%s\t%d\n", m.Start, m.End, m.Text, m.Level)
		}
	}
	return nil
}

func init() {
	rankCmd.Flags().StringVarP(&rankFile, "file", "f", "", "read the page from a file instead of stdin")
	rankCmd.Flags().BoolVar(&rankHTML, "html", false, "input is HTML, extract the readable text")
	rankCmd.Flags().StringVar(&rankURL, "url", "", "page URL, enables the domain filter")
	rankCmd.Flags().IntVar(&rankTopN, "topn", 0, "cap the number of highlighted terms")
	rankCmd.Flags().StringVar(&rankDensity, "density", "", "highlight density: low, medium or high")
	rankCmd.Flags().BoolVar(&rankMarks, "marks", false, "print every highlighted occurrence with its byte offsets")

	rootCmd.AddCommand(rankCmd)
}
