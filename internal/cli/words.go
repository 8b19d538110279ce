package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/webvoca/internal/database"
	"github.com/example/webvoca/internal/spaced_repetition"
	"github.com/example/webvoca/pkg/models"
)

var (
	addContext  string
	addURL      string
	addTitle    string
	addLanguage string
	addTags     []string
	addNote     string
	addFavorite bool

	listLimit  int
	listOffset int
	listQuery  string

	dueLimit int
)

var addCmd = &cobra.Command{
	Use:   "add <word>",
	Short: "Save a word with the sentence and page it came from",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sel := models.Selection{
			Word:     args[0],
			Context:  addContext,
			URL:      addURL,
			Title:    addTitle,
			Language: addLanguage,
			Tags:     addTags,
		}
		if cmd.Flags().Changed("note") {
			sel.Note = &addNote
		}
		if cmd.Flags().Changed("favorite") {
			sel.IsFavorite = &addFavorite
		}

		return withApp(cmd.Context(), func(a *app) error {
			entry, queued, err := a.vocab.RegisterOrQueue(cmd.Context(), sel)
			if err != nil {
				return err
			}
			if queued {
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %q for a retry\n", sel.Word)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", entry.ID)
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved words, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			words, err := a.vocab.List(cmd.Context(), database.ListOptions{
				Limit:  listLimit,
				Offset: listOffset,
				Query:  listQuery,
			})
			if err != nil {
				return err
			}
			return printWords(cmd.OutOrStdout(), words)
		})
	},
}

var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "List words due for review",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			words, err := a.vocab.Due(cmd.Context(), time.Time{}, dueLimit)
			if err != nil {
				return err
			}
			return printWords(cmd.OutOrStdout(), words)
		})
	},
}

var knownCmd = &cobra.Command{
	Use:   "known <word-id>",
	Short: "Mark a word as known and drop it from the review schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			return a.vocab.MarkKnown(cmd.Context(), args[0])
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <word-id>",
	Short: "Delete a word and its review schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			return a.vocab.Delete(cmd.Context(), args[0])
		})
	},
}

var reviewCmd = &cobra.Command{
	Use:   "review <word-id> <grade>",
	Short: "Grade a review from 0 (blackout) to 5 (perfect) and print the new schedule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: %q", spaced_repetition.ErrInvalidGrade, args[1])
		}
		return withApp(cmd.Context(), func(a *app) error {
			state, err := a.vocab.ApplyReview(cmd.Context(), args[0], spaced_repetition.Grade(g))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "interval: %d days\nease factor: %.2f\nrepetitions: %d\nnext review: %s\n",
				state.Interval, state.EaseFactor, state.Repetitions,
				models.FromMillis(state.NextReviewAt).Local().Format(time.RFC1123))
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vocabulary and review statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			stats, err := a.vocab.Stats(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		})
	},
}

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Retry queued selections once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			res, err := a.vocab.DrainPending(cmd.Context(), cfg.Scheduler.PendingBatch, cfg.Scheduler.PendingMaxAttempts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored: %d, failed: %d\n", res.Stored, res.Failed)
			return nil
		})
	},
}

func printWords(out io.Writer, words []models.WordEntry) error {
	if len(words) == 0 {
		fmt.Fprintln(out, "No words.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWORD\tSOURCE\tSAVED")
	for _, w := range words {
		source := w.SourceTitle
		if source == "" {
			source = w.URL
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", w.ID, w.Word, source,
			models.FromMillis(w.CreatedAt).Local().Format(time.DateOnly))
	}
	return tw.Flush()
}

func init() {
	addCmd.Flags().StringVar(&addContext, "context", "", "sentence the word was found in")
	addCmd.Flags().StringVar(&addURL, "url", "", "page the word was found on")
	addCmd.Flags().StringVar(&addTitle, "title", "", "page title")
	addCmd.Flags().StringVar(&addLanguage, "language", "", "language code")
	addCmd.Flags().StringSliceVar(&addTags, "tag", nil, "tag, repeatable")
	addCmd.Flags().StringVar(&addNote, "note", "", "personal note")
	addCmd.Flags().BoolVar(&addFavorite, "favorite", false, "mark as favorite")

	listCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum words")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "words to skip")
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "only words containing this text")

	dueCmd.Flags().IntVar(&dueLimit, "limit", 0, "maximum words, 0 for all")

	rootCmd.AddCommand(addCmd, listCmd, dueCmd, knownCmd, deleteCmd, reviewCmd, statsCmd, drainCmd)
}
