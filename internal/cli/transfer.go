package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/example/webvoca/internal/excel"
	"github.com/example/webvoca/pkg/models"
)

var (
	exportFormat string
	exportOutput string

	importSheet   string
	importReplace bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export words as CSV or XLSX, or the whole store as a JSON snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(exportFormat)
		if format == "" && exportOutput != "" {
			format = strings.TrimPrefix(strings.ToLower(filepath.Ext(exportOutput)), ".")
		}
		if format == "" {
			format = "csv"
		}

		var out io.Writer = cmd.OutOrStdout()
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", exportOutput, err)
			}
			defer f.Close()
			out = f
		}

		return withApp(cmd.Context(), func(a *app) error {
			if format == "json" {
				snap, err := a.vocab.ExportSnapshot(cmd.Context())
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			words, err := a.vocab.AllWords(cmd.Context())
			if err != nil {
				return err
			}
			return excel.Write(out, excel.Format(format), words)
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import words from CSV/XLSX, or restore a JSON snapshot",
	Long: `Import registers every row of a CSV or XLSX file exported by webvoca, merging
with words already saved from the same page. A .json snapshot replaces the whole
store and requires --replace.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if strings.EqualFold(filepath.Ext(path), ".json") {
			return importSnapshot(cmd, path)
		}

		records, err := excel.ReadFile(path, importSheet)
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(a *app) error {
			bar := progressbar.NewOptions(len(records),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("Importing"),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(cmd.ErrOrStderr())
				}),
			)
			res, err := excel.Import(cmd.Context(), records, a.vocab, func() { bar.Add(1) })
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed: %d, created: %d, updated: %d, skipped: %d\n",
				res.TotalProcessed, res.Created, res.Updated, res.Skipped)
			for _, e := range res.Errors {
				fmt.Fprintln(cmd.OutOrStdout(), e)
			}
			return nil
		})
	},
}

func importSnapshot(cmd *cobra.Command, path string) error {
	if !importReplace {
		return errors.New("restoring a snapshot replaces every saved word, pass --replace to continue")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return withApp(cmd.Context(), func(a *app) error {
		if err := a.vocab.ImportSnapshot(cmd.Context(), snap); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restored %d words\n", len(snap.WordEntries))
		return nil
	})
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "csv, xlsx or json (default from --output, else csv)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default stdout)")

	importCmd.Flags().StringVar(&importSheet, "sheet", "", "worksheet to read from an XLSX file")
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "allow a JSON snapshot to replace the store")

	rootCmd.AddCommand(exportCmd, importCmd)
}
