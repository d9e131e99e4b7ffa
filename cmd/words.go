package cmd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abhisek/smartrepeat/internal/smartrepeat"
	"github.com/abhisek/smartrepeat/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var wordsCmd = &cobra.Command{
	Use:   "words",
	Short: "Manage the vocabulary of a profile",
}

var wordsAddCmd = &cobra.Command{
	Use:   "add <word> <translation>",
	Short: "Add a word or update its translation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, _ := cmd.Flags().GetString("profile")
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.VocabRepo().UpsertWord(cmd.Context(), profile, args[0], args[1]); err != nil {
			return fmt.Errorf("add word: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %q (%s) to %s.\n", args[0], args[1], profile)
		return nil
	},
}

var wordsRemoveCmd = &cobra.Command{
	Use:   "remove <word>",
	Short: "Remove a word",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, _ := cmd.Flags().GetString("profile")
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		err = s.VocabRepo().DeleteWord(cmd.Context(), profile, args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%q is not in %s", args[0], profile)
		}
		if err != nil {
			return fmt.Errorf("remove word: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %q from %s.\n", args[0], profile)
		return nil
	},
}

var wordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the words of a profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, _ := cmd.Flags().GetString("profile")
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ws, err := s.VocabRepo().ListWords(cmd.Context(), profile)
		if err != nil {
			return fmt.Errorf("list words: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(ws) == 0 {
			fmt.Fprintf(out, "No words in %s yet.\n", profile)
			return nil
		}

		fmt.Fprintf(out, "%-24s  %-24s  %7s  %s\n", "Word", "Translation", "Correct", "Updated")
		fmt.Fprintln(out, strings.Repeat("─", 76))
		for _, w := range ws {
			fmt.Fprintf(out, "%-24s  %-24s  %7d  %s\n",
				truncate(w.Word, 24), truncate(w.Translation, 24), w.CorrectCount,
				w.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		fmt.Fprintf(out, "\n%d words\n", len(ws))
		return nil
	},
}

var wordsImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import word,translation rows from a CSV file (- for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, _ := cmd.Flags().GetString("profile")

		var in io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()
			in = f
		}
		rows, err := readWordCSV(in)
		if err != nil {
			return err
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		repo := s.VocabRepo()
		for _, r := range rows {
			if err := repo.UpsertWord(cmd.Context(), profile, r[0], r[1]); err != nil {
				return fmt.Errorf("import %q: %w", r[0], err)
			}
		}
		logger.Info("words imported", zap.String("profile", profile), zap.Int("count", len(rows)))
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d words into %s.\n", len(rows), profile)
		return nil
	},
}

// readWordCSV reads word,translation pairs. Blank words are skipped and a
// leading "word,translation" header is ignored.
func readWordCSV(in io.Reader) ([][2]string, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comment = '#'

	var rows [][2]string
	for line := 1; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("record %d: want word,translation, got %d field(s)", line, len(rec))
		}
		word, translation := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])
		if line == 1 && strings.EqualFold(word, "word") && strings.EqualFold(translation, "translation") {
			continue
		}
		if word == "" {
			continue
		}
		rows = append(rows, [2]string{word, translation})
	}
}

func init() {
	for _, c := range []*cobra.Command{wordsAddCmd, wordsRemoveCmd, wordsListCmd, wordsImportCmd} {
		c.Flags().StringP("profile", "p", smartrepeat.DefaultProfile, "Vocabulary profile")
		wordsCmd.AddCommand(c)
	}
}
