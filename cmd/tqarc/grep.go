package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jchantrell/tqarc/internal/utils"
)

var grepExt []string

var grepCmd = &cobra.Command{
	Use:   "grep <archive.arc> <text>",
	Short: "Search entry contents for text",
	Long: `Grep extracts every entry and searches its contents for text, ignoring
case. Text stored as UTF-16 is also matched. Use --ext to only search entries
with the given extensions.

Paths are printed with forward slashes, and an entry stored twice under the
same path is searched once.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		needle := args[1]
		res, err := grepFS(cmd.Context(), a.FS(), needle, grepExt, os.Stdout)
		if err != nil {
			return fmt.Errorf("searching %s: %w", a.Name(), err)
		}

		fmt.Printf("\n%d of %d entries contain %q", res.Hits, res.Searched, needle)
		if res.Failed > 0 {
			fmt.Printf(", %d failed to extract", res.Failed)
		}
		fmt.Println()
		return nil
	},
}

type grepResult struct {
	Searched int
	Hits     int
	Failed   int
}

// grepFS searches every file of fsys with one of exts for needle and prints
// a HIT line per matching file to w.
func grepFS(ctx context.Context, fsys fs.FS, needle string, exts []string, w io.Writer) (grepResult, error) {
	var res grepResult
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !hasExt(p, exts) {
			return nil
		}
		res.Searched++

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			slog.Warn("Failed to extract entry", "path", p, "error", err)
			res.Failed++
			return nil
		}

		m, ok := utils.IndexFold(data, needle)
		if !ok {
			slog.Debug("No match", "path", p)
			return nil
		}
		res.Hits++
		if m.UTF16 {
			fmt.Fprintf(w, "HIT  %s @%d (utf-16)\n", p, m.Offset)
		} else {
			fmt.Fprintf(w, "HIT  %s @%d: %s\n", p, m.Offset, strings.TrimSpace(utils.LineAt(data, m.Offset)))
		}
		return nil
	})
	return res, err
}

func hasExt(p string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := path.Ext(strings.ReplaceAll(p, `\`, "/"))
	for _, want := range exts {
		if !strings.HasPrefix(want, ".") {
			want = "." + want
		}
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

func init() {
	rootCmd.AddCommand(grepCmd)
	grepCmd.Flags().StringSliceVar(&grepExt, "ext", nil, "only search entries with these extensions (e.g. .txt,.dbr)")
}
