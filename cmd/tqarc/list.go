package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jchantrell/tqarc/internal/texture"
	"github.com/jchantrell/tqarc/internal/utils"
)

var (
	listTextures bool
	listParts    bool
)

var listCmd = &cobra.Command{
	Use:   "list <archive.arc> [filter]",
	Short: "List the entries of an archive",
	Long: `List prints every entry of an archive with its index, size and part count.
An optional filter keeps entries whose path contains it, ignoring case and
separator style.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		h := a.Header()
		fmt.Printf("Archive: %s (version %d, %s)\n", a.Name(), h.Version, utils.Bytes(a.Size()))
		fmt.Printf("Entries: %d  Parts: %d\n\n", h.NumFiles, h.NumParts)

		filter := ""
		if len(args) > 1 {
			filter = args[1]
		}

		var shown int
		var total int64
		for _, i := range a.Match(filter) {
			e, err := a.Entry(i)
			if err != nil {
				return err
			}
			if listTextures && !texture.IsTexture(e.Path) {
				continue
			}
			fmt.Printf("[%5d] %-60s %12s  parts=%d\n", i, e.Path, utils.Number(int64(e.RealSize)), e.NumParts)
			shown++
			total += int64(e.RealSize)
		}

		if listParts {
			fmt.Printf("\nPart table:\n")
			for i, p := range a.Parts() {
				fmt.Printf("[%5d] offset=%-10d compressed=%-10d real=%d\n", i, p.FileOffset, p.CompressedSize, p.RealSize)
			}
		}

		fmt.Printf("\n%d entries, %s\n", shown, utils.Bytes(total))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listTextures, "textures", false, "only list .tex entries")
	listCmd.Flags().BoolVar(&listParts, "parts", false, "also print the part table")
}
