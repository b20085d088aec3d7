package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jchantrell/tqarc/internal/texture"
)

var dumpBytes int

var dumpCmd = &cobra.Command{
	Use:   "dump <archive.arc> [filter]",
	Short: "Hex dump the start of each entry",
	Long: `Dump extracts each matching entry and prints a hex dump of its first bytes,
along with the offsets of any DDS magic found in them. Texture entries also
show the payload after the TEX header has been stripped and repaired.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		filter := ""
		if len(args) > 1 {
			filter = args[1]
		}

		for _, i := range a.Match(filter) {
			e, err := a.Entry(i)
			if err != nil {
				return err
			}

			data, err := a.Extract(i)
			if err != nil {
				slog.Warn("Failed to extract entry", "index", i, "path", e.Path, "error", err)
				continue
			}

			fmt.Printf("File %d: %s (%d bytes)\n", i, e.Path, len(data))
			head := data[:min(len(data), dumpBytes)]
			fmt.Print(hex.Dump(head))

			for _, off := range ddsMagicOffsets(head) {
				fmt.Printf("  DDS magic at offset %d\n", off)
			}

			if texture.IsTexture(e.Path) {
				payload, err := texture.Payload(data)
				if err != nil {
					fmt.Printf("  texture: %v\n", err)
				} else {
					fmt.Printf("  repaired payload:\n")
					fmt.Print(hex.Dump(payload[:min(len(payload), dumpBytes)]))
				}
			}
			fmt.Println()
		}
		return nil
	},
}

func ddsMagicOffsets(data []byte) []int {
	var offsets []int
	for i := 0; i+4 <= len(data); i++ {
		if bytes.HasPrefix(data[i:], []byte("DDS")) && (data[i+3] == ' ' || data[i+3] == 'R') {
			offsets = append(offsets, i)
		}
	}
	return offsets
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().IntVarP(&dumpBytes, "bytes", "n", 64, "number of leading bytes to dump")
}
