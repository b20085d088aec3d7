package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jchantrell/tqarc/internal/arc"
	"github.com/jchantrell/tqarc/internal/export"
	"github.com/jchantrell/tqarc/internal/texture"
	"github.com/jchantrell/tqarc/internal/utils"
)

var texturesCmd = &cobra.Command{
	Use:   "textures <archive.arc> [filter]",
	Short: "Convert the textures of an archive to PNG",
	Long: `Textures decodes every .tex entry of an archive, or those whose path
contains the optional filter, and saves each as a PNG below the output
directory. Textures that fail to decode are reported and skipped.`,
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
		indices := selectEntries(a, filter, texture.IsTexture)

		exporter := export.NewExporter(a, cfg.OutputDir,
			export.WithWorkers(cfg.Workers),
			export.WithCodec(newCodec()),
			export.WithLogger(slog.Default()))

		slog.Info("Converting textures...", "archive", a.Name(), "textures", len(indices), "output", cfg.OutputDir)
		return runExport(cmd.Context(), a.Name(), indices, exporter.ExportTextures)
	},
}

var decodeOut string

var decodeCmd = &cobra.Command{
	Use:   "decode <file.tex | archive.arc> [entry]",
	Short: "Decode a single texture to PNG",
	Long: `Decode converts one texture to PNG. Given a .tex file it decodes that file;
given an archive and an entry path or index it decodes that entry. The PNG
is written to --out, or next to the input inside the output directory.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var raw []byte
		var name string

		if len(args) == 1 {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading texture: %w", err)
			}
			raw, name = data, filepath.Base(args[0])
		} else {
			a, err := openArchive(args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			raw, name, err = readEntry(a, args[1])
			if err != nil {
				return err
			}
		}

		pb, err := newCodec().Decode(raw)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", name, err)
		}

		out := decodeOut
		if out == "" {
			base := name[strings.LastIndexAny(name, `\/`)+1:]
			out = filepath.Join(cfg.OutputDir, strings.TrimSuffix(base, filepath.Ext(base))+".png")
		}
		if err := export.SavePNG(out, pb.Image()); err != nil {
			return err
		}

		fmt.Printf("%s: %dx%d -> %s\n", name, pb.Width, pb.Height, out)
		return nil
	},
}

// readEntry extracts the entry named by ref, which is either a stored path
// or an entry index, and returns its bytes and stored path.
func readEntry(a *arc.Archive, ref string) ([]byte, string, error) {
	data, err := a.ExtractPath(ref)
	if err == nil {
		return data, ref, nil
	}
	if !errors.Is(err, arc.ErrNotFound) {
		return nil, "", err
	}

	i, convErr := strconv.Atoi(ref)
	if convErr != nil {
		return nil, "", err
	}
	e, err := a.Entry(i)
	if err != nil {
		return nil, "", fmt.Errorf("entry index %d of %s entries: %w", i, utils.Number(int64(a.Len())), err)
	}
	if data, err = a.Extract(i); err != nil {
		return nil, "", fmt.Errorf("extracting %s: %w", e.Path, err)
	}
	return data, e.Path, nil
}

func init() {
	rootCmd.AddCommand(texturesCmd)
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringVar(&decodeOut, "out", "", "PNG file to write")
}
