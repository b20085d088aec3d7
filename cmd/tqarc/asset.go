package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jchantrell/tqarc/internal/assets"
	"github.com/jchantrell/tqarc/internal/cache"
	"github.com/jchantrell/tqarc/internal/export"
	"github.com/jchantrell/tqarc/internal/utils"
)

var (
	assetOut string
	assetPNG string
)

var assetCmd = &cobra.Command{
	Use:   "asset <logical-path>...",
	Short: "Resolve logical asset paths across the game's archives",
	Long: `Asset indexes every archive under the game path and resolves logical asset
paths such as "Creatures\Monster\Boar\Boar.tex" to the archive holding them.
When several archives hold the same path the later one wins.

With --out the raw bytes of a single asset are written to a file; with --png
a texture asset is decoded and saved as PNG.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.GamePath == "" {
			return fmt.Errorf("game path is required, set --game-path or game_path in the config")
		}
		if (assetOut != "" || assetPNG != "") && len(args) > 1 {
			return fmt.Errorf("--out and --png take a single asset path")
		}

		textures, err := cache.NewTextures(cfg.CacheSize)
		if err != nil {
			return err
		}
		m, err := assets.NewManager(cfg.GamePath,
			assets.WithLogger(slog.Default()),
			assets.WithTrace(cfg.Debug),
			assets.WithTextureCache(textures),
			assets.WithCodec(newCodec()))
		if err != nil {
			return fmt.Errorf("indexing game archives: %w", err)
		}
		defer m.Close()

		slog.Debug("Asset index ready", "archives", len(m.Archives()), "assets", m.Len())

		for _, p := range args {
			a, ok := m.Lookup(p)
			if !ok {
				return fmt.Errorf("asset %s not found in %d archives", p, len(m.Archives()))
			}
			fmt.Printf("%s\n  archive: %s\n  entry:   %d\n  parts:   %d\n  offset:  %d\n  size:    %s (%s stored)\n",
				a.Path, a.Archive, a.Entry, a.NumParts, a.Location.Offset,
				utils.Bytes(int64(a.Location.RealSize)), utils.Bytes(int64(a.Location.CompressedSize)))
		}

		if assetOut != "" {
			data, err := m.Read(args[0])
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(assetOut), 0o755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
			if err := os.WriteFile(assetOut, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", assetOut, err)
			}
			fmt.Printf("Wrote %s to %s\n", utils.Bytes(int64(len(data))), assetOut)
		}

		if assetPNG != "" {
			pb, err := m.Texture(args[0])
			if err != nil {
				return err
			}
			if err := export.SavePNG(assetPNG, pb.Image()); err != nil {
				return err
			}
			fmt.Printf("Decoded %dx%d to %s\n", pb.Width, pb.Height, assetPNG)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(assetCmd)
	assetCmd.Flags().StringVar(&assetOut, "out", "", "write the raw asset bytes to this file")
	assetCmd.Flags().StringVar(&assetPNG, "png", "", "decode the texture asset to this PNG file")
}
