package export

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/imgio"
)

// SavePNG writes img to outputPath as PNG, creating parent directories.
func SavePNG(outputPath string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := imgio.Save(outputPath, img, imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("saving png %s: %w", outputPath, err)
	}
	return nil
}
