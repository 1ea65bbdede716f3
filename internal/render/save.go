package render

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Extension returns the file extension (with dot) for an output format.
// An empty format means png.
func Extension(format string) (string, error) {
	f, err := parseFormat(format)
	if err != nil {
		return "", err
	}
	switch f {
	case imaging.JPEG:
		return ".jpg", nil
	case imaging.GIF:
		return ".gif", nil
	default:
		return ".png", nil
	}
}

func parseFormat(format string) (imaging.Format, error) {
	if format == "" {
		return imaging.PNG, nil
	}
	f, err := imaging.FormatFromExtension(strings.TrimPrefix(strings.ToLower(format), "."))
	if err != nil {
		return 0, fmt.Errorf("unsupported image format %q: %w", format, err)
	}
	switch f {
	case imaging.PNG, imaging.JPEG, imaging.GIF:
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported image format %q", format)
	}
}

// Save writes img to path, creating parent directories. The encoding is
// chosen from the path extension.
func Save(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(95)); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format string) error {
	f, err := parseFormat(format)
	if err != nil {
		return err
	}
	return imaging.Encode(w, img, f, imaging.JPEGQuality(95))
}

// Load decodes an image from disk.
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return img, nil
}
