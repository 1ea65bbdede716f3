package generate

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/cwbudde/cogstim/internal/render"
	"github.com/cwbudde/cogstim/internal/store"
)

// Rerender redraws every layout recorded in <src>/layouts.jsonl into dst,
// keeping relative paths but switching the extension to format. It returns
// the number of images written.
func Rerender(ctx context.Context, src, dst string, r *render.Renderer, format string) (int, error) {
	ext, err := render.Extension(format)
	if err != nil {
		return 0, err
	}
	entries, err := store.ReadLayouts(src)
	if err != nil {
		return 0, err
	}

	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		set, err := e.PointSet()
		if err != nil {
			return i, fmt.Errorf("invalid layout for %s: %w", e.Image, err)
		}

		rel := strings.TrimSuffix(filepath.FromSlash(e.Image), filepath.Ext(e.Image)) + ext
		if err := render.Save(r.Render(set), filepath.Join(dst, rel)); err != nil {
			return i, err
		}
	}

	slog.Info("Layouts re-rendered", "count", len(entries), "src", src, "dst", dst)
	return len(entries), nil
}
