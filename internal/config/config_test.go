package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwbudde/cogstim/internal/dots"
	"github.com/cwbudde/cogstim/internal/store"
)

func TestDefaultsAreValid(t *testing.T) {
	f := Default()
	if err := f.Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
	for name, c := range map[string]interface{ Validate() error }{
		"ans":        f.ANS,
		"one_colour": f.OneColour,
		"mts":        f.MTS,
	} {
		if err := c.Validate(); err != nil {
			t.Errorf("%s defaults invalid: %v", name, err)
		}
	}
}

func TestDefaultsDiffer(t *testing.T) {
	f := Default()
	if !f.OneColour.OneColour || f.ANS.OneColour {
		t.Error("Only the one-colour section should set OneColour")
	}
	if f.MTS.Radii != (dots.RadiusRange{Min: 5, Max: 15}) {
		t.Errorf("MTS radii = %+v", f.MTS.Radii)
	}
	if f.MTS.Tolerance.Relative != 0.05 {
		t.Errorf("MTS relative tolerance = %f, want 0.05", f.MTS.Tolerance.Relative)
	}
	if f.ANS.Radii != (dots.RadiusRange{Min: 20, Max: 30}) || f.ANS.AttemptsLimit != 2000 {
		t.Errorf("Unexpected ANS defaults %+v", f.ANS)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cogstim.toml")
	content := `
[log]
level = "debug"
format = "json"

[store]
backend = "redis"

[store.redis]
addr = "redis:6379"
db = 3

[mts]
output_dir = "out/mts"
growth = "bisect"
tolerance = { relative = 0.02, absolute = 4 }

[mts.canvas]
shape = "square"
size = 300

[ans]
ratios = "easy"
radii = { min = 10, max = 12 }
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if f.Log.Level != "debug" || f.Log.Format != "json" {
		t.Errorf("Log = %+v", f.Log)
	}
	if f.Store.Backend != BackendRedis || f.Store.Redis.Addr != "redis:6379" || f.Store.Redis.DB != 3 {
		t.Errorf("Store = %+v", f.Store)
	}
	if f.MTS.OutputDir != "out/mts" || f.MTS.Growth != dots.GrowBisect {
		t.Errorf("MTS = %+v", f.MTS)
	}
	if f.MTS.Tolerance != (dots.Tolerance{Relative: 0.02, Absolute: 4}) {
		t.Errorf("MTS tolerance = %+v", f.MTS.Tolerance)
	}
	if f.MTS.Canvas.Shape != dots.ShapeSquare || f.MTS.Canvas.Size != 300 {
		t.Errorf("MTS canvas = %+v", f.MTS.Canvas)
	}
	// Keys absent from the file keep their defaults.
	if f.MTS.Canvas.BoundaryWidth != dots.DefaultBoundaryWidth || f.MTS.Radii.Min != 5 {
		t.Errorf("MTS lost defaults: %+v", f.MTS)
	}
	if f.ANS.Ratios != "easy" || f.ANS.Radii.Max != 12 || f.ANS.Primary != "yellow" {
		t.Errorf("ANS = %+v", f.ANS)
	}
	if f.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q", f.Server.Addr)
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "[ans]\ncolour = \"red\"\n", "unknown keys: ans.colour"},
		{"bad growth", "[mts]\ngrowth = \"sideways\"\n", "sideways"},
		{"bad backend", "[store]\nbackend = \"s3\"\n", "unknown store backend"},
		{"bad level", "[log]\nlevel = \"loud\"\n", "invalid log level"},
		{"bad format", "[log]\nformat = \"xml\"\n", "unknown log format"},
		{"syntax", "[ans\n", "failed to decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.content))
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestOpenFSStore(t *testing.T) {
	s := Store{Backend: BackendFS, Dir: t.TempDir()}
	st, closeFn, err := s.OpenStore(context.Background())
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	defer closeFn()

	if _, ok := st.(*store.FSStore); !ok {
		t.Errorf("Expected *store.FSStore, got %T", st)
	}
	runs, err := st.ListRuns(context.Background())
	if err != nil || len(runs) != 0 {
		t.Errorf("ListRuns = %v, %v", runs, err)
	}
}

func TestOpenUnknownStore(t *testing.T) {
	if _, _, err := (Store{Backend: "s3"}).OpenStore(context.Background()); err == nil {
		t.Error("Expected error for unknown backend")
	}
}
