package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cwbudde/cogstim/internal/dots"
	"github.com/jbeda/geom"
)

func testLayout(t *testing.T) dots.PointSet {
	t.Helper()
	ps, err := dots.FromCircles(dots.DefaultCanvas(), []dots.Circle{
		{Center: geom.Coord{X: 100, Y: 100}, Radius: 20, Group: dots.Primary},
		{Center: geom.Coord{X: 300, Y: 300}, Radius: 25, Group: dots.Secondary},
	})
	if err != nil {
		t.Fatalf("FromCircles failed: %v", err)
	}
	return ps
}

func TestLayoutWriter_WriteAndRead(t *testing.T) {
	dir := t.TempDir()
	lw, err := NewLayoutWriter(dir, false)
	if err != nil {
		t.Fatalf("NewLayoutWriter failed: %v", err)
	}

	set := testLayout(t)
	for i := 0; i < 3; i++ {
		if err := lw.Write(NewLayoutEntry(fmt.Sprintf("train/yellow/img_%d.png", i), set)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := lw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries, err := ReadLayouts(dir)
	if err != nil {
		t.Fatalf("ReadLayouts failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[2].Image != "train/yellow/img_2.png" {
		t.Errorf("Unexpected image: %s", entries[2].Image)
	}

	restored, err := entries[0].PointSet()
	if err != nil {
		t.Fatalf("PointSet failed: %v", err)
	}
	if !restored.Equal(set) {
		t.Error("Restored layout differs from the written one")
	}
}

func TestLayoutWriter_GroupsEncodedByName(t *testing.T) {
	dir := t.TempDir()
	lw, err := NewLayoutWriter(dir, false)
	if err != nil {
		t.Fatalf("NewLayoutWriter failed: %v", err)
	}
	lw.Write(NewLayoutEntry("img.png", testLayout(t)))
	lw.Close()

	data, err := os.ReadFile(filepath.Join(dir, LayoutFile))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), `"group":"secondary"`) || !strings.Contains(string(data), `"shape":"circle"`) {
		t.Errorf("Expected named groups and shapes, got %s", data)
	}
}

func TestLayoutWriter_Append(t *testing.T) {
	dir := t.TempDir()
	set := testLayout(t)

	for _, appendMode := range []bool{false, true} {
		lw, err := NewLayoutWriter(dir, appendMode)
		if err != nil {
			t.Fatalf("NewLayoutWriter failed: %v", err)
		}
		lw.Write(NewLayoutEntry("img.png", set))
		if err := lw.Flush(); err != nil {
			t.Fatalf("Flush failed: %v", err)
		}
		lw.Close()
	}

	entries, err := ReadLayouts(dir)
	if err != nil {
		t.Fatalf("ReadLayouts failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Expected 2 entries after append, got %d", len(entries))
	}

	// a fresh writer truncates
	lw, _ := NewLayoutWriter(dir, false)
	lw.Close()
	entries, _ = ReadLayouts(dir)
	if len(entries) != 0 {
		t.Errorf("Expected truncated file, got %d entries", len(entries))
	}
}

func TestLayoutWriter_ConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	lw, err := NewLayoutWriter(dir, false)
	if err != nil {
		t.Fatalf("NewLayoutWriter failed: %v", err)
	}
	set := testLayout(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lw.Write(NewLayoutEntry(fmt.Sprintf("img_%d.png", i), set))
		}(i)
	}
	wg.Wait()
	lw.Close()

	entries, err := ReadLayouts(dir)
	if err != nil {
		t.Fatalf("ReadLayouts failed: %v", err)
	}
	if len(entries) != 50 {
		t.Errorf("Expected 50 entries, got %d", len(entries))
	}
}

func TestReadLayouts_NotFound(t *testing.T) {
	if _, err := ReadLayouts(t.TempDir()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDecodeLayouts_BadLine(t *testing.T) {
	_, err := DecodeLayouts(strings.NewReader("{\"image\":\"a.png\"}\nnot json\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("Expected error on line 2, got %v", err)
	}
}
