// ambientreplay rebuilds an engine from a journal written by ambientd and
// saves the final frame.
//
// USAGE:
//
//	go run ./cmd/ambientreplay -journal ambient.jsonl -out frame.png
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"ambient-focus/internal/canvas"
	"ambient-focus/internal/config"
	"ambient-focus/internal/journal"
	"ambient-focus/internal/streaming"

	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load(".env")

	var (
		journalPath = flag.String("journal", config.JournalFromEnv().Path, "journal file (JSONL)")
		outPath     = flag.String("out", "replay.png", "output image (.png or .jpg)")
		width       = flag.Float64("width", 0, "surface width in CSS pixels (default: recorded viewport)")
		height      = flag.Float64("height", 0, "surface height in CSS pixels (default: recorded viewport)")
		dpr         = flag.Float64("dpr", 0, "device pixel ratio (default: recorded viewport)")
		thumb       = flag.Int("thumb", 0, "scale the output down to this width")
	)
	flag.Parse()

	if *journalPath == "" {
		log.Fatal("❌ -journal is required (or set JOURNAL_PATH)")
	}
	if err := run(*journalPath, *outPath, *width, *height, *dpr, *thumb); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run(journalPath, outPath string, width, height, dpr float64, thumb int) error {
	f, err := os.Open(journalPath)
	if err != nil {
		return err
	}
	defer f.Close()

	session, err := journal.ReadSession(f)
	if err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}

	vp := session.Viewport
	if width > 0 {
		vp.Width = width
	}
	if height > 0 {
		vp.Height = height
	}
	if dpr > 0 {
		vp.DPR = dpr
	}
	surface, err := canvas.New(vp.Width, vp.Height, vp.DPR)
	if err != nil {
		return fmt.Errorf("create surface: %w", err)
	}

	log.Printf("🎬 Replaying %s (seed %d, %s mode, started %s)",
		journalPath, session.Seed, session.Mode, session.StartedAt.Format("2006-01-02 15:04:05"))

	engine, stats, err := journal.Replay(f, surface)
	if err != nil {
		if engine == nil {
			return err
		}
		log.Printf("⚠️ Journal truncated: %v", err)
	}
	log.Printf("✅ Applied %d commands and %d frames (%d skipped)", stats.Commands, stats.Frames, stats.Skipped)

	s := engine.Stats()
	log.Printf("🌌 %s mode, %d particles, %d blobs, %d shooting stars, %d ripples at t=%.2fs",
		s.Mode, s.Particles, s.Blobs, s.ShootingStars, s.Ripples, s.Time)

	format := streaming.FormatPNG
	if ext := strings.ToLower(filepath.Ext(outPath)); ext == ".jpg" || ext == ".jpeg" {
		format = streaming.FormatJPEG
	}

	w, h := surface.PixelSize()
	frame := streaming.Frame{Pix: surface.Image().Pix, Width: w, Height: h}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := streaming.EncodeFrame(out, frame, streaming.EncodeOptions{Format: format, MaxWidth: thumb}); err != nil {
		out.Close()
		return fmt.Errorf("encode %s: %w", outPath, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	log.Printf("✅ Wrote %s", outPath)
	return nil
}
