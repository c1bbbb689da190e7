/**
 * Tesseract Block Producer - Local OCR for development and the CLI
 *
 * Runs Tesseract on page images and emits the same PAGE/LINE/WORD block
 * hierarchy the production OCR service returns, with geometry normalized
 * to the page size.
 */

package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/adverant/nexus/ocr-highlight-worker/internal/ocr"
	"github.com/google/uuid"
	"github.com/otiai10/gosseract/v2"
	_ "golang.org/x/image/tiff"
)

// Recognizer produces OCR blocks from page images using Tesseract
type Recognizer struct {
	clientFactory func() *gosseract.Client
	languages     []string
}

// NewRecognizer creates a Tesseract-backed recognizer. No languages means
// Tesseract's default.
func NewRecognizer(languages ...string) *Recognizer {
	return &Recognizer{
		clientFactory: gosseract.NewClient,
		languages:     languages,
	}
}

// RecognizePages runs OCR on each image, numbering pages from 1
func (r *Recognizer) RecognizePages(ctx context.Context, images [][]byte) ([]ocr.Block, error) {
	var blocks []ocr.Block
	for i, img := range images {
		pageBlocks, err := r.RecognizePage(ctx, img, i+1)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		blocks = append(blocks, pageBlocks...)
	}
	return blocks, nil
}

// RecognizePage runs OCR on one page image
func (r *Recognizer) RecognizePage(ctx context.Context, img []byte, page int) ([]ocr.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := ocr.CheckPageImage(img); err != nil {
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("failed to read image dimensions: %w", err)
	}

	client := r.clientFactory()
	defer client.Close()

	if err := client.SetImageFromBytes(img); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	if len(r.languages) > 0 {
		if err := client.SetLanguage(r.languages...); err != nil {
			return nil, fmt.Errorf("failed to set languages: %w", err)
		}
	}

	lines, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract line boxes failed: %w", err)
	}
	words, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("tesseract word boxes failed: %w", err)
	}

	return buildBlocks(page, cfg.Width, cfg.Height, lines, words), nil
}

type lineKey struct{ block, par, line int }

func keyOf(b gosseract.BoundingBox) lineKey {
	return lineKey{block: b.BlockNum, par: b.ParNum, line: b.LineNum}
}

func buildBlocks(page, width, height int, lines, words []gosseract.BoundingBox) []ocr.Block {
	pageBlock := ocr.Block{
		ID:         uuid.NewString(),
		BlockType:  ocr.BlockTypePage,
		Confidence: 100,
		Geometry:   ocr.GeometryFromRect(image.Rect(0, 0, width, height), width, height),
		Page:       page,
	}

	lineIndex := make(map[lineKey]int, len(lines))
	blocks := []ocr.Block{pageBlock}
	var lineIDs []string
	for _, l := range lines {
		text := strings.TrimSpace(l.Word)
		if text == "" {
			continue
		}
		b := ocr.Block{
			ID:         uuid.NewString(),
			BlockType:  ocr.BlockTypeLine,
			Confidence: l.Confidence,
			Text:       text,
			Geometry:   ocr.GeometryFromRect(l.Box, width, height),
			Page:       page,
		}
		lineIndex[keyOf(l)] = len(blocks)
		lineIDs = append(lineIDs, b.ID)
		blocks = append(blocks, b)
	}

	for _, w := range words {
		text := strings.TrimSpace(w.Word)
		if text == "" {
			continue
		}
		b := ocr.Block{
			ID:         uuid.NewString(),
			BlockType:  ocr.BlockTypeWord,
			Confidence: w.Confidence,
			Text:       text,
			Geometry:   ocr.GeometryFromRect(w.Box, width, height),
			Page:       page,
		}
		if i, ok := lineIndex[keyOf(w)]; ok {
			addChild(&blocks[i], b.ID)
		}
		blocks = append(blocks, b)
	}

	if len(lineIDs) > 0 {
		blocks[0].Relationships = []ocr.Relationship{{Type: "CHILD", IDs: lineIDs}}
	}
	return blocks
}

func addChild(parent *ocr.Block, id string) {
	if len(parent.Relationships) == 0 {
		parent.Relationships = []ocr.Relationship{{Type: "CHILD"}}
	}
	parent.Relationships[0].IDs = append(parent.Relationships[0].IDs, id)
}
