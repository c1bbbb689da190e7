/**
 * OCR Types - Block hierarchy produced by the upstream OCR service
 *
 * Page -> line -> word blocks with geometry normalized to [0,1] relative
 * to the rendered page. These are read-only data contracts shared by the
 * page index, the matcher and every block-fetch collaborator.
 */

package ocr

import (
	"encoding/json"
	"fmt"
)

// Epsilon is the containment tolerance used for all geometry comparisons.
const Epsilon = 0.01

// BlockType is the closed set of OCR block kinds.
type BlockType string

const (
	BlockTypePage BlockType = "PAGE"
	BlockTypeLine BlockType = "LINE"
	BlockTypeWord BlockType = "WORD"
)

// Valid reports whether t is one of the known block kinds.
func (t BlockType) Valid() bool {
	switch t {
	case BlockTypePage, BlockTypeLine, BlockTypeWord:
		return true
	}
	return false
}

// UnmarshalJSON rejects block types outside the closed set.
func (t *BlockType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("blockType must be a string: %w", err)
	}
	bt := BlockType(s)
	if !bt.Valid() {
		return fmt.Errorf("unknown blockType %q", s)
	}
	*t = bt
	return nil
}

// BoundingBox is an axis-aligned rectangle in normalized page coordinates.
type BoundingBox struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
}

// Right returns the x coordinate of the right edge.
func (b BoundingBox) Right() float64 { return b.Left + b.Width }

// Bottom returns the y coordinate of the bottom edge.
func (b BoundingBox) Bottom() float64 { return b.Top + b.Height }

// Contains reports whether inner lies within b on all four edges, allowing
// each edge to overshoot by eps.
func (b BoundingBox) Contains(inner BoundingBox, eps float64) bool {
	return inner.Left >= b.Left-eps &&
		inner.Top >= b.Top-eps &&
		inner.Right() <= b.Right()+eps &&
		inner.Bottom() <= b.Bottom()+eps
}

// Normalized reports whether the box fits inside the unit page within eps.
func (b BoundingBox) Normalized(eps float64) bool {
	return b.Left >= -eps && b.Top >= -eps &&
		b.Width >= 0 && b.Height >= 0 &&
		b.Right() <= 1+eps && b.Bottom() <= 1+eps
}

// Point is a polygon vertex in normalized page coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Geometry carries both the bounding box and the polygon of a block.
// Only the bounding box takes part in matching; the polygon is passed
// through for rendering.
type Geometry struct {
	BoundingBox BoundingBox `json:"boundingBox"`
	Polygon     []Point     `json:"polygon,omitempty"`
}

// Relationship links a block to its parents or children by id.
type Relationship struct {
	Type string   `json:"type"`
	IDs  []string `json:"ids"`
}

// Block is one node of the OCR hierarchy. Text is empty for PAGE blocks.
type Block struct {
	ID            string         `json:"id"`
	BlockType     BlockType      `json:"blockType"`
	Confidence    float64        `json:"confidence"`
	Text          string         `json:"text,omitempty"`
	Geometry      Geometry       `json:"geometry"`
	Relationships []Relationship `json:"relationships,omitempty"`
	Page          int            `json:"page"`
}

// HasText reports whether the block carries matchable text.
func (b Block) HasText() bool { return b.Text != "" }

// Validate rejects blocks of an unknown type or whose bounding box is not
// normalized to the page.
func (b Block) Validate() error {
	if !b.BlockType.Valid() {
		return fmt.Errorf("block %s has unknown type %q", b.ID, b.BlockType)
	}
	if !b.Geometry.BoundingBox.Normalized(Epsilon) {
		return fmt.Errorf("block %s bounding box %+v is outside the page", b.ID, b.Geometry.BoundingBox)
	}
	return nil
}
