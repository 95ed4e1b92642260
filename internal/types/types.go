package types

import (
	"encoding/json"
	"fmt"
	"image"
)

// TrinketOffset separates trinket ids from item ids in the shared id space.
const TrinketOffset = 10000

// Kind distinguishes collectibles from trinkets.
type Kind int

const (
	Item Kind = iota
	Trinket
)

func (k Kind) String() string {
	switch k {
	case Item:
		return "Item"
	case Trinket:
		return "Trinket"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalJSON writes the kind as "Item" or "Trinket" so the description cache stays readable.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "Item":
		*k = Item
	case "Trinket":
		*k = Trinket
	default:
		return fmt.Errorf("unknown item kind %q", s)
	}
	return nil
}

// UniqueID maps a raw per-kind id into the shared id space.
func UniqueID(kind Kind, raw uint32) uint32 {
	if kind == Trinket {
		return raw + TrinketOffset
	}
	return raw
}

// Template is a catalog sprite: grayscale raster plus a same-sized weight mask.
// Templates are immutable after loading and shared by every worker.
type Template struct {
	ID    uint32
	Name  string
	Image *image.Gray
	Mask  *image.Gray
}

// Size returns the template's width and height.
func (t *Template) Size() image.Point {
	return t.Image.Bounds().Size()
}

// MatchResult is a detection of one template in one frame.
type MatchResult struct {
	TemplateID uint32
	Score      float64
	TopLeft    image.Point
	Size       image.Point
}

// Description is the display metadata for a catalog id.
// JSON tags match the on-disk cache layout.
type Description struct {
	Title      string   `json:"item_title"`
	ID         uint32   `json:"id"`
	Kind       Kind     `json:"item_type"`
	Quote      string   `json:"quote"`
	Paragraphs []string `json:"descriptions"`
}

// DescriptionSet is the root object of the description cache file.
type DescriptionSet struct {
	Items []Description `json:"items"`
}
