// Package catalog loads template sprites from an unpacked game resource tree.
package catalog

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andresmejia3/itemwatch/internal/types"
	"github.com/schollz/progressbar/v3"
)

// Sprite directories relative to the catalog root.
var (
	CollectiblesDir = filepath.Join("graphics_unpack", "resources", "gfx", "items", "collectibles")
	TrinketsDir     = filepath.Join("graphics_unpack", "resources", "gfx", "items", "trinkets")
)

// ParseName extracts the unique id from a "<kind>_<id>_<suffix>" file name.
// ok is false for names that do not have exactly three segments; such files are skipped.
// A three-segment name with a non-numeric id is an error.
func ParseName(name string) (id uint32, ok bool, err error) {
	parts := strings.Split(name, "_")
	if len(parts) != 3 {
		return 0, false, nil
	}
	raw, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, false, fmt.Errorf("invalid id in %q: %w", name, err)
	}

	kind := types.Item
	if parts[0] == "trinket" {
		kind = types.Trinket
	} else if raw >= types.TrinketOffset {
		return 0, false, fmt.Errorf("item id %d in %q collides with the trinket range", raw, name)
	}
	return types.UniqueID(kind, uint32(raw)), true, nil
}

// Load reads every sprite under the collectibles and trinkets directories of root.
// Progress is drawn to w; pass nil to disable it. Any unreadable directory or image,
// malformed id, or duplicate id fails the whole load.
func Load(root string, w io.Writer) ([]*types.Template, error) {
	var paths []string
	for _, dir := range []string{CollectiblesDir, TrinketsDir} {
		full := filepath.Join(root, dir)
		entries, err := os.ReadDir(full)
		if err != nil {
			return nil, fmt.Errorf("failed to read sprite directory %s: %w", full, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			paths = append(paths, filepath.Join(full, e.Name()))
		}
	}

	if w == nil {
		w = io.Discard
	}
	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("📦 Loading catalog"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
	)
	defer bar.Finish()

	seen := make(map[uint32]string)
	var templates []*types.Template
	for _, p := range paths {
		bar.Add(1)

		name := filepath.Base(p)
		id, ok, err := ParseName(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate id %d in %s and %s", id, prev, name)
		}
		seen[id] = name

		img, mask, err := readSprite(p)
		if err != nil {
			return nil, err
		}
		templates = append(templates, &types.Template{ID: id, Name: name, Image: img, Mask: mask})
	}
	return templates, nil
}

func readSprite(path string) (*image.Gray, *image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open sprite: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	img, mask := Split(src)
	return img, mask, nil
}

// Split separates an image into a luma raster and an alpha mask.
// Luma is computed on the non-premultiplied color so transparent pixels keep their value.
// Images without an alpha channel get a fully opaque mask.
func Split(src image.Image) (*image.Gray, *image.Gray) {
	b := src.Bounds()
	rect := image.Rect(0, 0, b.Dx(), b.Dy())
	img := image.NewGray(rect)
	mask := image.NewGray(rect)

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			g := color.GrayModel.Convert(color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xff}).(color.Gray)
			img.SetGray(x, y, g)
			mask.SetGray(x, y, color.Gray{Y: c.A})
		}
	}
	return img, mask
}
