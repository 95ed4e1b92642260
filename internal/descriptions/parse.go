package descriptions

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/andresmejia3/itemwatch/internal/types"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrUnknownClass is returned when an item block contains a paragraph class the parser does not know.
var ErrUnknownClass = errors.New("unknown paragraph class")

// Paragraph classes inside an item block.
const (
	classTitle  = "item-title"
	classID     = "r-itemid"
	classQuote  = "pickup"
	blockMarker = "textbox"
)

var ignoredClasses = map[string]bool{
	"tags":      true,
	"ab-red":    true,
	"r-unlock":  true,
	"r-special": true,
	"abp-red":   true,
}

// Parse extracts item descriptions from the wiki page markup. Each <li> whose
// class contains "textbox" is one record. Records without an explicit
// "ItemID:" or "TrinketID:" label are skipped.
func Parse(r io.Reader) ([]types.Description, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	var out []types.Description
	var walkErr error
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if walkErr != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Li && strings.Contains(attr(n, "class"), blockMarker) {
			d, ok, err := parseBlock(n)
			if err != nil {
				walkErr = err
				return
			}
			if ok {
				out = append(out, d)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}

func parseBlock(li *html.Node) (types.Description, bool, error) {
	var d types.Description
	hasID := false

	for _, p := range paragraphs(li) {
		class, hasClass := attrOk(p, "class")
		if !hasClass {
			d.Paragraphs = append(d.Paragraphs, text(p))
			continue
		}
		switch {
		case class == classTitle:
			d.Title = text(p)
		case class == classID:
			kind, raw, ok, err := parseIDLabel(text(p))
			if err != nil {
				return d, false, err
			}
			if !ok {
				return d, false, nil
			}
			d.Kind = kind
			d.ID = types.UniqueID(kind, raw)
			hasID = true
		case class == classQuote:
			d.Quote = text(p)
		case ignoredClasses[class]:
		default:
			return d, false, fmt.Errorf("%w: %q", ErrUnknownClass, class)
		}
	}
	return d, hasID, nil
}

// parseIDLabel reads "ItemID: 12" or "TrinketID: 5". ok is false for any other label.
func parseIDLabel(s string) (types.Kind, uint32, bool, error) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return 0, 0, false, nil
	}
	var kind types.Kind
	switch fields[0] {
	case "ItemID:":
		kind = types.Item
	case "TrinketID:":
		kind = types.Trinket
	default:
		return 0, 0, false, nil
	}
	raw, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, 0, false, fmt.Errorf("invalid id label %q: %w", s, err)
	}
	return kind, uint32(raw), true, nil
}

// paragraphs returns every <p> under n in document order.
func paragraphs(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.P {
			out = append(out, c)
		}
		out = append(out, paragraphs(c)...)
	}
	return out
}

func text(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func attr(n *html.Node, key string) string {
	v, _ := attrOk(n, key)
	return v
}

func attrOk(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
