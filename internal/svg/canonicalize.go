// Package svg canonicalizes tracer output.
//
// The tracer may return a bare fragment, a document with a prolog, or a root
// element that only declares width and height. Canonicalize turns all of these
// into a single <svg> root with a viewBox, applies the requested path colour,
// and normalizes the background. Every step works on start tags only, so path
// data and element content pass through untouched.
package svg

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DefaultSize is the width and height assumed when a document states neither.
const DefaultSize = 1024

const svgNamespace = "http://www.w3.org/2000/svg"

// Document is canonical SVG markup with its resolved canvas size.
type Document struct {
	SVG    string  `json:"svg"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Options control Canonicalize.
type Options struct {
	// LineColor becomes the fill of every path. Empty leaves paths alone.
	LineColor string

	// Transparent suppresses the background rectangle.
	Transparent bool

	// Background is the fill of the injected rectangle.
	Background string
}

// Canonicalize runs the fixed pipeline Coerce, EnsureViewBox, Recolor,
// StripBackground and, unless opts.Transparent is set, InjectBackground.
func Canonicalize(raw string, opts Options) Document {
	doc := EnsureViewBox(Coerce(raw))

	out := doc.SVG
	if opts.LineColor != "" {
		out = Recolor(out, opts.LineColor)
	}
	out = StripBackground(out, doc.Width, doc.Height)
	if !opts.Transparent {
		out = InjectBackground(out, doc.Width, doc.Height, opts.Background)
	}

	doc.SVG = out
	return doc
}

// Coerce guarantees the markup starts with an <svg> root. Leading XML
// declarations, doctypes and comments are dropped. Anything else that is not
// an svg root is wrapped in a default 1024x1024 root.
func Coerce(raw string) string {
	s := stripProlog(raw)
	if isSVGRoot(s) {
		return s
	}
	return fmt.Sprintf(`<svg xmlns="%s" width="%d" height="%d" viewBox="0 0 %d %d">%s</svg>`,
		svgNamespace, DefaultSize, DefaultSize, DefaultSize, DefaultSize, s)
}

func stripProlog(raw string) string {
	s := strings.TrimSpace(raw)
	for {
		switch {
		case strings.HasPrefix(s, "<?"):
			s = s[skipPast(s, 2, "?>"):]
		case strings.HasPrefix(s, "<!--"):
			s = s[skipPast(s, 4, "-->"):]
		case len(s) >= 9 && strings.EqualFold(s[:9], "<!DOCTYPE"):
			s = s[skipDoctype(s):]
		default:
			return s
		}
		s = strings.TrimSpace(s)
	}
}

// skipDoctype returns the offset just past a doctype, including any internal
// subset in brackets.
func skipDoctype(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
		case '>':
			if depth <= 0 {
				return i + 1
			}
		}
	}
	return len(s)
}

func isSVGRoot(s string) bool {
	if len(s) < 4 || !strings.EqualFold(s[:4], "<svg") {
		return false
	}
	return len(s) == 4 || !isNameChar(s[4])
}

// EnsureViewBox resolves the canvas size of the root and makes sure it has a
// viewBox. Width and height come from the root's width and height attributes
// (plain numbers with an optional px unit); when either is missing the
// viewBox size is used, then DefaultSize.
//
// A root without a viewBox gets viewBox="0 0 W H" as its first attribute,
// with W and H rounded to integers. The width and height attributes are
// removed either way, so the result scales to its container. Applying
// EnsureViewBox to its own output changes nothing.
func EnsureViewBox(markup string) Document {
	root, ok := findTag(markup, 0, "svg")
	if !ok {
		return Document{SVG: markup, Width: DefaultSize, Height: DefaultSize}
	}

	w, wok := lengthAttr(&root, "width")
	h, hok := lengthAttr(&root, "height")

	vb, hasViewBox := root.Get("viewBox")
	if !wok || !hok {
		vw, vh, vok := parseViewBox(vb)
		if !wok {
			w = DefaultSize
			if hasViewBox && vok {
				w = vw
			}
		}
		if !hok {
			h = DefaultSize
			if hasViewBox && vok {
				h = vh
			}
		}
	}

	changed := false
	if !hasViewBox {
		root.Prepend("viewBox", fmt.Sprintf("0 0 %d %d", int64(math.Round(w)), int64(math.Round(h))))
		changed = true
	}
	if root.Remove("width") {
		changed = true
	}
	if root.Remove("height") {
		changed = true
	}
	if changed {
		markup = replaceSpan(markup, root.Start, root.End, root.String())
	}

	return Document{SVG: markup, Width: w, Height: h}
}

func lengthAttr(t *startTag, name string) (float64, bool) {
	v, ok := t.Get(name)
	if !ok {
		return 0, false
	}
	return parseLength(v)
}

// parseLength accepts a non-negative number with an optional px unit.
func parseLength(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && strings.EqualFold(v[len(v)-2:], "px") {
		v = strings.TrimSpace(v[:len(v)-2])
	}
	if v == "" || v[0] == '+' || v[0] == '-' {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

var viewBoxSep = regexp.MustCompile(`[\s,]+`)

// parseViewBox returns the width and height of a "min-x min-y w h" viewBox.
func parseViewBox(v string) (float64, float64, bool) {
	fields := viewBoxSep.Split(strings.TrimSpace(v), -1)
	if len(fields) != 4 {
		return 0, 0, false
	}
	w, err := strconv.ParseFloat(fields[2], 64)
	if err != nil || !(w > 0) || math.IsInf(w, 0) {
		return 0, 0, false
	}
	h, err := strconv.ParseFloat(fields[3], 64)
	if err != nil || !(h > 0) || math.IsInf(h, 0) {
		return 0, 0, false
	}
	return w, h, true
}

// Recolor sets the fill of every <path> to color, replacing an existing fill
// or appending one. Other elements are left alone.
func Recolor(markup, color string) string {
	value := escapeAttr(color)

	var b strings.Builder
	last := 0
	from := 0
	for {
		tag, ok := findTag(markup, from, "path")
		if !ok {
			break
		}
		tag.Set("fill", value)
		b.WriteString(markup[last:tag.Start])
		b.WriteString(tag.String())
		last = tag.End
		from = tag.End
	}
	if last == 0 {
		return markup
	}
	b.WriteString(markup[last:])
	return b.String()
}

// StripBackground removes every <rect> that paints a white full-canvas
// background: x and y absent or zero, width and height either both "100%"
// or numerically equal to w and h, and a white fill. A matching rect written
// as <rect ...></rect> loses its end tag too.
func StripBackground(markup string, w, h float64) string {
	from := 0
	for {
		tag, ok := findTag(markup, from, "rect")
		if !ok {
			return markup
		}
		if !isBackgroundRect(&tag, w, h) {
			from = tag.End
			continue
		}

		end := tag.End
		if !tag.SelfClosing {
			end = skipEndTag(markup, end, "rect")
		}
		markup = replaceSpan(markup, tag.Start, end, "")
		from = tag.Start
	}
}

// skipEndTag returns the offset past "</name>" when it follows i, allowing
// whitespace in between; otherwise i.
func skipEndTag(markup string, i int, name string) int {
	p := skipSpace(markup, i)
	if !strings.HasPrefix(markup[p:], "</") {
		return i
	}
	p += 2
	if len(markup) < p+len(name) || !strings.EqualFold(markup[p:p+len(name)], name) {
		return i
	}
	p = skipSpace(markup, p+len(name))
	if p < len(markup) && markup[p] == '>' {
		return p + 1
	}
	return i
}

func isBackgroundRect(t *startTag, w, h float64) bool {
	if !isOrigin(t, "x") || !isOrigin(t, "y") {
		return false
	}

	fill, ok := t.Get("fill")
	if !ok || !IsWhite(fill) {
		return false
	}

	rw, wok := t.Get("width")
	rh, hok := t.Get("height")
	if !wok || !hok {
		return false
	}
	if strings.TrimSpace(rw) == "100%" && strings.TrimSpace(rh) == "100%" {
		return true
	}
	nw, ok1 := parseLength(rw)
	nh, ok2 := parseLength(rh)
	return ok1 && ok2 && nw == w && nh == h
}

func isOrigin(t *startTag, name string) bool {
	v, ok := t.Get(name)
	if !ok {
		return true
	}
	v = strings.TrimSpace(v)
	if v == "0%" {
		return true
	}
	f, ok := parseLength(v)
	return ok && f == 0
}

var whites = map[string]bool{
	"#ffffff":             true,
	"#fff":                true,
	"white":               true,
	"rgb(255,255,255)":    true,
	"rgba(255,255,255,1)": true,
}

// IsWhite reports whether a fill value spells white in one of the accepted
// forms: #ffffff, #fff, white, rgb(255,255,255) or rgba(255,255,255,1),
// ignoring case and whitespace.
func IsWhite(fill string) bool {
	compact := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' {
			return -1
		}
		return r
	}, strings.ToLower(fill))
	return whites[compact]
}

// InjectBackground inserts a full-canvas rectangle filled with color
// immediately after the root start tag, so it paints beneath all content.
// A self-closing root is opened so the rectangle has somewhere to go.
func InjectBackground(markup string, w, h float64, color string) string {
	root, ok := findTag(markup, 0, "svg")
	if !ok {
		return markup
	}
	rect := fmt.Sprintf(`<rect x="0" y="0" width="%s" height="%s" fill="%s"/>`,
		formatNumber(w), formatNumber(h), escapeAttr(color))
	if root.SelfClosing {
		root.SelfClosing = false
		return markup[:root.Start] + root.String() + rect + "</svg>" + markup[root.End:]
	}
	return markup[:root.End] + rect + markup[root.End:]
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	`"`, "&quot;",
	"<", "&lt;",
	">", "&gt;",
)

func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}
