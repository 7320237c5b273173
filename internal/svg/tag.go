package svg

import (
	"strings"
)

// attr is one attribute of a start tag. Quote is the delimiter the value was
// written with; 0 means the attribute had no value.
type attr struct {
	Name  string
	Value string
	Quote byte
}

// startTag is a parsed start tag together with its byte span in the document.
// Only the tag itself is parsed; element content is never looked at.
type startTag struct {
	Name        string
	Attrs       []attr
	SelfClosing bool

	// Start is the offset of '<', End is one past the closing '>'.
	Start int
	End   int
}

// Get returns the value of the first attribute named name.
func (t *startTag) Get(name string) (string, bool) {
	for _, a := range t.Attrs {
		if strings.EqualFold(a.Name, name) {
			return a.Value, true
		}
	}
	return "", false
}

// Set replaces the value of the first attribute named name, or appends it.
func (t *startTag) Set(name, value string) {
	for i := range t.Attrs {
		if strings.EqualFold(t.Attrs[i].Name, name) {
			t.Attrs[i].Value = value
			t.Attrs[i].Quote = '"'
			return
		}
	}
	t.Attrs = append(t.Attrs, attr{Name: name, Value: value, Quote: '"'})
}

// Prepend inserts an attribute before all others.
func (t *startTag) Prepend(name, value string) {
	t.Attrs = append([]attr{{Name: name, Value: value, Quote: '"'}}, t.Attrs...)
}

// Remove deletes the first attribute named name and reports whether one existed.
func (t *startTag) Remove(name string) bool {
	for i := range t.Attrs {
		if strings.EqualFold(t.Attrs[i].Name, name) {
			t.Attrs = append(t.Attrs[:i], t.Attrs[i+1:]...)
			return true
		}
	}
	return false
}

// String renders the tag with single spaces between attributes. Rendering a
// tag produced by String again yields the same text.
func (t *startTag) String() string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(t.Name)
	for _, a := range t.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		if a.Quote == 0 {
			continue
		}
		q := a.Quote
		if q == '"' && strings.IndexByte(a.Value, '"') >= 0 {
			q = '\''
		}
		b.WriteByte('=')
		b.WriteByte(q)
		b.WriteString(a.Value)
		b.WriteByte(q)
	}
	if t.SelfClosing {
		b.WriteString("/>")
	} else {
		b.WriteByte('>')
	}
	return b.String()
}

// findTag returns the first start tag named name (case-insensitive) at or
// after offset from. Comments, CDATA sections, processing instructions,
// declarations and end tags are skipped.
func findTag(doc string, from int, name string) (startTag, bool) {
	i := from
	for i < len(doc) {
		j := strings.IndexByte(doc[i:], '<')
		if j < 0 {
			return startTag{}, false
		}
		i += j
		rest := doc[i:]

		switch {
		case strings.HasPrefix(rest, "<!--"):
			i = skipPast(doc, i+4, "-->")
			continue
		case strings.HasPrefix(rest, "<![CDATA["):
			i = skipPast(doc, i+9, "]]>")
			continue
		case strings.HasPrefix(rest, "<?"):
			i = skipPast(doc, i+2, "?>")
			continue
		case strings.HasPrefix(rest, "<!"), strings.HasPrefix(rest, "</"):
			i = skipPast(doc, i+2, ">")
			continue
		}

		tag, ok := parseStartTag(doc, i)
		if !ok {
			i++
			continue
		}
		if strings.EqualFold(tag.Name, name) {
			return tag, true
		}
		i = tag.End
	}
	return startTag{}, false
}

// skipPast returns the offset just after the next occurrence of marker at or
// after i, or len(doc) when there is none.
func skipPast(doc string, i int, marker string) int {
	if i > len(doc) {
		return len(doc)
	}
	j := strings.Index(doc[i:], marker)
	if j < 0 {
		return len(doc)
	}
	return i + j + len(marker)
}

// parseStartTag parses the start tag whose '<' is at doc[i].
func parseStartTag(doc string, i int) (startTag, bool) {
	if i+1 >= len(doc) || doc[i] != '<' || !isNameStart(doc[i+1]) {
		return startTag{}, false
	}
	tag := startTag{Start: i}

	p := i + 1
	for p < len(doc) && isNameChar(doc[p]) {
		p++
	}
	tag.Name = doc[i+1 : p]

	for p < len(doc) {
		p = skipSpace(doc, p)
		if p >= len(doc) {
			break
		}
		switch c := doc[p]; {
		case c == '>':
			tag.End = p + 1
			return tag, true
		case c == '/' && p+1 < len(doc) && doc[p+1] == '>':
			tag.SelfClosing = true
			tag.End = p + 2
			return tag, true
		case c == '/' || c == '<':
			if c == '<' {
				// An unterminated tag ran into the next one.
				return startTag{}, false
			}
			p++
			continue
		}

		nameStart := p
		for p < len(doc) && !isSpace(doc[p]) && doc[p] != '=' && doc[p] != '>' && doc[p] != '/' {
			p++
		}
		a := attr{Name: doc[nameStart:p]}

		q := skipSpace(doc, p)
		if q < len(doc) && doc[q] == '=' {
			q = skipSpace(doc, q+1)
			if q >= len(doc) {
				break
			}
			if c := doc[q]; c == '"' || c == '\'' {
				end := strings.IndexByte(doc[q+1:], c)
				if end < 0 {
					return startTag{}, false
				}
				a.Value = doc[q+1 : q+1+end]
				a.Quote = c
				p = q + 1 + end + 1
			} else {
				vs := q
				for q < len(doc) && !isSpace(doc[q]) && doc[q] != '>' {
					q++
				}
				a.Value = doc[vs:q]
				a.Quote = '"'
				p = q
			}
		}
		tag.Attrs = append(tag.Attrs, a)
	}
	return startTag{}, false
}

// replaceSpan returns doc with doc[start:end] replaced by s.
func replaceSpan(doc string, start, end int, s string) string {
	return doc[:start] + s + doc[end:]
}

func skipSpace(doc string, p int) int {
	for p < len(doc) && isSpace(doc[p]) {
		p++
	}
	return p
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isNameStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == ':'
}

func isNameChar(c byte) bool {
	return isNameStart(c) || c >= '0' && c <= '9' || c == '-' || c == '.'
}
