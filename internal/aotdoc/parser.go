// Package aotdoc parses AOT XML export documents into raw structural
// records. The parser favors resilience: missing attributes fall back to
// child elements, unknown elements are skipped, and records that cannot be
// interpreted are counted as diagnostics instead of failing the document.
// It returns an error only for stream-level I/O or fatal XML syntax
// failures that prevent reading further.
package aotdoc

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aotgraph/aotgraph/internal/diag"
)

const stage = "parse"

// DefaultModel is used when a document declares no model or package scope.
// Callers with out-of-band model metadata (a bundle descriptor) may replace
// it after parsing.
const DefaultModel = "UNKNOWN"

// element is a generic XML subtree. Decoding into it tolerates unknown and
// out-of-order children.
type element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []element  `xml:",any"`
	Text     string     `xml:",chardata"`
}

// attr returns the first attribute whose local name matches any of the
// given names, case-insensitively.
func (e *element) attr(names ...string) string {
	for _, a := range e.Attrs {
		for _, n := range names {
			if strings.EqualFold(a.Name.Local, n) {
				return strings.TrimSpace(a.Value)
			}
		}
	}
	return ""
}

// childText returns the trimmed text of the first direct child matching any
// of the given names, case-insensitively.
func (e *element) childText(names ...string) string {
	for i := range e.Children {
		for _, n := range names {
			if strings.EqualFold(e.Children[i].XMLName.Local, n) {
				return strings.TrimSpace(e.Children[i].Text)
			}
		}
	}
	return ""
}

// child returns the first direct child matching the given name.
func (e *element) child(name string) *element {
	for i := range e.Children {
		if strings.EqualFold(e.Children[i].XMLName.Local, name) {
			return &e.Children[i]
		}
	}
	return nil
}

// Parser parses AOT XML export documents. The zero value is ready to use.
type Parser struct{}

// ParseFile opens and parses one document from disk.
func (p *Parser) ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()
	return p.Parse(f, path)
}

// Parse reads one export document from r. The path is used only for
// diagnostics. Each call reparses from the beginning of the stream.
func (p *Parser) Parse(r io.Reader, path string) (*Document, error) {
	doc := &Document{Path: path}

	dec := xml.NewDecoder(r)
	// Exports occasionally carry stray entities and mismatched closers.
	dec.Strict = false

	type scope struct{ model, pkg string }
	stack := []scope{{model: DefaultModel}}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read document %s: %w", path, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			tag := strings.ToLower(t.Name.Local)
			cur := stack[len(stack)-1]

			switch tag {
			case "axmodel", "model", "package":
				name := attrValue(t, "Name", "name")
				next := cur
				if name != "" {
					next.model = name
					next.pkg = name
					if doc.Model == "" {
						doc.Model = name
					}
				}
				stack = append(stack, next)

			case "axclass", "class":
				var el element
				if err := dec.DecodeElement(&el, &t); err != nil {
					return nil, fmt.Errorf("read document %s: %w", path, err)
				}
				p.parseClass(&el, cur.model, cur.pkg, doc)

			case "axtable", "table":
				var el element
				if err := dec.DecodeElement(&el, &t); err != nil {
					return nil, fmt.Errorf("read document %s: %w", path, err)
				}
				p.parseTable(&el, cur.model, cur.pkg, doc)

			default:
				// Container elements are descended into; everything else at
				// document level is an unknown wrapper we pass through.
				stack = append(stack, cur)
			}

		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	return doc, nil
}

func (p *Parser) parseClass(el *element, model, pkg string, doc *Document) {
	name := el.attr("Name", "name")
	if name == "" {
		name = el.childText("Name")
	}
	if name == "" {
		doc.Diagnostics = append(doc.Diagnostics, diag.New(stage, diag.KindMalformedRecord,
			doc.Path, "class element missing name"))
		return
	}

	cls := RawClass{
		Name:    name,
		Model:   orDefault(model),
		Package: pkg,
		Layer:   el.attr("Layer"),
		Extends: firstNonEmpty(el.childText("Extends"), el.attr("Extends")),
	}

	for _, me := range methodElements(el) {
		m, ok := p.parseMethod(&me, name, doc)
		if ok {
			cls.Methods = append(cls.Methods, m)
		}
	}

	doc.Classes = append(doc.Classes, cls)
}

func (p *Parser) parseMethod(el *element, className string, doc *Document) (RawMethod, bool) {
	name := el.attr("Name", "name")
	if name == "" {
		name = el.childText("Name")
	}
	if name == "" {
		doc.Diagnostics = append(doc.Diagnostics, diag.New(stage, diag.KindMalformedRecord,
			className, "method element missing name"))
		return RawMethod{}, false
	}

	source := el.childText("Source")
	if source == "" {
		source = el.childText("Code")
	}

	return RawMethod{
		Name:   name,
		Access: firstNonEmpty(el.attr("Access", "Modifier"), el.childText("Access")),
		Static: parseBool(firstNonEmpty(el.attr("Static", "IsStatic"), el.childText("Static"))),
		Source: source,
	}, true
}

func (p *Parser) parseTable(el *element, model, pkg string, doc *Document) {
	name := el.attr("Name", "name")
	if name == "" {
		name = el.childText("Name")
	}
	if name == "" {
		doc.Diagnostics = append(doc.Diagnostics, diag.New(stage, diag.KindMalformedRecord,
			doc.Path, "table element missing name"))
		return
	}

	tbl := RawTable{
		Name:    name,
		Model:   orDefault(model),
		Package: pkg,
		Layer:   el.attr("Layer"),
	}

	for _, fe := range fieldElements(el, doc, name) {
		fname := fe.attr("Name", "name")
		if fname == "" {
			fname = fe.childText("Name")
		}
		if fname == "" {
			doc.Diagnostics = append(doc.Diagnostics, diag.New(stage, diag.KindMalformedRecord,
				name, "field element missing name"))
			continue
		}
		tbl.Fields = append(tbl.Fields, RawField{
			Name:             fname,
			Type:             firstNonEmpty(fe.attr("Type"), fe.childText("Type")),
			ExtendedDataType: firstNonEmpty(fe.attr("ExtendedDataType"), fe.childText("ExtendedDataType")),
		})
	}

	doc.Tables = append(doc.Tables, tbl)
}

// methodElements locates method declarations under a class element,
// accepting both the Methods container form and flat AxMethod/Method
// children.
func methodElements(el *element) []element {
	if c := el.child("Methods"); c != nil {
		var out []element
		for _, ch := range c.Children {
			if strings.Contains(strings.ToLower(ch.XMLName.Local), "method") {
				out = append(out, ch)
			}
		}
		return out
	}
	var out []element
	collectByTag(el, "method", &out)
	return out
}

// fieldElements locates field declarations under a table element. Unknown
// children of an explicit Fields container are counted as diagnostics.
func fieldElements(el *element, doc *Document, tableName string) []element {
	if c := el.child("Fields"); c != nil {
		var out []element
		for _, ch := range c.Children {
			if strings.Contains(strings.ToLower(ch.XMLName.Local), "field") {
				out = append(out, ch)
			} else if ch.XMLName.Local != "" {
				doc.Diagnostics = append(doc.Diagnostics, diag.New(stage, diag.KindUnknownElement,
					tableName, "unexpected element <"+ch.XMLName.Local+"> in Fields"))
			}
		}
		return out
	}
	var out []element
	collectByTag(el, "field", &out)
	return out
}

// collectByTag gathers descendant elements whose tag contains the given
// lowercase fragment, without descending into matches.
func collectByTag(el *element, fragment string, out *[]element) {
	for i := range el.Children {
		ch := &el.Children[i]
		if strings.Contains(strings.ToLower(ch.XMLName.Local), fragment) {
			*out = append(*out, *ch)
			continue
		}
		collectByTag(ch, fragment, out)
	}
}

func attrValue(t xml.StartElement, names ...string) string {
	for _, a := range t.Attr {
		for _, n := range names {
			if strings.EqualFold(a.Name.Local, n) {
				return strings.TrimSpace(a.Value)
			}
		}
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true
	}
	return false
}

func orDefault(model string) string {
	if model == "" {
		return DefaultModel
	}
	return model
}

// CountLines estimates a method body's line count, skipping blank lines.
func CountLines(source string) int {
	if source == "" {
		return 0
	}
	n := 0
	for _, line := range strings.Split(source, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
