// Package render turns Markdown documents with optional front matter into
// HTML fragments.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/adrg/frontmatter"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v2"

	"github.com/Bitlatte/blogserve/internal/content"
	"github.com/Bitlatte/blogserve/internal/model"
)

// HeaderSeparator is a line that ends a metadata header written without
// fences: everything above it is YAML, everything below it is the body.
const HeaderSeparator = "##"

var dateFormats = []string{"2006-01-02T15:04:05Z07:00", "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

// Document is the result of rendering a source file.
type Document struct {
	Meta  model.Meta
	Title string
	HTML  template.HTML
}

// Renderer converts Markdown to HTML. It holds no mutable state and is safe
// for concurrent use; the same input always yields the same output.
type Renderer struct {
	md goldmark.Markdown
}

// Option configures a Renderer.
type Option func(*options)

type options struct {
	style     string
	hardWraps bool
}

// WithHighlightStyle sets the chroma style name used for fenced code.
func WithHighlightStyle(style string) Option {
	return func(o *options) { o.style = style }
}

// WithHardWraps renders newlines inside paragraphs as <br>.
func WithHardWraps(enabled bool) Option {
	return func(o *options) { o.hardWraps = enabled }
}

// New builds a Renderer with GFM, footnotes, heading IDs and
// class-based syntax highlighting.
func New(opts ...Option) *Renderer {
	o := options{style: "github", hardWraps: true}
	for _, opt := range opts {
		opt(&o)
	}

	var rendererOpts []goldmark.Option
	if o.hardWraps {
		rendererOpts = append(rendererOpts, goldmark.WithRendererOptions(gmhtml.WithHardWraps()))
	}

	md := goldmark.New(append([]goldmark.Option{
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			highlighting.NewHighlighting(
				highlighting.WithStyle(o.style),
				highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	}, rendererOpts...)...)

	return &Renderer{md: md}
}

// Render parses src, the contents of the resource at name, into a Document.
// Malformed front matter and undecodable text yield a *content.RenderError.
func (r *Renderer) Render(name string, src []byte) (Document, error) {
	meta, body, err := splitFrontMatter(name, src)
	if err != nil {
		return Document{}, err
	}

	doc := r.md.Parser().Parse(text.NewReader(body))

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, body, doc); err != nil {
		return Document{}, &content.RenderError{Path: name, Detail: "markdown conversion failed", Err: err}
	}

	return Document{
		Meta:  meta,
		Title: title(name, meta, doc, body),
		HTML:  template.HTML(buf.String()),
	}, nil
}

// ParseMeta reads only the metadata of src and resolves its title, skipping
// HTML conversion.
func (r *Renderer) ParseMeta(name string, src []byte) (model.Meta, error) {
	meta, body, err := splitFrontMatter(name, src)
	if err != nil {
		return model.Meta{}, err
	}
	if meta.Title == "" {
		doc := r.md.Parser().Parse(text.NewReader(body))
		meta.Title = title(name, meta, doc, body)
	}
	return meta, nil
}

type frontMatter struct {
	Title       string   `yaml:"title"`
	Date        string   `yaml:"date"`
	Description string   `yaml:"description"`
	Summary     string   `yaml:"summary"`
	Tags        []string `yaml:"tags"`
	Draft       bool     `yaml:"draft"`
}

func splitFrontMatter(name string, src []byte) (model.Meta, []byte, error) {
	if !utf8.Valid(src) {
		return model.Meta{}, nil, &content.RenderError{Path: name, Detail: "document is not valid UTF-8"}
	}

	src = bytes.TrimPrefix(src, byteOrderMark)

	var fm frontMatter
	var body []byte
	switch {
	case isFence(firstLine(src)):
		if _, _, closed := cutLine(src[len(firstLine(src)):], fence); !closed {
			return model.Meta{}, nil, &content.RenderError{Path: name, Detail: "unterminated front matter"}
		}
		rest, err := frontmatter.Parse(bytes.NewReader(src), &fm)
		if err != nil {
			return model.Meta{}, nil, &content.RenderError{Path: name, Detail: "malformed front matter", Err: err}
		}
		body = rest
	default:
		header, rest, found := cutHeader(src)
		if !found {
			body = src
			break
		}
		if err := yaml.Unmarshal(header, &fm); err != nil {
			return model.Meta{}, nil, &content.RenderError{Path: name, Detail: "malformed metadata header", Err: err}
		}
		body = rest
	}

	meta := model.Meta{
		Title:       strings.TrimSpace(fm.Title),
		Description: strings.TrimSpace(fm.Description),
		Tags:        fm.Tags,
		Draft:       fm.Draft,
	}
	if meta.Description == "" {
		meta.Description = strings.TrimSpace(fm.Summary)
	}
	if fm.Date != "" {
		date, err := parseDate(fm.Date)
		if err != nil {
			return model.Meta{}, nil, &content.RenderError{Path: name, Detail: fmt.Sprintf("invalid date %q", fm.Date), Err: err}
		}
		meta.Date = date
	}
	return meta, body, nil
}

const fence = "---"

var byteOrderMark = []byte("\ufeff")

// firstLine returns the first line of src including its newline.
func firstLine(src []byte) []byte {
	if i := bytes.IndexByte(src, '\n'); i >= 0 {
		return src[:i+1]
	}
	return src
}

func isFence(line []byte) bool {
	return string(bytes.TrimRight(line, "\r\n")) == fence
}

// cutHeader splits src around the first line that is exactly HeaderSeparator.
func cutHeader(src []byte) (header, body []byte, found bool) {
	return cutLine(src, HeaderSeparator)
}

// cutLine splits src around the first line that is exactly marker.
func cutLine(src []byte, marker string) (before, after []byte, found bool) {
	rest := src
	offset := 0
	for len(rest) > 0 {
		line, next, hasNext := bytes.Cut(rest, []byte("\n"))
		if string(bytes.TrimRight(line, "\r")) == marker {
			end := offset + len(line)
			if hasNext {
				end++
			}
			return src[:offset], src[end:], true
		}
		if !hasNext {
			break
		}
		offset += len(line) + 1
		rest = next
	}
	return nil, nil, false
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, format := range dateFormats {
		t, err := time.Parse(format, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// title picks the front matter title, then the first level-one heading, then
// a title made from the file name.
func title(name string, meta model.Meta, doc ast.Node, source []byte) string {
	if meta.Title != "" {
		return meta.Title
	}
	if h := firstHeading(doc, source); h != "" {
		return h
	}
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	words := strings.ReplaceAll(strings.ReplaceAll(base, "-", " "), "_", " ")
	return cases.Title(language.English).String(words)
}

func firstHeading(doc ast.Node, source []byte) string {
	var found string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 {
			found = strings.TrimSpace(nodeText(h, source))
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return found
}

func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}
