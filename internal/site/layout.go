package site

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Bitlatte/blogserve/internal/model"
)

const baseLayout = "base.html"

//go:embed templates pages
var embedded embed.FS

// Layout wraps page content in the site's header, navigation and footer.
type Layout struct {
	tmpl *template.Template
}

// DefaultLayout returns the layout bundled with the binary.
func DefaultLayout() *Layout {
	tmpl := template.Must(template.ParseFS(embedded, "templates/"+baseLayout, "templates/partials/*.html"))
	return &Layout{tmpl: tmpl}
}

// LoadLayout parses the layouts in dir: base.html first, together with
// everything under partials/, then the remaining .html files so they can
// override blocks. When dir does not exist the default layout is used.
func LoadLayout(dir string) (*Layout, error) {
	if dir == "" {
		return DefaultLayout(), nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return DefaultLayout(), nil
	}

	var layoutFiles []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".html") {
			layoutFiles = append(layoutFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find layout files in '%s': %w", dir, err)
	}

	var basePath string
	var partials, others []string
	for _, f := range layoutFiles {
		switch {
		case filepath.Base(f) == baseLayout && filepath.Dir(f) == filepath.Clean(dir):
			basePath = f
		case strings.HasPrefix(filepath.Dir(f), filepath.Join(dir, "partials")):
			partials = append(partials, f)
		default:
			others = append(others, f)
		}
	}
	if basePath == "" {
		return nil, fmt.Errorf("%s not found directly in layouts directory '%s'", baseLayout, dir)
	}

	tmpl, err := template.ParseFiles(append([]string{basePath}, partials...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s and partials: %w", baseLayout, err)
	}
	if len(others) > 0 {
		tmpl, err = tmpl.ParseFiles(others...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse layout files: %w", err)
		}
	}
	return &Layout{tmpl: tmpl}, nil
}

// Page executes the base layout with data.
func (l *Layout) Page(data model.PageData) ([]byte, error) {
	var buf bytes.Buffer
	if err := l.tmpl.ExecuteTemplate(&buf, baseLayout, data); err != nil {
		return nil, fmt.Errorf("failed to execute layout '%s': %w", baseLayout, err)
	}
	return buf.Bytes(), nil
}

var fragments = template.Must(template.ParseFS(embedded, "templates/fragments.html"))

func fragment(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := fragments.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute fragment '%s': %w", name, err)
	}
	return template.HTML(buf.String()), nil
}
