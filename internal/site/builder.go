// Package site assembles complete pages from rendered content and keeps the
// listing of known posts.
package site

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/Bitlatte/blogserve/internal/content"
	"github.com/Bitlatte/blogserve/internal/model"
	"github.com/Bitlatte/blogserve/internal/render"
)

// Static page names.
const (
	PageAbout   = "about"
	PageContact = "contact"
)

var staticPages = []string{PageAbout, PageContact}

// Options configure a Builder.
type Options struct {
	SiteTitle string
	BaseURL   string
	// Content loads posts and optional pages/<name>.md overrides of the
	// static pages.
	Content  content.Loader
	Renderer *render.Renderer
	Layout   *Layout
}

// Builder assembles full pages: the content is rendered and then wrapped in
// the layout.
type Builder struct {
	siteTitle string
	baseURL   string
	content   content.Loader
	renderer  *render.Renderer
	layout    *Layout

	static map[string][]byte
}

// NewBuilder renders the static pages up front so serving them never touches
// the loader again.
func NewBuilder(ctx context.Context, opts Options) (*Builder, error) {
	if opts.Content == nil || opts.Renderer == nil {
		return nil, errors.New("site: builder needs a content loader and a renderer")
	}
	if opts.Layout == nil {
		opts.Layout = DefaultLayout()
	}

	b := &Builder{
		siteTitle: opts.SiteTitle,
		baseURL:   opts.BaseURL,
		content:   opts.Content,
		renderer:  opts.Renderer,
		layout:    opts.Layout,
		static:    make(map[string][]byte, len(staticPages)),
	}

	for _, name := range staticPages {
		page, err := b.renderStatic(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to build static page '%s': %w", name, err)
		}
		b.static[name] = page
	}
	return b, nil
}

func (b *Builder) renderStatic(ctx context.Context, name string) ([]byte, error) {
	logical := "pages/" + name + model.PostExt
	src, err := b.content.Load(ctx, logical)
	if content.KindOf(err) == content.KindNotFound {
		src, err = fs.ReadFile(embedded, logical)
	}
	if err != nil {
		return nil, err
	}

	doc, err := b.renderer.Render(logical, src)
	if err != nil {
		return nil, err
	}
	return b.layout.Page(model.PageData{
		SiteTitle: b.siteTitle,
		PageTitle: doc.Title,
		Content:   doc.HTML,
		BaseURL:   b.baseURL,
	})
}

// Post runs the full pipeline for key: load the source, render it and wrap
// it in the layout. It has the signature of cache.Pipeline.
func (b *Builder) Post(ctx context.Context, key model.ContentKey) (model.RenderedPage, error) {
	name := key.PostPath()
	src, err := b.content.Load(ctx, name)
	if err != nil {
		return model.RenderedPage{}, err
	}

	doc, err := b.renderer.Render(name, src)
	if err != nil {
		return model.RenderedPage{}, err
	}

	data := model.PageData{
		SiteTitle: b.siteTitle,
		PageTitle: doc.Title,
		Content:   doc.HTML,
		BaseURL:   b.baseURL,
	}
	if !doc.Meta.Date.IsZero() {
		data.Date = doc.Meta.Date.Format("January 2, 2006")
	}
	if len(doc.Meta.Tags) > 0 {
		data.Sidebar, err = fragment("tags", doc.Meta.Tags)
		if err != nil {
			return model.RenderedPage{}, &content.UnexpectedError{Op: "render sidebar for " + name, Err: err}
		}
	}

	html, err := b.layout.Page(data)
	if err != nil {
		return model.RenderedPage{}, &content.UnexpectedError{Op: "layout " + name, Err: err}
	}

	return model.RenderedPage{
		Key:   key,
		Title: doc.Title,
		Meta:  doc.Meta,
		Body:  doc.HTML,
		HTML:  html,
	}, nil
}

// Home renders the home page listing posts in the given order.
func (b *Builder) Home(posts []model.PostSummary) ([]byte, error) {
	list, err := fragment("home", posts)
	if err != nil {
		return nil, err
	}
	return b.layout.Page(model.PageData{
		SiteTitle: b.siteTitle,
		Content:   list,
		BaseURL:   b.baseURL,
		Posts:     posts,
	})
}

// Static returns the prebuilt page called name.
func (b *Builder) Static(name string) ([]byte, bool) {
	page, ok := b.static[name]
	return page, ok
}

// Error renders a page explaining a failure to the visitor.
func (b *Builder) Error(title, message string) ([]byte, error) {
	body, err := fragment("error", struct{ Title, Message string }{title, message})
	if err != nil {
		return nil, err
	}
	return b.layout.Page(model.PageData{
		SiteTitle: b.siteTitle,
		PageTitle: title,
		Content:   body,
		BaseURL:   b.baseURL,
	})
}
