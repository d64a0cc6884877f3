// Package server routes requests to the content cache, the static pages and
// the assets, and turns every pipeline error into an error page.
package server

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Bitlatte/blogserve/internal/cache"
	"github.com/Bitlatte/blogserve/internal/content"
	"github.com/Bitlatte/blogserve/internal/logging"
	"github.com/Bitlatte/blogserve/internal/model"
	"github.com/Bitlatte/blogserve/internal/site"
)

// ImagesDir is the directory of the static loader served under /images/.
const ImagesDir = "images"

// Options configure a Handler.
type Options struct {
	Env     logging.Env
	Cache   *cache.Cache
	Builder *site.Builder
	Index   *site.Index
	// Static loads /styles.css and /images/<name>.
	Static content.Loader
	// NotFoundStatus is the status of the page served for unrouted paths.
	NotFoundStatus int
}

// Handler serves the site.
type Handler struct {
	env            logging.Env
	cache          *cache.Cache
	builder        *site.Builder
	index          *site.Index
	static         content.Loader
	notFoundStatus int

	router chi.Router
}

// NewHandler wires the routes. It fails if an error kind has no fallback
// page or a collaborator is missing.
func NewHandler(opts Options) (*Handler, error) {
	if err := checkMenders(); err != nil {
		return nil, err
	}
	if opts.Cache == nil || opts.Builder == nil || opts.Index == nil || opts.Static == nil {
		return nil, errors.New("server: handler needs a cache, builder, index and static loader")
	}
	if opts.Env.Logger == nil || opts.Env.Errors == nil {
		opts.Env = logging.Discard()
	}
	if opts.NotFoundStatus == 0 {
		opts.NotFoundStatus = http.StatusNotFound
	}

	h := &Handler{
		env:            opts.Env,
		cache:          opts.Cache,
		builder:        opts.Builder,
		index:          opts.Index,
		static:         opts.Static,
		notFoundStatus: opts.NotFoundStatus,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.env.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)

	r.Get("/", h.home)
	r.Get("/about", h.staticPage(site.PageAbout))
	r.Get("/contact", h.staticPage(site.PageContact))
	r.Get("/styles.css", h.stylesheet)
	r.Get("/images/{name}", h.image)
	r.Get("/{slug}", h.post)
	r.NotFound(h.notFound)
	r.MethodNotAllowed(h.methodNotAllowed)

	h.router = r
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	page, err := h.builder.Home(h.index.Posts())
	if err != nil {
		h.mend(w, r, &content.UnexpectedError{Op: "render home page", Err: err})
		return
	}
	h.writeHTML(w, http.StatusOK, page)
}

func (h *Handler) staticPage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, ok := h.builder.Static(name)
		if !ok {
			h.mend(w, r, &content.UnexpectedError{Op: "static page", Err: fmt.Errorf("page %q was not built", name)})
			return
		}
		h.writeHTML(w, http.StatusOK, page)
	}
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r, "slug")
	if err != nil {
		h.mend(w, r, err)
		return
	}

	// The computation is shared with concurrent requests for the same key,
	// so one client going away must not cancel it for the others.
	page, err := h.cache.Get(context.WithoutCancel(r.Context()), key)
	if err != nil {
		h.mend(w, r, err)
		return
	}
	h.writeHTML(w, http.StatusOK, page.HTML)
}

func (h *Handler) stylesheet(w http.ResponseWriter, r *http.Request) {
	h.asset(w, r, "styles.css")
}

func (h *Handler) image(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r, "name")
	if err != nil {
		h.mend(w, r, err)
		return
	}
	h.asset(w, r, key.AssetPath(ImagesDir))
}

func (h *Handler) asset(w http.ResponseWriter, r *http.Request, name string) {
	data, err := h.static.Load(r.Context(), name)
	if err != nil {
		h.mend(w, r, err)
		return
	}

	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", ctype)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	page, err := h.builder.Error("Not found", fmt.Sprintf("No page lives at %s", r.URL.Path))
	if err != nil {
		h.mend(w, r, &content.UnexpectedError{Op: "render not found page", Err: err})
		return
	}
	h.writeHTML(w, h.notFoundStatus, page)
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "GET, HEAD")
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

func (h *Handler) writeHTML(w http.ResponseWriter, status int, page []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(page)
}

// keyParam validates the URL parameter name as a content key. chi matches on
// the escaped path when the request has one, so the parameter is decoded
// first in that case.
func keyParam(r *http.Request, name string) (model.ContentKey, error) {
	segment := chi.URLParam(r, name)
	if r.URL.RawPath != "" {
		var err error
		segment, err = url.PathUnescape(segment)
		if err != nil {
			return "", &content.InvalidPathError{Path: r.URL.Path, Reason: "malformed escape sequence"}
		}
	}
	return model.ParseKey(segment)
}
