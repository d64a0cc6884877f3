package site

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"

	"github.com/Bitlatte/blogserve/internal/content"
	"github.com/Bitlatte/blogserve/internal/model"
	"github.com/Bitlatte/blogserve/internal/render"
)

type indexEntry struct {
	sum  uint64
	meta model.Meta
}

// Index is the listing of published posts shown on the home page. Metadata
// is parsed once per post and reparsed only when its source changes.
type Index struct {
	content  content.Loader
	renderer *render.Renderer
	logger   *slog.Logger

	reload sync.Mutex
	parsed map[model.ContentKey]indexEntry

	mu    sync.RWMutex
	posts []model.PostSummary
}

// NewIndex returns an empty index; call Reload to fill it.
func NewIndex(loader content.Loader, renderer *render.Renderer, logger *slog.Logger) *Index {
	return &Index{
		content:  loader,
		renderer: renderer,
		logger:   logger,
		parsed:   make(map[model.ContentKey]indexEntry),
	}
}

// Reload rescans the posts directory. Posts whose metadata cannot be read are
// left out and logged; drafts are left out silently.
func (ix *Index) Reload(ctx context.Context) error {
	ix.reload.Lock()
	defer ix.reload.Unlock()

	names, err := ix.content.List(ctx, model.PostsDir)
	if content.KindOf(err) == content.KindNotFound {
		names, err = nil, nil
	}
	if err != nil {
		return err
	}

	seen := make(map[model.ContentKey]indexEntry, len(names))
	posts := make([]model.PostSummary, 0, len(names))
	for _, name := range names {
		key, ok := model.KeyFromPostPath(name)
		if !ok {
			continue
		}

		src, err := ix.content.Load(ctx, name)
		if err != nil {
			ix.logger.Warn("skipping post", slog.String("path", name), slog.Any("error", err))
			continue
		}

		h := fnv.New64a()
		h.Write(src)
		sum := h.Sum64()

		entry, ok := ix.parsed[key]
		if !ok || entry.sum != sum {
			meta, err := ix.renderer.ParseMeta(name, src)
			if err != nil {
				ix.logger.Warn("skipping post", slog.String("path", name), slog.Any("error", err))
				continue
			}
			entry = indexEntry{sum: sum, meta: meta}
		}
		seen[key] = entry

		if entry.meta.Draft {
			continue
		}
		posts = append(posts, model.PostSummary{
			Key:         key,
			Title:       entry.meta.Title,
			Date:        entry.meta.Date,
			Description: entry.meta.Description,
		})
	}

	SortPosts(posts)
	ix.parsed = seen

	ix.mu.Lock()
	ix.posts = posts
	ix.mu.Unlock()

	ix.logger.Debug("post index reloaded", slog.Int("posts", len(posts)))
	return nil
}

// Posts returns a copy of the listing, newest first.
func (ix *Index) Posts() []model.PostSummary {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]model.PostSummary(nil), ix.posts...)
}

// SortPosts orders posts by date, newest first. Undated posts go last; ties
// are broken by key.
func SortPosts(posts []model.PostSummary) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		switch {
		case a.Date.IsZero() != b.Date.IsZero():
			return b.Date.IsZero()
		case !a.Date.Equal(b.Date):
			return a.Date.After(b.Date)
		}
		return a.Key < b.Key
	})
}
