package cmd

import (
	"context"
	"log/slog"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Bitlatte/blogserve/internal/cache"
	"github.com/Bitlatte/blogserve/internal/config"
	"github.com/Bitlatte/blogserve/internal/content"
	"github.com/Bitlatte/blogserve/internal/logging"
	"github.com/Bitlatte/blogserve/internal/render"
	"github.com/Bitlatte/blogserve/internal/site"
)

var logEnv = logging.Discard()

// app is the set of collaborators shared by the commands.
type app struct {
	static  content.Loader
	builder *site.Builder
	index   *site.Index
	cache   *cache.Cache
	tracing *sdktrace.TracerProvider
	logger  *slog.Logger
}

func newApp(ctx context.Context, cfg config.Config, env logging.Env) (*app, error) {
	renderer := render.New(
		render.WithHighlightStyle(cfg.HighlightStyle),
		render.WithHardWraps(cfg.HardWraps),
	)

	layout, err := site.LoadLayout(cfg.LayoutsDir)
	if err != nil {
		return nil, err
	}

	contentLoader := content.NewDirLoader(cfg.ContentDir)
	builder, err := site.NewBuilder(ctx, site.Options{
		SiteTitle: cfg.SiteTitle,
		BaseURL:   cfg.BaseURL,
		Content:   contentLoader,
		Renderer:  renderer,
		Layout:    layout,
	})
	if err != nil {
		return nil, err
	}

	index := site.NewIndex(contentLoader, renderer, env.Logger)
	if err := index.Reload(ctx); err != nil {
		return nil, err
	}

	tracing := logging.NewTracerProvider(env.Logger)
	return &app{
		static:  content.NewDirLoader(cfg.StaticDir),
		builder: builder,
		index:   index,
		cache:   cache.New(builder.Post, cache.WithTracerProvider(tracing)),
		tracing: tracing,
		logger:  env.Logger,
	}, nil
}

// close flushes the spans still held by the tracer provider.
func (a *app) close(ctx context.Context) {
	if err := a.tracing.Shutdown(context.WithoutCancel(ctx)); err != nil {
		a.logger.Warn("tracer shutdown failed", "error", err)
	}
}
