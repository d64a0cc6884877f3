// cmd/build.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Bitlatte/blogserve/internal/config"
	"github.com/Bitlatte/blogserve/internal/logging"
	"github.com/Bitlatte/blogserve/internal/site"
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Exports the blog as static HTML",
	Long: `The build command renders the home page, the static pages and every
published post through the same pipeline the server uses, copies the static
assets, and writes the result to the configured output directory
(default './public/').`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuildProcess(cmd.Context(), appConfig, logEnv)
	},
}

func runBuildProcess(ctx context.Context, cfg config.Config, env logging.Env) error {
	logger := env.Logger
	logger.Info("starting build", slog.String("outputDir", cfg.OutputDir), slog.String("contentDir", cfg.ContentDir))

	a, err := newApp(ctx, cfg, env)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	outputDir := cfg.OutputDir
	if err := os.RemoveAll(outputDir); err != nil {
		return fmt.Errorf("failed to remove output directory '%s': %w", outputDir, err)
	}
	if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create output directory '%s': %w", outputDir, err)
	}

	if _, err := os.Stat(cfg.StaticDir); err == nil {
		if err := copyDirContents(cfg.StaticDir, outputDir); err != nil {
			return fmt.Errorf("failed to copy static assets: %w", err)
		}
		logger.Info("static assets copied", slog.String("from", cfg.StaticDir))
	} else {
		logger.Info("static assets directory not found, skipping copy", slog.String("dir", cfg.StaticDir))
	}

	posts := a.index.Posts()
	home, err := a.builder.Home(posts)
	if err != nil {
		return fmt.Errorf("failed to render home page: %w", err)
	}
	if err := writePage(outputDir, "", home); err != nil {
		return err
	}

	for _, name := range []string{site.PageAbout, site.PageContact} {
		page, _ := a.builder.Static(name)
		if err := writePage(outputDir, name, page); err != nil {
			return err
		}
	}

	failed := 0
	for _, post := range posts {
		page, err := a.cache.Get(ctx, post.Key)
		if err != nil {
			env.Errors.Report(ctx, err)
			failed++
			continue
		}
		if err := writePage(outputDir, string(post.Key), page.HTML); err != nil {
			return err
		}
		logger.Debug("generated post", slog.String("key", string(post.Key)))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d posts failed to render", failed, len(posts))
	}

	logger.Info("build completed", slog.Int("posts", len(posts)), slog.String("outputDir", outputDir))
	return nil
}

// writePage writes page to <outputDir>/<dir>/index.html.
func writePage(outputDir, dir string, page []byte) error {
	outputPath := filepath.Join(outputDir, dir, "index.html")
	if err := os.MkdirAll(filepath.Dir(outputPath), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory for '%s': %w", outputPath, err)
	}
	if err := os.WriteFile(outputPath, page, 0o644); err != nil {
		return fmt.Errorf("failed to write '%s': %w", outputPath, err)
	}
	return nil
}

// copyDirContents recursively copies contents from src to dst.
func copyDirContents(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", path, err)
		}
		dstPath := filepath.Join(dst, relPath)

		if d.IsDir() {
			if err := os.MkdirAll(dstPath, os.ModePerm); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dstPath, err)
			}
			return nil
		}
		if err := copyFile(path, dstPath); err != nil {
			return fmt.Errorf("failed to copy file from %s to %s: %w", path, dstPath, err)
		}
		return nil
	})
}

// copyFile copies a single file from srcFile to dstFile, keeping its mode.
func copyFile(srcFile, dstFile string) error {
	srcF, err := os.Open(srcFile)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", srcFile, err)
	}
	defer srcF.Close()

	info, err := srcF.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file %s: %w", srcFile, err)
	}

	dstF, err := os.OpenFile(dstFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", dstFile, err)
	}
	defer dstF.Close()

	if _, err := io.Copy(dstF, srcF); err != nil {
		return fmt.Errorf("failed to copy data from %s to %s: %w", srcFile, dstFile, err)
	}
	return dstF.Close()
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
