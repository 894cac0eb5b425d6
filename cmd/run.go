package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/thiagokokada/branchlens/internal/config"
	"github.com/thiagokokada/branchlens/internal/git"
	"github.com/thiagokokada/branchlens/internal/metrics"
	"github.com/thiagokokada/branchlens/internal/session"
	"github.com/thiagokokada/branchlens/internal/view"
	"github.com/thiagokokada/branchlens/internal/watch"
)

// onceRenderings bounds how often --once redraws while lookups keep failing.
const onceRenderings = 4

const shutdownTimeout = 5 * time.Second

func runSession(ctx context.Context, cfg config.Config, paths []string, once bool, out io.Writer) error {
	files, err := collectFiles(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no files to decorate")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	var renderings, unresolved atomic.Int32
	var finished atomic.Bool
	viewOut := out
	if once {
		viewOut = io.Discard
	}
	dec := view.New(viewOut, files, view.Options{
		RefreshDelay: cfg.RefreshDelay,
		Diff:         cfg.Diff && !once,
		OnRender: func(missing int) {
			if !once {
				return
			}
			if missing > 0 && renderings.Add(1) < onceRenderings {
				return
			}
			if finished.CompareAndSwap(false, true) {
				unresolved.Store(int32(missing))
				cancel()
			}
		},
	})
	defer dec.Stop()

	sess := session.New(git.NewResolver(cfg.Kind()), dec, session.Config{
		DecorationsShown: cfg.Decorations,
		PollTimeout:      cfg.PollTimeout,
		Metrics:          m,
	})
	dec.Bind(sess)
	sess.Init(ctx)
	defer sess.Dispose()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Watch && !once {
		w, err := watch.New(sess, cfg.WatchDelay)
		if err != nil {
			return err
		}
		defer w.Close()
		for _, p := range paths {
			if err := w.Add(p); err != nil {
				return err
			}
		}
		g.Go(func() error { return w.Run(gctx) })
	}
	if cfg.MetricsAddr != "" {
		serveMetrics(gctx, g, cfg.MetricsAddr, reg)
	}

	slog.Debug("session started",
		slog.Int("files", len(files)),
		slog.String("backend", string(cfg.Kind())),
		slog.Bool("watch", cfg.Watch && !once),
	)
	dec.Render()

	<-gctx.Done()
	dec.Stop()
	sess.Close()
	if err := g.Wait(); err != nil {
		return err
	}
	if once {
		fmt.Fprint(out, dec.Last())
		if n := unresolved.Load(); n > 0 {
			return fmt.Errorf("%d of %d files could not be decorated", n, len(files))
		}
	}
	return nil
}

func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, reg *prometheus.Registry) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.NewServeMux(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		slog.Info("serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// collectFiles expands directories into the regular files below them,
// skipping ".git" directories. The result is absolute, sorted and free of
// duplicates.
func collectFiles(paths []string) ([]string, error) {
	files := map[string]struct{}{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files[abs] = struct{}{}
			continue
		}
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				files[path] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}
	return slices.Sorted(maps.Keys(files)), nil
}
