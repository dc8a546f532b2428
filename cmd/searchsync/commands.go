package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchsync/internal/catalog"
	"github.com/kailas-cloud/searchsync/internal/usecase/health"
	"github.com/kailas-cloud/searchsync/internal/usecase/indexing"
	"github.com/kailas-cloud/searchsync/internal/usecase/reindex"
	"github.com/kailas-cloud/searchsync/internal/usecase/search"
	"github.com/kailas-cloud/searchsync/internal/version"

	chiTransport "github.com/kailas-cloud/searchsync/internal/transport/chi"
)

type migrateCommand struct{}

func (c *migrateCommand) Execute(_ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := catalog.AutoMigrate(a.db); err != nil {
		return err
	}
	a.logger.Info("Catalog migrated")
	return nil
}

type checkCommand struct{}

func (c *checkCommand) Execute(_ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	warnings := a.reg.Check()
	for _, w := range warnings {
		printf("%s\n", w)
	}
	if len(warnings) > 0 {
		return fmt.Errorf("%d search field warnings", len(warnings))
	}
	printf("ok: %d indexed models\n", len(a.reg.AllIndexedModels()))
	return nil
}

type versionCommand struct{}

func (c *versionCommand) Execute(_ []string) error {
	printf("searchsync %s\n", version.String())
	return nil
}

type reindexCommand struct {
	Backend string `short:"b" long:"backend" description:"Only rebuild this backend, manual backends included"`
}

func (c *reindexCommand) Execute(_ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.openBackends(ctx); err != nil {
		return err
	}

	reports, err := reindex.New(a.reg, a.db, a.backends, a.logger.Named("reindex")).
		WithChunkSize(a.cfg.Search.ChunkSize).
		Run(ctx, c.Backend)
	if err != nil {
		return err
	}

	return writeReports(os.Stdout, reports)
}

// writeReports prints one row per report and fails when any model had an
// error or rows that could not be written.
func writeReports(w io.Writer, reports []reindex.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "BACKEND\tMODEL\tINDEXED\tFAILED\tERROR")
	var failed int
	for _, r := range reports {
		msg := "-"
		if r.Err != nil {
			msg = r.Err.Error()
		}
		if r.Err != nil || r.Failed > 0 {
			failed++
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.Backend, r.Model, r.Indexed, r.Failed, msg)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("reindex failed for %d of %d models", failed, len(reports))
	}
	return nil
}

type serveCommand struct {
	Port    int  `short:"p" long:"port" description:"Override ops.port"`
	Migrate bool `long:"migrate" description:"Run catalog migrations before serving"`
}

func (c *serveCommand) Execute(_ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if c.Migrate {
		if err := catalog.AutoMigrate(a.db); err != nil {
			return err
		}
	}
	if err := a.openBackends(ctx); err != nil {
		return err
	}

	dispatcher := indexing.New(a.reg, a.db, a.backends, a.logger.Named("indexing"))
	if err := catalog.InstallSignals(a.db, dispatcher); err != nil {
		return err
	}

	healthSvc := health.New(dbPinger{db: a.db}, a.pingers())
	searchSvc := search.New(a.reg, a.backends, a.logger.Named("search"))
	server := chiTransport.NewServer(healthSvc, searchSvc, a.logger)

	port := a.cfg.Ops.Port
	if c.Port > 0 {
		port = c.Port
	}
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(a.cfg.Ops.APIKeys),
		ReadTimeout:  time.Duration(a.cfg.Ops.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(a.cfg.Ops.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.Ops.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Error during shutdown", zap.Error(err))
	}

	a.logger.Info("Server stopped gracefully")
	return nil
}
