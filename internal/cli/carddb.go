package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mtgcode/mtgls/internal/carddb"
	"github.com/mtgcode/mtgls/internal/cardstore"
	"github.com/mtgcode/mtgls/internal/config"
	"github.com/mtgcode/mtgls/internal/scryfall"
	"github.com/mtgcode/mtgls/internal/ui"
)

// session is a card database wired from the resolved config.
type session struct {
	db       *carddb.DB
	cards    *cardstore.Store
	registry *prometheus.Registry
}

// openSession builds the card database. Nothing is fetched until the
// caller loads it.
func openSession(c *config.Config) (*session, error) {
	client := scryfall.New(scryfall.Options{
		BaseURL:           c.APIBaseURL,
		UserAgent:         c.UserAgent,
		Timeout:           c.RequestTimeout,
		RequestsPerSecond: c.RequestsPerSecond,
		MaxRetries:        c.MaxRetries,
		Logger:            logger,
	})

	s := &session{registry: prometheus.NewRegistry()}
	if c.CardCache {
		store, err := cardstore.Open(c.CardCachePath())
		if err != nil {
			return nil, fmt.Errorf("failed to open card cache: %w", err)
		}
		s.cards = store
	}

	s.db = carddb.New(carddb.Options{
		Remote:        client,
		DataDir:       c.CatalogDir(),
		MaxCatalogAge: c.MaxCatalogAge,
		Cards:         s.cards,
		Logger:        logger,
		Registerer:    s.registry,
	})
	return s, nil
}

func (s *session) Close() {
	if s.cards != nil {
		if err := s.cards.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close card cache")
		}
	}
}

// load runs the catalog barrier, showing a spinner on an interactive
// stderr.
func (s *session) load(ctx context.Context) error {
	spinner := ui.NewSpinner(os.Stderr, "Loading card catalogs...")
	spinner.Start()
	defer spinner.Stop()
	return s.db.Load(ctx)
}

// openLoadedSession opens a session and waits for its catalogs. Failures
// are already reported when it returns an error.
func openLoadedSession(ctx context.Context) (*session, error) {
	s, err := openSession(getConfig())
	if err != nil {
		return nil, handleError(ErrFileReadError, err, "Disable card_cache or remove the cache directory")
	}
	if err := s.load(ctx); err != nil {
		s.Close()
		return nil, handleCardError(err)
	}
	return s, nil
}

// serveMetrics exposes the session's metrics on addr until ctx ends.
func (s *session) serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}
