package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"cuanbot/src/engine"
	"cuanbot/src/model"
)

// SnapshotProvider is the read-only view of the running engine the status
// endpoints expose.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) engine.Snapshot
}

// JournalReader serves the trade-history endpoint. May be nil.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]model.TradeEvent, error)
	RecentByPair(ctx context.Context, pair string, limit int) ([]model.TradeEvent, error)
}

// Start serves the status endpoints in the background and shuts down
// gracefully when ctx is cancelled. The engine cycle loop owns the
// foreground; this server never blocks it.
func Start(ctx context.Context, port string, provider SnapshotProvider, journal JournalReader) {
	r := chi.NewRouter()

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("healthcheck write failed")
		}
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(provider.Snapshot(r.Context())); err != nil {
			logger.WithError(err).Error("status encode failed")
		}
	})

	if journal != nil {
		r.Get("/journal", func(w http.ResponseWriter, r *http.Request) {
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			var events []model.TradeEvent
			var err error
			if pair := r.URL.Query().Get("pair"); pair != "" {
				events, err = journal.RecentByPair(r.Context(), pair, limit)
			} else {
				events, err = journal.Recent(r.Context(), limit)
			}
			if err != nil {
				http.Error(w, "journal unavailable", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(events); err != nil {
				logger.WithError(err).Error("journal encode failed")
			}
		})
	}

	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		logger.Infof("status server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("status server crashed")
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down status server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("status server shutdown error")
		}
	}()
}
