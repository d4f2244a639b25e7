// Package server exposes the HTTP control surface: health, metrics, manual
// sync trigger, and read-only status endpoints. Key material is never served.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/proxyops/certsyncd/internal/engine"
	"github.com/proxyops/certsyncd/internal/scheduler"
	"github.com/proxyops/certsyncd/internal/secrets"
	"github.com/proxyops/certsyncd/internal/version"
	"github.com/proxyops/certsyncd/pkg/common"
	"github.com/proxyops/certsyncd/pkg/common/iface"
)

const shutdownGrace = 5 * time.Second

// trigger is the slice of the scheduler the server needs.
type trigger interface {
	TriggerNow() error
	State() scheduler.State
}

// registry is the slice of the status registry the server needs.
type registry interface {
	Latest() *engine.CycleResult
	MetricsHandler() http.Handler
}

// Server wires the control surface over the sync machinery.
type Server struct {
	cfg       common.Config
	scheduler trigger
	registry  registry
	source    secrets.Source
	log       iface.Logger
}

func New(cfg common.Config, sched trigger, reg registry, source secrets.Source, log iface.Logger) *Server {
	return &Server{
		cfg:       cfg,
		scheduler: sched,
		registry:  reg,
		source:    source,
		log:       log,
	}
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/reload", s.handleReload).Methods(http.MethodPost)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/status/secrets", s.handleListSecrets).Methods(http.MethodGet)
	r.HandleFunc("/status/secrets_by_tag", s.handleSecretsByTag).Methods(http.MethodGet)
	if s.cfg.MetricsEnabled {
		r.Handle("/metrics", s.registry.MetricsHandler()).Methods(http.MethodGet)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("control surface listening on %s", s.cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "certsyncd",
		"version": version.GetVersion(),
	})
}

func (s *Server) handleReload(w http.ResponseWriter, _ *http.Request) {
	err := s.scheduler.TriggerNow()
	if errors.Is(err, scheduler.ErrSyncInProgress) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"status":  "busy",
			"message": "sync already in progress",
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "started",
		"message": "certificate sync triggered",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"scheduler":  s.scheduler.State(),
		"last_cycle": s.registry.Latest(),
	})
}

func (s *Server) handleListSecrets(w http.ResponseWriter, r *http.Request) {
	all, err := s.source.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	var monitored []secrets.SecretInfo
	var method string
	var discovery map[string]any

	if s.cfg.TagDiscovery() {
		method = engine.DiscoveryTagBased
		discovery = map[string]any{"tag_key": s.cfg.TagKey, "tag_value": s.cfg.TagValue}
		monitored = filterByTag(all, s.cfg.TagKey, s.cfg.TagValue)
	} else {
		method = engine.DiscoveryExplicit
		names := s.cfg.SecretNamesList()
		discovery = map[string]any{"secret_names": names}
		monitored, err = s.source.Describe(r.Context(), names)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"all_secrets":       all,
		"monitored_secrets": monitored,
		"discovery_method":  method,
		"discovery_config":  discovery,
		"total_secrets":     len(all),
		"monitored_count":   len(monitored),
	})
}

func (s *Server) handleSecretsByTag(w http.ResponseWriter, r *http.Request) {
	tagKey := r.URL.Query().Get("tag_key")
	tagValue := r.URL.Query().Get("tag_value")
	if tagKey == "" || tagValue == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "tag_key and tag_value query parameters are required",
		})
		return
	}

	all, err := s.source.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	matched := filterByTag(all, tagKey, tagValue)
	writeJSON(w, http.StatusOK, map[string]any{
		"tag_filter": map[string]string{"key": tagKey, "value": tagValue},
		"secrets":    matched,
		"count":      len(matched),
	})
}

func filterByTag(infos []secrets.SecretInfo, key, value string) []secrets.SecretInfo {
	matched := make([]secrets.SecretInfo, 0, len(infos))
	for _, info := range infos {
		if info.Tags[key] == value {
			matched = append(matched, info)
		}
	}
	return matched
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
