package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civicworks/ada-audit/internal/model"
	"github.com/civicworks/ada-audit/internal/report"
	"github.com/civicworks/ada-audit/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the assessment API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initPipeline(ctx, "", "")
		if err != nil {
			return err
		}
		defer e.Close()

		r := apiRouter(ctx, e)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// apiRouter builds the HTTP surface. runCtx outlives individual requests
// and carries the async assessments.
func apiRouter(runCtx context.Context, e *env) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/assess", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			model.Batch
			Phases []model.PhaseBudget `json:"phases,omitempty"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(body.Detections) == 0 {
			writeJSONError(w, http.StatusBadRequest, "detections are required")
			return
		}

		// Create the run record up front so the client can poll it by ID;
		// the assessment itself runs asynchronously.
		run, err := e.Store.CreateRun(req.Context(), body.Label)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "create run failed")
			return
		}

		go func() {
			rep, err := e.Pipeline.Execute(runCtx, run.ID, body.Batch, body.Phases)
			if err != nil {
				zap.L().Error("api: assessment failed",
					zap.String("run_id", run.ID),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("api: assessment complete",
				zap.String("run_id", run.ID),
				zap.Float64("compliance_score", rep.ComplianceScore),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"run_id": run.ID,
			"batch":  body.Label,
		})
	})

	r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		runs, err := e.Store.ListRuns(req.Context(), store.RunFilter{
			Status: model.RunStatus(req.URL.Query().Get("status")),
			Label:  req.URL.Query().Get("label"),
		})
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "list runs failed")
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Get("/api/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		run, err := e.Store.GetRun(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "run not found")
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	r.Get("/api/runs/{id}/dashboard", func(w http.ResponseWriter, req *http.Request) {
		run, err := e.Store.GetRun(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "run not found")
			return
		}
		if run.Report == nil {
			writeJSONError(w, http.StatusConflict, "run has no report yet")
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := report.WriteDashboard(w, *run.Report); err != nil {
			zap.L().Error("api: dashboard render failed", zap.Error(err))
		}
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
