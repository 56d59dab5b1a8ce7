package httpctrl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Agrid-Dev/thermoptim/internal/controllers/wire"
	"github.com/Agrid-Dev/thermoptim/internal/dataset"
	"github.com/Agrid-Dev/thermoptim/internal/logger"
	"github.com/Agrid-Dev/thermoptim/internal/ports"
)

type Server struct {
	svc ports.RunService
	srv *http.Server
}

// New returns a runnable server.
func New(svc ports.RunService, addr string) *Server {
	mux := http.NewServeMux()
	s := &Server{svc: svc}

	// Read
	mux.HandleFunc("GET /v1", s.handleGet)
	mux.HandleFunc("GET /v1/report", s.handleReport)
	mux.HandleFunc("GET /v1/columns", s.handleColumns)
	mux.HandleFunc("GET /v1/columns/{name}", s.handleColumn)

	// Recommendation for an ad hoc sample; the run itself is never modified.
	mux.HandleFunc("POST /v1/predict", s.handlePredict)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	logger.WithComponent("http").WithField("addr", s.srv.Addr).Info("listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ---- Handlers ----

func (s *Server) handleGet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, wire.FromSnapshot(s.svc.Get()))
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Get().Report)
}

func (s *Server) handleColumns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"columns": s.svc.Columns()})
}

func (s *Server) handleColumn(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	vals, err := s.svc.Column(name)
	if errors.Is(err, dataset.ErrSchema) {
		writeErr(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, wire.Column{Name: name, Values: wire.Nums(vals)})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	// body: {"value": {"outdoor_temp_c": 30, ...}}
	sample, err := wire.DecodeSample(r.Body)
	if err != nil {
		var syn *json.SyntaxError
		if errors.As(err, &syn) {
			writeErr(w, http.StatusBadRequest, "invalid json")
			return
		}
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := s.svc.Predict(sample)
	if err != nil {
		writeErr(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, wire.FromRecommendation(rec))
}

// ---- generic helpers ----

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
