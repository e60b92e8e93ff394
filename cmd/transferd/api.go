// api.go - HTTP API for the transfer daemon
package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"veilsend/internal/connection"
	"veilsend/internal/ledger"
	"veilsend/internal/transfer"
)

type apiServer struct {
	coordinator *transfer.Coordinator
	ledger      *ledger.Ledger
	manager     *connection.Manager
	health      *HealthChecker
	metrics     *MetricsCollector
	limiter     *SenderRateLimiter
	logger      *slog.Logger
	maxUpload   int64
	gateway     func(address string) string
}

type apiError struct {
	Error string `json:"error"`
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /transfers", s.handleTransfer)
	mux.HandleFunc("POST /transfers/{id}/update", s.handleUpdate)
	mux.HandleFunc("GET /transfers", s.handleList)
	mux.HandleFunc("GET /transfers/{id}", s.handleGet)
	mux.HandleFunc("GET /transfers/{id}/content", s.handleContent)
	mux.HandleFunc("GET /connection", s.handleConnection)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	return mux
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encoding failed", "err", err)
	}
}

func (s *apiServer) writeErr(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, apiError{Error: msg})
}

// readUpload parses the multipart form and returns the uploaded file.
func (s *apiServer) readUpload(w http.ResponseWriter, r *http.Request) (transfer.File, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		s.writeErr(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return transfer.File{}, false
	}
	f, header, err := r.FormFile("file")
	if err != nil {
		s.writeErr(w, http.StatusBadRequest, "missing file field")
		return transfer.File{}, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		s.writeErr(w, http.StatusBadRequest, "failed to read upload")
		return transfer.File{}, false
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return transfer.NewFile(header.Filename, contentType, data), true
}

func (s *apiServer) handleTransfer(w http.ResponseWriter, r *http.Request) {
	file, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	sender := r.FormValue("sender")
	recipient := r.FormValue("recipient")

	if sender != "" && !s.limiter.Allow(sender) {
		s.metrics.IncrementCounter(MetricRateLimited, map[string]string{"sender": sender})
		s.writeErr(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	rec, err := s.coordinator.Transfer(r.Context(), file, sender, recipient)
	if err != nil {
		s.failTransfer(w, err)
		return
	}
	s.metrics.RecordTransfer(sender, file.Size)
	s.metrics.SetGauge(MetricLedgerRecords, float64(s.ledger.Len()), nil)
	s.writeJSON(w, http.StatusCreated, rec)
}

func (s *apiServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	file, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	rec, err := s.coordinator.Update(r.Context(), id, file)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			s.writeErr(w, http.StatusNotFound, "no such transfer")
			return
		}
		s.failTransfer(w, err)
		return
	}
	s.metrics.RecordTransfer(rec.Sender, file.Size)
	s.writeJSON(w, http.StatusCreated, rec)
}

// failTransfer maps coordinator errors onto HTTP statuses.
func (s *apiServer) failTransfer(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, transfer.ErrInvalidInput):
		s.metrics.RecordTransferFailure("invalid_input")
		s.writeErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, transfer.ErrNetworkUnavailable):
		s.metrics.RecordTransferFailure("network")
		s.health.MarkDegraded("rpc", "endpoint unreachable")
		s.writeErr(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, transfer.ErrStoreUnavailable):
		s.metrics.RecordTransferFailure("store")
		s.writeErr(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, transfer.ErrSubmissionFailed):
		s.metrics.RecordTransferFailure("submission")
		s.writeErr(w, http.StatusBadGateway, err.Error())
	default:
		s.metrics.RecordError("internal")
		s.logger.Error("transfer failed", "err", err)
		s.writeErr(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	sender := r.URL.Query().Get("sender")
	recipient := r.URL.Query().Get("recipient")

	var records []ledger.Record
	switch {
	case sender != "":
		records = s.ledger.FindBySender(sender)
	case recipient != "":
		records = s.ledger.FindByRecipient(recipient)
	default:
		records = s.ledger.All()
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.ledger.Get(r.PathValue("id"))
	if err != nil {
		s.writeErr(w, http.StatusNotFound, "no such transfer")
		return
	}
	var browseURL string
	if s.gateway != nil {
		browseURL = s.gateway(rec.ContentAddress)
	}
	s.writeJSON(w, http.StatusOK, struct {
		ledger.Record
		GatewayURL string `json:"gatewayUrl,omitempty"`
	}{Record: rec, GatewayURL: browseURL})
}

func (s *apiServer) handleContent(w http.ResponseWriter, r *http.Request) {
	rec, data, err := s.coordinator.Fetch(r.Context(), r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			s.writeErr(w, http.StatusNotFound, "no such transfer")
		case errors.Is(err, transfer.ErrCommitmentMismatch):
			s.metrics.RecordError("commitment_mismatch")
			s.writeErr(w, http.StatusConflict, "content does not match recorded commitment")
		case errors.Is(err, transfer.ErrStoreUnavailable):
			s.writeErr(w, http.StatusBadGateway, "content store unavailable")
		default:
			s.logger.Error("content fetch failed", "err", err)
			s.writeErr(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	ct := rec.FileType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", `attachment; filename="`+rec.FileName+`"`)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("content write interrupted", "err", err)
	}
}

func (s *apiServer) handleConnection(w http.ResponseWriter, r *http.Request) {
	state := s.manager.Snapshot()
	resp := struct {
		Phase      string `json:"phase"`
		RetryCount int    `json:"retryCount"`
		LastError  string `json:"lastError,omitempty"`
	}{
		Phase:      string(state.Phase),
		RetryCount: state.RetryCount,
		LastError:  state.LastError,
	}
	s.metrics.SetGauge(MetricConnectionPhase, float64(state.RetryCount),
		map[string]string{"phase": string(state.Phase)})
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.health.CheckHealth()
	resp := CreateHealthResponse(health)
	status := http.StatusOK
	if health.OverallStatus == Unhealthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

func (s *apiServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.metrics.GetMetricsSummary())
}
