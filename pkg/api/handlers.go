package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/osovm/veilmint/pkg/catalog"
	"github.com/osovm/veilmint/pkg/impact"
	"github.com/osovm/veilmint/pkg/mint"
	"github.com/osovm/veilmint/pkg/observability"
	"github.com/osovm/veilmint/pkg/projector"
	"github.com/osovm/veilmint/pkg/store"
)

// MintRequest is the body of POST /api/mint. Completion is a pointer so
// an omitted field is distinguishable from an explicit 0: absence means
// the work ran to completion.
type MintRequest struct {
	WorkID     string   `json:"work_id"`
	Principal  string   `json:"principal"`
	Sector     string   `json:"sector"`
	Hours      float64  `json:"hours"`
	Quality    float64  `json:"quality"`
	Completion *float64 `json:"completion"`
	Witnesses  int      `json:"witnesses"`
}

// RevertRequest is the body of POST /api/revert.
type RevertRequest struct {
	ReceiptID string  `json:"receipt_id"`
	Quality   float64 `json:"quality"`
}

// ProjectRequest is the body of POST /api/project.
type ProjectRequest struct {
	Principals int     `json:"principals"`
	Days       int     `json:"days"`
	DailyLow   float64 `json:"daily_low"`
	DailyHigh  float64 `json:"daily_high"`
}

// WalletResponse is the body of GET /api/wallet/{principal}.
type WalletResponse struct {
	Principal   string               `json:"principal"`
	Balance     float64              `json:"balance"`
	BurnBalance float64              `json:"burn_balance"`
	History     []mint.AttemptOutcome `json:"history"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Policy())
}

func (s *Server) handleVeils(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("q") != "":
		writeJSON(w, http.StatusOK, s.registry.Search(q.Get("q")))
	case q.Get("tier") != "":
		writeJSON(w, http.StatusOK, s.registry.ByTier(q.Get("tier")))
	default:
		writeJSON(w, http.StatusOK, s.registry.All())
	}
}

func (s *Server) handleVeil(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		WriteBadRequest(w, r, "Veil ID must be an integer")
		return
	}
	v, err := s.registry.Lookup(id)
	if err != nil {
		var unknown *catalog.ErrUnknownVeil
		if errors.As(err, &unknown) {
			WriteNotFound(w, r, err.Error())
			return
		}
		WriteInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	start := s.clock()
	var req MintRequest
	if !s.decodeAndValidate(w, r, s.schemas.mint, &req) {
		return
	}

	completion := 1.0
	if req.Completion != nil {
		completion = *req.Completion
	}
	record := impact.WorkRecord{
		ID:         req.WorkID,
		Hours:      req.Hours,
		Quality:    req.Quality,
		Completion: completion,
		Sector:     req.Sector,
		Principal:  req.Principal,
	}
	event, err := s.ledger.Attempt(r.Context(), record, req.Witnesses, s.clock())
	s.observe(observability.OpMint, start, err == nil || isClientFault(err))
	if err != nil {
		var denied *mint.DeniedError
		switch {
		case errors.As(err, &denied):
			writeJSON(w, http.StatusForbidden, map[string]any{
				"admitted": false,
				"layer":    denied.Layer,
				"reason":   denied.Reason,
				"verdict":  denied.Verdict,
			})
		case errors.Is(err, mint.ErrDuplicateAttempt):
			WriteConflict(w, r, "Work record already minted or in flight")
		case errors.Is(err, impact.ErrInvalidInput):
			WriteBadRequest(w, r, err.Error())
		default:
			WriteInternal(w, r, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	start := s.clock()
	var req RevertRequest
	if !s.decodeAndValidate(w, r, s.schemas.revert, &req) {
		return
	}

	outcome, err := s.ledger.RevertIfBelowFloor(r.Context(), req.ReceiptID, req.Quality, s.clock())
	s.observe(observability.OpRevert, start, err == nil || isClientFault(err))
	if err != nil {
		if errors.Is(err, store.ErrUnknownReceipt) {
			WriteNotFound(w, r, "Unknown receipt")
			return
		}
		WriteInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	start := s.clock()
	var req ProjectRequest
	if !s.decodeAndValidate(w, r, s.schemas.project, &req) {
		return
	}

	var draw projector.DailyWorkFn
	if req.DailyHigh > 0 {
		if req.DailyHigh < req.DailyLow {
			WriteBadRequest(w, r, "daily_high must be >= daily_low")
			return
		}
		draw = projector.UniformDailyWork(req.DailyLow, req.DailyHigh)
	}
	curve, err := s.forecast.Project(r.Context(), req.Principals, req.Days, draw)
	s.observe(observability.OpProject, start, err == nil)
	if err != nil {
		WriteInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, curve)
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	principal := r.PathValue("principal")
	balance, history := s.ledger.Balance(principal)
	if history == nil {
		history = []mint.AttemptOutcome{}
	}
	writeJSON(w, http.StatusOK, WalletResponse{
		Principal:   principal,
		Balance:     balance,
		BurnBalance: s.ledger.BurnBalance(principal),
		History:     history,
	})
}

func (s *Server) handleReceipts(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteBadRequest(w, r, "limit must be a positive integer")
			return
		}
		limit = n
	}
	receipts, err := s.receipts.List(r.Context(), limit)
	if err != nil {
		WriteInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	rec, err := s.receipts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrUnknownReceipt) {
			WriteNotFound(w, r, "Unknown receipt")
			return
		}
		WriteInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleTithe(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.TitheVault())
}

func (s *Server) handleSLO(w http.ResponseWriter, r *http.Request) {
	ops := []string{observability.OpMint, observability.OpRevert, observability.OpProject}
	statuses := make([]*observability.SLOStatus, 0, len(ops))
	for _, op := range ops {
		status, err := s.slo.Status(op)
		if err != nil {
			WriteInternal(w, r, err)
			return
		}
		statuses = append(statuses, status)
	}
	writeJSON(w, http.StatusOK, statuses)
}

// decodeAndValidate reads the body, checks it against the schema, and
// unmarshals into dst. It writes the error response itself and reports
// whether the handler may proceed.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteBadRequest(w, r, "Unable to read request body")
		return false
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		WriteBadRequest(w, r, "Invalid JSON")
		return false
	}
	if err := schema.Validate(raw); err != nil {
		WriteBadRequest(w, r, err.Error())
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		WriteBadRequest(w, r, "Invalid request body")
		return false
	}
	return true
}

func (s *Server) observe(op string, start time.Time, success bool) {
	s.slo.Record(observability.SLOObservation{
		Operation: op,
		Latency:   s.clock().Sub(start),
		Success:   success,
	})
}

// isClientFault reports whether a ledger error is the caller's doing.
// Denials, duplicates, and invalid input do not burn SLO error budget.
func isClientFault(err error) bool {
	var denied *mint.DeniedError
	return errors.As(err, &denied) ||
		errors.Is(err, mint.ErrDuplicateAttempt) ||
		errors.Is(err, impact.ErrInvalidInput)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
