package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"finbot/internal/core"
	"finbot/internal/log"
	"finbot/internal/services"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.deps.Ledger.Dashboard())
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	period := core.Period(strings.ToLower(r.URL.Query().Get("period")))
	if period == "" {
		period = core.PeriodMonth
	}
	typ := core.TxType(strings.ToUpper(r.URL.Query().Get("type")))
	if typ == "" {
		typ = core.Expense
	}
	stats, err := s.deps.Ledger.Statistics(period, typ)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	groups := s.deps.Ledger.History(historyFilter(r))
	if groups == nil {
		groups = []core.DayGroup{}
	}
	writeJSON(w, r, http.StatusOK, groups)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := req.toTransaction("")
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.deps.Ledger.Create(r.Context(), tx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		transactionRequest
		Status core.Status `json:"status"`
	}
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := req.toTransaction(core.NormalizeID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tx.Date.IsZero() {
		writeError(w, r, fmt.Errorf("%w: date is required", core.ErrInvalidDate))
		return
	}
	tx.Status = req.Status
	updated, err := s.deps.Ledger.Update(r.Context(), tx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Ledger.Delete(r.Context(), core.NormalizeID(chi.URLParam(r, "id"))); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProcessPending(w http.ResponseWriter, r *http.Request) {
	tx, err := s.deps.Intake.ProcessPending(r.Context(), core.NormalizeID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, tx)
}

func (s *Server) handleCorrectBalance(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Target == nil {
		writeError(w, r, fmt.Errorf("%w: target is required", services.ErrBadRequest))
		return
	}
	writeJSON(w, r, http.StatusOK, s.deps.Ledger.CorrectBalance(r.Context(), int64(*req.Target)))
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.deps.Ledger.Settings())
}

type settingsResponse struct {
	Settings core.Settings `json:"settings"`
	Pulled   bool          `json:"pulled"`
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	settings := s.deps.Ledger.Settings()
	if err := decodeJSON(w, r, maxJSONBody, &settings); err != nil {
		writeError(w, r, err)
		return
	}
	saved, pulled, err := s.deps.Ledger.UpdateSettings(r.Context(), settings)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, settingsResponse{Settings: saved, Pulled: pulled})
}

type syncResponse struct {
	OK bool `json:"ok"`
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, syncResponse{OK: s.deps.Ledger.Pull(r.Context())})
}

// handleSyncTest checks the configured endpoint with a real pull. An
// unconfigured remote reports false.
func (s *Server) handleSyncTest(w http.ResponseWriter, r *http.Request) {
	ok := s.deps.Ledger.Pull(r.Context())
	log.FromContext(r.Context()).InfoContext(r.Context(), "Remote connection test", log.FieldSuccess, ok)
	writeJSON(w, r, http.StatusOK, syncResponse{OK: ok})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, maxChatBody, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, err)
		return
	}
	reply, err := s.deps.Intake.Handle(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if reply.Transactions == nil {
		reply.Transactions = []core.Transaction{}
	}
	writeJSON(w, r, http.StatusOK, reply)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	history := s.deps.Chat.ChatHistory()
	if history == nil {
		history = []core.ChatMessage{}
	}
	writeJSON(w, r, http.StatusOK, history)
}

type adviceResponse struct {
	Advice string `json:"advice"`
}

func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, adviceResponse{Advice: s.deps.Intake.Advice(r.Context())})
}

func (s *Server) handleNotifyTest(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Notifier.SendTest(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, syncResponse{OK: true})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.deps.Backup.Export()
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="finbot-backup.json"`)
	_, _ = w.Write(data)
}

// handleImport restores a backup. An unreadable file is reported as ok=false
// with status 400 and leaves the ledger untouched.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxChatBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, r, http.StatusRequestEntityTooLarge, errorResponse{Error: "backup too large"})
			return
		}
		writeError(w, r, fmt.Errorf("%w: read body: %v", services.ErrBadRequest, err))
		return
	}
	if !s.deps.Backup.Import(r.Context(), data) {
		writeJSON(w, r, http.StatusBadRequest, syncResponse{OK: false})
		return
	}
	writeJSON(w, r, http.StatusOK, syncResponse{OK: true})
}
