package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"babylon/recurring/recurring/detect"
	"babylon/recurring/recurring/errs"
	"babylon/recurring/recurring/match"
	"babylon/recurring/recurring/model"
)

// detectRequest narrows one detection run.
type detectRequest struct {
	LookbackDays int `json:"lookbackDays"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request, userID primitive.ObjectID) {
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, errs.ValidationError("body", "malformed JSON"))
		return
	}

	result, stats, err := s.Detector.Detect(r.Context(), userID, req.LookbackDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats.Log(s.Logger)

	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request, userID primitive.ObjectID) {
	horizonDays := 0
	if raw := r.URL.Query().Get("horizonDays"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, errs.ValidationError("horizonDays", "must be an integer"))
			return
		}
		horizonDays = parsed
	}

	result, err := s.Linker.Overview(r.Context(), userID, horizonDays)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// backfillRequest narrows one reconciliation sweep.
type backfillRequest struct {
	Days      int    `json:"days"`
	AccountID string `json:"accountId"`
}

// backfillResponse reports the sweep window and its repair counts.
type backfillResponse struct {
	OK      bool          `json:"ok"`
	Since   string        `json:"since"`
	Summary match.Summary `json:"summary"`
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request, userID primitive.ObjectID) {
	var req backfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, errs.ValidationError("body", "malformed JSON"))
		return
	}

	since, summary, err := s.Reconciler.Run(r.Context(), userID, match.BackfillOptions{
		Days:      req.Days,
		AccountID: req.AccountID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, backfillResponse{
		OK:      true,
		Since:   since.Format(time.RFC3339),
		Summary: summary,
	})
}

// billMatchRequest is the wire form of a bill confirmation.
type billMatchRequest struct {
	TxID        string   `json:"txId"`
	Amount      *float64 `json:"amount"`
	Date        string   `json:"date"`
	SeriesID    string   `json:"recurringId"`
	Name        string   `json:"name"`
	Merchant    string   `json:"merchant"`
	AccountID   string   `json:"accountId"`
	AccountName string   `json:"accountName"`
}

// billMatchResponse returns the paid bill and the ledger transaction it
// now points at.
type billMatchResponse struct {
	OK            bool       `json:"ok"`
	Bill          model.Bill `json:"bill"`
	TransactionID string     `json:"transactionId"`
}

func (s *Server) handleMatchBill(w http.ResponseWriter, r *http.Request, userID primitive.ObjectID) {
	var req billMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errs.ValidationError("body", "malformed JSON"))
		return
	}

	date, err := parseOptionalDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	bill, txID, err := s.Linker.MatchBill(r.Context(), userID, match.BillMatch{
		TxID:        req.TxID,
		Amount:      req.Amount,
		Date:        date,
		SeriesID:    req.SeriesID,
		Name:        req.Name,
		Merchant:    req.Merchant,
		AccountID:   req.AccountID,
		AccountName: req.AccountName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, billMatchResponse{OK: true, Bill: bill, TransactionID: txID.Hex()})
}

// paycheckMatchRequest is the wire form of a paycheck confirmation.
type paycheckMatchRequest struct {
	TxID         string  `json:"txId"`
	Amount       float64 `json:"amount"`
	Date         string  `json:"date"`
	SeriesID     string  `json:"recurringId"`
	AccountID    string  `json:"accountId"`
	AccountName  string  `json:"accountName"`
	EmployerName string  `json:"employerName"`
}

type paycheckMatchResponse struct {
	OK            bool              `json:"ok"`
	Hit           model.PaycheckHit `json:"hit"`
	TransactionID string            `json:"transactionId"`
}

func (s *Server) handleMatchPaycheck(w http.ResponseWriter, r *http.Request, userID primitive.ObjectID) {
	var req paycheckMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errs.ValidationError("body", "malformed JSON"))
		return
	}

	date, err := parseOptionalDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	hit, txID, err := s.Linker.MatchPaycheck(r.Context(), userID, match.PaycheckMatch{
		TxID:         req.TxID,
		Amount:       req.Amount,
		Date:         date,
		SeriesID:     req.SeriesID,
		AccountID:    req.AccountID,
		AccountName:  req.AccountName,
		EmployerName: req.EmployerName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, paycheckMatchResponse{OK: true, Hit: hit, TransactionID: txID.Hex()})
}

// parseOptionalDate accepts an empty date (meaning now, decided by the
// service layer) or any feed-accepted layout.
func parseOptionalDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, ok := detect.ParseDate(raw)
	if !ok {
		return time.Time{}, errs.ValidationError("date", "unrecognized date format")
	}
	return t, nil
}
