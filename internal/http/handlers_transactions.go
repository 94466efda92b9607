package http

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"rewards/internal/core"
	"rewards/internal/log"
	"rewards/internal/rewards"
)

type recordedResponse struct {
	rewards.AnnotatedTransaction
	Ref string `json:"ref"`
}

// handleRecordTransaction stores a purchase submitted from the page form
// (form-encoded) or by an API client (JSON).
func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	logger := log.FromContext(ctx)

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		logger.WarnContext(ctx, "Parse body error", log.FieldError, err, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
		s.recordError(w, p, http.StatusBadRequest, "Invalid request format")
		return
	}

	if s.transactions == nil {
		s.recordError(w, p, http.StatusServiceUnavailable, "Recording transactions is not available")
		return
	}

	nt, err := ParseNewTransaction(p)
	if err != nil {
		s.recordError(w, p, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	tx, ref, err := s.transactions.Record(ctx, nt)
	if err != nil {
		log.NewEvents(logger).Failure(ctx, "Failed to save transaction", err,
			log.ComponentTransaction, log.OpRecord,
			log.NewFields().WithCustomer(nt.CustomerID))
		s.recordError(w, p, http.StatusInternalServerError, "Error saving transaction")
		return
	}

	annotated, err := rewards.AnnotateWithPoints([]*rewards.Transaction{&tx})
	if err != nil || len(annotated) != 1 {
		annotated = []rewards.AnnotatedTransaction{{Transaction: tx}}
	}
	row := annotated[0]

	if p.IsJSON() {
		JSON(http.StatusCreated, recordedResponse{AnnotatedTransaction: row, Ref: ref}).Write(w)
		return
	}

	HTML(http.StatusOK, `<div class="success">Recorded `+template.HTMLEscapeString(formatAmount(tx.Amount))+
		` for `+template.HTMLEscapeString(tx.CustomerID)+
		` on `+template.HTMLEscapeString(nt.Date.String())+
		`: `+strconv.Itoa(row.Points)+` points</div>`).
		TriggerTransactionRecorded(tx.CustomerID, rewards.MonthKey(nt.Date.Time)).
		TriggerFormReset().
		Write(w)
}

func (s *Server) recordError(w http.ResponseWriter, p *RequestBodyParser, status int, message string) {
	if p.IsJSON() {
		JSONError(status, message).Write(w)
		return
	}
	ErrorResponse(status, message).Write(w)
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrEmptyCustomer):
		return "Customer is required"
	case errors.Is(err, core.ErrInvalidAmount):
		return "Amount must be a positive number"
	case errors.Is(err, errMissingDate):
		return "Date is required"
	case errors.Is(err, core.ErrInvalidDate):
		return "Date must use the YYYY-MM-DD format"
	default:
		return "Invalid data: " + err.Error()
	}
}
