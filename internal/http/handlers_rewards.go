package http

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"rewards/internal/core"
	"rewards/internal/log"
	"rewards/internal/rewards"
	"rewards/internal/services"
	"rewards/internal/sources"
)

const msgUnableToCompute = "Unable to compute rewards"

type rewardsView struct {
	Prompt  string
	Failed  bool
	Query   RewardsQuery
	Report  *services.Report
	PrevURL string
	NextURL string
}

// pageURL links to another page of the same partial.
func pageURL(q RewardsQuery, page int) string {
	v := url.Values{}
	v.Set("customer", q.CustomerID)
	if from := q.Range.From.String(); from != "" {
		v.Set("from", from)
	}
	if to := q.Range.To.String(); to != "" {
		v.Set("to", to)
	}
	v.Set("page", strconv.Itoa(page))
	return "/ui/rewards?" + v.Encode()
}

// handleRewardsPartial renders the rewards panel for the selected customer.
func (s *Server) handleRewardsPartial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	q, err := ParseRewardsQuery(r.URL.Query(), "")
	if err != nil {
		ErrorResponse(http.StatusUnprocessableEntity, rangeErrorMessage(err)).Write(w)
		return
	}
	if q.CustomerID == "" {
		s.renderRewards(w, r, http.StatusOK, rewardsView{Prompt: "Select a customer to see their rewards."})
		return
	}

	report, err := s.rewards.Report(ctx, q.CustomerID, q.Range, q.Page)
	switch {
	case err == nil:
	case errors.Is(err, sources.ErrCustomerNotFound):
		ErrorResponse(http.StatusNotFound, "Customer not found").Write(w)
		return
	case errors.Is(err, services.ErrRewardsUnavailable):
		logger.ErrorContext(ctx, "Rewards computation failed", log.FieldError, err, log.FieldCustomerID, q.CustomerID)
		s.renderRewards(w, r, http.StatusInternalServerError, rewardsView{Failed: true, Query: q})
		return
	default:
		logger.ErrorContext(ctx, "Loading rewards failed", log.FieldError, err, log.FieldCustomerID, q.CustomerID, log.FieldOperation, log.OpCompute)
		s.renderRewards(w, r, http.StatusBadGateway, rewardsView{Failed: true, Query: q})
		return
	}

	view := rewardsView{Query: q, Report: report}
	if report.Page.HasPrev() {
		view.PrevURL = pageURL(q, report.Page.Prev())
	}
	if report.Page.HasNext() {
		view.NextURL = pageURL(q, report.Page.Next())
	}
	s.renderRewards(w, r, http.StatusOK, view)
}

func (s *Server) renderRewards(w http.ResponseWriter, r *http.Request, status int, view rewardsView) {
	if s.templates == nil {
		ErrorResponse(http.StatusInternalServerError, msgUnableToCompute).Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, "rewards.html", view); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution error",
			log.FieldError, err, "template", "rewards.html", log.FieldOperation, log.OpRender)
	}
}

func rangeErrorMessage(err error) string {
	if errors.Is(err, core.ErrInvalidRange) {
		return "The start date must not be after the end date"
	}
	return "Dates must use the YYYY-MM-DD format"
}

type customersResponse struct {
	Customers []core.Customer `json:"customers"`
}

func (s *Server) handleCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.rewards.Customers(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Customer list error", log.FieldError, err, log.FieldOperation, log.OpList)
		JSONError(http.StatusBadGateway, "unable to load customers").Write(w)
		return
	}
	if customers == nil {
		customers = []core.Customer{}
	}
	JSON(http.StatusOK, customersResponse{Customers: customers}).Write(w)
}

type rangeJSON struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

type rewardsResponse struct {
	Customer         core.Customer                  `json:"customer"`
	Range            rangeJSON                      `json:"range"`
	TotalPoints      int                            `json:"totalPoints"`
	Months           []core.MonthSummary            `json:"months"`
	Transactions     []rewards.AnnotatedTransaction `json:"transactions"`
	Page             core.Page                      `json:"page"`
	TransactionCount int                            `json:"transactionCount"`
	Skipped          int                            `json:"skipped"`
}

func newRewardsResponse(rep *services.Report) rewardsResponse {
	return rewardsResponse{
		Customer:         rep.Customer,
		Range:            rangeJSON{From: rep.Range.From.String(), To: rep.Range.To.String()},
		TotalPoints:      rep.TotalPoints,
		Months:           rep.Months,
		Transactions:     rep.Transactions,
		Page:             rep.Page,
		TransactionCount: rep.TransactionCount,
		Skipped:          rep.Skipped,
	}
}

// handleCustomerRewards is the JSON form of the rewards panel.
func (s *Server) handleCustomerRewards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := ParseRewardsQuery(r.URL.Query(), r.PathValue("id"))
	if err != nil {
		JSONError(http.StatusBadRequest, rangeErrorMessage(err)).Write(w)
		return
	}

	report, err := s.rewards.Report(ctx, q.CustomerID, q.Range, q.Page)
	switch {
	case err == nil:
		JSON(http.StatusOK, newRewardsResponse(report)).Write(w)
	case errors.Is(err, sources.ErrCustomerNotFound):
		JSONError(http.StatusNotFound, "customer not found").Write(w)
	case errors.Is(err, services.ErrRewardsUnavailable):
		log.FromContext(ctx).ErrorContext(ctx, "Rewards computation failed", log.FieldError, err, log.FieldCustomerID, q.CustomerID)
		JSONError(http.StatusInternalServerError, "unable to compute rewards").Write(w)
	default:
		log.FromContext(ctx).ErrorContext(ctx, "Loading rewards failed", log.FieldError, err, log.FieldCustomerID, q.CustomerID)
		JSONError(http.StatusBadGateway, "unable to load transactions").Write(w)
	}
}

type snapshotsResponse struct {
	CustomerID string              `json:"customerId"`
	Months     []snapshotMonthJSON `json:"months"`
}

type snapshotMonthJSON struct {
	core.MonthSummary
	UpdatedAt string `json:"updatedAt"`
}

// handleCustomerSnapshots serves the monthly rows the worker persisted.
// Only backends that store snapshots provide them.
func (s *Server) handleCustomerSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		JSONError(http.StatusNotFound, "snapshots are not kept by this backend").Write(w)
		return
	}
	ctx := r.Context()
	id := sanitizeInput(r.PathValue("id"))
	rows, err := s.snapshots.ListMonthlySnapshots(ctx, id)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Snapshot list error", log.FieldError, err, log.FieldCustomerID, id, log.FieldOperation, log.OpSnapshot)
		JSONError(http.StatusInternalServerError, "unable to load snapshots").Write(w)
		return
	}
	resp := snapshotsResponse{CustomerID: id, Months: make([]snapshotMonthJSON, 0, len(rows))}
	for _, row := range rows {
		resp.Months = append(resp.Months, snapshotMonthJSON{
			MonthSummary: row.MonthSummary,
			UpdatedAt:    row.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	JSON(http.StatusOK, resp).Write(w)
}
