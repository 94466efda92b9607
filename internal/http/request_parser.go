// Package http provides the rewards web server and its handlers.
//
// This file holds the helpers that turn query strings and request bodies
// into validated domain values.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"rewards/internal/core"
)

// maxBodyBytes caps POST bodies; a transaction form is a few hundred bytes.
const maxBodyBytes = 64 << 10

var (
	errBodyTooLarge = errors.New("request body too large")
	errMissingDate  = errors.New("date is required")
)

// RewardsQuery is the filter shared by the UI partial and the JSON API.
type RewardsQuery struct {
	CustomerID string
	Range      core.DateRange
	Page       int
}

// ParseDateRange reads the optional from/to parameters. Blank bounds are
// open; a malformed date or an inverted range is an error.
func ParseDateRange(query url.Values) (core.DateRange, error) {
	from, err := core.ParseDate(query.Get("from"))
	if err != nil {
		return core.DateRange{}, err
	}
	to, err := core.ParseDate(query.Get("to"))
	if err != nil {
		return core.DateRange{}, err
	}
	r := core.DateRange{From: from, To: to}
	if err := r.Validate(); err != nil {
		return core.DateRange{}, err
	}
	return r, nil
}

// ParsePage reads a 1-based page number, defaulting to 1 on anything
// unusable. Out-of-range pages are clamped later by core.Paginate.
func ParsePage(query url.Values) int {
	p, err := strconv.Atoi(strings.TrimSpace(query.Get("page")))
	if err != nil || p < 1 {
		return 1
	}
	return p
}

// ParseRewardsQuery combines the customer, range and page parameters.
// customerID overrides the "customer" parameter when not empty.
func ParseRewardsQuery(query url.Values, customerID string) (RewardsQuery, error) {
	if customerID == "" {
		customerID = query.Get("customer")
	}
	r, err := ParseDateRange(query)
	if err != nil {
		return RewardsQuery{}, err
	}
	return RewardsQuery{
		CustomerID: sanitizeInput(customerID),
		Range:      r,
		Page:       ParsePage(query),
	}, nil
}

// RequestBodyParser reads a body once and serves values from it whether it
// was sent as JSON (API clients) or form-encoded (htmx).
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = errBodyTooLarge
	}
	return p
}

// Parse decodes the body as JSON when it looks like a JSON object and as
// form data otherwise.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(body, "{") || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(body)
	return p.err
}

// Get returns the sanitized value for key, or "".
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON reports whether the client sent, or declared, a JSON body.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil || strings.HasPrefix(p.contentType, "application/json")
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseNewTransaction builds a NewTransaction from customer, amount and
// date fields. The returned error is user-presentable.
func ParseNewTransaction(p *RequestBodyParser) (core.NewTransaction, error) {
	amount, err := core.ParseDecimalAmount(p.Get("amount"))
	if err != nil {
		return core.NewTransaction{}, core.ErrInvalidAmount
	}
	date, err := core.ParseDate(p.Get("date"))
	if err != nil {
		return core.NewTransaction{}, err
	}
	if date.IsEmpty() {
		return core.NewTransaction{}, errMissingDate
	}
	nt := core.NewTransaction{
		CustomerID: p.Get("customer"),
		Amount:     amount,
		Date:       date,
	}
	if err := nt.Validate(); err != nil {
		return core.NewTransaction{}, err
	}
	return nt, nil
}

// RequireMethod returns a 405 response when r.Method is not one of methods.
func RequireMethod(r *http.Request, methods ...string) *Response {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowed(strings.Join(methods, ", "))
}

func RequirePOST(r *http.Request) *Response {
	return RequireMethod(r, http.MethodPost)
}
