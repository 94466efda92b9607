package http

import (
	"encoding/json"
	"html/template"
	"maps"
	"net/http"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json"

	eventTransactionRecorded = "transaction:recorded"
	eventFormReset           = "form:reset"
)

// Response is a status, a body and the headers to send with them. Events
// added with Trigger are sent as one HX-Trigger header so htmx can refresh
// the parts of the page that listen for them.
type Response struct {
	status  int
	body    []byte
	header  http.Header
	trigger map[string]any
}

func newResponse(status int, contentType string, body []byte) *Response {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &Response{status: status, body: body, header: h}
}

// HTML sends body verbatim; callers escape what they interpolate.
func HTML(status int, body string) *Response {
	return newResponse(status, contentTypeHTML, []byte(body))
}

// JSON encodes v followed by a newline. A value that cannot be encoded
// becomes a 500.
func JSON(status int, v any) *Response {
	data, err := json.Marshal(v)
	if err != nil {
		return newResponse(http.StatusInternalServerError, contentTypeJSON, []byte(`{"error":"encoding failed"}`+"\n"))
	}
	return newResponse(status, contentTypeJSON, append(data, '\n'))
}

// ErrorResponse renders message, HTML-escaped, in an error div.
func ErrorResponse(status int, message string) *Response {
	return HTML(status, `<div class="error">`+template.HTMLEscapeString(message)+`</div>`)
}

// JSONError is the API counterpart of ErrorResponse.
func JSONError(status int, message string) *Response {
	return JSON(status, map[string]string{"error": message})
}

func MethodNotAllowed(allow string) *Response {
	return newResponse(http.StatusMethodNotAllowed, "", nil).Header("Allow", allow)
}

func (r *Response) Header(name, value string) *Response {
	r.header.Set(name, value)
	return r
}

// Trigger adds an htmx event; data is sent as the event detail.
func (r *Response) Trigger(event string, data any) *Response {
	if r.trigger == nil {
		r.trigger = make(map[string]any, 2)
	}
	r.trigger[event] = data
	return r
}

// TriggerTransactionRecorded tells the page a customer's month changed.
func (r *Response) TriggerTransactionRecorded(customerID, month string) *Response {
	return r.Trigger(eventTransactionRecorded, map[string]string{"customer": customerID, "month": month})
}

func (r *Response) TriggerFormReset() *Response {
	return r.Trigger(eventFormReset, struct{}{})
}

func (r *Response) Write(w http.ResponseWriter) {
	maps.Copy(w.Header(), r.header)
	if len(r.trigger) > 0 {
		if data, err := json.Marshal(r.trigger); err == nil {
			w.Header().Set("HX-Trigger", string(data))
		}
	}
	w.WriteHeader(r.status)
	if len(r.body) > 0 {
		_, _ = w.Write(r.body)
	}
}
