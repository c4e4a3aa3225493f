package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"retromoney/internal/core"
	"retromoney/internal/log"
)

// JSONResponse builds an API response envelope.
type JSONResponse struct {
	statusCode int
	body       map[string]any
	headers    map[string]string
}

func NewJSONResponse() *JSONResponse {
	return &JSONResponse{
		statusCode: http.StatusOK,
		body:       map[string]any{"status": "success"},
		headers:    map[string]string{},
	}
}

func (b *JSONResponse) Status(code int) *JSONResponse {
	b.statusCode = code
	return b
}

// Data sets the payload under "data".
func (b *JSONResponse) Data(v any) *JSONResponse {
	b.body["data"] = v
	return b
}

// Field sets a top-level field next to status.
func (b *JSONResponse) Field(name string, v any) *JSONResponse {
	b.body[name] = v
	return b
}

func (b *JSONResponse) Header(name, value string) *JSONResponse {
	b.headers[name] = value
	return b
}

func (b *JSONResponse) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// ErrorResponse creates {"status":"error","message":...}.
func ErrorResponse(statusCode int, message string) *JSONResponse {
	return &JSONResponse{
		statusCode: statusCode,
		body:       map[string]any{"status": "error", "message": message},
		headers:    map[string]string{},
	}
}

func BadRequestError(message string) *JSONResponse {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponse {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError() *JSONResponse {
	return ErrorResponse(http.StatusInternalServerError, "internal error")
}

// FromError maps a service error onto a status code. Unknown errors are
// logged and reported as 500 without details.
func FromError(r *http.Request, err error) *JSONResponse {
	var (
		redistribution *core.RedistributionError
		validation     *core.ValidationError
		insufficient   *core.InsufficientBalanceError
	)
	switch {
	case errors.As(err, &redistribution):
		return ErrorResponse(http.StatusUnprocessableEntity, redistribution.Error()).
			Field("total_percentage", redistribution.TotalPercentage)
	case errors.As(err, &validation):
		return ErrorResponse(http.StatusUnprocessableEntity, validation.Error()).
			Field("field", validation.Field)
	case errors.As(err, &insufficient):
		return ErrorResponse(http.StatusConflict, insufficient.Error()).
			Field("account", insufficient.Account).
			Field("required", insufficient.Required.StringFixed(2))
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError(err.Error())
	}

	log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), "Request failed", err,
		log.ComponentHTTP, r.Pattern,
		log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", ""))
	return InternalServerError()
}

// money renders an amount with two decimals for display fields.
func money(d decimal.Decimal, c core.Currency) string {
	return core.FormatAmount(d, c)
}
