package requisicoes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/garyjia/river-voucher/internal/domain/entity"
)

// errorBody is the error envelope of the backend. Older deployments only send "error".
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (b errorBody) text() string {
	if b.Message != "" {
		return b.Message
	}
	if b.Error != "" {
		return b.Error
	}
	return ""
}

// classify maps a non-2xx response onto the error taxonomy
func classify(op string, status int, raw []byte) error {
	var body errorBody
	_ = json.Unmarshal(raw, &body)
	detail := body.text()
	if detail == "" {
		detail = http.StatusText(status)
	}
	code := strings.ToLower(body.Code)
	lower := strings.ToLower(detail)

	var sentinel error
	switch {
	case status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout:
		return &entity.TransportError{Op: op, StatusCode: status, Err: errors.New(detail)}
	case status == http.StatusNotFound:
		sentinel = entity.ErrNotFound
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		sentinel = entity.ErrInvalidTransition
		if code == "already_redeemed" || strings.Contains(lower, "utilizada") || strings.Contains(lower, "already redeemed") {
			sentinel = entity.ErrAlreadyRedeemed
		}
	case status == http.StatusForbidden:
		sentinel = entity.ErrForbidden
		if code == "ownership_mismatch" || strings.Contains(lower, "barco") || strings.Contains(lower, "vessel") {
			sentinel = entity.ErrOwnershipMismatch
		}
	case status == http.StatusUnauthorized:
		sentinel = entity.ErrForbidden
	case status == http.StatusBadRequest:
		sentinel = entity.ErrInvalidInput
	default:
		return fmt.Errorf("%s: unexpected status %d: %s", op, status, detail)
	}
	return fmt.Errorf("%s: %w: %s", op, sentinel, detail)
}
