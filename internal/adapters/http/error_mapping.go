package httpadapter

import (
	"net/http"
	"time"

	"github.com/kirillkom/handwritten-notes/internal/core/domain"
)

const (
	codeRateLimited = "rate_limited"
	codeOverloaded  = "overloaded"

	quotaRetryAfterSeconds = "60"
)

type errorResponse struct {
	Success          bool   `json:"success"`
	Error            string `json:"error"`
	Code             string `json:"code"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUpstreamFormat):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeProcessError renders the failure envelope. Every failure reports the
// time spent since the request was accepted.
func writeProcessError(w http.ResponseWriter, err error, startedAt time.Time) {
	status := mapErrorToHTTPStatus(err)
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", quotaRetryAfterSeconds)
	}
	writeJSON(w, status, errorResponse{
		Success:          false,
		Error:            err.Error(),
		Code:             domain.ErrorCode(err),
		ProcessingTimeMs: domain.ElapsedMillis(startedAt, time.Now()),
	})
}
