package httpmiddleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/openlearnhq/coursegate/pkg/logger"
)

// CorrelationID assigns every request a fresh correlation ID. Client-provided
// correlation headers are ignored so identifiers stay server-controlled.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := uuid.New().String()
			r.Header.Set("X-Correlation-ID", correlationID)
			r = r.WithContext(logger.WithCorrelationIDContext(r.Context(), correlationID))
			next.ServeHTTP(w, r)
		})
	}
}
