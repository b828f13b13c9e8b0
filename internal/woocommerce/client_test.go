package woocommerce

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlearnhq/coursegate/internal/credentials"
	"github.com/openlearnhq/coursegate/pkg/logger"
)

type staticCreds struct {
	commerce credentials.Commerce
}

func (s staticCreds) Commerce(context.Context) (credentials.Commerce, error) {
	return s.commerce, nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	creds := staticCreds{commerce: credentials.Commerce{
		StoreURL:       srv.URL,
		ConsumerKey:    "ck_test",
		ConsumerSecret: "cs_test",
	}}
	return New(creds, 2*time.Second, logger.NewNopLogger(), nil), srv
}

func TestVerifyPaid(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/orders/9001", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "ck_test", user)
		assert.Equal(t, "cs_test", pass)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":9001,"status":"completed","billing":{"email":"A@B.com"}}`))
	})

	result, err := client.Verify(context.Background(), "9001", "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, result.Outcome, "email comparison must be case-insensitive")
	assert.True(t, result.Paid())
}

func TestVerifyOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		email    string
		expected Outcome
	}{
		{
			name:     "order not found",
			status:   http.StatusNotFound,
			body:     `{"code":"woocommerce_rest_shop_order_invalid_id"}`,
			email:    "a@b.com",
			expected: OutcomeNotFound,
		},
		{
			name:     "email mismatch",
			status:   http.StatusOK,
			body:     `{"id":1,"status":"completed","billing":{"email":"other@b.com"}}`,
			email:    "a@b.com",
			expected: OutcomeEmailMismatch,
		},
		{
			name:     "order pending payment",
			status:   http.StatusOK,
			body:     `{"id":1,"status":"pending","billing":{"email":"a@b.com"}}`,
			email:    "a@b.com",
			expected: OutcomeUnpaid,
		},
		{
			name:     "processing counts as paid",
			status:   http.StatusOK,
			body:     `{"id":1,"status":"processing","billing":{"email":"a@b.com"}}`,
			email:    "a@b.com",
			expected: OutcomePaid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			result, err := client.Verify(context.Background(), "1", tt.email)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Outcome)
		})
	}
}

func TestVerifyTransientFailures(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		_, err := client.Verify(context.Background(), "1", "a@b.com")
		require.Error(t, err)
	})

	t.Run("malformed body", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":`))
		})
		_, err := client.Verify(context.Background(), "1", "a@b.com")
		require.Error(t, err)
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		t.Cleanup(srv.Close)

		creds := staticCreds{commerce: credentials.Commerce{
			StoreURL:       srv.URL,
			ConsumerKey:    "ck",
			ConsumerSecret: "cs",
		}}
		client := New(creds, 50*time.Millisecond, logger.NewNopLogger(), nil)

		_, err := client.Verify(context.Background(), "1", "a@b.com")
		require.Error(t, err, "timeout must surface as an error, never a result")
	})
}

func TestVerifyInvalidCredential(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := client.Verify(context.Background(), "1", "a@b.com")
	require.ErrorIs(t, err, ErrInvalidCredential)
}

func TestVerifyNotConfigured(t *testing.T) {
	client := New(staticCreds{}, time.Second, logger.NewNopLogger(), nil)
	_, err := client.Verify(context.Background(), "1", "a@b.com")
	require.ErrorIs(t, err, ErrNotConfigured)
}
