package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primerjalnik/backend/internal/domain"
)

func newTestClient(url string) *Client {
	return NewClient(Config{
		APIKey:            "test-api-key",
		BaseURL:           url,
		Model:             "test-model",
		RequestsPerMinute: 6000,
	}, zerolog.Nop())
}

func answerHandler(t *testing.T, answer string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "Listing A:")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": answer}},
			},
		})
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient(Config{APIKey: "k", BaseURL: "https://api.example.com/v1/"}, zerolog.Nop())

	assert.NotNil(t, client)
	assert.Equal(t, "k", client.apiKey)
	assert.Equal(t, "https://api.example.com/v1", client.baseURL)
	assert.Equal(t, "gpt-4o-mini", client.model)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
	assert.NotNil(t, client.rateLimiter)
	assert.False(t, client.debug)
}

func TestSetDebug(t *testing.T) {
	client := newTestClient("https://api.example.com")

	client.SetDebug(true)
	assert.True(t, client.debug)

	client.SetDebug(false)
	assert.False(t, client.debug)
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, 1000 * time.Millisecond},
		{3, 2000 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			assert.Equal(t, tt.expected, exponentialBackoff(tt.attempt))
		})
	}
}

func TestSameProduct_Verdicts(t *testing.T) {
	tests := []struct {
		answer string
		want   domain.Verdict
	}{
		{"YES", domain.VerdictSame},
		{" yes.", domain.VerdictSame},
		{"NO", domain.VerdictDifferent},
		{"No", domain.VerdictDifferent},
	}

	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			server := httptest.NewServer(answerHandler(t, tt.answer))
			defer server.Close()

			verdict, err := newTestClient(server.URL).SameProduct(context.Background(), "Mleko Alpsko 1L", "Alpsko mleko 1 l")

			require.NoError(t, err)
			assert.Equal(t, tt.want, verdict)
		})
	}
}

func TestSameProduct_UnexpectedAnswer(t *testing.T) {
	server := httptest.NewServer(answerHandler(t, "maybe"))
	defer server.Close()

	verdict, err := newTestClient(server.URL).SameProduct(context.Background(), "a", "b")

	assert.Equal(t, domain.VerdictUnavailable, verdict)
	assert.ErrorIs(t, err, domain.ErrClassifierFailure)
}

func TestSameProduct_ServerError_Retries(t *testing.T) {
	attempts := 0
	ok := answerHandler(t, "YES")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		ok(w, r)
	}))
	defer server.Close()

	verdict, err := newTestClient(server.URL).SameProduct(context.Background(), "a", "b")

	require.NoError(t, err)
	assert.Equal(t, domain.VerdictSame, verdict)
	assert.Equal(t, 2, attempts)
}

func TestSameProduct_ClientError_NoRetry(t *testing.T) {
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	verdict, err := newTestClient(server.URL).SameProduct(context.Background(), "a", "b")

	assert.Equal(t, domain.VerdictUnavailable, verdict)
	assert.ErrorIs(t, err, domain.ErrClassifierFailure)
	assert.Equal(t, 1, attempts) // Should not retry 4xx errors
}

func TestSameProduct_AllRetriesFail(t *testing.T) {
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	verdict, err := newTestClient(server.URL).SameProduct(context.Background(), "a", "b")

	assert.Equal(t, domain.VerdictUnavailable, verdict)
	assert.Error(t, err)
	assert.Equal(t, maxAttempts, attempts)
}

func TestSameProduct_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	verdict, err := newTestClient(server.URL).SameProduct(context.Background(), "a", "b")

	assert.Equal(t, domain.VerdictUnavailable, verdict)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestSameProduct_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	verdict, err := newTestClient(server.URL).SameProduct(ctx, "a", "b")

	assert.Equal(t, domain.VerdictUnavailable, verdict)
	assert.Error(t, err)
}

func TestReadLimitedBody(t *testing.T) {
	t.Run("truncates beyond limit", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for i := 0; i < 100; i++ {
				w.Write([]byte("0123456789"))
			}
		}))
		defer server.Close()

		resp, err := http.Get(server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := readLimitedBody(resp.Body, 100)
		require.NoError(t, err)
		assert.Len(t, body, 100)
	})
}

func TestDisabled(t *testing.T) {
	verdict, err := Disabled{}.SameProduct(context.Background(), "a", "b")

	assert.Equal(t, domain.VerdictUnavailable, verdict)
	assert.ErrorIs(t, err, domain.ErrClassifierUnavailable)
}
