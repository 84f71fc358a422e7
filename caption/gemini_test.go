package caption

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generateRequest is the part of a generateContent body the tests inspect.
type generateRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			InlineData *struct {
				MimeType string `json:"mimeType"`
				Data     []byte `json:"data"`
			} `json:"inlineData"`
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
}

func fakeModel(t *testing.T, status int, answer string) (*httptest.Server, *generateRequest) {
	t.Helper()
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/test-model:generateContent"), r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"code":403,"message":"permission denied","status":"PERMISSION_DENIED"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": answer}}},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func newTestClient(t *testing.T, baseURL string, ratePerMinute int) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), "k", Options{BaseURL: baseURL + "/", Model: "test-model", RatePerMinute: ratePerMinute})
	require.NoError(t, err)
	return c
}

func TestCaptionSendsImageAndPrompt(t *testing.T) {
	srv, got := fakeModel(t, http.StatusOK, "  \"Quiet Morning\"\n")
	c := newTestClient(t, srv.URL, 0)

	text, err := c.Caption(context.Background(), []byte{0xFF, 0xD8, 0x01})
	require.NoError(t, err)
	assert.Equal(t, "Quiet Morning", text)

	require.Len(t, got.Contents, 1)
	assert.Equal(t, "user", got.Contents[0].Role)
	parts := got.Contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "image/jpeg", parts[0].InlineData.MimeType)
	assert.Equal(t, []byte{0xFF, 0xD8, 0x01}, parts[0].InlineData.Data)
	assert.Equal(t, Prompt, parts[1].Text)
}

func TestCaptionErrors(t *testing.T) {
	t.Run("no key", func(t *testing.T) {
		c, err := NewClient(context.Background(), "", Options{})
		require.NoError(t, err)
		_, err = c.Caption(context.Background(), nil)
		assert.ErrorIs(t, err, ErrNoAPIKey)
	})
	t.Run("empty answer", func(t *testing.T) {
		srv, _ := fakeModel(t, http.StatusOK, "   ")
		_, err := newTestClient(t, srv.URL, 0).Caption(context.Background(), nil)
		assert.ErrorIs(t, err, ErrEmptyCaption)
	})
	t.Run("http status", func(t *testing.T) {
		srv, _ := fakeModel(t, http.StatusForbidden, "")
		_, err := newTestClient(t, srv.URL, 0).Caption(context.Background(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "403")
	})
}

func TestCaptionHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := newTestClient(t, srv.URL, 0).Caption(ctx, nil)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRateLimiterWaitsForToken(t *testing.T) {
	srv, _ := fakeModel(t, http.StatusOK, "ok")
	c := newTestClient(t, srv.URL, 1)

	_, err := c.Caption(context.Background(), nil)
	require.NoError(t, err)

	// the single token is spent; the next call cannot be served before the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Caption(ctx, nil)
	assert.Error(t, err)
}

func TestClean(t *testing.T) {
	assert.Equal(t, "salt air", Clean(" 'salt air' "))
	assert.Equal(t, "golden hour", Clean("“golden hour”"))
	assert.Equal(t, "", Clean(" \"\" "))
}
