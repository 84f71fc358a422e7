// Package caption asks a multimodal model for a short caption of a photo.
package caption

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	DefaultModel = "gemini-2.5-flash"

	Prompt = "Generate a very short, artistic, lower-case caption (max 4 words) for this photo. It should feel like a memory. Just the caption, no quotes."
)

var (
	// ErrNoAPIKey is returned when the client was built without a key.
	ErrNoAPIKey = errors.New("caption: no API key configured")
	// ErrEmptyCaption is returned when the model answered with no text.
	ErrEmptyCaption = errors.New("caption: model returned an empty caption")
)

// Options configures a Client. Zero values pick the defaults; an empty BaseURL
// uses the Gemini API endpoint.
type Options struct {
	BaseURL       string
	Model         string
	RatePerMinute int
	HTTPClient    *http.Client
}

// Client calls Gemini through the genai SDK. Requests are throttled by a
// process-wide limiter so a burst of captures cannot exhaust the quota.
type Client struct {
	genai   *genai.Client
	model   string
	limiter *rate.Limiter
}

// NewClient builds a caption client. An empty apiKey is not an error: the
// client is returned and every Caption call fails with ErrNoAPIKey.
func NewClient(ctx context.Context, apiKey string, opts Options) (*Client, error) {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	limit := rate.Inf
	burst := 1
	if opts.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RatePerMinute))
		burst = opts.RatePerMinute
	}
	c := &Client{model: opts.Model, limiter: rate.NewLimiter(limit, burst)}
	if apiKey == "" {
		return c, nil
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  opts.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: opts.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	c.genai = gc
	return c, nil
}

// Caption returns the model's caption for a JPEG frame, trimmed of whitespace
// and stray quotes. Casing is left to the caller.
func (c *Client) Caption(ctx context.Context, jpeg []byte) (string, error) {
	if c.genai == nil {
		return "", ErrNoAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("caption: rate limiter: %w", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(jpeg, "image/jpeg"),
			genai.NewPartFromText(Prompt),
		}, genai.RoleUser),
	}
	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("caption request failed: %w", err)
	}

	caption := Clean(resp.Text())
	if caption == "" {
		return "", ErrEmptyCaption
	}
	return caption, nil
}

// Clean trims whitespace and surrounding quotes from a model answer.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'“”")
	return strings.TrimSpace(s)
}
