package compositor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"customizer/core"
	"customizer/imageio"

	"github.com/sirupsen/logrus"
)

// Chat completion wire types for OpenAI-compatible endpoints.

type LiteralType string

const (
	LiteralTypeText     LiteralType = "text"
	LiteralTypeImageURL LiteralType = "image_url"
)

type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// ContentPart is one element of a multi-part message.
type ContentPart struct {
	Type     LiteralType `json:"type"`
	Text     string      `json:"text,omitempty"`
	ImageURL *ImageURL   `json:"image_url,omitempty"`
}

type ChatMessage struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

type ChatCompletionRequest struct {
	Model      string        `json:"model"`
	Messages   []ChatMessage `json:"messages"`
	Modalities []string      `json:"modalities,omitempty"`
}

// responseMessage accepts content as a string or a part list, and generated
// images either as content parts or in a separate images list.
type responseMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Refusal string          `json:"refusal,omitempty"`
	Images  []ContentPart   `json:"images,omitempty"`
}

type ChatCompletionChoice struct {
	Index        int             `json:"index"`
	Message      responseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
}

// Fetcher returns the raw bytes behind an image reference.
type Fetcher interface {
	Fetch(ctx context.Context, src string) ([]byte, string, error)
}

type AIOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxCanvasPx int
}

// defaultMaxResponseBytes bounds the model response body.
const defaultMaxResponseBytes = 64 << 20

// AI asks a generative model to composite the overlays. Output is not
// deterministic.
type AI struct {
	opts        AIOptions
	client      *http.Client
	fetcher     Fetcher
	logger      logrus.FieldLogger
	maxResponse int
}

func NewAI(opts AIOptions, fetcher Fetcher, logger logrus.FieldLogger) *AI {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.MaxCanvasPx <= 0 {
		opts.MaxCanvasPx = DefaultMaxCanvasPx
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AI{
		opts:        opts,
		client:      &http.Client{Timeout: opts.Timeout},
		fetcher:     fetcher,
		logger:      logger,
		maxResponse: defaultMaxResponseBytes,
	}
}

// Composite sends one multi-part prompt: the base image, the canvas size,
// then every overlay in paint order paired with its placement.
func (a *AI) Composite(ctx context.Context, req core.CompositeRequest) (*core.CompositeResult, error) {
	if a.opts.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if err := validate(req, a.opts.MaxCanvasPx); err != nil {
		return nil, err
	}

	parts, err := a.prompt(ctx, req)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(ChatCompletionRequest{
		Model:      a.opts.Model,
		Messages:   []ChatMessage{{Role: "user", Content: parts}},
		Modalities: []string{"image", "text"},
	})
	if err != nil {
		return nil, stageErr(StageRequest, err)
	}

	resp, err := a.send(ctx, body)
	if err != nil {
		return nil, err
	}

	result, err := parseResult(resp)
	if err != nil {
		return nil, stageErr(StageResponse, err)
	}
	inlined, err := a.inline(ctx, result.CompositeImageURL)
	if err != nil {
		return nil, stageErr(StageResponse, fmt.Errorf("failed to fetch generated image: %w", err))
	}
	result.CompositeImageURL = inlined

	a.logger.WithFields(logrus.Fields{
		"model":    resp.Model,
		"overlays": len(req.Overlays),
	}).Info("AI composite generated")
	return result, nil
}

func (a *AI) prompt(ctx context.Context, req core.CompositeRequest) ([]ContentPart, error) {
	base, err := a.inline(ctx, req.Source())
	if err != nil {
		return nil, stageErr(StageBase, err)
	}

	parts := []ContentPart{
		imagePart(base),
		textPart(fmt.Sprintf(
			"This is the base product image. The output canvas is exactly %d pixels wide and %d pixels high. "+
				"Keep the product unchanged and place each of the following images on it.",
			req.BaseImageWidthPx, req.BaseImageHeightPx)),
	}

	for n, o := range paintOrder(req.Overlays) {
		uri, err := a.inline(ctx, o.ImageDataURI)
		if err != nil {
			return nil, &StageError{Stage: StageOverlay, Index: o.index, Err: err}
		}
		parts = append(parts,
			imagePart(uri),
			textPart(fmt.Sprintf(
				"Overlay %d: scale it to %.0f x %.0f pixels, center it at x=%.0f, y=%.0f pixels from the top-left corner, "+
					"and rotate it %.1f degrees clockwise about its center. Draw it above earlier overlays.",
				n+1, o.Width, o.Height, o.X, o.Y, o.Rotation)),
		)
	}

	parts = append(parts, textPart(
		"Blend the overlays naturally with the fabric, following folds and shading. "+
			"Return the composite image and one sentence describing it."))
	return parts, nil
}

// inline turns a remote reference into a data URI. Inputs are inlined so
// the model sees the exact bytes; outputs so callers never get a link that
// expires.
func (a *AI) inline(ctx context.Context, src string) (string, error) {
	if strings.HasPrefix(src, "data:") {
		return src, nil
	}
	if a.fetcher == nil {
		return "", fmt.Errorf("cannot fetch %q: no fetcher configured", src)
	}
	data, contentType, err := a.fetcher.Fetch(ctx, src)
	if err != nil {
		return "", err
	}
	return imageio.DataURI(contentType, data), nil
}

func (a *AI) send(ctx context.Context, body []byte) (*ChatCompletionResponse, error) {
	url := strings.TrimSuffix(a.opts.BaseURL, "/") + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, stageErr(StageRequest, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.opts.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, stageErr(StageRequest, fmt.Errorf("failed to reach model: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, int64(a.maxResponse)+1))
	if err != nil {
		return nil, stageErr(StageResponse, err)
	}
	if len(raw) > a.maxResponse {
		return nil, stageErr(StageResponse, fmt.Errorf("model response exceeds %d bytes", a.maxResponse))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, stageErr(StageResponse, fmt.Errorf("model returned status %d: %s", resp.StatusCode, truncate(string(raw), 200)))
	}

	var out ChatCompletionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, stageErr(StageResponse, fmt.Errorf("invalid model response: %w", err))
	}
	return &out, nil
}

func parseResult(resp *ChatCompletionResponse) (*core.CompositeResult, error) {
	if len(resp.Choices) == 0 {
		return nil, ErrNoImage
	}
	choice := resp.Choices[0]
	msg := choice.Message

	var text string
	images := msg.Images
	if len(msg.Content) > 0 {
		var s string
		var parts []ContentPart
		switch {
		case json.Unmarshal(msg.Content, &s) == nil:
			text = s
		case json.Unmarshal(msg.Content, &parts) == nil:
			for _, p := range parts {
				switch p.Type {
				case LiteralTypeText:
					text += p.Text
				case LiteralTypeImageURL:
					images = append(images, p)
				}
			}
		}
	}

	for _, img := range images {
		if img.ImageURL != nil && img.ImageURL.URL != "" {
			return &core.CompositeResult{
				CompositeImageURL: img.ImageURL.URL,
				AltText:           firstSentence(text),
			}, nil
		}
	}

	if choice.FinishReason == "content_filter" || msg.Refusal != "" {
		reason := msg.Refusal
		if reason == "" {
			reason = strings.TrimSpace(text)
		}
		if reason == "" {
			return nil, ErrModelDeclined
		}
		return nil, fmt.Errorf("%w: %s", ErrModelDeclined, truncate(reason, 200))
	}
	return nil, ErrNoImage
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultAltText
	}
	if i := strings.IndexAny(s, ".!?"); i >= 0 {
		return s[:i+1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func textPart(s string) ContentPart {
	return ContentPart{Type: LiteralTypeText, Text: s}
}

func imagePart(url string) ContentPart {
	return ContentPart{Type: LiteralTypeImageURL, ImageURL: &ImageURL{URL: url}}
}
