package compositor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"customizer/core"
	"customizer/imageio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeModel(t *testing.T, respond func(w http.ResponseWriter, req ChatCompletionRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ChatCompletionRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		respond(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newAI(baseURL string) *AI {
	return NewAI(AIOptions{APIKey: "test-key", BaseURL: baseURL, Model: "image-model", Timeout: 5 * time.Second},
		imageio.NewHTTPLoader(nil, 5*time.Second), quietLogger())
}

func aiRequest(t *testing.T) core.CompositeRequest {
	return core.CompositeRequest{
		BaseImageDataURI:  solidURI(t, 6, 8, white),
		BaseImageWidthPx:  600,
		BaseImageHeightPx: 800,
		Overlays: []core.ImageTransform{
			{ImageDataURI: solidURI(t, 2, 2, blue), X: 300, Y: 400, Width: 50, Height: 50, ZIndex: 1},
			{ImageDataURI: solidURI(t, 2, 2, red), X: 300, Y: 400, Width: 100, Height: 100, Rotation: 45},
		},
	}
}

func TestAIComposite(t *testing.T) {
	req := aiRequest(t)
	var got ChatCompletionRequest
	srv := fakeModel(t, func(w http.ResponseWriter, r ChatCompletionRequest) {
		got = r
		w.Write([]byte(`{
			"id": "cmpl-1",
			"model": "image-model",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {
					"role": "assistant",
					"content": "A white shirt with a red diamond and a blue square. It looks great.",
					"images": [{"type": "image_url", "image_url": {"url": "data:image/png;base64,AAAA"}}]
				}
			}]
		}`))
	})

	res, err := newAI(srv.URL).Composite(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAAA", res.CompositeImageURL)
	assert.Equal(t, "A white shirt with a red diamond and a blue square.", res.AltText)

	assert.Equal(t, "image-model", got.Model)
	assert.Equal(t, []string{"image", "text"}, got.Modalities)
	require.Len(t, got.Messages, 1)

	parts := got.Messages[0].Content
	require.Len(t, parts, 7)
	assert.Equal(t, LiteralTypeImageURL, parts[0].Type)
	assert.Equal(t, req.BaseImageDataURI, parts[0].ImageURL.URL)
	assert.Contains(t, parts[1].Text, "600 pixels wide and 800 pixels high")
	// Lower zIndex first.
	assert.Equal(t, req.Overlays[1].ImageDataURI, parts[2].ImageURL.URL)
	assert.Contains(t, parts[3].Text, "100 x 100")
	assert.Contains(t, parts[3].Text, "rotate it 45.0 degrees")
	assert.Equal(t, req.Overlays[0].ImageDataURI, parts[4].ImageURL.URL)
	assert.Contains(t, parts[5].Text, "x=300, y=400")
	assert.Equal(t, LiteralTypeText, parts[6].Type)
}

func TestAICompositeImageInContentParts(t *testing.T) {
	cdn := baseServer(t)
	srv := fakeModel(t, func(w http.ResponseWriter, _ ChatCompletionRequest) {
		w.Write([]byte(`{"choices":[{"finish_reason":"stop","message":{"role":"assistant","content":[
			{"type":"text","text":"Composite ready"},
			{"type":"image_url","image_url":{"url":"` + cdn.URL + `/shirt.png"}}
		]}}]}`))
	})

	res, err := newAI(srv.URL).Composite(context.Background(), aiRequest(t))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.CompositeImageURL, "data:image/png;base64,"), res.CompositeImageURL)
	assert.Equal(t, 60, decode(t, res.CompositeImageURL).Bounds().Dx())
	assert.Equal(t, "Composite ready", res.AltText)
}

func TestAIGeneratedImageUnreachable(t *testing.T) {
	cdn := baseServer(t)
	srv := fakeModel(t, func(w http.ResponseWriter, _ ChatCompletionRequest) {
		w.Write([]byte(`{"choices":[{"message":{"content":"ok","images":[{"type":"image_url","image_url":{"url":"` + cdn.URL + `/expired.png"}}]}}]}`))
	})

	res, err := newAI(srv.URL).Composite(context.Background(), aiRequest(t))
	assert.Nil(t, res)
	var se *StageError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, StageResponse, se.Stage)
	assert.Contains(t, err.Error(), "generated image")
}

func TestAIResponseTooLarge(t *testing.T) {
	srv := fakeModel(t, func(w http.ResponseWriter, _ ChatCompletionRequest) {
		w.Write([]byte(`{"id":"`))
		w.Write(bytes.Repeat([]byte("x"), 4096))
		w.Write([]byte(`"}`))
	})

	ai := newAI(srv.URL)
	ai.maxResponse = 1024
	_, err := ai.Composite(context.Background(), aiRequest(t))
	var se *StageError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, StageResponse, se.Stage)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestAIRejectsOversizedCanvas(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	ai := NewAI(AIOptions{APIKey: "test-key", BaseURL: srv.URL, MaxCanvasPx: 1000}, nil, quietLogger())
	req := aiRequest(t)
	req.BaseImageWidthPx = 1001
	_, err := ai.Composite(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.False(t, called)
}

func TestAIInlinesRemoteImages(t *testing.T) {
	base := baseServer(t)
	req := aiRequest(t)
	req.BaseImageDataURI = ""
	req.BaseImageURL = base.URL + "/shirt.png"

	var got ChatCompletionRequest
	srv := fakeModel(t, func(w http.ResponseWriter, r ChatCompletionRequest) {
		got = r
		w.Write([]byte(`{"choices":[{"message":{"content":"ok","images":[{"type":"image_url","image_url":{"url":"data:image/png;base64,AA=="}}]}}]}`))
	})

	_, err := newAI(srv.URL).Composite(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, got.Messages)
	assert.Contains(t, got.Messages[0].Content[0].ImageURL.URL, "data:image/png;base64,")
}

func TestAIFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		stage   string
	}{
		{
			name:    "content filter",
			status:  http.StatusOK,
			body:    `{"choices":[{"finish_reason":"content_filter","message":{"content":""}}]}`,
			wantErr: ErrModelDeclined,
		},
		{
			name:    "refusal",
			status:  http.StatusOK,
			body:    `{"choices":[{"finish_reason":"stop","message":{"content":null,"refusal":"I can't help with that."}}]}`,
			wantErr: ErrModelDeclined,
		},
		{
			name:    "text only",
			status:  http.StatusOK,
			body:    `{"choices":[{"finish_reason":"stop","message":{"content":"Here is your design."}}]}`,
			wantErr: ErrNoImage,
		},
		{
			name:    "no choices",
			status:  http.StatusOK,
			body:    `{"choices":[]}`,
			wantErr: ErrNoImage,
		},
		{
			name:   "upstream error",
			status: http.StatusInternalServerError,
			body:   `{"error":"overloaded"}`,
			stage:  StageResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fakeModel(t, func(w http.ResponseWriter, _ ChatCompletionRequest) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			res, err := newAI(srv.URL).Composite(context.Background(), aiRequest(t))
			require.Error(t, err)
			assert.Nil(t, res)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.stage != "" {
				var se *StageError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, tt.stage, se.Stage)
				assert.Contains(t, err.Error(), "500")
			}
		})
	}
}

func TestAINotConfigured(t *testing.T) {
	ai := NewAI(AIOptions{}, imageio.NewHTTPLoader(nil, time.Second), quietLogger())
	_, err := ai.Composite(context.Background(), aiRequest(t))
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestAIRejectsBadOverlayBeforeCallingModel(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	req := aiRequest(t)
	req.Overlays[1].ImageDataURI = "ftp://example.com/logo.png"
	_, err := newAI(srv.URL).Composite(context.Background(), req)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageOverlay, se.Stage)
	assert.Equal(t, 1, se.Index)
	assert.False(t, called)
}
