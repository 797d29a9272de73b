package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgallion1/mathreel/internal/render"
)

// GoogleClient calls the Cloud Text-to-Speech REST API with an API key.
type GoogleClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

func NewGoogleClient(apiKey string) *GoogleClient {
	return &GoogleClient{
		apiKey:   apiKey,
		endpoint: "https://texttospeech.googleapis.com/v1/text:synthesize",
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// WithEndpoint overrides the API endpoint.
func (c *GoogleClient) WithEndpoint(u string) *GoogleClient {
	c.endpoint = u
	return c
}

type googleRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name,omitempty"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding   string `json:"audioEncoding"`
		SampleRateHertz int    `json:"sampleRateHertz"`
	} `json:"audioConfig"`
}

type googleResponse struct {
	AudioContent string `json:"audioContent"`
}

func (c *GoogleClient) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	const op = "tts.google"
	var body googleRequest
	body.Input.Text = req.Text
	body.Voice.LanguageCode = googleLanguage(req)
	body.Voice.Name = req.Voice
	body.AudioConfig.AudioEncoding = "LINEAR16"
	body.AudioConfig.SampleRateHertz = 24000

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, render.NewFatal(op, fmt.Errorf("marshal request: %w", err))
	}

	endpoint := c.endpoint + "?key=" + url.QueryEscape(c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, render.NewFatal(op, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	respBody, err := do(ctx, c.httpClient, op, httpReq)
	if err != nil {
		return nil, err
	}

	var resp googleResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, render.NewFatal(op, fmt.Errorf("decode response: %w", err))
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, render.NewFatal(op, fmt.Errorf("decode audio: %w", err))
	}
	if len(audio) == 0 {
		return nil, render.Fatalf(op, "empty audio content")
	}
	return audio, nil
}

// googleLanguage prefers the explicit language, then the voice's locale prefix.
func googleLanguage(req Request) string {
	if req.Language != "" {
		return req.Language
	}
	if parts := strings.SplitN(req.Voice, "-", 3); len(parts) >= 2 {
		return parts[0] + "-" + parts[1]
	}
	return "ja-JP"
}

// Close releases idle connections.
func (c *GoogleClient) Close() {
	c.httpClient.CloseIdleConnections()
}
