package tts

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgallion1/mathreel/internal/render"
)

// AzureClient calls the Azure Speech REST API.
type AzureClient struct {
	key        string
	endpoint   string
	httpClient *http.Client
}

func NewAzureClient(key, region string) *AzureClient {
	return &AzureClient{
		key:      key,
		endpoint: fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// WithEndpoint overrides the regional endpoint.
func (c *AzureClient) WithEndpoint(url string) *AzureClient {
	c.endpoint = url
	return c
}

func (c *AzureClient) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	const op = "tts.azure"
	ssml, err := buildSSML(req)
	if err != nil {
		return nil, render.NewFatal(op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(ssml))
	if err != nil {
		return nil, render.NewFatal(op, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/ssml+xml")
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	httpReq.Header.Set("X-Microsoft-OutputFormat", "riff-24khz-16bit-mono-pcm")
	httpReq.Header.Set("User-Agent", "mathreel")

	return do(ctx, c.httpClient, op, httpReq)
}

func buildSSML(req Request) ([]byte, error) {
	lang := req.Language
	if lang == "" {
		lang = "ja-JP"
	}
	var text bytes.Buffer
	if err := xml.EscapeText(&text, []byte(req.Text)); err != nil {
		return nil, fmt.Errorf("escape ssml: %w", err)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="%s">`, attrEscape(lang))
	fmt.Fprintf(&buf, `<voice name="%s">%s</voice></speak>`, attrEscape(req.Voice), text.String())
	return buf.Bytes(), nil
}

var attrReplacer = strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", `<`, "&lt;", `>`, "&gt;")

func attrEscape(s string) string { return attrReplacer.Replace(s) }

// Close releases idle connections.
func (c *AzureClient) Close() {
	c.httpClient.CloseIdleConnections()
}
