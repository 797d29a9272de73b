// Package tts is the audio adapter: one synthesized clip per slide.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dgallion1/mathreel/internal/render"
)

// Request is one synthesis call.
type Request struct {
	Text     string
	Voice    string
	Language string
}

// Synthesizer turns text into WAV audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

const maxAudioBytes = 64 << 20

// do sends req and returns the body of a 2xx response. 429 and 5xx responses and
// transport failures are transient; other statuses are fatal.
func do(ctx context.Context, client *http.Client, op string, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, render.FromContext(ctx, op, err)
		}
		return nil, render.NewTransient(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, render.FromContext(ctx, op, err)
		}
		return nil, render.NewTransient(op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &render.AdapterError{
			Kind:    render.Transient,
			Op:      op,
			Message: fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(body), 200)),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, render.Fatalf(op, "status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Provider names.
const (
	ProviderAzure  = "azure"
	ProviderGoogle = "google"
)

// ProviderFor infers the provider from a voice id: Google voices carry a family
// marker (Wavenet, Standard, Neural2, Studio, Chirp), Azure voices end in "Neural".
func ProviderFor(voice string) string {
	for _, family := range []string{"-Wavenet-", "-Standard-", "-Neural2-", "-Studio-", "-Chirp", "-Polyglot-", "-News-"} {
		if strings.Contains(voice, family) {
			return ProviderGoogle
		}
	}
	if strings.HasSuffix(voice, "Neural") || strings.HasSuffix(voice, "MultilingualNeural") {
		return ProviderAzure
	}
	return ""
}

// ErrNoProvider is returned when a voice matches no configured provider.
var ErrNoProvider = errors.New("no tts provider for voice")

// Router dispatches to a provider by voice id, falling back to Default.
type Router struct {
	Providers map[string]Synthesizer
	Default   string
}

func (r *Router) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	name := ProviderFor(req.Voice)
	s, ok := r.Providers[name]
	if !ok {
		s, ok = r.Providers[r.Default]
	}
	if !ok {
		return nil, &render.AdapterError{Kind: render.Fatal, Op: "tts.route", Message: fmt.Sprintf("voice %q", req.Voice), Err: ErrNoProvider}
	}
	return s.Synthesize(ctx, req)
}
