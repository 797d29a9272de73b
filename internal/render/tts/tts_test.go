package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/mathreel/internal/cache"
	"github.com/dgallion1/mathreel/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestAzureClient_Synthesize(t *testing.T) {
	wav := SilentWAV(time.Second, 24000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Ocp-Apim-Subscription-Key"))
		assert.Equal(t, "application/ssml+xml", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `<voice name="ja-JP-NanamiNeural">x &lt; 1</voice>`)
		assert.Contains(t, string(body), `xml:lang="ja-JP"`)
		w.Write(wav)
	}))
	defer srv.Close()

	c := NewAzureClient("secret", "japaneast").WithEndpoint(srv.URL)
	got, err := c.Synthesize(context.Background(), Request{Text: "x < 1", Voice: "ja-JP-NanamiNeural", Language: "ja-JP"})
	require.NoError(t, err)
	assert.Equal(t, wav, got)
}

func TestGoogleClient_Synthesize(t *testing.T) {
	wav := SilentWAV(500*time.Millisecond, 24000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		var req googleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ja-JP", req.Voice.LanguageCode)
		assert.Equal(t, "ja-JP-Wavenet-B", req.Voice.Name)
		assert.Equal(t, "LINEAR16", req.AudioConfig.AudioEncoding)
		json.NewEncoder(w).Encode(googleResponse{AudioContent: base64.StdEncoding.EncodeToString(wav)})
	}))
	defer srv.Close()

	c := NewGoogleClient("k").WithEndpoint(srv.URL)
	got, err := c.Synthesize(context.Background(), Request{Text: "こんにちは", Voice: "ja-JP-Wavenet-B"})
	require.NoError(t, err)
	assert.Equal(t, wav, got)
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tt.status)
		}))
		_, err := NewAzureClient("k", "r").WithEndpoint(srv.URL).Synthesize(context.Background(), Request{Text: "a", Voice: "v"})
		srv.Close()
		require.Error(t, err)
		assert.Equal(t, tt.transient, render.IsTransient(err), "status %d", tt.status)
	}
}

func TestTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewGoogleClient("k").WithEndpoint(srv.URL).Synthesize(ctx, Request{Text: "a"})
	require.Error(t, err)
	assert.True(t, render.IsTransient(err))
}

func TestProviderFor(t *testing.T) {
	assert.Equal(t, ProviderAzure, ProviderFor("ja-JP-NanamiNeural"))
	assert.Equal(t, ProviderGoogle, ProviderFor("ja-JP-Wavenet-A"))
	assert.Equal(t, ProviderGoogle, ProviderFor("ja-JP-Neural2-B"))
	assert.Equal(t, ProviderGoogle, ProviderFor("en-US-Standard-C"))
	assert.Equal(t, "", ProviderFor("custom"))
}

type fakeSynth struct {
	calls atomic.Int32
	audio []byte
	err   error
}

func (f *fakeSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	f.calls.Add(1)
	return f.audio, f.err
}

func TestRouter(t *testing.T) {
	azure := &fakeSynth{audio: []byte("a")}
	google := &fakeSynth{audio: []byte("g")}
	r := &Router{Providers: map[string]Synthesizer{ProviderAzure: azure, ProviderGoogle: google}, Default: ProviderAzure}

	got, err := r.Synthesize(context.Background(), Request{Voice: "ja-JP-Wavenet-A"})
	require.NoError(t, err)
	assert.Equal(t, "g", string(got))

	got, err = r.Synthesize(context.Background(), Request{Voice: "unknown"})
	require.NoError(t, err)
	assert.Equal(t, "a", string(got))

	_, err = (&Router{}).Synthesize(context.Background(), Request{Voice: "x"})
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestCached(t *testing.T) {
	next := &fakeSynth{audio: []byte("audio")}
	c := &Cached{Next: next, Cache: cache.NewMemoryClient(10), TTL: time.Hour}
	req := Request{Text: "t", Voice: "v", Language: "ja-JP"}

	for i := 0; i < 3; i++ {
		got, err := c.Synthesize(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "audio", string(got))
	}
	assert.Equal(t, int32(1), next.calls.Load())

	_, _ = c.Synthesize(context.Background(), Request{Text: "t", Voice: "other", Language: "ja-JP"})
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCached_DoesNotStoreFailures(t *testing.T) {
	next := &fakeSynth{err: render.NewTransient("tts.azure", errors.New("busy"))}
	mem := cache.NewMemoryClient(10)
	c := &Cached{Next: next, Cache: mem}
	_, err := c.Synthesize(context.Background(), Request{Text: "t"})
	assert.True(t, render.IsTransient(err))
	assert.Equal(t, 0, mem.Len())
}

func TestClipKeyDistinguishesFields(t *testing.T) {
	a := ClipKey(Request{Text: "ab", Voice: "c"})
	b := ClipKey(Request{Text: "a", Voice: "bc"})
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "clip:"))
}

func TestRateLimited_DeadlineIsTransient(t *testing.T) {
	r := &RateLimited{Next: &fakeSynth{}, Limiter: rate.NewLimiter(rate.Every(time.Hour), 1)}
	_, err := r.Synthesize(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = r.Synthesize(ctx, Request{})
	require.Error(t, err)
	assert.True(t, render.IsTransient(err))
}

func TestWAVDuration(t *testing.T) {
	d, err := WAVDuration(SilentWAV(1500*time.Millisecond, 24000))
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	_, err = WAVDuration([]byte("garbage"))
	assert.ErrorIs(t, err, ErrNotWAV)

	// Streaming headers leave the data size unset.
	wav := SilentWAV(time.Second, 8000)
	copy(wav[40:44], []byte{0xFF, 0xFF, 0xFF, 0xFF})
	d, err = WAVDuration(wav)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)
}

func TestRenderer_SilentClipSkipsProvider(t *testing.T) {
	synth := &fakeSynth{}
	r := &Renderer{Synth: synth, SilentDuration: 2 * time.Second}
	out := filepath.Join(t.TempDir(), "audio", "clip-000.wav")

	clip, err := r.Render(context.Background(), SlideInput{Index: 0, Narration: "  ", OutPath: out}, nil)
	require.NoError(t, err)
	assert.True(t, clip.Silent)
	assert.Equal(t, 2*time.Second, clip.Duration)
	assert.Equal(t, int32(0), synth.calls.Load())
	_, err = os.Stat(out)
	assert.NoError(t, err)
}

func TestRenderer_RejectsNonWAV(t *testing.T) {
	r := &Renderer{Synth: &fakeSynth{audio: []byte("mp3?")}}
	_, err := r.Render(context.Background(), SlideInput{Narration: "hi", OutPath: filepath.Join(t.TempDir(), "c.wav")}, nil)
	require.Error(t, err)
	assert.False(t, render.IsTransient(err))
}
