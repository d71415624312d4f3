package ai

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
)

func TestOpenAIEmbeddingNormalizesVectors(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req["model"])

		// Unnormalized vector; the adapter must scale it to unit length.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 0, "embedding": []float32{3, 0, 4}},
			},
		})
	}))
	defer server.Close()

	svc, err := NewOpenAIEmbedding("test-key", "", server.URL)
	require.NoError(t, err)

	vectors, err := svc.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.InDelta(t, 0.6, vectors[0][0], 1e-6)
	assert.InDelta(t, 0.8, vectors[0][2], 1e-6)

	var norm float64
	for _, x := range vectors[0] {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
}

func TestOpenAIEmbeddingPreservesInputOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Response deliberately out of order; the adapter sorts by index.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{0, 1}},
				{"index": 0, "embedding": []float32{1, 0}},
			},
		})
	}))
	defer server.Close()

	svc, err := NewOpenAIEmbedding("test-key", "", server.URL)
	require.NoError(t, err)

	vectors, err := svc.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, float32(1), vectors[0][0])
	assert.Equal(t, float32(1), vectors[1][1])
}

func TestOpenAIEmbeddingSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid api key", "type": "auth_error"},
		})
	}))
	defer server.Close()

	svc, err := NewOpenAIEmbedding("bad-key", "", server.URL)
	require.NoError(t, err)

	_, err = svc.Embed(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestOpenAIEmbeddingRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIEmbedding("", "", "")
	assert.Error(t, err)
}

func TestGeminiCaptionSendsInlineImage(t *testing.T) {
	var gotReq geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "A slide listing Newton's laws.  "}}}},
			},
		})
	}))
	defer server.Close()

	framePath := filepath.Join(t.TempDir(), "frame_0001.jpg")
	require.NoError(t, os.WriteFile(framePath, []byte("jpeg bytes"), 0o644))

	svc, err := NewGemini("test-key", "", server.URL)
	require.NoError(t, err)

	caption, err := svc.Caption(context.Background(), framePath)
	require.NoError(t, err)
	assert.Equal(t, "A slide listing Newton's laws.", caption)

	require.Len(t, gotReq.Contents, 1)
	require.Len(t, gotReq.Contents[0].Parts, 2)
	require.NotNil(t, gotReq.Contents[0].Parts[1].InlineData)
	assert.Equal(t, "image/jpeg", gotReq.Contents[0].Parts[1].InlineData.MimeType)
	assert.NotEmpty(t, gotReq.Contents[0].Parts[1].InlineData.Data)
}

func TestGeminiGenerateAnswerBuildsGroundedPrompt(t *testing.T) {
	var gotReq geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "Inertia resists changes in motion."}}}},
			},
		})
	}))
	defer server.Close()

	svc, err := NewGemini("test-key", "", server.URL)
	require.NoError(t, err)

	start := 29.0
	answer, err := svc.GenerateAnswer(context.Background(), "what is inertia", []domain.SourceChunk{
		{SourceFile: "lecture.mp4", ChunkText: "inertia is the tendency...", StartTime: &start},
	})
	require.NoError(t, err)
	assert.Equal(t, "Inertia resists changes in motion.", answer)

	require.NotNil(t, gotReq.SystemInstruction)
	require.Len(t, gotReq.Contents, 1)
	prompt := gotReq.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, "what is inertia")
	assert.Contains(t, prompt, "[Source 1, File: lecture.mp4, Time: 29.0s]")
	assert.Contains(t, prompt, "inertia is the tendency...")

	require.NotNil(t, gotReq.GenerationConfig)
	assert.InDelta(t, 0.2, gotReq.GenerationConfig.Temperature, 1e-9)
}

func TestGeminiSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 400, "message": "invalid argument", "status": "INVALID_ARGUMENT"},
		})
	}))
	defer server.Close()

	svc, err := NewGemini("test-key", "", server.URL)
	require.NoError(t, err)

	_, err = svc.GenerateAnswer(context.Background(), "query", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid argument")
}

func TestSarvamTranscribeSubmitsMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("api-subscription-key"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "saarika:v2.5", r.FormValue("model"))
		assert.Equal(t, "hi-IN", r.FormValue("language_code"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "segment_0000.mp3", header.Filename)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"request_id": "req-1",
			"transcript": "  नमस्ते, welcome to the lecture.  ",
		})
	}))
	defer server.Close()

	segmentPath := filepath.Join(t.TempDir(), "segment_0000.mp3")
	require.NoError(t, os.WriteFile(segmentPath, []byte("audio bytes"), 0o644))

	svc, err := NewSarvamTranscriber("test-key", "", server.URL)
	require.NoError(t, err)

	transcript, err := svc.Transcribe(context.Background(), segmentPath, "hi-IN")
	require.NoError(t, err)
	assert.Equal(t, "नमस्ते, welcome to the lecture.", transcript.Text)
	assert.Empty(t, transcript.Segments)
}

func TestSarvamEmptyTranscriptIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"transcript": ""})
	}))
	defer server.Close()

	segmentPath := filepath.Join(t.TempDir(), "silence.mp3")
	require.NoError(t, os.WriteFile(segmentPath, []byte("audio"), 0o644))

	svc, err := NewSarvamTranscriber("test-key", "", server.URL)
	require.NoError(t, err)

	transcript, err := svc.Transcribe(context.Background(), segmentPath, "")
	require.NoError(t, err)
	assert.Empty(t, transcript.Text)
}

func TestSarvamSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid subscription key", "code": "403"},
		})
	}))
	defer server.Close()

	segmentPath := filepath.Join(t.TempDir(), "segment.mp3")
	require.NoError(t, os.WriteFile(segmentPath, []byte("audio"), 0o644))

	svc, err := NewSarvamTranscriber("bad-key", "", server.URL)
	require.NoError(t, err)

	_, err = svc.Transcribe(context.Background(), segmentPath, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid subscription key")
}
