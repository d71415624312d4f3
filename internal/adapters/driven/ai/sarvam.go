package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
	"github.com/overtone-labs/overtone-core/internal/core/ports/driven"
)

// Ensure SarvamTranscriber implements Transcriber
var _ driven.Transcriber = (*SarvamTranscriber)(nil)

const (
	sarvamDefaultBaseURL = "https://api.sarvam.ai"
	sarvamDefaultModel   = "saarika:v2.5"
)

// SarvamTranscriber implements Transcriber against the Sarvam
// speech-to-text API. One call transcribes one audio segment; the API
// enforces a 30s limit per request, which is why the pipeline submits
// sub-30s segments.
type SarvamTranscriber struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewSarvamTranscriber creates a Sarvam transcription client.
func NewSarvamTranscriber(apiKey, model, baseURL string) (*SarvamTranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Sarvam API key is required")
	}
	if model == "" {
		model = sarvamDefaultModel
	}
	if baseURL == "" {
		baseURL = sarvamDefaultBaseURL
	}
	return &SarvamTranscriber{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// sarvamResponse is the speech-to-text response body
type sarvamResponse struct {
	RequestID    string `json:"request_id"`
	Transcript   string `json:"transcript"`
	LanguageCode string `json:"language_code"`
	Error        *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Transcribe submits one audio file and returns its transcript. Times in
// the result are relative to the submitted file; an empty transcript is a
// valid result for silent audio.
func (s *SarvamTranscriber) Transcribe(ctx context.Context, filePath, languageCode string) (domain.Transcript, error) {
	audio, err := os.Open(filePath)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("failed to open audio segment: %w", err)
	}
	defer audio.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return domain.Transcript{}, fmt.Errorf("failed to read audio segment: %w", err)
	}
	if err := writer.WriteField("model", s.model); err != nil {
		return domain.Transcript{}, err
	}
	if languageCode != "" {
		if err := writer.WriteField("language_code", languageCode); err != nil {
			return domain.Transcript{}, err
		}
	}
	if err := writer.Close(); err != nil {
		return domain.Transcript{}, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/speech-to-text", &body)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("api-subscription-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("failed to read response: %w", err)
	}

	var result sarvamResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return domain.Transcript{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Error != nil {
		return domain.Transcript{}, fmt.Errorf("Sarvam API error: %s (code: %s)", result.Error.Message, result.Error.Code)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Transcript{}, fmt.Errorf("Sarvam API returned status %d", resp.StatusCode)
	}

	text := strings.TrimSpace(result.Transcript)
	return domain.Transcript{Text: text}, nil
}

// HealthCheck verifies the API key is accepted. Sarvam has no dedicated
// health endpoint, so an unauthenticated-style probe of the transcribe
// route is used: any response other than auth failure counts as healthy.
func (s *SarvamTranscriber) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/speech-to-text", nil)
	if err != nil {
		return err
	}
	req.Header.Set("api-subscription-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("Sarvam unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("Sarvam rejected the API key (status %d)", resp.StatusCode)
	}
	return nil
}
