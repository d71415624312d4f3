package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
	"github.com/overtone-labs/overtone-core/internal/core/ports/driven"
)

// Ensure the Gemini client implements both driven ports
var (
	_ driven.VisionService   = (*Gemini)(nil)
	_ driven.AnswerGenerator = (*Gemini)(nil)
)

const (
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiDefaultModel   = "gemini-2.5-flash"
)

// answerSystemInstruction constrains the model to the retrieved context.
const answerSystemInstruction = `You are a precise assistant that answers questions based ONLY on the CONTEXT provided below.
Your answers must be accurate, concise, and backed by the source material.

RULES:
1. If the context does not contain the answer, you MUST state, "I cannot answer this question based on the ingested content."
2. Do NOT use external knowledge.
3. When possible, summarize the answer in a brief sentence before providing details.
4. List the sources (file name and timestamp) used to generate your answer.`

// captionPrompt guides frame and image description.
const captionPrompt = "Provide a detailed, objective description of this video frame, " +
	"noting any text, diagrams, key people, or slide content. " +
	"Keep the description concise and factual."

// Gemini is the client for Google's generateContent API, serving both the
// vision captioning and answer generation ports with one multimodal model.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGemini creates a Gemini client.
func NewGemini(apiKey, model, baseURL string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = geminiDefaultModel
	}
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	return &Gemini{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// Request/response shapes for the generateContent endpoint.

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"system_instruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Caption returns an objective description of the image at path.
func (g *Gemini) Caption(ctx context.Context, path string) (string, error) {
	imageData, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	req := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: captionPrompt},
				{InlineData: &geminiInlineData{
					MimeType: mimeTypeForImage(path),
					Data:     base64.StdEncoding.EncodeToString(imageData),
				}},
			},
		}},
	}

	text, err := g.generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("caption generation failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// GenerateAnswer produces a grounded answer from the retrieved context.
func (g *Gemini) GenerateAnswer(ctx context.Context, query string, sources []domain.SourceChunk) (string, error) {
	var contextBlock strings.Builder
	for i, chunk := range sources {
		var ts string
		if chunk.StartTime != nil {
			ts = fmt.Sprintf(", Time: %.1fs", *chunk.StartTime)
		}
		fmt.Fprintf(&contextBlock, "[Source %d, File: %s%s]\n%s\n\n", i+1, chunk.SourceFile, ts, chunk.ChunkText)
	}

	prompt := fmt.Sprintf(`CONTEXT:
---
%s---

USER QUESTION: %q

Based ONLY on the CONTEXT provided above, generate a final, definitive answer that adheres to your rules.`,
		contextBlock.String(), query)

	req := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: answerSystemInstruction}}},
		Contents:          []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &geminiGenerationConfig{
			// Low temperature for factual grounded answers
			Temperature:     0.2,
			MaxOutputTokens: 2048,
		},
	}

	answer, err := g.generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("answer generation failed: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// Model returns the model name being used
func (g *Gemini) Model() string {
	return g.model
}

// Ping verifies the API is reachable
func (g *Gemini) Ping(ctx context.Context) error {
	req := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: "ping"}}}},
		GenerationConfig: &geminiGenerationConfig{
			MaxOutputTokens: 1,
		},
	}
	_, err := g.generate(ctx, req)
	return err
}

// HealthCheck verifies the vision provider is reachable
func (g *Gemini) HealthCheck(ctx context.Context) error {
	return g.Ping(ctx)
}

// Close releases resources held by the client
func (g *Gemini) Close() error {
	g.client.CloseIdleConnections()
	return nil
}

// generate calls the generateContent endpoint and returns the first
// candidate's text.
func (g *Gemini) generate(ctx context.Context, reqBody geminiRequest) (string, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var genResp geminiResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if genResp.Error != nil {
		return "", fmt.Errorf("Gemini API error: %s (status: %s)", genResp.Error.Message, genResp.Error.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Gemini API returned status %d", resp.StatusCode)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("Gemini returned no candidates")
	}
	return genResp.Candidates[0].Content.Parts[0].Text, nil
}

func mimeTypeForImage(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
