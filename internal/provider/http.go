package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shaiso/Retoucher/internal/domain"
)

// maxResponseBody — предел чтения тела ответа (изображения могут быть большими).
const maxResponseBody = 32 * 1024 * 1024 // 32 MB

// imagePayload — изображение в JSON-запросе.
// Data сериализуется encoding/json как base64.
type imagePayload struct {
	Name string `json:"name,omitempty"`
	Data []byte `json:"data"`
}

func toPayload(images []domain.InputImage) []imagePayload {
	if len(images) == 0 {
		return nil
	}
	out := make([]imagePayload, 0, len(images))
	for _, img := range images {
		out = append(out, imagePayload{Name: img.Name, Data: img.Data})
	}
	return out
}

// HTTPEnhancer — Enhancer поверх HTTP JSON API.
type HTTPEnhancer struct {
	client *http.Client
}

// NewHTTPEnhancer создаёт новый HTTPEnhancer.
func NewHTTPEnhancer() *HTTPEnhancer {
	return &HTTPEnhancer{client: &http.Client{}}
}

type enhanceRequest struct {
	Model       string         `json:"model"`
	Instruction string         `json:"instruction"`
	Images      []imagePayload `json:"images,omitempty"`
}

type enhanceResponse struct {
	Prompt string `json:"prompt"`
}

// Enhance вызывает текстовую модель для переработки инструкции.
func (e *HTTPEnhancer) Enhance(ctx context.Context, instruction string, images []domain.InputImage, variant Variant) (*domain.EnhancedPrompt, error) {
	req := enhanceRequest{
		Model:       variant.ID,
		Instruction: instruction,
		Images:      toPayload(images),
	}

	var resp enhanceResponse
	if err := postJSON(ctx, e.client, variant, variant.Timeout(defaultEnhanceTimeout), req, &resp); err != nil {
		return nil, fmt.Errorf("enhance %s: %w", variant.ID, err)
	}

	if resp.Prompt == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyPrompt, variant.ID)
	}

	return &domain.EnhancedPrompt{
		Variant:   variant.ID,
		Text:      resp.Prompt,
		CreatedAt: time.Now(),
	}, nil
}

// HTTPGenerator — Generator поверх HTTP JSON API.
type HTTPGenerator struct {
	client *http.Client
}

// NewHTTPGenerator создаёт новый HTTPGenerator.
func NewHTTPGenerator() *HTTPGenerator {
	return &HTTPGenerator{client: &http.Client{}}
}

type generateRequest struct {
	Model  string         `json:"model"`
	Prompt string         `json:"prompt"`
	Images []imagePayload `json:"images,omitempty"`
}

type generateResponse struct {
	Image []byte `json:"image"`
}

// Generate вызывает модель генерации изображений.
func (g *HTTPGenerator) Generate(ctx context.Context, promptText string, images []domain.InputImage, variant Variant) ([]byte, error) {
	req := generateRequest{
		Model:  variant.ID,
		Prompt: promptText,
		Images: toPayload(images),
	}

	var resp generateResponse
	if err := postJSON(ctx, g.client, variant, variant.Timeout(defaultGenerateTimeout), req, &resp); err != nil {
		return nil, fmt.Errorf("generate %s: %w", variant.ID, err)
	}

	if len(resp.Image) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyImage, variant.ID)
	}

	return resp.Image, nil
}

// HTTPValidator — Validator поверх HTTP JSON API.
type HTTPValidator struct {
	client *http.Client
}

// NewHTTPValidator создаёт новый HTTPValidator.
func NewHTTPValidator() *HTTPValidator {
	return &HTTPValidator{client: &http.Client{}}
}

type validateRequest struct {
	Model       string         `json:"model"`
	Instruction string         `json:"instruction"`
	Originals   []imagePayload `json:"originals,omitempty"`
	Candidate   []byte         `json:"candidate"`
}

type validateResponse struct {
	Score     float64  `json:"score"`
	Pass      bool     `json:"pass"`
	Issues    []string `json:"issues,omitempty"`
	Rationale string   `json:"rationale,omitempty"`
}

// Validate вызывает vision-модель для оценки кандидата.
func (v *HTTPValidator) Validate(ctx context.Context, req ValidationRequest, variant Variant) (*domain.ValidationVerdict, error) {
	body := validateRequest{
		Model:       variant.ID,
		Instruction: req.Instruction,
		Originals:   toPayload(req.Originals),
		Candidate:   req.CandidateImage,
	}

	var resp validateResponse
	if err := postJSON(ctx, v.client, variant, variant.Timeout(defaultValidateTimeout), body, &resp); err != nil {
		return nil, fmt.Errorf("validate %s: %w", variant.ID, err)
	}

	return &domain.ValidationVerdict{
		Score:     resp.Score,
		Pass:      resp.Pass,
		Issues:    resp.Issues,
		Rationale: resp.Rationale,
	}, nil
}

// postJSON выполняет POST с JSON телом и декодирует JSON ответ.
func postJSON(ctx context.Context, client *http.Client, variant Variant, timeout time.Duration, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, variant.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if variant.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+variant.APIKey)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrCallCancelled, ctx.Err())
		}
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// HTTPError — ошибка HTTP вызова модели.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

// Error реализует интерфейс error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// IsHTTPError проверяет, является ли ошибка HTTP ошибкой.
func IsHTTPError(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr)
}
