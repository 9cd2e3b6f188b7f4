// Package images synthesizes pictures to attach to generated posts.
package images

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"
)

// Provider defines the interface for image synthesis backends.
type Provider interface {
	// Synthesize renders count images for the prompt and returns their
	// raw bytes.
	Synthesize(ctx context.Context, prompt string, count int) ([][]byte, error)
}

const defaultSiliconFlowURL = "https://api.siliconflow.cn/v1/images/generations"

// SiliconFlowProvider implements Provider on the SiliconFlow image API.
type SiliconFlowProvider struct {
	apiKey string
	model  string

	baseURL    string
	httpClient *http.Client
}

// NewSiliconFlowProvider creates a SiliconFlow provider.
func NewSiliconFlowProvider(apiKey, model string) *SiliconFlowProvider {
	return &SiliconFlowProvider{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultSiliconFlowURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type generationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	ImageSize      string `json:"image_size"`
	BatchSize      int    `json:"batch_size"`
	Seed           int64  `json:"seed"`
	InferenceSteps int    `json:"num_inference_steps"`
}

type generationResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// Synthesize implements Provider. A failed download of one image skips it
// rather than failing the batch; an empty batch is an error so the caller
// can degrade to a text-only post.
func (p *SiliconFlowProvider) Synthesize(ctx context.Context, prompt string, count int) ([][]byte, error) {
	if count <= 0 {
		count = 1
	}
	if count > 4 {
		count = 4
	}

	payload, err := json.Marshal(generationRequest{
		Model:          p.model,
		Prompt:         prompt,
		NegativePrompt: "lowres, bad anatomy, text, watermark, blurry",
		ImageSize:      "1024x1024",
		BatchSize:      count,
		Seed:           rand.Int63n(9999999999),
		InferenceSteps: 20,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image generation request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read generation response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image generation returned status %d: %s", res.StatusCode, body)
	}

	var parsed generationResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse generation response: %w", err)
	}
	if len(parsed.Images) == 0 {
		return nil, fmt.Errorf("image generation returned no images")
	}

	var images [][]byte
	for _, img := range parsed.Images {
		data, err := p.download(ctx, img.URL)
		if err != nil {
			log.Printf("[images] skipping image that failed to download: %v", err)
			continue
		}
		images = append(images, data)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("all generated images failed to download")
	}
	return images, nil
}

func (p *SiliconFlowProvider) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned status %d", res.StatusCode)
	}
	return io.ReadAll(io.LimitReader(res.Body, 16<<20))
}
