// Package generator produces the bot's Chinese-language text: wall posts,
// comments, replies and image descriptions, all through an LLM provider.
package generator

import (
	"context"
	"fmt"
	"strings"
)

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete runs a single-turn text completion.
	Complete(ctx context.Context, prompt string) (string, error)
	// DescribeImage summarizes an image fetched from url in one short
	// Chinese sentence.
	DescribeImage(ctx context.Context, url string) (string, error)
}

// Generator wraps a provider with the bot's generation entry points.
type Generator struct {
	provider Provider
}

// New creates a generator backed by the given provider.
func New(provider Provider) *Generator {
	return &Generator{provider: provider}
}

// Generate runs the prompt and returns the model's text.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := g.provider.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if text == "" {
		return "", fmt.Errorf("model returned empty response")
	}
	return text, nil
}

// Describe summarizes the image at url. Used to enrich feed items so the
// comment prompt can mention what's in the pictures.
func (g *Generator) Describe(ctx context.Context, url string) (string, error) {
	return g.provider.DescribeImage(ctx, url)
}

// ImagePrompt turns a finished post into a prompt for the image model.
// The post text itself makes a poor image prompt, so a model pass distills
// the scene and style first.
func (g *Generator) ImagePrompt(ctx context.Context, post string) (string, error) {
	prompt := fmt.Sprintf(`请根据以下QQ空间说说内容配图，并构建生成配图的风格和prompt。
说说内容：'%s'。
请注意：仅回复用于生成图片的prompt，不要输出多余内容(包括前后缀，冒号和引号，括号()，表情包，at或 @等 )`, post)
	text, err := g.provider.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("image prompt generation failed: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("model returned empty image prompt")
	}
	return text, nil
}
