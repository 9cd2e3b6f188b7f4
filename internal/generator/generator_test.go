package generator

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type scriptedProvider struct {
	reply   string
	err     error
	prompts []string
}

func (s *scriptedProvider) Complete(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func (s *scriptedProvider) DescribeImage(ctx context.Context, url string) (string, error) {
	return "", errors.New("not used")
}

func TestGenerateEmptyResponseIsAnError(t *testing.T) {
	g := New(&scriptedProvider{reply: ""})
	if _, err := g.Generate(context.Background(), "写一条说说"); err == nil {
		t.Error("empty completion accepted")
	}
}

func TestImagePromptDistillsPostText(t *testing.T) {
	p := &scriptedProvider{reply: "  一只猫在窗台上晒太阳，水彩风格  "}
	g := New(p)

	got, err := g.ImagePrompt(context.Background(), "今天晒了一下午太阳")
	if err != nil {
		t.Fatalf("ImagePrompt: %v", err)
	}
	if got != "一只猫在窗台上晒太阳，水彩风格" {
		t.Errorf("prompt not trimmed: %q", got)
	}
	if len(p.prompts) != 1 || !strings.Contains(p.prompts[0], "今天晒了一下午太阳") {
		t.Errorf("post text missing from model prompt: %v", p.prompts)
	}
}

func TestImagePromptEmptyResponseIsAnError(t *testing.T) {
	g := New(&scriptedProvider{reply: "\n"})
	if _, err := g.ImagePrompt(context.Background(), "今天天气不错"); err == nil {
		t.Error("empty image prompt accepted")
	}
}
