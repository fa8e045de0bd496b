package translate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// aiTranslator 通过 OpenAI 兼容的 chat completions 接口完成翻译与语言识别。
type aiTranslator struct {
	client   *http.Client
	apiKey   string
	endpoint string
	model    string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (t *aiTranslator) complete(ctx context.Context, system, user string) (string, error) {
	payload := chatRequest{
		Model: t.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	var parsed chatResponse
	endpoint := strings.TrimRight(t.endpoint, "/") + "/v1/chat/completions"
	err := postJSON(ctx, t.client, endpoint, map[string]string{
		"Authorization": "Bearer " + t.apiKey,
	}, payload, &parsed)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func (t *aiTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	system := fmt.Sprintf(
		"You are a professional resume translator. Translate the user's text from %s to %s. "+
			"Preserve markdown formatting. Reply with the translation only.",
		orAuto(sourceLang), targetLang,
	)
	out, err := t.complete(ctx, system, text)
	if err != nil {
		return "", fmt.Errorf("ai translate: %w", err)
	}
	return out, nil
}

func (t *aiTranslator) DetectLanguage(ctx context.Context, text string) (string, error) {
	system := "Identify the language of the user's text. Reply with the ISO 639-1 code only, e.g. \"en\"."
	out, err := t.complete(ctx, system, text)
	if err != nil {
		return "", fmt.Errorf("ai detect: %w", err)
	}
	return strings.ToLower(strings.Trim(out, "\"' .")), nil
}

func orAuto(lang string) string {
	if lang == "" {
		return "the detected source language"
	}
	return lang
}
