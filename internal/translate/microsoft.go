package translate

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// microsoftTranslator 调用 Azure Translator Text API v3。
type microsoftTranslator struct {
	client   *http.Client
	apiKey   string
	endpoint string
}

type msTranslateResponse []struct {
	DetectedLanguage struct {
		Language string `json:"language"`
	} `json:"detectedLanguage"`
	Translations []struct {
		Text string `json:"text"`
		To   string `json:"to"`
	} `json:"translations"`
}

type msDetectResponse []struct {
	Language string  `json:"language"`
	Score    float64 `json:"score"`
}

func (t *microsoftTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	q := url.Values{}
	q.Set("api-version", "3.0")
	q.Set("to", targetLang)
	if sourceLang != "" {
		q.Set("from", sourceLang)
	}
	endpoint := strings.TrimRight(t.endpoint, "/") + "/translate?" + q.Encode()

	payload := []map[string]string{{"Text": text}}
	var parsed msTranslateResponse
	err := postJSON(ctx, t.client, endpoint, map[string]string{
		"Ocp-Apim-Subscription-Key": t.apiKey,
	}, payload, &parsed)
	if err != nil {
		return "", fmt.Errorf("microsoft translate: %w", err)
	}
	if len(parsed) == 0 || len(parsed[0].Translations) == 0 {
		return "", fmt.Errorf("microsoft translate: empty response")
	}
	return parsed[0].Translations[0].Text, nil
}

func (t *microsoftTranslator) DetectLanguage(ctx context.Context, text string) (string, error) {
	endpoint := strings.TrimRight(t.endpoint, "/") + "/detect?api-version=3.0"

	payload := []map[string]string{{"Text": text}}
	var parsed msDetectResponse
	err := postJSON(ctx, t.client, endpoint, map[string]string{
		"Ocp-Apim-Subscription-Key": t.apiKey,
	}, payload, &parsed)
	if err != nil {
		return "", fmt.Errorf("microsoft detect: %w", err)
	}
	if len(parsed) == 0 {
		return "", fmt.Errorf("microsoft detect: empty response")
	}
	return parsed[0].Language, nil
}
