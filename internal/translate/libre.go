package translate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// libreTranslator 调用 LibreTranslate 实例。
type libreTranslator struct {
	client   *http.Client
	apiKey   string
	endpoint string
}

type libreTranslateResponse struct {
	TranslatedText string `json:"translatedText"`
}

type libreDetectResponse []struct {
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

func (t *libreTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if sourceLang == "" {
		sourceLang = "auto"
	}

	payload := map[string]string{
		"q":       text,
		"source":  sourceLang,
		"target":  targetLang,
		"api_key": t.apiKey,
	}

	var parsed libreTranslateResponse
	endpoint := strings.TrimRight(t.endpoint, "/") + "/translate"
	if err := postJSON(ctx, t.client, endpoint, nil, payload, &parsed); err != nil {
		return "", fmt.Errorf("libre translate: %w", err)
	}
	if parsed.TranslatedText == "" {
		return "", fmt.Errorf("libre translate: empty response")
	}
	return parsed.TranslatedText, nil
}

func (t *libreTranslator) DetectLanguage(ctx context.Context, text string) (string, error) {
	payload := map[string]string{
		"q":       text,
		"api_key": t.apiKey,
	}

	var parsed libreDetectResponse
	endpoint := strings.TrimRight(t.endpoint, "/") + "/detect"
	if err := postJSON(ctx, t.client, endpoint, nil, payload, &parsed); err != nil {
		return "", fmt.Errorf("libre detect: %w", err)
	}
	if len(parsed) == 0 {
		return "", fmt.Errorf("libre detect: empty response")
	}
	return parsed[0].Language, nil
}
