package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cvforge/internal/config"
)

// Translator 是翻译与语言识别能力的抽象。
// DetectLanguage 供内容落库时的尽力而为识别；Translate 供显式翻译请求，
// 失败必须向上传播。
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
	DetectLanguage(ctx context.Context, text string) (string, error)
}

// New 按配置选定一个翻译提供方，进程内只选择一次。
func New(cfg config.TranslatorConfig) (Translator, error) {
	client := &http.Client{Timeout: 30 * time.Second}

	switch cfg.Provider {
	case "microsoft":
		return &microsoftTranslator{client: client, apiKey: cfg.APIKey, endpoint: cfg.Endpoint}, nil
	case "deepl":
		return &deepLTranslator{client: client, apiKey: cfg.APIKey, endpoint: cfg.Endpoint}, nil
	case "libre":
		return &libreTranslator{client: client, apiKey: cfg.APIKey, endpoint: cfg.Endpoint}, nil
	case "ai":
		return &aiTranslator{client: client, apiKey: cfg.APIKey, endpoint: cfg.Endpoint, model: cfg.Model}, nil
	default:
		return nil, fmt.Errorf("unknown translator provider %q", cfg.Provider)
	}
}

// postJSON 发送 JSON 请求并把响应体解码到 out。
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
