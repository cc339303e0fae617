package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
)

// LoadChatbotDefaults reads the chatbot profile every chatbot starts from.
// Keys missing from the file keep the compiled defaults; an empty path or a
// missing file yields the compiled defaults unchanged.
func LoadChatbotDefaults(path string) (domain.ChatbotConfig, error) {
	cfg := domain.DefaultChatbotConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return domain.ChatbotConfig{}, fmt.Errorf("read chatbot defaults: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return domain.ChatbotConfig{}, fmt.Errorf("decode chatbot defaults %s: %w", path, err)
	}
	return cfg.Normalize(), nil
}
