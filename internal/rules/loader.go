package rules

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRules []byte

const (
	defaultFallbackStatus         = "N/A"
	defaultFallbackExplanation    = "Nilai di luar rentang yang dikonfigurasi"
	defaultFallbackRecommendation = "Tidak ada rekomendasi"
)

// Default returns the built-in site configuration.
func Default() (*Bundle, error) {
	return Parse(defaultRules)
}

func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault reads path when set and falls back to the embedded bundle otherwise.
// The result is validated.
func LoadOrDefault(path string) (*Bundle, error) {
	var (
		b   *Bundle
		err error
	)
	if strings.TrimSpace(path) == "" {
		b, err = Default()
	} else {
		b, err = Load(path)
	}
	if err != nil {
		return nil, err
	}
	if err := Validate(b); err != nil {
		return nil, err
	}
	return b, nil
}

func Parse(data []byte) (*Bundle, error) {
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	applyDefaults(&b)
	return &b, nil
}

func applyDefaults(b *Bundle) {
	if b.Fallback.Status == "" {
		b.Fallback.Status = defaultFallbackStatus
	}
	if b.Fallback.Explanation == "" {
		b.Fallback.Explanation = defaultFallbackExplanation
	}
	if b.Fallback.Recommendation == "" {
		b.Fallback.Recommendation = defaultFallbackRecommendation
	}
	for i := range b.Parameters {
		if b.Parameters[i].OutOfRange == "" {
			b.Parameters[i].OutOfRange = OutOfRangeUnclassified
		}
	}
}

// Fingerprint identifies the loaded rule set in logs and API responses.
func (b *Bundle) Fingerprint() string {
	data, err := yaml.Marshal(b)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
