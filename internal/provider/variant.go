package provider

import (
	"encoding/json"
	"fmt"
	"time"
)

// Значения по умолчанию.
const (
	defaultEnhanceTimeout  = 30 * time.Second
	defaultGenerateTimeout = 120 * time.Second
	defaultValidateTimeout = 60 * time.Second
)

// Variant — сконфигурированный вариант модели для одной фазы.
//
// Порядок вариантов в конфигурации задаёт приоритет:
// при равных оценках побеждает кандидат варианта с меньшим индексом.
type Variant struct {
	// ID — идентификатор модели (например, "gpt-image-1", "gemini-2.5-flash").
	ID string `json:"id"`

	// Endpoint — URL endpoint'а модели.
	Endpoint string `json:"endpoint"`

	// APIKey — ключ авторизации (передаётся как Bearer token).
	APIKey string `json:"api_key,omitempty"`

	// TimeoutSec — таймаут одного вызова в секундах.
	// 0 — использовать значение по умолчанию для фазы.
	TimeoutSec int `json:"timeout_sec,omitempty"`
}

// Timeout возвращает таймаут вызова с учётом значения по умолчанию.
func (v Variant) Timeout(def time.Duration) time.Duration {
	if v.TimeoutSec > 0 {
		return time.Duration(v.TimeoutSec) * time.Second
	}
	return def
}

// ParseVariants парсит JSON-массив вариантов из конфигурации.
//
// Формат:
//
//	[{"id": "gpt-image-1", "endpoint": "https://...", "api_key": "...", "timeout_sec": 90}]
func ParseVariants(raw string) ([]Variant, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty variant list", ErrInvalidVariants)
	}

	var variants []Variant
	if err := json.Unmarshal([]byte(raw), &variants); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVariants, err)
	}

	if len(variants) == 0 {
		return nil, fmt.Errorf("%w: empty variant list", ErrInvalidVariants)
	}

	for i, v := range variants {
		if v.ID == "" {
			return nil, fmt.Errorf("%w: variant %d has empty id", ErrInvalidVariants, i)
		}
		if v.Endpoint == "" {
			return nil, fmt.Errorf("%w: variant %q has empty endpoint", ErrInvalidVariants, v.ID)
		}
	}

	return variants, nil
}
