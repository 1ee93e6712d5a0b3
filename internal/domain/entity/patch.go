package entity

import (
	"encoding/json"
	"fmt"
)

// Patch - частичное обновление полей, ключи совпадают с JSON именами.
type Patch map[string]any

// Apply накладывает патч на поля и возвращает новое значение.
// Неизвестные ключи игнорируются.
func (p Patch) Apply(f Fields) (Fields, error) {
	raw, err := EncodeFields(f)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]any)
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, fmt.Errorf("failed to unpack fields: %w", err)
	}
	for k, v := range p {
		merged[k] = v
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return DecodeFields(f.Kind(), out)
}
