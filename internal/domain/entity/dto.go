package entity

import (
	"encoding/json"
	"time"
)

// WireRecord - представление записи в HTTP API.
type WireRecord struct {
	ID        string          `json:"id" doc:"Серверный идентификатор"`
	Kind      Kind            `json:"kind"`
	Fields    json.RawMessage `json:"fields" doc:"Поля записи"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ToRecord переводит ответ сервера в синхронизированную запись.
func (w WireRecord) ToRecord() (Record, error) {
	fields, err := DecodeFields(w.Kind, w.Fields)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:            w.ID,
		Kind:          w.Kind,
		Fields:        fields,
		Status:        StatusSynced,
		LastChangedAt: w.UpdatedAt,
	}, nil
}

// ListResponse - ответ на запрос списка.
type ListResponse struct {
	Records []WireRecord `json:"records"`
	Total   int          `json:"total"`
}
