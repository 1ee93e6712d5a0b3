package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status - состояние синхронизации записи.
type Status string

const (
	StatusSynced        Status = "synced"
	StatusPendingCreate Status = "pending_create"
	StatusPendingUpdate Status = "pending_update"
	StatusPendingDelete Status = "pending_delete"
)

// IsPending сообщает, ждет ли запись отправки на сервер.
func (s Status) IsPending() bool {
	return s != StatusSynced && s != ""
}

// Record - локальная копия сущности.
type Record struct {
	ID            string
	Kind          Kind
	Fields        Fields
	Status        Status
	Deleted       bool
	LastChangedAt time.Time
}

type recordJSON struct {
	ID            string          `json:"id"`
	Kind          Kind            `json:"kind"`
	Fields        json.RawMessage `json:"fields,omitempty"`
	Status        Status          `json:"status"`
	Deleted       bool            `json:"deleted,omitempty"`
	LastChangedAt time.Time       `json:"last_changed_at"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		ID:            r.ID,
		Kind:          r.Kind,
		Status:        r.Status,
		Deleted:       r.Deleted,
		LastChangedAt: r.LastChangedAt,
	}
	if r.Fields != nil {
		raw, err := EncodeFields(r.Fields)
		if err != nil {
			return nil, err
		}
		out.Fields = raw
	}
	return json.Marshal(out)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	fields, err := DecodeFields(in.Kind, in.Fields)
	if err != nil {
		return fmt.Errorf("record %s: %w", in.ID, err)
	}
	*r = Record{
		ID:            in.ID,
		Kind:          in.Kind,
		Fields:        fields,
		Status:        in.Status,
		Deleted:       in.Deleted,
		LastChangedAt: in.LastChangedAt,
	}
	return nil
}

// Filter - параметры выборки с сервера.
type Filter struct {
	OwnerID string
	StoreID string
}
