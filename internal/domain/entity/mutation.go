package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MutationKind - вид отложенной операции.
type MutationKind string

const (
	MutationCreate MutationKind = "CREATE"
	MutationUpdate MutationKind = "UPDATE"
	MutationDelete MutationKind = "DELETE"
)

// PendingMutation - операция, ожидающая подтверждения сервером.
type PendingMutation struct {
	ID             string          `json:"id"`
	Kind           MutationKind    `json:"kind"`
	Entity         Kind            `json:"entity"`
	TargetID       string          `json:"target_id"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Attempts       int             `json:"attempts"`
	LastError      string          `json:"last_error,omitempty"`
	DeadLetter     bool            `json:"dead_letter,omitempty"`
	// Revision растет при каждом изменении payload.
	Revision int `json:"revision"`
}

// NewMutation создает операцию. CREATE получает ключ идемпотентности.
func NewMutation(kind MutationKind, entity Kind, targetID string, payload json.RawMessage, now time.Time) *PendingMutation {
	m := &PendingMutation{
		ID:        uuid.NewString(),
		Kind:      kind,
		Entity:    entity,
		TargetID:  targetID,
		Payload:   payload,
		Timestamp: now,
	}
	if kind == MutationCreate {
		m.IdempotencyKey = uuid.NewString()
	}
	return m
}
