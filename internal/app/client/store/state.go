package store

import (
	"encoding/json"
	"fmt"
	"time"

	"possync/internal/domain/entity"
)

// KeyPrefix - префикс ключей хранилищ в KV.
const KeyPrefix = "possync:entity:"

type persistedState struct {
	Kind       entity.Kind              `json:"kind"`
	Records    []entity.Record          `json:"records"`
	Queue      []entity.PendingMutation `json:"queue"`
	LastSyncAt time.Time                `json:"last_sync_at"`
}

// Key возвращает ключ KV для этого хранилища.
func (s *EntityStore) Key() string {
	return KeyPrefix + string(s.kind)
}

// MarshalState сериализует коллекцию и очередь.
func (s *EntityStore) MarshalState() ([]byte, error) {
	s.mu.RLock()
	state := persistedState{
		Kind:       s.kind,
		Records:    make([]entity.Record, 0, len(s.order)),
		Queue:      make([]entity.PendingMutation, 0, len(s.queue)),
		LastSyncAt: s.lastSyncAt,
	}
	for _, id := range s.order {
		state.Records = append(state.Records, *s.records[id])
	}
	for _, m := range s.queue {
		state.Queue = append(state.Queue, *m)
	}
	s.mu.RUnlock()

	return json.Marshal(state)
}

// LoadState восстанавливает сохраненное состояние, заменяя текущее.
func (s *EntityStore) LoadState(data []byte) error {
	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("ошибка разбора состояния %s: %w", s.kind, err)
	}
	if state.Kind != "" && state.Kind != s.kind {
		return fmt.Errorf("%w: %s != %s", entity.ErrKindMismatch, state.Kind, s.kind)
	}

	s.mu.Lock()
	s.order = make([]string, 0, len(state.Records))
	s.records = make(map[string]*entity.Record, len(state.Records))
	for i := range state.Records {
		rec := state.Records[i]
		if _, dup := s.records[rec.ID]; dup {
			continue
		}
		s.records[rec.ID] = &rec
		s.order = append(s.order, rec.ID)
		s.ids.Observe(rec.ID)
	}

	s.queue = make([]*entity.PendingMutation, 0, len(state.Queue))
	for i := range state.Queue {
		m := state.Queue[i]
		s.queue = append(s.queue, &m)
		s.ids.Observe(m.TargetID)
	}
	s.inFlight = make(map[string]bool)
	s.lastSyncAt = state.LastSyncAt
	s.mu.Unlock()

	return nil
}

// AliasKey - ключ таблицы соответствия идентификаторов.
const AliasKey = "possync:aliases"

type aliasSource struct {
	table *entity.AliasTable
}

// AliasSource позволяет сохранять таблицу соответствия через Persister.
func AliasSource(table *entity.AliasTable) Source {
	return aliasSource{table: table}
}

func (a aliasSource) Key() string { return AliasKey }

func (a aliasSource) MarshalState() ([]byte, error) {
	return json.Marshal(a.table)
}
