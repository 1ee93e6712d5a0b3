package entity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	LocalIDPrefix  = "local_"
	DefaultIDStart = 1000
)

// IsLocalID сообщает, выдан ли идентификатор клиентом.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

// IDGenerator выдает временные идентификаторы local_<n>.
// Один генератор разделяется всеми хранилищами процесса.
type IDGenerator struct {
	next atomic.Int64
}

func NewIDGenerator(start int64) *IDGenerator {
	g := &IDGenerator{}
	g.next.Store(start)
	return g
}

func (g *IDGenerator) Next() string {
	n := g.next.Add(1) - 1
	return LocalIDPrefix + strconv.FormatInt(n, 10)
}

// Observe сдвигает счетчик за уже выданный идентификатор,
// чтобы после восстановления состояния номера не повторялись.
func (g *IDGenerator) Observe(id string) {
	if !IsLocalID(id) {
		return
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(id, LocalIDPrefix), 10, 64)
	if err != nil {
		return
	}
	for {
		cur := g.next.Load()
		if n < cur || g.next.CompareAndSwap(cur, n+1) {
			return
		}
	}
}

// AliasTable хранит соответствие локальных и серверных идентификаторов.
type AliasTable struct {
	mu      sync.RWMutex
	aliases map[string]string
}

func NewAliasTable() *AliasTable {
	return &AliasTable{aliases: make(map[string]string)}
}

func (t *AliasTable) Put(localID, serverID string) {
	if localID == serverID {
		return
	}
	t.mu.Lock()
	t.aliases[localID] = serverID
	t.mu.Unlock()
}

func (t *AliasTable) Lookup(localID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.aliases[localID]
	return id, ok
}

// Resolve возвращает серверный идентификатор или исходный, если замены нет.
func (t *AliasTable) Resolve(id string) string {
	if !IsLocalID(id) {
		return id
	}
	if serverID, ok := t.Lookup(id); ok {
		return serverID
	}
	return id
}

// Keys возвращает все локальные идентификаторы таблицы.
func (t *AliasTable) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]string, 0, len(t.aliases))
	for k := range t.aliases {
		keys = append(keys, k)
	}
	return keys
}

func (t *AliasTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.aliases)
}

func (t *AliasTable) MarshalJSON() ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return json.Marshal(t.aliases)
}

// Load добавляет сохраненные соответствия.
func (t *AliasTable) Load(data []byte) error {
	var aliases map[string]string
	if err := json.Unmarshal(data, &aliases); err != nil {
		return fmt.Errorf("failed to decode aliases: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range aliases {
		t.aliases[k] = v
	}
	return nil
}
