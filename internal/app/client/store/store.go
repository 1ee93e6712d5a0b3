package store

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"possync/internal/domain/entity"
)

// Options - зависимости хранилища одного типа сущностей.
type Options struct {
	Kind        entity.Kind
	IDs         *entity.IDGenerator
	Aliases     *entity.AliasTable
	Guard       entity.Guard
	MaxAttempts int
	Now         func() time.Time
	// OnChange вызывается после каждого изменения, вне блокировки.
	OnChange func(kind entity.Kind)
	Log      *slog.Logger
}

// Stats - наблюдаемое состояние хранилища для UI.
type Stats struct {
	Kind         entity.Kind
	Loading      bool
	Error        string
	PendingCount int
	FailedCount  int
	LastSyncAt   time.Time
}

// EntityStore - локальная коллекция записей одного типа и очередь
// отложенных операций над ней.
type EntityStore struct {
	kind        entity.Kind
	ids         *entity.IDGenerator
	aliases     *entity.AliasTable
	guard       entity.Guard
	maxAttempts int
	now         func() time.Time
	onChange    func(entity.Kind)
	log         *slog.Logger

	mu         sync.RWMutex
	order      []string
	records    map[string]*entity.Record
	queue      []*entity.PendingMutation
	inFlight   map[string]bool
	loading    bool
	lastError  error
	lastSyncAt time.Time
}

// New создает пустое хранилище.
func New(opts Options) *EntityStore {
	if opts.IDs == nil {
		opts.IDs = entity.NewIDGenerator(entity.DefaultIDStart)
	}
	if opts.Aliases == nil {
		opts.Aliases = entity.NewAliasTable()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	return &EntityStore{
		kind:        opts.Kind,
		ids:         opts.IDs,
		aliases:     opts.Aliases,
		guard:       opts.Guard,
		maxAttempts: opts.MaxAttempts,
		now:         opts.Now,
		onChange:    opts.OnChange,
		log:         opts.Log.With("component", "entity_store", "kind", string(opts.Kind)),
		records:     make(map[string]*entity.Record),
		inFlight:    make(map[string]bool),
	}
}

func (s *EntityStore) Kind() entity.Kind {
	return s.kind
}

// Get возвращает видимую запись. Локальный id после сверки тоже находит запись.
func (s *EntityStore) Get(id string) (entity.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := s.lookup(id)
	if rec == nil || rec.Deleted {
		return entity.Record{}, false
	}
	return *rec, true
}

// All возвращает видимые записи в порядке коллекции.
func (s *EntityStore) All() []entity.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Record, 0, len(s.order))
	for _, id := range s.order {
		if rec := s.records[id]; !rec.Deleted {
			out = append(out, *rec)
		}
	}
	return out
}

// Find возвращает первую видимую запись, удовлетворяющую условию.
func (s *EntityStore) Find(match func(entity.Record) bool) (entity.Record, bool) {
	for _, rec := range s.All() {
		if match(rec) {
			return rec, true
		}
	}
	return entity.Record{}, false
}

// SetAll заменяет коллекцию ответом сервера. Записи с операциями
// в очереди сохраняют локальную версию.
func (s *EntityStore) SetAll(records []entity.Record) {
	s.mu.Lock()

	pending := make(map[string]bool, len(s.queue))
	for _, m := range s.queue {
		pending[m.TargetID] = true
	}

	order := make([]string, 0, len(records)+len(pending))
	byID := make(map[string]*entity.Record, len(records)+len(pending))

	for i := range records {
		rec := records[i]
		if _, dup := byID[rec.ID]; dup {
			continue
		}
		if pending[rec.ID] {
			if local, ok := s.records[rec.ID]; ok {
				byID[rec.ID] = local
				order = append(order, rec.ID)
				continue
			}
		}
		rec.Kind = s.kind
		rec.Status = entity.StatusSynced
		rec.Deleted = false
		byID[rec.ID] = &rec
		order = append(order, rec.ID)
	}

	for _, id := range s.order {
		if _, ok := byID[id]; ok || !pending[id] {
			continue
		}
		byID[id] = s.records[id]
		order = append(order, id)
	}

	s.order = order
	s.records = byID
	s.lastSyncAt = s.now()
	s.lastError = nil
	s.mu.Unlock()

	s.changed()
}

// Create добавляет запись с локальным id и ставит CREATE в очередь.
func (s *EntityStore) Create(fields entity.Fields) (string, error) {
	if fields == nil || fields.Kind() != s.kind {
		return "", fmt.Errorf("%w: %s", entity.ErrKindMismatch, s.kind)
	}
	payload, err := entity.EncodeFields(fields)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	now := s.now()
	id := s.ids.Next()
	s.records[id] = &entity.Record{
		ID:            id,
		Kind:          s.kind,
		Fields:        fields,
		Status:        entity.StatusPendingCreate,
		LastChangedAt: now,
	}
	s.order = append(s.order, id)
	s.queue = append(s.queue, entity.NewMutation(entity.MutationCreate, s.kind, id, payload, now))
	s.mu.Unlock()

	s.changed()
	return id, nil
}

// Update накладывает патч на запись.
func (s *EntityStore) Update(id string, patch entity.Patch) error {
	s.mu.RLock()
	rec := s.lookup(id)
	var current entity.Fields
	if rec != nil && !rec.Deleted {
		current = rec.Fields
	}
	s.mu.RUnlock()

	if current == nil {
		s.log.Warn("Обновление несуществующей записи", "id", id)
		return entity.ErrNotFound
	}

	merged, err := patch.Apply(current)
	if err != nil {
		return err
	}
	return s.Replace(id, merged)
}

// Replace заменяет поля записи целиком.
func (s *EntityStore) Replace(id string, fields entity.Fields) error {
	if fields == nil || fields.Kind() != s.kind {
		return fmt.Errorf("%w: %s", entity.ErrKindMismatch, s.kind)
	}
	payload, err := entity.EncodeFields(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	rec := s.lookup(id)
	if rec == nil || rec.Deleted {
		s.mu.Unlock()
		s.log.Warn("Обновление несуществующей записи", "id", id)
		return entity.ErrNotFound
	}

	now := s.now()
	rec.Fields = fields
	rec.LastChangedAt = now

	switch rec.Status {
	case entity.StatusPendingCreate, entity.StatusPendingUpdate:
		if m := s.activeFor(rec.ID); m != nil {
			s.refresh(m, payload)
			break
		}
		kind := entity.MutationUpdate
		if rec.Status == entity.StatusPendingCreate {
			kind = entity.MutationCreate
		}
		s.queue = append(s.queue, entity.NewMutation(kind, s.kind, rec.ID, payload, now))
	default:
		rec.Status = entity.StatusPendingUpdate
		s.queue = append(s.queue, entity.NewMutation(entity.MutationUpdate, s.kind, rec.ID, payload, now))
	}
	s.mu.Unlock()

	s.changed()
	return nil
}

// Remove удаляет запись с учетом ее статуса синхронизации.
func (s *EntityStore) Remove(id string) error {
	s.mu.Lock()
	rec := s.lookup(id)
	if rec == nil {
		s.mu.Unlock()
		s.log.Warn("Удаление несуществующей записи", "id", id)
		return entity.ErrNotFound
	}
	if rec.Deleted {
		s.mu.Unlock()
		return nil
	}

	if s.guard != nil {
		if err := s.guard.CheckDelete(*rec, s.visible()); err != nil {
			s.mu.Unlock()
			return err
		}
	}

	now := s.now()
	switch rec.Status {
	case entity.StatusPendingCreate:
		s.dropMutationsFor(rec.ID)
		s.purge(rec.ID)
	case entity.StatusPendingUpdate:
		s.dropMutationsFor(rec.ID)
		fallthrough
	default:
		rec.Deleted = true
		rec.Status = entity.StatusPendingDelete
		rec.LastChangedAt = now
		s.queue = append(s.queue, entity.NewMutation(entity.MutationDelete, s.kind, rec.ID, nil, now))
	}
	s.mu.Unlock()

	s.changed()
	return nil
}

// Reconcile заменяет локальный id серверным. Повторный вызов с той же
// парой ничего не меняет и возвращает true.
func (s *EntityStore) Reconcile(localID, serverID string) bool {
	s.mu.Lock()
	ok := s.reconcile(localID, serverID)
	s.mu.Unlock()

	if ok {
		s.changed()
	}
	return ok
}

// Queue возвращает копию очереди в порядке FIFO.
func (s *EntityStore) Queue() []entity.PendingMutation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.PendingMutation, 0, len(s.queue))
	for _, m := range s.queue {
		out = append(out, *m)
	}
	return out
}

// Peek возвращает голову очереди без изъятия.
func (s *EntityStore) Peek() (entity.PendingMutation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.queue {
		if !m.DeadLetter {
			return *m, true
		}
	}
	return entity.PendingMutation{}, false
}

// Pending возвращает активную операцию для записи.
func (s *EntityStore) Pending(id string) (entity.PendingMutation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec := s.lookup(id); rec != nil {
		id = rec.ID
	}
	if m := s.activeFor(id); m != nil {
		return *m, true
	}
	return entity.PendingMutation{}, false
}

// Stats возвращает снимок наблюдаемого состояния.
func (s *EntityStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Kind:       s.kind,
		Loading:    s.loading,
		LastSyncAt: s.lastSyncAt,
	}
	if s.lastError != nil {
		st.Error = s.lastError.Error()
	}
	for _, m := range s.queue {
		if m.DeadLetter {
			st.FailedCount++
		} else {
			st.PendingCount++
		}
	}
	return st
}

func (s *EntityStore) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
}

func (s *EntityStore) SetError(err error) {
	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()
}

// RetryDeadLetter возвращает операцию из карантина в очередь.
func (s *EntityStore) RetryDeadLetter(mutationID string) error {
	s.mu.Lock()
	m := s.mutation(mutationID)
	if m == nil || !m.DeadLetter {
		s.mu.Unlock()
		return entity.ErrNotFound
	}
	m.DeadLetter = false
	m.Attempts = 0
	m.LastError = ""
	s.mu.Unlock()

	s.changed()
	return nil
}

// DiscardDeadLetter отбрасывает операцию из карантина и откатывает
// локальное состояние записи.
func (s *EntityStore) DiscardDeadLetter(mutationID string) error {
	s.mu.Lock()
	m := s.mutation(mutationID)
	if m == nil || !m.DeadLetter {
		s.mu.Unlock()
		return entity.ErrNotFound
	}
	s.removeMutation(m.ID)

	if rec := s.records[m.TargetID]; rec != nil {
		switch m.Kind {
		case entity.MutationCreate:
			s.purge(rec.ID)
		case entity.MutationDelete:
			rec.Deleted = false
			rec.Status = entity.StatusSynced
		case entity.MutationUpdate:
			rec.Status = entity.StatusSynced
		}
	}
	s.mu.Unlock()

	s.changed()
	return nil
}

func (s *EntityStore) lookup(id string) *entity.Record {
	if rec, ok := s.records[id]; ok {
		return rec
	}
	if serverID, ok := s.aliases.Lookup(id); ok {
		return s.records[serverID]
	}
	return nil
}

func (s *EntityStore) visible() []entity.Record {
	out := make([]entity.Record, 0, len(s.order))
	for _, id := range s.order {
		if rec := s.records[id]; !rec.Deleted {
			out = append(out, *rec)
		}
	}
	return out
}

func (s *EntityStore) activeFor(id string) *entity.PendingMutation {
	for _, m := range s.queue {
		if m.TargetID == id {
			return m
		}
	}
	return nil
}

func (s *EntityStore) mutation(id string) *entity.PendingMutation {
	for _, m := range s.queue {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// refresh подменяет payload. Новое намерение снимает карантин.
func (s *EntityStore) refresh(m *entity.PendingMutation, payload json.RawMessage) {
	m.Payload = payload
	m.Revision++
	if m.DeadLetter {
		m.DeadLetter = false
		m.Attempts = 0
		m.LastError = ""
	}
}

func (s *EntityStore) dropMutationsFor(id string) {
	kept := s.queue[:0]
	for _, m := range s.queue {
		if m.TargetID == id {
			delete(s.inFlight, m.ID)
			continue
		}
		kept = append(kept, m)
	}
	for i := len(kept); i < len(s.queue); i++ {
		s.queue[i] = nil
	}
	s.queue = kept
}

func (s *EntityStore) removeMutation(id string) {
	for i, m := range s.queue {
		if m.ID == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			delete(s.inFlight, id)
			return
		}
	}
}

func (s *EntityStore) purge(id string) {
	delete(s.records, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *EntityStore) reconcile(localID, serverID string) bool {
	rec, ok := s.records[localID]
	if !ok {
		if alias, known := s.aliases.Lookup(localID); known && alias == serverID {
			_, exists := s.records[serverID]
			return exists
		}
		return false
	}

	if localID != serverID {
		if _, clash := s.records[serverID]; clash {
			s.purge(serverID)
		}
		delete(s.records, localID)
		rec.ID = serverID
		s.records[serverID] = rec
		for i, id := range s.order {
			if id == localID {
				s.order[i] = serverID
				break
			}
		}
		for _, m := range s.queue {
			if m.TargetID == localID {
				m.TargetID = serverID
			}
		}
		s.aliases.Put(localID, serverID)
	}

	rec.Status = entity.StatusSynced
	return true
}

func (s *EntityStore) changed() {
	if s.onChange != nil {
		s.onChange(s.kind)
	}
}
