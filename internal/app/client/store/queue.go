package store

import (
	"possync/internal/domain/entity"
)

// Claim - операция, взятая на отправку. Revision фиксирует payload
// на момент взятия.
type Claim struct {
	Mutation entity.PendingMutation
	Revision int
}

// ClaimNext берет голову очереди. Операции в карантине пропускаются.
// Если голова уже отправляется, возвращает false: порядок не нарушается.
func (s *EntityStore) ClaimNext() (Claim, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.queue {
		if m.DeadLetter {
			continue
		}
		if s.inFlight[m.ID] {
			return Claim{}, false
		}
		s.inFlight[m.ID] = true
		return Claim{Mutation: *m, Revision: m.Revision}, true
	}
	return Claim{}, false
}

// Claim берет операцию, только если она голова очереди и еще не отправляется.
func (s *EntityStore) Claim(mutationID string) (Claim, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.queue {
		if m.DeadLetter {
			continue
		}
		if m.ID != mutationID || s.inFlight[m.ID] {
			return Claim{}, false
		}
		s.inFlight[m.ID] = true
		return Claim{Mutation: *m, Revision: m.Revision}, true
	}
	return Claim{}, false
}

// Release возвращает операцию в очередь без изменений.
func (s *EntityStore) Release(mutationID string) {
	s.mu.Lock()
	delete(s.inFlight, mutationID)
	s.mu.Unlock()
}

// CompleteCreate применяет ответ сервера на CREATE.
// Если payload менялся во время вызова, операция превращается в UPDATE
// серверной записи. Если запись удалили во время вызова, в очередь
// ставится DELETE серверной записи.
func (s *EntityStore) CompleteCreate(c Claim, server entity.Record) {
	localID := c.Mutation.TargetID

	s.mu.Lock()
	delete(s.inFlight, c.Mutation.ID)

	m := s.mutation(c.Mutation.ID)
	if m == nil {
		if _, exists := s.records[localID]; !exists {
			s.aliases.Put(localID, server.ID)
			s.queue = append(s.queue, entity.NewMutation(entity.MutationDelete, s.kind, server.ID, nil, s.now()))
			s.log.Info("Запись удалена во время создания, ставим удаление на сервере",
				"local_id", localID, "server_id", server.ID)
		}
		s.mu.Unlock()
		s.changed()
		return
	}

	s.reconcile(localID, server.ID)
	rec := s.records[server.ID]

	if m.Revision != c.Revision {
		m.Kind = entity.MutationUpdate
		m.IdempotencyKey = ""
		m.Attempts = 0
		m.LastError = ""
		if rec != nil {
			rec.Status = entity.StatusPendingUpdate
		}
	} else {
		s.removeMutation(m.ID)
		if rec != nil && server.Fields != nil {
			rec.Fields = server.Fields
		}
		s.settle(server.ID)
	}
	s.mu.Unlock()

	s.changed()
}

// CompleteUpdate снимает UPDATE с очереди, если payload не менялся.
func (s *EntityStore) CompleteUpdate(c Claim, server entity.Record) {
	s.mu.Lock()
	delete(s.inFlight, c.Mutation.ID)

	m := s.mutation(c.Mutation.ID)
	if m != nil && m.Revision == c.Revision {
		s.removeMutation(m.ID)
		if rec := s.records[m.TargetID]; rec != nil && server.Fields != nil {
			rec.Fields = server.Fields
		}
		s.settle(m.TargetID)
	}
	s.mu.Unlock()

	s.changed()
}

// CompleteDelete снимает DELETE и окончательно убирает запись.
func (s *EntityStore) CompleteDelete(c Claim) {
	s.mu.Lock()
	delete(s.inFlight, c.Mutation.ID)
	s.removeMutation(c.Mutation.ID)
	if rec := s.records[c.Mutation.TargetID]; rec != nil && rec.Deleted {
		s.purge(rec.ID)
	}
	s.mu.Unlock()

	s.changed()
}

// Fail фиксирует ошибку отправки. Только постоянные ошибки расходуют
// попытки; после исчерпания операция уходит в карантин.
func (s *EntityStore) Fail(c Claim, err error, permanent bool) (deadLettered bool) {
	s.mu.Lock()
	delete(s.inFlight, c.Mutation.ID)
	s.lastError = err

	m := s.mutation(c.Mutation.ID)
	if m != nil {
		m.LastError = err.Error()
		if permanent {
			m.Attempts++
			if m.Attempts >= s.maxAttempts {
				m.DeadLetter = true
				deadLettered = true
			}
		}
	}
	s.mu.Unlock()

	s.changed()
	return deadLettered
}

// DeadLetter сразу отправляет операцию в карантин.
func (s *EntityStore) DeadLetter(c Claim, err error) {
	s.mu.Lock()
	delete(s.inFlight, c.Mutation.ID)
	s.lastError = err
	if m := s.mutation(c.Mutation.ID); m != nil {
		m.LastError = err.Error()
		m.DeadLetter = true
	}
	s.mu.Unlock()

	s.changed()
}

// settle выставляет статус записи по оставшимся операциям.
func (s *EntityStore) settle(id string) {
	rec := s.records[id]
	if rec == nil {
		return
	}
	m := s.activeFor(id)
	switch {
	case m == nil:
		rec.Status = entity.StatusSynced
	case m.Kind == entity.MutationDelete:
		rec.Status = entity.StatusPendingDelete
	case m.Kind == entity.MutationUpdate:
		rec.Status = entity.StatusPendingUpdate
	}
}

// Snapshot - состояние записи и ее операции до оптимистичного изменения.
type Snapshot struct {
	ID       string
	record   *entity.Record
	mutation *entity.PendingMutation
	index    int
}

// Snapshot запоминает запись id и ее активную операцию.
// Для еще не созданной записи снимок пуст и Restore ее удалит.
func (s *EntityStore) Snapshot(id string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{ID: id, index: -1}
	rec := s.lookup(id)
	if rec == nil {
		return snap
	}
	cp := *rec
	snap.ID = rec.ID
	snap.record = &cp

	for i, m := range s.queue {
		if m.TargetID == rec.ID {
			mc := *m
			snap.mutation = &mc
			snap.index = i
			break
		}
	}
	return snap
}

// Restore откатывает запись к снимку.
func (s *EntityStore) Restore(snap Snapshot) {
	s.Rollback(snap, "")
}

// Rollback откатывает запись к снимку. extraID - идентификатор,
// появившийся после снимка (локальный id новой записи).
func (s *EntityStore) Rollback(snap Snapshot, extraID string) {
	s.mu.Lock()
	for _, id := range []string{snap.ID, extraID} {
		if id == "" {
			continue
		}
		s.dropMutationsFor(id)
		if snap.record == nil || id != snap.record.ID {
			s.purge(id)
		}
	}

	if snap.record != nil {
		rec := *snap.record
		if _, ok := s.records[rec.ID]; !ok {
			s.order = append(s.order, rec.ID)
		}
		s.records[rec.ID] = &rec
	}

	if snap.mutation != nil {
		m := *snap.mutation
		idx := snap.index
		if idx < 0 || idx > len(s.queue) {
			idx = len(s.queue)
		}
		s.queue = append(s.queue, nil)
		copy(s.queue[idx+1:], s.queue[idx:])
		s.queue[idx] = &m
	}
	s.mu.Unlock()

	s.changed()
}
