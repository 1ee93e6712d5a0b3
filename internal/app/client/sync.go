package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"

	"possync/internal/app/client/network"
	"possync/internal/app/client/store"
	"possync/internal/domain/entity"
)

// State - состояние движка синхронизации.
type State string

const (
	StateIdle       State = "idle"
	StateOnlineIdle State = "online_idle"
	StateReplaying  State = "replaying"
	StateOffline    State = "offline"
)

// NetworkMonitor - источник состояния сети.
type NetworkMonitor interface {
	GetCurrent() network.Status
	Subscribe(fn func(network.Status)) func()
}

// SyncConfig - параметры синхронизации
type SyncConfig struct {
	CallTimeout      time.Duration
	Interval         time.Duration
	Filter           entity.Filter
	FetchConcurrency int
}

// SyncError - ошибка отправки одной операции
type SyncError struct {
	Kind       entity.Kind         `json:"kind"`
	MutationID string              `json:"mutation_id"`
	RecordID   string              `json:"record_id"`
	Operation  entity.MutationKind `json:"operation"`
	Error      string              `json:"error"`
	Transient  bool                `json:"transient"`
	DeadLetter bool                `json:"dead_letter"`
	Timestamp  time.Time           `json:"timestamp"`
}

// SyncStats - накопленная статистика синхронизаций
type SyncStats struct {
	TotalSyncs        int       `json:"total_syncs"`
	LastSuccessful    time.Time `json:"last_successful"`
	LastFailed        time.Time `json:"last_failed"`
	TotalUploaded     int       `json:"total_uploaded"`
	TotalDeferred     int       `json:"total_deferred"`
	TotalDeadLettered int       `json:"total_dead_lettered"`
	TotalErrors       int       `json:"total_errors"`
	AvgSyncDuration   float64   `json:"avg_sync_duration"`
}

// SyncResult - итог одного прохода по очередям
type SyncResult struct {
	Success      bool          `json:"success"`
	Skipped      bool          `json:"skipped"`
	Aborted      bool          `json:"aborted"`
	Uploaded     int           `json:"uploaded"`
	Deferred     int           `json:"deferred"`
	DeadLettered int           `json:"dead_lettered"`
	Errors       []SyncError   `json:"errors,omitempty"`
	Duration     time.Duration `json:"duration"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
}

// Status - наблюдаемое состояние синхронизации.
type Status struct {
	State     State         `json:"state"`
	Online    bool          `json:"online"`
	IsSyncing bool          `json:"is_syncing"`
	LastSync  time.Time     `json:"last_sync"`
	Stores    []store.Stats `json:"stores"`
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeDeferred
)

// SyncService воспроизводит очереди хранилищ на сервере.
type SyncService struct {
	stores  map[entity.Kind]*store.EntityStore
	order   []entity.Kind
	remote  Remote
	monitor NetworkMonitor
	aliases *entity.AliasTable
	guards  map[entity.Kind]entity.Guard
	config  *SyncConfig
	log     *slog.Logger

	mu           sync.RWMutex
	started      bool
	stopped      bool
	online       bool
	isSyncing    bool
	lastSync     time.Time
	stats        *SyncStats
	listeners    map[int]func(Status)
	nextListener int

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	unsubscribe func()
}

// NewSyncService создает новый сервис синхронизации
func NewSyncService(
	stores []*store.EntityStore,
	remote Remote,
	monitor NetworkMonitor,
	aliases *entity.AliasTable,
	cfg *SyncConfig,
	log *slog.Logger,
) *SyncService {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 4
	}

	byKind := make(map[entity.Kind]*store.EntityStore, len(stores))
	for _, st := range stores {
		byKind[st.Kind()] = st
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &SyncService{
		stores:    byKind,
		order:     entity.AllKinds(),
		remote:    remote,
		monitor:   monitor,
		aliases:   aliases,
		guards:    entity.DefaultGuards(),
		config:    cfg,
		log:       log.With("component", "sync"),
		stats:     &SyncStats{},
		listeners: make(map[int]func(Status)),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start подписывается на сеть и, если сеть есть, воспроизводит
// очередь и загружает свежие данные.
func (s *SyncService) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.unsubscribe = s.monitor.Subscribe(s.onNetworkChange)

	online := s.monitor.GetCurrent().Online()
	s.mu.Lock()
	s.online = online
	s.mu.Unlock()
	s.notify()

	if online {
		s.spawn(func() {
			if _, err := s.TriggerSync(s.ctx); err != nil {
				s.log.Error("Ошибка начальной синхронизации", "error", err)
			}
			if err := s.FetchInitialData(s.ctx); err != nil {
				s.log.Warn("Начальная загрузка завершилась с ошибками", "error", err)
			}
		})
	} else {
		s.log.Info("Нет сети, работаем с локальными данными")
	}

	if s.config.Interval > 0 {
		s.spawn(s.autoSync)
	}
}

// Stop отписывается от сети и дожидается фоновых проходов.
func (s *SyncService) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.cancel()
	s.wg.Wait()
}

func (s *SyncService) onNetworkChange(st network.Status) {
	online := st.Online()

	s.mu.Lock()
	was := s.online
	s.online = online
	s.mu.Unlock()
	s.notify()

	switch {
	case online && !was:
		s.log.Info("Сеть восстановлена, воспроизводим очередь")
		s.triggerAsync()
	case !online && was:
		s.log.Info("Сеть потеряна, воспроизведение приостановлено")
	}
}

// IsOnline сообщает текущее состояние сети.
func (s *SyncService) IsOnline() bool {
	return s.monitor.GetCurrent().Online()
}

// Foreground вызывается при возврате приложения на передний план.
func (s *SyncService) Foreground() {
	if s.IsOnline() {
		s.triggerAsync()
	}
}

func (s *SyncService) triggerAsync() {
	s.spawn(func() {
		if _, err := s.TriggerSync(s.ctx); err != nil {
			s.log.Error("Ошибка фоновой синхронизации", "error", err)
		}
	})
}

// spawn запускает фоновую задачу, если сервис еще не остановлен.
func (s *SyncService) spawn(fn func()) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		fn()
	}()
	return true
}

func (s *SyncService) autoSync() {
	s.log.Info("Запуск автоматической синхронизации", "interval", s.config.Interval)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info("Автоматическая синхронизация остановлена")
			return
		case <-ticker.C:
			if !s.IsOnline() {
				continue
			}
			if _, err := s.TriggerSync(s.ctx); err != nil {
				s.log.Error("Ошибка автоматической синхронизации", "error", err)
			}
		}
	}
}

// TriggerSync выполняет один проход по очередям всех хранилищ.
// Если проход уже идет или сети нет, возвращает Skipped.
func (s *SyncService) TriggerSync(ctx context.Context) (*SyncResult, error) {
	s.mu.Lock()
	if s.isSyncing {
		s.mu.Unlock()
		s.log.Debug("Синхронизация уже выполняется, пропускаем")
		return &SyncResult{Skipped: true}, nil
	}
	if !s.IsOnline() {
		s.mu.Unlock()
		s.log.Debug("Нет сети, воспроизведение отложено")
		return &SyncResult{Skipped: true}, nil
	}
	s.isSyncing = true
	s.mu.Unlock()
	s.notify()

	result := &SyncResult{StartTime: time.Now()}

	defer func() {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		result.Success = !result.Aborted && len(result.Errors) == 0

		s.mu.Lock()
		s.isSyncing = false
		s.lastSync = result.EndTime
		s.updateStats(result)
		s.mu.Unlock()
		s.notify()
	}()

	s.log.Info("Начало воспроизведения очереди", "start_time", result.StartTime)

	for _, kind := range s.order {
		st, ok := s.stores[kind]
		if !ok {
			continue
		}
		s.replayStore(ctx, st, result)
		if result.Aborted {
			s.log.Info("Воспроизведение прервано", "kind", kind)
			break
		}
	}

	s.log.Info("Воспроизведение завершено",
		"uploaded", result.Uploaded,
		"deferred", result.Deferred,
		"dead_lettered", result.DeadLettered,
		"errors", len(result.Errors),
		"duration", time.Since(result.StartTime),
	)

	return result, nil
}

// replayStore отправляет очередь одного хранилища по порядку.
// Первая неудача останавливает только эту очередь.
func (s *SyncService) replayStore(ctx context.Context, st *store.EntityStore, result *SyncResult) {
	limit := 2*len(st.Queue()) + 1

	for i := 0; i < limit; i++ {
		if ctx.Err() != nil || !s.IsOnline() {
			result.Aborted = true
			return
		}

		c, ok := st.ClaimNext()
		if !ok {
			return
		}

		out, err := s.execute(ctx, st, c)
		if err != nil {
			if s.handleFailure(st, c, err, result) {
				continue
			}
			return
		}
		if out == outcomeDeferred {
			result.Deferred++
			s.log.Debug("Операция отложена до создания зависимостей",
				"kind", st.Kind(), "mutation_id", c.Mutation.ID, "target_id", c.Mutation.TargetID)
			return
		}
		result.Uploaded++
	}
}

// execute отправляет одну взятую операцию и применяет ответ.
// При ошибке операция остается взятой: вызывающий решает ее судьбу.
func (s *SyncService) execute(ctx context.Context, st *store.EntityStore, c store.Claim) (outcome, error) {
	m := c.Mutation
	kind := st.Kind()

	callCtx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
	defer cancel()

	switch m.Kind {
	case entity.MutationCreate:
		payload, ready, err := s.resolvePayload(kind, m.Payload)
		if err != nil {
			return outcomeSent, err
		}
		if !ready {
			st.Release(m.ID)
			return outcomeDeferred, nil
		}

		rec, err := s.remote.Create(callCtx, kind, payload, m.IdempotencyKey)
		if err != nil {
			return outcomeSent, err
		}
		st.CompleteCreate(c, *rec)
		s.log.Info("Запись создана на сервере", "kind", kind, "local_id", m.TargetID, "server_id", rec.ID)

	case entity.MutationUpdate:
		target := s.aliases.Resolve(m.TargetID)
		if entity.IsLocalID(target) {
			st.Release(m.ID)
			return outcomeDeferred, nil
		}
		payload, ready, err := s.resolvePayload(kind, m.Payload)
		if err != nil {
			return outcomeSent, err
		}
		if !ready {
			st.Release(m.ID)
			return outcomeDeferred, nil
		}

		rec, err := s.remote.Update(callCtx, kind, target, payload)
		if err != nil {
			return outcomeSent, err
		}
		st.CompleteUpdate(c, *rec)

	case entity.MutationDelete:
		target := s.aliases.Resolve(m.TargetID)
		if entity.IsLocalID(target) {
			st.Release(m.ID)
			return outcomeDeferred, nil
		}
		if err := s.checkRemoteDelete(callCtx, kind, target); err != nil {
			return outcomeSent, err
		}

		err := s.remote.Delete(callCtx, kind, target)
		if err != nil && !entity.IsRemoteNotFound(err) {
			return outcomeSent, err
		}
		st.CompleteDelete(c)

	default:
		return outcomeSent, fmt.Errorf("неизвестный вид операции: %s", m.Kind)
	}

	return outcomeSent, nil
}

// handleFailure фиксирует ошибку. Возвращает true, если очередь
// можно продолжать: операция ушла в карантин и не блокирует остальные.
func (s *SyncService) handleFailure(st *store.EntityStore, c store.Claim, err error, result *SyncResult) bool {
	syncErr := SyncError{
		Kind:       st.Kind(),
		MutationID: c.Mutation.ID,
		RecordID:   c.Mutation.TargetID,
		Operation:  c.Mutation.Kind,
		Error:      err.Error(),
		Timestamp:  time.Now(),
	}

	// 409 на удаление сервер отдает только для защищенных записей
	if errors.Is(err, entity.ErrProtected) ||
		(c.Mutation.Kind == entity.MutationDelete && entity.IsRemoteConflict(err)) {
		st.DeadLetter(c, err)
		syncErr.DeadLetter = true
		result.DeadLettered++
		result.Errors = append(result.Errors, syncErr)
		s.log.Warn("Удаление запрещено сервером, операция в карантине",
			"kind", st.Kind(), "record_id", c.Mutation.TargetID, "error", err)
		return true
	}

	transient := entity.IsTransient(err)
	dead := st.Fail(c, err, !transient)

	syncErr.Transient = transient
	syncErr.DeadLetter = dead
	result.Errors = append(result.Errors, syncErr)

	if dead {
		result.DeadLettered++
		s.log.Error("Операция исчерпала попытки и отправлена в карантин",
			"kind", st.Kind(), "mutation_id", c.Mutation.ID, "error", err)
		return true
	}

	s.log.Warn("Ошибка отправки операции",
		"kind", st.Kind(),
		"mutation_id", c.Mutation.ID,
		"operation", c.Mutation.Kind,
		"transient", transient,
		"error", err,
	)
	return false
}

// checkRemoteDelete повторяет проверку бизнес-правил на свежих данных сервера.
func (s *SyncService) checkRemoteDelete(ctx context.Context, kind entity.Kind, id string) error {
	guard, ok := s.guards[kind]
	if !ok {
		return nil
	}

	// правило проверяется по всем записям владельца, без фильтра по магазину
	records, err := s.remote.List(ctx, kind, entity.Filter{OwnerID: s.config.Filter.OwnerID})
	if err != nil {
		return err
	}
	for _, rec := range records {
		if rec.ID == id {
			return guard.CheckDelete(rec, records)
		}
	}
	return nil
}

// resolvePayload подставляет серверные id во внешние ключи.
// ready = false, если какая-то ссылка все еще локальная.
func (s *SyncService) resolvePayload(kind entity.Kind, raw json.RawMessage) (json.RawMessage, bool, error) {
	fields, err := entity.DecodeFields(kind, raw)
	if err != nil {
		return nil, false, err
	}

	ready := true
	resolved := fields.ResolveRefs(func(id string) string {
		out := s.aliases.Resolve(id)
		if entity.IsLocalID(out) {
			ready = false
		}
		return out
	})

	payload, err := entity.EncodeFields(resolved)
	if err != nil {
		return nil, false, err
	}
	return payload, ready, nil
}

// FetchInitialData загружает коллекции всех хранилищ с сервера.
// Ошибка одного типа не мешает остальным.
func (s *SyncService) FetchInitialData(ctx context.Context) error {
	if !s.IsOnline() {
		s.log.Info("Нет сети, загрузка пропущена")
		return nil
	}

	var g errgroup.Group
	g.SetLimit(s.config.FetchConcurrency)

	for _, kind := range s.order {
		st, ok := s.stores[kind]
		if !ok {
			continue
		}
		g.Go(func() error {
			return s.fetch(ctx, st)
		})
	}

	return g.Wait()
}

func (s *SyncService) fetch(ctx context.Context, st *store.EntityStore) error {
	st.SetLoading(true)
	defer st.SetLoading(false)

	callCtx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
	defer cancel()

	records, err := s.remote.List(callCtx, st.Kind(), s.config.Filter)
	if err != nil {
		st.SetError(err)
		s.log.Warn("Ошибка загрузки данных", "kind", st.Kind(), "error", err)
		return fmt.Errorf("%s: %w", st.Kind(), err)
	}

	st.SetAll(records)
	s.log.Debug("Данные загружены", "kind", st.Kind(), "count", len(records))
	return nil
}

// Refresh - ручное обновление: воспроизведение и загрузка.
func (s *SyncService) Refresh(ctx context.Context) (*SyncResult, error) {
	result, err := s.TriggerSync(ctx)
	if err != nil {
		return result, err
	}
	return result, s.FetchInitialData(ctx)
}

// Status возвращает снимок состояния для UI.
func (s *SyncService) Status() Status {
	s.mu.RLock()
	st := Status{
		Online:    s.online,
		IsSyncing: s.isSyncing,
		LastSync:  s.lastSync,
	}
	switch {
	case s.isSyncing:
		st.State = StateReplaying
	case !s.started:
		st.State = StateIdle
	case s.online:
		st.State = StateOnlineIdle
	default:
		st.State = StateOffline
	}
	s.mu.RUnlock()

	for _, kind := range s.order {
		if es, ok := s.stores[kind]; ok {
			st.Stores = append(st.Stores, es.Stats())
		}
	}
	return st
}

// Subscribe регистрирует обработчик изменений состояния.
func (s *SyncService) Subscribe(fn func(Status)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *SyncService) notify() {
	s.mu.RLock()
	listeners := make([]func(Status), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.RUnlock()

	if len(listeners) == 0 {
		return
	}
	st := s.Status()
	for _, fn := range listeners {
		fn(st)
	}
}

func (s *SyncService) updateStats(result *SyncResult) {
	s.stats.TotalSyncs++

	if result.Success {
		s.stats.LastSuccessful = result.EndTime
	} else {
		s.stats.LastFailed = result.EndTime
	}

	s.stats.TotalUploaded += result.Uploaded
	s.stats.TotalDeferred += result.Deferred
	s.stats.TotalDeadLettered += result.DeadLettered
	s.stats.TotalErrors += len(result.Errors)

	// Обновляем среднюю продолжительность
	if s.stats.AvgSyncDuration == 0 {
		s.stats.AvgSyncDuration = result.Duration.Seconds()
	} else {
		s.stats.AvgSyncDuration = (s.stats.AvgSyncDuration*float64(s.stats.TotalSyncs-1) +
			result.Duration.Seconds()) / float64(s.stats.TotalSyncs)
	}
}

// GetStats возвращает копию статистики
func (s *SyncService) GetStats() SyncStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.stats
}

// GetLastSyncTime возвращает время последнего прохода
func (s *SyncService) GetLastSyncTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync
}

// IsSyncing проверяет, выполняется ли проход
func (s *SyncService) IsSyncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSyncing
}

// ResetStats сбрасывает статистику
func (s *SyncService) ResetStats() {
	s.mu.Lock()
	s.stats = &SyncStats{}
	s.mu.Unlock()
}
