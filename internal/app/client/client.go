package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"possync/internal/app/client/config"
	"possync/internal/app/client/crypto"
	"possync/internal/app/client/network"
	"possync/internal/app/client/store"
	"possync/internal/domain/entity"
	"possync/internal/infrastructure/storage"
	"possync/internal/infrastructure/storage/sqlite"
)

// Deps - внешние зависимости клиента.
type Deps struct {
	KV      storage.KV
	Remote  Remote
	Monitor *network.Monitor
}

// App - контейнер состояния клиента: хранилища, движок синхронизации,
// монитор сети и сохранение на диск.
type App struct {
	config      *config.Config
	log         *slog.Logger
	kv          storage.KV
	remote      Remote
	monitor     *network.Monitor
	persister   *store.Persister
	ids         *entity.IDGenerator
	aliases     *entity.AliasTable
	stores      map[entity.Kind]*store.EntityStore
	syncService *SyncService
	optimistic  *Optimistic

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// New собирает клиент с HTTP API и хранилищем SQLite.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	httpCl := NewHTTPClient(cfg, log)

	var kv storage.KV
	sqliteKV, err := sqlite.New(cfg.DataPath)
	if err != nil {
		log.Warn("Не удалось инициализировать SQLite, используем память", "error", err)
		kv = storage.NewMemoryKV()
	} else {
		kv = sqliteKV
	}

	if cfg.StatePassphrase != "" {
		sealed, err := crypto.NewSealedKV(context.Background(), kv, cfg.StatePassphrase, crypto.DefaultParams())
		if err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("ошибка открытия зашифрованного хранилища: %w", err)
		}
		kv = sealed
	}

	prober := network.NewHTTPProber(httpCl, cfg.CallTimeoutDuration())
	monitor := network.NewMonitor(prober, cfg.ProbeIntervalDuration(), log)

	return NewWithDeps(cfg, log, Deps{KV: kv, Remote: httpCl, Monitor: monitor})
}

// NewWithDeps собирает клиент из готовых зависимостей.
func NewWithDeps(cfg *config.Config, log *slog.Logger, deps Deps) (*App, error) {
	if deps.KV == nil || deps.Remote == nil || deps.Monitor == nil {
		return nil, fmt.Errorf("не заданы зависимости клиента")
	}

	a := &App{
		config:  cfg,
		log:     log,
		kv:      deps.KV,
		remote:  deps.Remote,
		monitor: deps.Monitor,
		ids:     entity.NewIDGenerator(entity.DefaultIDStart),
		aliases: entity.NewAliasTable(),
		stores:  make(map[entity.Kind]*store.EntityStore),
	}
	a.persister = store.NewPersister(deps.KV, cfg.PersistDebounceDuration(), log)
	a.persister.Register(store.AliasSource(a.aliases))

	guards := entity.DefaultGuards()
	list := make([]*store.EntityStore, 0, len(entity.SyncOrder))
	for _, kind := range entity.AllKinds() {
		opts := store.Options{
			Kind:        kind,
			IDs:         a.ids,
			Aliases:     a.aliases,
			Guard:       guards[kind],
			MaxAttempts: cfg.MaxAttempts,
			Log:         log,
		}
		if cfg.Persists(kind) {
			opts.OnChange = a.scheduleSave
		}

		st := store.New(opts)
		if cfg.Persists(kind) {
			a.persister.Register(st)
		}
		a.stores[kind] = st
		list = append(list, st)
	}

	a.syncService = NewSyncService(list, deps.Remote, deps.Monitor, a.aliases, &SyncConfig{
		CallTimeout: cfg.CallTimeoutDuration(),
		Interval:    cfg.SyncIntervalDuration(),
		Filter:      entity.Filter{OwnerID: cfg.OwnerID, StoreID: cfg.StoreID},
	}, log)
	a.optimistic = NewOptimistic(a.syncService, log)

	return a, nil
}

func (a *App) scheduleSave(kind entity.Kind) {
	a.persister.Schedule(store.KeyPrefix + string(kind))
	a.persister.Schedule(store.AliasKey)
}

// Start восстанавливает состояние с диска, проверяет сеть и запускает
// фоновые процессы.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = true
	a.mu.Unlock()

	a.restore(ctx)

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.persister.Run(runCtx)
	}()

	a.monitor.Refresh(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.monitor.Run(runCtx)
	}()

	a.syncService.Start()

	a.log.Info("Клиент запущен",
		"server", a.config.ServerAddress,
		"env", a.config.Env,
		"online", a.monitor.GetCurrent().Online(),
	)
	return nil
}

// Run запускает клиент и работает до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.Shutdown()
	return nil
}

func (a *App) restore(ctx context.Context) {
	if data, ok, err := a.persister.Restore(ctx, store.AliasKey); err != nil {
		a.log.Warn("Не удалось прочитать таблицу идентификаторов", "error", err)
	} else if ok {
		if err := a.aliases.Load(data); err != nil {
			a.log.Warn("Не удалось восстановить таблицу идентификаторов", "error", err)
		}
	}
	// локальные id из таблицы уже заняты, даже если записей с ними не осталось
	for _, localID := range a.aliases.Keys() {
		a.ids.Observe(localID)
	}

	for _, kind := range entity.AllKinds() {
		if !a.config.Persists(kind) {
			continue
		}
		st := a.stores[kind]
		data, ok, err := a.persister.Restore(ctx, st.Key())
		if err != nil {
			a.log.Warn("Не удалось прочитать состояние", "kind", kind, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if err := st.LoadState(data); err != nil {
			a.log.Warn("Не удалось восстановить состояние", "kind", kind, "error", err)
			continue
		}
		a.log.Debug("Состояние восстановлено", "kind", kind, "pending", st.Stats().PendingCount)
	}
}

// Shutdown останавливает фоновые процессы и сохраняет состояние.
func (a *App) Shutdown() {
	a.log.Info("Завершение работы клиента...")

	a.syncService.Stop()

	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	a.persister.Flush(context.Background())

	if err := a.kv.Close(); err != nil {
		a.log.Warn("Ошибка закрытия хранилища", "error", err)
	}
	a.log.Info("Клиент завершил работу")
}

// Store возвращает хранилище типа.
func (a *App) Store(kind entity.Kind) *store.EntityStore {
	return a.stores[kind]
}

func (a *App) Sync() *SyncService {
	return a.syncService
}

func (a *App) Optimistic() *Optimistic {
	return a.optimistic
}

func (a *App) Config() *config.Config {
	return a.config
}

// Foreground запускает проход, если приложение вернулось на передний план.
func (a *App) Foreground() {
	a.syncService.Foreground()
}

// Status возвращает состояние синхронизации.
func (a *App) Status() Status {
	return a.syncService.Status()
}

// CheckConnection проверяет соединение с сервером
func (a *App) CheckConnection(ctx context.Context) network.Status {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return a.monitor.Refresh(ctx)
}

type ctxKey struct{}

// WithApp кладет клиент в контекст команды.
func WithApp(ctx context.Context, a *App) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext достает клиент из контекста команды.
func FromContext(ctx context.Context) (*App, bool) {
	a, ok := ctx.Value(ctxKey{}).(*App)
	return a, ok
}
