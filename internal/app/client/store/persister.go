package store

import (
	"context"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"possync/internal/infrastructure/storage"
)

// Source - то, что можно сохранить в KV.
type Source interface {
	Key() string
	MarshalState() ([]byte, error)
}

// Persister сохраняет изменившиеся хранилища в KV в фоне.
// Ошибки записи логируются и не блокируют работу.
type Persister struct {
	kv       storage.KV
	log      *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	sources map[string]Source
	dirty   map[string]bool
	wake    chan struct{}
}

func NewPersister(kv storage.KV, debounce time.Duration, log *slog.Logger) *Persister {
	return &Persister{
		kv:       kv,
		log:      log.With("component", "persister"),
		debounce: debounce,
		sources:  make(map[string]Source),
		dirty:    make(map[string]bool),
		wake:     make(chan struct{}, 1),
	}
}

// Register подключает источник к сохранению.
func (p *Persister) Register(src Source) {
	p.mu.Lock()
	p.sources[src.Key()] = src
	p.mu.Unlock()
}

// Schedule помечает ключ измененным. Не блокирует.
func (p *Persister) Schedule(key string) {
	p.mu.Lock()
	if _, ok := p.sources[key]; !ok {
		p.mu.Unlock()
		return
	}
	p.dirty[key] = true
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Restore загружает сохраненное значение ключа.
func (p *Persister) Restore(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := p.kv.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	return []byte(v), true, nil
}

// Run сохраняет изменения, пока не отменен контекст.
// Перед выходом сбрасывает все, что осталось.
func (p *Persister) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.Flush(context.Background())
			return
		case <-p.wake:
		}

		if p.debounce > 0 {
			timer := time.NewTimer(p.debounce)
			select {
			case <-ctx.Done():
				timer.Stop()
				p.Flush(context.Background())
				return
			case <-timer.C:
			}
		}

		p.Flush(ctx)
	}
}

// Flush синхронно сохраняет все измененные ключи.
func (p *Persister) Flush(ctx context.Context) {
	p.mu.Lock()
	pending := make([]Source, 0, len(p.dirty))
	for key := range p.dirty {
		pending = append(pending, p.sources[key])
	}
	p.dirty = make(map[string]bool)
	p.mu.Unlock()

	for _, src := range pending {
		data, err := src.MarshalState()
		if err != nil {
			p.log.Error("Ошибка сериализации состояния", "key", src.Key(), "error", err)
			continue
		}
		if err := p.kv.Set(ctx, src.Key(), string(data)); err != nil {
			p.log.Error("Ошибка записи состояния", "key", src.Key(), "error", err)
			continue
		}
		p.log.Debug("Состояние сохранено", "key", src.Key(), "bytes", len(data))
	}
}
