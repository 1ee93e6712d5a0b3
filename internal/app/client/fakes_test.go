package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/exp/slog"

	"possync/internal/app/client/network"
	"possync/internal/app/client/store"
	"possync/internal/domain/entity"
)

// fakeRemote - сервер в памяти с идемпотентным созданием.
type fakeRemote struct {
	mu      sync.Mutex
	nextID  int
	rows    map[entity.Kind]map[string]json.RawMessage
	byKey   map[string]string
	calls   []string
	bodies  map[string]json.RawMessage
	errFor  func(op string, kind entity.Kind, id string) error
	onCall  func(op string, kind entity.Kind)
	listErr map[entity.Kind]error
	filters []entity.Filter
	// dropReplies - сколько ответов на CREATE потерять после записи.
	dropReplies int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		nextID:  42,
		rows:    make(map[entity.Kind]map[string]json.RawMessage),
		byKey:   make(map[string]string),
		bodies:  make(map[string]json.RawMessage),
		listErr: make(map[entity.Kind]error),
	}
}

func (f *fakeRemote) record(op string, kind entity.Kind, id string) error {
	f.mu.Lock()
	f.calls = append(f.calls, strings.TrimSpace(op+" "+string(kind)+" "+id))
	errFor := f.errFor
	onCall := f.onCall
	f.mu.Unlock()

	if onCall != nil {
		onCall(op, kind)
	}
	if errFor != nil {
		return errFor(op, kind, id)
	}
	return nil
}

func (f *fakeRemote) seed(kind entity.Kind, id string, fields entity.Fields) {
	raw, _ := entity.EncodeFields(fields)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows[kind] == nil {
		f.rows[kind] = make(map[string]json.RawMessage)
	}
	f.rows[kind][id] = raw
}

func (f *fakeRemote) List(_ context.Context, kind entity.Kind, filter entity.Filter) ([]entity.Record, error) {
	if err := f.record("LIST", kind, ""); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if err := f.listErr[kind]; err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(f.rows[kind]))
	for id := range f.rows[kind] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]entity.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := entity.WireRecord{ID: id, Kind: kind, Fields: f.rows[kind][id]}.ToRecord()
		if err != nil {
			return nil, err
		}
		if staff, ok := rec.Fields.(entity.StaffFields); ok && filter.StoreID != "" && staff.StoreID != filter.StoreID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeRemote) Get(_ context.Context, kind entity.Kind, id string) (*entity.Record, error) {
	if err := f.record("GET", kind, id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.rows[kind][id]
	if !ok {
		return nil, entity.NewStatusError(404, "not found")
	}
	rec, err := entity.WireRecord{ID: id, Kind: kind, Fields: raw}.ToRecord()
	return &rec, err
}

func (f *fakeRemote) Create(_ context.Context, kind entity.Kind, fields json.RawMessage, key string) (*entity.Record, error) {
	if err := f.record("CREATE", kind, ""); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id, replay := f.byKey[key]
	if !replay {
		id = fmt.Sprintf("srv_%d", f.nextID)
		f.nextID++
		if f.rows[kind] == nil {
			f.rows[kind] = make(map[string]json.RawMessage)
		}
		f.rows[kind][id] = fields
		f.bodies[id] = fields
		if key != "" {
			f.byKey[key] = id
		}
	}

	if f.dropReplies > 0 {
		f.dropReplies--
		return nil, &entity.RemoteCallError{Message: "connection reset", Transient: true}
	}

	rec, err := entity.WireRecord{ID: id, Kind: kind, Fields: f.rows[kind][id]}.ToRecord()
	return &rec, err
}

func (f *fakeRemote) Update(_ context.Context, kind entity.Kind, id string, fields json.RawMessage) (*entity.Record, error) {
	if err := f.record("UPDATE", kind, id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[kind][id]; !ok {
		return nil, entity.NewStatusError(404, "not found")
	}
	f.rows[kind][id] = fields
	f.bodies[id] = fields
	rec, err := entity.WireRecord{ID: id, Kind: kind, Fields: fields}.ToRecord()
	return &rec, err
}

func (f *fakeRemote) Delete(_ context.Context, kind entity.Kind, id string) error {
	if err := f.record("DELETE", kind, id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[kind][id]; !ok {
		return entity.NewStatusError(404, "not found")
	}
	delete(f.rows[kind], id)
	return nil
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeRemote) Count(kind entity.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows[kind])
}

func (f *fakeRemote) Body(id string) json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[id]
}

type nopProber struct{}

func (nopProber) Probe(context.Context) network.Status { return network.Status{} }

var (
	online  = network.Status{Connected: true, Reachable: true}
	offline = network.Status{}
)

func newMonitor(s network.Status) *network.Monitor {
	m := network.NewMonitor(nopProber{}, 0, slog.Default())
	m.Set(s)
	return m
}

type harness struct {
	remote  *fakeRemote
	monitor *network.Monitor
	aliases *entity.AliasTable
	stores  map[entity.Kind]*store.EntityStore
	sync    *SyncService
	opt     *Optimistic
}

func newHarness(t *testing.T, status network.Status) *harness {
	t.Helper()

	h := &harness{
		remote:  newFakeRemote(),
		monitor: newMonitor(status),
		aliases: entity.NewAliasTable(),
		stores:  make(map[entity.Kind]*store.EntityStore),
	}
	ids := entity.NewIDGenerator(entity.DefaultIDStart)
	guards := entity.DefaultGuards()

	list := make([]*store.EntityStore, 0)
	for _, kind := range entity.AllKinds() {
		st := store.New(store.Options{
			Kind:        kind,
			IDs:         ids,
			Aliases:     h.aliases,
			Guard:       guards[kind],
			MaxAttempts: 3,
		})
		h.stores[kind] = st
		list = append(list, st)
	}

	h.sync = NewSyncService(list, h.remote, h.monitor, h.aliases, &SyncConfig{CallTimeout: time.Second}, slog.Default())
	h.opt = NewOptimistic(h.sync, slog.Default())
	t.Cleanup(h.sync.Stop)
	return h
}

func (h *harness) store(kind entity.Kind) *store.EntityStore {
	return h.stores[kind]
}
