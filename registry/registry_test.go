package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/meshworks/adapterkit/core"
)

type lifecycleLog struct {
	mu          sync.Mutex
	initialized []string
	shutdown    []string
}

func (l *lifecycleLog) record(list *[]string, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*list = append(*list, id)
}

func testAdapter(id string, tags []string, log *lifecycleLog) *core.FuncAdapter {
	return &core.FuncAdapter{
		AdapterID:      id,
		AdapterName:    id + "-adapter",
		AdapterVersion: "1.0.0",
		Tags:           tags,
		InitializeFunc: func(ctx context.Context, cfg *core.AdapterConfig) error {
			if log != nil {
				log.record(&log.initialized, id)
			}
			return nil
		},
		HealthCheckFunc: func(ctx context.Context) (*core.HealthReport, error) {
			return core.Healthy(), nil
		},
		ShutdownFunc: func(ctx context.Context) error {
			if log != nil {
				log.record(&log.shutdown, id)
			}
			return nil
		},
		Ops: map[string]core.Operation{
			"echo": func(ctx context.Context, params map[string]any) (any, error) {
				return params, nil
			},
		},
	}
}

// TestRegisterAndGet tests the basic register/lookup cycle
func TestRegisterAndGet(t *testing.T) {
	r := New(nil, &core.NoOpLogger{})
	log := &lifecycleLog{}

	if err := r.Register(context.Background(), testAdapter("iam", nil, log)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if len(log.initialized) != 1 || log.initialized[0] != "iam" {
		t.Errorf("Initialize calls = %v, want [iam]", log.initialized)
	}

	a, ok := r.Get("iam")
	if !ok {
		t.Fatal("Get(iam) not found")
	}
	if a.ID() != "iam" {
		t.Errorf("adapter id = %q, want iam", a.ID())
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) should report not found")
	}
}

// TestRegisterDuplicate verifies a duplicate id is rejected and the second
// adapter is shut down
func TestRegisterDuplicate(t *testing.T) {
	r := New(nil, &core.NoOpLogger{})
	log := &lifecycleLog{}

	first := testAdapter("dup", nil, log)
	if err := r.Register(context.Background(), first); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	second := testAdapter("dup", nil, log)
	err := r.Register(context.Background(), second)
	if !errors.Is(err, core.ErrAdapterAlreadyRegistered) {
		t.Errorf("error = %v, want ErrAdapterAlreadyRegistered", err)
	}

	// The second adapter was initialized before the collision was detected;
	// its resources must be released
	if len(log.shutdown) != 1 || log.shutdown[0] != "dup" {
		t.Errorf("shutdown calls = %v, want one for the rejected duplicate", log.shutdown)
	}

	// The original registration survives
	a, ok := r.Get("dup")
	if !ok || a != core.Adapter(first) {
		t.Error("original adapter should remain registered")
	}
}

// TestRegisterValidation verifies malformed adapters never enter the registry
func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*core.FuncAdapter)
	}{
		{"empty id", func(a *core.FuncAdapter) { a.AdapterID = "" }},
		{"empty name", func(a *core.FuncAdapter) { a.AdapterName = "" }},
		{"empty version", func(a *core.FuncAdapter) { a.AdapterVersion = "" }},
		{"missing initialize", func(a *core.FuncAdapter) { a.InitializeFunc = nil }},
		{"missing health check", func(a *core.FuncAdapter) { a.HealthCheckFunc = nil }},
		{"missing shutdown", func(a *core.FuncAdapter) { a.ShutdownFunc = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(nil, &core.NoOpLogger{})
			a := testAdapter("x", nil, nil)
			tt.mutate(a)

			err := r.Register(context.Background(), a)
			if !errors.Is(err, core.ErrInvalidAdapter) {
				t.Errorf("error = %v, want ErrInvalidAdapter", err)
			}
			if r.Len() != 0 {
				t.Error("invalid adapter must not be added")
			}
		})
	}

	// Nil adapter
	r := New(nil, &core.NoOpLogger{})
	if err := r.Register(context.Background(), nil); !errors.Is(err, core.ErrInvalidAdapter) {
		t.Errorf("nil adapter error = %v, want ErrInvalidAdapter", err)
	}
}

// TestRegisterInitializationFailure verifies a failing Initialize keeps the
// adapter out of the registry
func TestRegisterInitializationFailure(t *testing.T) {
	r := New(nil, &core.NoOpLogger{})

	a := testAdapter("broken", nil, nil)
	a.InitializeFunc = func(ctx context.Context, cfg *core.AdapterConfig) error {
		return errors.New("connect refused")
	}

	err := r.Register(context.Background(), a)
	if !errors.Is(err, core.ErrAdapterInitialization) {
		t.Errorf("error = %v, want ErrAdapterInitialization", err)
	}
	if _, ok := r.Get("broken"); ok {
		t.Error("failed adapter must not be registered")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

// TestRegisterResolvesConfig verifies the adapter receives its resolved
// configuration at Initialize
func TestRegisterResolvesConfig(t *testing.T) {
	configs := core.NewStaticConfigSource(map[string]*core.AdapterConfig{
		"db": {Tenant: "acme", Endpoints: map[string]string{"primary": "db://h"}},
	})
	r := New(configs, &core.NoOpLogger{})

	var seen *core.AdapterConfig
	a := testAdapter("db", nil, nil)
	a.InitializeFunc = func(ctx context.Context, cfg *core.AdapterConfig) error {
		seen = cfg
		return nil
	}

	if err := r.Register(context.Background(), a); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if seen == nil || seen.Tenant != "acme" {
		t.Errorf("Initialize config = %+v, want tenant acme", seen)
	}

	// Unconfigured adapters get an empty config, not an error
	b := testAdapter("unconfigured", nil, nil)
	b.InitializeFunc = func(ctx context.Context, cfg *core.AdapterConfig) error {
		seen = cfg
		return nil
	}
	if err := r.Register(context.Background(), b); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if seen == nil {
		t.Error("unconfigured adapter should still receive a config")
	}
}

// TestUnregister tests shutdown-on-unregister and unknown-id tolerance
func TestUnregister(t *testing.T) {
	r := New(nil, &core.NoOpLogger{})
	log := &lifecycleLog{}

	if err := r.Register(context.Background(), testAdapter("a", nil, log)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	r.Unregister(context.Background(), "a")
	if _, ok := r.Get("a"); ok {
		t.Error("adapter still present after Unregister")
	}
	if len(log.shutdown) != 1 {
		t.Errorf("shutdown calls = %v, want exactly one", log.shutdown)
	}

	// Unknown id is a no-op
	r.Unregister(context.Background(), "never-registered")
}

// TestUnregisterShutdownErrorCompletes verifies a failing Shutdown still
// removes the adapter
func TestUnregisterShutdownErrorCompletes(t *testing.T) {
	r := New(nil, &core.NoOpLogger{})

	a := testAdapter("stubborn", nil, nil)
	a.ShutdownFunc = func(ctx context.Context) error {
		return errors.New("release failed")
	}
	if err := r.Register(context.Background(), a); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	r.Unregister(context.Background(), "stubborn")
	if r.Len() != 0 {
		t.Error("Unregister must complete despite shutdown errors")
	}
}

// TestAllSorted verifies All returns adapters in id order
func TestAllSorted(t *testing.T) {
	r := New(nil, &core.NoOpLogger{})
	for _, id := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(context.Background(), testAdapter(id, nil, nil)); err != nil {
			t.Fatalf("Register(%s) failed: %v", id, err)
		}
	}

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("All() has %d adapters, want 3", len(all))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, a := range all {
		if a.ID() != want[i] {
			t.Errorf("All()[%d] = %s, want %s", i, a.ID(), want[i])
		}
	}
}

// TestByCapability verifies capability lookup returns a stable, sorted set
func TestByCapability(t *testing.T) {
	r := New(nil, &core.NoOpLogger{})
	_ = r.Register(context.Background(), testAdapter("s3", []string{"storage", "blob"}, nil))
	_ = r.Register(context.Background(), testAdapter("gcs", []string{"storage"}, nil))
	_ = r.Register(context.Background(), testAdapter("smtp", []string{"mail"}, nil))

	storage := r.ByCapability("storage")
	if len(storage) != 2 {
		t.Fatalf("ByCapability(storage) has %d adapters, want 2", len(storage))
	}
	if storage[0].ID() != "gcs" || storage[1].ID() != "s3" {
		t.Errorf("ByCapability order = [%s %s], want [gcs s3]", storage[0].ID(), storage[1].ID())
	}

	// Same query twice returns the same order
	again := r.ByCapability("storage")
	for i := range storage {
		if storage[i].ID() != again[i].ID() {
			t.Error("ByCapability order is not stable across calls")
		}
	}

	if got := r.ByCapability("nonexistent"); len(got) != 0 {
		t.Errorf("ByCapability(nonexistent) = %d adapters, want 0", len(got))
	}
}

// TestSetHealthAndEntry verifies health metadata round-trips through entries
func TestSetHealthAndEntry(t *testing.T) {
	r := New(nil, &core.NoOpLogger{})
	_ = r.Register(context.Background(), testAdapter("a", nil, nil))

	entry, ok := r.Entry("a")
	if !ok {
		t.Fatal("Entry(a) not found")
	}
	if entry.Health != core.HealthUnknown {
		t.Errorf("initial health = %v, want unknown", entry.Health)
	}
	if entry.RegisteredAt.IsZero() {
		t.Error("RegisteredAt should be set")
	}

	r.SetHealth("a", core.HealthUnhealthy)
	entry, _ = r.Entry("a")
	if entry.Health != core.HealthUnhealthy {
		t.Errorf("health = %v after SetHealth, want unhealthy", entry.Health)
	}

	// Unknown id is a no-op
	r.SetHealth("missing", core.HealthHealthy)
}

// TestRegistryShutdown verifies teardown shuts every adapter down
func TestRegistryShutdown(t *testing.T) {
	r := New(nil, &core.NoOpLogger{})
	log := &lifecycleLog{}
	for _, id := range []string{"a", "b", "c"} {
		_ = r.Register(context.Background(), testAdapter(id, nil, log))
	}

	r.Shutdown(context.Background())
	if r.Len() != 0 {
		t.Errorf("Len() = %d after Shutdown, want 0", r.Len())
	}
	if len(log.shutdown) != 3 {
		t.Errorf("shutdown calls = %v, want 3", log.shutdown)
	}
}

// TestRegistryConcurrentAccess exercises concurrent reads and writes
func TestRegistryConcurrentAccess(t *testing.T) {
	r := New(nil, &core.NoOpLogger{})
	_ = r.Register(context.Background(), testAdapter("base", []string{"t"}, nil))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n))
			_ = r.Register(context.Background(), testAdapter(id, []string{"t"}, nil))
		}(i)
		go func() {
			defer wg.Done()
			r.Get("base")
			r.All()
			r.ByCapability("t")
		}()
	}
	wg.Wait()

	if r.Len() != 11 {
		t.Errorf("Len() = %d, want 11", r.Len())
	}
}
