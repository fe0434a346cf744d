package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"hytun/internal/config/emitter"
	"hytun/internal/config/parser"
	"hytun/internal/node"
	"hytun/internal/storage/jsonfile"
	pkgerrors "hytun/pkg/errors"
)

type memStore struct {
	docs map[string][]byte
}

func (m *memStore) Load(name string, v any) error {
	data, ok := m.docs[name]
	if !ok {
		return jsonfile.ErrNotExist
	}
	return json.Unmarshal(data, v)
}

func (m *memStore) Save(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.docs[name] = data
	return nil
}

type noopService struct{}

func (noopService) WriteConfig(data []byte) error     { return nil }
func (noopService) Restart(ctx context.Context) error { return nil }
func (noopService) Stop(ctx context.Context) error    { return nil }
func (noopService) IsActive(ctx context.Context) bool { return false }

func newTestManager(t *testing.T) (*Manager, *node.Registry) {
	t.Helper()

	store := &memStore{docs: make(map[string][]byte)}
	registry, err := node.NewRegistry(store, parser.NewRegistry(), emitter.New(), noopService{}, func() emitter.Options {
		return emitter.Options{}
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return NewManager(registry), registry
}

const subscriptionBody = `# test subscription
hy2://pw1@192.0.2.1:443#One
hysteria2://pw2@192.0.2.2:443#Two

this line is noise
hysteria://pw3@192.0.2.3:8443#Three
vless://ignored@192.0.2.9:443
`

func TestImport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(subscriptionBody))
	}))
	defer srv.Close()

	m, registry := newTestManager(t)

	result, err := m.Import(context.Background(), srv.URL, "testsub")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.Added != 3 {
		t.Errorf("added = %d, want 3", result.Added)
	}
	if result.TotalLinks != 3 {
		t.Errorf("total links = %d, want 3", result.TotalLinks)
	}

	nodes, _ := registry.List()
	if len(nodes) != 3 {
		t.Fatalf("registry has %d nodes, want 3", len(nodes))
	}
	for _, n := range nodes {
		if n.Source != "subscription" {
			t.Errorf("node %s source = %q, want subscription", n.ID, n.Source)
		}
	}

	subs := registry.Subscriptions()
	if len(subs) != 1 || subs[0].Name != "testsub" {
		t.Errorf("subscription source not recorded: %+v", subs)
	}
}

func TestImportSkipsDuplicates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(subscriptionBody))
	}))
	defer srv.Close()

	m, _ := newTestManager(t)

	if _, err := m.Import(context.Background(), srv.URL, "first"); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	result, err := m.Import(context.Background(), srv.URL, "second")
	if err != nil {
		t.Fatalf("second Import failed: %v", err)
	}
	if result.Added != 0 {
		t.Errorf("added = %d on re-import, want 0", result.Added)
	}
	if result.Skipped != 3 {
		t.Errorf("skipped = %d on re-import, want 3", result.Skipped)
	}
}

func TestImportEmptySubscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("no links here\njust noise\n"))
	}))
	defer srv.Close()

	m, registry := newTestManager(t)

	_, err := m.Import(context.Background(), srv.URL, "empty")
	if !errors.Is(err, pkgerrors.ErrSubscriptionEmpty) {
		t.Fatalf("Import returned %v, want ErrSubscriptionEmpty", err)
	}
	if subs := registry.Subscriptions(); len(subs) != 0 {
		t.Error("empty subscription was recorded as a source")
	}
}

func TestImportClientErrorDoesNotRetry(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	m, _ := newTestManager(t)

	if _, err := m.Import(context.Background(), srv.URL, "gone"); err == nil {
		t.Fatal("Import succeeded against a 404")
	}
	if hits != 1 {
		t.Errorf("server hit %d times, want 1 (no retry on 4xx)", hits)
	}
}

func TestRefreshAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(subscriptionBody))
	}))
	defer srv.Close()

	m, _ := newTestManager(t)

	if results := m.RefreshAll(context.Background()); results != nil {
		t.Errorf("RefreshAll with no sources returned %v", results)
	}

	if _, err := m.Import(context.Background(), srv.URL, "main"); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	results := m.RefreshAll(context.Background())
	if len(results) != 1 {
		t.Fatalf("RefreshAll returned %d results, want 1", len(results))
	}
	if results[0].Skipped != 3 {
		t.Errorf("refresh skipped = %d, want 3", results[0].Skipped)
	}
}
