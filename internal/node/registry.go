package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hytun/internal/config/emitter"
	"hytun/internal/config/parser"
	"hytun/internal/storage"
	"hytun/internal/storage/jsonfile"
	"hytun/internal/storage/models"
	pkgerrors "hytun/pkg/errors"
)

const nodesDocument = "nodes"

// ServiceControl is the slice of the service controller the registry needs.
// The registry computes configs and calls it outside its own critical
// section so a slow systemctl never blocks node reads.
type ServiceControl interface {
	WriteConfig(data []byte) error
	Restart(ctx context.Context) error
	Stop(ctx context.Context) error
	IsActive(ctx context.Context) bool
}

// Registry owns the node document: all profiles, the current pointer, and
// the subscription source list. Every mutation is persisted before it is
// acknowledged.
type Registry struct {
	mu      sync.Mutex
	store   storage.DocumentStore
	parsers *parser.Registry
	emitter *emitter.Emitter
	svc     ServiceControl
	opts    func() emitter.Options
	doc     models.NodeDocument
}

// NewRegistry loads the node document and wires the registry's
// collaborators.
func NewRegistry(store storage.DocumentStore, parsers *parser.Registry, em *emitter.Emitter, svc ServiceControl, opts func() emitter.Options) (*Registry, error) {
	r := &Registry{
		store:   store,
		parsers: parsers,
		emitter: em,
		svc:     svc,
		opts:    opts,
	}

	err := store.Load(nodesDocument, &r.doc)
	switch {
	case err == nil:
	case errors.Is(err, jsonfile.ErrNotExist):
		r.doc = models.NodeDocument{}
	default:
		return nil, err
	}

	return r, nil
}

// Add parses a share link and appends the resulting node. Duplicate
// (server, port) endpoints are rejected, not merged.
func (r *Registry) Add(link string) (*models.Node, error) {
	return r.AddFromSource(link, "manual")
}

// AddFromSource is Add with an explicit provenance tag, used by
// subscription imports.
func (r *Registry) AddFromSource(link, source string) (*models.Node, error) {
	node, err := r.parsers.Parse(link)
	if err != nil {
		return nil, err
	}
	node.Source = source
	return r.insert(node)
}

// AddManual appends a manually entered node after validating and assigning
// identity.
func (r *Registry) AddManual(node *models.Node) (*models.Node, error) {
	p, _ := r.parsers.Get("hysteria2")
	if err := p.Validate(node); err != nil {
		return nil, &pkgerrors.ParseError{Input: node.Server, Reason: err.Error()}
	}

	now := time.Now()
	node.ID = parser.NewNodeID(node.Server, node.Port, now)
	node.CreatedAt = now
	node.UpdatedAt = now
	if node.Name == "" {
		node.Name = fmt.Sprintf("%s:%d", node.Server, node.Port)
	}
	if node.SNI == "" {
		node.SNI = node.Server
	}
	if node.MTU <= 0 {
		node.MTU = models.DefaultMTU
	}
	if node.Group == "" {
		node.Group = models.DefaultGroup
	}
	if node.Source == "" {
		node.Source = "manual"
	}

	return r.insert(node)
}

func (r *Registry) insert(node *models.Node) (*models.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findEndpoint(node.Server, node.Port) != nil {
		return nil, pkgerrors.ErrDuplicateNode
	}

	r.doc.Nodes = append(r.doc.Nodes, node)
	if err := r.persist(); err != nil {
		r.doc.Nodes = r.doc.Nodes[:len(r.doc.Nodes)-1]
		return nil, err
	}

	snapshot := *node
	return &snapshot, nil
}

// Update merges a patch into the node. When the patched node is current and
// the service is running, the config is regenerated and the service
// restarted.
func (r *Registry) Update(ctx context.Context, id string, patch models.NodePatch) (*models.Node, error) {
	r.mu.Lock()

	node := r.findID(id)
	if node == nil {
		r.mu.Unlock()
		return nil, pkgerrors.ErrNodeNotFound
	}

	prev := *node
	applyPatch(node, patch)

	// A patched endpoint must not collide with another node.
	if other := r.findEndpoint(node.Server, node.Port); other != nil && other.ID != id {
		*node = prev
		r.mu.Unlock()
		return nil, pkgerrors.ErrDuplicateNode
	}

	node.UpdatedAt = time.Now()
	if err := r.persist(); err != nil {
		*node = prev
		r.mu.Unlock()
		return nil, err
	}

	snapshot := *node
	isCurrent := r.doc.Current == id
	r.mu.Unlock()

	if isCurrent && r.svc.IsActive(ctx) {
		if err := r.materialize(ctx, &snapshot); err != nil {
			return &snapshot, err
		}
		if err := r.svc.Restart(ctx); err != nil {
			return &snapshot, err
		}
	}

	return &snapshot, nil
}

// Delete removes the node. Deleting the current node clears the current
// pointer and stops the service.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()

	kept := make([]*models.Node, 0, len(r.doc.Nodes))
	for _, n := range r.doc.Nodes {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	if len(kept) == len(r.doc.Nodes) {
		r.mu.Unlock()
		return pkgerrors.ErrNodeNotFound
	}

	orig := r.doc.Nodes
	r.doc.Nodes = kept

	wasCurrent := r.doc.Current == id
	if wasCurrent {
		r.doc.Current = ""
	}

	if err := r.persist(); err != nil {
		// Roll the in-memory mirror back so it matches disk.
		r.doc.Nodes = orig
		if wasCurrent {
			r.doc.Current = id
		}
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	if wasCurrent {
		if err := r.svc.Stop(ctx); err != nil {
			slog.Error("failed to stop service after deleting current node", "node", id, "error", err)
		}
	}
	return nil
}

// Use materializes the node's config, switches the current pointer, and
// restarts the service. If writing the config fails the pointer is not
// moved and the previous config stays in place.
func (r *Registry) Use(ctx context.Context, id string) (*models.Node, error) {
	r.mu.Lock()
	node := r.findID(id)
	if node == nil {
		r.mu.Unlock()
		return nil, pkgerrors.ErrNodeNotFound
	}
	snapshot := *node
	r.mu.Unlock()

	// Config generation and the service call happen outside the lock.
	if err := r.materialize(ctx, &snapshot); err != nil {
		return nil, err
	}

	now := time.Now()
	r.mu.Lock()
	// Re-check: the node may have been deleted while the config was being
	// written.
	node = r.findID(id)
	if node == nil {
		r.mu.Unlock()
		return nil, pkgerrors.ErrNodeNotFound
	}
	prevCurrent, prevUsed := r.doc.Current, node.LastUsed
	r.doc.Current = id
	node.LastUsed = &now
	if err := r.persist(); err != nil {
		r.doc.Current = prevCurrent
		node.LastUsed = prevUsed
		r.mu.Unlock()
		return nil, err
	}
	snapshot = *node
	r.mu.Unlock()

	if err := r.svc.Restart(ctx); err != nil {
		return &snapshot, err
	}
	return &snapshot, nil
}

// Get returns a copy of the node.
func (r *Registry) Get(id string) (*models.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	node := r.findID(id)
	if node == nil {
		return nil, pkgerrors.ErrNodeNotFound
	}
	snapshot := *node
	return &snapshot, nil
}

// List returns copies of all nodes in insertion order plus the current id.
func (r *Registry) List() ([]*models.Node, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodes := make([]*models.Node, 0, len(r.doc.Nodes))
	for _, n := range r.doc.Nodes {
		snapshot := *n
		nodes = append(nodes, &snapshot)
	}
	return nodes, r.doc.Current
}

// Current returns a copy of the current node, or nil when none is selected.
func (r *Registry) Current() *models.Node {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.doc.Current == "" {
		return nil
	}
	if node := r.findID(r.doc.Current); node != nil {
		snapshot := *node
		return &snapshot
	}
	return nil
}

// Subscriptions returns copies of the recorded subscription sources.
func (r *Registry) Subscriptions() []*models.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := make([]*models.Subscription, 0, len(r.doc.Subscriptions))
	for _, s := range r.doc.Subscriptions {
		snapshot := *s
		subs = append(subs, &snapshot)
	}
	return subs
}

// RecordSubscription upserts a subscription source entry after an import.
func (r *Registry) RecordSubscription(sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.doc.Subscriptions {
		if existing.URL == sub.URL {
			existing.Name = sub.Name
			existing.LastImport = sub.LastImport
			existing.NodeCount = sub.NodeCount
			return r.persist()
		}
	}
	r.doc.Subscriptions = append(r.doc.Subscriptions, sub)
	return r.persist()
}

// materialize emits the node's client config and writes it to the service
// config path, backing up the previous file.
func (r *Registry) materialize(ctx context.Context, node *models.Node) error {
	data, err := r.emitter.Emit(ctx, node, r.opts())
	if err != nil {
		return err
	}
	return r.svc.WriteConfig(data)
}

func (r *Registry) findID(id string) *models.Node {
	for _, n := range r.doc.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func (r *Registry) findEndpoint(server string, port int) *models.Node {
	for _, n := range r.doc.Nodes {
		if n.Server == server && n.Port == port {
			return n
		}
	}
	return nil
}

func (r *Registry) persist() error {
	return r.store.Save(nodesDocument, r.doc)
}

func applyPatch(n *models.Node, p models.NodePatch) {
	if p.Name != nil {
		n.Name = *p.Name
	}
	if p.Server != nil {
		n.Server = *p.Server
	}
	if p.Port != nil {
		n.Port = *p.Port
	}
	if p.Secret != nil {
		n.Secret = *p.Secret
	}
	if p.SNI != nil {
		n.SNI = *p.SNI
	}
	if p.Insecure != nil {
		n.Insecure = *p.Insecure
	}
	if p.ALPN != nil {
		n.ALPN = *p.ALPN
	}
	if p.Obfs != nil {
		n.Obfs = *p.Obfs
	}
	if p.ObfsPassword != nil {
		n.ObfsPassword = *p.ObfsPassword
	}
	if p.BandwidthUp != nil {
		n.BandwidthUp = *p.BandwidthUp
	}
	if p.BandwidthDown != nil {
		n.BandwidthDown = *p.BandwidthDown
	}
	if p.MTU != nil {
		n.MTU = *p.MTU
	}
	if p.Group != nil {
		n.Group = *p.Group
	}
}
