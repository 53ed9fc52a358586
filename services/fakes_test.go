package services

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/zargham101/wildfire-backend/kafka"
	"github.com/zargham101/wildfire-backend/models"
	"github.com/zargham101/wildfire-backend/repository"
)

// fakeInventoryRepo is an in-memory AgencyInventoryRepository with the
// same compare-and-swap semantics as the DynamoDB implementation.
type fakeInventoryRepo struct {
	mu    sync.Mutex
	items map[string]models.AgencyInventory
}

func newFakeInventoryRepo() *fakeInventoryRepo {
	return &fakeInventoryRepo{items: make(map[string]models.AgencyInventory)}
}

func cloneInventory(inv models.AgencyInventory) models.AgencyInventory {
	cp := inv
	cp.HeavyEquipment = append([]string(nil), inv.HeavyEquipment...)
	cp.ResourceHistory = append([]models.ResourceUsage(nil), inv.ResourceHistory...)
	return cp
}

func (r *fakeInventoryRepo) Get(ctx context.Context, agencyID string) (*models.AgencyInventory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[agencyID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := cloneInventory(stored)
	return &cp, nil
}

func (r *fakeInventoryRepo) Create(ctx context.Context, inv *models.AgencyInventory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[inv.AgencyID]; ok {
		return repository.ErrAlreadyExists
	}
	inv.Version = 1
	r.items[inv.AgencyID] = cloneInventory(*inv)
	return nil
}

func (r *fakeInventoryRepo) Save(ctx context.Context, inv *models.AgencyInventory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[inv.AgencyID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != inv.Version {
		return repository.ErrVersionConflict
	}
	inv.Version++
	r.items[inv.AgencyID] = cloneInventory(*inv)
	return nil
}

// seed installs an inventory record directly, bypassing CAS.
func (r *fakeInventoryRepo) seed(inv models.AgencyInventory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv.Version == 0 {
		inv.Version = 1
	}
	r.items[inv.AgencyID] = cloneInventory(inv)
}

// fakeRequestRepo is an in-memory RequestRepository. Setting
// updateFailures makes the next N Update calls fail, to simulate the
// request store going away between two writes.
type fakeRequestRepo struct {
	mu             sync.Mutex
	requests       map[uuid.UUID]models.ResourceRequest
	transitions    map[uuid.UUID][]models.RequestTransition
	updateFailures int
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{
		requests:    make(map[uuid.UUID]models.ResourceRequest),
		transitions: make(map[uuid.UUID][]models.RequestTransition),
	}
}

func (r *fakeRequestRepo) Create(ctx context.Context, req *models.ResourceRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *req
	stored.Transitions = nil
	r.requests[req.ID] = stored
	for _, tr := range req.Transitions {
		r.transitions[req.ID] = append(r.transitions[req.ID], tr)
	}
	return nil
}

func (r *fakeRequestRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.ResourceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := stored
	cp.Transitions = append([]models.RequestTransition(nil), r.transitions[id]...)
	return &cp, nil
}

func (r *fakeRequestRepo) FindByUserID(ctx context.Context, userID string, page, limit int) ([]models.ResourceRequest, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ResourceRequest
	for _, req := range r.requests {
		if req.UserID == userID {
			out = append(out, req)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeRequestRepo) FindAll(ctx context.Context, page, limit int) ([]models.ResourceRequest, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ResourceRequest
	for _, req := range r.requests {
		out = append(out, req)
	}
	return out, int64(len(out)), nil
}

func (r *fakeRequestRepo) Update(ctx context.Context, req *models.ResourceRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateFailures > 0 {
		r.updateFailures--
		return errors.New("request store unavailable")
	}
	if _, ok := r.requests[req.ID]; !ok {
		return repository.ErrNotFound
	}
	stored := *req
	stored.Transitions = nil
	r.requests[req.ID] = stored
	return nil
}

func (r *fakeRequestRepo) AppendTransition(ctx context.Context, tr *models.RequestTransition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions[tr.RequestID] = append(r.transitions[tr.RequestID], *tr)
	return nil
}

// fakePredictionRepo is an in-memory PredictionRepository.
type fakePredictionRepo struct {
	predictions map[string]models.Prediction
}

func newFakePredictionRepo() *fakePredictionRepo {
	return &fakePredictionRepo{predictions: make(map[string]models.Prediction)}
}

func (r *fakePredictionRepo) FindByID(ctx context.Context, id string) (*models.Prediction, error) {
	p, ok := r.predictions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := p
	return &cp, nil
}

// fakeCache is an in-memory ResponseCache.
type fakeCache struct {
	mu       sync.Mutex
	outcomes map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{outcomes: make(map[string]string)}
}

func (c *fakeCache) Get(ctx context.Context, requestID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcomes[requestID], nil
}

func (c *fakeCache) Set(ctx context.Context, requestID, outcome string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[requestID] = outcome
	return nil
}

func (c *fakeCache) clear(requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.outcomes, requestID)
}

// fakeProducer records published events.
type fakeProducer struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (p *fakeProducer) PublishEvent(ctx context.Context, evt kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func (p *fakeProducer) eventsOfType(eventType string) []kafka.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []kafka.Event
	for _, evt := range p.events {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}
