package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zargham101/wildfire-backend/calculator"
	apperrors "github.com/zargham101/wildfire-backend/common/errors"
	"github.com/zargham101/wildfire-backend/kafka"
	"github.com/zargham101/wildfire-backend/models"
)

type requestServiceFixture struct {
	svc         *RequestService
	requests    *fakeRequestRepo
	predictions *fakePredictionRepo
	inventories *fakeInventoryRepo
	cache       *fakeCache
	producer    *fakeProducer
}

func newRequestServiceFixture() *requestServiceFixture {
	requests := newFakeRequestRepo()
	predictions := newFakePredictionRepo()
	inventories := newFakeInventoryRepo()
	cache := newFakeCache()
	producer := &fakeProducer{}
	logger := zap.NewNop()

	invSvc := NewInventoryService(inventories, producer, logger)
	allocator := NewAllocationService(inventories, producer, logger)
	svc := NewRequestService(requests, predictions, invSvc, allocator, cache, producer, logger)

	return &requestServiceFixture{
		svc:         svc,
		requests:    requests,
		predictions: predictions,
		inventories: inventories,
		cache:       cache,
		producer:    producer,
	}
}

func (f *requestServiceFixture) seedPrediction(id string, temp, wind, humidity float64) {
	f.predictions.predictions[id] = models.Prediction{
		ID:          id,
		Temperature: temp,
		WindSpeed:   wind,
		Humidity:    humidity,
	}
}

func (f *requestServiceFixture) createAssigned(t *testing.T, agencyID string, required models.ResourceBundle) *models.ResourceRequest {
	t.Helper()
	f.seedPrediction("pred-1", 30, 20, 40)
	req, err := f.svc.Create(context.Background(), "user-1", &models.CreateRequestPayload{
		PredictionID:      "pred-1",
		RequiredResources: &required,
	})
	require.NoError(t, err)
	assigned, err := f.svc.Assign(context.Background(), "coord-1", req.ID, &models.AssignRequestPayload{AgencyID: agencyID})
	require.NoError(t, err)
	return assigned
}

func TestCreateRequestPending(t *testing.T) {
	f := newRequestServiceFixture()
	f.seedPrediction("pred-1", 30, 20, 40)

	required := models.ResourceBundle{Firefighters: 5, Firetrucks: 1}
	req, err := f.svc.Create(context.Background(), "user-1", &models.CreateRequestPayload{
		PredictionID:      "pred-1",
		RequiredResources: &required,
		Latitude:          34.05,
		Longitude:         -118.24,
		UserMessage:       "spot fire near ridge",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, req.Status)
	assert.Equal(t, required, req.RequiredResources)
	assert.Nil(t, req.AssignedAgency)

	stored, err := f.requests.FindByID(context.Background(), req.ID)
	require.NoError(t, err)
	require.Len(t, stored.Transitions, 1)
	assert.Equal(t, models.StatusPending, stored.Transitions[0].Status)
	assert.Equal(t, "user-1", stored.Transitions[0].UpdatedBy)
}

func TestCreateRequestSizedFromPrediction(t *testing.T) {
	f := newRequestServiceFixture()
	f.seedPrediction("pred-1", 30, 20, 40)

	req, err := f.svc.Create(context.Background(), "user-1", &models.CreateRequestPayload{
		PredictionID: "pred-1",
	})
	require.NoError(t, err)

	want := calculator.Size(30, 20, 40).Immediate
	assert.Equal(t, want, req.RequiredResources)
}

func TestCreateRequestUnknownPrediction(t *testing.T) {
	f := newRequestServiceFixture()

	_, err := f.svc.Create(context.Background(), "user-1", &models.CreateRequestPayload{
		PredictionID: "missing",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCreateRequestRejectsInvalidBundle(t *testing.T) {
	f := newRequestServiceFixture()
	f.seedPrediction("pred-1", 30, 20, 40)

	_, err := f.svc.Create(context.Background(), "user-1", &models.CreateRequestPayload{
		PredictionID:      "pred-1",
		RequiredResources: &models.ResourceBundle{Firefighters: -1},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = f.svc.Create(context.Background(), "user-1", &models.CreateRequestPayload{
		PredictionID:      "pred-1",
		RequiredResources: &models.ResourceBundle{},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestAssignPendingRequest(t *testing.T) {
	f := newRequestServiceFixture()
	req := f.createAssigned(t, "agency-1", models.ResourceBundle{Firefighters: 5})

	assert.Equal(t, models.StatusAssigned, req.Status)
	require.NotNil(t, req.AssignedAgency)
	assert.Equal(t, "agency-1", *req.AssignedAgency)

	// First reference to the agency provisions the default pool.
	inv, err := f.inventories.Get(context.Background(), "agency-1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultMaxResources, inv.MaxResources)

	events := f.producer.eventsOfType(kafka.EventRequestAssigned)
	require.Len(t, events, 1)
	assert.Equal(t, req.ID.String(), events[0].RequestID)
}

func TestAssignNonPendingConflicts(t *testing.T) {
	f := newRequestServiceFixture()
	req := f.createAssigned(t, "agency-1", models.ResourceBundle{Firefighters: 5})

	_, err := f.svc.Assign(context.Background(), "coord-1", req.ID, &models.AssignRequestPayload{AgencyID: "agency-2"})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestAssignToLockedAgencyConflicts(t *testing.T) {
	f := newRequestServiceFixture()
	f.seedPrediction("pred-1", 30, 20, 40)

	locked := models.NewAgencyInventory("agency-1", models.DefaultMaxResources, nil)
	locked.Locked = true
	locked.LockReason = "insufficient helicopters (available 0, required 1)"
	f.inventories.seed(*locked)

	req, err := f.svc.Create(context.Background(), "user-1", &models.CreateRequestPayload{
		PredictionID:      "pred-1",
		RequiredResources: &models.ResourceBundle{Firefighters: 1},
	})
	require.NoError(t, err)

	_, err = f.svc.Assign(context.Background(), "coord-1", req.ID, &models.AssignRequestPayload{AgencyID: "agency-1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Contains(t, err.Error(), "helicopters")

	stored, err := f.requests.FindByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestRespondReject(t *testing.T) {
	f := newRequestServiceFixture()
	req := f.createAssigned(t, "agency-1", models.ResourceBundle{Firefighters: 5})

	before, err := f.inventories.Get(context.Background(), "agency-1")
	require.NoError(t, err)

	rejected, err := f.svc.Respond(context.Background(), "agency-1", req.ID, &models.RespondRequestPayload{
		Status:  models.ResponseReject,
		Message: "crews committed elsewhere",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)

	// Reject has no inventory side effects.
	after, err := f.inventories.Get(context.Background(), "agency-1")
	require.NoError(t, err)
	assert.Equal(t, before.CurrentResources, after.CurrentResources)
	assert.Empty(t, after.ResourceHistory)

	require.Len(t, f.producer.eventsOfType(kafka.EventRequestRejected), 1)
}

func TestRespondAcceptCompletesAndDeducts(t *testing.T) {
	f := newRequestServiceFixture()
	req := f.createAssigned(t, "agency-1", models.ResourceBundle{Firefighters: 5, Firetrucks: 1})

	completed, err := f.svc.Respond(context.Background(), "agency-1", req.ID, &models.RespondRequestPayload{
		Status: models.ResponseAccept,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)

	inv, err := f.inventories.Get(context.Background(), "agency-1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultMaxResources.Firefighters-5, inv.CurrentResources.Firefighters)
	assert.Equal(t, models.DefaultMaxResources.Firetrucks-1, inv.CurrentResources.Firetrucks)
	require.Len(t, inv.ResourceHistory, 1)
	assert.Equal(t, req.ID.String(), inv.ResourceHistory[0].RequestID)

	require.Len(t, f.producer.eventsOfType(kafka.EventRequestCompleted), 1)
}

func TestRespondAcceptShortfallStaysAssigned(t *testing.T) {
	f := newRequestServiceFixture()
	f.inventories.seed(*models.NewAgencyInventory("agency-1", models.ResourceCount{
		Firefighters: 5, Firetrucks: 1,
	}, nil))
	req := f.createAssigned(t, "agency-1", models.ResourceBundle{Helicopters: 1})

	_, err := f.svc.Respond(context.Background(), "agency-1", req.ID, &models.RespondRequestPayload{
		Status: models.ResponseAccept,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsInsufficient(err))

	stored, err := f.requests.FindByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, stored.Status)

	// The failure is recorded in the request history without a status flip.
	last := stored.Transitions[len(stored.Transitions)-1]
	assert.Equal(t, models.StatusAssigned, last.Status)
	assert.Contains(t, last.Message, "helicopters")

	inv, err := f.inventories.Get(context.Background(), "agency-1")
	require.NoError(t, err)
	assert.True(t, inv.Locked)
	assert.Equal(t, 5, inv.CurrentResources.Firefighters)
}

func TestRespondWrongAgencyConflicts(t *testing.T) {
	f := newRequestServiceFixture()
	req := f.createAssigned(t, "agency-1", models.ResourceBundle{Firefighters: 1})

	_, err := f.svc.Respond(context.Background(), "agency-2", req.ID, &models.RespondRequestPayload{
		Status: models.ResponseAccept,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestRespondPendingConflicts(t *testing.T) {
	f := newRequestServiceFixture()
	f.seedPrediction("pred-1", 30, 20, 40)
	req, err := f.svc.Create(context.Background(), "user-1", &models.CreateRequestPayload{
		PredictionID:      "pred-1",
		RequiredResources: &models.ResourceBundle{Firefighters: 1},
	})
	require.NoError(t, err)

	_, err = f.svc.Respond(context.Background(), "agency-1", req.ID, &models.RespondRequestPayload{
		Status: models.ResponseAccept,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

// A retried respond on a finalized request replays the recorded
// outcome for the same agency instead of conflicting, and leaves the
// inventory untouched.
func TestRespondRetryIsIdempotent(t *testing.T) {
	f := newRequestServiceFixture()
	req := f.createAssigned(t, "agency-1", models.ResourceBundle{Firefighters: 5})

	_, err := f.svc.Respond(context.Background(), "agency-1", req.ID, &models.RespondRequestPayload{
		Status: models.ResponseAccept,
	})
	require.NoError(t, err)

	replayed, err := f.svc.Respond(context.Background(), "agency-1", req.ID, &models.RespondRequestPayload{
		Status: models.ResponseAccept,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, replayed.Status)

	// No second deduction.
	inv, err := f.inventories.Get(context.Background(), "agency-1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultMaxResources.Firefighters-5, inv.CurrentResources.Firefighters)
	assert.Len(t, inv.ResourceHistory, 1)
}

// If the deduction commits but the completed status write fails, the
// request stays assigned with an unknown outcome. The retry must not
// deduct a second time.
func TestRespondRetryAfterFinalizationFailureDeductsOnce(t *testing.T) {
	f := newRequestServiceFixture()
	f.inventories.seed(*models.NewAgencyInventory("agency-1", models.ResourceCount{Firefighters: 10}, nil))
	req := f.createAssigned(t, "agency-1", models.ResourceBundle{Firefighters: 4})

	f.requests.updateFailures = 1
	_, err := f.svc.Respond(context.Background(), "agency-1", req.ID, &models.RespondRequestPayload{
		Status: models.ResponseAccept,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindPersistence))

	// Deduction committed, finalization did not.
	inv, err := f.inventories.Get(context.Background(), "agency-1")
	require.NoError(t, err)
	assert.Equal(t, 6, inv.CurrentResources.Firefighters)
	stored, err := f.requests.FindByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, stored.Status)

	completed, err := f.svc.Respond(context.Background(), "agency-1", req.ID, &models.RespondRequestPayload{
		Status: models.ResponseAccept,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)

	inv, err = f.inventories.Get(context.Background(), "agency-1")
	require.NoError(t, err)
	assert.Equal(t, 6, inv.CurrentResources.Firefighters)
	assert.Len(t, inv.ResourceHistory, 1)
}

// A retry whose action contradicts the recorded outcome is not a
// replay: rejecting an already-completed request conflicts.
func TestRespondRetryWithContradictingActionConflicts(t *testing.T) {
	f := newRequestServiceFixture()
	req := f.createAssigned(t, "agency-1", models.ResourceBundle{Firefighters: 5})

	_, err := f.svc.Respond(context.Background(), "agency-1", req.ID, &models.RespondRequestPayload{
		Status: models.ResponseAccept,
	})
	require.NoError(t, err)

	_, err = f.svc.Respond(context.Background(), "agency-1", req.ID, &models.RespondRequestPayload{
		Status: models.ResponseReject,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	stored, err := f.requests.FindByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
}

func TestRespondTerminalWithoutRecordedOutcomeConflicts(t *testing.T) {
	f := newRequestServiceFixture()
	req := f.createAssigned(t, "agency-1", models.ResourceBundle{Firefighters: 5})

	_, err := f.svc.Respond(context.Background(), "agency-1", req.ID, &models.RespondRequestPayload{
		Status: models.ResponseAccept,
	})
	require.NoError(t, err)

	// Outcome record expired: the retry window is over.
	f.cache.clear(req.ID.String())

	_, err = f.svc.Respond(context.Background(), "agency-1", req.ID, &models.RespondRequestPayload{
		Status: models.ResponseAccept,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	inv, err := f.inventories.Get(context.Background(), "agency-1")
	require.NoError(t, err)
	assert.Len(t, inv.ResourceHistory, 1)
}

// End-to-end walk of the documented scenario: a pool of 10/2/1/1 with
// a bulldozer serves a 5/1/1/1 request, then fails a one-helicopter
// request and locks.
func TestRequestLifecycleScenario(t *testing.T) {
	f := newRequestServiceFixture()
	f.inventories.seed(*models.NewAgencyInventory("agency-1", models.ResourceCount{
		Firefighters: 10, Firetrucks: 2, Helicopters: 1, Commanders: 1,
	}, []string{"bulldozer"}))

	first := f.createAssigned(t, "agency-1", models.ResourceBundle{
		Firefighters: 5, Firetrucks: 1, Helicopters: 1, Commanders: 1,
		HeavyEquipment: []string{"bulldozer"},
	})
	_, err := f.svc.Respond(context.Background(), "agency-1", first.ID, &models.RespondRequestPayload{Status: models.ResponseAccept})
	require.NoError(t, err)

	inv, err := f.inventories.Get(context.Background(), "agency-1")
	require.NoError(t, err)
	assert.Equal(t, models.ResourceCount{Firefighters: 5, Firetrucks: 1}, inv.CurrentResources)

	second := f.createAssigned(t, "agency-1", models.ResourceBundle{Helicopters: 1})
	_, err = f.svc.Respond(context.Background(), "agency-1", second.ID, &models.RespondRequestPayload{Status: models.ResponseAccept})
	require.Error(t, err)
	assert.True(t, apperrors.IsInsufficient(err))
	assert.Contains(t, err.Error(), "helicopters")

	inv, err = f.inventories.Get(context.Background(), "agency-1")
	require.NoError(t, err)
	assert.True(t, inv.Locked)
	assert.Equal(t, models.ResourceCount{Firefighters: 5, Firetrucks: 1}, inv.CurrentResources)

	stored, err := f.requests.FindByID(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, stored.Status)
}

func TestGetByIDVisibility(t *testing.T) {
	f := newRequestServiceFixture()
	req := f.createAssigned(t, "agency-1", models.ResourceBundle{Firefighters: 1})

	_, err := f.svc.GetByID(context.Background(), "user-1", RoleUser, req.ID)
	assert.NoError(t, err)

	_, err = f.svc.GetByID(context.Background(), "coord-9", RoleCoordinator, req.ID)
	assert.NoError(t, err)

	_, err = f.svc.GetByID(context.Background(), "agency-1", RoleAgency, req.ID)
	assert.NoError(t, err)

	_, err = f.svc.GetByID(context.Background(), "agency-2", RoleAgency, req.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.svc.GetByID(context.Background(), "user-2", RoleUser, req.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListPagination(t *testing.T) {
	f := newRequestServiceFixture()
	f.seedPrediction("pred-1", 30, 20, 40)
	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(context.Background(), "user-1", &models.CreateRequestPayload{
			PredictionID:      "pred-1",
			RequiredResources: &models.ResourceBundle{Firefighters: 1},
		})
		require.NoError(t, err)
	}

	resp, err := f.svc.List(context.Background(), "coord-1", RoleCoordinator, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Meta.TotalRequests)
	assert.Equal(t, int64(2), resp.Meta.TotalPages)
	assert.True(t, resp.Meta.HasMore)

	other, err := f.svc.List(context.Background(), "user-2", RoleUser, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(0), other.Meta.TotalRequests)
}
