package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Bushels/PipeVault-sub014/internal/dto"
	"github.com/Bushels/PipeVault-sub014/internal/model"
	"github.com/Bushels/PipeVault-sub014/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Compile-time conformance checks for the stubs.
var (
	_ repository.LotRepository      = (*stubLotRepo)(nil)
	_ repository.LocationRepository = (*stubLocationRepo)(nil)
	_ repository.LotEventRepository = (*stubEventRepo)(nil)
)

// ── In-memory LotRepository stub ─────────────────────────────────────────────

type stubLotRepo struct {
	mu   sync.Mutex
	lots map[uuid.UUID]*model.InventoryLot
}

func newStubLotRepo() *stubLotRepo {
	return &stubLotRepo{lots: make(map[uuid.UUID]*model.InventoryLot)}
}

func (r *stubLotRepo) Create(_ context.Context, lot *model.InventoryLot) error {
	return r.CreateTx(nil, lot)
}

func (r *stubLotRepo) CreateTx(_ *gorm.DB, lot *model.InventoryLot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lot.ID == uuid.Nil {
		lot.ID = uuid.New()
	}
	cp := *lot
	r.lots[lot.ID] = &cp
	return nil
}

func (r *stubLotRepo) FindByID(_ context.Context, id uuid.UUID) (*model.InventoryLot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lot, ok := r.lots[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *lot
	return &cp, nil
}

func (r *stubLotRepo) FindByIDTx(_ *gorm.DB, id uuid.UUID) (*model.InventoryLot, error) {
	return r.FindByID(context.Background(), id)
}

func (r *stubLotRepo) List(_ context.Context, filter dto.LotFilter) ([]model.InventoryLot, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []model.InventoryLot
	for _, lot := range r.lots {
		if lot.TenantID != filter.TenantID {
			continue
		}
		if filter.Status != "" && string(lot.Status) != filter.Status {
			continue
		}
		result = append(result, *lot)
	}
	return result, int64(len(result)), nil
}

func (r *stubLotRepo) TransitionTx(_ *gorm.DB, id uuid.UUID, from, to model.LotStatus, set map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lot, ok := r.lots[id]
	if !ok || lot.Status != from {
		return false, nil
	}
	lot.Status = to
	for k, v := range set {
		switch k {
		case "quantity":
			lot.Quantity = v.(int)
		case "location_id":
			if v == nil {
				lot.LocationID = nil
			} else {
				locID := v.(uuid.UUID)
				lot.LocationID = &locID
			}
		case "outbound_shipment_id":
			sid := v.(uuid.UUID)
			lot.OutboundShipmentID = &sid
		case "reject_reason":
			reason := v.(string)
			lot.RejectReason = &reason
		}
	}
	return true, nil
}

func (r *stubLotRepo) DeductQuantityTx(_ *gorm.DB, id uuid.UUID, units int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lot, ok := r.lots[id]
	if !ok || lot.Status != model.StatusInStorage || lot.Quantity <= units {
		return false, nil
	}
	lot.Quantity -= units
	return true, nil
}

func (r *stubLotRepo) UpdateAttributesTx(_ *gorm.DB, id uuid.UUID, set map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lot, ok := r.lots[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range set {
		switch k {
		case "item_type":
			lot.ItemType = v.(string)
		case "grade":
			lot.Grade = v.(string)
		case "outer_diameter":
			lot.OuterDiameter = v.(decimal.Decimal)
		case "nominal_length":
			lot.NominalLength = v.(decimal.Decimal)
		case "unit_weight":
			lot.UnitWeight = v.(decimal.Decimal)
		}
	}
	return nil
}

func (r *stubLotRepo) CountActiveAtLocationTx(_ *gorm.DB, locationID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, lot := range r.lots {
		if lot.LocationID == nil || *lot.LocationID != locationID {
			continue
		}
		if lot.Status == model.StatusInStorage || lot.Status == model.StatusPendingPickup {
			n++
		}
	}
	return n, nil
}

func (r *stubLotRepo) DB() *gorm.DB { return nil }

// ── In-memory LocationRepository stub ────────────────────────────────────────

type stubLocationRepo struct {
	mu   sync.Mutex
	locs map[uuid.UUID]*model.StorageLocation
}

func newStubLocationRepo() *stubLocationRepo {
	return &stubLocationRepo{locs: make(map[uuid.UUID]*model.StorageLocation)}
}

func (r *stubLocationRepo) add(loc *model.StorageLocation) *model.StorageLocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	if loc.ID == uuid.Nil {
		loc.ID = uuid.New()
	}
	r.locs[loc.ID] = loc
	return loc
}

func (r *stubLocationRepo) Create(_ context.Context, loc *model.StorageLocation) error {
	r.add(loc)
	return nil
}

func (r *stubLocationRepo) FindByID(_ context.Context, id uuid.UUID) (*model.StorageLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.locs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *loc
	return &cp, nil
}

func (r *stubLocationRepo) FindByIDTx(_ *gorm.DB, id uuid.UUID) (*model.StorageLocation, error) {
	return r.FindByID(context.Background(), id)
}

func (r *stubLocationRepo) List(_ context.Context, _ dto.LocationFilter) ([]model.StorageLocation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []model.StorageLocation
	for _, loc := range r.locs {
		result = append(result, *loc)
	}
	return result, int64(len(result)), nil
}

func (r *stubLocationRepo) ReserveLinearTx(_ *gorm.DB, id uuid.UUID, units int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.locs[id]
	if !ok || loc.Occupied+units > loc.Capacity {
		return false, nil
	}
	loc.Occupied += units
	return true, nil
}

func (r *stubLocationRepo) ReserveSlotTx(_ *gorm.DB, id uuid.UUID, tenantID uuid.UUID, units int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.locs[id]
	if !ok || loc.Occupied != 0 {
		return false, nil
	}
	loc.Occupied = units
	loc.OccupantTenantID = &tenantID
	return true, nil
}

func (r *stubLocationRepo) ReleaseLinearTx(_ *gorm.DB, id uuid.UUID, units int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.locs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	loc.Occupied -= units
	if loc.Occupied < 0 {
		loc.Occupied = 0
	}
	return nil
}

func (r *stubLocationRepo) ReleaseSlotTx(_ *gorm.DB, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.locs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	loc.Occupied = 0
	loc.OccupantTenantID = nil
	return nil
}

func (r *stubLocationRepo) DB() *gorm.DB { return nil }

// ── In-memory LotEventRepository stub ────────────────────────────────────────

type stubEventRepo struct {
	mu     sync.Mutex
	events []model.LotEvent
}

func (r *stubEventRepo) CreateTx(_ *gorm.DB, e *model.LotEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
	return nil
}

func (r *stubEventRepo) ListByLot(_ context.Context, lotID uuid.UUID, _, _ int) ([]model.LotEvent, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []model.LotEvent
	for _, e := range r.events {
		if e.LotID == lotID {
			result = append(result, e)
		}
	}
	return result, int64(len(result)), nil
}

func (r *stubEventRepo) forLot(lotID uuid.UUID) []model.LotEvent {
	events, _, _ := r.ListByLot(context.Background(), lotID, 1, 100)
	return events
}

// ── Fixtures ─────────────────────────────────────────────────────────────────

type lotFixture struct {
	svc       LotService
	lots      *stubLotRepo
	locations *stubLocationRepo
	events    *stubEventRepo
}

func newLotFixture() *lotFixture {
	lots := newStubLotRepo()
	locations := newStubLocationRepo()
	events := &stubEventRepo{}
	return &lotFixture{
		svc:       NewLotService(lots, locations, events, NewReconciler(0.05), nil),
		lots:      lots,
		locations: locations,
		events:    events,
	}
}

func attrs() dto.ItemAttributes {
	return dto.ItemAttributes{
		ItemType:      "casing",
		Grade:         "L80",
		OuterDiameter: decimal.RequireFromString("9.625"),
		NominalLength: decimal.RequireFromString("12.2"),
		UnitWeight:    decimal.RequireFromString("640.5"),
	}
}

func (f *lotFixture) createLot(t *testing.T, auth AuthContext, reference string, estimated int) uuid.UUID {
	t.Helper()
	resp, err := f.svc.Create(context.Background(), auth, dto.CreateLotRequest{
		ReferenceID:       reference,
		Attributes:        attrs(),
		EstimatedQuantity: estimated,
	})
	require.NoError(t, err)
	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)
	return id
}

func (f *lotFixture) linearLocation(capacity int) *model.StorageLocation {
	return f.locations.add(&model.StorageLocation{
		AreaID:   "NORTH-A",
		Name:     fmt.Sprintf("RACK-%s", uuid.NewString()[:8]),
		Mode:     model.ModeLinearCapacity,
		Capacity: capacity,
	})
}

func (f *lotFixture) slotLocation() *model.StorageLocation {
	return f.locations.add(&model.StorageLocation{
		AreaID: "SOUTH",
		Name:   fmt.Sprintf("BAY-%s", uuid.NewString()[:8]),
		Mode:   model.ModeSlot,
	})
}

func operator(tenant uuid.UUID) AuthContext {
	return AuthContext{TenantID: tenant, Role: RoleOperator}
}

// ── Lifecycle ────────────────────────────────────────────────────────────────

func TestLotLifecycle_FullCycle(t *testing.T) {
	f := newLotFixture()
	ctx := context.Background()
	tenant := uuid.New()
	auth := operator(tenant)
	loc := f.linearLocation(100)

	lotID := f.createLot(t, auth, "PO-1001", 100)

	arrival, err := f.svc.ConfirmArrival(ctx, auth, lotID, dto.ConfirmArrivalRequest{
		LocationID:       loc.ID.String(),
		MeasuredQuantity: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, string(model.StatusInStorage), arrival.Lot.Status)
	assert.False(t, arrival.Flagged)
	assert.Equal(t, 100, loc.Occupied)

	shipID := uuid.NewString()
	pickup, err := f.svc.SchedulePickup(ctx, auth, lotID, dto.SchedulePickupRequest{
		PickupQuantity:     100,
		OutboundShipmentID: shipID,
	})
	require.NoError(t, err)
	assert.Nil(t, pickup.SplitLotID)
	assert.Equal(t, string(model.StatusPendingPickup), pickup.Status)
	// Capacity stays reserved until the truck leaves
	assert.Equal(t, 100, loc.Occupied)

	dep, err := f.svc.ConfirmDeparture(ctx, auth, lotID)
	require.NoError(t, err)
	assert.Equal(t, string(model.StatusInTransit), dep.Status)
	assert.Equal(t, 0, loc.Occupied)

	del, err := f.svc.ConfirmDelivery(ctx, auth, lotID)
	require.NoError(t, err)
	assert.Equal(t, string(model.StatusDelivered), del.Status)

	// One event per transition, creation included
	assert.Len(t, f.events.forLot(lotID), 5)
}

func TestLotLifecycle_InvalidTransitions(t *testing.T) {
	f := newLotFixture()
	ctx := context.Background()
	tenant := uuid.New()
	auth := operator(tenant)
	loc := f.linearLocation(100)

	lotID := f.createLot(t, auth, "PO-1002", 50)

	// Out-of-order operations are all rejected from pending_delivery
	_, err := f.svc.SchedulePickup(ctx, auth, lotID, dto.SchedulePickupRequest{
		PickupQuantity: 50, OutboundShipmentID: uuid.NewString(),
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.svc.ConfirmDeparture(ctx, auth, lotID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.svc.ConfirmDelivery(ctx, auth, lotID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	req := dto.ConfirmArrivalRequest{LocationID: loc.ID.String(), MeasuredQuantity: 50}
	_, err = f.svc.ConfirmArrival(ctx, auth, lotID, req)
	require.NoError(t, err)

	// Replayed arrival fails and books nothing twice
	_, err = f.svc.ConfirmArrival(ctx, auth, lotID, req)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 50, loc.Occupied)

	// Reject is only reachable from pending_delivery
	_, err = f.svc.Reject(ctx, auth, lotID, dto.RejectLotRequest{Reason: "too late"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestLotLifecycle_Reject(t *testing.T) {
	f := newLotFixture()
	ctx := context.Background()
	tenant := uuid.New()
	auth := operator(tenant)

	lotID := f.createLot(t, auth, "PO-1003", 50)
	resp, err := f.svc.Reject(ctx, auth, lotID, dto.RejectLotRequest{Reason: "wrong grade on manifest"})
	require.NoError(t, err)
	assert.Equal(t, string(model.StatusRejected), resp.Status)

	lot, err := f.svc.Get(ctx, auth, lotID)
	require.NoError(t, err)
	require.NotNil(t, lot.RejectReason)
	assert.Equal(t, "wrong grade on manifest", *lot.RejectReason)

	// Terminal: nothing moves a rejected lot
	_, err = f.svc.ConfirmArrival(ctx, auth, lotID, dto.ConfirmArrivalRequest{
		LocationID: uuid.NewString(), MeasuredQuantity: 50,
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

// ── Reconciliation on arrival ────────────────────────────────────────────────

func TestConfirmArrival_DiscrepancyFlagged(t *testing.T) {
	f := newLotFixture()
	ctx := context.Background()
	auth := operator(uuid.New())
	loc := f.linearLocation(200)

	lotID := f.createLot(t, auth, "PO-2001", 100)
	arrival, err := f.svc.ConfirmArrival(ctx, auth, lotID, dto.ConfirmArrivalRequest{
		LocationID:       loc.ID.String(),
		MeasuredQuantity: 80,
	})
	require.NoError(t, err)
	assert.True(t, arrival.Flagged)
	assert.Equal(t, -20, arrival.Delta)
	// Measured count wins: it is what physically occupies the rack
	assert.Equal(t, 80, arrival.Lot.Quantity)
	assert.Equal(t, 80, loc.Occupied)
}

func TestConfirmArrival_NonPositiveMeasurement(t *testing.T) {
	f := newLotFixture()
	ctx := context.Background()
	auth := operator(uuid.New())
	loc := f.linearLocation(100)

	lotID := f.createLot(t, auth, "PO-2002", 100)
	for _, measured := range []int{0, -5} {
		_, err := f.svc.ConfirmArrival(ctx, auth, lotID, dto.ConfirmArrivalRequest{
			LocationID:       loc.ID.String(),
			MeasuredQuantity: measured,
		})
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}
	// The failed attempts left the lot untouched
	lot, err := f.svc.Get(ctx, auth, lotID)
	require.NoError(t, err)
	assert.Equal(t, string(model.StatusPendingDelivery), lot.Status)
	assert.Equal(t, 0, loc.Occupied)
}

// ── Capacity ─────────────────────────────────────────────────────────────────

func TestConfirmArrival_CapacityExceeded(t *testing.T) {
	f := newLotFixture()
	ctx := context.Background()
	auth := operator(uuid.New())
	loc := f.linearLocation(100)

	first := f.createLot(t, auth, "PO-3001", 70)
	_, err := f.svc.ConfirmArrival(ctx, auth, first, dto.ConfirmArrivalRequest{
		LocationID: loc.ID.String(), MeasuredQuantity: 70,
	})
	require.NoError(t, err)

	second := f.createLot(t, auth, "PO-3002", 40)
	_, err = f.svc.ConfirmArrival(ctx, auth, second, dto.ConfirmArrivalRequest{
		LocationID: loc.ID.String(), MeasuredQuantity: 40,
	})
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// Rolled back whole: the lot is still awaiting arrival
	lot, err := f.svc.Get(ctx, auth, second)
	require.NoError(t, err)
	assert.Equal(t, string(model.StatusPendingDelivery), lot.Status)
	assert.Nil(t, lot.LocationID)
	assert.Equal(t, 70, loc.Occupied)
}

func TestConfirmArrival_ConcurrentReservations(t *testing.T) {
	f := newLotFixture()
	ctx := context.Background()
	auth := operator(uuid.New())
	loc := f.linearLocation(100)

	// 8 lots of 30 joints racing for 100 joints of capacity: exactly 3 fit.
	const contenders = 8
	lotIDs := make([]uuid.UUID, contenders)
	for i := range lotIDs {
		lotIDs[i] = f.createLot(t, auth, fmt.Sprintf("PO-RACE-%d", i), 30)
	}

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i, id := range lotIDs {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.svc.ConfirmArrival(ctx, auth, id, dto.ConfirmArrivalRequest{
				LocationID: loc.ID.String(), MeasuredQuantity: 30,
			})
		}(i, id)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			require.ErrorIs(t, err, ErrCapacityExceeded)
			lost++
		}
	}
	assert.Equal(t, 3, won)
	assert.Equal(t, contenders-3, lost)
	assert.Equal(t, 90, loc.Occupied)
}

// ── Slot mode ────────────────────────────────────────────────────────────────

func TestConfirmArrival_SlotContention(t *testing.T) {
	f := newLotFixture()
	ctx := context.Background()
	tenantA := uuid.New()
	tenantB := uuid.New()
	bay := f.slotLocation()

	lotA := f.createLot(t, operator(tenantA), "PO-A-1", 50)
	_, err := f.svc.ConfirmArrival(ctx, operator(tenantA), lotA, dto.ConfirmArrivalRequest{
		LocationID: bay.ID.String(), MeasuredQuantity: 50,
	})
	require.NoError(t, err)
	require.NotNil(t, bay.OccupantTenantID)
	assert.Equal(t, tenantA, *bay.OccupantTenantID)

	// Another tenant cannot enter a claimed bay regardless of size
	lotB := f.createLot(t, operator(tenantB), "PO-B-1", 1)
	_, err = f.svc.ConfirmArrival(ctx, operator(tenantB), lotB, dto.ConfirmArrivalRequest{
		LocationID: bay.ID.String(), MeasuredQuantity: 1,
	})
	assert.ErrorIs(t, err, ErrSlotOccupied)

	// Departure frees the bay wholesale
	_, err = f.svc.SchedulePickup(ctx, operator(tenantA), lotA, dto.SchedulePickupRequest{
		PickupQuantity: 50, OutboundShipmentID: uuid.NewString(),
	})
	require.NoError(t, err)
	_, err = f.svc.ConfirmDeparture(ctx, operator(tenantA), lotA)
	require.NoError(t, err)
	assert.Equal(t, 0, bay.Occupied)
	assert.Nil(t, bay.OccupantTenantID)

	_, err = f.svc.ConfirmArrival(ctx, operator(tenantB), lotB, dto.ConfirmArrivalRequest{
		LocationID: bay.ID.String(), MeasuredQuantity: 1,
	})
	assert.NoError(t, err)
}

func TestSlotSplitDeparture_KeepsBayClaimed(t *testing.T) {
	f := newLotFixture()
	ctx := context.Background()
	tenantA := uuid.New()
	tenantB := uuid.New()
	bay := f.slotLocation()

	lotA := f.createLot(t, operator(tenantA), "PO-A-2", 50)
	_, err := f.svc.ConfirmArrival(ctx, operator(tenantA), lotA, dto.ConfirmArrivalRequest{
		LocationID: bay.ID.String(), MeasuredQuantity: 50,
	})
	require.NoError(t, err)

	// Partial pickup splits off 20; the 30-joint remainder stays in the bay
	pickup, err := f.svc.SchedulePickup(ctx, operator(tenantA), lotA, dto.SchedulePickupRequest{
		PickupQuantity: 20, OutboundShipmentID: uuid.NewString(),
	})
	require.NoError(t, err)
	require.NotNil(t, pickup.SplitLotID)
	splitID, err := uuid.Parse(*pickup.SplitLotID)
	require.NoError(t, err)

	// The split's departure does not vacate the slot: the remainder still
	// physically holds it, so the tenant claim survives and only the displayed
	// joint count drops
	_, err = f.svc.ConfirmDeparture(ctx, operator(tenantA), splitID)
	require.NoError(t, err)
	assert.Equal(t, 30, bay.Occupied)
	require.NotNil(t, bay.OccupantTenantID)
	assert.Equal(t, tenantA, *bay.OccupantTenantID)

	// Another tenant still cannot enter the bay
	lotB := f.createLot(t, operator(tenantB), "PO-B-2", 10)
	_, err = f.svc.ConfirmArrival(ctx, operator(tenantB), lotB, dto.ConfirmArrivalRequest{
		LocationID: bay.ID.String(), MeasuredQuantity: 10,
	})
	assert.ErrorIs(t, err, ErrSlotOccupied)

	// Departing the remainder is what frees the bay
	_, err = f.svc.SchedulePickup(ctx, operator(tenantA), lotA, dto.SchedulePickupRequest{
		PickupQuantity: 30, OutboundShipmentID: uuid.NewString(),
	})
	require.NoError(t, err)
	_, err = f.svc.ConfirmDeparture(ctx, operator(tenantA), lotA)
	require.NoError(t, err)
	assert.Equal(t, 0, bay.Occupied)
	assert.Nil(t, bay.OccupantTenantID)

	_, err = f.svc.ConfirmArrival(ctx, operator(tenantB), lotB, dto.ConfirmArrivalRequest{
		LocationID: bay.ID.String(), MeasuredQuantity: 10,
	})
	assert.NoError(t, err)
}

// ── Partial pickup / split ───────────────────────────────────────────────────

func TestSchedulePickup_PartialSplit(t *testing.T) {
	f := newLotFixture()
	ctx := context.Background()
	auth := operator(uuid.New())
	loc := f.linearLocation(200)

	lotID := f.createLot(t, auth, "PO-4001", 100)
	_, err := f.svc.ConfirmArrival(ctx, auth, lotID, dto.ConfirmArrivalRequest{
		LocationID: loc.ID.String(), MeasuredQuantity: 100,
	})
	require.NoError(t, err)

	pickup, err := f.svc.SchedulePickup(ctx, auth, lotID, dto.SchedulePickupRequest{
		PickupQuantity:     40,
		OutboundShipmentID: uuid.NewString(),
	})
	require.NoError(t, err)
	require.NotNil(t, pickup.SplitLotID)
	splitID, err := uuid.Parse(*pickup.SplitLotID)
	require.NoError(t, err)

	parent, err := f.svc.Get(ctx, auth, lotID)
	require.NoError(t, err)
	split, err := f.svc.Get(ctx, auth, splitID)
	require.NoError(t, err)

	// Quantity conserved across the split
	assert.Equal(t, 60, parent.Quantity)
	assert.Equal(t, 40, split.Quantity)
	assert.Equal(t, string(model.StatusInStorage), parent.Status)
	assert.Equal(t, string(model.StatusPendingPickup), split.Status)

	// The split carries the parent's attributes and location, under a
	// derived reference so (tenant, reference) stays unique
	assert.Equal(t, parent.Attributes, split.Attributes)
	require.NotNil(t, split.LocationID)
	assert.Equal(t, *parent.LocationID, *split.LocationID)
	assert.Contains(t, split.ReferenceID, parent.ReferenceID+"/")

	// Capacity stays booked for the full 100 until the split departs
	assert.Equal(t, 100, loc.Occupied)
	_, err = f.svc.ConfirmDeparture(ctx, auth, splitID)
	require.NoError(t, err)
	assert.Equal(t, 60, loc.Occupied)
}

func TestSchedulePickup_QuantityBounds(t *testing.T) {
	f := newLotFixture()
	ctx := context.Background()
	auth := operator(uuid.New())
	loc := f.linearLocation(100)

	lotID := f.createLot(t, auth, "PO-4002", 50)
	_, err := f.svc.ConfirmArrival(ctx, auth, lotID, dto.ConfirmArrivalRequest{
		LocationID: loc.ID.String(), MeasuredQuantity: 50,
	})
	require.NoError(t, err)

	for _, qty := range []int{0, -1, 51} {
		_, err := f.svc.SchedulePickup(ctx, auth, lotID, dto.SchedulePickupRequest{
			PickupQuantity: qty, OutboundShipmentID: uuid.NewString(),
		})
		assert.ErrorIs(t, err, ErrInvalidQuantity, "pickup_quantity=%d", qty)
	}
}

// ── Tenant scoping ───────────────────────────────────────────────────────────

func TestTenantScoping(t *testing.T) {
	f := newLotFixture()
	ctx := context.Background()
	owner := operator(uuid.New())
	stranger := operator(uuid.New())
	admin := AuthContext{TenantID: uuid.New(), Role: RoleAdmin}

	lotID := f.createLot(t, owner, "PO-5001", 10)

	// Foreign tenants see nothing — not even that the lot exists
	_, err := f.svc.Get(ctx, stranger, lotID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Reject(ctx, stranger, lotID, dto.RejectLotRequest{Reason: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)

	// Admins cross tenant boundaries
	lot, err := f.svc.Get(ctx, admin, lotID)
	require.NoError(t, err)
	assert.Equal(t, owner.TenantID.String(), lot.TenantID)
}

func TestCreate_AdminOnBehalfOfTenant(t *testing.T) {
	f := newLotFixture()
	ctx := context.Background()
	tenant := uuid.New()
	admin := AuthContext{TenantID: uuid.New(), Role: RoleAdmin}

	resp, err := f.svc.Create(ctx, admin, dto.CreateLotRequest{
		TenantID:          tenant.String(),
		ReferenceID:       "PO-5002",
		Attributes:        attrs(),
		EstimatedQuantity: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, tenant.String(), resp.TenantID)

	// A non-admin cannot plant lots in someone else's tenant
	_, err = f.svc.Create(ctx, operator(uuid.New()), dto.CreateLotRequest{
		TenantID:          tenant.String(),
		ReferenceID:       "PO-5003",
		Attributes:        attrs(),
		EstimatedQuantity: 5,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

// ── Attribute correction ─────────────────────────────────────────────────────

func TestCorrectAttributes(t *testing.T) {
	f := newLotFixture()
	ctx := context.Background()
	auth := AuthContext{TenantID: uuid.New(), Role: RoleSupervisor}

	lotID := f.createLot(t, auth, "PO-6001", 10)

	grade := "P110"
	od := decimal.RequireFromString("7.000")
	resp, err := f.svc.CorrectAttributes(ctx, auth, lotID, dto.CorrectAttributesRequest{
		Grade:         &grade,
		OuterDiameter: &od,
	})
	require.NoError(t, err)
	assert.Equal(t, "P110", resp.Attributes.Grade)
	assert.True(t, od.Equal(resp.Attributes.OuterDiameter))
	// Untouched fields survive
	assert.Equal(t, "casing", resp.Attributes.ItemType)

	// Not permitted once the lot has left the yard's custody
	_, err = f.svc.Reject(ctx, auth, lotID, dto.RejectLotRequest{Reason: "cancelled"})
	require.NoError(t, err)
	_, err = f.svc.CorrectAttributes(ctx, auth, lotID, dto.CorrectAttributesRequest{Grade: &grade})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

// ── Events ───────────────────────────────────────────────────────────────────

func TestListEvents(t *testing.T) {
	f := newLotFixture()
	ctx := context.Background()
	auth := operator(uuid.New())
	loc := f.linearLocation(100)

	lotID := f.createLot(t, auth, "PO-7001", 20)
	_, err := f.svc.ConfirmArrival(ctx, auth, lotID, dto.ConfirmArrivalRequest{
		LocationID: loc.ID.String(), MeasuredQuantity: 20,
	})
	require.NoError(t, err)

	resp, err := f.svc.ListEvents(ctx, auth, lotID, 1, 50)
	require.NoError(t, err)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, string(model.StatusPendingDelivery), resp.Data[0].ToStatus)
	assert.Equal(t, string(model.StatusInStorage), resp.Data[1].ToStatus)
	assert.Equal(t, string(model.StatusPendingDelivery), resp.Data[1].FromStatus)

	// Scoped like everything else
	_, err = f.svc.ListEvents(ctx, operator(uuid.New()), lotID, 1, 50)
	assert.ErrorIs(t, err, ErrNotFound)
}

// sanity: sentinel wrapping stays errors.Is-able through fmt.Errorf chains
func TestErrorWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", ErrInvalidTransition))
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}
