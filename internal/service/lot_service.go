package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Bushels/PipeVault-sub014/internal/dto"
	"github.com/Bushels/PipeVault-sub014/internal/model"
	"github.com/Bushels/PipeVault-sub014/internal/repository"
	"github.com/Bushels/PipeVault-sub014/internal/worker"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LotService is the lifecycle engine: the only writer of lot status, location
// assignment, and location occupancy. Every compound mutation (lot + location)
// runs inside one transaction; the location row is locked for the duration of
// the read-check-write sequence and the lot transition itself is guarded by
// its source status, so a retried call fails with ErrInvalidTransition instead
// of double-applying a side effect.
type LotService interface {
	Create(ctx context.Context, auth AuthContext, req dto.CreateLotRequest) (*dto.LotResponse, error)
	ConfirmArrival(ctx context.Context, auth AuthContext, lotID uuid.UUID, req dto.ConfirmArrivalRequest) (*dto.ArrivalResponse, error)
	SchedulePickup(ctx context.Context, auth AuthContext, lotID uuid.UUID, req dto.SchedulePickupRequest) (*dto.PickupResponse, error)
	ConfirmDeparture(ctx context.Context, auth AuthContext, lotID uuid.UUID) (*dto.StatusResponse, error)
	ConfirmDelivery(ctx context.Context, auth AuthContext, lotID uuid.UUID) (*dto.StatusResponse, error)
	Reject(ctx context.Context, auth AuthContext, lotID uuid.UUID, req dto.RejectLotRequest) (*dto.StatusResponse, error)
	CorrectAttributes(ctx context.Context, auth AuthContext, lotID uuid.UUID, req dto.CorrectAttributesRequest) (*dto.LotResponse, error)
	Get(ctx context.Context, auth AuthContext, lotID uuid.UUID) (*dto.LotResponse, error)
	List(ctx context.Context, auth AuthContext, filter dto.LotFilter) (*dto.LotListResponse, error)
	ListEvents(ctx context.Context, auth AuthContext, lotID uuid.UUID, page, limit int) (*dto.LotEventListResponse, error)
}

type lotService struct {
	lots       repository.LotRepository
	locations  repository.LocationRepository
	events     repository.LotEventRepository
	reconciler *Reconciler
	dispatcher *worker.Dispatcher
}

func NewLotService(
	lots repository.LotRepository,
	locations repository.LocationRepository,
	events repository.LotEventRepository,
	reconciler *Reconciler,
	dispatcher *worker.Dispatcher,
) LotService {
	return &lotService{
		lots:       lots,
		locations:  locations,
		events:     events,
		reconciler: reconciler,
		dispatcher: dispatcher,
	}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// ── Create ────────────────────────────────────────────────────────────────────

func (s *lotService) Create(ctx context.Context, auth AuthContext, req dto.CreateLotRequest) (*dto.LotResponse, error) {
	tenantID := auth.TenantID
	if req.TenantID != "" {
		override, err := uuid.Parse(req.TenantID)
		if err != nil {
			return nil, fmt.Errorf("invalid tenant_id: %w", err)
		}
		if !auth.CanAccess(override) {
			return nil, ErrNotFound
		}
		tenantID = override
	}

	lot := &model.InventoryLot{
		ID:              uuid.New(),
		TenantID:        tenantID,
		ReferenceID:     req.ReferenceID,
		ItemType:        req.Attributes.ItemType,
		Grade:           req.Attributes.Grade,
		OuterDiameter:   req.Attributes.OuterDiameter,
		NominalLength:   req.Attributes.NominalLength,
		UnitWeight:      req.Attributes.UnitWeight,
		Quantity:        req.EstimatedQuantity,
		Status:          model.StatusPendingDelivery,
		StatusChangedAt: time.Now().UTC(),
	}
	if req.InboundShipmentID != nil {
		sid, err := uuid.Parse(*req.InboundShipmentID)
		if err != nil {
			return nil, fmt.Errorf("invalid inbound_shipment_id: %w", err)
		}
		lot.InboundShipmentID = &sid
	}

	var event *model.LotEvent
	txErr := runTx(ctx, s.lots.DB(), func(tx *gorm.DB) error {
		if err := s.lots.CreateTx(tx, lot); err != nil {
			return err
		}
		event = s.newEvent(lot, "", model.StatusPendingDelivery)
		return s.events.CreateTx(tx, event)
	})
	if txErr != nil {
		return nil, txErr
	}

	s.publish(ctx, event)
	return lotToResponse(lot), nil
}

// ── ConfirmArrival ────────────────────────────────────────────────────────────
// pending_delivery → in_storage. Reconciles the measured tally against the
// estimate, then reserves the measured quantity at the target location. A
// capacity failure rolls the whole attempt back; a discrepancy flag does not
// block anything.

func (s *lotService) ConfirmArrival(ctx context.Context, auth AuthContext, lotID uuid.UUID, req dto.ConfirmArrivalRequest) (*dto.ArrivalResponse, error) {
	locID, err := uuid.Parse(req.LocationID)
	if err != nil {
		return nil, fmt.Errorf("invalid location_id: %w", err)
	}

	lot, err := s.loadScoped(ctx, auth, lotID)
	if err != nil {
		return nil, err
	}
	if lot.Status != model.StatusPendingDelivery {
		return nil, fmt.Errorf("confirm arrival from %s: %w", lot.Status, ErrInvalidTransition)
	}

	rec, err := s.reconciler.Reconcile(lot.Quantity, req.MeasuredQuantity)
	if err != nil {
		return nil, err
	}

	var event *model.LotEvent
	txErr := runTx(ctx, s.lots.DB(), func(tx *gorm.DB) error {
		loc, err := s.locations.FindByIDTx(tx, locID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("location %s: %w", locID, ErrNotFound)
			}
			return err
		}

		strategy := StrategyFor(loc.Mode, s.locations, s.lots)
		if err := strategy.Reserve(tx, loc, lot.TenantID, req.MeasuredQuantity); err != nil {
			return err
		}

		ok, err := s.lots.TransitionTx(tx, lot.ID, model.StatusPendingDelivery, model.StatusInStorage,
			map[string]interface{}{
				"quantity":    req.MeasuredQuantity,
				"location_id": locID,
			})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("lot %s no longer pending delivery: %w", lot.ID, ErrInvalidTransition)
		}

		event = s.newEvent(lot, model.StatusPendingDelivery, model.StatusInStorage)
		return s.events.CreateTx(tx, event)
	})
	if txErr != nil {
		return nil, txErr
	}

	s.publish(ctx, event)

	lot.Quantity = req.MeasuredQuantity
	lot.Status = model.StatusInStorage
	lot.LocationID = &locID
	lot.StatusChangedAt = event.OccurredAt
	return &dto.ArrivalResponse{
		Lot:     *lotToResponse(lot),
		Flagged: rec.Flagged,
		Delta:   rec.Delta,
	}, nil
}

// ── SchedulePickup ────────────────────────────────────────────────────────────
// Full pickup moves the lot itself to pending_pickup. Partial pickup splits off
// a new lot carrying the pickup quantity and the shipment link while the
// remainder stays in storage. Capacity stays reserved for the original total
// until departure, so the split touches no occupancy counter.

func (s *lotService) SchedulePickup(ctx context.Context, auth AuthContext, lotID uuid.UUID, req dto.SchedulePickupRequest) (*dto.PickupResponse, error) {
	shipID, err := uuid.Parse(req.OutboundShipmentID)
	if err != nil {
		return nil, fmt.Errorf("invalid outbound_shipment_id: %w", err)
	}

	lot, err := s.loadScoped(ctx, auth, lotID)
	if err != nil {
		return nil, err
	}
	if lot.Status != model.StatusInStorage {
		return nil, fmt.Errorf("schedule pickup from %s: %w", lot.Status, ErrInvalidTransition)
	}
	if req.PickupQuantity <= 0 || req.PickupQuantity > lot.Quantity {
		return nil, fmt.Errorf("pickup quantity %d of %d: %w", req.PickupQuantity, lot.Quantity, ErrInvalidQuantity)
	}

	// Full pickup: transition in place.
	if req.PickupQuantity == lot.Quantity {
		var event *model.LotEvent
		txErr := runTx(ctx, s.lots.DB(), func(tx *gorm.DB) error {
			ok, err := s.lots.TransitionTx(tx, lot.ID, model.StatusInStorage, model.StatusPendingPickup,
				map[string]interface{}{"outbound_shipment_id": shipID})
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("lot %s no longer in storage: %w", lot.ID, ErrInvalidTransition)
			}
			event = s.newEvent(lot, model.StatusInStorage, model.StatusPendingPickup)
			return s.events.CreateTx(tx, event)
		})
		if txErr != nil {
			return nil, txErr
		}
		s.publish(ctx, event)
		return &dto.PickupResponse{
			LotID:  lot.ID.String(),
			Status: string(model.StatusPendingPickup),
		}, nil
	}

	// Partial pickup: split.
	extracted := splitLot(lot, req.PickupQuantity)
	extracted.Status = model.StatusPendingPickup
	extracted.OutboundShipmentID = &shipID

	var event *model.LotEvent
	txErr := runTx(ctx, s.lots.DB(), func(tx *gorm.DB) error {
		// Serialize against concurrent pickups on the same lot: the guard
		// requires the remainder to stay strictly positive.
		ok, err := s.lots.DeductQuantityTx(tx, lot.ID, req.PickupQuantity)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("lot %s drained concurrently: %w", lot.ID, ErrInvalidQuantity)
		}
		if err := s.lots.CreateTx(tx, extracted); err != nil {
			return err
		}
		event = s.newEvent(extracted, model.StatusInStorage, model.StatusPendingPickup)
		return s.events.CreateTx(tx, event)
	})
	if txErr != nil {
		return nil, txErr
	}
	s.publish(ctx, event)

	splitID := extracted.ID.String()
	return &dto.PickupResponse{
		LotID:      lot.ID.String(),
		SplitLotID: &splitID,
		Status:     string(model.StatusPendingPickup),
	}, nil
}

// splitLot derives the extracted half of a partial pickup. The new lot shares
// every immutable attribute of the parent — tenant, item attributes, location —
// under a fresh ID, keeping shipment traceability without mutable aliasing.
// Quantity is conserved: parent minus extract stays with the parent row.
// The reference key gets a suffix so (tenant, reference) stays unique.
func splitLot(lot *model.InventoryLot, extract int) *model.InventoryLot {
	id := uuid.New()
	return &model.InventoryLot{
		ID:                id,
		TenantID:          lot.TenantID,
		ReferenceID:       fmt.Sprintf("%s/%s", lot.ReferenceID, id.String()[:8]),
		ItemType:          lot.ItemType,
		Grade:             lot.Grade,
		OuterDiameter:     lot.OuterDiameter,
		NominalLength:     lot.NominalLength,
		UnitWeight:        lot.UnitWeight,
		Quantity:          extract,
		Status:            lot.Status,
		LocationID:        lot.LocationID,
		InboundShipmentID: lot.InboundShipmentID,
		StatusChangedAt:   time.Now().UTC(),
	}
}

// ── ConfirmDeparture ──────────────────────────────────────────────────────────
// pending_pickup → in_transit. Releases the lot's reserved quantity at its
// location and clears the assignment, all in one transaction.

func (s *lotService) ConfirmDeparture(ctx context.Context, auth AuthContext, lotID uuid.UUID) (*dto.StatusResponse, error) {
	lot, err := s.loadScoped(ctx, auth, lotID)
	if err != nil {
		return nil, err
	}
	if lot.Status != model.StatusPendingPickup {
		return nil, fmt.Errorf("confirm departure from %s: %w", lot.Status, ErrInvalidTransition)
	}
	if lot.LocationID == nil {
		return nil, fmt.Errorf("lot %s has no location assignment: %w", lot.ID, ErrInvalidTransition)
	}

	var event *model.LotEvent
	txErr := runTx(ctx, s.lots.DB(), func(tx *gorm.DB) error {
		loc, err := s.locations.FindByIDTx(tx, *lot.LocationID)
		if err != nil {
			return err
		}

		ok, err := s.lots.TransitionTx(tx, lot.ID, model.StatusPendingPickup, model.StatusInTransit,
			map[string]interface{}{"location_id": nil})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("lot %s no longer pending pickup: %w", lot.ID, ErrInvalidTransition)
		}

		strategy := StrategyFor(loc.Mode, s.locations, s.lots)
		if err := strategy.Release(tx, loc, lot.Quantity); err != nil {
			return err
		}

		event = s.newEvent(lot, model.StatusPendingPickup, model.StatusInTransit)
		return s.events.CreateTx(tx, event)
	})
	if txErr != nil {
		return nil, txErr
	}
	s.publish(ctx, event)

	return &dto.StatusResponse{LotID: lot.ID.String(), Status: string(model.StatusInTransit)}, nil
}

// ── ConfirmDelivery ───────────────────────────────────────────────────────────

func (s *lotService) ConfirmDelivery(ctx context.Context, auth AuthContext, lotID uuid.UUID) (*dto.StatusResponse, error) {
	lot, err := s.loadScoped(ctx, auth, lotID)
	if err != nil {
		return nil, err
	}
	if lot.Status != model.StatusInTransit {
		return nil, fmt.Errorf("confirm delivery from %s: %w", lot.Status, ErrInvalidTransition)
	}

	var event *model.LotEvent
	txErr := runTx(ctx, s.lots.DB(), func(tx *gorm.DB) error {
		ok, err := s.lots.TransitionTx(tx, lot.ID, model.StatusInTransit, model.StatusDelivered, nil)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("lot %s no longer in transit: %w", lot.ID, ErrInvalidTransition)
		}
		event = s.newEvent(lot, model.StatusInTransit, model.StatusDelivered)
		return s.events.CreateTx(tx, event)
	})
	if txErr != nil {
		return nil, txErr
	}
	s.publish(ctx, event)

	return &dto.StatusResponse{LotID: lot.ID.String(), Status: string(model.StatusDelivered)}, nil
}

// ── Reject ────────────────────────────────────────────────────────────────────

func (s *lotService) Reject(ctx context.Context, auth AuthContext, lotID uuid.UUID, req dto.RejectLotRequest) (*dto.StatusResponse, error) {
	lot, err := s.loadScoped(ctx, auth, lotID)
	if err != nil {
		return nil, err
	}
	if lot.Status != model.StatusPendingDelivery {
		return nil, fmt.Errorf("reject from %s: %w", lot.Status, ErrInvalidTransition)
	}

	var event *model.LotEvent
	txErr := runTx(ctx, s.lots.DB(), func(tx *gorm.DB) error {
		ok, err := s.lots.TransitionTx(tx, lot.ID, model.StatusPendingDelivery, model.StatusRejected,
			map[string]interface{}{"reject_reason": req.Reason})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("lot %s no longer pending delivery: %w", lot.ID, ErrInvalidTransition)
		}
		event = s.newEvent(lot, model.StatusPendingDelivery, model.StatusRejected)
		return s.events.CreateTx(tx, event)
	})
	if txErr != nil {
		return nil, txErr
	}
	s.publish(ctx, event)

	return &dto.StatusResponse{LotID: lot.ID.String(), Status: string(model.StatusRejected)}, nil
}

// ── CorrectAttributes ─────────────────────────────────────────────────────────
// The explicit escape hatch for fixing a mis-entered item description.
// Permitted only while the goods are still in the yard's custody; never
// touches quantity, status, or capacity.

func (s *lotService) CorrectAttributes(ctx context.Context, auth AuthContext, lotID uuid.UUID, req dto.CorrectAttributesRequest) (*dto.LotResponse, error) {
	lot, err := s.loadScoped(ctx, auth, lotID)
	if err != nil {
		return nil, err
	}
	switch lot.Status {
	case model.StatusPendingDelivery, model.StatusInStorage, model.StatusPendingPickup:
	default:
		return nil, fmt.Errorf("correct attributes in %s: %w", lot.Status, ErrInvalidTransition)
	}

	set := map[string]interface{}{}
	if req.ItemType != nil {
		set["item_type"] = *req.ItemType
		lot.ItemType = *req.ItemType
	}
	if req.Grade != nil {
		set["grade"] = *req.Grade
		lot.Grade = *req.Grade
	}
	if req.OuterDiameter != nil {
		set["outer_diameter"] = *req.OuterDiameter
		lot.OuterDiameter = *req.OuterDiameter
	}
	if req.NominalLength != nil {
		set["nominal_length"] = *req.NominalLength
		lot.NominalLength = *req.NominalLength
	}
	if req.UnitWeight != nil {
		set["unit_weight"] = *req.UnitWeight
		lot.UnitWeight = *req.UnitWeight
	}
	if len(set) == 0 {
		return lotToResponse(lot), nil
	}

	txErr := runTx(ctx, s.lots.DB(), func(tx *gorm.DB) error {
		return s.lots.UpdateAttributesTx(tx, lot.ID, set)
	})
	if txErr != nil {
		return nil, txErr
	}
	return lotToResponse(lot), nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *lotService) Get(ctx context.Context, auth AuthContext, lotID uuid.UUID) (*dto.LotResponse, error) {
	lot, err := s.loadScoped(ctx, auth, lotID)
	if err != nil {
		return nil, err
	}
	return lotToResponse(lot), nil
}

func (s *lotService) List(ctx context.Context, auth AuthContext, filter dto.LotFilter) (*dto.LotListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 50
	}
	if filter.TenantID == uuid.Nil || !auth.CanAccess(filter.TenantID) {
		filter.TenantID = auth.TenantID
	}

	lots, total, err := s.lots.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]dto.LotResponse, 0, len(lots))
	for i := range lots {
		items = append(items, *lotToResponse(&lots[i]))
	}
	return &dto.LotListResponse{
		Data:  items,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

func (s *lotService) ListEvents(ctx context.Context, auth AuthContext, lotID uuid.UUID, page, limit int) (*dto.LotEventListResponse, error) {
	lot, err := s.loadScoped(ctx, auth, lotID)
	if err != nil {
		return nil, err
	}
	events, total, err := s.events.ListByLot(ctx, lot.ID, page, limit)
	if err != nil {
		return nil, err
	}
	items := make([]dto.LotEventResponse, 0, len(events))
	for i := range events {
		items = append(items, eventToResponse(&events[i]))
	}
	return &dto.LotEventListResponse{Data: items, Total: total}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// loadScoped fetches a lot and enforces tenant scoping. A lot belonging to a
// foreign tenant is reported as missing, not forbidden.
func (s *lotService) loadScoped(ctx context.Context, auth AuthContext, lotID uuid.UUID) (*model.InventoryLot, error) {
	lot, err := s.lots.FindByID(ctx, lotID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("lot %s: %w", lotID, ErrNotFound)
		}
		return nil, err
	}
	if !auth.CanAccess(lot.TenantID) {
		return nil, fmt.Errorf("lot %s: %w", lotID, ErrNotFound)
	}
	return lot, nil
}

func (s *lotService) newEvent(lot *model.InventoryLot, from, to model.LotStatus) *model.LotEvent {
	return &model.LotEvent{
		ID:         uuid.New(),
		LotID:      lot.ID,
		TenantID:   lot.TenantID,
		FromStatus: from,
		ToStatus:   to,
		OccurredAt: time.Now().UTC(),
	}
}

// publish hands the committed event to the notification queue. Best-effort:
// the transition already happened, delivery failures are the worker's problem.
func (s *lotService) publish(ctx context.Context, event *model.LotEvent) {
	if s.dispatcher == nil || event == nil {
		return
	}
	_ = s.dispatcher.EnqueueLotEvent(ctx, eventToResponse(event))
}

func eventToResponse(e *model.LotEvent) dto.LotEventResponse {
	return dto.LotEventResponse{
		ID:         e.ID.String(),
		LotID:      e.LotID.String(),
		TenantID:   e.TenantID.String(),
		FromStatus: string(e.FromStatus),
		ToStatus:   string(e.ToStatus),
		OccurredAt: e.OccurredAt.Format(time.RFC3339),
	}
}

func lotToResponse(lot *model.InventoryLot) *dto.LotResponse {
	resp := &dto.LotResponse{
		ID:          lot.ID.String(),
		TenantID:    lot.TenantID.String(),
		ReferenceID: lot.ReferenceID,
		Attributes: dto.ItemAttributes{
			ItemType:      lot.ItemType,
			Grade:         lot.Grade,
			OuterDiameter: lot.OuterDiameter,
			NominalLength: lot.NominalLength,
			UnitWeight:    lot.UnitWeight,
		},
		Quantity:        lot.Quantity,
		Status:          string(lot.Status),
		RejectReason:    lot.RejectReason,
		CreatedAt:       lot.CreatedAt.Format(time.RFC3339),
		StatusChangedAt: lot.StatusChangedAt.Format(time.RFC3339),
	}
	if lot.LocationID != nil {
		v := lot.LocationID.String()
		resp.LocationID = &v
	}
	if lot.InboundShipmentID != nil {
		v := lot.InboundShipmentID.String()
		resp.InboundShipmentID = &v
	}
	if lot.OutboundShipmentID != nil {
		v := lot.OutboundShipmentID.String()
		resp.OutboundShipmentID = &v
	}
	return resp
}
