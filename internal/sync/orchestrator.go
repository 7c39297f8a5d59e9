package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wc-salesforce-sync/internal/logger"
	"wc-salesforce-sync/internal/mapping"
	"wc-salesforce-sync/internal/metrics"
	"wc-salesforce-sync/internal/salesforce"
	"wc-salesforce-sync/internal/store"
)

const msgNoRelationships = "No defined relationships."

var ErrNoRelationships = errors.New(msgNoRelationships)

// ObjectCreator makes Salesforce records exist.
type ObjectCreator interface {
	CreateOrFind(ctx context.Context, objectType string, values map[string]interface{}, uniqueFields []string) salesforce.Result
}

// OrderSource materializes an order and its line items.
type OrderSource interface {
	LoadOrder(ctx context.Context, orderID int64) (*mapping.OrderRecord, []*mapping.OrderItemRecord, error)
}

// RunStore is the persistence an orchestrator run needs.
type RunStore interface {
	ListActiveRelationships(ctx context.Context) ([]*store.Relationship, error)
	SetOrderSyncStatus(ctx context.Context, orderID int64, status string, messages []string) error
	CreateSyncHistory(ctx context.Context, history *store.SyncHistory) error
	UpdateSyncHistory(ctx context.Context, history *store.SyncHistory) error
}

// Orchestrator runs the sync of one order: relationships are processed
// strictly in sequence and the first failure ends the run.
type Orchestrator struct {
	store    RunStore
	orders   OrderSource
	objects  ObjectCreator
	mapper   *mapping.Mapper
	ordering string
	now      func() time.Time
}

func NewOrchestrator(runs RunStore, orders OrderSource, objects ObjectCreator, mapper *mapping.Mapper, ordering string) *Orchestrator {
	return &Orchestrator{
		store:    runs,
		orders:   orders,
		objects:  objects,
		mapper:   mapper,
		ordering: ordering,
		now:      time.Now,
	}
}

// SyncOrder pushes the order to Salesforce and records the outcome on the
// order. The returned Result is also what gets persisted.
func (o *Orchestrator) SyncOrder(ctx context.Context, orderID int64, trigger Trigger) Result {
	start := o.now()
	res := Result{RunID: uuid.New().String(), OrderID: orderID, Errors: []string{}}
	log := logger.Log.With(zap.Int64("order_id", orderID), zap.String("run_id", res.RunID), zap.String("trigger", string(trigger)))

	history := &store.SyncHistory{
		ID:        res.RunID,
		OrderID:   orderID,
		Trigger:   string(trigger),
		StartedAt: start,
		Status:    "running",
	}
	if err := o.store.CreateSyncHistory(ctx, history); err != nil {
		log.Warn("Failed to record sync run", zap.Error(err))
	}

	ids, err := o.run(ctx, orderID, log)
	res.CreatedIDs = ids
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
	} else {
		res.Success = true
	}

	o.persist(ctx, res, history, log)

	elapsed := o.now().Sub(start)
	metrics.SyncRuns.WithLabelValues(string(trigger), res.Status()).Inc()
	metrics.SyncDuration.WithLabelValues(res.Status()).Observe(elapsed.Seconds())

	if res.Success {
		log.Info("Order synced", zap.Int("objects", ids.Len()), zap.Duration("elapsed", elapsed))
	} else {
		log.Warn("Order sync failed", zap.Strings("errors", res.Errors), zap.Duration("elapsed", elapsed))
	}
	return res
}

func (o *Orchestrator) run(ctx context.Context, orderID int64, log *zap.Logger) (CreatedIDs, error) {
	var ids CreatedIDs

	rels, err := o.store.ListActiveRelationships(ctx)
	if err != nil {
		return ids, fmt.Errorf("failed to load relationships: %w", err)
	}
	if len(rels) == 0 {
		return ids, ErrNoRelationships
	}

	rels, err = order(o.ordering, rels)
	if err != nil {
		return ids, err
	}

	orderRec, items, err := o.orders.LoadOrder(ctx, orderID)
	if err != nil {
		return ids, fmt.Errorf("failed to load order %d: %w", orderID, err)
	}

	for _, rel := range rels {
		kind, ok := mapping.ParseKind(rel.FromObject)
		if !ok {
			log.Warn("Skipping relationship with unknown source object", zap.String("from", rel.FromObject), zap.String("to", rel.ToObject))
			continue
		}

		switch kind {
		case mapping.KindOrder:
			ids, err = o.process(ctx, rel, orderRec, -1, ids, log)
		case mapping.KindOrderItem:
			for _, item := range items {
				if ids, err = o.process(ctx, rel, item, item.Position, ids, log); err != nil {
					break
				}
			}
		}
		if err != nil {
			return ids, err
		}
	}
	return ids, nil
}

// process syncs one record through one relationship. index is the line item
// position, or -1 for the order itself.
func (o *Orchestrator) process(ctx context.Context, rel *store.Relationship, rec mapping.SourceRecord, index int, ids CreatedIDs, log *zap.Logger) (CreatedIDs, error) {
	values := o.mapper.Resolve(rel.FieldMappings, rec)
	values = injectDependencies(values, rel.RequiredObjects, ids, index, log)
	if len(values) == 0 {
		return ids, nil
	}

	result := o.objects.CreateOrFind(ctx, rel.ToObject, values, rel.UniqueFields)
	if !result.Success {
		return ids, fmt.Errorf("%s (%s): %s", result.ErrorCode, rel.ToObject, result.ErrorMessage)
	}

	log.Debug("Salesforce object ready", zap.String("object", rel.ToObject), zap.String("id", result.ID), zap.Int("index", index))
	if index < 0 {
		return ids.WithID(rel.ToObject, result.ID), nil
	}
	return ids.WithItemID(rel.ToObject, index, result.ID), nil
}

// injectDependencies writes the IDs of required objects into their foreign
// key fields. Requirements with no ID yet are left out.
func injectDependencies(values map[string]interface{}, required []store.RequiredObject, ids CreatedIDs, index int, log *zap.Logger) map[string]interface{} {
	for _, req := range required {
		id, ok := ids.Lookup(req.Name, index)
		if !ok || id == "" {
			log.Warn("Required object not created in this run", zap.String("object", req.Name), zap.String("field", req.ID))
			continue
		}
		values[req.ID] = id
	}
	return values
}

func (o *Orchestrator) persist(ctx context.Context, res Result, history *store.SyncHistory, log *zap.Logger) {
	status := store.SyncStatusSuccess
	if !res.Success {
		status = store.SyncStatusFailed
	}
	if err := o.store.SetOrderSyncStatus(ctx, res.OrderID, status, res.Errors); err != nil {
		log.Error("Failed to save order sync status", zap.Error(err))
	}

	created, err := json.Marshal(res.CreatedIDs)
	if err != nil {
		log.Warn("Failed to encode created ids", zap.Error(err))
	}
	history.CompletedAt = sql.NullTime{Time: o.now(), Valid: true}
	history.CreatedIDs = created
	history.Status = status
	if len(res.Errors) > 0 {
		errs, _ := json.Marshal(res.Errors)
		history.ErrorMessage = sql.NullString{String: string(errs), Valid: true}
	}
	if err := o.store.UpdateSyncHistory(ctx, history); err != nil {
		log.Warn("Failed to update sync run", zap.Error(err))
	}
}
