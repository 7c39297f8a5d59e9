package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-mysql-org/go-mysql/canal"
	"go.uber.org/zap"

	"wc-salesforce-sync/internal/config"
	"wc-salesforce-sync/internal/logger"
)

const orderPostType = "shop_order"

// CheckoutListener follows the binlog of the posts table and dispatches
// orders as soon as they move into one of the configured statuses.
type CheckoutListener struct {
	cfg        config.DatabaseConnection
	canal      *canal.Canal
	dispatcher Dispatcher
	table      string
	statuses   map[string]bool
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewCheckoutListener(db config.DatabaseConnection, trigger config.TriggerConfig, dispatcher Dispatcher) (*CheckoutListener, error) {
	table := db.TablePrefix + "posts"

	c, err := canal.NewCanal(&canal.Config{
		Addr:     fmt.Sprintf("%s:%d", db.Host, db.Port),
		User:     trigger.ReplicationUser,
		Password: trigger.ReplicationPassword,
		Flavor:   "mysql",
		ServerID: trigger.ServerID,
		Dump: canal.DumpConfig{
			ExecutionPath: "", // binlog only, no initial dump
		},
		IncludeTableRegex: []string{fmt.Sprintf("^%s\\.%s$", db.Database, table)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create canal: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	l := &CheckoutListener{
		cfg:        db,
		canal:      c,
		dispatcher: dispatcher,
		table:      table,
		statuses:   statusSet(trigger.OrderStatuses),
		ctx:        ctx,
		cancel:     cancel,
	}

	c.SetEventHandler(&eventHandler{listener: l})

	return l, nil
}

func statusSet(statuses []string) map[string]bool {
	set := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return set
}

// Start follows the binlog from the current master position; orders placed
// while the listener was down are left to the sweep scheduler.
func (l *CheckoutListener) Start() error {
	pos, err := l.canal.GetMasterPos()
	if err != nil {
		return fmt.Errorf("failed to read master position: %w", err)
	}

	logger.Log.Info("Starting checkout listener",
		zap.String("host", l.cfg.Host),
		zap.String("table", l.table),
		zap.String("binlog", pos.Name),
		zap.Uint32("pos", pos.Pos),
	)

	go func() {
		if err := l.canal.RunFrom(pos); err != nil && l.ctx.Err() == nil {
			logger.Log.Error("Canal run error", zap.Error(err))
		}
	}()

	return nil
}

func (l *CheckoutListener) Stop() {
	l.cancel()
	l.canal.Close()
	logger.Log.Info("Stopped checkout listener")
}

type eventHandler struct {
	canal.DummyEventHandler
	listener *CheckoutListener
}

func (h *eventHandler) OnRow(e *canal.RowsEvent) error {
	if e.Table.Name != h.listener.table {
		return nil
	}

	cols := postColumns{
		id:     e.Table.FindColumn("ID"),
		typ:    e.Table.FindColumn("post_type"),
		status: e.Table.FindColumn("post_status"),
	}
	if cols.id < 0 || cols.typ < 0 || cols.status < 0 {
		logger.Log.Warn("Posts table is missing expected columns", zap.String("table", e.Table.Name))
		return nil
	}

	for _, orderID := range checkoutOrders(e.Action, e.Rows, cols, h.listener.statuses) {
		err := h.listener.dispatcher.Dispatch(orderID, TriggerCheckout)
		if err != nil && !errors.Is(err, ErrAlreadyQueued) {
			logger.Log.Warn("Failed to dispatch checkout order", zap.Int64("order_id", orderID), zap.Error(err))
		}
	}
	return nil
}

func (h *eventHandler) String() string {
	return "CheckoutEventHandler"
}

type postColumns struct {
	id, typ, status int
}

// checkoutOrders returns the orders that entered one of statuses. Update
// events carry before/after row pairs; an order is only reported when its
// status changes into the set.
func checkoutOrders(action string, rows [][]interface{}, cols postColumns, statuses map[string]bool) []int64 {
	var ids []int64
	switch action {
	case canal.InsertAction:
		for _, row := range rows {
			if id, ok := orderRow(row, cols, statuses); ok {
				ids = append(ids, id)
			}
		}
	case canal.UpdateAction:
		for i := 0; i+1 < len(rows); i += 2 {
			before, after := rows[i], rows[i+1]
			id, ok := orderRow(after, cols, statuses)
			if !ok {
				continue
			}
			if _, was := orderRow(before, cols, statuses); was {
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids
}

func orderRow(row []interface{}, cols postColumns, statuses map[string]bool) (int64, bool) {
	if len(row) <= cols.id || len(row) <= cols.typ || len(row) <= cols.status {
		return 0, false
	}
	if columnString(row[cols.typ]) != orderPostType || !statuses[columnString(row[cols.status])] {
		return 0, false
	}
	id, err := strconv.ParseInt(columnString(row[cols.id]), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func columnString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
