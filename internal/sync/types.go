package sync

import (
	"fmt"
)

// Trigger names what started a sync run.
type Trigger string

const (
	TriggerCheckout Trigger = "checkout"
	TriggerManual   Trigger = "manual"
	TriggerSweep    Trigger = "sweep"
)

// Task is one queued order sync.
type Task struct {
	OrderID int64
	Trigger Trigger
}

func (t Task) String() string {
	return fmt.Sprintf("[%s] order %d", t.Trigger, t.OrderID)
}

// Result is the outcome of one order sync run.
type Result struct {
	RunID      string     `json:"run_id"`
	OrderID    int64      `json:"order_id"`
	Success    bool       `json:"success"`
	CreatedIDs CreatedIDs `json:"created_ids"`
	Errors     []string   `json:"errors"`
}

func (r Result) Status() string {
	if r.Success {
		return "success"
	}
	return "failed"
}
