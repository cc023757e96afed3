package types

import "strconv"

// EventAttribute is a single key-value tag within an event.
type EventAttribute struct {
	Key   string `cramberry:"1"`
	Value string `cramberry:"2"`
	Index bool   `cramberry:"3"` // Whether indexers should pick this up.
}

// Event is a node-emitted event.
type Event struct {
	Kind       string           `cramberry:"1"`
	Attributes []EventAttribute `cramberry:"2"`
}

// Event kinds emitted while applying blocks.
const (
	EventOperation    = "operation"
	EventVirtualOp    = "virtual_operation"
	EventMaintenance  = "maintenance"
	EventCrontabState = "crontab"
	EventProposalExec = "proposal_executed"
)

// OperationEvent describes one applied operation for indexers.
func OperationEvent(opIndex int, t OperationType, payer AccountID, res OperationResult) Event {
	attrs := []EventAttribute{
		{Key: "op_index", Value: strconv.Itoa(opIndex)},
		{Key: "type", Value: t.String(), Index: true},
		{Key: "fee_payer", Value: payer.String(), Index: true},
		{Key: "result", Value: res.Kind.String()},
	}
	if res.RealRunningTime > 0 {
		attrs = append(attrs, EventAttribute{Key: "real_running_time", Value: strconv.FormatUint(res.RealRunningTime, 10)})
	}
	if res.Error != nil {
		attrs = append(attrs, EventAttribute{Key: "error", Value: res.Error.Message})
	}
	return Event{Kind: EventOperation, Attributes: attrs}
}
