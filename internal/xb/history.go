package xb

import (
	"context"
	"time"
)

// Run operations recorded in History.
const (
	OpTick    = "tick"
	OpRestore = "restore"
	OpSweep   = "sweep"
)

// RunRecord is one row of run history.
type RunRecord struct {
	ID       string
	Op       string
	Kind     string // "full", "incremental" or empty
	Key      string
	Size     int64
	Swept    int
	Started  time.Time
	Finished time.Time
	Error    string // empty on success
}

// Succeeded reports whether the run finished without error.
func (r RunRecord) Succeeded() bool { return r.Error == "" }

// History persists RunRecords.
type History interface {
	Record(ctx context.Context, rec RunRecord) error
	Recent(ctx context.Context, limit int) ([]RunRecord, error)
	Close() error
}

// RunRecordFromTick converts a TickReport into a history row.
func RunRecordFromTick(report *TickReport) RunRecord {
	rec := RunRecord{
		ID:       report.RunID,
		Op:       OpTick,
		Swept:    report.Swept,
		Started:  report.Started,
		Finished: report.Finished,
	}
	if report.Result != nil {
		rec.Kind = report.Result.Kind.String()
		rec.Key = report.Result.Key
		rec.Size = report.Result.Size
	} else if report.State != 0 {
		rec.Kind = kindForState(report.State).String()
	}
	if report.Err != nil {
		rec.Error = report.Err.Error()
	}
	return rec
}

// HistoryObserver records every tick into a History. Write failures are
// logged and otherwise ignored.
type HistoryObserver struct {
	history History
	logger  Logger
}

func NewHistoryObserver(history History, logger Logger) *HistoryObserver {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &HistoryObserver{history: history, logger: logger}
}

func (o *HistoryObserver) TickFinished(report *TickReport) {
	if err := o.history.Record(context.Background(), RunRecordFromTick(report)); err != nil {
		o.logger.Warn("recording run history", "run", report.RunID, "error", err)
	}
}

var _ TickObserver = (*HistoryObserver)(nil)
