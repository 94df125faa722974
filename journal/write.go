package journal

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudx-io/auctionledger/core"
)

// Operation is the recorded outcome of one request applied to a ledger.
type Operation struct {
	AuctionID string
	Operation string
	Caller    core.Identity
	Amount    core.Amount
	Success   bool
	Code      core.ErrorCode
	Message   string

	// EventSeq is the ledger's last event sequence number after the operation.
	EventSeq uint64
	At       time.Time
}

// AppendEvents stores events for an auction in one transaction.
// Events already stored under the same (auction, seq) are ignored, so
// replaying a batch is harmless.
func (j *Journal) AppendEvents(ctx context.Context, auctionID string, events []core.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append events: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (auction_id, seq, kind, bidder, amount, deadline, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(auction_id, seq) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("append events: prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		_, err := stmt.ExecContext(ctx,
			auctionID,
			int64(ev.Seq),
			string(ev.Kind),
			string(ev.Bidder),
			formatAmount(ev.Amount),
			formatTime(ev.Deadline),
			formatTime(ev.At),
		)
		if err != nil {
			return fmt.Errorf("append event %d: %w", ev.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append events: commit: %w", err)
	}
	return nil
}

// RecordOperation stores the outcome of one operation.
func (j *Journal) RecordOperation(ctx context.Context, op Operation) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO operations
		(auction_id, operation, caller, amount, success, code, message, event_seq, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		op.AuctionID,
		op.Operation,
		string(op.Caller),
		formatAmount(op.Amount),
		op.Success,
		string(op.Code),
		op.Message,
		int64(op.EventSeq),
		formatTime(op.At),
	)
	if err != nil {
		return fmt.Errorf("record operation: %w", err)
	}
	return nil
}

func formatAmount(a core.Amount) string {
	return strconv.FormatUint(uint64(a), 10)
}

func parseAmount(s string) (core.Amount, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return core.Amount(v), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
