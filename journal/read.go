package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cloudx-io/auctionledger/core"
)

// Events returns the stored events of an auction ordered by sequence number.
// Returns an empty slice (not nil) if none are stored.
func (j *Journal) Events(ctx context.Context, auctionID string) ([]core.Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, kind, bidder, amount, deadline, at
		FROM events
		WHERE auction_id = ?
		ORDER BY seq ASC
	`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []core.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LastSeq returns the highest stored event sequence number of an auction, or 0.
func (j *Journal) LastSeq(ctx context.Context, auctionID string) (uint64, error) {
	var seq sql.NullInt64
	err := j.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM events WHERE auction_id = ?
	`, auctionID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}

// Operations returns the recorded operations of an auction in insertion order.
func (j *Journal) Operations(ctx context.Context, auctionID string) ([]Operation, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT auction_id, operation, caller, amount, success, code, message, event_seq, at
		FROM operations
		WHERE auction_id = ?
		ORDER BY id ASC
	`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	ops := []Operation{}
	for rows.Next() {
		var (
			op           Operation
			caller, code string
			amount, at   string
			eventSeq     int64
		)
		if err := rows.Scan(&op.AuctionID, &op.Operation, &caller, &amount, &op.Success, &code, &op.Message, &eventSeq, &at); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		op.Caller = core.Identity(caller)
		op.Code = core.ErrorCode(code)
		op.EventSeq = uint64(eventSeq)
		if op.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		if op.At, err = parseTime(at); err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return ops, nil
}

func scanEvent(rows *sql.Rows) (core.Event, error) {
	var (
		ev                   core.Event
		seq                  int64
		kind, bidder         string
		amount, deadline, at string
	)
	if err := rows.Scan(&seq, &kind, &bidder, &amount, &deadline, &at); err != nil {
		return core.Event{}, fmt.Errorf("scan event: %w", err)
	}

	var err error
	ev.Seq = uint64(seq)
	ev.Kind = core.EventKind(kind)
	ev.Bidder = core.Identity(bidder)
	if ev.Amount, err = parseAmount(amount); err != nil {
		return core.Event{}, err
	}
	if ev.Deadline, err = parseTime(deadline); err != nil {
		return core.Event{}, err
	}
	if ev.At, err = parseTime(at); err != nil {
		return core.Event{}, err
	}
	return ev, nil
}
