package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cloudx-io/auctionledger/core"
	"github.com/cloudx-io/auctionledger/enclaveapi"
	"github.com/cloudx-io/auctionledger/journal"
)

// EventJournal receives committed events and operation outcomes.
// *journal.Journal implements it.
type EventJournal interface {
	AppendEvents(ctx context.Context, auctionID string, events []core.Event) error
	RecordOperation(ctx context.Context, op journal.Operation) error
}

// LedgerHost serializes requests against one ledger and issues receipts for
// the operations that pay out.
type LedgerHost struct {
	mu       sync.Mutex
	ledger   *core.Ledger
	bank     *Bank
	attester EnclaveAttester
	journal  EventJournal // may be nil
	clock    core.Clock

	// forwarded is the last event sequence number sent to the journal and metrics.
	forwarded uint64
}

func NewLedgerHost(ledger *core.Ledger, bank *Bank, attester EnclaveAttester, j EventJournal, clock core.Clock) *LedgerHost {
	return &LedgerHost{
		ledger:   ledger,
		bank:     bank,
		attester: attester,
		journal:  j,
		clock:    clock,
	}
}

// Handle applies one request and builds its response.
func (h *LedgerHost) Handle(ctx context.Context, req enclaveapi.LedgerRequest) enclaveapi.LedgerResponse {
	startTime := time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()

	resp := h.apply(ctx, req)
	resp.Type = req.Type + "_response"
	resp.ProcessingTime = time.Since(startTime).Milliseconds()
	recordRequest(req.Type, resp.Success)
	return resp
}

func (h *LedgerHost) apply(ctx context.Context, req enclaveapi.LedgerRequest) enclaveapi.LedgerResponse {
	switch req.Type {
	case enclaveapi.RequestPlaceBid:
		err := h.ledger.PlaceBid(ctx, req.Caller, req.Amount)
		h.afterOperation(ctx, req, err)
		if err != nil {
			return failure(err)
		}
		log.Printf("INFO: Bid accepted: bidder=%s amount=%d deadline=%s", req.Caller, req.Amount, h.ledger.Deadline().Format(time.RFC3339))
		return enclaveapi.LedgerResponse{Success: true, Message: "bid accepted"}

	case enclaveapi.RequestWithdraw:
		amount := h.ledger.PendingReturn(req.Caller)
		err := h.ledger.Withdraw(ctx, req.Caller)
		h.afterOperation(ctx, req, err)
		if err != nil {
			return failure(err)
		}
		log.Printf("INFO: Withdrawal paid: bidder=%s amount=%d", req.Caller, amount)
		return h.settled(enclaveapi.OperationWithdraw, req.Caller, amount)

	case enclaveapi.RequestFinalize:
		_, amount := h.ledger.CurrentWinner()
		err := h.ledger.Finalize(ctx)
		h.afterOperation(ctx, req, err)
		if err != nil {
			return failure(err)
		}
		winner, _ := h.ledger.CurrentWinner()
		log.Printf("INFO: Auction finalized: winner=%s amount=%d", winner, amount)
		return h.settled(enclaveapi.OperationFinalize, h.ledger.Organizer(), amount)

	case enclaveapi.RequestWithdrawFees:
		amount, err := h.ledger.WithdrawFees(ctx, req.Caller)
		h.afterOperation(ctx, req, err)
		if err != nil {
			return failure(err)
		}
		log.Printf("INFO: Fees withdrawn: organizer=%s amount=%d", req.Caller, amount)
		resp := h.settled(enclaveapi.OperationWithdrawFees, req.Caller, amount)
		resp.Amount = amount
		return resp

	case enclaveapi.RequestCurrentWinner:
		bidder, amount := h.ledger.CurrentWinner()
		return enclaveapi.LedgerResponse{Success: true, Winner: &core.Bid{Bidder: bidder, Amount: amount}}

	case enclaveapi.RequestAllBids:
		bidders, amounts := h.ledger.AllBids()
		bids := make([]core.Bid, len(bidders))
		for i := range bidders {
			bids[i] = core.Bid{Bidder: bidders[i], Amount: amounts[i]}
		}
		return enclaveapi.LedgerResponse{Success: true, Bids: bids}

	case enclaveapi.RequestTimeRemaining:
		remaining := h.ledger.TimeRemaining().Milliseconds()
		return enclaveapi.LedgerResponse{Success: true, TimeRemainingMs: &remaining}

	case enclaveapi.RequestEvents:
		return enclaveapi.LedgerResponse{Success: true, Events: h.ledger.EventsSince(req.SinceSeq)}

	case enclaveapi.RequestDeposit:
		balance, err := h.bank.Deposit(req.Caller, req.Amount)
		if err != nil {
			return enclaveapi.LedgerResponse{Success: false, Message: err.Error()}
		}
		return enclaveapi.LedgerResponse{Success: true, Balance: &balance}

	case enclaveapi.RequestBalance:
		balance := h.bank.Balance(req.Caller)
		return enclaveapi.LedgerResponse{Success: true, Balance: &balance}

	case enclaveapi.RequestSnapshot:
		snapshot := h.ledger.Snapshot()
		digest, err := core.ComputeStateDigest(snapshot)
		if err != nil {
			return enclaveapi.LedgerResponse{Success: false, Message: fmt.Sprintf("Failed to compute state digest: %v", err)}
		}
		return enclaveapi.LedgerResponse{Success: true, Snapshot: &snapshot, StateDigest: digest}

	default:
		return enclaveapi.LedgerResponse{
			Success: false,
			Message: fmt.Sprintf("Unknown request type: %s", req.Type),
		}
	}
}

func failure(err error) enclaveapi.LedgerResponse {
	return enclaveapi.LedgerResponse{
		Success: false,
		Message: err.Error(),
		Code:    string(core.CodeOf(err)),
	}
}

// afterOperation forwards newly committed events and records the outcome.
// Journal failures are logged; the ledger state is already committed.
func (h *LedgerHost) afterOperation(ctx context.Context, req enclaveapi.LedgerRequest, opErr error) {
	events := h.ledger.EventsSince(h.forwarded)
	auctionID := h.ledger.ID().String()

	if len(events) > 0 {
		recordEvents(events)
		h.forwarded = events[len(events)-1].Seq
	}
	recordLedgerState(h.ledger.Snapshot())

	if h.journal == nil {
		return
	}

	if err := h.journal.AppendEvents(ctx, auctionID, events); err != nil {
		log.Printf("ERROR: Failed to journal events: %v", err)
	}

	op := journal.Operation{
		AuctionID: auctionID,
		Operation: req.Type,
		Caller:    req.Caller,
		Amount:    req.Amount,
		Success:   opErr == nil,
		EventSeq:  h.ledger.LastEventSeq(),
		At:        h.clock.Now(),
	}
	if opErr != nil {
		op.Code = core.CodeOf(opErr)
		op.Message = opErr.Error()
	}
	if err := h.journal.RecordOperation(ctx, op); err != nil {
		log.Printf("ERROR: Failed to journal operation: %v", err)
	}
}

// settled builds the success response for a payout, with its receipt.
// A receipt failure does not undo the payout.
func (h *LedgerHost) settled(operation string, recipient core.Identity, amount core.Amount) enclaveapi.LedgerResponse {
	resp := enclaveapi.LedgerResponse{Success: true, Message: operation + " settled"}

	receipt, err := h.issueReceipt(operation, recipient, amount)
	if err != nil {
		log.Printf("ERROR: Failed to issue %s receipt: %v", operation, err)
		resp.Message = fmt.Sprintf("%s settled, receipt unavailable: %v", operation, err)
		return resp
	}
	resp.Receipt = receipt
	mtxReceipts.WithLabelValues(operation).Inc()
	return resp
}

func (h *LedgerHost) issueReceipt(operation string, recipient core.Identity, amount core.Amount) (*enclaveapi.Receipt, error) {
	claims, err := newReceiptClaims(h.ledger.Snapshot(), operation, recipient, amount, h.clock.Now())
	if err != nil {
		return nil, err
	}
	return attestReceipt(h.attester, claims)
}
