package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/mdlayher/vsock"

	"github.com/cloudx-io/auctionledger/core"
	"github.com/cloudx-io/auctionledger/enclaveapi"
	"github.com/cloudx-io/auctionledger/journal"
)

const requestTimeout = 30 * time.Second

// EnclaveServer accepts one JSON request per connection and answers it
// from a LedgerHost.
type EnclaveServer struct {
	host       *LedgerHost
	maxWorkers int
	workers    sync.WaitGroup
}

func NewEnclaveServer(host *LedgerHost, maxWorkers int) *EnclaveServer {
	return &EnclaveServer{host: host, maxWorkers: maxWorkers}
}

func listen(cfg HostConfig) (net.Listener, error) {
	switch cfg.Transport {
	case transportTCP:
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
		if err != nil {
			return nil, fmt.Errorf("failed to create tcp listener: %w", err)
		}
		return listener, nil
	default:
		listener, err := vsock.Listen(cfg.Port, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create vsock listener: %w", err)
		}
		return listener, nil
	}
}

// Serve accepts connections until the listener is closed, then waits for
// in-flight requests to finish.
func (s *EnclaveServer) Serve(listener net.Listener) error {
	semaphore := make(chan struct{}, s.maxWorkers)
	log.Printf("INFO: Worker pool initialized with %d max concurrent workers", s.maxWorkers)

	defer s.workers.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				log.Printf("INFO: Listener closed, stopping server")
				return nil
			}
			log.Printf("ERROR: Failed to accept connection: %v", err)
			continue
		}

		// Acquire worker slot - immediate rejection if pool full
		select {
		case semaphore <- struct{}{}:
			s.workers.Add(1)
			go func(c net.Conn) {
				defer s.workers.Done()
				defer func() { <-semaphore }() // Release worker slot
				s.handleConnection(c)
			}(conn)
		default:
			log.Printf("INFO: No workers available, rejecting connection (pool full)")
			mtxBusyRejections.Inc()
			if err := conn.Close(); err != nil {
				log.Printf("ERROR: Failed to close rejected connection: %v", err)
			}
		}
	}
}

func (s *EnclaveServer) handleConnection(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Panic recovered in handleConnection: %v", r)
		}
		if err := conn.Close(); err != nil {
			log.Printf("ERROR: Failed to close connection: %v", err)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(requestTimeout))

	var buf bytes.Buffer
	_, err := io.Copy(&buf, conn)
	if err != nil {
		log.Printf("ERROR: Failed to read request: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	response := s.dispatch(ctx, buf.Bytes())

	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(response); err != nil {
		log.Printf("ERROR: Failed to encode response: %v", err)
	}
}

func (s *EnclaveServer) dispatch(ctx context.Context, raw []byte) any {
	var req enclaveapi.LedgerRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		log.Printf("ERROR: Failed to decode request: %v", err)
		recordRequest("invalid", false)
		return enclaveapi.LedgerResponse{
			Type:    "error",
			Message: fmt.Sprintf("Failed to decode request: %v", err),
		}
	}

	log.Printf("INFO: Received request type: %s", req.Type)

	if req.Type == enclaveapi.RequestPing {
		return map[string]any{
			"type":      "pong",
			"message":   "TEE server is healthy",
			"timestamp": time.Now().Unix(),
		}
	}

	resp := s.host.Handle(ctx, req)
	if !resp.Success {
		log.Printf("INFO: Request %s failed: %s", req.Type, resp.Message)
	}
	return resp
}

func buildAttester(cfg HostConfig) (EnclaveAttester, error) {
	if cfg.Attester == attesterLocal {
		keyManager, err := NewKeyManager()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize key manager: %w", err)
		}
		log.Printf("INFO: Local receipt signer initialized, certificate:\n%s", keyManager.CertificatePEM())
		return keyManager, nil
	}
	return getEnclaveAttester()
}

func run() error {
	cfg, err := loadHostConfig()
	if err != nil {
		return err
	}

	attester, err := buildAttester(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize TEE attester: %w", err)
	}

	var eventJournal EventJournal
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer j.Close()
		eventJournal = j
		log.Printf("INFO: Journal opened at %s", cfg.JournalPath)
	}

	if cfg.MetricsAddr != "" {
		metricsServer := startMetricsServer(cfg.MetricsAddr)
		defer metricsServer.Close()
	}

	clock := core.SystemClock{}
	bank := NewBank()
	ledger, err := core.NewLedger(cfg.ledgerConfig(), clock, bank)
	if err != nil {
		return fmt.Errorf("failed to create ledger: %w", err)
	}
	log.Printf("INFO: Auction %s open until %s (organizer %s)", ledger.ID(), ledger.Deadline().Format(time.RFC3339), ledger.Organizer())

	listener, err := listen(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("ERROR: Failed to close listener: %v", err)
		}
	}()

	log.Printf("INFO: TEE server listening on %s port %d", cfg.Transport, cfg.Port)

	server := NewEnclaveServer(NewLedgerHost(ledger, bank, attester, eventJournal, clock), cfg.MaxWorkers)
	return server.Serve(listener)
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("ERROR: %v", err)
	}
}
