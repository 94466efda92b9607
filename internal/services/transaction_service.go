package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"rewards/internal/amqp"
	"rewards/internal/core"
	"rewards/internal/log"
	"rewards/internal/rewards"
	"rewards/internal/sources"
)

type (
	Publisher interface {
		PublishTransactionRecorded(ctx context.Context, msg *amqp.TransactionRecordedMessage) error
	}

	// Invalidator drops cached entries by key prefix.
	Invalidator interface {
		Invalidate(prefix string) int
	}

	TransactionRecorder interface {
		TransactionRecorded()
	}
)

// TransactionService stores new transactions and announces them.
type TransactionService struct {
	writer      sources.TransactionWriter
	publisher   Publisher
	invalidator Invalidator
	recorder    TransactionRecorder
	newID       func() string
}

// NewTransactionService wires the recording pipeline. Everything except
// writer may be nil.
func NewTransactionService(writer sources.TransactionWriter, publisher Publisher, invalidator Invalidator, recorder TransactionRecorder) *TransactionService {
	return &TransactionService{
		writer:      writer,
		publisher:   publisher,
		invalidator: invalidator,
		recorder:    recorder,
		newID:       uuid.NewString,
	}
}

// Record validates and stores nt under a fresh transaction ID. Publishing
// the event is best effort: the transaction is already saved.
func (s *TransactionService) Record(ctx context.Context, nt core.NewTransaction) (rewards.Transaction, string, error) {
	if err := nt.Validate(); err != nil {
		return rewards.Transaction{}, "", err
	}

	tx := nt.Transaction(s.newID())
	ref, err := s.writer.Append(ctx, tx)
	if err != nil {
		return rewards.Transaction{}, "", fmt.Errorf("save transaction: %w", err)
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(CachePrefix(tx.CustomerID))
	}
	if s.recorder != nil {
		s.recorder.TransactionRecorded()
	}

	log.NewEvents(log.FromContext(ctx)).
		TransactionRecorded(ctx, tx.TransactionID, tx.CustomerID, nt.Amount.Units(), ref)

	if err := s.publish(ctx, tx); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to publish transaction recorded message",
			log.FieldTransactionID, tx.TransactionID, log.FieldError, err)
	}

	return tx, ref, nil
}

func (s *TransactionService) publish(ctx context.Context, tx rewards.Transaction) error {
	if s.publisher == nil {
		log.FromContext(ctx).DebugContext(ctx, "AMQP publisher not configured, skipping transaction message")
		return nil
	}
	month := ""
	if t, ok := tx.Date.In(nil); ok {
		month = rewards.MonthKey(t)
	}
	return s.publisher.PublishTransactionRecorded(ctx, amqp.NewTransactionRecordedMessage(tx.TransactionID, tx.CustomerID, month))
}
