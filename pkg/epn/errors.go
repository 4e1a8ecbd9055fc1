package epn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Standard engine error types.
var (
	// ErrEmptyEventList indicates a publish call with no events.
	ErrEmptyEventList = errors.New("event list is empty")

	// ErrPartitionKeyMismatch indicates an event whose correlation set does
	// not include the list's declared partition key.
	ErrPartitionKeyMismatch = errors.New("event does not match partition key")

	// ErrQueueFull indicates a delivery was rejected because the per-processor
	// queue is full and the network is configured with the reject policy.
	ErrQueueFull = errors.New("delivery queue is full")

	// ErrNetworkClosed indicates a publish against a closed network.
	ErrNetworkClosed = errors.New("network is closed")

	// ErrProcessTimeout indicates a processor invocation exceeded its time
	// budget. Treated as transient for retry purposes.
	ErrProcessTimeout = errors.New("processor invocation timed out")
)

// TransientError marks a processor failure as retryable. Anything else
// returned from Process is treated as permanent and fails the delivery
// without further attempts.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient processor failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err so the dispatcher will retry the delivery.
func Transient(err error) error {
	if err == nil {
		return nil
	}

	return &TransientError{Err: err}
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var transient *TransientError

	return errors.As(err, &transient) ||
		errors.Is(err, ErrProcessTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

// DeliveryFailure describes a delivery whose retries were exhausted or that
// failed permanently. It is reported to the failure sink, never silently
// dropped.
type DeliveryFailure struct {
	Subject      string
	PartitionKey string
	ProcessorID  string
	Attempts     int
	Err          error
}

func (f DeliveryFailure) Error() string {
	return fmt.Sprintf("delivery to processor %s on subject %s for key %s failed after %d attempt(s): %v",
		f.ProcessorID, f.Subject, f.PartitionKey, f.Attempts, f.Err)
}

func (f DeliveryFailure) Unwrap() error {
	return f.Err
}

// FailureSink receives permanently failed deliveries for observability.
type FailureSink interface {
	ReportFailure(ctx context.Context, failure DeliveryFailure)
}

// LogFailureSink reports delivery failures to a slog logger.
type LogFailureSink struct {
	Logger *slog.Logger
}

func (s *LogFailureSink) ReportFailure(ctx context.Context, failure DeliveryFailure) {
	s.Logger.ErrorContext(ctx, "Delivery failed permanently",
		"subject", failure.Subject,
		"partitionKey", failure.PartitionKey,
		"processorId", failure.ProcessorID,
		"attempts", failure.Attempts,
		"error", failure.Err,
	)
}
