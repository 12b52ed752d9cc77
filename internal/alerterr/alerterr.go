// Package alerterr defines the error taxonomy shared by the alert engine.
//
// Every error raised while loading rules, evaluating events, persisting
// notifications, delivering to channels, or broadcasting to dashboard
// clients is wrapped in one of the typed errors below so callers can
// branch with errors.As without string matching.
package alerterr

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrQueueClosed      = errors.New("dispatch queue is closed")
	ErrQueueTimeout     = errors.New("timed out waiting for dispatch queue")
	ErrRuleNotFound     = errors.New("rule not found")
	ErrNotFound         = errors.New("notification not found")
	ErrStatusRegression = errors.New("notification status can only move forward from pending")
	ErrUnknownChannel   = errors.New("unknown channel")
	ErrMissingField     = errors.New("event is missing a required field")
)

// ConfigurationError reports a malformed rule. The rule is rejected and the
// registry continues with the remaining rules.
type ConfigurationError struct {
	RuleID string
	Field  string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid rule %q: %s: %v", e.RuleID, e.Field, e.Err)
	}
	return fmt.Sprintf("invalid rule %q: %v", e.RuleID, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// EvaluationError reports that a rule could not be evaluated against an
// event, or that the event could not be handed to the dispatch queue.
type EvaluationError struct {
	RuleID string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("evaluation failed: %v", e.Err)
	}
	return fmt.Sprintf("evaluation of rule %q failed: %v", e.RuleID, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// PersistenceError reports that the durable store was unavailable or
// rejected an operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ChannelDeliveryError reports a failed send on a single channel.
type ChannelDeliveryError struct {
	Channel        string
	NotificationID string
	Err            error
}

func (e *ChannelDeliveryError) Error() string {
	return fmt.Sprintf("delivery of %s via %s failed: %v", e.NotificationID, e.Channel, e.Err)
}

func (e *ChannelDeliveryError) Unwrap() error { return e.Err }

// BroadcastError reports a failed send to one dashboard client. It is only
// ever logged; the client is deregistered.
type BroadcastError struct {
	ClientID string
	Err      error
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("broadcast to client %s failed: %v", e.ClientID, e.Err)
}

func (e *BroadcastError) Unwrap() error { return e.Err }

// Persistence wraps err as a PersistenceError for op. A nil err stays nil.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
