// Package errs defines the error kinds used across the sentinel, so callers
// can branch on failure category with errors.Is / errors.As instead of
// string matching.
package errs

import "fmt"

// Kind classifies an error by how a caller should react to it.
type Kind string

const (
	// KindDecode marks a malformed or unrecognized program-log payload.
	// Always non-fatal: the Event Decoder returns it and the Orchestrator
	// logs and drops the frame.
	KindDecode Kind = "decode"

	// KindStore marks a failed read or write against the relational store.
	// Callers log it and abandon that operation (the Stagnancy Monitor tries
	// a failed retirement again on its next poll); nothing escalates it to
	// Fatal.
	KindStore Kind = "store"

	// KindTransport marks a failed RPC/WebSocket/HTTP call to an external
	// service (Log Source, Swap Executor, SOL/USD quote provider).
	KindTransport Kind = "transport"

	// KindInstruction marks an on-chain instruction failure returned by the
	// Swap Executor (e.g. slippage exceeded). A migrated bonding curve is
	// reported through SwapResult.Migrated instead.
	KindInstruction Kind = "instruction"

	// KindFatal marks a condition the process cannot recover from.
	KindFatal Kind = "fatal"
)

// Error is the common error type carrying a Kind alongside the wrapped cause.
type Error struct {
	Kind Kind
	Op   string // component/operation that produced the error, e.g. "decode.Swap"
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Decode wraps err as a KindDecode error.
func Decode(op string, err error) *Error { return New(KindDecode, op, err) }

// Store wraps err as a KindStore error.
func Store(op string, err error) *Error { return New(KindStore, op, err) }

// Transport wraps err as a KindTransport error.
func Transport(op string, err error) *Error { return New(KindTransport, op, err) }

// Instruction wraps err as a KindInstruction error.
func Instruction(op string, err error) *Error { return New(KindInstruction, op, err) }

// Fatal wraps err as a KindFatal error.
func Fatal(op string, err error) *Error { return New(KindFatal, op, err) }

// Is reports whether err (or anything it wraps) is of the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == kind {
				return true
			}
			err = e.Err
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
