package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrSpanNotFound: the span id is not in the current list, usually because
	// a recompute replaced it. Callers re-fetch the spans and retry or drop it.
	ErrSpanNotFound = errors.New("span not found")
	// ErrDocumentNotTracked: the operation needs tracking enabled on the document.
	ErrDocumentNotTracked = errors.New("document not tracked")
	// ErrBridgeUnavailable: no editor bridge is registered to mutate the buffer.
	ErrBridgeUnavailable = errors.New("editor bridge unavailable")
	// ErrNoCurrentDocument: the document id was omitted and no document is current.
	ErrNoCurrentDocument = errors.New("no current document")
)

// OpError records a failed engine operation and the document and span it
// targeted. Err is one of the sentinels above or an error from the bridge.
type OpError struct {
	Op     string
	DocID  string
	SpanID string
	Err    error
}

func (e *OpError) Error() string {
	if e.SpanID != "" {
		return fmt.Sprintf("%s %s: span %s: %v", e.Op, e.DocID, e.SpanID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.DocID, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Code is a coarse error class used in log fields.
type Code string

const (
	CodeNone              Code = ""
	CodeSpanNotFound      Code = "span_not_found"
	CodeNotTracked        Code = "not_tracked"
	CodeBridgeUnavailable Code = "bridge_unavailable"
	CodeNoDocument        Code = "no_document"
	CodeBridge            Code = "bridge"
)

// Classify maps an error returned by the engine to its Code.
func Classify(err error) Code {
	switch {
	case err == nil:
		return CodeNone
	case errors.Is(err, ErrSpanNotFound):
		return CodeSpanNotFound
	case errors.Is(err, ErrDocumentNotTracked):
		return CodeNotTracked
	case errors.Is(err, ErrBridgeUnavailable):
		return CodeBridgeUnavailable
	case errors.Is(err, ErrNoCurrentDocument):
		return CodeNoDocument
	default:
		return CodeBridge
	}
}
