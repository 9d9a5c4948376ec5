package delivery

import (
	"context"
	"unicode/utf8"

	"github.com/go-faster/errors"
)

// Recipient address bounds enforced by the courier.
const (
	MinAddressLen = 10
	MaxAddressLen = 220
)

// ErrAddressLength is reported when the composed recipient address falls
// outside the courier's accepted range.
var ErrAddressLength = errors.Errorf(
	"Address length must be between %d and %d characters for Pathao", MinAddressLen, MaxAddressLen,
)

// OutcomeKind tags the result of a consignment attempt.
type OutcomeKind int

const (
	// OutcomeSkipped means no attempt was made because the courier is not
	// configured. It carries no warning.
	OutcomeSkipped OutcomeKind = iota
	// OutcomeCreated means the courier accepted the parcel.
	OutcomeCreated
	// OutcomeFailed means the attempt failed or was refused before the call.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCreated:
		return "created"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of a consignment attempt. Failures are values,
// not errors, so callers treat them as a regular branch.
type Outcome struct {
	Kind        OutcomeKind
	Consignment Consignment
	Err         error
}

// Created returns a successful outcome.
func Created(c Consignment) Outcome {
	return Outcome{Kind: OutcomeCreated, Consignment: c}
}

// Failed returns a failed outcome.
func Failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err}
}

// Skipped returns an outcome for a disabled courier.
func Skipped() Outcome {
	return Outcome{Kind: OutcomeSkipped}
}

// ConsignmentID returns the consignment id, or "" unless created.
func (o Outcome) ConsignmentID() string {
	if o.Kind != OutcomeCreated {
		return ""
	}
	return o.Consignment.ID
}

// Warning returns the failure message, or "" unless failed.
func (o Outcome) Warning() string {
	if o.Kind != OutcomeFailed || o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Dispatcher creates consignments on a best-effort basis.
type Dispatcher interface {
	Dispatch(ctx context.Context, req ConsignmentRequest) Outcome
}

// ProviderDispatcher adapts a Provider into a Dispatcher. A nil provider
// yields OutcomeSkipped for every request.
type ProviderDispatcher struct {
	provider Provider
	storeID  int64
}

// NewDispatcher returns a Dispatcher that stamps storeID on every request.
func NewDispatcher(provider Provider, storeID int64) *ProviderDispatcher {
	return &ProviderDispatcher{provider: provider, storeID: storeID}
}

// Enabled reports whether consignments will actually be attempted.
func (d *ProviderDispatcher) Enabled() bool {
	return d != nil && d.provider != nil
}

// Dispatch validates the recipient address and calls the courier.
func (d *ProviderDispatcher) Dispatch(ctx context.Context, req ConsignmentRequest) Outcome {
	if !d.Enabled() {
		return Skipped()
	}
	if n := utf8.RuneCountInString(req.RecipientAddress); n < MinAddressLen || n > MaxAddressLen {
		return Failed(ErrAddressLength)
	}
	req.StoreID = d.storeID

	c, err := d.provider.CreateConsignment(ctx, req)
	if err != nil {
		return Failed(err)
	}
	return Created(c)
}
