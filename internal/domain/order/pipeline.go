package order

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/chilirig-checkout/internal/domain/delivery"
	"github.com/xenking/chilirig-checkout/internal/domain/pricing"
)

// Policy decides what a failed step does to the rest of the pipeline.
type Policy int

const (
	// Abort stops the pipeline and fails the order.
	Abort Policy = iota
	// ContinueWithWarning records the failure on the result and moves on.
	ContinueWithWarning
)

func (p Policy) String() string {
	if p == ContinueWithWarning {
		return "continue-with-warning"
	}
	return "abort"
}

// Step names, also used as span names.
const (
	StepIdentify    = "identify"
	StepParcel      = "parcel"
	StepConsignment = "consignment"
	StepAudit       = "audit"
)

// MaxDescriptionLen bounds the item description sent to the courier.
const MaxDescriptionLen = 220

// placement is the state threaded through one run of the pipeline.
type placement struct {
	req            Request
	phone          string
	secondaryPhone string
	placedAt       time.Time

	orderID string
	weight  decimal.Decimal
	summary string
	outcome delivery.Outcome
	record  Record
}

// step is one stage of order placement.
type step struct {
	name   string
	policy Policy
	run    func(ctx context.Context, p *placement) error
}

func (s *Service) steps() []step {
	return []step{
		{name: StepIdentify, policy: Abort, run: s.identify},
		{name: StepParcel, policy: Abort, run: s.parcel},
		{name: StepConsignment, policy: ContinueWithWarning, run: s.consign},
		{name: StepAudit, policy: Abort, run: s.audit},
	}
}

func (s *Service) identify(_ context.Context, p *placement) error {
	p.orderID = s.ids.Next()
	return nil
}

func (s *Service) parcel(_ context.Context, p *placement) error {
	qty := 0
	for _, it := range p.req.Items {
		qty += it.Quantity
	}
	p.weight = pricing.ParcelWeight(qty)
	p.summary = Summary(p.req.Items)
	return nil
}

// Summary renders items as "name × qty" joined by " | ".
func Summary(items []Item) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = it.Name + " × " + strconv.Itoa(it.Quantity)
	}
	return strings.Join(parts, " | ")
}

// consign reports the outcome's error; the step's policy downgrades it to a
// warning.
func (s *Service) consign(ctx context.Context, p *placement) error {
	p.outcome = s.dispatcher.Dispatch(ctx, s.consignmentRequest(p))
	return p.outcome.Err
}

func (s *Service) consignmentRequest(p *placement) delivery.ConsignmentRequest {
	r := p.req
	desc := p.summary
	if len([]rune(desc)) > MaxDescriptionLen {
		desc = "Order " + p.orderID
	}
	return delivery.ConsignmentRequest{
		MerchantOrderID:         p.orderID,
		RecipientName:           strings.TrimSpace(r.FullName),
		RecipientPhone:          p.phone,
		RecipientSecondaryPhone: p.secondaryPhone,
		RecipientAddress:        RecipientAddress(r.Address, r.AreaName, r.ZoneName, r.CityName),
		RecipientCity:           *r.CityID,
		RecipientZone:           *r.ZoneID,
		RecipientArea:           r.AreaID,
		DeliveryType:            delivery.DeliveryTypeNormal,
		ItemType:                delivery.ItemTypeParcel,
		ItemQuantity:            1,
		ItemWeight:              p.weight.String(),
		AmountToCollect:         pricing.AmountToCollect(*r.Total),
		ItemDescription:         desc,
	}
}

func (s *Service) audit(ctx context.Context, p *placement) error {
	r := p.req
	shipping := decimal.Zero
	if r.Shipping != nil {
		shipping = *r.Shipping
	}
	p.record = Record{
		OrderID:        p.orderID,
		Date:           p.placedAt,
		Email:          r.Email,
		FullName:       r.FullName,
		Phone:          p.phone,
		SecondaryPhone: p.secondaryPhone,
		Address:        r.Address,
		CityID:         *r.CityID,
		City:           r.CityName,
		ZoneID:         *r.ZoneID,
		Zone:           r.ZoneName,
		AreaID:         r.AreaID,
		Area:           r.AreaName,
		Items:          p.summary,
		Lines:          r.Items,
		Subtotal:       *r.Subtotal,
		Shipping:       shipping,
		Total:          *r.Total,
		Weight:         p.weight,
		Status:         StatusNew,
		ConsignmentID:  p.outcome.ConsignmentID(),
	}
	if err := s.sink.Append(ctx, p.record); err != nil {
		return &AuditSinkError{OrderID: p.orderID, Err: err}
	}
	return nil
}

// RecipientAddress joins the non-empty address parts with ", ".
func RecipientAddress(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, ", ")
}
