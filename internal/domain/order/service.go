package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/chilirig-checkout/internal/domain/delivery"
	"github.com/xenking/chilirig-checkout/internal/domain/phone"
	"github.com/xenking/chilirig-checkout/internal/domain/pricing"
)

const instrumentationName = "github.com/xenking/chilirig-checkout/internal/domain/order"

// Service places orders: validation, then the identify → parcel →
// consignment → audit pipeline.
type Service struct {
	ids        *IDGenerator
	dispatcher delivery.Dispatcher
	sink       AuditSink
	now        func() time.Time

	tracer        trace.Tracer
	placed        metric.Int64Counter
	deliveryWarns metric.Int64Counter
	auditFailures metric.Int64Counter
}

// Option configures a Service.
type Option func(*options)

type options struct {
	ids            *IDGenerator
	now            func() time.Time
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithIDGenerator overrides the order id generator.
func WithIDGenerator(g *IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithClock overrides the clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithTracerProvider sets the tracer provider for pipeline spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider for order counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// NewService creates an order Service. The dispatcher may be disabled (see
// delivery.ProviderDispatcher) but both arguments must be non-nil.
func NewService(dispatcher delivery.Dispatcher, sink AuditSink, opts ...Option) (*Service, error) {
	o := options{
		now:            time.Now,
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ids == nil {
		o.ids = NewIDGenerator(WithIDClock(o.now))
	}

	meter := o.meterProvider.Meter(instrumentationName)
	placed, err := meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders accepted by the audit sink"))
	if err != nil {
		return nil, errors.Wrap(err, "orders.placed counter")
	}
	deliveryWarns, err := meter.Int64Counter("orders.delivery_warnings",
		metric.WithDescription("Orders placed without a courier consignment because of a failure"))
	if err != nil {
		return nil, errors.Wrap(err, "orders.delivery_warnings counter")
	}
	auditFailures, err := meter.Int64Counter("orders.audit_failures",
		metric.WithDescription("Orders rejected because the audit sink failed"))
	if err != nil {
		return nil, errors.Wrap(err, "orders.audit_failures counter")
	}

	return &Service{
		ids:           o.ids,
		dispatcher:    dispatcher,
		sink:          sink,
		now:           o.now,
		tracer:        o.tracerProvider.Tracer(instrumentationName),
		placed:        placed,
		deliveryWarns: deliveryWarns,
		auditFailures: auditFailures,
	}, nil
}

// PlaceOrder validates the request and runs the placement pipeline. Courier
// failures are reported on the result; an audit failure is returned as
// *AuditSinkError and the order is not placed.
func (s *Service) PlaceOrder(ctx context.Context, req Request) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "order.Place")
	defer span.End()

	p, err := s.validate(req)
	if err != nil {
		span.SetStatus(codes.Error, "validation")
		return nil, err
	}

	lg := zctx.From(ctx)
	for _, st := range s.steps() {
		stepCtx, stepSpan := s.tracer.Start(ctx, "order."+st.name,
			trace.WithAttributes(attribute.String("order.policy", st.policy.String())),
		)
		err := st.run(stepCtx, p)
		if err != nil {
			stepSpan.RecordError(err)
			stepSpan.SetStatus(codes.Error, err.Error())
		}
		stepSpan.End()

		if err == nil {
			continue
		}
		if st.policy == ContinueWithWarning {
			lg.Warn("Order step failed, continuing",
				zap.String("step", st.name),
				zap.String("order_id", p.orderID),
				zap.Error(err),
			)
			continue
		}

		if st.name == StepAudit {
			s.auditFailures.Add(ctx, 1)
		}
		lg.Error("Order step failed",
			zap.String("step", st.name),
			zap.String("order_id", p.orderID),
			zap.Error(err),
		)
		span.SetStatus(codes.Error, st.name)
		return nil, err
	}

	if p.outcome.Kind == delivery.OutcomeFailed {
		s.deliveryWarns.Add(ctx, 1)
	}
	s.placed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("delivery", p.outcome.Kind.String()),
	))
	span.SetAttributes(attribute.String("order.id", p.orderID))

	lg.Info("Order placed",
		zap.String("order_id", p.orderID),
		zap.String("consignment_id", p.outcome.ConsignmentID()),
		zap.Stringer("delivery", p.outcome.Kind),
	)

	return &Result{
		OrderID:         p.orderID,
		ConsignmentID:   p.outcome.ConsignmentID(),
		DeliveryWarning: p.outcome.Warning(),
	}, nil
}

// validate checks the request in a fixed order and returns the first
// problem. The secondary phone is dropped rather than rejected when invalid.
func (s *Service) validate(req Request) (*placement, error) {
	required := []struct {
		field string
		ok    bool
	}{
		{"email", strings.TrimSpace(req.Email) != ""},
		{"fullName", strings.TrimSpace(req.FullName) != ""},
		{"phone", strings.TrimSpace(req.Phone) != ""},
		{"address", strings.TrimSpace(req.Address) != ""},
		{"city_id", req.CityID != nil},
		{"zone_id", req.ZoneID != nil},
		{"city_name", strings.TrimSpace(req.CityName) != ""},
		{"zone_name", strings.TrimSpace(req.ZoneName) != ""},
		{"items", len(req.Items) > 0},
		{"subtotal", req.Subtotal != nil},
		{"total", req.Total != nil},
	}
	for _, r := range required {
		if !r.ok {
			return nil, missing(r.field)
		}
	}

	primary, ok := phone.Parse(req.Phone)
	if !ok {
		return nil, invalid("phone", MsgInvalidPhone)
	}
	var secondary string
	if s, ok := phone.Parse(req.SecondaryPhone); ok {
		secondary = s
	}

	lines := make([]pricing.Line, len(req.Items))
	for i, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, invalid("items", "quantity must be greater than 0 for "+itemLabel(it))
		}
		if it.Price.IsNegative() {
			return nil, invalid("items", "price must not be negative for "+itemLabel(it))
		}
		lines[i] = pricing.Line{UnitPrice: it.Price, Quantity: it.Quantity}
	}
	if !pricing.Subtotal(lines).Equal(req.Subtotal.Round(2)) {
		return nil, invalid("subtotal", "subtotal does not match the items")
	}
	if req.Shipping != nil {
		if req.Shipping.IsNegative() {
			return nil, invalid("shipping", "shipping must not be negative")
		}
		if !req.Subtotal.Add(*req.Shipping).Round(2).Equal(req.Total.Round(2)) {
			return nil, invalid("total", "total must equal subtotal plus shipping")
		}
	} else if req.Total.LessThan(*req.Subtotal) {
		return nil, invalid("total", "total must not be less than subtotal")
	}

	return &placement{
		req:            req,
		phone:          primary,
		secondaryPhone: secondary,
		placedAt:       s.now().UTC(),
	}, nil
}

func itemLabel(it Item) string {
	if it.Name != "" {
		return it.Name
	}
	return it.ID
}
