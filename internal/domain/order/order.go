package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// StatusNew is the status label of every freshly placed order. Records are
// never updated after they are written.
const StatusNew = "New"

// Item is a cart line as submitted by the buyer.
type Item struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Request is the payload of a single checkout attempt. Money fields are
// pointers so that a missing or non-numeric value can be told apart from zero.
type Request struct {
	Email          string
	FullName       string
	Phone          string
	SecondaryPhone string
	Address        string
	CityID         *int64
	ZoneID         *int64
	AreaID         int64
	CityName       string
	ZoneName       string
	AreaName       string
	Items          []Item
	Subtotal       *decimal.Decimal
	Shipping       *decimal.Decimal
	Total          *decimal.Decimal
}

// Record is the flat order row handed to the audit sink.
type Record struct {
	OrderID        string          `json:"orderId"`
	Date           time.Time       `json:"date"`
	Email          string          `json:"email"`
	FullName       string          `json:"fullName"`
	Phone          string          `json:"phone"`
	SecondaryPhone string          `json:"secondaryPhone"`
	Address        string          `json:"address"`
	CityID         int64           `json:"cityId"`
	City           string          `json:"city"`
	ZoneID         int64           `json:"zoneId"`
	Zone           string          `json:"zone"`
	AreaID         int64           `json:"areaId"`
	Area           string          `json:"area"`
	Items          string          `json:"items"`
	Lines          []Item          `json:"lines"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Shipping       decimal.Decimal `json:"shipping"`
	Total          decimal.Decimal `json:"total"`
	Weight         decimal.Decimal `json:"weight"`
	Status         string          `json:"status"`
	ConsignmentID  string          `json:"pathaoConsignmentId"`
}

// Result is what the caller learns about a placed order.
type Result struct {
	OrderID       string
	ConsignmentID string
	// DeliveryWarning is set when the consignment could not be created. The
	// order is still placed.
	DeliveryWarning string
}

// AuditSink durably appends placed orders. It is the system of record.
type AuditSink interface {
	Append(ctx context.Context, r Record) error
}

// Lister reads back records from a queryable audit sink.
type Lister interface {
	List(ctx context.Context, limit int) ([]Record, error)
}

// Finder looks up a single record by order id.
type Finder interface {
	Get(ctx context.Context, orderID string) (*Record, error)
}
