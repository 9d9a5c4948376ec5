package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/xenking/chilirig-checkout/internal/cart"
	"github.com/xenking/chilirig-checkout/internal/checkout"
	"github.com/xenking/chilirig-checkout/internal/domain/pricing"
	"github.com/xenking/chilirig-checkout/internal/orderhistory"
)

var (
	accent  = lipgloss.Color("#E11D48") // chili red
	fg      = lipgloss.Color("#E8E6E3")
	dim     = lipgloss.Color("#6B7280")
	success = lipgloss.Color("#22C55E")
	warning = lipgloss.Color("#F59E0B")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle = lipgloss.NewStyle().Foreground(dim).Width(12)
	valueStyle = lipgloss.NewStyle().Foreground(fg)
	totalStyle = lipgloss.NewStyle().Bold(true).Foreground(fg)
	okStyle    = lipgloss.NewStyle().Foreground(success)
	warnStyle  = lipgloss.NewStyle().Foreground(warning)
	dimStyle   = lipgloss.NewStyle().Foreground(dim)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2)
)

func money(d decimal.Decimal) string {
	return "৳" + d.StringFixed(2)
}

func row(label, value string) string {
	return labelStyle.Render(label) + " " + valueStyle.Render(value)
}

func renderCart(c *cart.Cart) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Cart"))
	b.WriteString("\n")
	if c.Empty() {
		b.WriteString(dimStyle.Render("Your cart is empty."))
		b.WriteString("\n")
		return b.String()
	}

	items := c.Items()
	width := 0
	for _, it := range items {
		width = max(width, lipgloss.Width(it.Name))
	}
	name := lipgloss.NewStyle().Width(width + 2)
	for _, it := range items {
		line := it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		fmt.Fprintf(&b, "  %s %s %s  %s\n",
			dimStyle.Render(fmt.Sprintf("[%s]", it.ID)),
			name.Render(it.Name),
			fmt.Sprintf("%d × %s", it.Quantity, money(it.Price)),
			valueStyle.Render(money(line)),
		)
	}
	b.WriteString("\n")
	b.WriteString(row("Items", fmt.Sprint(c.ItemCount())))
	b.WriteString("\n")
	b.WriteString(row("Weight", c.Weight().String()+" kg"))
	b.WriteString("\n")
	b.WriteString(row("Subtotal", money(c.Subtotal())))
	b.WriteString("\n")
	// Only set within the invocation that added; not persisted.
	if at := c.LastAddedAt(); !at.IsZero() {
		b.WriteString(okStyle.Render("Added to cart at " + at.Local().Format("15:04:05")))
		b.WriteString("\n")
	}
	return b.String()
}

func renderSelection(sel checkout.Selection) string {
	route := sel.CityName + " / " + sel.ZoneName
	if sel.AreaName != "" {
		route += " / " + sel.AreaName
	}
	return row("Route", route)
}

func renderBreakdown(b pricing.Breakdown) string {
	var s strings.Builder
	s.WriteString(row("Subtotal", money(b.Subtotal)))
	s.WriteString("\n")
	if b.Resolved() {
		s.WriteString(row("Shipping", money(*b.Shipping)))
		s.WriteString("\n")
	} else {
		s.WriteString(row("Shipping", warnStyle.Render("unavailable")))
		s.WriteString("\n")
	}
	s.WriteString(labelStyle.Render("Total") + " " + totalStyle.Render(money(b.Total)))
	s.WriteString("\n")
	if b.Warning != "" {
		s.WriteString(warnStyle.Render("! " + b.Warning))
		s.WriteString("\n")
	}
	return s.String()
}

func renderReceipt(r *checkout.Receipt) string {
	var b strings.Builder
	b.WriteString(okStyle.Render("Order placed"))
	b.WriteString("\n")
	b.WriteString(row("Order", r.OrderID))
	b.WriteString("\n")
	if r.ConsignmentID != "" {
		b.WriteString(row("Consignment", r.ConsignmentID))
		b.WriteString("\n")
	}
	b.WriteString(row("Collect", money(r.Breakdown.Total)))
	if url, ok := r.Placed.TrackingURL(); ok {
		b.WriteString("\n")
		b.WriteString(row("Tracking", url))
	}
	out := boxStyle.Render(b.String()) + "\n"
	if r.Warning != "" {
		out += warnStyle.Render("! Delivery was not booked: "+r.Warning) + "\n"
	}
	return out
}

func renderOrders(orders []orderhistory.PlacedOrder) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Orders"))
	b.WriteString("\n")
	if len(orders) == 0 {
		b.WriteString(dimStyle.Render("No orders yet."))
		b.WriteString("\n")
		return b.String()
	}
	for _, o := range orders {
		head := valueStyle.Bold(true).Render(o.OrderID) + "  " + dimStyle.Render(o.Date.Local().Format("2006-01-02 15:04"))
		if o.Total != nil {
			head += "  " + money(*o.Total)
		}
		b.WriteString(head)
		b.WriteString("\n")
		if o.ItemsSummary != "" {
			b.WriteString("  " + o.ItemsSummary + "\n")
		}
		if url, ok := o.TrackingURL(); ok {
			b.WriteString("  " + okStyle.Render("track") + " " + url + "\n")
		} else {
			b.WriteString("  " + dimStyle.Render("tracking unavailable") + "\n")
		}
	}
	return b.String()
}
