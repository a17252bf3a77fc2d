package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/orderflow/internal/events"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Compose renders the order confirmation sent to the customer.
func Compose(order events.OrderSnapshot) Content {
	shortID := order.OrderID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	var b strings.Builder
	b.WriteString("We have received your order.\n\n")
	fmt.Fprintf(&b, "Order ID: %s\n", order.OrderID)
	fmt.Fprintf(&b, "Order date: %s\n", order.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Total: %s\n\n", FormatAmount(order.TotalAmount))
	b.WriteString("Items:\n")
	for _, item := range order.Items {
		fmt.Fprintf(&b, "- %s × %d = %s\n", item.ProductName, item.Quantity, FormatAmount(item.LineTotal()))
	}
	b.WriteString("\nWe will contact you again once your order is ready to ship.\n")

	return Content{
		To:      order.CustomerEmail,
		Subject: fmt.Sprintf("Thank you for your order (order: %s)", shortID),
		Body:    b.String(),
	}
}

// FormatAmount groups minor units with English thousands separators.
func FormatAmount(v int64) string {
	return message.NewPrinter(language.English).Sprintf("%d", v)
}
