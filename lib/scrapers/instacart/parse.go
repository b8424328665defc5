package instacart

import (
	"fmt"
	"strings"
	"time"

	"ordersync/lib/renderer"
	"ordersync/lib/timezone"
	"ordersync/services/ordersync/dataset"
)

const displayDateLayout = "Jan 2, 2006"

// convertDateTime maps the storefront's display date ("Jan 30" or
// "Jan 30, 2024") to the dataset's minute-resolution form. Dates
// rendered without a year belong to the current one.
func convertDateTime(display string) (string, time.Time, error) {
	if !strings.Contains(display, ",") {
		display = fmt.Sprintf("%s, %d", display, timezone.Now().Year())
	}
	t, err := time.ParseInLocation(displayDateLayout, display, timezone.Location)
	if err != nil {
		return "", time.Time{}, err
	}
	return t.Format(dataset.TimeLayout), t, nil
}

// the date text leads with a status word ("Delivered Jan 30, 2024")
func stripStatusWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return s
	}
	return strings.Join(fields[1:], " ")
}

// parseOrderCard maps a rendered order card into a skeleton order,
// returning its parsed timestamp alongside for cursor comparisons.
func (c *Client) parseOrderCard(el renderer.Element) (dataset.Order, time.Time, error) {
	href, err := c.parser.ExtractAttribute(el, selCardLink, "href")
	if err != nil {
		return dataset.Order{}, time.Time{}, fmt.Errorf("order url: %w", err)
	}

	dateText, err := c.parser.ExtractText(el, selCardDate)
	if err != nil {
		return dataset.Order{}, time.Time{}, fmt.Errorf("order date: %w", err)
	}
	dateTime, at, err := convertDateTime(stripStatusWord(dateText))
	if err != nil {
		return dataset.Order{}, time.Time{}, fmt.Errorf("order date %q: %w", dateText, err)
	}

	itemCount, err := c.parser.ExtractText(el, selCardItemCount)
	if err != nil {
		return dataset.Order{}, time.Time{}, fmt.Errorf("order item count: %w", err)
	}
	total, err := c.parser.ExtractText(el, selCardTotal)
	if err != nil {
		return dataset.Order{}, time.Time{}, fmt.Errorf("order total: %w", err)
	}

	// the cancellation notice is only rendered on cancelled orders
	_, err = c.parser.ExtractText(el, selCardCancelled)
	cancelled := err == nil

	return dataset.Order{
		DateTime:  dateTime,
		ItemCount: itemCount,
		Total:     strings.TrimPrefix(total, "$"),
		Url:       href,
		Cancelled: cancelled,
		Items:     []dataset.Item{},
	}, at, nil
}

// parseItem maps a rendered item row into an Item.
func (c *Client) parseItem(el renderer.Element) (dataset.Item, error) {
	name, err := c.parser.ExtractText(el, selItemName)
	if err != nil {
		return dataset.Item{}, fmt.Errorf("item name: %w", err)
	}

	unitInfo, err := c.parser.ExtractText(el, selItemUnitInfo)
	if err != nil {
		return dataset.Item{}, fmt.Errorf("item unit info: %w", err)
	}
	// "$0.79 • per lb"
	parts := strings.Split(unitInfo, "•")
	if len(parts) < 2 {
		return dataset.Item{}, fmt.Errorf("unexpected unit info %q", unitInfo)
	}
	unitPrice := strings.TrimPrefix(strings.TrimSpace(parts[0]), "$")
	unitDescription := strings.TrimSpace(parts[1])

	quantity, err := c.parser.ExtractText(el, selItemQuantity)
	if err != nil {
		return dataset.Item{}, fmt.Errorf("item quantity: %w", err)
	}

	// not every item renders a thumbnail
	thumbnail, _ := c.parser.ExtractAttribute(el, selItemThumbnail, "src")

	return dataset.Item{
		Name:            name,
		UnitPrice:       unitPrice,
		UnitDescription: unitDescription,
		Quantity:        quantity,
		ThumbnailUrl:    thumbnail,
	}, nil
}
