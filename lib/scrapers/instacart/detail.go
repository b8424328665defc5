package instacart

import (
	"context"
	"fmt"
	"log/slog"

	"ordersync/services/ordersync/dataset"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// EnrichOrder fetches the order's detail page and attaches its items
// and delivery photo in place. Failure is contained per order: the
// order is degraded to empty items and the run carries on. Only a
// cancelled context propagates as an error.
//
// Callers must not pass cancelled orders, their detail pages are not
// worth fetching.
func (c *Client) EnrichOrder(ctx context.Context, order *dataset.Order) (degraded bool, err error) {
	ctx, span := tracer.Start(ctx, "EnrichOrder")
	defer span.End()
	span.SetAttributes(attribute.String("url", order.Url))

	items, photo, err := c.fetchDetail(ctx, order.Url)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.WarnContext(ctx, "degrading order, failed to fetch detail", "url", order.Url, "err", err)

		order.Items = []dataset.Item{}
		order.DeliveryPhotoUrl = nil
		return true, nil
	}

	order.Items = items
	order.DeliveryPhotoUrl = photo
	return false, nil
}

func (c *Client) fetchDetail(ctx context.Context, url string) ([]dataset.Item, *string, error) {
	err := c.renderer.Navigate(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("navigate to detail page: %w", err)
	}

	// detail pages sit behind the same challenge interstitial as login,
	// hence the very large budget
	showItems, err := c.renderer.WaitForElement(ctx, selShowItems, c.opts.ChallengeTimeout)
	if err != nil {
		return nil, nil, err
	}
	if showItems == nil {
		return nil, nil, fmt.Errorf("show-items control never became interactable")
	}
	err = c.renderer.Click(ctx, showItems)
	if err != nil {
		return nil, nil, fmt.Errorf("expand items: %w", err)
	}

	// absence of a delivery photo is normal (pickup orders, older
	// orders), never an error
	var photo *string
	photoEls, err := c.renderer.Elements(ctx, selDeliveryPhoto)
	if err != nil {
		return nil, nil, err
	}
	if len(photoEls) > 0 {
		src, err := c.parser.ExtractAttribute(photoEls[0], "", "src")
		if err == nil {
			photo = &src
		}
	}

	// the expansion renders asynchronously
	_, err = c.renderer.WaitForElement(ctx, selItemRow, c.opts.ElementTimeout)
	if err != nil {
		return nil, nil, err
	}
	rows, err := c.renderer.Elements(ctx, selItemRow)
	if err != nil {
		return nil, nil, err
	}

	items := make([]dataset.Item, 0, len(rows))
	for _, row := range rows {
		item, err := c.parseItem(row)
		if err != nil {
			return nil, nil, fmt.Errorf("parse item row: %w", err)
		}
		items = append(items, item)
	}
	return items, photo, nil
}
