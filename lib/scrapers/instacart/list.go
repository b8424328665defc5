package instacart

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"ordersync/lib/pacing"
	"ordersync/services/ordersync/dataset"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// FetchOrders pages through the order list and returns skeleton orders
// ascending by dateTime, each strictly after the cursor. A zero cursor
// retrieves the full history.
//
// The remote list renders newest-first and grows in place as the
// load-more affordance is triggered, so pagination can stop as soon as
// the oldest loaded entry is no longer after the cursor.
func (c *Client) FetchOrders(ctx context.Context, cursor time.Time) ([]dataset.Order, error) {
	ctx, span := tracer.Start(ctx, "FetchOrders")
	defer span.End()

	err := c.renderer.Navigate(ctx, c.opts.OrdersURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("navigate to order list: %w", err)
	}

	pages := 0
	for {
		if pages > 0 {
			err := pacing.Sleep(ctx, c.opts.PaceMin, c.opts.PaceMax)
			if err != nil {
				return nil, err
			}
		}

		more, err := c.loadMore(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if !more {
			break
		}
		pages++

		if cursor.IsZero() {
			continue
		}
		oldest, ok, err := c.oldestLoaded(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		// enough history is on the page once the oldest loaded entry is
		// at or before the cursor
		if ok && !dataset.IsAfter(oldest, cursor) {
			break
		}
	}
	span.SetAttributes(attribute.Int("pages_loaded", pages))

	raw, err := c.renderer.Elements(ctx, selOrderCard)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("collect order cards: %w", err)
	}

	orders := make([]dataset.Order, 0, len(raw))
	for _, el := range raw {
		order, at, err := c.parseOrderCard(el)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("parse order card: %w", err)
		}
		if !cursor.IsZero() && !dataset.IsAfter(at, cursor) {
			continue
		}
		orders = append(orders, order)
	}

	// oldest first
	slices.Reverse(orders)

	slog.DebugContext(ctx, "fetched order list", "loaded", len(raw), "new", len(orders))
	return orders, nil
}

// loadMore triggers the load-more affordance, reporting false once no
// more pages exist. Render timing is not deterministic, so a single
// absence is retried once with a backoff before being treated as the
// end of the history.
func (c *Client) loadMore(ctx context.Context) (bool, error) {
	for attempt := 0; ; attempt++ {
		button, err := c.renderer.WaitForElement(ctx, selLoadMore, c.opts.ElementTimeout)
		if err != nil {
			return false, err
		}
		if button == nil {
			if attempt == 0 {
				slog.DebugContext(ctx, "load more button absent, retrying once")
				err := pacing.Sleep(ctx, c.opts.PollInterval, c.opts.PollInterval*4)
				if err != nil {
					return false, err
				}
				continue
			}
			return false, nil
		}

		err = c.renderer.Click(ctx, button)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			// a button that refuses the click behaves like a missing one
			slog.WarnContext(ctx, "failed to trigger load more", "err", err)
			return false, nil
		}
		return true, nil
	}
}

// oldestLoaded peeks at the dateTime of the last (oldest) order card
// currently rendered.
func (c *Client) oldestLoaded(ctx context.Context) (time.Time, bool, error) {
	els, err := c.renderer.Elements(ctx, selOrderCard)
	if err != nil {
		return time.Time{}, false, err
	}
	if len(els) == 0 {
		return time.Time{}, false, nil
	}
	_, at, err := c.parseOrderCard(els[len(els)-1])
	if err != nil {
		return time.Time{}, false, fmt.Errorf("peek oldest loaded order: %w", err)
	}
	return at, true, nil
}
