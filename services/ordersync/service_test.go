package ordersync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ordersync/lib/renderer"
	"ordersync/lib/renderer/rendertest"
	"ordersync/lib/scrapers/instacart"
	"ordersync/lib/sqliteutil"
	"ordersync/lib/telemetry"
	"ordersync/services/ordersync/dataset"
	"ordersync/services/ordersync/db"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// selectors as the scraper queries them, used to script the fake store
const (
	qOrderCard = `div.e-undqvw`
	qShowItems = `#order-status-items-card`
	qItemRow   = `#items-card-expanded > ul > li > div`
	qPhoto     = `img[src*='orderdeliveryphoto']`
)

const (
	urlA   = "https://www.instacart.ca/store/orders/a"
	urlB   = "https://www.instacart.ca/store/orders/b"
	urlX   = "https://www.instacart.ca/store/orders/x"
	urlC   = "https://www.instacart.ca/store/orders/c"
	urlOld = "https://www.instacart.ca/store/orders/old"
)

func card(date, href string, cancelled bool) string {
	notice := ""
	if cancelled {
		notice = `<p class="e-y3vaqb">Order canceled</p>`
	}
	return fmt.Sprintf(`<div class="e-undqvw">
		<a class="e-eevw7b" href="%s">View order</a>
		<p class="e-1ip314g">%s</p>
		<p class="e-zjik7">3 items</p>
		<p class="e-sxi6eq">$30.00</p>
		%s
	</div>`, href, date, notice)
}

func itemRow(name, unitInfo, quantity string) string {
	return fmt.Sprintf(`<div>
		<button class="e-1lj7l9t"><span>%s</span></button>
		<p class="e-1rr4qq7">%s</p>
		<div class="e-1kzqopz"><p>%s</p></div>
	</div>`, name, unitInfo, quantity)
}

// newStoreRenderer scripts a store whose order list holds, newest
// first: a deliverable order (c) whose detail page is broken, a
// cancelled order (x), a deliverable order (b), and an order (old)
// from before the cursor. Order b's detail page carries two items and
// a delivery photo.
func newStoreRenderer() *rendertest.Renderer {
	r := &rendertest.Renderer{}
	r.ElementsFunc = func(selector string) []renderer.Element {
		switch r.Location {
		case instacart.DefaultOrdersURL:
			if selector == qOrderCard {
				return rendertest.Elements(
					card("Delivered Jan 10, 2024", urlC, false),
					card("Canceled Jan 8, 2024", urlX, true),
					card("Delivered Jan 5, 2024", urlB, false),
					card("Delivered Dec 20, 2023", urlOld, false),
				)
			}
		case urlB:
			switch selector {
			case qShowItems:
				return rendertest.Elements(`<button id="order-status-items-card">Show items</button>`)
			case qPhoto:
				return rendertest.Elements(`<img src="https://www.instacart.ca/orderdeliveryphoto/b.jpg">`)
			case qItemRow:
				return rendertest.Elements(
					itemRow("Organic Bananas", "$0.79 • per lb", "1.2 lb"),
					itemRow("Whole Milk", "$5.49 • each", "2"),
				)
			}
		case urlC:
			// detail page never renders, the order degrades
		}
		return nil
	}
	return r
}

func testOptions(path string) Options {
	return Options{
		DatasetPath: path,
		PaceMin:     time.Millisecond,
		PaceMax:     time.Millisecond * 2,
		Client: instacart.ClientOptions{
			Interactive:    true,
			ElementTimeout: time.Millisecond * 5,
			PollInterval:   time.Millisecond,
			PaceMin:        time.Millisecond,
			PaceMax:        time.Millisecond * 2,
		},
	}
}

func staticFactory(r *rendertest.Renderer) renderer.Factory {
	return func(ctx context.Context) (renderer.Renderer, error) {
		return r, nil
	}
}

func TestRun(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "services/ordersync")
	defer cleanup()

	dir := t.TempDir()
	path := filepath.Join(dir, "orders.json")

	existing := dataset.Dataset{
		{DateTime: "2024-01-01 10:00", ItemCount: "1 item", Total: "10.00", Url: urlA, Items: []dataset.Item{}},
	}
	require.NoError(t, existing.Save(path))

	journal, err := sqliteutil.OpenDB(db.Schema, filepath.Join(dir, "journal.db"))
	require.NoError(t, err)
	defer journal.Close()

	opts := testOptions(path)
	opts.Journal = journal

	store := newStoreRenderer()
	service := NewService(staticFactory(store), opts)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	result, err := service.Run(ctx)
	require.NoError(t, err)

	// a is untouched, b/x/c merged oldest first, old filtered by cursor
	require.Len(t, result, 4)
	require.Equal(t, urlA, result[0].Url)
	require.Equal(t, urlB, result[1].Url)
	require.Equal(t, urlX, result[2].Url)
	require.Equal(t, urlC, result[3].Url)

	// b was enriched
	require.Len(t, result[1].Items, 2)
	require.Equal(t, "Organic Bananas", result[1].Items[0].Name)
	require.NotNil(t, result[1].DeliveryPhotoUrl)

	// x is cancelled, merged as a skeleton and never visited
	require.True(t, result[2].Cancelled)
	require.Empty(t, result[2].Items)
	require.NotContains(t, store.NavigateCalls, urlX)

	// c's broken detail page degraded only c
	require.Empty(t, result[3].Items)
	require.Nil(t, result[3].DeliveryPhotoUrl)

	// the order before the cursor was never visited either
	require.NotContains(t, store.NavigateCalls, urlOld)

	require.Equal(t, 1, store.QuitCalls)

	// what Run returned is exactly what was persisted
	persisted, err := dataset.Load(path)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(result, persisted))

	runs, err := db.New(journal).ListSyncRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "ok", runs[0].Outcome)
	require.EqualValues(t, 3, runs[0].OrdersFetched)
	require.EqualValues(t, 1, runs[0].OrdersDegraded)
	require.True(t, runs[0].FinishedAt.Valid)

	// a rerun against the same store finds nothing new and leaves the
	// file byte-identical
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	rerunStore := newStoreRenderer()
	rerun := NewService(staticFactory(rerunStore), testOptions(path))
	result, err = rerun.Run(ctx)
	require.NoError(t, err)
	require.Len(t, result, 4)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(string(before), string(after)))
	require.Equal(t, 1, rerunStore.QuitCalls)
}

func TestRunCheckpointed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")

	opts := testOptions(path)
	opts.Checkpoint = true

	service := NewService(staticFactory(newStoreRenderer()), opts)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	result, err := service.Run(ctx)
	require.NoError(t, err)
	require.Len(t, result, 4)

	persisted, err := dataset.Load(path)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(result, persisted))
}

func TestRunConflictingCursor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")

	existing := dataset.Dataset{
		{DateTime: "2024-01-01 10:00", Url: urlA, Items: []dataset.Item{}},
	}
	require.NoError(t, existing.Save(path))

	opts := testOptions(path)
	opts.Cursor = "2023-06-01 00:00"

	factoryCalls := 0
	service := NewService(func(ctx context.Context) (renderer.Renderer, error) {
		factoryCalls++
		return newStoreRenderer(), nil
	}, opts)

	_, err := service.Run(context.Background())
	require.ErrorIs(t, err, ErrConflictingCursor)
	// no browser is ever started for a run that cannot proceed
	require.Equal(t, 0, factoryCalls)
}

func TestRunExplicitCursorOnEmptyDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")

	opts := testOptions(path)
	opts.Cursor = "2024-01-01 10:00"

	service := NewService(staticFactory(newStoreRenderer()), opts)

	result, err := service.Run(context.Background())
	require.NoError(t, err)

	// same cursor as TestRun, minus the pre-existing record
	require.Len(t, result, 3)
	require.Equal(t, urlB, result[0].Url)
	require.Equal(t, urlC, result[2].Url)
}

func TestNewServicePropagatesPacing(t *testing.T) {
	{
		opts := Options{PaceMin: time.Second * 7, PaceMax: time.Second * 20}
		service := NewService(staticFactory(newStoreRenderer()), opts)
		require.Equal(t, time.Second*7, service.opts.Client.PaceMin)
		require.Equal(t, time.Second*20, service.opts.Client.PaceMax)
	}
	{
		// a separately tuned client range is left alone
		opts := Options{PaceMin: time.Second * 7, PaceMax: time.Second * 20}
		opts.Client.PaceMin = time.Second
		opts.Client.PaceMax = time.Second * 2
		service := NewService(staticFactory(newStoreRenderer()), opts)
		require.Equal(t, time.Second, service.opts.Client.PaceMin)
		require.Equal(t, time.Second*2, service.opts.Client.PaceMax)
	}
}

func TestRunCancelledMidRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the cancellation lands while order b's detail page is being
	// scraped
	store := newStoreRenderer()
	script := store.ElementsFunc
	store.ElementsFunc = func(selector string) []renderer.Element {
		if store.Location == urlB && selector == qShowItems {
			cancel()
		}
		return script(selector)
	}

	service := NewService(staticFactory(store), testOptions(path))

	_, err := service.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// renderer still released, nothing persisted
	require.Equal(t, 1, store.QuitCalls)
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestRunSessionFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")

	store := newStoreRenderer()
	store.CurrentURLFunc = func() string {
		return "https://www.instacart.ca/login?redirect=account"
	}

	opts := testOptions(path)
	opts.Client.Interactive = false

	service := NewService(staticFactory(store), opts)

	_, err := service.Run(context.Background())
	require.ErrorIs(t, err, instacart.ErrManualAuthRequired)

	// renderer still released, nothing persisted
	require.Equal(t, 1, store.QuitCalls)
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}
