package report

import (
	"bytes"
	"testing"
	"time"

	"ordersync/services/ordersync/dataset"

	"github.com/stretchr/testify/require"
)

func order(dateTime, total string, items ...dataset.Item) dataset.Order {
	return dataset.Order{
		DateTime: dateTime,
		Total:    total,
		Url:      "https://www.instacart.ca/store/orders/" + dateTime,
		Items:    items,
	}
}

func bananas(price, quantity string) dataset.Item {
	return dataset.Item{
		Name:            "Organic Bananas",
		UnitPrice:       price,
		UnitDescription: "per lb",
		Quantity:        quantity,
	}
}

func TestBuild(t *testing.T) {
	ds := dataset.Dataset{
		order("2024-01-01 10:00", "20.00", bananas("0.79", "1.2 lb")),
		order("2024-02-01 10:00", "30.00", bananas("0.99", "2 lb")),
		{DateTime: "2024-02-15 10:00", Total: "99.00", Cancelled: true, Items: []dataset.Item{}},
	}

	rep, err := Build(ds, time.Time{})
	require.NoError(t, err)

	// the cancelled order contributes nothing
	require.Equal(t, 2, rep.Orders)
	require.InDelta(t, 50.0, rep.TotalSpent, 0.001)
	require.InDelta(t, 25.0, rep.AvgOrderValue, 0.001)
	require.Equal(t, "2024-01-01", rep.First.Format("2006-01-02"))
	require.Equal(t, "2024-02-01", rep.Last.Format("2006-01-02"))

	require.Len(t, rep.Monthly, 2)
	require.Equal(t, "2024-01", rep.Monthly[0].Month)
	require.InDelta(t, 20.0, rep.Monthly[0].Total, 0.001)
	require.Equal(t, "2024-02", rep.Monthly[1].Month)
	require.InDelta(t, 30.0, rep.Monthly[1].Total, 0.001)

	require.Len(t, rep.Items, 1)
	item := rep.Items[0]
	require.Equal(t, "Organic Bananas", item.Name)
	require.Equal(t, "per lb", item.Unit)
	require.Equal(t, 2, item.OrderCount)
	require.InDelta(t, 3.2, item.TotalQuantity, 0.001)
	require.InDelta(t, 1.6, item.AvgQuantity, 0.001)
	require.InDelta(t, 31.0, item.AvgDaysBetween, 0.1)
	require.InDelta(t, 0.99, item.CurrentPrice, 0.001)
	require.InDelta(t, 0.79, item.MinPrice, 0.001)
	require.InDelta(t, 0.99, item.MaxPrice, 0.001)
	require.InDelta(t, 0.89, item.AvgPrice, 0.001)
}

func TestBuildAfterFilter(t *testing.T) {
	ds := dataset.Dataset{
		order("2024-01-01 10:00", "20.00", bananas("0.79", "1")),
		order("2024-02-01 10:00", "30.00", bananas("0.99", "1")),
	}

	after, err := dataset.ParseDateTime("2024-01-15 00:00")
	require.NoError(t, err)

	rep, err := Build(ds, after)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Orders)
	require.InDelta(t, 30.0, rep.TotalSpent, 0.001)
}

func TestPriceAlerts(t *testing.T) {
	ds := dataset.Dataset{
		order("2024-01-01 10:00", "10.00", bananas("2.00", "1")),
		order("2024-02-01 10:00", "10.00", bananas("2.00", "1")),
		order("2024-03-01 10:00", "10.00", bananas("3.00", "1")),
	}

	rep, err := Build(ds, time.Time{})
	require.NoError(t, err)

	require.Len(t, rep.PriceAlerts, 1)
	alert := rep.PriceAlerts[0]
	require.Equal(t, "Organic Bananas", alert.Name)
	require.InDelta(t, 3.00, alert.CurrentPrice, 0.001)
	require.InDelta(t, 2.00, alert.AvgPrice, 0.001)
	require.InDelta(t, 50.0, alert.IncreasePercent, 0.1)
}

func TestSimilarGroups(t *testing.T) {
	ds := dataset.Dataset{
		order("2024-01-01 10:00", "10.00",
			dataset.Item{Name: "Organic Bananas", UnitDescription: "per lb", UnitPrice: "0.79", Quantity: "1"},
			dataset.Item{Name: "Whole Milk", UnitDescription: "each", UnitPrice: "5.49", Quantity: "1"},
		),
		order("2024-02-01 10:00", "10.00",
			dataset.Item{Name: "Organic Banana", UnitDescription: "per lb", UnitPrice: "0.79", Quantity: "1"},
		),
	}

	rep, err := Build(ds, time.Time{})
	require.NoError(t, err)

	require.Len(t, rep.SimilarGroups, 1)
	require.ElementsMatch(t,
		[]string{"Organic Bananas", "Organic Banana"},
		rep.SimilarGroups[0])
}

func TestParseQuantityAndAmount(t *testing.T) {
	require.InDelta(t, 1.2, parseQuantity("1.2 lb"), 0.001)
	require.InDelta(t, 3.0, parseQuantity("3 ct"), 0.001)
	require.InDelta(t, 1.0, parseQuantity(""), 0.001)

	require.InDelta(t, 4.99, parseAmount("$4.99"), 0.001)
	require.InDelta(t, 0.0, parseAmount("free"), 0.001)
}

func TestRender(t *testing.T) {
	ds := dataset.Dataset{
		order("2024-01-01 10:00", "20.00", bananas("0.79", "1.2 lb")),
	}
	rep, err := Build(ds, time.Time{})
	require.NoError(t, err)

	var buf bytes.Buffer
	Render(&buf, rep, 10)

	out := buf.String()
	require.Contains(t, out, "Organic Bananas")
	require.Contains(t, out, "Total spent:     $20.00")
}
