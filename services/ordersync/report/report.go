// Package report derives purchasing statistics from a synced dataset:
// per-item frequency, pricing history, and overall spending patterns.
package report

import (
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"ordersync/services/ordersync/dataset"

	"github.com/antzucaro/matchr"
	"github.com/jedib0t/go-pretty/v6/table"
)

// avgDaysPerMonth normalizes quantity rates across uneven spans.
const avgDaysPerMonth = 30.44

// similarityThreshold is the Jaro-Winkler score above which two item
// names are considered variants of the same product.
const similarityThreshold = 0.92

var nonNumeric = regexp.MustCompile(`[^0-9.]`)

type ItemStats struct {
	Name            string
	Unit            string
	OrderCount      int
	TotalQuantity   float64
	AvgQuantity     float64
	QuantityPerMo   float64
	AvgDaysBetween  float64
	FirstOrdered    time.Time
	LastOrdered     time.Time
	CurrentPrice    float64
	AvgPrice        float64
	MinPrice        float64
	MaxPrice        float64
}

type PriceAlert struct {
	Name            string
	Unit            string
	CurrentPrice    float64
	AvgPrice        float64
	IncreasePercent float64
}

type MonthSpend struct {
	Month string
	Total float64
}

type Report struct {
	Orders        int
	First         time.Time
	Last          time.Time
	TotalSpent    float64
	AvgOrderValue float64

	// Monthly holds per-calendar-month spend, ascending.
	Monthly []MonthSpend

	// Items is sorted by monthly quantity, most purchased first.
	Items []ItemStats

	// SimilarGroups lists item names that fuzzy-match each other,
	// likely the same product under slightly different listings.
	SimilarGroups [][]string

	PriceAlerts []PriceAlert
}

type itemKey struct {
	name string
	unit string
}

type itemAccum struct {
	quantities []float64
	prices     []float64
	dates      []time.Time
}

// Build aggregates the dataset into a Report. Cancelled orders carry
// no item data and are skipped. When after is non-zero, only orders
// strictly newer than it contribute.
func Build(ds dataset.Dataset, after time.Time) (*Report, error) {
	rep := &Report{}
	accum := map[itemKey]*itemAccum{}
	var keys []itemKey
	monthly := map[string]float64{}

	for _, order := range ds {
		if order.Cancelled {
			continue
		}
		orderTime, err := dataset.ParseDateTime(order.DateTime)
		if err != nil {
			return nil, fmt.Errorf("order %q: %w", order.Url, err)
		}
		if !after.IsZero() && !orderTime.After(after) {
			continue
		}

		rep.Orders++
		total := parseAmount(order.Total)
		rep.TotalSpent += total
		monthly[orderTime.Format("2006-01")] += total
		if rep.First.IsZero() || orderTime.Before(rep.First) {
			rep.First = orderTime
		}
		if orderTime.After(rep.Last) {
			rep.Last = orderTime
		}

		for _, item := range order.Items {
			key := itemKey{name: item.Name, unit: item.UnitDescription}
			acc := accum[key]
			if acc == nil {
				acc = &itemAccum{}
				accum[key] = acc
				keys = append(keys, key)
			}
			acc.quantities = append(acc.quantities, parseQuantity(item.Quantity))
			acc.prices = append(acc.prices, parseAmount(item.UnitPrice))
			acc.dates = append(acc.dates, orderTime)
		}
	}

	if rep.Orders > 0 {
		rep.AvgOrderValue = rep.TotalSpent / float64(rep.Orders)
	}
	for _, key := range keys {
		rep.Items = append(rep.Items, summarize(key, accum[key]))
		if alert, ok := priceAlert(key, accum[key]); ok {
			rep.PriceAlerts = append(rep.PriceAlerts, alert)
		}
	}
	slices.SortFunc(rep.Items, func(a, b ItemStats) int {
		switch {
		case a.QuantityPerMo > b.QuantityPerMo:
			return -1
		case a.QuantityPerMo < b.QuantityPerMo:
			return 1
		default:
			return strings.Compare(a.Name, b.Name)
		}
	})
	rep.SimilarGroups = groupSimilar(keys)

	months := make([]string, 0, len(monthly))
	for month := range monthly {
		months = append(months, month)
	}
	slices.Sort(months)
	for _, month := range months {
		rep.Monthly = append(rep.Monthly, MonthSpend{Month: month, Total: monthly[month]})
	}
	return rep, nil
}

func summarize(key itemKey, acc *itemAccum) ItemStats {
	stats := ItemStats{
		Name:       key.name,
		Unit:       key.unit,
		OrderCount: len(acc.dates),
	}

	for _, q := range acc.quantities {
		stats.TotalQuantity += q
	}
	stats.AvgQuantity = stats.TotalQuantity / float64(len(acc.quantities))

	dates := slices.Clone(acc.dates)
	slices.SortFunc(dates, time.Time.Compare)
	stats.FirstOrdered = dates[0]
	stats.LastOrdered = dates[len(dates)-1]

	days := stats.LastOrdered.Sub(stats.FirstOrdered).Hours() / 24
	if days < 1 {
		days = 1
	}
	stats.QuantityPerMo = stats.TotalQuantity / (days / avgDaysPerMonth)

	if len(dates) > 1 {
		var between float64
		for i := 1; i < len(dates); i++ {
			between += dates[i].Sub(dates[i-1]).Hours() / 24
		}
		stats.AvgDaysBetween = between / float64(len(dates)-1)
	}

	stats.CurrentPrice = acc.prices[len(acc.prices)-1]
	stats.MinPrice = slices.Min(acc.prices)
	stats.MaxPrice = slices.Max(acc.prices)
	var sum float64
	for _, p := range acc.prices {
		sum += p
	}
	stats.AvgPrice = sum / float64(len(acc.prices))

	return stats
}

// priceAlert flags items whose latest price runs 20% or more above the
// average of all earlier purchases.
func priceAlert(key itemKey, acc *itemAccum) (PriceAlert, bool) {
	if len(acc.prices) < 2 {
		return PriceAlert{}, false
	}
	current := acc.prices[len(acc.prices)-1]
	var sum float64
	for _, p := range acc.prices[:len(acc.prices)-1] {
		sum += p
	}
	avg := sum / float64(len(acc.prices)-1)
	if avg <= 0 || current < avg*1.2 {
		return PriceAlert{}, false
	}
	return PriceAlert{
		Name:            key.name,
		Unit:            key.unit,
		CurrentPrice:    current,
		AvgPrice:        avg,
		IncreasePercent: (current - avg) / avg * 100,
	}, true
}

func groupSimilar(keys []itemKey) [][]string {
	var groups [][]string
	used := make([]bool, len(keys))

	for i := range keys {
		if used[i] {
			continue
		}
		group := []string{keys[i].name}
		used[i] = true
		left := strings.ToLower(keys[i].name)

		for j := i + 1; j < len(keys); j++ {
			if used[j] {
				continue
			}
			right := strings.ToLower(keys[j].name)
			if matchr.JaroWinkler(left, right, false) >= similarityThreshold {
				group = append(group, keys[j].name)
				used[j] = true
			}
		}
		if len(group) > 1 {
			groups = append(groups, group)
		}
	}
	return groups
}

func parseQuantity(raw string) float64 {
	cleaned := nonNumeric.ReplaceAllString(raw, "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 1
	}
	return v
}

func parseAmount(raw string) float64 {
	cleaned := nonNumeric.ReplaceAllString(raw, "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

// Render writes the report as human-readable tables. top limits the
// number of item rows, zero meaning all.
func Render(w io.Writer, rep *Report, top int) {
	fmt.Fprintf(w, "Orders analyzed: %d\n", rep.Orders)
	if rep.Orders > 0 {
		fmt.Fprintf(w, "Date range:      %s to %s\n",
			rep.First.Format("2006-01-02"), rep.Last.Format("2006-01-02"))
		fmt.Fprintf(w, "Total spent:     $%.2f\n", rep.TotalSpent)
		fmt.Fprintf(w, "Avg order value: $%.2f\n", rep.AvgOrderValue)
	}
	fmt.Fprintln(w)

	items := rep.Items
	if top > 0 && top < len(items) {
		items = items[:top]
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{
		"Item", "Unit", "Orders", "Qty/Mo", "Days Between",
		"Price", "Avg", "Min", "Max", "Last Ordered",
	})
	for _, item := range items {
		t.AppendRow(table.Row{
			item.Name,
			item.Unit,
			item.OrderCount,
			fmt.Sprintf("%.2f", item.QuantityPerMo),
			fmt.Sprintf("%.1f", item.AvgDaysBetween),
			fmt.Sprintf("$%.2f", item.CurrentPrice),
			fmt.Sprintf("$%.2f", item.AvgPrice),
			fmt.Sprintf("$%.2f", item.MinPrice),
			fmt.Sprintf("$%.2f", item.MaxPrice),
			item.LastOrdered.Format("2006-01-02"),
		})
	}
	t.Render()

	if len(rep.Monthly) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Monthly spend:")
		for _, m := range rep.Monthly {
			fmt.Fprintf(w, "  %s  $%.2f\n", m.Month, m.Total)
		}
	}

	if len(rep.PriceAlerts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Price alerts:")
		for _, alert := range rep.PriceAlerts {
			fmt.Fprintf(w, "  %s (%s): $%.2f, +%.1f%% over avg $%.2f\n",
				alert.Name, alert.Unit, alert.CurrentPrice,
				alert.IncreasePercent, alert.AvgPrice)
		}
	}

	if len(rep.SimilarGroups) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Possible duplicate listings:")
		for _, group := range rep.SimilarGroups {
			fmt.Fprintf(w, "  %s\n", strings.Join(group, " / "))
		}
	}
}
