package dataset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ordersync/lib/timezone"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) time.Time {
	parsed, err := ParseDateTime(s)
	require.NoError(t, err)
	return parsed
}

func TestIsAfter(t *testing.T) {
	cursor := mustParse(t, "2024-01-01 10:00")

	require.False(t, IsAfter(cursor, cursor))
	require.False(t, IsAfter(mustParse(t, "2023-12-31 23:59"), cursor))
	require.True(t, IsAfter(mustParse(t, "2024-01-01 10:01"), cursor))

	// sub-minute noise must not make an equal timestamp look newer
	require.False(t, IsAfter(cursor.Add(time.Second*30), cursor))
}

func TestMerge(t *testing.T) {
	existing := Dataset{
		{DateTime: "2024-01-01 10:00", Url: "a"},
		{DateTime: "2024-01-02 10:00", Url: "b"},
	}
	incoming := []Order{
		{DateTime: "2024-01-03 10:00", Url: "c"},
		{DateTime: "2024-01-04 10:00", Url: "d"},
	}

	merged := Merge(existing, incoming)
	require.Len(t, merged, 4)
	require.Equal(t, "a", merged[0].Url)
	require.Equal(t, "b", merged[1].Url)
	require.Equal(t, "c", merged[2].Url)
	require.Equal(t, "d", merged[3].Url)

	// inputs are untouched
	require.Len(t, existing, 2)
	require.Len(t, incoming, 2)

	require.Empty(t, Merge(nil, nil))
}

func TestCursor(t *testing.T) {
	require.True(t, Dataset{}.Cursor().IsZero())

	d := Dataset{
		{DateTime: "2024-01-01 10:00"},
		{DateTime: "2024-03-05 18:30"},
	}
	require.Equal(t, time.Date(2024, 3, 5, 18, 30, 0, 0, timezone.Location), d.Cursor())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	{
		d, err := Load(filepath.Join(dir, "does-not-exist.json"))
		require.NoError(t, err)
		require.Nil(t, d)
	}
	{
		path := filepath.Join(dir, "garbage.json")
		require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))
		_, err := Load(path)
		require.ErrorIs(t, err, ErrMalformedDataset)
	}
	{
		path := filepath.Join(dir, "baddate.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"dateTime":"Jan 30"}]`), 0o644))
		_, err := Load(path)
		require.ErrorIs(t, err, ErrMalformedDataset)
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	photo := "https://example.com/orderdeliveryphoto/1.jpg"

	d := Dataset{
		{
			DateTime:  "2024-01-01 10:00",
			ItemCount: "3 items",
			Total:     "42.50",
			Url:       "https://www.instacart.ca/store/orders/1",
			Items: []Item{
				{Name: "Bananas", UnitPrice: "0.79", UnitDescription: "per lb", Quantity: "1.2 lb"},
			},
			DeliveryPhotoUrl: &photo,
		},
		{
			DateTime:  "2024-02-01 09:30",
			ItemCount: "1 item",
			Total:     "9.99",
			Url:       "https://www.instacart.ca/store/orders/2",
			Cancelled: true,
			Items:     []Item{},
		},
	}
	require.NoError(t, d.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, d, loaded)

	// saving the same data twice produces identical bytes
	before, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, loaded.Save(path))
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestSaveEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")

	var d Dataset
	require.NoError(t, d.Save(path))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "[]", string(contents))
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.json")

	d := Dataset{{DateTime: "2024-01-01 10:00", Url: "a", Items: []Item{}}}
	require.NoError(t, d.Save(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "orders.json", entries[0].Name())
}
