package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ordersync/lib/timezone"
)

// TimeLayout is the minute-resolution form every persisted dateTime
// uses.
const TimeLayout = "2006-01-02 15:04"

var ErrMalformedDataset = fmt.Errorf("existing dataset is malformed")

type Item struct {
	Name            string `json:"name"`
	UnitPrice       string `json:"unitPrice"`
	UnitDescription string `json:"unitDescription"`
	// Quantity may be a count ("3") or a weight expression ("1.2 lb")
	Quantity     string `json:"quantity"`
	ThumbnailUrl string `json:"thumbnailUrl,omitempty"`
}

type Order struct {
	DateTime  string `json:"dateTime"`
	ItemCount string `json:"itemCount"`
	Total     string `json:"total"`
	// Url uniquely identifies the order within the dataset
	Url              string  `json:"url"`
	Cancelled        bool    `json:"cancelled"`
	Items            []Item  `json:"items"`
	DeliveryPhotoUrl *string `json:"deliveryPhotoUrl"`
}

// Dataset is an append-only sequence of orders, ascending by dateTime.
// Persisted entries are never mutated or reordered, new records only
// ever land at the tail.
type Dataset []Order

func ParseDateTime(s string) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, s, timezone.Location)
}

// IsAfter reports whether candidate is strictly newer than cursor at
// minute resolution. Equal timestamps are not new: the boundary record
// was already synced by the run that persisted it.
func IsAfter(candidate, cursor time.Time) bool {
	return candidate.Truncate(time.Minute).After(cursor.Truncate(time.Minute))
}

// Load reads the dataset at path. A missing file is an empty dataset,
// anything unreadable or invalid is ErrMalformedDataset: silently
// discarding synced history is worse than refusing to run.
func Load(path string) (Dataset, error) {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDataset, err)
	}

	var d Dataset
	err = json.Unmarshal(contents, &d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDataset, err)
	}
	for i, o := range d {
		_, err := ParseDateTime(o.DateTime)
		if err != nil {
			return nil, fmt.Errorf("%w: order %d has invalid dateTime %q", ErrMalformedDataset, i, o.DateTime)
		}
	}
	return d, nil
}

// Cursor returns the dateTime of the newest persisted order, or the
// zero time when the dataset is empty.
func (d Dataset) Cursor() time.Time {
	if len(d) == 0 {
		return time.Time{}
	}
	// validated at load time
	t, _ := ParseDateTime(d[len(d)-1].DateTime)
	return t
}

// Merge concatenates newRecords onto existing, verbatim. No sorting,
// no dedup: the pagination/filter contract guarantees every new record
// is strictly after existing's cursor.
func Merge(existing Dataset, newRecords []Order) Dataset {
	merged := make(Dataset, 0, len(existing)+len(newRecords))
	merged = append(merged, existing...)
	merged = append(merged, newRecords...)
	return merged
}

// Save writes the full dataset as pretty-printed json, via a temp file
// and rename so a crash mid-write cannot clobber the previous good
// file.
func (d Dataset) Save(path string) error {
	if d == nil {
		d = Dataset{}
	}
	contents, err := json.MarshalIndent(d, "", "    ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".ordersync-*")
	if err != nil {
		return err
	}
	_, err = tmp.Write(contents)
	if err == nil {
		err = tmp.Sync()
	}
	closeErr := tmp.Close()
	if err != nil || closeErr != nil {
		os.Remove(tmp.Name())
		return errors.Join(err, closeErr)
	}
	return os.Rename(tmp.Name(), path)
}
