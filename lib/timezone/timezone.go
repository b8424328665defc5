package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("America/Toronto")
	if err != nil {
		panic(err)
	}
}

// the storefront renders order dates in the account's local timezone
// without a year or an offset, so all date math has to happen in a
// pinned location or cursors drift when the host timezone differs
func Now() time.Time {
	return time.Now().In(Location)
}
