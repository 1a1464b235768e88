package cache

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Entry represents a stored cache entry
type Entry struct {
	// Data is the encoded payload
	Data json.RawMessage `json:"data"`
	// Expiry is the moment after which the entry is stale
	Expiry JSONTime `json:"expiry"`
}

// Valid reports whether the entry is still fresh at now
func (e Entry) Valid(now time.Time) bool {
	return now.UnixMilli() < e.Expiry.UnixMilli()
}

// empty reports whether the entry carries no usable payload
func (e Entry) empty() bool {
	d := bytes.TrimSpace(e.Data)
	return len(d) == 0 || bytes.Equal(d, []byte("null"))
}

// JSONTime is a time.Time wrapper that JSON (un)marshals into a unix timestamp in milliseconds
type JSONTime time.Time

// MarshalJSON is used to convert the timestamp to JSON
func (t JSONTime) MarshalJSON() ([]byte, error) {
	ms := time.Time(t).UnixMilli()
	// Negative time stamps make no sense for our use cases
	if ms < 0 {
		ms = 0
	}

	return []byte(strconv.FormatInt(ms, 10)), nil
}

// UnmarshalJSON is used to convert the timestamp from JSON
func (t *JSONTime) UnmarshalJSON(s []byte) (err error) {
	q, err := strconv.ParseInt(string(s), 10, 64)
	if err != nil {
		return err
	}
	*(*time.Time)(t) = time.UnixMilli(q)

	return nil
}

// UnixMilli returns the unix time stamp in milliseconds of the underlaying time object
func (t JSONTime) UnixMilli() int64 {
	return time.Time(t).UnixMilli()
}

// Time returns the JSON time as a time.Time instance
func (t JSONTime) Time() time.Time {
	return time.Time(t)
}

// String returns time as a formatted string
func (t JSONTime) String() string {
	return t.Time().String()
}
