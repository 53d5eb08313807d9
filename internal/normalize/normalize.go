// Package normalize turns the loosely-typed values found in the billing and
// engagement exports into the canonical forms carried by model.User.
//
// None of these functions fail. A value that cannot be normalized comes
// back in its original textual form, so a caller comparing normalized
// dates as strings must accept that an unparsed value sorts arbitrarily.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tinychef/UserData/internal/model"
)

const (
	// DateLayout is the canonical calendar date format (YYYY-MM-DD).
	DateLayout = "2006-01-02"

	// slashDateLayout accepts both padded and unpadded month/day.
	slashDateLayout = "1/2/2006"

	// Largest epoch-millisecond value that still lands in year 9999.
	maxEpochMillis = 253402300799999
)

// Date normalizes an epoch-milliseconds number or a "MM/DD/YYYY ..." string
// to YYYY-MM-DD in the local time zone. See DateIn.
func Date(v any) string {
	return DateIn(v, time.Local)
}

// DateIn normalizes v to YYYY-MM-DD, converting epoch milliseconds in loc.
//
//   - nil, "", 0 and false yield "".
//   - Numbers are epoch milliseconds.
//   - Strings are parsed from their first whitespace-separated token as
//     month/day/year.
//   - Anything that fails to parse is returned as its original text.
func DateIn(v any, loc *time.Location) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		if t == "" {
			return ""
		}
		return fromSlashDate(t)
	case json.Number:
		ms, err := t.Float64()
		if err != nil {
			return t.String()
		}
		if ms == 0 {
			return ""
		}
		return fromEpochMillis(ms, t.String(), loc)
	case float64:
		if t == 0 {
			return ""
		}
		return fromEpochMillis(t, strconv.FormatFloat(t, 'f', -1, 64), loc)
	case int64:
		if t == 0 {
			return ""
		}
		return fromEpochMillis(float64(t), strconv.FormatInt(t, 10), loc)
	case int:
		if t == 0 {
			return ""
		}
		return fromEpochMillis(float64(t), strconv.Itoa(t), loc)
	case bool:
		if !t {
			return ""
		}
		return strconv.FormatBool(t)
	default:
		return Text(t)
	}
}

func fromEpochMillis(ms float64, raw string, loc *time.Location) string {
	if math.IsNaN(ms) || math.Abs(ms) > maxEpochMillis {
		return raw
	}
	tm := time.UnixMilli(int64(math.Floor(ms)))
	if loc != nil {
		tm = tm.In(loc)
	}
	if tm.Year() < 1 {
		return raw
	}
	return tm.Format(DateLayout)
}

func fromSlashDate(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}
	tm, err := time.Parse(slashDateLayout, fields[0])
	if err != nil {
		return s
	}
	return tm.Format(DateLayout)
}

// DateToken returns the first whitespace-separated token of a date value,
// or "" when there is none. Normalized dates contain no whitespace, so for
// them this is the identity.
func DateToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// SubscriptionStatus maps a raw billing status onto the fixed set of
// subscription states. Matching is case-insensitive; "free_trial" counts
// as a trial and anything unrecognized (including "") is unknown.
func SubscriptionStatus(raw string) string {
	switch s := strings.ToLower(raw); s {
	case "free_trial":
		return model.SubscriptionTrial
	case model.SubscriptionActive, model.SubscriptionTrial, model.SubscriptionExpired:
		return s
	default:
		return model.SubscriptionUnknown
	}
}

// Text renders an arbitrary decoded JSON value as its JSON text: strings
// verbatim, numbers in their literal form, booleans as true/false, null as
// "null" and containers as compact JSON. DateIn uses it to hand back a
// value it cannot read as a date.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
