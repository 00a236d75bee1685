package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// PropertyType is the declared type of a property column.
type PropertyType string

const (
	TypeString        PropertyType = "string"
	TypeInteger       PropertyType = "integer"
	TypeLong          PropertyType = "long"
	TypeDouble        PropertyType = "double"
	TypeBoolean       PropertyType = "boolean"
	TypeJSON          PropertyType = "json"
	TypeZonedDateTime PropertyType = "zoned_datetime"
	TypeDuration      PropertyType = "duration"
	TypePeriod        PropertyType = "period"
)

// Postfix column suffixes for types stored across several columns.
const (
	PostfixZoneID = "~~~zonedId"
	PostfixNanos  = "~~~nanos"
	PostfixMonths = "~~~months"
	PostfixDays   = "~~~days"
)

// LocalDateTimeLayout is the text layout of the base column of a zoned
// datetime property.
const LocalDateTimeLayout = "2006-01-02T15:04:05.999999999"

// Valid reports whether t is a known property type.
func (t PropertyType) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeLong, TypeDouble, TypeBoolean, TypeJSON,
		TypeZonedDateTime, TypeDuration, TypePeriod:
		return true
	}
	return false
}

// PostFixes lists the extra column suffixes the type occupies, in column order.
func (t PropertyType) PostFixes() []string {
	switch t {
	case TypeZonedDateTime:
		return []string{PostfixZoneID}
	case TypeDuration:
		return []string{PostfixNanos}
	case TypePeriod:
		return []string{PostfixMonths, PostfixDays}
	}
	return nil
}

// Property is a named, typed property column.
type Property struct {
	Name string       `yaml:"name"`
	Type PropertyType `yaml:"type"`
}

// Columns returns the base column followed by every postfix column.
func (p Property) Columns() []string {
	cols := []string{p.Name}
	for _, pf := range p.Type.PostFixes() {
		cols = append(cols, p.Name+pf)
	}
	return cols
}

// Period is a calendar amount stored across a base column and two postfix
// columns.
type Period struct {
	Years  int `json:"years"`
	Months int `json:"months"`
	Days   int `json:"days"`
}

func (p Period) String() string {
	return fmt.Sprintf("P%dY%dM%dD", p.Years, p.Months, p.Days)
}

// Decode folds a scanned base value and its postfix values into a single Go
// value. A nil base decodes to nil.
func (t PropertyType) Decode(base any, parts []any) (any, error) {
	if base == nil {
		return nil, nil
	}
	if want := len(t.PostFixes()); len(parts) != want {
		return nil, fmt.Errorf("%s property needs %d postfix values, got %d", t, want, len(parts))
	}

	switch t {
	case TypeString:
		return asString(base)
	case TypeInteger, TypeLong:
		return asInt64(base)
	case TypeDouble:
		return asFloat64(base)
	case TypeBoolean:
		return asBool(base)
	case TypeJSON:
		s, err := asString(base)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(s), nil
	case TypeZonedDateTime:
		return decodeZoned(base, parts[0])
	case TypeDuration:
		secs, err := asInt64(base)
		if err != nil {
			return nil, err
		}
		var nanos int64
		if parts[0] != nil {
			if nanos, err = asInt64(parts[0]); err != nil {
				return nil, err
			}
		}
		return time.Duration(secs)*time.Second + time.Duration(nanos), nil
	case TypePeriod:
		years, err := asInt64(base)
		if err != nil {
			return nil, err
		}
		p := Period{Years: int(years)}
		if parts[0] != nil {
			m, err := asInt64(parts[0])
			if err != nil {
				return nil, err
			}
			p.Months = int(m)
		}
		if parts[1] != nil {
			d, err := asInt64(parts[1])
			if err != nil {
				return nil, err
			}
			p.Days = int(d)
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown property type %q", t)
}

func decodeZoned(base, zone any) (time.Time, error) {
	loc := time.UTC
	if zone != nil {
		name, err := asString(zone)
		if err != nil {
			return time.Time{}, err
		}
		if loc, err = time.LoadLocation(name); err != nil {
			return time.Time{}, fmt.Errorf("invalid zone id %q: %w", name, err)
		}
	}
	switch v := base.(type) {
	case time.Time:
		return time.Date(v.Year(), v.Month(), v.Day(), v.Hour(), v.Minute(), v.Second(), v.Nanosecond(), loc), nil
	default:
		s, err := asString(base)
		if err != nil {
			return time.Time{}, err
		}
		ts, err := time.ParseInLocation(LocalDateTimeLayout, s, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid local datetime %q: %w", s, err)
		}
		return ts, nil
	}
}

func asString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return fmt.Sprint(v), nil
}

func asInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	case string:
		return strconv.ParseInt(x, 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to integer", v)
}

func asFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case []byte:
		return strconv.ParseFloat(string(x), 64)
	case string:
		return strconv.ParseFloat(x, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to double", v)
}

func asBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case []byte:
		return strconv.ParseBool(string(x))
	case string:
		return strconv.ParseBool(x)
	}
	return false, fmt.Errorf("cannot convert %T to boolean", v)
}
