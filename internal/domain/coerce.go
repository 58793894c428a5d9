package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// The backend is not strict about JSON types: ids arrive as "shared_2",
// numbers as "123.4", booleans as 0/1, passenger lists in three different
// shapes. The Flex* types in this file absorb all of that at the decoding
// boundary so the rest of the module works with plain Go values.

// FlexID is an integer id that tolerates string encodings. A string value
// has its digits extracted and parsed ("shared_2" -> 2); a string with no
// digits parses as 0. Raw preserves the original string form so callers can
// inspect prefixes like "shared_".
type FlexID struct {
	Int int
	Raw string
}

func (id FlexID) String() string {
	if id.Raw != "" {
		return id.Raw
	}
	return strconv.Itoa(id.Int)
}

func (id FlexID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.Int)
}

func (id *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = FlexID{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("domain.FlexID: %w", err)
		}
		*id = FlexID{Int: extractDigits(s), Raw: s}
		return nil
	}
	// Numeric ids sometimes arrive as floats (e.g. 7.0).
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("domain.FlexID: %w", err)
	}
	*id = FlexID{Int: int(f)}
	return nil
}

// extractDigits returns the integer formed by every digit in s, in order.
// "shared_2" -> 2, "trip12" -> 12, "abc" -> 0.
func extractDigits(s string) int {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0
	}
	return n
}

// FlexFloat is a float64 that also accepts numeric-looking JSON strings.
// null and the empty string decode to 0.
type FlexFloat float64

func (f FlexFloat) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(f))
}

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("domain.FlexFloat: %w", err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("domain.FlexFloat: %q is not a number", s)
		}
		*f = FlexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("domain.FlexFloat: %w", err)
	}
	*f = FlexFloat(v)
	return nil
}

// FlexBool is a bool that also accepts 0/1 numbers and "0"/"1"/"true"/"false"
// strings. The backend encodes is_active and is_shared_trip as integers.
type FlexBool bool

func (f FlexBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(f))
}

func (f *FlexBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "", "null", "false", "0":
		*f = false
		return nil
	case "true", "1":
		*f = true
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("domain.FlexBool: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "", "false", "0":
			*f = false
		default:
			*f = true
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("domain.FlexBool: %w", err)
	}
	*f = v != 0
	return nil
}

// PassengerList is a flat ordered list of passenger names. The wire form
// varies: an array of strings, an array of {name} objects, or a JSON-encoded
// string containing either. Names are deduplicated preserving first
// occurrence order.
type PassengerList []string

func (p PassengerList) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string(p))
}

func (p *PassengerList) UnmarshalJSON(b []byte) error {
	names, err := decodePassengers(b)
	if err != nil {
		return fmt.Errorf("domain.PassengerList: %w", err)
	}
	*p = dedupe(names)
	return nil
}

func decodePassengers(b []byte) ([]string, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}

	if b[0] == '"' {
		// A JSON-encoded string: unwrap and try again. If the inner value is
		// not itself JSON, treat it as a comma-separated list of names.
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		if s[0] == '[' {
			return decodePassengers([]byte(s))
		}
		var names []string
		for _, part := range strings.Split(s, ",") {
			if t := strings.TrimSpace(part); t != "" {
				names = append(names, t)
			}
		}
		return names, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(b, &elems); err != nil {
		return nil, err
	}
	var names []string
	for _, e := range elems {
		e = bytes.TrimSpace(e)
		if len(e) == 0 {
			continue
		}
		if e[0] == '{' {
			var obj struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(e, &obj); err != nil {
				return nil, err
			}
			if t := strings.TrimSpace(obj.Name); t != "" {
				names = append(names, t)
			}
			continue
		}
		var s string
		if err := json.Unmarshal(e, &s); err != nil {
			return nil, err
		}
		if t := strings.TrimSpace(s); t != "" {
			names = append(names, t)
		}
	}
	return names, nil
}

func dedupe(names []string) []string {
	if names == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
