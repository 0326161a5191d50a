package leads

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// UnmarshalJSON accepts the loose encodings form builders produce: phone and
// zipCode may arrive as numbers, consent as "true"/"false" or 0/1.
func (s *Submission) UnmarshalJSON(data []byte) error {
	type plain Submission
	aux := struct {
		*plain
		Phone   looseString `json:"phone"`
		ZipCode looseString `json:"zipCode"`
		Consent looseBool   `json:"consent"`
	}{plain: (*plain)(s)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.Phone = string(aux.Phone)
	s.ZipCode = string(aux.ZipCode)
	s.Consent = bool(aux.Consent)
	return nil
}

type looseString string

func (v *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*v = looseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("leads: expected string or number, got %s", data)
	}
	*v = looseString(num.String())
	return nil
}

type looseBool bool

func (v *looseBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = false
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = looseBool(b)
		return nil
	}
	raw := string(data)
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		raw = str
	}
	if raw == "" {
		*v = false
		return nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("leads: expected boolean, got %s", data)
	}
	*v = looseBool(parsed)
	return nil
}
