// Package hook decodes the payload a trusted token contract forwards along
// with a deposit, and validates the lock request it carries.
package hook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/atmx/lockup-engine/internal/model"
)

// MaxIDLength bounds caller-chosen position ids.
const MaxIDLength = 128

// idRegex matches printable position ids without whitespace.
var idRegex = regexp.MustCompile(`^[\x21-\x7e]+$`)

// ReceiveMsg is a deposit notification: the forwarding contract reports
// who sent how much, plus an opaque payload describing what to do with it.
type ReceiveMsg struct {
	Sender string          `json:"sender"`
	Amount decimal.Decimal `json:"amount"`
	Msg    []byte          `json:"msg"` // base64 in JSON
}

// Lock is a decoded lock instruction.
type Lock struct {
	ID    string          `json:"idx"`
	Class model.LockClass `json:"lock_type"`
}

// Parse decodes a hook payload of the form
//
//	{"lock":{"idx":"<id>","lock_type":{"long":{}}}}
//
// The lock type may also be given as a bare string ("long" or "short").
func Parse(payload []byte) (*Lock, error) {
	var envelope map[string]json.RawMessage
	if err := strictUnmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidPayload, err)
	}
	if len(envelope) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one message variant", model.ErrInvalidPayload)
	}
	raw, ok := envelope["lock"]
	if !ok {
		for k := range envelope {
			return nil, fmt.Errorf("%w: unknown message %q", model.ErrInvalidPayload, k)
		}
	}

	var body struct {
		Idx      string          `json:"idx"`
		LockType json.RawMessage `json:"lock_type"`
	}
	if err := strictUnmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidPayload, err)
	}

	class, err := parseClass(body.LockType)
	if err != nil {
		return nil, err
	}
	if err := ValidateID(body.Idx); err != nil {
		return nil, err
	}
	return &Lock{ID: body.Idx, Class: class}, nil
}

// ValidateID checks a caller-chosen position id.
func ValidateID(id string) error {
	if len(id) == 0 || len(id) > MaxIDLength || !idRegex.MatchString(id) {
		return fmt.Errorf("%w: invalid position id %q", model.ErrInvalidPayload, id)
	}
	return nil
}

// Encode builds a lock payload, the inverse of Parse.
func Encode(id string, class model.LockClass) ([]byte, error) {
	return json.Marshal(map[string]any{
		"lock": map[string]any{
			"idx":       id,
			"lock_type": map[string]struct{}{string(class): {}},
		},
	})
}

func parseClass(raw json.RawMessage) (model.LockClass, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: lock_type is required", model.ErrInvalidPayload)
	}

	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		var variant map[string]json.RawMessage
		if err := strictUnmarshal(raw, &variant); err != nil || len(variant) != 1 {
			return "", fmt.Errorf("%w: malformed lock_type", model.ErrInvalidPayload)
		}
		for k, v := range variant {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(v, &fields); err != nil || len(fields) != 0 {
				return "", fmt.Errorf("%w: lock_type %q takes no fields", model.ErrInvalidPayload, k)
			}
			name = k
		}
	}

	class := model.LockClass(name)
	if !class.Valid() {
		return "", fmt.Errorf("%w: unsupported lock_type %q", model.ErrInvalidPayload, name)
	}
	return class, nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after payload")
	}
	return nil
}
