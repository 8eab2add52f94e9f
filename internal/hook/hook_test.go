package hook

import (
	"errors"
	"strings"
	"testing"

	"github.com/atmx/lockup-engine/internal/model"
)

func TestParse_Valid(t *testing.T) {
	l, err := Parse([]byte(`{"lock":{"idx":"1","lock_type":{"long":{}}}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.ID != "1" {
		t.Errorf("expected idx=1, got %s", l.ID)
	}
	if l.Class != model.LockLong {
		t.Errorf("expected class=long, got %s", l.Class)
	}
}

func TestParse_BareStringClass(t *testing.T) {
	l, err := Parse([]byte(`{"lock":{"idx":"pos-7","lock_type":"short"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Class != model.LockShort {
		t.Errorf("expected class=short, got %s", l.Class)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		``,
		`null`,
		`[]`,
		`"lock"`,
		`{}`,
		`{"unlock":{"idx":"1","lock_type":"long"}}`,
		`{"lock":{"idx":"1","lock_type":"long"},"extra":{}}`,
		`{"lock":{"idx":"1"}}`,
		`{"lock":{"idx":"1","lock_type":"medium"}}`,
		`{"lock":{"idx":"1","lock_type":{"long":{"days":3}}}}`,
		`{"lock":{"idx":"1","lock_type":{"long":{},"short":{}}}}`,
		`{"lock":{"idx":"","lock_type":"long"}}`,
		`{"lock":{"idx":"has space","lock_type":"long"}}`,
		`{"lock":{"idx":"1","lock_type":"long","amount":"5"}}`,
		`{"lock":{"idx":"1","lock_type":"long"}} {}`,
	}
	for _, payload := range tests {
		_, err := Parse([]byte(payload))
		if !errors.Is(err, model.ErrInvalidPayload) {
			t.Errorf("expected ErrInvalidPayload for %q, got %v", payload, err)
		}
	}
}

func TestParse_AllClasses(t *testing.T) {
	for _, class := range []model.LockClass{model.LockLong, model.LockShort} {
		payload, err := Encode("abc", class)
		if err != nil {
			t.Fatalf("encode %s: %v", class, err)
		}
		l, err := Parse(payload)
		if err != nil {
			t.Errorf("unexpected error for class %s: %v", class, err)
			continue
		}
		if l.Class != class || l.ID != "abc" {
			t.Errorf("expected abc/%s, got %s/%s", class, l.ID, l.Class)
		}
	}
}

func TestValidateID(t *testing.T) {
	if err := ValidateID("user-1:lock#42"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateID(strings.Repeat("x", MaxIDLength)); err != nil {
		t.Errorf("id at max length should pass: %v", err)
	}
	if err := ValidateID(strings.Repeat("x", MaxIDLength+1)); err == nil {
		t.Error("expected error for over-long id")
	}
	if err := ValidateID("tab\there"); err == nil {
		t.Error("expected error for id with control characters")
	}
}
