package validation

import (
	"errors"
	"reflect"
	"testing"
)

type sample struct {
	ID    string `json:"id"`
	Name  string `json:"name" validate:"notblank"`
	Email string `json:"email" validate:"required,email"`
}

func TestStruct(t *testing.T) {
	t.Run("accepts a complete record", func(t *testing.T) {
		if err := Struct(sample{Name: "Ann", Email: "ann@x.com"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("reports json field names", func(t *testing.T) {
		err := Struct(sample{Name: "   ", Email: "not-an-email"})
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		var verr *Error
		if !errors.As(err, &verr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		want := []string{"name", "email"}
		if !reflect.DeepEqual(verr.Fields, want) {
			t.Errorf("expected fields %v, got %v", want, verr.Fields)
		}
	})
	t.Run("treats tabs and newlines as blank", func(t *testing.T) {
		err := Struct(sample{Name: "\t\n ", Email: "ann@x.com"})
		var verr *Error
		if !errors.As(err, &verr) || !reflect.DeepEqual(verr.Fields, []string{"name"}) {
			t.Errorf("expected name to be rejected, got %v", err)
		}
	})
}

func TestRequired(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
		want   []string
	}{
		{"all present", map[string]string{"email": "a", "password": "b"}, nil},
		{"blank and whitespace", map[string]string{"password": "", "email": "  ", "name": "x"}, []string{"email", "password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Required(tt.values)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("expected nil, got %v", err)
				}
				return
			}
			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if !reflect.DeepEqual(verr.Fields, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, verr.Fields)
			}
		})
	}
}
