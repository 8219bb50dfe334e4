package weberr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewError(t *testing.T) {
	cause := errors.New("order[1] not found")
	err := NotFound(cause, WithFields(map[string]interface{}{"order_id": "1"}))

	if !errors.Is(err, cause) {
		t.Fatal("cause lost while decorating")
	}

	body, status, ok := Response(err)
	if !ok {
		t.Fatal("expected a response")
	}
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if diff := cmp.Diff(&ErrorResponse{Error: "the resource could not be found"}, body); diff != "" {
		t.Fatalf("unexpected body (-want +got):\n%s", diff)
	}

	fields, ok := Fields(err)
	if !ok || fields["order_id"] != "1" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestDetailedError(t *testing.T) {
	err := NewDetailedError(errors.New("insufficient stock"), "insufficient stock", http.StatusConflict,
		map[string]interface{}{"productId": "p-1"})

	body, status, _ := Response(err)
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
	want := &ErrorResponse{Error: "insufficient stock", Details: map[string]interface{}{"productId": "p-1"}}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Fatalf("unexpected body (-want +got):\n%s", diff)
	}
}

func TestFieldsMerge(t *testing.T) {
	err := Wrap(errors.New("boom"),
		WithFields(map[string]interface{}{"a": 1, "b": 1}),
		WithFields(map[string]interface{}{"b": 2}),
	)

	fields, _ := Fields(err)
	if diff := cmp.Diff(map[string]interface{}{"a": 1, "b": 2}, fields); diff != "" {
		t.Fatalf("unexpected fields (-want +got):\n%s", diff)
	}
}

func TestPlainError(t *testing.T) {
	if _, _, ok := Response(errors.New("plain")); ok {
		t.Fatal("plain errors carry no response")
	}
	if _, ok := Fields(errors.New("plain")); ok {
		t.Fatal("plain errors carry no fields")
	}
}
