package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/requestctx"
)

func TestWriteErrorIncludesRequestAndTraceIDs(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	ctx = requestctx.WithTrace(ctx, requestctx.TraceInfo{TraceID: "trace-1"})

	rr := httptest.NewRecorder()
	WriteError(ctx, rr, NewError("cart_empty", "cart\nis empty", http.StatusBadRequest).WithDetails(map[string]any{"field": "items"}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "cart_empty" || body["message"] != "cart is empty" {
		t.Fatalf("unexpected envelope %v", body)
	}
	if body["request_id"] != "req-1" || body["trace_id"] != "trace-1" || body["field"] != "items" {
		t.Fatalf("missing ids or details in %v", body)
	}
}

func TestNewErrorDefaultsTo500(t *testing.T) {
	if got := NewError("x", "y", 0).Status; got != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Quantity int `json:"quantity"`
	}

	var dst payload
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":2}`))
	if err := DecodeJSON(req, 1024, &dst); err != nil || dst.Quantity != 2 {
		t.Fatalf("unexpected decode result %v %+v", err, dst)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":2,"extra":true}`))
	if err := DecodeJSON(req, 1024, &dst); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("   "))
	if err := DecodeJSON(req, 1024, &dst); !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 20)))
	err := DecodeJSON(req, 10, &dst)
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
	if BodyError(err).Status != http.StatusRequestEntityTooLarge {
		t.Fatal("expected 413 mapping")
	}
}
