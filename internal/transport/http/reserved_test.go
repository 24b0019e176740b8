package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/franciscolir/pre-reserva/internal/domain"
)

type fakeReservedLister struct {
	reservations []domain.Reservation
	err          error
}

func (f *fakeReservedLister) ListReserved(_ context.Context) ([]domain.Reservation, error) {
	return f.reservations, f.err
}

func TestHandleListReserved(t *testing.T) {
	t.Parallel()

	t.Run("returns ordered reservations", func(t *testing.T) {
		svc := &fakeReservedLister{reservations: []domain.Reservation{
			{SlotID: "10:00", HolderName: "Alice"},
			{SlotID: "12:30", HolderName: "Bob"},
		}}

		req := httptest.NewRequest(http.MethodGet, "/reserved-slots", nil)
		rec := httptest.NewRecorder()
		HandleListReserved(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}

		var resp []reservedSlotResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(resp) != 2 {
			t.Fatalf("expected 2 reservations, got %d", len(resp))
		}
		if resp[0].Slot != "10:00" || resp[0].HolderName != "Alice" {
			t.Fatalf("unexpected first reservation: %+v", resp[0])
		}
	})

	t.Run("empty listing is an empty array", func(t *testing.T) {
		svc := &fakeReservedLister{}

		req := httptest.NewRequest(http.MethodGet, "/reserved-slots", nil)
		rec := httptest.NewRecorder()
		HandleListReserved(svc).ServeHTTP(rec, req)

		if body := rec.Body.String(); body != "[]\n" {
			t.Fatalf("expected empty JSON array, got %q", body)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		svc := &fakeReservedLister{}

		req := httptest.NewRequest(http.MethodPost, "/reserved-slots", nil)
		rec := httptest.NewRecorder()
		HandleListReserved(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected status 405, got %d", rec.Code)
		}
	})

	t.Run("storage fault maps to internal error", func(t *testing.T) {
		svc := &fakeReservedLister{err: errors.New("boom")}

		req := httptest.NewRequest(http.MethodGet, "/reserved-slots", nil)
		rec := httptest.NewRecorder()
		HandleListReserved(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected status 500, got %d", rec.Code)
		}
		var resp errorResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Code != codeInternalError {
			t.Fatalf("expected code %s, got %s", codeInternalError, resp.Code)
		}
	})
}
