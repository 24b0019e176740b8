package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/franciscolir/pre-reserva/internal/domain"
)

// ReservedLister is the minimal interface needed to serve the listing.
type ReservedLister interface {
	ListReserved(ctx context.Context) ([]domain.Reservation, error)
}

// HandleListReserved returns an HTTP handler for the read-only reserved
// slot listing.
func HandleListReserved(svc ReservedLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		reservations, err := svc.ListReserved(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		resp := make([]reservedSlotResponse, 0, len(reservations))
		for _, res := range reservations {
			resp = append(resp, reservedSlotResponse{
				Slot:       res.SlotID,
				HolderName: res.HolderName,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type reservedSlotResponse struct {
	Slot       string `json:"slot"`
	HolderName string `json:"holderName"`
}
