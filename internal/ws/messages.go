package ws

import "github.com/franciscolir/pre-reserva/internal/domain"

// Inbound action types.
const (
	actionPreReserve = "pre-reserve"
	actionCancel     = "cancel-pre-reservation"
	actionReserve    = "reserve"
)

// Outbound message types.
const (
	msgInitialState = "initial-state"
	msgStateChanged = "state-changed"
	msgError        = "error"
)

type actionRequest struct {
	Type       string `json:"type"`
	Slot       string `json:"slot"`
	HolderName string `json:"holderName"`
}

type slotView struct {
	Slot       string `json:"slot"`
	State      string `json:"state"`
	HolderName string `json:"holderName,omitempty"`
}

func viewOf(slot domain.Slot) slotView {
	return slotView{
		Slot:       slot.ID,
		State:      string(slot.State),
		HolderName: slot.HolderName,
	}
}

type initialStateMessage struct {
	Type  string     `json:"type"`
	Slots []slotView `json:"slots"`
}

func newInitialState(slots []domain.Slot) initialStateMessage {
	views := make([]slotView, 0, len(slots))
	for _, slot := range slots {
		views = append(views, viewOf(slot))
	}
	return initialStateMessage{Type: msgInitialState, Slots: views}
}

type stateChangedMessage struct {
	Type       string `json:"type"`
	Slot       string `json:"slot"`
	State      string `json:"state"`
	HolderName string `json:"holderName,omitempty"`
}

func newStateChanged(slot domain.Slot) stateChangedMessage {
	return stateChangedMessage{
		Type:       msgStateChanged,
		Slot:       slot.ID,
		State:      string(slot.State),
		HolderName: slot.HolderName,
	}
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newError(message string) errorMessage {
	return errorMessage{Type: msgError, Message: message}
}
