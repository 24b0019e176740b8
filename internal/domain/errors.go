package domain

import "errors"

var (
	ErrSlotNotFound       = errors.New("slot not found")
	ErrSlotUnavailable    = errors.New("not available for pre-reservation")
	ErrSlotNotPreReserved = errors.New("slot not pre-reserved")
	ErrNameRequired       = errors.New("name required")
)
