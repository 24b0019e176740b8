package app

import (
	"context"
	"time"

	"github.com/franciscolir/pre-reserva/internal/clock"
	"github.com/franciscolir/pre-reserva/internal/domain"
)

type SlotRepository interface {
	Initialize(ctx context.Context, ids []string) error
	Get(ctx context.Context, id string) (domain.Slot, error)
	ListAll(ctx context.Context) ([]domain.Slot, error)
	ListReserved(ctx context.Context) ([]domain.Reservation, error)
	TransitionIfState(ctx context.Context, id string, expected domain.SlotState, m domain.Mutation) (bool, error)
	FreeExpired(ctx context.Context, now time.Time) ([]string, error)
}

// ReservationService decides slot transitions. Every action is a single
// conditional mutation keyed on the expected current state, never a
// read-then-write pair.
type ReservationService struct {
	repo        SlotRepository
	clock       clock.Clock
	softLockTTL time.Duration
}

const defaultSoftLockTTL = 30 * time.Second

func NewReservationService(repo SlotRepository, clk clock.Clock, opts ...ReservationServiceOption) *ReservationService {
	svc := &ReservationService{
		repo:        repo,
		clock:       clk,
		softLockTTL: defaultSoftLockTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ReservationServiceOption func(*ReservationService)

// WithSoftLockTTL overrides the default pre-reservation window.
func WithSoftLockTTL(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.softLockTTL = d
		}
	}
}

// PreReserve soft-locks a free slot for the TTL window, giving the caller
// exclusive time to confirm. Returns the slot as committed.
func (s *ReservationService) PreReserve(ctx context.Context, id string) (domain.Slot, error) {
	expiresAt := s.clock.Now().Add(s.softLockTTL)

	applied, err := s.repo.TransitionIfState(ctx, id, domain.SlotStateFree, domain.MutationSoftLock(expiresAt))
	if err != nil {
		return domain.Slot{}, err
	}
	if !applied {
		return domain.Slot{}, s.rejection(ctx, id, domain.ErrSlotUnavailable)
	}

	return domain.MutationSoftLock(expiresAt).Apply(domain.NewFreeSlot(id)), nil
}

// CancelPreReservation frees a soft-locked slot. Cancelling a slot that is
// not soft-locked is a no-op, not an error: applied reports whether state
// actually changed (and therefore whether to notify observers).
func (s *ReservationService) CancelPreReservation(ctx context.Context, id string) (domain.Slot, bool, error) {
	applied, err := s.repo.TransitionIfState(ctx, id, domain.SlotStateSoftLocked, domain.MutationFree())
	if err != nil {
		return domain.Slot{}, false, err
	}
	if !applied {
		if _, err := s.repo.Get(ctx, id); err != nil {
			return domain.Slot{}, false, err
		}
		return domain.Slot{}, false, nil
	}
	return domain.NewFreeSlot(id), true, nil
}

// Reserve confirms a soft-locked slot under the given holder name.
func (s *ReservationService) Reserve(ctx context.Context, id, holderName string) (domain.Slot, error) {
	if holderName == "" {
		return domain.Slot{}, domain.ErrNameRequired
	}

	applied, err := s.repo.TransitionIfState(ctx, id, domain.SlotStateSoftLocked, domain.MutationReserve(holderName))
	if err != nil {
		return domain.Slot{}, err
	}
	if !applied {
		return domain.Slot{}, s.rejection(ctx, id, domain.ErrSlotNotPreReserved)
	}

	return domain.MutationReserve(holderName).Apply(domain.NewFreeSlot(id)), nil
}

func (s *ReservationService) ListAll(ctx context.Context) ([]domain.Slot, error) {
	return s.repo.ListAll(ctx)
}

func (s *ReservationService) ListReserved(ctx context.Context) ([]domain.Reservation, error) {
	return s.repo.ListReserved(ctx)
}

// rejection distinguishes an unknown slot from a precondition failure after
// a conditional update matched no row.
func (s *ReservationService) rejection(ctx context.Context, id string, precondition error) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return precondition
}
