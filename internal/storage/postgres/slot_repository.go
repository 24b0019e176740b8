package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/franciscolir/pre-reserva/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SlotRepository struct {
	pool *pgxpool.Pool
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{pool: pool}
}

// Initialize seeds a free record for every id not already present. Existing
// rows are left untouched, so restarts never reset slot state.
func (r *SlotRepository) Initialize(ctx context.Context, ids []string) error {
	const stmt = `INSERT INTO slots (id, state) VALUES ($1, 'free') ON CONFLICT (id) DO NOTHING`

	for _, id := range ids {
		if _, err := r.pool.Exec(ctx, stmt, id); err != nil {
			return fmt.Errorf("seed slot %s: %w", id, err)
		}
	}
	return nil
}

func (r *SlotRepository) Get(ctx context.Context, id string) (domain.Slot, error) {
	const query = `SELECT id, state, holder_name, expires_at FROM slots WHERE id = $1`

	slot, err := scanSlot(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Slot{}, domain.ErrSlotNotFound
		}
		return domain.Slot{}, fmt.Errorf("get slot: %w", err)
	}
	return slot, nil
}

func (r *SlotRepository) ListAll(ctx context.Context) ([]domain.Slot, error) {
	const query = `SELECT id, state, holder_name, expires_at FROM slots ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

func (r *SlotRepository) ListReserved(ctx context.Context) ([]domain.Reservation, error) {
	const query = `SELECT id, holder_name FROM slots WHERE state = 'reserved' ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list reserved: %w", err)
	}
	defer rows.Close()

	var reservations []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		if err := rows.Scan(&res.SlotID, &res.HolderName); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reserved: %w", err)
	}
	return reservations, nil
}

// TransitionIfState applies the mutation only if the stored state still
// equals expected at the moment of the update. The single conditional UPDATE
// is the serialization point: two racing callers can never both see it
// applied for the same expected state.
func (r *SlotRepository) TransitionIfState(ctx context.Context, id string, expected domain.SlotState, m domain.Mutation) (bool, error) {
	const stmt = `
UPDATE slots
SET state = $1, holder_name = $2, expires_at = $3
WHERE id = $4 AND state = $5`

	tag, err := r.pool.Exec(ctx, stmt, m.State, nullableString(m.HolderName), m.ExpiresAt, id, expected)
	if err != nil {
		return false, fmt.Errorf("transition slot %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// FreeExpired reverts every soft-lock whose expiry has passed and returns
// exactly the ids it changed. Racing sweeps each report only their own rows,
// which keeps concurrent triggers idempotent.
func (r *SlotRepository) FreeExpired(ctx context.Context, now time.Time) ([]string, error) {
	const stmt = `
UPDATE slots
SET state = 'free', holder_name = NULL, expires_at = NULL
WHERE state = 'soft_locked' AND expires_at < $1
RETURNING id`

	rows, err := r.pool.Query(ctx, stmt, now)
	if err != nil {
		return nil, fmt.Errorf("free expired: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("free expired: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func scanSlot(row pgx.Row) (domain.Slot, error) {
	var (
		slot   domain.Slot
		holder *string
	)
	if err := row.Scan(&slot.ID, &slot.State, &holder, &slot.ExpiresAt); err != nil {
		return domain.Slot{}, err
	}
	if holder != nil {
		slot.HolderName = *holder
	}
	return slot, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
