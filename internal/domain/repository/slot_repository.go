package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"reservation_app/internal/common"
	"reservation_app/internal/domain/model"
)

// SlotRepository owns slot records and the lifecycle transitions. Book and
// Cancel are atomic check-and-set operations.
type SlotRepository interface {
	Create(ctx context.Context, slot *model.Slot) error
	FindByID(ctx context.Context, id int64) (*model.Slot, error)
	// Book moves an available slot to booked for patientID. Returns
	// ErrSlotUnavailable if someone else booked it first and
	// ErrInvalidTransition if it was cancelled.
	Book(ctx context.Context, id, patientID int64, at time.Time) (*model.Slot, error)
	// Cancel moves an available or booked slot to cancelled. The returned
	// slot keeps the patient id of a booked slot.
	Cancel(ctx context.Context, id int64, at time.Time) (*model.Slot, error)
	ListByStatus(ctx context.Context, status model.SlotStatus) ([]model.Slot, error)
	ListByDoctor(ctx context.Context, doctorID int64) ([]model.Slot, error)
	ListByPatient(ctx context.Context, patientID int64) ([]model.Slot, error)
	List(ctx context.Context, filter model.SlotFilter) ([]model.Slot, error)
	Delete(ctx context.Context, id int64) error
}

type pgSlotRepository struct {
	db *sql.DB
}

func NewPgSlotRepository(db *sql.DB) SlotRepository {
	return &pgSlotRepository{db: db}
}

const slotColumns = `id, doctor_id, user_id, reservation_time, description, status, created_at, updated_at`

func scanSlot(row interface{ Scan(...any) error }) (*model.Slot, error) {
	slot := &model.Slot{}
	var userID sql.NullInt64
	err := row.Scan(&slot.ID, &slot.DoctorID, &userID, &slot.ReservationTime, &slot.Description,
		&slot.Status, &slot.CreatedAt, &slot.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		slot.UserID = &userID.Int64
	}
	slot.ReservationTime = slot.ReservationTime.UTC()
	return slot, nil
}

func (r *pgSlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	query := `INSERT INTO slots (doctor_id, user_id, reservation_time, description, status)
	          VALUES ($1, NULL, $2, $3, $4)
	          RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, slot.DoctorID, slot.ReservationTime, slot.Description, model.SlotAvailable).
		Scan(&slot.ID, &slot.CreatedAt, &slot.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pgSlotRepository.Create: %w", common.TranslatePgError(err))
	}
	slot.Status = model.SlotAvailable
	slot.UserID = nil
	return nil
}

func (r *pgSlotRepository) FindByID(ctx context.Context, id int64) (*model.Slot, error) {
	slot, err := scanSlot(r.db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSlotRepository.FindByID: %w", err)
	}
	return slot, nil
}

func (r *pgSlotRepository) Book(ctx context.Context, id, patientID int64, at time.Time) (*model.Slot, error) {
	// Single conditional UPDATE: Postgres row locking makes concurrent
	// bookers serialize, and only the first one still sees 'available'.
	query := `UPDATE slots SET status = $3, user_id = $2, updated_at = $4
	          WHERE id = $1 AND status = $5
	          RETURNING ` + slotColumns
	slot, err := scanSlot(r.db.QueryRowContext(ctx, query, id, patientID, model.SlotBooked, at, model.SlotAvailable))
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pgSlotRepository.Book: %w", common.TranslatePgError(err))
	}
	return nil, r.classifyRejected(ctx, id, "book")
}

func (r *pgSlotRepository) Cancel(ctx context.Context, id int64, at time.Time) (*model.Slot, error) {
	query := `UPDATE slots SET status = $2, updated_at = $3
	          WHERE id = $1 AND status IN ($4, $5)
	          RETURNING ` + slotColumns
	slot, err := scanSlot(r.db.QueryRowContext(ctx, query, id, model.SlotCancelled, at, model.SlotAvailable, model.SlotBooked))
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pgSlotRepository.Cancel: %w", err)
	}
	return nil, r.classifyRejected(ctx, id, "cancel")
}

// classifyRejected explains why a conditional transition touched no row.
func (r *pgSlotRepository) classifyRejected(ctx context.Context, id int64, op string) error {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return rejectedTransition(current, op)
}

func rejectedTransition(current *model.Slot, op string) error {
	if op == "book" && current.Status == model.SlotBooked {
		return fmt.Errorf("slot %d: %w", current.ID, common.ErrSlotUnavailable)
	}
	return fmt.Errorf("cannot %s slot %d in status %s: %w", op, current.ID, current.Status, common.ErrInvalidTransition)
}

func (r *pgSlotRepository) ListByStatus(ctx context.Context, status model.SlotStatus) ([]model.Slot, error) {
	return r.List(ctx, model.SlotFilter{Status: status})
}

func (r *pgSlotRepository) ListByDoctor(ctx context.Context, doctorID int64) ([]model.Slot, error) {
	return r.List(ctx, model.SlotFilter{DoctorID: doctorID})
}

func (r *pgSlotRepository) ListByPatient(ctx context.Context, patientID int64) ([]model.Slot, error) {
	return r.List(ctx, model.SlotFilter{UserID: patientID})
}

func (r *pgSlotRepository) List(ctx context.Context, filter model.SlotFilter) ([]model.Slot, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.DoctorID != 0 {
		args = append(args, filter.DoctorID)
		where = append(where, fmt.Sprintf("doctor_id = $%d", len(args)))
	}
	if filter.UserID != 0 {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}

	query := `SELECT ` + slotColumns + ` FROM slots`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY reservation_time, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgSlotRepository.List: %w", err)
	}
	defer rows.Close()

	slots := []model.Slot{}
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("pgSlotRepository.List scan: %w", err)
		}
		slots = append(slots, *slot)
	}
	return slots, rows.Err()
}

func (r *pgSlotRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgSlotRepository.Delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgSlotRepository.Delete: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
