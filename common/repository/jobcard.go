package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopfloor/planner/common/db"
	"github.com/shopfloor/planner/common/models"
)

// PgStore is the Postgres-backed job card store
type PgStore struct {
	db *db.DB
}

// NewPgStore creates a Postgres store
func NewPgStore(database *db.DB) *PgStore {
	return &PgStore{db: database}
}

const cardColumns = `card_id, card_number, order_id, child_part_id, kind, step_id, step_index,
	quantity, completed_qty, rejected_qty, rework_qty, in_progress_qty,
	status, priority, material_status, material, shortfall,
	unsatisfiable, scrap_accepted, rework_of_card_id, rework_card_id,
	machine_id, operator_id, updated_by, created_at, updated_at`

// LoadOrderGraph returns all cards and edges of an order
func (s *PgStore) LoadOrderGraph(ctx context.Context, orderID uuid.UUID) ([]*models.JobCard, []models.DependencyEdge, error) {
	cardQuery := fmt.Sprintf(`
		SELECT %s FROM job_card
		WHERE order_id = $1
		ORDER BY created_at, card_number
	`, cardColumns)

	rows, err := s.db.Query(ctx, cardQuery, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load order cards: %w", err)
	}
	defer rows.Close()

	var cards []*models.JobCard
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, nil, err
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating cards: %w", err)
	}
	if len(cards) == 0 {
		return nil, nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}

	edgeQuery := `
		SELECT from_card_id, to_card_id, release
		FROM dependency_edge
		WHERE order_id = $1
	`
	edgeRows, err := s.db.Query(ctx, edgeQuery, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load order edges: %w", err)
	}
	defer edgeRows.Close()

	var edges []models.DependencyEdge
	for edgeRows.Next() {
		var edge models.DependencyEdge
		var releaseRaw []byte
		if err := edgeRows.Scan(&edge.FromCardID, &edge.ToCardID, &releaseRaw); err != nil {
			return nil, nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		if len(releaseRaw) > 0 {
			edge.Release = &models.ReleasePolicy{}
			if err := json.Unmarshal(releaseRaw, edge.Release); err != nil {
				return nil, nil, fmt.Errorf("failed to decode release policy: %w", err)
			}
		}
		edges = append(edges, edge)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating edges: %w", err)
	}

	return cards, edges, nil
}

// GetCard returns a single card by id
func (s *PgStore) GetCard(ctx context.Context, cardID uuid.UUID) (*models.JobCard, error) {
	query := fmt.Sprintf(`SELECT %s FROM job_card WHERE card_id = $1`, cardColumns)

	card, err := scanCard(s.db.QueryRow(ctx, query, cardID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("card %s: %w", cardID, ErrNotFound)
		}
		return nil, err
	}
	return card, nil
}

// Commit applies a mutation atomically
func (s *PgStore) Commit(ctx context.Context, m *Mutation) error {
	if m.Empty() {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, card := range m.NewCards {
		if err := insertCard(ctx, tx, card); err != nil {
			return err
		}
	}
	for _, edge := range m.NewEdges {
		if err := insertEdge(ctx, tx, m.OrderID, edge); err != nil {
			return err
		}
	}
	for _, card := range m.UpdatedCards {
		if err := updateCard(ctx, tx, card); err != nil {
			return err
		}
	}
	if m.Patch != nil {
		if err := insertPatch(ctx, tx, m.Patch); err != nil {
			return err
		}
	}
	for _, shortfall := range m.UpsertShortfalls {
		if err := upsertShortfall(ctx, tx, shortfall); err != nil {
			return err
		}
	}
	for _, cardID := range m.DeleteShortfallCards {
		if _, err := tx.Exec(ctx, `DELETE FROM material_shortfall WHERE card_id = $1`, cardID); err != nil {
			return fmt.Errorf("failed to delete shortfall: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit mutation: %w", err)
	}
	return nil
}

func insertCard(ctx context.Context, tx pgx.Tx, card *models.JobCard) error {
	materialRaw, shortfallRaw, err := encodeCardJSON(card)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO job_card (
			card_id, card_number, order_id, child_part_id, kind, step_id, step_index,
			quantity, completed_qty, rejected_qty, rework_qty, in_progress_qty,
			status, priority, material_status, material, shortfall,
			unsatisfiable, scrap_accepted, rework_of_card_id, rework_card_id,
			machine_id, operator_id, updated_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26
		)
	`
	_, err = tx.Exec(ctx, query,
		card.CardID, card.CardNumber, card.OrderID, card.ChildPartID, card.Kind,
		card.StepID, card.StepIndex,
		card.Quantity, card.CompletedQty, card.RejectedQty, card.ReworkQty, card.InProgressQty,
		card.Status, card.Priority, card.MaterialStatus, materialRaw, shortfallRaw,
		card.Unsatisfiable, card.ScrapAccepted, card.ReworkOfCardID, card.ReworkCardID,
		card.MachineID, card.OperatorID, card.UpdatedBy, card.CreatedAt, card.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.CardID, err)
	}
	return nil
}

func updateCard(ctx context.Context, tx pgx.Tx, card *models.JobCard) error {
	materialRaw, shortfallRaw, err := encodeCardJSON(card)
	if err != nil {
		return err
	}

	query := `
		UPDATE job_card SET
			completed_qty = $2, rejected_qty = $3, rework_qty = $4, in_progress_qty = $5,
			status = $6, material_status = $7, material = $8, shortfall = $9,
			unsatisfiable = $10, scrap_accepted = $11, rework_card_id = $12,
			machine_id = $13, operator_id = $14, updated_by = $15, updated_at = $16
		WHERE card_id = $1
	`
	tag, err := tx.Exec(ctx, query,
		card.CardID,
		card.CompletedQty, card.RejectedQty, card.ReworkQty, card.InProgressQty,
		card.Status, card.MaterialStatus, materialRaw, shortfallRaw,
		card.Unsatisfiable, card.ScrapAccepted, card.ReworkCardID,
		card.MachineID, card.OperatorID, card.UpdatedBy, card.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update card %s: %w", card.CardID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("card %s: %w", card.CardID, ErrNotFound)
	}
	return nil
}

func insertEdge(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, edge models.DependencyEdge) error {
	var releaseRaw []byte
	if edge.Release != nil {
		var err error
		releaseRaw, err = json.Marshal(edge.Release)
		if err != nil {
			return fmt.Errorf("failed to encode release policy: %w", err)
		}
	}

	query := `
		INSERT INTO dependency_edge (order_id, from_card_id, to_card_id, release)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.Exec(ctx, query, orderID, edge.FromCardID, edge.ToCardID, releaseRaw); err != nil {
		return fmt.Errorf("failed to insert edge %s->%s: %w", edge.FromCardID, edge.ToCardID, err)
	}
	return nil
}

func insertPatch(ctx context.Context, tx pgx.Tx, patch *models.GraphPatch) error {
	query := `
		INSERT INTO graph_patch (patch_id, order_id, ops, reason, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.Exec(ctx, query,
		patch.PatchID, patch.OrderID, []byte(patch.Ops), patch.Reason, patch.CreatedBy, patch.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert graph patch: %w", err)
	}
	return nil
}

func encodeCardJSON(card *models.JobCard) (materialRaw, shortfallRaw []byte, err error) {
	if card.Material != nil {
		materialRaw, err = json.Marshal(card.Material)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode material requirement: %w", err)
		}
	}
	if card.Shortfall != nil {
		shortfallRaw, err = json.Marshal(card.Shortfall)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode shortfall: %w", err)
		}
	}
	return materialRaw, shortfallRaw, nil
}

func scanCard(row pgx.Row) (*models.JobCard, error) {
	card := &models.JobCard{}
	var materialRaw, shortfallRaw []byte

	err := row.Scan(
		&card.CardID, &card.CardNumber, &card.OrderID, &card.ChildPartID, &card.Kind,
		&card.StepID, &card.StepIndex,
		&card.Quantity, &card.CompletedQty, &card.RejectedQty, &card.ReworkQty, &card.InProgressQty,
		&card.Status, &card.Priority, &card.MaterialStatus, &materialRaw, &shortfallRaw,
		&card.Unsatisfiable, &card.ScrapAccepted, &card.ReworkOfCardID, &card.ReworkCardID,
		&card.MachineID, &card.OperatorID, &card.UpdatedBy, &card.CreatedAt, &card.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan card: %w", err)
	}

	if len(materialRaw) > 0 {
		card.Material = &models.MaterialRequirement{}
		if err := json.Unmarshal(materialRaw, card.Material); err != nil {
			return nil, fmt.Errorf("failed to decode material requirement: %w", err)
		}
	}
	if len(shortfallRaw) > 0 {
		card.Shortfall = &models.MaterialShortfall{}
		if err := json.Unmarshal(shortfallRaw, card.Shortfall); err != nil {
			return nil, fmt.Errorf("failed to decode shortfall: %w", err)
		}
	}
	return card, nil
}

func upsertShortfall(ctx context.Context, tx pgx.Tx, s *models.MaterialShortfall) error {
	query := `
		INSERT INTO material_shortfall (
			card_id, material_id, required, available, shortfall, unit,
			notified_at, last_reminder_at, reminder_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (card_id) DO UPDATE SET
			required = EXCLUDED.required,
			available = EXCLUDED.available,
			shortfall = EXCLUDED.shortfall
	`
	_, err := tx.Exec(ctx, query,
		s.CardID, s.MaterialID, s.Required, s.Available, s.Shortfall, s.Unit,
		s.NotifiedAt, s.LastReminderAt, s.ReminderCount)
	if err != nil {
		return fmt.Errorf("failed to upsert shortfall for card %s: %w", s.CardID, err)
	}
	return nil
}

// ListStale lists shortfalls whose last notification is older than the cutoff
func (s *PgStore) ListStale(ctx context.Context, olderThan time.Time) ([]*models.MaterialShortfall, error) {
	query := `
		SELECT card_id, material_id, required, available, shortfall, unit,
			notified_at, last_reminder_at, reminder_count
		FROM material_shortfall
		WHERE COALESCE(last_reminder_at, notified_at) < $1
		ORDER BY notified_at
	`
	rows, err := s.db.Query(ctx, query, olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale shortfalls: %w", err)
	}
	defer rows.Close()

	var shortfalls []*models.MaterialShortfall
	for rows.Next() {
		sf := &models.MaterialShortfall{}
		err := rows.Scan(
			&sf.CardID, &sf.MaterialID, &sf.Required, &sf.Available, &sf.Shortfall, &sf.Unit,
			&sf.NotifiedAt, &sf.LastReminderAt, &sf.ReminderCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shortfall: %w", err)
		}
		shortfalls = append(shortfalls, sf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shortfalls: %w", err)
	}
	return shortfalls, nil
}

// BumpReminder records a reminder send
func (s *PgStore) BumpReminder(ctx context.Context, cardID uuid.UUID, at time.Time) error {
	query := `
		UPDATE material_shortfall
		SET reminder_count = reminder_count + 1, last_reminder_at = $2
		WHERE card_id = $1
	`
	if _, err := s.db.Exec(ctx, query, cardID, at); err != nil {
		return fmt.Errorf("failed to bump reminder for card %s: %w", cardID, err)
	}
	return nil
}
