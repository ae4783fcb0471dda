package repository

import (
	"context"
	"fmt"

	"github.com/shopfloor/planner/common/db"
)

// Schema is the planner's table set. Applied by the bootstrap DB init hook.
const Schema = `
CREATE TABLE IF NOT EXISTS job_card (
	card_id           UUID PRIMARY KEY,
	card_number       TEXT NOT NULL,
	order_id          UUID NOT NULL,
	child_part_id     UUID,
	kind              TEXT NOT NULL,
	step_id           TEXT NOT NULL,
	step_index        INT NOT NULL,
	quantity          BIGINT NOT NULL,
	completed_qty     BIGINT NOT NULL DEFAULT 0,
	rejected_qty      BIGINT NOT NULL DEFAULT 0,
	rework_qty        BIGINT NOT NULL DEFAULT 0,
	in_progress_qty   BIGINT NOT NULL DEFAULT 0,
	status            TEXT NOT NULL,
	priority          INT NOT NULL DEFAULT 0,
	material_status   TEXT NOT NULL,
	material          JSONB,
	shortfall         JSONB,
	unsatisfiable     BOOLEAN NOT NULL DEFAULT FALSE,
	scrap_accepted    BOOLEAN NOT NULL DEFAULT FALSE,
	rework_of_card_id UUID,
	rework_card_id    UUID,
	machine_id        TEXT,
	operator_id       TEXT,
	updated_by        TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL,
	CONSTRAINT quantity_conserved CHECK (
		completed_qty + rejected_qty + rework_qty + in_progress_qty <= quantity
	)
);

CREATE INDEX IF NOT EXISTS idx_job_card_order ON job_card (order_id);

CREATE TABLE IF NOT EXISTS dependency_edge (
	order_id     UUID NOT NULL,
	from_card_id UUID NOT NULL REFERENCES job_card (card_id),
	to_card_id   UUID NOT NULL REFERENCES job_card (card_id),
	release      JSONB,
	PRIMARY KEY (from_card_id, to_card_id)
);

CREATE INDEX IF NOT EXISTS idx_dependency_edge_order ON dependency_edge (order_id);

CREATE TABLE IF NOT EXISTS graph_patch (
	patch_id   UUID PRIMARY KEY,
	order_id   UUID NOT NULL,
	ops        JSONB NOT NULL,
	reason     TEXT NOT NULL,
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_graph_patch_order ON graph_patch (order_id);

CREATE TABLE IF NOT EXISTS material_shortfall (
	card_id          UUID PRIMARY KEY REFERENCES job_card (card_id),
	material_id      TEXT NOT NULL,
	required         NUMERIC NOT NULL,
	available        NUMERIC NOT NULL,
	shortfall        NUMERIC NOT NULL,
	unit             TEXT NOT NULL,
	notified_at      TIMESTAMPTZ NOT NULL,
	last_reminder_at TIMESTAMPTZ,
	reminder_count   INT NOT NULL DEFAULT 0
);
`

// InitSchema applies the planner schema
func InitSchema(database *db.DB) error {
	if _, err := database.Exec(context.Background(), Schema); err != nil {
		return fmt.Errorf("apply planner schema: %w", err)
	}
	return nil
}
