package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/entities"
)

type settlementRepository struct {
	tx *sqlx.Tx
}

// settlementRow maps the events table; metadata is stored as jsonb
type settlementRow struct {
	ID          uuid.UUID       `db:"id"`
	UserID      uuid.UUID       `db:"user_id"`
	Kind        string          `db:"kind"`
	Amount      decimal.Decimal `db:"amount"`
	Description string          `db:"description"`
	Metadata    []byte          `db:"metadata"`
	CreatedAt   time.Time       `db:"created_at"`
}

func (r *settlementRepository) Create(ctx context.Context, event *entities.SettlementEvent) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal settlement metadata: %w", err)
	}

	query := `
		INSERT INTO settlement_events (id, user_id, kind, amount, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.tx.ExecContext(ctx, query,
		event.ID,
		event.UserID,
		event.Kind,
		event.Amount,
		event.Description,
		metadata,
		event.CreatedAt,
	)
	if err != nil {
		return wrapInsertErr("create settlement event", err)
	}
	return nil
}

func (r *settlementRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.SettlementEvent, error) {
	query := `
		SELECT id, user_id, kind, amount, description, metadata, created_at
		FROM settlement_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows := []settlementRow{}
	if err := r.tx.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("list settlement events: %w", err)
	}

	events := make([]*entities.SettlementEvent, 0, len(rows))
	for _, row := range rows {
		event := &entities.SettlementEvent{
			ID:          row.ID,
			UserID:      row.UserID,
			Kind:        entities.SettlementKind(row.Kind),
			Amount:      row.Amount,
			Description: row.Description,
			CreatedAt:   row.CreatedAt,
		}
		if len(row.Metadata) > 0 {
			if err := json.Unmarshal(row.Metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal settlement metadata: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, nil
}
