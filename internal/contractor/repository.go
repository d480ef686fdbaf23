package contractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/metrik/metrik/internal/shared"
)

// PgRepository persists contractor settings on the parties table.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PgRepository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const getSettingsSQL = `SELECT contractor_settings FROM parties
WHERE business_id = $1 AND id = $2 AND party_type = 'contractor'`

// GetSettings loads the settings of a contractor party.
func (r *PgRepository) GetSettings(ctx context.Context, businessID, partyID string) (Settings, error) {
	var raw []byte
	if err := r.pool.QueryRow(ctx, getSettingsSQL, businessID, partyID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Settings{}, ErrSettingsNotFound
		}
		return Settings{}, err
	}
	var s Settings
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s); err != nil {
			return Settings{}, fmt.Errorf("contractor: decode settings: %w", err)
		}
	}
	s.PartyID = partyID
	return s, nil
}

// ItemUnit returns the unit of measure string of an item.
func (r *PgRepository) ItemUnit(ctx context.Context, businessID, itemID string) (string, error) {
	var unit string
	err := r.pool.QueryRow(ctx, `SELECT unit FROM items WHERE business_id = $1 AND id = $2`, businessID, itemID).Scan(&unit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: contractor: item %s", shared.ErrNotFound, itemID)
		}
		return "", err
	}
	return unit, nil
}

// SaveSettings overwrites the settings document of a contractor party.
func (r *PgRepository) SaveSettings(ctx context.Context, businessID string, s Settings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE parties SET contractor_settings = $3, updated_at = NOW()
WHERE business_id = $1 AND id = $2 AND party_type = 'contractor'`, businessID, s.PartyID, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSettingsNotFound
	}
	return nil
}
