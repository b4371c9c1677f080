package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/recruitflow/inbox-server-go/internal/model"
)

type ChannelRepository interface {
	FindByID(ctx context.Context, id string) (*model.Channel, error)
	FindByExternalID(ctx context.Context, platformAccountID, externalChannelID string) (*model.Channel, error)
	FindActive(ctx context.Context) ([]model.Channel, error)
	Upsert(ctx context.Context, params model.ResolveChannelParams) (*model.Channel, error)
	Deactivate(ctx context.Context, id string) error
}

type channelRepo struct {
	db *sqlx.DB
}

func NewChannelRepository(db *sqlx.DB) ChannelRepository {
	return &channelRepo{db: db}
}

func (r *channelRepo) FindByID(ctx context.Context, id string) (*model.Channel, error) {
	var ch model.Channel
	err := r.db.GetContext(ctx, &ch, `SELECT * FROM channels WHERE id = $1`, id)
	return HandleNotFound(&ch, err)
}

func (r *channelRepo) FindByExternalID(ctx context.Context, platformAccountID, externalChannelID string) (*model.Channel, error) {
	var ch model.Channel
	err := r.db.GetContext(ctx, &ch, `
		SELECT * FROM channels
		WHERE platform_account_id = $1 AND external_channel_id = $2
	`, platformAccountID, externalChannelID)
	return HandleNotFound(&ch, err)
}

func (r *channelRepo) FindActive(ctx context.Context) ([]model.Channel, error) {
	var channels []model.Channel
	err := r.db.SelectContext(ctx, &channels, `
		SELECT * FROM channels
		WHERE active = TRUE
		ORDER BY last_synced_at DESC
	`)
	return channels, err
}

// Upsert resolves a channel by its (platform_account_id, external_channel_id)
// unique pair, creating it on first sight and touching last_synced_at on
// every resolve.
func (r *channelRepo) Upsert(ctx context.Context, params model.ResolveChannelParams) (*model.Channel, error) {
	var ch model.Channel
	err := r.db.GetContext(ctx, &ch, `
		INSERT INTO channels
			(platform_account_id, external_channel_id, channel_type, display_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (platform_account_id, external_channel_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			last_synced_at = NOW()
		RETURNING *
	`, params.PlatformAccountID, params.ExternalChannelID, params.ChannelType, params.DisplayName)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// Deactivate flips the active flag. Channels referenced by conversations are
// never deleted.
func (r *channelRepo) Deactivate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE channels SET active = FALSE WHERE id = $1
	`, id)
	return err
}
