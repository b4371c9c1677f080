package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	apperrors "github.com/recruitflow/inbox-server-go/internal/errors"
	"github.com/recruitflow/inbox-server-go/internal/model"
	"github.com/recruitflow/inbox-server-go/internal/repository"
)

// ChannelService is the channel registry: it maps a platform account plus an
// external channel identifier to the internal channel record.
type ChannelService struct {
	repo repository.ChannelRepository
}

func NewChannelService(repo repository.ChannelRepository) *ChannelService {
	return &ChannelService{repo: repo}
}

// Resolve finds-or-creates the channel for the unique
// (platform account, external channel id) pair and touches last_synced_at.
// Duplicate creation races collapse on the unique constraint.
func (s *ChannelService) Resolve(ctx context.Context, params model.ResolveChannelParams) (*model.Channel, error) {
	ch, err := s.repo.Upsert(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("resolve channel: %w", err)
	}

	log.Debug().
		Str("channelId", ch.ID).
		Str("platformAccountId", ch.PlatformAccountID).
		Str("externalChannelId", ch.ExternalChannelID).
		Msg("channel resolved")

	return ch, nil
}

func (s *ChannelService) FindByID(ctx context.Context, id string) (*model.Channel, error) {
	ch, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find channel: %w", err)
	}
	if ch == nil {
		return nil, apperrors.NotFound("Channel")
	}
	return ch, nil
}

func (s *ChannelService) ListActive(ctx context.Context) ([]model.Channel, error) {
	return s.repo.FindActive(ctx)
}

// Deactivate flips the active flag; deactivating an already-inactive channel
// is absorbed. Channels are never hard-deleted while conversations reference
// them.
func (s *ChannelService) Deactivate(ctx context.Context, id string) error {
	ch, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("find channel: %w", err)
	}
	if ch == nil {
		return apperrors.NotFound("Channel")
	}
	if !ch.Active {
		return nil
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		return fmt.Errorf("deactivate channel: %w", err)
	}

	log.Info().Str("channelId", id).Msg("channel deactivated")
	return nil
}
