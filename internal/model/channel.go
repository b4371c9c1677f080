package model

import (
	"time"
)

type Channel struct {
	ID                string      `db:"id" json:"id"`
	PlatformAccountID string      `db:"platform_account_id" json:"platformAccountId"`
	ChannelType       ChannelType `db:"channel_type" json:"channelType"`
	ExternalChannelID string      `db:"external_channel_id" json:"externalChannelId"`
	DisplayName       string      `db:"display_name" json:"displayName"`
	Active            bool        `db:"active" json:"active"`
	LastSyncedAt      time.Time   `db:"last_synced_at" json:"lastSyncedAt"`
	CreatedAt         time.Time   `db:"created_at" json:"createdAt"`
}

type ResolveChannelParams struct {
	PlatformAccountID string
	ExternalChannelID string
	ChannelType       ChannelType
	DisplayName       string
}
