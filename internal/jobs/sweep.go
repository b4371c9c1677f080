package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/recruitflow/inbox-server-go/internal/model"
	redisclient "github.com/recruitflow/inbox-server-go/internal/redis"
	"github.com/recruitflow/inbox-server-go/internal/repository"
	"github.com/recruitflow/inbox-server-go/internal/sse"
)

const slaNotifyTTL = 24 * time.Hour

// SweepJob runs the periodic maintenance passes: failing outbound messages
// that never got a delivery acknowledgment, and publishing advisory breach
// events for conversations past their response deadline. Breach itself is
// derived at read time; the sweep only notifies.
type SweepJob struct {
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	broker        *sse.Broker
	redis         *redisclient.Client
	outboundTTL   time.Duration
	interval      time.Duration
	done          chan struct{}
}

func NewSweepJob(
	messages repository.MessageRepository,
	conversations repository.ConversationRepository,
	broker *sse.Broker,
	redisClient *redisclient.Client,
	outboundTTL time.Duration,
	interval time.Duration,
) *SweepJob {
	return &SweepJob{
		messages:      messages,
		conversations: conversations,
		broker:        broker,
		redis:         redisClient,
		outboundTTL:   outboundTTL,
		interval:      interval,
		done:          make(chan struct{}),
	}
}

func (j *SweepJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("sweep job started")
}

func (j *SweepJob) Stop() {
	close(j.done)
	log.Info().Msg("sweep job stopped")
}

func (j *SweepJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *SweepJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.expirePendingOutbound(ctx)
	j.notifyBreaches(ctx)
}

func (j *SweepJob) expirePendingOutbound(ctx context.Context) {
	cutoff := time.Now().Add(-j.outboundTTL)
	count, err := j.messages.ExpirePending(ctx, cutoff, "delivery acknowledgment timed out")
	if err != nil {
		log.Error().Err(err).Msg("failed to expire pending outbound messages")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("expired pending outbound messages")
	}
}

func (j *SweepJob) notifyBreaches(ctx context.Context) {
	now := time.Now()
	breached, err := j.conversations.FindBreached(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("failed to find breached conversations")
		return
	}

	for _, conv := range breached {
		// One notification per conversation per deadline, across instances.
		key := fmt.Sprintf("sla:notified:%s:%d", conv.ID, conv.SlaDeadlineAt.Unix())
		set, err := j.redis.SetNX(ctx, key, 1, slaNotifyTTL).Result()
		if err != nil {
			log.Warn().Err(err).Str("conversationId", conv.ID).Msg("sla notify dedup check failed")
			continue
		}
		if !set {
			continue
		}

		j.publishBreach(ctx, &conv)
	}
}

func (j *SweepJob) publishBreach(ctx context.Context, conv *model.Conversation) {
	data, err := json.Marshal(map[string]any{
		"conversationId": conv.ID,
		"channelId":      conv.ChannelID,
		"priority":       conv.Priority,
		"slaDeadlineAt":  conv.SlaDeadlineAt,
	})
	if err != nil {
		return
	}

	if err := j.broker.Publish(ctx, conv.ChannelID, sse.Event{
		Type: sse.EventSlaBreached,
		Data: data,
	}); err != nil {
		log.Error().Err(err).Str("conversationId", conv.ID).Msg("failed to publish sla breach")
		return
	}

	log.Warn().
		Str("conversationId", conv.ID).
		Str("priority", string(conv.Priority)).
		Time("deadline", *conv.SlaDeadlineAt).
		Msg("sla deadline breached")
}
