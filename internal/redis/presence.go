package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const presenceTTL = 24 * time.Hour

// Presence mirrors room membership into Redis sets (room:<id>:peers) so
// external tooling can inspect occupancy. The hub's in-memory membership
// stays authoritative; failures here are logged and otherwise ignored.
type Presence struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewPresence(client *redis.Client, log zerolog.Logger) *Presence {
	return &Presence{
		client: client,
		log:    log.With().Str("component", "presence").Logger(),
	}
}

func (p *Presence) Joined(ctx context.Context, roomID, connID string) {
	key := "room:" + roomID + ":peers"
	if err := p.client.SAdd(ctx, key, connID).Err(); err != nil {
		p.log.Warn().Err(err).Str("room", roomID).Msg("presence add failed")
		return
	}
	p.client.Expire(ctx, key, presenceTTL)
}

func (p *Presence) Left(ctx context.Context, roomID, connID string) {
	if err := p.client.SRem(ctx, "room:"+roomID+":peers", connID).Err(); err != nil {
		p.log.Warn().Err(err).Str("room", roomID).Msg("presence remove failed")
	}
}
