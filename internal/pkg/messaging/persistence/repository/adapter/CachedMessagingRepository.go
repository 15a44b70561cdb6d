package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	cport "github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/cache/port"
	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

const (
	profileKeyPrefix  = "messaging:profile:"
	defaultProfileTTL = 10 * time.Minute
)

// CachedMessagingRepository fronts UserProfiles with a cache; every other
// call goes straight to the wrapped repository. Cache failures degrade to
// direct lookups.
type CachedMessagingRepository struct {
	repository.MessagingRepository

	cache cport.Cache
	ttl   time.Duration
	log   zerolog.Logger
}

func NewCachedMessagingRepository(inner repository.MessagingRepository, cache cport.Cache, ttl time.Duration, log zerolog.Logger) *CachedMessagingRepository {
	if ttl <= 0 {
		ttl = defaultProfileTTL
	}
	return &CachedMessagingRepository{MessagingRepository: inner, cache: cache, ttl: ttl, log: log}
}

var _ repository.MessagingRepository = (*CachedMessagingRepository)(nil)

func (r *CachedMessagingRepository) UserProfiles(ctx context.Context, userIDs []string) (map[string]messaging.SenderProfile, error) {
	out := make(map[string]messaging.SenderProfile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = profileKeyPrefix + id
	}
	hits, err := r.cache.MGet(ctx, keys...)
	if err != nil {
		r.log.Warn().Err(err).Msg("profile cache: mget")
		hits = nil
	}

	var missing []string
	for i, id := range userIDs {
		raw, ok := hits[keys[i]]
		if !ok {
			missing = append(missing, id)
			continue
		}
		var p messaging.SenderProfile
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			missing = append(missing, id)
			continue
		}
		out[id] = p
	}
	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := r.MessagingRepository.UserProfiles(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, p := range fresh {
		out[id] = p
		raw, err := json.Marshal(p)
		if err != nil {
			continue
		}
		if err := r.cache.Set(ctx, profileKeyPrefix+id, string(raw), r.ttl); err != nil {
			r.log.Warn().Err(err).Str("user_id", id).Msg("profile cache: set")
		}
	}
	return out, nil
}
