package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jgivc/csclient/internal/common"
	"github.com/jgivc/csclient/internal/util"
	"github.com/redis/go-redis/v9"
)

const (
	KeyPrefix   = "cs"
	KeyTokenMap = "tk"  // HASH. cs:<server hash>:tk hashed email: token
	KeyClient   = "cid" // STRING. cs:<server hash>:cid

	KeySeparator = ":"
)

type redisRepository struct {
	cl     *redis.Client
	server string
	log    *slog.Logger
}

func NewRedisRepository(cl *redis.Client, server string, log *slog.Logger) *redisRepository {
	return &redisRepository{
		cl:     cl,
		server: util.ServerHash(server),
		log:    log.With(slog.String("item", "RedisTokenRepository")),
	}
}

func (r *redisRepository) Token(ctx context.Context, email string) (string, error) {
	token, err := r.cl.HGet(ctx, getKey(KeyPrefix, r.server, KeyTokenMap), util.HashKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", common.ErrTokenNotFound
		}

		return "", fmt.Errorf("cannot get verification token: %w", err)
	}

	return token, nil
}

func (r *redisRepository) SaveToken(ctx context.Context, email, token string) error {
	if _, err := r.cl.HSet(ctx, getKey(KeyPrefix, r.server, KeyTokenMap), util.HashKey(email), token).Result(); err != nil {
		r.log.Error("Cannot save verification token", slog.Any("error", err))

		return fmt.Errorf("cannot save verification token: %w", err)
	}

	return nil
}

func (r *redisRepository) DeleteToken(ctx context.Context, email string) error {
	if _, err := r.cl.HDel(ctx, getKey(KeyPrefix, r.server, KeyTokenMap), util.HashKey(email)).Result(); err != nil {
		return fmt.Errorf("cannot delete verification token: %w", err)
	}

	return nil
}

func (r *redisRepository) ClientID(ctx context.Context) (string, error) {
	id, err := r.cl.Get(ctx, getKey(KeyPrefix, r.server, KeyClient)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", common.ErrClientIDNotFound
		}

		return "", fmt.Errorf("cannot get client id: %w", err)
	}

	return id, nil
}

func (r *redisRepository) SaveClientID(ctx context.Context, id string) error {
	if _, err := r.cl.Set(ctx, getKey(KeyPrefix, r.server, KeyClient), id, 0).Result(); err != nil {
		r.log.Error("Cannot save client id", slog.Any("error", err))

		return fmt.Errorf("cannot save client id: %w", err)
	}

	return nil
}

func getKey(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}
