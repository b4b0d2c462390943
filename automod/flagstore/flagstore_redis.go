package flagstore

import (
	"context"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"
)

var redisFlagPrefix string = "spotter/flag/"

type RedisFlagStore struct {
	Client *redis.Client
}

func NewRedisFlagStore(redisURL string) (*RedisFlagStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return NewRedisFlagStoreFromClient(rdb), nil
}

func NewRedisFlagStoreFromClient(rdb *redis.Client) *RedisFlagStore {
	return &RedisFlagStore{Client: rdb}
}

func (s *RedisFlagStore) Get(ctx context.Context, key string) ([]string, error) {
	l, err := s.Client.SMembers(ctx, redisFlagPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return []string{}, nil
	} else if err != nil {
		return nil, err
	}
	sort.Strings(l)
	return l, nil
}

func (s *RedisFlagStore) Add(ctx context.Context, key string, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	l := make([]interface{}, len(flags))
	for i, v := range flags {
		l[i] = v
	}
	return s.Client.SAdd(ctx, redisFlagPrefix+key, l...).Err()
}

func (s *RedisFlagStore) Remove(ctx context.Context, key string, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	l := make([]interface{}, len(flags))
	for i, v := range flags {
		l[i] = v
	}
	return s.Client.SRem(ctx, redisFlagPrefix+key, l...).Err()
}
