//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustdir/internal/directory/cache"
	"trustdir/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.Redis
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.cache = cache.NewRedis(s.redis.Client, time.Minute)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestRoundTripWithTTL() {
	ctx := context.Background()
	key := cache.Key("resolve", "phone", "10", "+905431665454")

	s.Require().NoError(s.cache.Set(ctx, key, map[string]string{"status": "verified"}))

	var got map[string]string
	ok, err := s.cache.Get(ctx, key, &got)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("verified", got["status"])

	ttl, err := s.redis.Client.TTL(ctx, cache.DefaultPrefix+key).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, time.Minute)
}

func (s *RedisCacheSuite) TestMissIsNotAnError() {
	var got map[string]string
	ok, err := s.cache.Get(context.Background(), "absent", &got)
	s.NoError(err)
	s.False(ok)
}
