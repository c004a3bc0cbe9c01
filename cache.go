package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

func (c *Capabilities) MarshalBinary() ([]byte, error) {
	return json.Marshal(c)
}

func (c *Capabilities) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, c)
}

// cachedProber keeps probe results in memory and, when a redis client is
// given, in redis as a second tier shared between runs. Deployed bytecode
// never changes, so entries only expire to bound memory.
type cachedProber struct {
	inner  CapabilityProber
	memory *cache.Cache
	redis  *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewCachedProber(inner CapabilityProber, redis *redis.Client, ttl time.Duration, log *zap.Logger) CapabilityProber {
	return &cachedProber{
		inner:  inner,
		memory: cache.New(ttl, time.Hour),
		redis:  redis,
		ttl:    ttl,
		log:    log,
	}
}

func CapabilitiesCacheKey(swap common.Address) string {
	return fmt.Sprintf("caps:%s", swap.Hex())
}

func (p *cachedProber) Probe(ctx context.Context, swap common.Address) (Capabilities, error) {
	k := CapabilitiesCacheKey(swap)
	if caps, ok := p.memory.Get(k); ok {
		return caps.(Capabilities), nil
	}

	if p.redis != nil {
		caps := &Capabilities{}
		err := p.redis.Get(ctx, k).Scan(caps)
		if err == nil {
			p.memory.SetDefault(k, *caps)
			return *caps, nil
		}
		if !errors.Is(err, redis.Nil) {
			p.log.Error("redis get err", zap.String("key", k), zap.Error(err))
		}
	}

	caps, err := p.inner.Probe(ctx, swap)
	if err != nil {
		return Capabilities{}, err
	}

	p.memory.SetDefault(k, caps)
	if p.redis != nil {
		if err = p.redis.Set(ctx, k, &caps, p.ttl).Err(); err != nil {
			p.log.Error("redis set err", zap.String("key", k), zap.Error(err))
		}
	}
	return caps, nil
}
