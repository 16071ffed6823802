package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tftgg/internal/gql"
)

type MemoryCacheSuite struct {
	suite.Suite
}

func TestMemoryCacheSuite(t *testing.T) {
	suite.Run(t, new(MemoryCacheSuite))
}

func (s *MemoryCacheSuite) TestSetGet() {
	mc, err := NewMemoryCache(16, time.Minute)
	s.Require().NoError(err)
	defer mc.Close()

	ctx := context.Background()
	args := gql.Args{"set": "14", "lang": "en"}
	meta := Meta{Complexity: 3, Tags: []string{"champions"}, TTL: 10 * time.Minute}

	err = mc.Set(ctx, "champions", args, gql.Result(`[{"id":1}]`), meta, "req-1", 120*time.Millisecond)
	s.NoError(err)

	entry, err := mc.Get(ctx, "champions", args)
	s.NoError(err)
	s.Require().NotNil(entry)
	s.Equal(gql.Result(`[{"id":1}]`), entry.Data)
	s.Equal(3, entry.Meta.Complexity)
	s.Equal([]string{"champions"}, entry.Meta.Tags)
	s.Equal("req-1", entry.RequestID)
	s.Equal(120*time.Millisecond, entry.Latency)
}

func (s *MemoryCacheSuite) TestMiss() {
	mc, err := NewMemoryCache(16, time.Minute)
	s.Require().NoError(err)
	defer mc.Close()

	entry, err := mc.Get(context.Background(), "champions", gql.Args{"set": "14"})
	s.NoError(err)
	s.Nil(entry)
}

func (s *MemoryCacheSuite) TestKeyIgnoresArgOrder() {
	mc, err := NewMemoryCache(16, time.Minute)
	s.Require().NoError(err)
	defer mc.Close()

	ctx := context.Background()
	err = mc.Set(ctx, "tierlist", gql.Args{"set": "14", "tier": "S"}, gql.Result(`{}`), Meta{}, "", 0)
	s.NoError(err)

	entry, err := mc.Get(ctx, "tierlist", gql.Args{"tier": "S", "set": "14"})
	s.NoError(err)
	s.NotNil(entry)
}

func (s *MemoryCacheSuite) TestLocaleDistinguishesEntries() {
	mc, err := NewMemoryCache(16, time.Minute)
	s.Require().NoError(err)
	defer mc.Close()

	ctx := context.Background()
	err = mc.Set(ctx, "champions", gql.Args{"lang": "en"}, gql.Result(`{"name":"Ahri"}`), Meta{}, "", 0)
	s.NoError(err)

	entry, err := mc.Get(ctx, "champions", gql.Args{"lang": "ru"})
	s.NoError(err)
	s.Nil(entry)
}

func (s *MemoryCacheSuite) TestEntryTTLExpires() {
	mc, err := NewMemoryCache(16, time.Minute)
	s.Require().NoError(err)
	defer mc.Close()

	ctx := context.Background()
	err = mc.Set(ctx, "items", nil, gql.Result(`[]`), Meta{TTL: 50 * time.Millisecond}, "", 0)
	s.NoError(err)

	time.Sleep(80 * time.Millisecond)
	entry, err := mc.Get(ctx, "items", nil)
	s.NoError(err)
	s.Nil(entry)
}

func (s *MemoryCacheSuite) TestDefaultTTLFallback() {
	mc, err := NewMemoryCache(16, 50*time.Millisecond)
	s.Require().NoError(err)
	defer mc.Close()

	ctx := context.Background()
	err = mc.Set(ctx, "items", nil, gql.Result(`[]`), Meta{}, "", 0)
	s.NoError(err)

	entry, err := mc.Get(ctx, "items", nil)
	s.NoError(err)
	s.NotNil(entry)

	time.Sleep(80 * time.Millisecond)
	entry, err = mc.Get(ctx, "items", nil)
	s.NoError(err)
	s.Nil(entry)
}

func (s *MemoryCacheSuite) TestLRUEviction() {
	mc, err := NewMemoryCache(2, time.Minute)
	s.Require().NoError(err)
	defer mc.Close()

	ctx := context.Background()
	for _, op := range []string{"champions", "items", "traits"} {
		err = mc.Set(ctx, op, nil, gql.Result(`{}`), Meta{}, "", 0)
		s.NoError(err)
	}

	entry, err := mc.Get(ctx, "champions", nil)
	s.NoError(err)
	s.Nil(entry)

	entry, err = mc.Get(ctx, "traits", nil)
	s.NoError(err)
	s.NotNil(entry)
}

func (s *MemoryCacheSuite) TestNoop() {
	nc := NewNoopCache()
	defer nc.Close()

	ctx := context.Background()
	err := nc.Set(ctx, "champions", nil, gql.Result(`{}`), Meta{}, "", 0)
	s.NoError(err)

	entry, err := nc.Get(ctx, "champions", nil)
	s.NoError(err)
	s.Nil(entry)
}
