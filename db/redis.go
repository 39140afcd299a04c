// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package db

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/stockparfait/errors"
)

// RedisKeyPrefix is prepended to all the storage keys in Redis.
const RedisKeyPrefix = "parfait:"

// RedisStorage keeps each frame as a gob blob under its key. Entries never
// expire.
type RedisStorage struct {
	client *redis.Client
}

var _ Storage = &RedisStorage{}

// NewRedisStorage connects to the Redis server at addr and checks that it's
// reachable.
func NewRedisStorage(ctx context.Context, addr string) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Annotate(err, "failed to connect to redis at %s", addr)
	}
	return &RedisStorage{client: client}, nil
}

// Load implements Storage.
func (s *RedisStorage) Load(ctx context.Context, key string) (*Frame, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	b, err := s.client.Get(ctx, RedisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Annotate(err, "failed to get '%s' from redis", key)
	}
	f, err := UnmarshalFrame(b)
	if err != nil {
		return nil, errors.Annotate(err, "corrupted redis entry '%s'", key)
	}
	return f, nil
}

// Store implements Storage.
func (s *RedisStorage) Store(ctx context.Context, key string, f *Frame) error {
	if err := checkKey(key); err != nil {
		return err
	}
	b, err := MarshalFrame(f)
	if err != nil {
		return errors.Annotate(err, "failed to serialize '%s'", key)
	}
	if err := s.client.Set(ctx, RedisKeyPrefix+key, b, 0).Err(); err != nil {
		return errors.Annotate(err, "failed to set '%s' in redis", key)
	}
	return nil
}

// Close the client.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
