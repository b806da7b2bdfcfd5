package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"officequeue/internal/domain"
	"officequeue/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Раскладка ключей совпадает с первой версией бота на Redis.
const (
	keyUsers     = "office:users"
	keyQueue     = "office:queue"
	keyStatus    = "office:status"
	keySystem    = "office:system"
	keyVisits    = "office:visits"
	keyVisitsSeq = "office:visits:seq"

	maxTxRetries = 32
)

// RedisStore is the keyed alternative to the sqlite store. The queue is a
// sorted set scored by join time in microseconds; mutations run as
// WATCH/MULTI transactions and are retried on conflicts.
type RedisStore struct {
	client   *redis.Client
	logger   *zerolog.Logger
	openedAt time.Time
}

var _ domain.Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, logger *zerolog.Logger) *RedisStore {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &RedisStore{client: client, logger: logger, openedAt: time.Now()}
}

func member(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// watch runs fn optimistically, retrying while watched keys change under it.
func (s *RedisStore) watch(ctx context.Context, op string, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug().Str("op", op).Int("attempt", i+1).Msg("redis transaction conflict, retrying")
			continue
		}
		return err
	}
	return domain.Unavailable(op, fmt.Errorf("too many transaction conflicts"))
}

func loadUser(ctx context.Context, c redis.Cmdable, userID int64) (*models.User, error) {
	raw, err := c.HGet(ctx, keyUsers, member(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Unavailable("get user", err)
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode user %d: %w", userID, err)
	}
	return &u, nil
}

func encodeUser(u *models.User) (string, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return "", fmt.Errorf("encode user %d: %w", u.UserID, err)
	}
	return string(data), nil
}

func (s *RedisStore) UpsertUser(ctx context.Context, profile models.Profile) (string, error) {
	var name string
	err := s.watch(ctx, "upsert user", func(tx *redis.Tx) error {
		now := time.Now()
		u, err := loadUser(ctx, tx, profile.UserID)
		if err != nil {
			return err
		}
		if u == nil {
			u = &models.User{UserID: profile.UserID, RegisteredAt: now}
		}
		u.Username = profile.Username
		u.FirstName = profile.FirstName
		u.LastName = profile.LastName
		u.LastSeenAt = now
		if !u.NameOverridden {
			u.DisplayName = profile.DisplayName()
		}

		data, err := encodeUser(u)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, keyUsers, member(u.UserID), data)
			return nil
		})
		if err != nil {
			return err
		}
		name = u.DisplayName
		return nil
	}, keyUsers)
	if err != nil {
		return "", wrapRedis("upsert user", err)
	}
	return name, nil
}

func (s *RedisStore) RenameUser(ctx context.Context, userID int64, name string) error {
	name, err := domain.NormalizeName(name)
	if err != nil {
		return err
	}

	err = s.watch(ctx, "rename user", func(tx *redis.Tx) error {
		u, err := loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return domain.ErrUserNotFound
		}
		u.DisplayName = name
		u.NameOverridden = true

		data, err := encodeUser(u)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, keyUsers, member(userID), data)
			return nil
		})
		return err
	}, keyUsers)
	return wrapRedis("rename user", err)
}

func (s *RedisStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	u, err := loadUser(ctx, s.client, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *RedisStore) SearchQueuedByName(ctx context.Context, substring string) ([]*models.User, error) {
	ids, err := s.client.ZRange(ctx, keyQueue, 0, -1).Result()
	if err != nil {
		return nil, domain.Unavailable("search users", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	raw, err := s.client.HMGet(ctx, keyUsers, ids...).Result()
	if err != nil {
		return nil, domain.Unavailable("search users", err)
	}

	var users []*models.User
	for _, v := range raw {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var u models.User
		if err := json.Unmarshal([]byte(str), &u); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		if strings.Contains(u.DisplayName, substring) {
			users = append(users, &u)
		}
	}
	return users, nil
}

func (s *RedisStore) GetAllUserIDs(ctx context.Context) ([]int64, error) {
	keys, err := s.client.HKeys(ctx, keyUsers).Result()
	if err != nil {
		return nil, domain.Unavailable("get user ids", err)
	}

	ids := make([]int64, 0, len(keys))
	for _, k := range keys {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			s.logger.Warn().Str("field", k).Msg("skipping malformed user key")
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *RedisStore) Join(ctx context.Context, userID int64, name string) (int, error) {
	if name != "" {
		normalized, err := domain.NormalizeName(name)
		if err != nil {
			return 0, err
		}
		name = normalized
	}

	var position int
	err := s.watch(ctx, "join", func(tx *redis.Tx) error {
		_, err := tx.ZScore(ctx, keyQueue, member(userID)).Result()
		if err == nil {
			return domain.ErrAlreadyQueued
		}
		if !errors.Is(err, redis.Nil) {
			return domain.Unavailable("check queue presence", err)
		}

		now := time.Now()
		u, err := loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			u = &models.User{UserID: userID, DisplayName: models.FallbackName(userID), RegisteredAt: now}
		}
		u.LastSeenAt = now
		if name != "" {
			u.DisplayName = name
			u.NameOverridden = true
		}
		data, err := encodeUser(u)
		if err != nil {
			return err
		}

		tail, err := tx.ZRevRangeWithScores(ctx, keyQueue, 0, 0).Result()
		if err != nil {
			return domain.Unavailable("read queue tail", err)
		}
		size, err := tx.ZCard(ctx, keyQueue).Result()
		if err != nil {
			return domain.Unavailable("count queue", err)
		}
		stamp := float64(now.UnixMicro())
		if len(tail) > 0 && stamp <= tail[0].Score {
			stamp = tail[0].Score + 1
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, keyUsers, member(userID), data)
			pipe.ZAdd(ctx, keyQueue, redis.Z{Score: stamp, Member: member(userID)})
			return nil
		})
		if err != nil {
			return err
		}
		position = int(size) + 1
		return nil
	}, keyQueue, keyUsers)
	if err != nil {
		return 0, wrapRedis("join", err)
	}
	return position, nil
}

func (s *RedisStore) Leave(ctx context.Context, userID int64) (bool, error) {
	var removed bool
	err := s.watch(ctx, "leave", func(tx *redis.Tx) error {
		removed = false
		_, err := tx.ZScore(ctx, keyQueue, member(userID)).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return domain.Unavailable("check queue presence", err)
		}

		serving, err := tx.HGet(ctx, keySystem, models.SystemKeyServingUser).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return domain.Unavailable("get serving", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, keyQueue, member(userID))
			if serving == member(userID) {
				pipe.HDel(ctx, keySystem, models.SystemKeyServingUser)
			}
			return nil
		})
		if err != nil {
			return err
		}
		removed = true
		return nil
	}, keyQueue, keySystem)
	if err != nil {
		return false, wrapRedis("leave", err)
	}
	return removed, nil
}

func (s *RedisStore) PositionOf(ctx context.Context, userID int64) (int, error) {
	rank, err := s.client.ZRank(ctx, keyQueue, member(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, domain.ErrNotInQueue
	}
	if err != nil {
		return 0, domain.Unavailable("position of", err)
	}
	return int(rank) + 1, nil
}

func (s *RedisStore) Snapshot(ctx context.Context) ([]*models.QueueEntry, error) {
	items, err := s.client.ZRangeWithScores(ctx, keyQueue, 0, -1).Result()
	if err != nil {
		return nil, domain.Unavailable("snapshot queue", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]string, len(items))
	for i, z := range items {
		ids[i] = z.Member.(string)
	}
	names, err := s.client.HMGet(ctx, keyUsers, ids...).Result()
	if err != nil {
		return nil, domain.Unavailable("snapshot names", err)
	}

	entries := make([]*models.QueueEntry, 0, len(items))
	for i, z := range items {
		userID, err := strconv.ParseInt(ids[i], 10, 64)
		if err != nil {
			continue
		}
		entry := &models.QueueEntry{
			UserID:      userID,
			DisplayName: models.FallbackName(userID),
			JoinedAt:    time.UnixMicro(int64(z.Score)),
			Position:    len(entries) + 1,
		}
		if str, ok := names[i].(string); ok {
			var u models.User
			if err := json.Unmarshal([]byte(str), &u); err == nil {
				entry.DisplayName = u.DisplayName
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keyQueue)
		pipe.HDel(ctx, keySystem, models.SystemKeyServingUser)
		return nil
	})
	if err != nil {
		return domain.Unavailable("clear queue", err)
	}
	return nil
}

func (s *RedisStore) PopFront(ctx context.Context) (*models.QueueEntry, error) {
	var head *models.QueueEntry
	err := s.watch(ctx, "pop front", func(tx *redis.Tx) error {
		items, err := tx.ZRangeWithScores(ctx, keyQueue, 0, 0).Result()
		if err != nil {
			return domain.Unavailable("read queue head", err)
		}
		if len(items) == 0 {
			return domain.ErrQueueEmpty
		}
		id := items[0].Member.(string)
		userID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return fmt.Errorf("malformed queue member %q: %w", id, err)
		}

		entry := &models.QueueEntry{
			UserID:      userID,
			DisplayName: models.FallbackName(userID),
			JoinedAt:    time.UnixMicro(int64(items[0].Score)),
			Position:    1,
		}
		u, err := loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if u != nil {
			entry.DisplayName = u.DisplayName
		}

		serving, err := tx.HGet(ctx, keySystem, models.SystemKeyServingUser).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return domain.Unavailable("get serving", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, keyQueue, id)
			if serving == id {
				pipe.HDel(ctx, keySystem, models.SystemKeyServingUser)
			}
			return nil
		})
		if err != nil {
			return err
		}
		head = entry
		return nil
	}, keyQueue, keySystem, keyUsers)
	if err != nil {
		return nil, wrapRedis("pop front", err)
	}
	return head, nil
}

func (s *RedisStore) RenameInQueue(ctx context.Context, userID int64, name string) error {
	if _, err := s.PositionOf(ctx, userID); err != nil {
		return err
	}
	return s.RenameUser(ctx, userID, name)
}

func (s *RedisStore) InitOfficeStatus(ctx context.Context, status models.OfficeState) (*models.OfficeStatus, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	data, err := json.Marshal(models.OfficeStatus{Status: status, UpdatedAt: time.Now()})
	if err != nil {
		return nil, fmt.Errorf("encode office status: %w", err)
	}
	if err := s.client.SetNX(ctx, keyStatus, data, 0).Err(); err != nil {
		return nil, domain.Unavailable("init office status", err)
	}
	return s.GetOfficeStatus(ctx)
}

func (s *RedisStore) SetOfficeStatus(ctx context.Context, status models.OfficeState, message string) (*models.OfficeStatus, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	st := &models.OfficeStatus{Status: status, Message: message, UpdatedAt: time.Now()}
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode office status: %w", err)
	}
	if err := s.client.Set(ctx, keyStatus, data, 0).Err(); err != nil {
		return nil, domain.Unavailable("set office status", err)
	}
	return st, nil
}

func (s *RedisStore) GetOfficeStatus(ctx context.Context) (*models.OfficeStatus, error) {
	raw, err := s.client.Get(ctx, keyStatus).Bytes()
	if errors.Is(err, redis.Nil) {
		return &models.OfficeStatus{Status: models.OfficeClosed, UpdatedAt: s.openedAt}, nil
	}
	if err != nil {
		return nil, domain.Unavailable("get office status", err)
	}

	var st models.OfficeStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode office status: %w", err)
	}
	return &st, nil
}

func (s *RedisStore) SetServing(ctx context.Context, userID int64) error {
	if err := s.client.HSet(ctx, keySystem, models.SystemKeyServingUser, member(userID)).Err(); err != nil {
		return domain.Unavailable("set serving", err)
	}
	return nil
}

func (s *RedisStore) GetServing(ctx context.Context) (int64, bool, error) {
	val, err := s.client.HGet(ctx, keySystem, models.SystemKeyServingUser).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, domain.Unavailable("get serving", err)
	}
	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return userID, true, nil
}

func (s *RedisStore) ClearServing(ctx context.Context) error {
	if err := s.client.HDel(ctx, keySystem, models.SystemKeyServingUser).Err(); err != nil {
		return domain.Unavailable("clear serving", err)
	}
	return nil
}

func (s *RedisStore) RecordVisit(ctx context.Context, visit *models.Visit) error {
	if visit.FinishedAt.IsZero() {
		visit.FinishedAt = time.Now()
	}
	id, err := s.client.Incr(ctx, keyVisitsSeq).Result()
	if err != nil {
		return domain.Unavailable("record visit", err)
	}
	visit.ID = id

	data, err := json.Marshal(visit)
	if err != nil {
		return fmt.Errorf("encode visit: %w", err)
	}
	if err := s.client.RPush(ctx, keyVisits, data).Err(); err != nil {
		return domain.Unavailable("record visit", err)
	}
	return nil
}

func (s *RedisStore) GetVisitsSince(ctx context.Context, since time.Time) ([]*models.Visit, error) {
	raw, err := s.client.LRange(ctx, keyVisits, 0, -1).Result()
	if err != nil {
		return nil, domain.Unavailable("get visits", err)
	}

	var visits []*models.Visit
	for _, item := range raw {
		var v models.Visit
		if err := json.Unmarshal([]byte(item), &v); err != nil {
			s.logger.Warn().Err(err).Msg("skipping malformed visit")
			continue
		}
		if v.FinishedAt.Before(since) {
			continue
		}
		visits = append(visits, &v)
	}
	return visits, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := Ping(ctx, s.client); err != nil {
		return domain.Unavailable("ping", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// wrapRedis keeps domain errors as they are and marks everything else unavailable.
func wrapRedis(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		domain.ErrAlreadyQueued, domain.ErrNotInQueue, domain.ErrQueueEmpty,
		domain.ErrUserNotFound, domain.ErrInvalidName, domain.ErrStoreUnavailable,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return domain.Unavailable(op, err)
}
