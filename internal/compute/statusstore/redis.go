package statusstore

import (
	"encoding/json"
	"time"

	"github.com/go-redis/redis"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/compute/job"
)

const (
	statusKeyPrefix = "compute:status:"
	scanBatchSize   = 500
)

// RedisStore is a Store shared by every node pointing at the same redis.
type RedisStore struct {
	db redis.UniversalClient
}

func NewRedisStore(db redis.UniversalClient) *RedisStore {
	return &RedisStore{db: db}
}

func statusKey(id uuid.UUID) string {
	return statusKeyPrefix + id.String()
}

func (s *RedisStore) Put(_ *armadacontext.Context, status job.Status, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.WithStack(s.db.Del(statusKey(status.Id)).Err())
	}
	data, err := json.Marshal(status)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := s.db.Set(statusKey(status.Id), data, ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to store status of job %s", status.Id)
	}
	return nil
}

func (s *RedisStore) Get(_ *armadacontext.Context, id uuid.UUID) (job.Status, bool, error) {
	data, err := s.db.Get(statusKey(id)).Bytes()
	if err == redis.Nil {
		return job.Status{}, false, nil
	}
	if err != nil {
		return job.Status{}, false, errors.Wrapf(err, "failed to read status of job %s", id)
	}
	var status job.Status
	if err := json.Unmarshal(data, &status); err != nil {
		return job.Status{}, false, errors.WithStack(err)
	}
	return status, true, nil
}

func (s *RedisStore) List(_ *armadacontext.Context) ([]job.Status, error) {
	var statuses []job.Status
	var cursor uint64
	for {
		keys, next, err := s.db.Scan(cursor, statusKeyPrefix+"*", scanBatchSize).Result()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if len(keys) > 0 {
			values, err := s.db.MGet(keys...).Result()
			if err != nil {
				return nil, errors.WithStack(err)
			}
			for _, value := range values {
				// Keys may expire between SCAN and MGET.
				str, ok := value.(string)
				if !ok {
					continue
				}
				var status job.Status
				if err := json.Unmarshal([]byte(str), &status); err != nil {
					return nil, errors.WithStack(err)
				}
				statuses = append(statuses, status)
			}
		}
		if next == 0 {
			return statuses, nil
		}
		cursor = next
	}
}

func (s *RedisStore) Delete(_ *armadacontext.Context, id uuid.UUID) error {
	return errors.WithStack(s.db.Del(statusKey(id)).Err())
}
