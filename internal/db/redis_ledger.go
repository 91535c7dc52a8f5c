package db

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/go-redis/redis/v8"

	"github.com/markjakearzadon/shoegame-gobackend/internal/apperr"
	"github.com/markjakearzadon/shoegame-gobackend/internal/models"
)

const DefaultLedgerKey = "shoegame:transactions"

// RedisLedger keeps transactions as JSON strings on a Redis list. RPUSH is
// atomic, so concurrent appends from several processes are safe.
type RedisLedger struct {
	client *redis.Client
	key    string
}

func NewRedisLedger(client *redis.Client, key string) *RedisLedger {
	if key == "" {
		key = DefaultLedgerKey
	}
	return &RedisLedger{client: client, key: key}
}

func (l *RedisLedger) Append(ctx context.Context, tx models.Transaction) error {
	if err := checkTransaction(tx); err != nil {
		return err
	}
	data, err := json.Marshal(tx)
	if err != nil {
		return apperr.Persistence("encode transaction", err)
	}
	if err := l.client.RPush(ctx, l.key, data).Err(); err != nil {
		return apperr.Persistence("push transaction", err)
	}
	return nil
}

func (l *RedisLedger) List(ctx context.Context, limit int) ([]models.Transaction, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	values, err := l.client.LRange(ctx, l.key, start, -1).Result()
	if err != nil {
		return nil, apperr.Persistence("range transactions", err)
	}

	txs := make([]models.Transaction, 0, len(values))
	for _, v := range values {
		var tx models.Transaction
		if err := json.Unmarshal([]byte(v), &tx); err != nil {
			slog.Warn("Skipping undecodable transaction", "key", l.key, "error", err)
			continue
		}
		txs = append(txs, tx)
	}
	return txs, nil
}
