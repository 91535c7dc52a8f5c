package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/markjakearzadon/shoegame-gobackend/internal/apperr"
	"github.com/markjakearzadon/shoegame-gobackend/internal/models"
)

// mongoTransaction is the stored form of a Transaction. Raw is kept as an
// embedded document so callbacks can be queried field by field.
type mongoTransaction struct {
	ID      string                   `bson:"id"`
	Status  models.TransactionStatus `bson:"status"`
	Amount  *float64                 `bson:"amount,omitempty"`
	Phone   *string                  `bson:"phone,omitempty"`
	Receipt *string                  `bson:"receipt,omitempty"`
	Code    *int                     `bson:"code,omitempty"`
	Desc    *string                  `bson:"desc,omitempty"`
	Raw     any                      `bson:"raw,omitempty"`
	Time    time.Time                `bson:"time"`
}

func toMongoTransaction(tx models.Transaction) mongoTransaction {
	return mongoTransaction{
		ID:      tx.ID,
		Status:  tx.Status,
		Amount:  tx.Amount,
		Phone:   tx.Phone,
		Receipt: tx.Receipt,
		Code:    tx.Code,
		Desc:    tx.Desc,
		Raw:     rawToBSON(tx.Raw),
		Time:    tx.Time,
	}
}

func (m mongoTransaction) transaction() models.Transaction {
	return models.Transaction{
		ID:      m.ID,
		Status:  m.Status,
		Amount:  m.Amount,
		Phone:   m.Phone,
		Receipt: m.Receipt,
		Code:    m.Code,
		Desc:    m.Desc,
		Raw:     rawFromBSON(m.Raw),
		Time:    m.Time,
	}
}

// rawToBSON converts a JSON object into a document. Other JSON values are
// stored as their text.
func rawToBSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err == nil {
		return doc
	}
	return string(raw)
}

func rawFromBSON(v any) json.RawMessage {
	switch raw := v.(type) {
	case nil:
		return nil
	case string:
		if json.Valid([]byte(raw)) {
			return json.RawMessage(raw)
		}
		quoted, _ := json.Marshal(raw)
		return quoted
	default:
		data, err := bson.MarshalExtJSON(raw, false, false)
		if err != nil {
			slog.Warn("Failed to convert stored callback to JSON", "error", err)
			return nil
		}
		return data
	}
}

// MongoLedger appends transactions to a collection. Documents get a
// driver-generated _id so repeated callbacks for one CheckoutRequestID are
// all kept, and _id order is arrival order.
type MongoLedger struct {
	collection *mongo.Collection
}

func NewMongoLedger(database *mongo.Database) *MongoLedger {
	return &MongoLedger{collection: database.Collection("transactions")}
}

// EnsureIndexes creates the lookup indexes used by operators.
func (l *MongoLedger) EnsureIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "time", Value: -1}}},
	}
	if _, err := l.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		slog.Error("Failed to create transaction indexes", "error", err)
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (l *MongoLedger) Append(ctx context.Context, tx models.Transaction) error {
	if err := checkTransaction(tx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := l.collection.InsertOne(ctx, toMongoTransaction(tx)); err != nil {
		slog.Error("Failed to insert transaction", "id", tx.ID, "error", err)
		return apperr.Persistence("insert transaction", err)
	}
	return nil
}

func (l *MongoLedger) List(ctx context.Context, limit int) ([]models.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := l.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, apperr.Persistence("find transactions", err)
	}
	defer cur.Close(ctx)

	var docs []mongoTransaction
	if err := cur.All(ctx, &docs); err != nil {
		return nil, apperr.Persistence("decode transactions", err)
	}

	// newest first from the query, oldest first to the caller
	txs := make([]models.Transaction, len(docs))
	for i, doc := range docs {
		txs[len(docs)-1-i] = doc.transaction()
	}
	return txs, nil
}
