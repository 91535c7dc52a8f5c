package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/markjakearzadon/shoegame-gobackend/internal/apperr"
	"github.com/markjakearzadon/shoegame-gobackend/internal/models"
)

// ErrInvalidTransaction is returned when a record has no id or an unknown
// status.
var ErrInvalidTransaction = errors.New("transaction requires an id and a SUCCESS or FAILED status")

// Ledger stores reconciled transactions in arrival order.
type Ledger interface {
	Append(ctx context.Context, tx models.Transaction) error
	// List returns the last limit records, oldest first. A non-positive
	// limit returns everything.
	List(ctx context.Context, limit int) ([]models.Transaction, error)
}

func checkTransaction(tx models.Transaction) error {
	if tx.ID == "" || !tx.Status.Valid() {
		return apperr.Persistence("append transaction", ErrInvalidTransaction)
	}
	return nil
}

func tail(txs []models.Transaction, limit int) []models.Transaction {
	if limit <= 0 || len(txs) <= limit {
		return txs
	}
	return txs[len(txs)-limit:]
}

// FileLedger keeps all transactions in one JSON array file. Every append is
// a full read-modify-write held under a mutex and committed with a rename, so
// concurrent callbacks in the same process cannot lose each other's records.
type FileLedger struct {
	path string
	mu   sync.Mutex
}

// NewFileLedger creates the parent directory and seeds an empty array when
// the file does not exist yet.
func NewFileLedger(path string) (*FileLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
			return nil, fmt.Errorf("failed to seed ledger file: %w", err)
		}
	}
	return &FileLedger{path: path}, nil
}

func (l *FileLedger) Path() string { return l.path }

func (l *FileLedger) Append(ctx context.Context, tx models.Transaction) error {
	if err := checkTransaction(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	txs, err := l.readAll()
	if err != nil {
		return apperr.Persistence("read transactions", err)
	}
	txs = append(txs, tx)
	return apperr.Persistence("write transactions", l.writeAll(txs))
}

func (l *FileLedger) List(ctx context.Context, limit int) ([]models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	txs, err := l.readAll()
	if err != nil {
		return nil, apperr.Persistence("read transactions", err)
	}
	return tail(txs, limit), nil
}

func (l *FileLedger) readAll() ([]models.Transaction, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.Transaction{}, nil
	}
	if err != nil {
		return nil, err
	}
	txs := []models.Transaction{}
	if len(data) == 0 {
		return txs, nil
	}
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", l.path, err)
	}
	return txs, nil
}

func (l *FileLedger) writeAll(txs []models.Transaction) error {
	data, err := json.MarshalIndent(txs, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".transactions-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, l.path)
}
