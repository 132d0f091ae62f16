package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"leadrelay/internal/platform/models"
)

// createdTimeLayout matches the remote store's createdTime format.
const createdTimeLayout = "2006-01-02T15:04:05.000Z"

// LocalStore keeps store records in a single sqlite table, one row per record
// with its fields as a JSON object. It offers the same operations as the
// remote store client.
type LocalStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewLocalStore(db *sql.DB) *LocalStore {
	return &LocalStore{db: db, now: time.Now}
}

// ErrUnsupportedField is returned for column names a JSON path label cannot
// express.
var ErrUnsupportedField = errors.New("column names containing '\"' are not supported by the local store")

func (s *LocalStore) FindByField(ctx context.Context, table, field, value string) ([]models.Record, error) {
	path, err := fieldPath(field)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT id, fields, created_at
		FROM records
		WHERE table_name = ? AND json_extract(fields, ?) = ?
		ORDER BY rowid
	`
	rows, err := s.db.QueryContext(ctx, query, table, path, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CreateRecords inserts up to models.MaxBatchSize records atomically.
func (s *LocalStore) CreateRecords(ctx context.Context, table string, fields []models.Fields) ([]models.Record, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	if len(fields) > models.MaxBatchSize {
		return nil, fmt.Errorf("local store: %d records exceed the batch limit of %d", len(fields), models.MaxBatchSize)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out := make([]models.Record, 0, len(fields))
	for _, f := range fields {
		rec, err := s.insert(ctx, tx, table, f)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *LocalStore) CreateRecord(ctx context.Context, table string, fields models.Fields) (models.Record, error) {
	return s.insert(ctx, s.db, table, fields)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *LocalStore) insert(ctx context.Context, db execer, table string, fields models.Fields) (models.Record, error) {
	if fields == nil {
		fields = models.Fields{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return models.Record{}, fmt.Errorf("encode fields: %w", err)
	}

	rec := models.Record{
		ID:          newRecordID(),
		CreatedTime: s.now().UTC().Format(createdTimeLayout),
		Fields:      fields,
	}

	query := "INSERT INTO records (id, table_name, fields, created_at) VALUES (?, ?, ?, ?)"
	if _, err := db.ExecContext(ctx, query, rec.ID, table, string(raw), rec.CreatedTime); err != nil {
		return models.Record{}, fmt.Errorf("insert into %s: %w", table, err)
	}
	return rec, nil
}

func scanRecord(rows *sql.Rows) (models.Record, error) {
	var rec models.Record
	var raw string
	if err := rows.Scan(&rec.ID, &raw, &rec.CreatedTime); err != nil {
		return models.Record{}, err
	}
	if err := json.Unmarshal([]byte(raw), &rec.Fields); err != nil {
		return models.Record{}, fmt.Errorf("decode fields of %s: %w", rec.ID, err)
	}
	return rec, nil
}

// fieldPath quotes a column name as a JSON path member, since column names
// may contain spaces. sqlite has no escape for '"' inside a quoted label.
func fieldPath(field string) (string, error) {
	if strings.Contains(field, `"`) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedField, field)
	}
	return `$."` + field + `"`, nil
}

func newRecordID() string {
	return "rec" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}
