package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"leadrelay/internal/platform/models"
)

func setupTestStore(t *testing.T) *LocalStore {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := Migrate(context.Background(), db, DirectionUp); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return NewLocalStore(db)
}

func TestLocalStore_CreateAndFind(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	recs, err := store.CreateRecords(ctx, "Leads", []models.Fields{
		{"SourceID": "c-1", "LeadName": "Ann Lee"},
		{"SourceID": "c-2", "LeadName": "Bob"},
	})
	if err != nil {
		t.Fatalf("CreateRecords failed: %v", err)
	}
	if len(recs) != 2 || recs[0].ID == "" || recs[0].ID == recs[1].ID {
		t.Fatalf("Expected two distinct records, got %+v", recs)
	}

	found, err := store.FindByField(ctx, "Leads", "SourceID", "c-2")
	if err != nil {
		t.Fatalf("FindByField failed: %v", err)
	}
	if len(found) != 1 || found[0].ID != recs[1].ID {
		t.Fatalf("Expected record %s, got %+v", recs[1].ID, found)
	}
	if found[0].Fields.String("LeadName") != "Bob" {
		t.Errorf("Expected LeadName Bob, got %v", found[0].Fields)
	}

	none, err := store.FindByField(ctx, "Connecters", "SourceID", "c-2")
	if err != nil {
		t.Fatalf("FindByField failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected lookups to be scoped to the table, got %+v", none)
	}
}

func TestLocalStore_FieldNamesWithSpaces(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateRecord(ctx, "Users", models.Fields{"MSpace ID": "u-7", "Name": "Dana"}); err != nil {
		t.Fatalf("CreateRecord failed: %v", err)
	}

	found, err := store.FindByField(ctx, "Users", "MSpace ID", "u-7")
	if err != nil {
		t.Fatalf("FindByField failed: %v", err)
	}
	if len(found) != 1 || found[0].Fields.String("Name") != "Dana" {
		t.Fatalf("Unexpected result %+v", found)
	}
}

func TestLocalStore_RejectsQuotedFieldNames(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.FindByField(context.Background(), "Leads", `Lead "Name"`, "Ann")
	if !errors.Is(err, ErrUnsupportedField) {
		t.Fatalf("Expected ErrUnsupportedField, got %v", err)
	}
}

func TestLocalStore_BatchLimit(t *testing.T) {
	store := setupTestStore(t)

	batch := make([]models.Fields, models.MaxBatchSize+1)
	if _, err := store.CreateRecords(context.Background(), "Leads", batch); err == nil {
		t.Fatal("Expected error for an oversized batch")
	}
}

func TestLocalStore_CreateRecordsRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO records").
		WithArgs(sqlmock.AnyArg(), "Leads", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO records").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	store := NewLocalStore(db)
	_, err = store.CreateRecords(context.Background(), "Leads", []models.Fields{
		{"SourceID": "1"},
		{"SourceID": "2"},
	})
	if err == nil {
		t.Fatal("Expected error from failed insert")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestMigrateDown(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := Migrate(ctx, store.db, DirectionDown); err != nil {
		t.Fatalf("Migrate down failed: %v", err)
	}
	_, err := store.FindByField(ctx, "Leads", "SourceID", "x")
	if err == nil {
		t.Fatal("Expected query to fail after dropping the table")
	}
	if errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("Unexpected error type %v", err)
	}

	if err := Migrate(ctx, store.db, "sideways"); err == nil {
		t.Fatal("Expected invalid direction error")
	}
}
