package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPresetRepositoryGetNotFound(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&PresetRepository{}).WithDB(mockDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "condition_presets" WHERE category = $1 AND key = $2 ORDER BY "condition_presets"."id" LIMIT $3`)).
		WithArgs("filters", "missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	preset, err := repo.Get(context.Background(), "filters", "missing")
	if err != nil {
		t.Fatalf("expected not-found to return nil error, got %v", err)
	}
	if preset != nil {
		t.Fatalf("expected nil preset, got %+v", preset)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestPresetRepositoryPutCreatesWhenMissing(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&PresetRepository{}).WithDB(mockDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "condition_presets" WHERE category = $1 AND key = $2`)).
		WithArgs("filters", "aggressive", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "condition_presets" (`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Put(context.Background(), "filters", "aggressive", `{"min_change_percent":3}`)
	if err != nil {
		t.Fatalf("expected put to succeed, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestPresetRepositoryPutUpdatesExisting(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&PresetRepository{}).WithDB(mockDB)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "condition_presets" WHERE category = $1 AND key = $2`)).
		WithArgs("filters", "aggressive", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "category", "key", "payload", "created_at", "updated_at"}).
			AddRow(7, "filters", "aggressive", `{"min_change_percent":2}`, now, now))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "condition_presets" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Put(context.Background(), "filters", "aggressive", `{"min_change_percent":3}`)
	if err != nil {
		t.Fatalf("expected put to succeed, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestPresetRepositoryDelete(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&PresetRepository{}).WithDB(mockDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "condition_presets" WHERE category = $1 AND key = $2`)).
		WithArgs("filters", "aggressive").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	deleted, err := repo.Delete(context.Background(), "filters", "aggressive")
	if err != nil {
		t.Fatalf("expected delete to succeed, got %v", err)
	}
	if !deleted {
		t.Fatal("expected delete to report a removed row")
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "condition_presets" WHERE category = $1 AND key = $2`)).
		WithArgs("filters", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	deleted, err = repo.Delete(context.Background(), "filters", "missing")
	if err != nil {
		t.Fatalf("expected delete of missing row to succeed, got %v", err)
	}
	if deleted {
		t.Fatal("expected delete of missing row to report false")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestPresetRepositoryList(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&PresetRepository{}).WithDB(mockDB)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "condition_presets" WHERE category = $1 ORDER BY id DESC`)).
		WithArgs("filters").
		WillReturnRows(sqlmock.NewRows([]string{"id", "category", "key", "payload", "created_at", "updated_at"}).
			AddRow(2, "filters", "aggressive", `{}`, now, now).
			AddRow(1, "filters", "conservative", `{}`, now, now))

	presets, err := repo.List(context.Background(), "filters")
	if err != nil {
		t.Fatalf("expected list to succeed, got %v", err)
	}
	if len(presets) != 2 || presets[0].Key != "aggressive" {
		t.Fatalf("unexpected list result: %+v", presets)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}
