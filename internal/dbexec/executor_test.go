package dbexec

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestDBExecutor_QueryAndExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT `id` FROM `authors`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1"))
	mock.ExpectExec("UPDATE `authors`").
		WillReturnResult(sqlmock.NewResult(0, 1))

	exec := NewDBExecutor(db)

	rows, err := exec.QueryContext(context.Background(), "SELECT `id` FROM `authors`")
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	var id string
	if !rows.Next() {
		t.Fatal("expected a row")
	}
	if err := rows.Scan(&id); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	_ = rows.Close()
	if id != "a1" {
		t.Errorf("id: got %q", id)
	}

	res, err := exec.ExecContext(context.Background(), "UPDATE `authors` SET `first_name` = ?", "Ada")
	if err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		t.Errorf("rows affected: got %d", n)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestDBExecutor_NilHandle(t *testing.T) {
	exec := NewDBExecutor(nil)
	if _, err := exec.QueryContext(context.Background(), "SELECT 1"); !errors.Is(err, sql.ErrConnDone) {
		t.Errorf("expected ErrConnDone, got %v", err)
	}
	if _, err := exec.ExecContext(context.Background(), "SELECT 1"); !errors.Is(err, sql.ErrConnDone) {
		t.Errorf("expected ErrConnDone, got %v", err)
	}
}

func TestTxExecutor_SeesTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `authors`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	exec := NewTxExecutor(tx)
	if _, err := exec.ExecContext(context.Background(), "INSERT INTO `authors` (`id`) VALUES (?)", "a1"); err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestTxExecutor_NilTx(t *testing.T) {
	exec := NewTxExecutor(nil)
	if _, err := exec.QueryContext(context.Background(), "SELECT 1"); !errors.Is(err, sql.ErrTxDone) {
		t.Errorf("expected ErrTxDone, got %v", err)
	}
}
