package storage

import (
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"
)

var (
	db   *sql.DB
	mock sqlmock.Sqlmock
)

func setUp() {
	db, mock, _ = sqlmock.New()
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

func TestMySQLStoreGet(t *testing.T) {
	it(func() {
		s := &MySQLStore{db: db}

		mock.ExpectQuery("SELECT v FROM kv_store WHERE k = \\?").
			WithArgs("gala-userId").
			WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("abc-123"))

		v, ok := s.Get("gala-userId")
		if !ok || v != "abc-123" {
			t.Errorf("Get: expected (abc-123, true), got (%s, %v)", v, ok)
		}

		mock.ExpectQuery("SELECT v FROM kv_store WHERE k = \\?").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"v"}))

		if _, ok := s.Get("missing"); ok {
			t.Error("Get: expected absent key to report false")
		}
	})
}

func TestMySQLStoreGetDegradesOnError(t *testing.T) {
	it(func() {
		s := &MySQLStore{db: db}

		mock.ExpectQuery("SELECT v FROM kv_store").
			WithArgs("gala-theme").
			WillReturnError(sql.ErrConnDone)

		// A failing store must behave like an empty one.
		if _, ok := s.Get("gala-theme"); ok {
			t.Error("Get: expected failure to report absent key")
		}
	})
}

func TestMySQLStoreSet(t *testing.T) {
	it(func() {
		s := &MySQLStore{db: db}

		mock.ExpectExec("INSERT INTO kv_store \\(k, v\\) VALUES \\(\\?, \\?\\) ON DUPLICATE KEY UPDATE v = \\?").
			WithArgs("gala-theme", "dark", "dark").
			WillReturnResult(sqlmock.NewResult(1, 1))

		s.Set("gala-theme", "dark")

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Set: unmet expectations: %v", err)
		}
	})
}

func TestMySQLStoreDelete(t *testing.T) {
	it(func() {
		s := &MySQLStore{db: db}

		mock.ExpectExec("DELETE FROM kv_store WHERE k = \\?").
			WithArgs("gala-test-mode").
			WillReturnResult(sqlmock.NewResult(0, 1))

		s.Delete("gala-test-mode")

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Delete: unmet expectations: %v", err)
		}
	})
}
