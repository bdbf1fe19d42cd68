package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore keeps the key-value pairs in a shared MySQL table. It exists
// for kiosk fleets where several widget installations should share one
// identity and one rate budget. The Store contract is unchanged: failures
// degrade to absent values and are only logged.
type MySQLStore struct {
	db *sql.DB
}

// Config for the MySQL store backend.
type MySQLConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// NewMySQLStore connects to MySQL and ensures the kv_store table exists.
func NewMySQLStore(cfg MySQLConfig) (*MySQLStore, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS kv_store (
			k VARCHAR(255) NOT NULL PRIMARY KEY,
			v TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to create kv_store table: %w", err)
	}
	return nil
}

func (s *MySQLStore) Get(key string) (string, bool) {
	var v string
	err := s.db.QueryRow("SELECT v FROM kv_store WHERE k = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		log.Warnf("Failed to read key %s: %v", key, err)
		return "", false
	}
	return v, true
}

func (s *MySQLStore) Set(key, value string) {
	_, err := s.db.Exec(
		"INSERT INTO kv_store (k, v) VALUES (?, ?) ON DUPLICATE KEY UPDATE v = ?",
		key, value, value)
	if err != nil {
		log.Warnf("Failed to write key %s: %v", key, err)
	}
}

func (s *MySQLStore) Delete(key string) {
	if _, err := s.db.Exec("DELETE FROM kv_store WHERE k = ?", key); err != nil {
		log.Warnf("Failed to delete key %s: %v", key, err)
	}
}

// Close closes the underlying connection pool.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
