/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface of the recognition engine on one
  SQLite database, so an engine operation (credit + log update + mission
  progress) commits or rolls back as a unit.

INTERFACES IMPLEMENTED:
  generic.Store:       Point ledger transactions
  rewards.Repository:  Users, catalog, logged actions, redemptions,
                       mission progress, settings, notifications, WithTx

APPEND-ONLY ENFORCEMENT:
  The ledger half enforces append-only semantics:
  - No UPDATE statements on the transactions table
  - No DELETE statements on the transactions table (except Reset)
  - Corrections via reversal transactions only

KEY TABLES:
  transactions:        Immutable ledger of all point changes
  users:               Identities and roles (no balance column)
  actions, prizes:     Catalog
  missions:            Mission catalog with flattened goal
  special_events:      Bonus events, config as JSON
  logged_actions:      Claims and their validation outcome
  redemptions:         Prize requests with the cost held
  mission_progress:    One row per (user, mission, period)
  admin_settings:      Single row of administrative gates
  notifications:       Messages, optional unique dedupe key
  notification_reads:  Per-reader read markers

TRANSACTIONS:
  Every method runs against a querier: the *sql.DB for the root store or
  the *sql.Tx inside WithTx. The tx view is the same Store type bound to
  the tx, so it never reaches back into the pool while the tx is open.
  WithTx on a tx view joins the open transaction.

CONCURRENCY:
  The pool is capped at one connection. SQLite allows a single writer, and
  ":memory:" databases exist per connection, so one connection keeps both
  file and in-memory stores consistent. Callers queue on the pool.

USAGE:
  store, err := sqlite.New("./data/recognition.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := rewards.NewEngine(store)

SEE ALSO:
  - generic/store.go: Ledger store interface
  - rewards/repository.go: Engine persistence contracts
  - generic/store/memory.go: In-memory ledger store for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/rewards"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	q  querier
	tx *sql.Tx // set on transactional views
}

var (
	_ generic.Store      = (*Store)(nil)
	_ rewards.Repository = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store, err := NewWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewWithDB wraps an open database and migrates it.
func NewWithDB(db *sql.DB) (*Store, error) {
	db.SetMaxOpenConns(1)
	store := &Store{db: db, q: db}
	if err := store.migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Stats reports connection pool statistics.
func (s *Store) Stats() sql.DBStats {
	return s.db.Stats()
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	schema := `
	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		effective_at TEXT NOT NULL,
		delta_value TEXT NOT NULL,
		delta_unit TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		metadata_json TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_entity_account_date
		ON transactions(entity_id, account_id, effective_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_reference
		ON transactions(reference_id) WHERE reference_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		role TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category TEXT NOT NULL,
		description TEXT NOT NULL,
		points INTEGER NOT NULL,
		validator TEXT
	);

	CREATE TABLE IF NOT EXISTS prizes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category TEXT,
		description TEXT NOT NULL,
		cost INTEGER NOT NULL,
		benefit TEXT,
		icon TEXT,
		image_url TEXT
	);

	CREATE TABLE IF NOT EXISTS missions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT,
		cadence TEXT NOT NULL,
		goal_type TEXT NOT NULL,
		goal_category TEXT NOT NULL,
		goal_count INTEGER NOT NULL,
		reward_points INTEGER NOT NULL,
		global BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS special_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT,
		event_type TEXT NOT NULL,
		config_json TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS logged_actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		action_id INTEGER NOT NULL,
		month TEXT NOT NULL,
		notes TEXT,
		status TEXT NOT NULL,
		validation_date TEXT,
		validated_by INTEGER,
		base_points INTEGER NOT NULL DEFAULT 0,
		bonus_points INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- Monthly totals and pending queues (hot paths)
	CREATE INDEX IF NOT EXISTS idx_logs_user_status_month
		ON logged_actions(user_id, status, month);
	CREATE INDEX IF NOT EXISTS idx_logs_month_status
		ON logged_actions(month, status);

	CREATE TABLE IF NOT EXISTS redemptions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		prize_id INTEGER NOT NULL,
		cost INTEGER NOT NULL,
		request_date TEXT NOT NULL,
		status TEXT NOT NULL,
		approval_date TEXT,
		resolved_by INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_redemptions_user
		ON redemptions(user_id);
	CREATE INDEX IF NOT EXISTS idx_redemptions_status
		ON redemptions(status);

	CREATE TABLE IF NOT EXISTS mission_progress (
		user_id INTEGER NOT NULL,
		mission_id INTEGER NOT NULL,
		period TEXT NOT NULL,
		progress INTEGER NOT NULL,
		status TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, mission_id, period)
	);

	CREATE TABLE IF NOT EXISTS admin_settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		actions_locked_until TEXT,
		prizes_locked BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		sender_id INTEGER NOT NULL DEFAULT 0,
		recipient_id INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL,
		medal TEXT,
		dedupe_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_recipient
		ON notifications(recipient_id, created_at);

	CREATE TABLE IF NOT EXISTS notification_reads (
		notification_id TEXT NOT NULL,
		user_id INTEGER NOT NULL,
		PRIMARY KEY (notification_id, user_id)
	);
	`

	_, err := s.q.ExecContext(ctx, schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes fn within a database transaction. Nested calls join the
// open transaction.
func (s *Store) WithTx(ctx context.Context, fn func(rewards.Repository) error) error {
	if s.tx != nil {
		return fn(s)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	view := &Store{db: s.db, q: sqlTx, tx: sqlTx}
	if err := fn(view); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// TRANSACTION STORE (generic.Store interface)
// =============================================================================

const transactionColumns = `id, entity_id, account_id, resource_type, effective_at, delta_value, delta_unit,
	tx_type, reference_id, reason, idempotency_key, metadata_json, created_by, created_at`

// Append adds a transaction to the ledger.
func (s *Store) Append(ctx context.Context, tx generic.Transaction) error {
	return s.appendTx(ctx, s.q, tx)
}

func (s *Store) appendTx(ctx context.Context, q querier, tx generic.Transaction) error {
	var metadataJSON []byte
	if len(tx.Metadata) > 0 {
		metadataJSON, _ = json.Marshal(tx.Metadata)
	}
	createdAt := tx.CreatedAt.Time
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	resourceID := ""
	if tx.ResourceType != nil {
		resourceID = tx.ResourceType.ResourceID()
	}

	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := q.ExecContext(ctx, query,
		tx.ID,
		tx.EntityID,
		tx.AccountID,
		resourceID,
		formatDate(tx.EffectiveAt),
		tx.Delta.Value.String(),
		tx.Delta.Unit,
		tx.Type,
		nullString(tx.ReferenceID),
		nullString(tx.Reason),
		nullString(tx.IdempotencyKey),
		nullString(string(metadataJSON)),
		nullString(tx.CreatedBy),
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// AppendBatch adds multiple transactions atomically.
func (s *Store) AppendBatch(ctx context.Context, txs []generic.Transaction) error {
	keys := make(map[string]bool)
	for _, tx := range txs {
		if tx.IdempotencyKey != "" {
			if keys[tx.IdempotencyKey] {
				return generic.ErrDuplicateIdempotencyKey
			}
			keys[tx.IdempotencyKey] = true
		}
	}

	if s.tx != nil {
		for _, tx := range txs {
			if err := s.appendTx(ctx, s.tx, tx); err != nil {
				return err
			}
		}
		return nil
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, tx := range txs {
		if err := s.appendTx(ctx, sqlTx, tx); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

// Load returns all transactions for an entity+account in ledger order.
func (s *Store) Load(ctx context.Context, entityID generic.EntityID, accountID generic.AccountID) ([]generic.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE entity_id = ? AND account_id = ?
		ORDER BY effective_at ASC, rowid ASC`
	return s.queryTransactions(ctx, query, entityID, accountID)
}

// LoadRange returns transactions effective within [from, to].
func (s *Store) LoadRange(ctx context.Context, entityID generic.EntityID, accountID generic.AccountID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE entity_id = ? AND account_id = ?
		  AND effective_at >= ? AND effective_at <= ?
		ORDER BY effective_at ASC, rowid ASC`
	return s.queryTransactions(ctx, query, entityID, accountID, formatDate(from), formatDate(to))
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

// RecentTransactions returns the newest transactions across all users.
func (s *Store) RecentTransactions(ctx context.Context, limit int) ([]generic.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		ORDER BY rowid DESC
		LIMIT ?`
	return s.queryTransactions(ctx, query, limit)
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]generic.Transaction, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []generic.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (generic.Transaction, error) {
	var (
		tx             generic.Transaction
		resourceTypeID string
		effectiveAt    string
		deltaValue     string
		deltaUnit      string
		referenceID    sql.NullString
		reason         sql.NullString
		idempotencyKey sql.NullString
		metadataJSON   sql.NullString
		createdBy      sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&tx.ID, &tx.EntityID, &tx.AccountID, &resourceTypeID,
		&effectiveAt, &deltaValue, &deltaUnit, &tx.Type,
		&referenceID, &reason, &idempotencyKey, &metadataJSON, &createdBy, &createdAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.ResourceType = generic.GetOrCreateResource(resourceTypeID)
	tx.EffectiveAt = parseDate(effectiveAt)
	tx.Delta = parseAmount(deltaValue, deltaUnit)
	tx.ReferenceID = referenceID.String
	tx.Reason = reason.String
	tx.IdempotencyKey = idempotencyKey.String
	tx.CreatedBy = createdBy.String
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		tx.CreatedAt = generic.TimePoint{Time: t}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		json.Unmarshal([]byte(metadataJSON.String), &tx.Metadata)
	}
	return tx, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for demo scenarios and tests). IDs restart at 1.
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{
		"transactions", "users", "actions", "prizes", "missions", "special_events",
		"logged_actions", "redemptions", "mission_progress", "admin_settings",
		"notifications", "notification_reads", "sqlite_sequence",
	}
	return s.WithTx(ctx, func(r rewards.Repository) error {
		view := r.(*Store)
		for _, table := range tables {
			if _, err := view.q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return err
			}
		}
		return nil
	})
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func parseAmount(value, unit string) generic.Amount {
	return generic.Amount{
		Value: generic.MustParseDecimal(value),
		Unit:  generic.Unit(unit),
	}
}

func formatDate(tp generic.TimePoint) string {
	if tp.IsZero() {
		return ""
	}
	return tp.Time.Format(generic.DateLayout)
}

func parseDate(s string) generic.TimePoint {
	tp, err := generic.ParseDate(s)
	if err != nil {
		return generic.TimePoint{}
	}
	return tp
}

func nullDate(tp *generic.TimePoint) sql.NullString {
	if tp == nil || tp.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(*tp), Valid: true}
}

func scanDate(ns sql.NullString) *generic.TimePoint {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	tp := parseDate(ns.String)
	return &tp
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func noRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
