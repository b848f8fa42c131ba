package arbitrage

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type DBExecution struct {
	ID             int64          `db:"id"`
	TxHash         []byte         `db:"tx_hash"`
	BundleHash     []byte         `db:"bundle_hash"`
	Pair           string         `db:"pair"`
	SourceVenue    string         `db:"source_venue"`
	TargetVenue    string         `db:"target_venue"`
	AmountIn       string         `db:"amount_in"`
	ExpectedProfit string         `db:"expected_profit"`
	TargetBlock    int64          `db:"target_block"`
	Success        bool           `db:"success"`
	Reason         sql.NullString `db:"reason"`
	Error          sql.NullString `db:"error"`
	SubmittedAt    time.Time      `db:"submitted_at"`
	InsertedAt     time.Time      `db:"inserted_at"`
}

var insertExecutionQuery = `
INSERT INTO arb_execution (tx_hash, bundle_hash, pair, source_venue, target_venue, amount_in, expected_profit,
                           target_block, success, reason, error, submitted_at)
VALUES (:tx_hash, :bundle_hash, :pair, :source_venue, :target_venue, :amount_in, :expected_profit,
        :target_block, :success, :reason, :error, :submitted_at)`

// DBBackend journals execution attempts to postgres. Rows are never read back by the engine.
type DBBackend struct {
	db              *sqlx.DB
	insertExecution *sqlx.NamedStmt
}

func NewDBBackend(postgresDSN string) (*DBBackend, error) {
	db, err := sqlx.Connect("postgres", postgresDSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	insertExecution, err := db.PrepareNamed(insertExecutionQuery)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DBBackend{
		db:              db,
		insertExecution: insertExecution,
	}, nil
}

func (b *DBBackend) RecordExecution(ctx context.Context, result *ExecutionResult) error {
	_, err := b.insertExecution.ExecContext(ctx, newDBExecution(result))
	return err
}

func newDBExecution(result *ExecutionResult) DBExecution {
	row := DBExecution{
		TxHash:         result.TxHash.Bytes(),
		BundleHash:     result.BundleHash.Bytes(),
		Pair:           result.Pair,
		SourceVenue:    result.SourceVenue,
		TargetVenue:    result.TargetVenue,
		ExpectedProfit: result.ExpectedProfit.String(),
		TargetBlock:    int64(result.TargetBlock),
		Success:        result.Success,
		SubmittedAt:    result.SubmittedAt,
	}
	if result.AmountIn != nil {
		row.AmountIn = result.AmountIn.String()
	}
	if result.Reason != ReasonNone {
		row.Reason = sql.NullString{String: string(result.Reason), Valid: true}
	}
	if result.Error != "" {
		row.Error = sql.NullString{String: result.Error, Valid: true}
	}
	return row
}

func (b *DBBackend) Close() error {
	return b.db.Close()
}
