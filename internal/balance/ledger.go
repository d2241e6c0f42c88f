package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/krisalay/memocache/internal/errs"
	"github.com/krisalay/memocache/internal/logging"
)

// Account is one row of the ledger table.
type Account struct {
	Address   string `gorm:"primaryKey"`
	Balance   uint64 `gorm:"not null"`
	UpdatedAt time.Time
}

func (Account) TableName() string { return "accounts" }

// OpenLedger opens the ledger database and makes sure the accounts table exists.
func OpenLedger(ctx context.Context, driver, dsn string) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "balance.ledger"))

	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3", "":
		if err := ensureSQLiteDirectory(dsn); err != nil {
			return nil, errs.Wrap(err, "ensure sqlite directory")
		}

		db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, errs.Wrap(err, "open sqlite db")
		}
		if err := db.WithContext(ctx).AutoMigrate(&Account{}); err != nil {
			return nil, errs.Wrap(err, "migrate accounts")
		}

		logging.Info(logCtx, "ledger opened", slog.String("driver", "sqlite"), slog.String("dsn", dsn))
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func ensureSQLiteDirectory(dsn string) error {
	candidate := strings.TrimSpace(dsn)
	if candidate == "" || candidate == ":memory:" {
		return nil
	}

	if strings.HasPrefix(strings.ToLower(candidate), "file:") {
		candidate = strings.TrimPrefix(candidate, "file:")
	}
	if idx := strings.Index(candidate, "?"); idx >= 0 {
		candidate = candidate[:idx]
	}

	dir := filepath.Dir(candidate)
	if dir == "" || dir == "." {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrapf(err, "create sqlite directory %q", dir)
	}
	return nil
}

// LedgerSource reads balances from the accounts table.
type LedgerSource struct {
	db *gorm.DB
}

var _ Source = (*LedgerSource)(nil)

func NewLedgerSource(db *gorm.DB) *LedgerSource {
	return &LedgerSource{db: db}
}

func (s *LedgerSource) Load(ctx context.Context, address string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errs.Wrap(err, "check context")
	}

	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return 0, errors.New("address is required")
	}

	var row Account
	if err := s.db.WithContext(ctx).Where("address = ?", trimmed).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: %s", ErrUnknownAddress, trimmed)
		}
		return 0, errs.WithStack(errs.Wrap(err, "query balance by address"))
	}

	return row.Balance, nil
}

// Seed upserts the given balances into the ledger.
func Seed(ctx context.Context, db *gorm.DB, balances map[string]uint64) error {
	if len(balances) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]Account, 0, len(balances))
	for address, balance := range balances {
		rows = append(rows, Account{Address: address, Balance: balance, UpdatedAt: now})
	}

	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return errs.Wrap(err, "upsert balances")
	}

	logging.Info(logging.WithAttrs(ctx, slog.String("component", "balance.ledger")), "ledger seeded", slog.Int("accounts", len(rows)))
	return nil
}

// CloseLedger closes the connection pool behind db.
func CloseLedger(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errs.Wrap(err, "get sql db")
	}
	return sqlDB.Close()
}
