package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"wc-salesforce-sync/internal/config"
	"wc-salesforce-sync/internal/logger"
)

type Database struct {
	DB     *sql.DB
	Config config.DatabaseConnection
}

// NewDatabase connects to the WordPress database, retrying the ping while
// MySQL is still starting.
func NewDatabase(cfg config.DatabaseConnection) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	maxRetries := 30
	for i := 0; i < maxRetries; i++ {
		err = db.Ping()
		if err == nil {
			break
		}
		logger.Log.Info("Waiting for database...", zap.Error(err), zap.Int("attempt", i+1))
		time.Sleep(1 * time.Second)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database after retries: %w", err)
	}

	// Connection pool settings
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	logger.Log.Info("Connected to database",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
	)

	return &Database{
		DB:     db,
		Config: cfg,
	}, nil
}

// Table returns name with the WordPress table prefix applied.
func (d *Database) Table(name string) string {
	return d.Config.TablePrefix + name
}

func (d *Database) Close() error {
	return d.DB.Close()
}

// ExecTx executes a function within a transaction
func (d *Database) ExecTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %v, rb err: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}
