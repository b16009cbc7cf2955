package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Secret is a named secret payload, encrypted at rest.
type Secret struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"uniqueIndex;not null"`
	EncryptedValue string `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName overrides the table name to use the taskbridge schema
func (Secret) TableName() string {
	return "taskbridge.secrets"
}

// PostgresStore keeps secrets in Postgres, encrypted with AES-256-GCM.
type PostgresStore struct {
	db  *gorm.DB
	box *cipherBox
}

// OpenPostgresStore connects to the database and ensures the secrets
// table exists. Requires CREDENTIAL_ENCRYPTION_KEY.
func OpenPostgresStore(dsn string) (*PostgresStore, error) {
	box, err := newCipherBoxFromEnv()
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Exec("CREATE SCHEMA IF NOT EXISTS taskbridge").Error; err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", pgError(err))
	}
	if err := db.AutoMigrate(&Secret{}); err != nil {
		return nil, fmt.Errorf("failed to migrate secrets table: %w", pgError(err))
	}

	return &PostgresStore{db: db, box: box}, nil
}

// Get returns the decrypted payload for a secret name.
func (s *PostgresStore) Get(ctx context.Context, name string) (string, error) {
	var sec Secret
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&sec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", pgError(err)
	}

	plain, err := s.box.decrypt(sec.EncryptedValue)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret %q: %w", name, err)
	}
	return string(plain), nil
}

// Put creates or replaces a secret, storing the payload encrypted.
func (s *PostgresStore) Put(ctx context.Context, name, value string) error {
	enc, err := s.box.encrypt([]byte(value))
	if err != nil {
		return fmt.Errorf("failed to encrypt secret %q: %w", name, err)
	}

	sec := Secret{Name: name, EncryptedValue: enc}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"encrypted_value", "updated_at"}),
	}).Create(&sec).Error; err != nil {
		return pgError(err)
	}
	return nil
}

// Delete removes a secret.
func (s *PostgresStore) Delete(ctx context.Context, name string) error {
	result := s.db.WithContext(ctx).Where("name = ?", name).Delete(&Secret{})
	if result.Error != nil {
		return pgError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// pgError surfaces the server-reported message and SQLSTATE for Postgres
// errors, which GORM otherwise buries in driver wrapping.
func pgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("postgres error %s: %s", pgErr.Code, pgErr.Message)
	}
	return err
}
