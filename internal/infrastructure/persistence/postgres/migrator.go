// internal/infrastructure/persistence/postgres/migrator.go
package postgres

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"competitor-price-monitor/pkg/logger"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrator применяет SQL миграции, вшитые в бинарник
type Migrator struct {
	db         *sqlx.DB
	source     fs.FS
	migrations []*Migration
}

// Migration представляет одну миграцию
type Migration struct {
	ID          int
	Name        string
	Description string
	SQL         string
	Checksum    string
}

type MigrationStatus struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Applied   bool      `json:"applied"`
	AppliedAt time.Time `json:"applied_at,omitempty"`
	Status    string    `json:"status"`
}

type migrationRecord struct {
	ID        int       `db:"id"`
	Name      string    `db:"name"`
	Checksum  string    `db:"checksum"`
	AppliedAt time.Time `db:"applied_at"`
}

// NewMigrator создает мигратор поверх встроенных миграций
func NewMigrator(db *sqlx.DB) *Migrator {
	return NewMigratorFS(db, embeddedMigrations)
}

// NewMigratorFS создает мигратор поверх произвольной файловой системы.
// Файлы ищутся в каталоге migrations/.
func NewMigratorFS(db *sqlx.DB, source fs.FS) *Migrator {
	return &Migrator{db: db, source: source}
}

// Load читает и сортирует файлы миграций
func (m *Migrator) Load() error {
	entries, err := fs.ReadDir(m.source, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	m.migrations = m.migrations[:0]
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		id, name, err := parseMigrationFilename(entry.Name())
		if err != nil {
			return err
		}

		content, err := fs.ReadFile(m.source, path.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}

		m.migrations = append(m.migrations, &Migration{
			ID:          id,
			Name:        name,
			Description: extractDescription(string(content)),
			SQL:         string(content),
			Checksum:    calculateChecksum(content),
		})
	}

	sort.Slice(m.migrations, func(i, j int) bool {
		return m.migrations[i].ID < m.migrations[j].ID
	})

	for i, mg := range m.migrations {
		if mg.ID != i+1 {
			return fmt.Errorf("missing migration with ID %d", i+1)
		}
	}

	logger.Debug("📂 Loaded %d migrations", len(m.migrations))
	return nil
}

// Migrations возвращает загруженные миграции
func (m *Migrator) Migrations() []*Migration {
	return m.migrations
}

func (m *Migrator) initTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		id INTEGER PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		checksum VARCHAR(64) NOT NULL,
		applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`

	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

// Migrate применяет все непримененные миграции, каждую в своей транзакции
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if len(m.migrations) == 0 {
		if err := m.Load(); err != nil {
			return 0, err
		}
	}

	if err := m.initTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mg := range m.migrations {
		if record, ok := applied[mg.ID]; ok {
			if record.Checksum != mg.Checksum {
				return count, fmt.Errorf("checksum mismatch for migration %d: %s", mg.ID, mg.Name)
			}
			continue
		}

		if err := m.apply(ctx, mg); err != nil {
			return count, fmt.Errorf("failed to apply migration %d: %s: %w", mg.ID, mg.Name, err)
		}
		count++
	}

	if count > 0 {
		logger.Info("✅ Applied %d new migrations", count)
	} else {
		logger.Debug("✅ Database schema is up to date")
	}
	return count, nil
}

// Status сравнивает загруженные миграции с примененными
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if len(m.migrations) == 0 {
		if err := m.Load(); err != nil {
			return nil, err
		}
	}

	if err := m.initTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(m.migrations))
	for _, mg := range m.migrations {
		status := MigrationStatus{ID: mg.ID, Name: mg.Name, Status: "pending"}
		if record, ok := applied[mg.ID]; ok {
			status.Applied = true
			status.AppliedAt = record.AppliedAt
			status.Status = "applied"
			if record.Checksum != mg.Checksum {
				status.Status = "checksum_mismatch"
			}
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]migrationRecord, error) {
	var records []migrationRecord
	err := m.db.SelectContext(ctx, &records,
		`SELECT id, name, checksum, applied_at FROM schema_migrations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}

	result := make(map[int]migrationRecord, len(records))
	for _, r := range records {
		result[r.ID] = r
	}
	return result, nil
}

func (m *Migrator) apply(ctx context.Context, mg *Migration) error {
	logger.Info("📤 Applying migration: %s", mg.Name)

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, mg.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (id, name, checksum) VALUES ($1, $2, $3)`,
		mg.ID, mg.Name, mg.Checksum,
	); err != nil {
		return fmt.Errorf("failed to save migration record: %w", err)
	}

	return tx.Commit()
}

// 001_create_prices.sql -> 1, "create prices"
func parseMigrationFilename(filename string) (int, string, error) {
	base := strings.TrimSuffix(filename, ".sql")
	parts := strings.SplitN(base, "_", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("invalid migration filename format: %s (expected: 001_name.sql)", filename)
	}

	id, err := strconv.Atoi(parts[0])
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("invalid migration ID in filename: %s", filename)
	}

	return id, strings.ReplaceAll(parts[1], "_", " "), nil
}

func extractDescription(sql string) string {
	for _, line := range strings.Split(sql, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "-- Description:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "-- Description:"))
		}
	}
	return "No description"
}

func calculateChecksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
