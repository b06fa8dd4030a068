// internal/infrastructure/persistence/postgres/repository/prices/repository.go
package prices

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"competitor-price-monitor/internal/infrastructure/persistence/postgres"
	"competitor-price-monitor/internal/types/failure"
	"competitor-price-monitor/internal/types/storage"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const selectColumns = `id, competitor_name, product_id, product_name, price,
	currency, stock_status, source_url, observed_at`

// PriceRepository - append-only хранилище цен в PostgreSQL
type PriceRepository struct {
	db       *sqlx.DB
	migrator *postgres.Migrator
}

// NewPriceRepository создает репозиторий цен
func NewPriceRepository(db *sqlx.DB) *PriceRepository {
	return &PriceRepository{
		db:       db,
		migrator: postgres.NewMigrator(db),
	}
}

// EnsureSchema применяет встроенные миграции. Повторный вызов ничего не меняет.
func (r *PriceRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.migrator.Migrate(ctx); err != nil {
		return classify("ensure schema", err)
	}
	return nil
}

// MigrationStatus - состояние встроенных миграций
func (r *PriceRepository) MigrationStatus(ctx context.Context) ([]postgres.MigrationStatus, error) {
	statuses, err := r.migrator.Status(ctx)
	if err != nil {
		return nil, classify("migration status", err)
	}
	return statuses, nil
}

// Record добавляет наблюдение и возвращает его id
func (r *PriceRepository) Record(ctx context.Context, obs storage.PriceObservation) (int64, error) {
	if err := obs.Validate(); err != nil {
		return 0, failure.Storage("record", err)
	}
	obs.Normalize()

	query := `
	INSERT INTO prices (
		competitor_name, product_id, product_name, price,
		currency, stock_status, source_url
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id, observed_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		obs.CompetitorName,
		obs.ProductID,
		obs.ProductName,
		obs.Price,
		obs.Currency,
		obs.StockStatus,
		obs.SourceURL,
	).Scan(&obs.ID, &obs.ObservedAt)
	if err != nil {
		return 0, classify("record", err)
	}

	return obs.ID, nil
}

// Latest возвращает последнее наблюдение товара. Пустой competitor - по всем
// конкурентам. При равном observed_at побеждает больший id.
func (r *PriceRepository) Latest(ctx context.Context, productID, competitor string) (*storage.PriceObservation, error) {
	query := `
	SELECT ` + selectColumns + `
	FROM prices
	WHERE product_id = $1 AND ($2 = '' OR competitor_name = $2)
	ORDER BY observed_at DESC, id DESC
	LIMIT 1
	`

	var obs storage.PriceObservation
	err := r.db.GetContext(ctx, &obs, query, productID, competitor)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("latest", err)
	}
	return &obs, nil
}

// History возвращает не более limit наблюдений товара, новые первыми
func (r *PriceRepository) History(ctx context.Context, productID string, limit int) ([]storage.PriceObservation, error) {
	if limit <= 0 {
		limit = storage.DefaultHistoryLimit
	}

	query := `
	SELECT ` + selectColumns + `
	FROM prices
	WHERE product_id = $1
	ORDER BY observed_at DESC, id DESC
	LIMIT $2
	`

	result := []storage.PriceObservation{}
	if err := r.db.SelectContext(ctx, &result, query, productID, limit); err != nil {
		return nil, classify("history", err)
	}
	return result, nil
}

// Ping проверяет соединение
func (r *PriceRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

// classify отделяет потерю соединения (цикл прерывается) от ошибок отдельной записи
func classify(op string, err error) error {
	if isConnectionError(err) {
		return failure.FatalStorage(op, err)
	}
	return failure.Storage(op, err)
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	// SQLSTATE класс 08 - connection exception
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "08"
	}

	var netErr *net.OpError
	return errors.As(err, &netErr)
}
