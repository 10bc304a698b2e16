package repositories

import (
	"context"

	"autoinvest/src/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PriceRepository reads the asset_prices table kept up to date by the market
// data collaborator. Assets without a row are absent from the result.
type PriceRepository interface {
	GetPrices(ctx context.Context, assetIDs []string) (map[string]models.AssetPrice, error)
}

type priceRepo struct {
	db *pgxpool.Pool
}

func NewPriceRepository(db *pgxpool.Pool) PriceRepository {
	return &priceRepo{db: db}
}

func (r *priceRepo) GetPrices(ctx context.Context, assetIDs []string) (map[string]models.AssetPrice, error) {
	prices := make(map[string]models.AssetPrice, len(assetIDs))
	if len(assetIDs) == 0 {
		return prices, nil
	}

	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT asset_id, current_price, previous_close, quantity_precision, updated_at
		FROM asset_prices
		WHERE asset_id = ANY($1)`, assetIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p models.AssetPrice
		if err := rows.Scan(&p.AssetID, &p.CurrentPrice, &p.PreviousClose, &p.QuantityPrecision, &p.UpdatedAt); err != nil {
			return nil, err
		}
		prices[p.AssetID] = p
	}
	return prices, rows.Err()
}
