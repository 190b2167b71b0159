package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quveo/marketscan/internal/domain"
)

// OpportunityStore persists surfaced arbitrage opportunities.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// Record inserts one opportunity. The compute engine leaves IDs empty to
// stay deterministic; identity is assigned here at the persistence boundary.
func (s *OpportunityStore) Record(ctx context.Context, opp domain.Opportunity) error {
	if opp.ID == "" {
		opp.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO opportunities (
			id, symbol, source_exchange, destination_exchange,
			effective_ask, effective_bid, spread, spread_percentage,
			executable_quantity, source_commission_percent,
			destination_commission_percent, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		opp.ID, opp.Symbol, opp.Source.String(), opp.Destination.String(),
		opp.EffectiveAsk, opp.EffectiveBid, opp.Spread, opp.SpreadPct,
		opp.ExecutableQty, opp.SourceFeePct, opp.DestinationFeePct,
		opp.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity: %w", err)
	}
	return nil
}

// ListBySymbolSince returns opportunities for one symbol observed at or
// after the given time, newest first. Live mode uses it to summarize what a
// session recorded.
func (s *OpportunityStore) ListBySymbolSince(ctx context.Context, symbol string, since time.Time) ([]domain.Opportunity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, symbol, source_exchange, destination_exchange,
		       effective_ask, effective_bid, spread, spread_percentage,
		       executable_quantity, source_commission_percent,
		       destination_commission_percent, observed_at
		FROM opportunities WHERE symbol = $1 AND observed_at >= $2
		ORDER BY observed_at DESC`, symbol, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities for %s: %w", symbol, err)
	}
	defer rows.Close()
	return scanOpportunities(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanOpportunities(rows pgxRows) ([]domain.Opportunity, error) {
	var list []domain.Opportunity
	for rows.Next() {
		var o domain.Opportunity
		var src, dst string
		if err := rows.Scan(&o.ID, &o.Symbol, &src, &dst,
			&o.EffectiveAsk, &o.EffectiveBid, &o.Spread, &o.SpreadPct,
			&o.ExecutableQty, &o.SourceFeePct, &o.DestinationFeePct,
			&o.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		var err error
		if o.Source, err = domain.ParseExchange(src); err != nil {
			return nil, err
		}
		if o.Destination, err = domain.ParseExchange(dst); err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// Compile-time interface check.
var _ domain.OpportunityRecorder = (*OpportunityStore)(nil)
