package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/evetabi/memeoracle/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// SQLJournal records every ledger mutation so the in-memory ledger can be
// rebuilt after a restart. It is append-only apart from the one-time
// resolution update.
type SQLJournal struct {
	db *sqlx.DB
}

// NewSQLJournal creates a new SQLJournal.
func NewSQLJournal(db *sqlx.DB) *SQLJournal {
	return &SQLJournal{db: db}
}

type marketRow struct {
	ID                string              `db:"id"`
	Seq               int64               `db:"seq"`
	Subject           string              `db:"subject"`
	Question          string              `db:"question"`
	Options           string              `db:"options"`
	Status            string              `db:"status"`
	CreatedAt         int64               `db:"created_at"`
	ExpiresAt         int64               `db:"expires_at"`
	Outcome           sql.NullString      `db:"outcome"`
	PriceAtResolution decimal.NullDecimal `db:"price_at_resolution"`
	ResolvedAt        sql.NullInt64       `db:"resolved_at"`
}

type stakeRow struct {
	ID         string          `db:"id"`
	MarketID   string          `db:"market_id"`
	Seq        int64           `db:"seq"`
	AgentID    string          `db:"agent_id"`
	Position   string          `db:"position"`
	Amount     decimal.Decimal `db:"amount"`
	Confidence int             `db:"confidence"`
	Reasoning  string          `db:"reasoning"`
	CreatedAt  int64           `db:"created_at"`
}

// SaveMarket inserts a freshly created market. seq is its position in
// creation order.
func (j *SQLJournal) SaveMarket(ctx context.Context, seq int, m *domain.Market) error {
	opts, err := json.Marshal(m.Options)
	if err != nil {
		return fmt.Errorf("journal.SaveMarket: encode options: %w", err)
	}
	query := j.db.Rebind(`
		INSERT INTO markets (id, seq, subject, question, options, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = j.db.ExecContext(ctx, query,
		m.ID, seq, m.Subject, m.Question, string(opts), string(m.Status),
		m.CreatedAt.UnixMilli(), m.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("journal.SaveMarket: %w", err)
	}
	return nil
}

// AppendStake records a stake as the seq-th stake of marketID.
func (j *SQLJournal) AppendStake(ctx context.Context, marketID string, seq int, st domain.Stake) error {
	query := j.db.Rebind(`
		INSERT INTO stakes (id, market_id, seq, agent_id, position, amount, confidence, reasoning, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := j.db.ExecContext(ctx, query,
		st.ID, marketID, seq, st.AgentID, string(st.Position), st.Amount,
		st.Confidence, st.Reasoning, st.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("journal.AppendStake: %w", err)
	}
	return nil
}

// SaveResolution marks an open market resolved. Returns
// ErrMarketAlreadyResolved if the row is no longer open and ErrMarketNotFound
// if it does not exist.
func (j *SQLJournal) SaveResolution(ctx context.Context, marketID string, r domain.Resolution) error {
	price := decimal.NullDecimal{}
	if r.PriceAtResolution != nil {
		price = decimal.NewNullDecimal(*r.PriceAtResolution)
	}
	query := j.db.Rebind(`
		UPDATE markets
		SET status              = ?,
		    outcome             = ?,
		    price_at_resolution = ?,
		    resolved_at         = ?
		WHERE id = ? AND status = ?`)
	res, err := j.db.ExecContext(ctx, query,
		string(domain.StatusResolved), string(r.Outcome), price, r.ResolvedAt.UnixMilli(),
		marketID, string(domain.StatusOpen),
	)
	if err != nil {
		return fmt.Errorf("journal.SaveResolution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var count int
		if err := j.db.GetContext(ctx, &count, j.db.Rebind(`SELECT COUNT(*) FROM markets WHERE id = ?`), marketID); err != nil {
			return fmt.Errorf("journal.SaveResolution: %w", err)
		}
		if count == 0 {
			return domain.ErrMarketNotFound
		}
		return domain.ErrMarketAlreadyResolved
	}
	return nil
}

// LoadMarkets rebuilds every journaled market in creation order. Pools are
// recomputed from the stakes rather than read back, so they always equal the
// sum of their side's stakes.
func (j *SQLJournal) LoadMarkets(ctx context.Context) ([]*domain.Market, error) {
	var mrows []marketRow
	if err := j.db.SelectContext(ctx, &mrows, `
		SELECT id, seq, subject, question, options, status, created_at, expires_at,
		       outcome, price_at_resolution, resolved_at
		FROM markets ORDER BY seq ASC`); err != nil {
		return nil, fmt.Errorf("journal.LoadMarkets markets: %w", err)
	}

	var srows []stakeRow
	if err := j.db.SelectContext(ctx, &srows, `
		SELECT id, market_id, seq, agent_id, position, amount, confidence, reasoning, created_at
		FROM stakes ORDER BY market_id ASC, seq ASC`); err != nil {
		return nil, fmt.Errorf("journal.LoadMarkets stakes: %w", err)
	}
	byMarket := make(map[string][]stakeRow, len(mrows))
	for _, s := range srows {
		byMarket[s.MarketID] = append(byMarket[s.MarketID], s)
	}

	markets := make([]*domain.Market, 0, len(mrows))
	for _, row := range mrows {
		m, err := row.toDomain(byMarket[row.ID])
		if err != nil {
			return nil, fmt.Errorf("journal.LoadMarkets %s: %w", row.ID, err)
		}
		markets = append(markets, m)
	}
	return markets, nil
}

func (row marketRow) toDomain(stakes []stakeRow) (*domain.Market, error) {
	var opts []string
	if err := json.Unmarshal([]byte(row.Options), &opts); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}

	m := &domain.Market{
		ID:        row.ID,
		Subject:   row.Subject,
		Question:  row.Question,
		Options:   opts,
		Status:    domain.StatusOpen,
		CreatedAt: time.UnixMilli(row.CreatedAt).UTC(),
		ExpiresAt: time.UnixMilli(row.ExpiresAt).UTC(),
	}
	for _, s := range stakes {
		m = m.WithStake(domain.Stake{
			ID:         s.ID,
			AgentID:    s.AgentID,
			Position:   domain.Side(s.Position),
			Amount:     s.Amount,
			Confidence: s.Confidence,
			Reasoning:  s.Reasoning,
			Timestamp:  time.UnixMilli(s.CreatedAt).UTC(),
		})
	}

	if domain.MarketStatus(row.Status) == domain.StatusResolved {
		r := domain.Resolution{Outcome: domain.Side(row.Outcome.String)}
		if row.PriceAtResolution.Valid {
			p := row.PriceAtResolution.Decimal
			r.PriceAtResolution = &p
		}
		if row.ResolvedAt.Valid {
			r.ResolvedAt = time.UnixMilli(row.ResolvedAt.Int64).UTC()
		}
		m = m.Resolve(r)
	}
	return m, nil
}
