package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atmx/lockup-engine/internal/model"
)

// Schema is the PostgreSQL layout. All amounts are NUMERIC for exact
// decimal precision; the positions_owner index serves PositionsByOwner.
const Schema = `
CREATE TABLE IF NOT EXISTS staking_config (
	id             SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	owner          TEXT NOT NULL,
	stake_denom    TEXT NOT NULL,
	issuer_address TEXT NOT NULL,
	long_period    BIGINT NOT NULL,
	short_period   BIGINT NOT NULL,
	long_tax       NUMERIC NOT NULL,
	short_tax      NUMERIC NOT NULL,
	penalty        NUMERIC NOT NULL
);

CREATE TABLE IF NOT EXISTS total_supply (
	id     SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	issued NUMERIC NOT NULL DEFAULT 0,
	locked NUMERIC NOT NULL DEFAULT 0,
	fees   NUMERIC NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS token_info (
	id           SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	name         TEXT NOT NULL,
	symbol       TEXT NOT NULL,
	decimals     SMALLINT NOT NULL,
	total_supply NUMERIC NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS positions (
	seq       BIGSERIAL,
	id        TEXT PRIMARY KEY,
	owner     TEXT NOT NULL,
	principal NUMERIC NOT NULL CHECK (principal > 0),
	opened_at TIMESTAMPTZ NOT NULL,
	duration  BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS positions_owner ON positions (owner, seq);

CREATE TABLE IF NOT EXISTS balances (
	address TEXT PRIMARY KEY,
	amount  NUMERIC NOT NULL CHECK (amount > 0)
);
`

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Every Update runs in one serializable transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *PostgresStore) Init(ctx context.Context, cfg model.Config, info model.TokenInfo) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO staking_config (id, owner, stake_denom, issuer_address,
			        long_period, short_period, long_tax, short_tax, penalty)
			 VALUES (1, $1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC)
			 ON CONFLICT (id) DO NOTHING`,
			cfg.Owner, cfg.StakeDenom, cfg.IssuerAddress,
			int64(cfg.Period.Long), int64(cfg.Period.Short),
			cfg.Tax.Long.String(), cfg.Tax.Short.String(), cfg.Penalty.String(),
		)
		if err != nil {
			return fmt.Errorf("init config: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrAlreadyInitialized
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO total_supply (id, issued, locked, fees) VALUES (1, 0, 0, 0)`); err != nil {
			return fmt.Errorf("init supply: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO token_info (id, name, symbol, decimals, total_supply) VALUES (1, $1, $2, $3, 0)`,
			info.Name, info.Symbol, int16(info.Decimals)); err != nil {
			return fmt.Errorf("init token info: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx, forUpdate: true})
	})
}

func (s *PostgresStore) View(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

// pgTx implements Tx on top of one pgx transaction.
type pgTx struct {
	tx        pgx.Tx
	forUpdate bool
}

func (t *pgTx) lockClause() string {
	if t.forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

func (t *pgTx) Config(ctx context.Context) (model.Config, error) {
	var c model.Config
	var longPeriod, shortPeriod int64
	var longTax, shortTax, penalty string

	err := t.tx.QueryRow(ctx,
		`SELECT owner, stake_denom, issuer_address, long_period, short_period,
		        long_tax::TEXT, short_tax::TEXT, penalty::TEXT
		 FROM staking_config WHERE id = 1`).
		Scan(&c.Owner, &c.StakeDenom, &c.IssuerAddress, &longPeriod, &shortPeriod,
			&longTax, &shortTax, &penalty)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Config{}, model.ErrNotInitialized
	}
	if err != nil {
		return model.Config{}, fmt.Errorf("get config: %w", err)
	}

	c.Period = model.LockPeriod{Long: time.Duration(longPeriod), Short: time.Duration(shortPeriod)}
	if c.Tax.Long, err = decimal.NewFromString(longTax); err != nil {
		return model.Config{}, fmt.Errorf("get config: long tax: %w", err)
	}
	if c.Tax.Short, err = decimal.NewFromString(shortTax); err != nil {
		return model.Config{}, fmt.Errorf("get config: short tax: %w", err)
	}
	if c.Penalty, err = decimal.NewFromString(penalty); err != nil {
		return model.Config{}, fmt.Errorf("get config: penalty: %w", err)
	}
	return c, nil
}

func (t *pgTx) Supply(ctx context.Context) (model.Supply, error) {
	var issued, locked, fees string
	err := t.tx.QueryRow(ctx,
		`SELECT issued::TEXT, locked::TEXT, fees::TEXT FROM total_supply WHERE id = 1`+t.lockClause()).
		Scan(&issued, &locked, &fees)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Supply{}, model.ErrNotInitialized
	}
	if err != nil {
		return model.Supply{}, fmt.Errorf("get supply: %w", err)
	}

	var s model.Supply
	if s.Issued, err = decimal.NewFromString(issued); err != nil {
		return model.Supply{}, fmt.Errorf("get supply: issued: %w", err)
	}
	if s.Locked, err = decimal.NewFromString(locked); err != nil {
		return model.Supply{}, fmt.Errorf("get supply: locked: %w", err)
	}
	if s.Fees, err = decimal.NewFromString(fees); err != nil {
		return model.Supply{}, fmt.Errorf("get supply: fees: %w", err)
	}
	return s, nil
}

func (t *pgTx) PutSupply(ctx context.Context, s model.Supply) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE total_supply
		 SET issued = $1::NUMERIC, locked = $2::NUMERIC, fees = $3::NUMERIC
		 WHERE id = 1`,
		s.Issued.String(), s.Locked.String(), s.Fees.String())
	return err
}

func (t *pgTx) Position(ctx context.Context, id string) (model.Position, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT id, owner, principal::TEXT, opened_at, duration
		 FROM positions WHERE id = $1`+t.lockClause(), id)

	p, err := scanPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Position{}, fmt.Errorf("position %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.Position{}, fmt.Errorf("get position %s: %w", id, err)
	}
	return p, nil
}

func (t *pgTx) InsertPosition(ctx context.Context, p model.Position) error {
	tag, err := t.tx.Exec(ctx,
		`INSERT INTO positions (id, owner, principal, opened_at, duration)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Owner, p.Principal.String(), p.OpenedAt, int64(p.Duration))
	if err != nil {
		return fmt.Errorf("insert position %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("position %s: %w", p.ID, model.ErrDuplicateID)
	}
	return nil
}

func (t *pgTx) UpdatePosition(ctx context.Context, p model.Position) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE positions
		 SET principal = $3::NUMERIC, opened_at = $4, duration = $5
		 WHERE id = $1 AND owner = $2`,
		p.ID, p.Owner, p.Principal.String(), p.OpenedAt, int64(p.Duration))
	if err != nil {
		return fmt.Errorf("update position %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("position %s: %w", p.ID, model.ErrNotFound)
	}
	return nil
}

func (t *pgTx) RemovePosition(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM positions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("remove position %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("position %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (t *pgTx) PositionsByOwner(ctx context.Context, owner string) ([]model.Position, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, owner, principal::TEXT, opened_at, duration
		 FROM positions WHERE owner = $1 ORDER BY seq`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (t *pgTx) TokenInfo(ctx context.Context) (model.TokenInfo, error) {
	var info model.TokenInfo
	var decimals int16
	var total string

	err := t.tx.QueryRow(ctx,
		`SELECT name, symbol, decimals, total_supply::TEXT FROM token_info WHERE id = 1`+t.lockClause()).
		Scan(&info.Name, &info.Symbol, &decimals, &total)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.TokenInfo{}, model.ErrNotInitialized
	}
	if err != nil {
		return model.TokenInfo{}, fmt.Errorf("get token info: %w", err)
	}
	info.Decimals = uint8(decimals)
	if info.TotalSupply, err = decimal.NewFromString(total); err != nil {
		return model.TokenInfo{}, fmt.Errorf("get token info: total supply: %w", err)
	}
	return info, nil
}

func (t *pgTx) PutTokenInfo(ctx context.Context, info model.TokenInfo) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE token_info SET name = $1, symbol = $2, decimals = $3, total_supply = $4::NUMERIC
		 WHERE id = 1`,
		info.Name, info.Symbol, int16(info.Decimals), info.TotalSupply.String())
	return err
}

func (t *pgTx) Balance(ctx context.Context, addr string) (decimal.Decimal, error) {
	var amount string
	err := t.tx.QueryRow(ctx,
		`SELECT amount::TEXT FROM balances WHERE address = $1`+t.lockClause(), addr).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get balance %s: %w", addr, err)
	}
	return decimal.NewFromString(amount)
}

func (t *pgTx) PutBalance(ctx context.Context, addr string, amount decimal.Decimal) error {
	if amount.IsZero() {
		_, err := t.tx.Exec(ctx, `DELETE FROM balances WHERE address = $1`, addr)
		return err
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO balances (address, amount) VALUES ($1, $2::NUMERIC)
		 ON CONFLICT (address) DO UPDATE SET amount = EXCLUDED.amount`,
		addr, amount.String())
	return err
}

// scanPosition reads one positions row.
func scanPosition(row pgx.Row) (model.Position, error) {
	var p model.Position
	var principal string
	var duration int64

	if err := row.Scan(&p.ID, &p.Owner, &principal, &p.OpenedAt, &duration); err != nil {
		return model.Position{}, err
	}
	var err error
	if p.Principal, err = decimal.NewFromString(principal); err != nil {
		return model.Position{}, fmt.Errorf("position %s principal: %w", p.ID, err)
	}
	p.Duration = time.Duration(duration)
	return p, nil
}
