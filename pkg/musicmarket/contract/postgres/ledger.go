// Package postgres persists the marketplace ledger in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/contract"
)

// DBTX is an interface that allows us to use either a connection pool or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

// Ledger implements musicmarket.Marketplace on PostgreSQL
type Ledger struct {
	db     DBTX
	config contract.Config
}

// New creates a ledger on db
func New(db DBTX, config contract.Config) *Ledger {
	return &Ledger{db: db, config: config.Normalize()}
}

// NewWithPool creates a ledger with a connection pool
func NewWithPool(pool *pgxpool.Pool, config contract.Config) *Ledger {
	return New(pool, config)
}

var _ musicmarket.Marketplace = (*Ledger)(nil)

func (l *Ledger) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("duplicate entry")
		case "23514": // check_violation
			return contract.ErrInvalidPrice
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return contract.ErrTokenNotFound
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (l *Ledger) TokenURI(ctx context.Context, tokenID uint64) (string, error) {
	var uri string
	err := l.db.QueryRow(ctx, `SELECT metadata_uri FROM market_token WHERE id = $1`, int64(tokenID)).Scan(&uri)
	if err != nil {
		return "", l.handlePostgresError("token uri", err)
	}
	return uri, nil
}

func (l *Ledger) GetAllUnsoldTokens(ctx context.Context) ([]musicmarket.TokenRecord, error) {
	return l.list(ctx, "get unsold tokens", `
		SELECT id, price::text, seller, owner FROM market_token
		WHERE seller IS NOT NULL ORDER BY id`)
}

// GetMyTokens returns the tokens held by account, which excludes its active listings
func (l *Ledger) GetMyTokens(ctx context.Context, account common.Address) ([]musicmarket.TokenRecord, error) {
	return l.list(ctx, "get my tokens", `
		SELECT id, price::text, seller, owner FROM market_token
		WHERE owner = $1 ORDER BY id`, account.Hex())
}

func (l *Ledger) CheckIsOwner(ctx context.Context, account common.Address) (bool, error) {
	return account == l.config.Owner, nil
}

func (l *Ledger) CheckArtistExisted(ctx context.Context, address common.Address) (bool, error) {
	var exists bool
	err := l.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM market_artist WHERE address = $1)`, address.Hex()).Scan(&exists)
	if err != nil {
		return false, l.handlePostgresError("check artist", err)
	}
	return exists, nil
}

func (l *Ledger) GetRoyaltyFee(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(l.config.RoyaltyFee), nil
}

func (l *Ledger) BuyToken(ctx context.Context, from common.Address, tokenID uint64, payment *big.Int) error {
	return l.withTx(ctx, "buy token", func(tx pgx.Tx) error {
		t, err := l.lockToken(ctx, tx, tokenID)
		if err != nil {
			return err
		}
		if t.seller == nil {
			return contract.ErrTokenNotForSale
		}
		if *t.seller == from {
			return contract.ErrSellerCannotBuy
		}
		if err := contract.CheckPayment(payment, t.price); err != nil {
			return err
		}
		if err := l.credit(ctx, tx, *t.seller, payment); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE market_token SET seller = NULL, owner = $2, updated_at = now()
			WHERE id = $1`, int64(tokenID), from.Hex())
		return err
	})
}

func (l *Ledger) ResellToken(ctx context.Context, from common.Address, tokenID uint64, price, payment *big.Int) error {
	return l.withTx(ctx, "resell token", func(tx pgx.Tx) error {
		t, err := l.lockToken(ctx, tx, tokenID)
		if err != nil {
			return err
		}
		if t.owner != from {
			return contract.ErrNotTokenOwner
		}
		if err := contract.CheckPrice(price); err != nil {
			return err
		}
		if err := contract.CheckPayment(payment, l.config.RoyaltyFee); err != nil {
			return err
		}
		if err := l.credit(ctx, tx, l.config.Owner, payment); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE market_token SET price = $2::numeric, seller = $3, owner = $4, updated_at = now()
			WHERE id = $1`, int64(tokenID), price.String(), from.Hex(), l.config.Address.Hex())
		return err
	})
}

func (l *Ledger) CreateToken(ctx context.Context, from common.Address, metadataURI string, price, payment *big.Int) (uint64, error) {
	var id int64
	err := l.withTx(ctx, "create token", func(tx pgx.Tx) error {
		var artist bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM market_artist WHERE address = $1)`, from.Hex()).Scan(&artist); err != nil {
			return err
		}
		if !artist {
			return contract.ErrNotArtist
		}
		if err := contract.CheckPrice(price); err != nil {
			return err
		}
		if err := contract.CheckPayment(payment, l.config.RoyaltyFee); err != nil {
			return err
		}
		if err := l.credit(ctx, tx, l.config.Owner, payment); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			INSERT INTO market_token (metadata_uri, price, seller, owner)
			VALUES ($1, $2::numeric, $3, $4) RETURNING id`,
			metadataURI, price.String(), from.Hex(), l.config.Address.Hex()).Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (l *Ledger) CreateNewArtist(ctx context.Context, from common.Address, address common.Address) error {
	if from != l.config.Owner {
		return contract.ErrNotOwner
	}
	tag, err := l.db.Exec(ctx, `
		INSERT INTO market_artist (address) VALUES ($1)
		ON CONFLICT (address) DO NOTHING`, address.Hex())
	if err != nil {
		return l.handlePostgresError("create artist", err)
	}
	if tag.RowsAffected() == 0 {
		return contract.ErrArtistExists
	}
	return nil
}

// Balance returns the wei credited to account by sales and fees
func (l *Ledger) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	var amount string
	err := l.db.QueryRow(ctx, `SELECT amount::text FROM market_balance WHERE account = $1`, account.Hex()).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, l.handlePostgresError("balance", err)
	}
	return parseWei(amount)
}

type tokenRow struct {
	price  *big.Int
	seller *common.Address
	owner  common.Address
}

func (l *Ledger) lockToken(ctx context.Context, tx pgx.Tx, tokenID uint64) (*tokenRow, error) {
	var (
		price  string
		seller *string
		owner  string
	)
	err := tx.QueryRow(ctx, `
		SELECT price::text, seller, owner FROM market_token
		WHERE id = $1 FOR UPDATE`, int64(tokenID)).Scan(&price, &seller, &owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contract.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	wei, err := parseWei(price)
	if err != nil {
		return nil, err
	}
	row := &tokenRow{price: wei, owner: common.HexToAddress(owner)}
	if seller != nil {
		addr := common.HexToAddress(*seller)
		row.seller = &addr
	}
	return row, nil
}

func (l *Ledger) credit(ctx context.Context, tx pgx.Tx, account common.Address, amount *big.Int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO market_balance (account, amount) VALUES ($1, $2::numeric)
		ON CONFLICT (account) DO UPDATE SET amount = market_balance.amount + EXCLUDED.amount`,
		account.Hex(), amount.String())
	return err
}

func (l *Ledger) list(ctx context.Context, operation, query string, args ...interface{}) ([]musicmarket.TokenRecord, error) {
	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, l.handlePostgresError(operation, err)
	}
	defer rows.Close()

	var out []musicmarket.TokenRecord
	for rows.Next() {
		var (
			id     int64
			price  string
			seller *string
			owner  string
		)
		if err := rows.Scan(&id, &price, &seller, &owner); err != nil {
			return nil, l.handlePostgresError(operation, err)
		}
		wei, err := parseWei(price)
		if err != nil {
			return nil, err
		}
		rec := musicmarket.TokenRecord{
			TokenID: uint64(id),
			Price:   wei,
			Owner:   common.HexToAddress(owner),
			Sold:    seller == nil,
		}
		if seller != nil {
			rec.Seller = common.HexToAddress(*seller)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, l.handlePostgresError(operation, err)
	}
	return out, nil
}

// withTx runs fn in a transaction. Contract rule errors pass through unchanged.
func (l *Ledger) withTx(ctx context.Context, operation string, fn func(pgx.Tx) error) error {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return l.handlePostgresError(operation, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		if isRuleError(err) {
			return err
		}
		return l.handlePostgresError(operation, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return l.handlePostgresError(operation, err)
	}
	return nil
}

func isRuleError(err error) bool {
	for _, target := range []error{
		contract.ErrNotOwner, contract.ErrNotArtist, contract.ErrArtistExists,
		contract.ErrIncorrectPayment, contract.ErrTokenNotFound, contract.ErrTokenNotForSale,
		contract.ErrNotTokenOwner, contract.ErrSellerCannotBuy, contract.ErrInvalidPrice,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func parseWei(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid wei amount %q", s)
	}
	return v, nil
}
