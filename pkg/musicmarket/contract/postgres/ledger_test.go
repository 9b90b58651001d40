package postgres_test

import (
	"context"
	"math/big"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/contract"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/contract/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	artist = common.HexToAddress("0x2000000000000000000000000000000000000002")
	buyer  = common.HexToAddress("0x3000000000000000000000000000000000000003")
	fee    = big.NewInt(25)
)

func setupLedger(t *testing.T) *postgres.Ledger {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping postgres ledger tests")
	}

	require.NoError(t, postgres.Migrate(nil, dsn, "up", nil))

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE market_token, market_artist, market_balance RESTART IDENTITY`)
	require.NoError(t, err)

	return postgres.NewWithPool(pool, contract.Config{Owner: owner, RoyaltyFee: fee})
}

func TestMigrate_UnknownCommand(t *testing.T) {
	err := postgres.Migrate(nil, "postgres://localhost/none", "sideways", nil)
	assert.Error(t, err)

	err = postgres.Migrate(nil, "postgres://localhost/none", "force", nil)
	assert.Error(t, err)
}

func TestMigrations_Embedded(t *testing.T) {
	data, err := postgres.Migrations().Open("0001_ledger.up.sql")
	require.NoError(t, err)
	defer data.Close()
}

func TestLedger_Flow(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	price := big.NewInt(500)

	assert.ErrorIs(t, l.CreateNewArtist(ctx, artist, artist), contract.ErrNotOwner)
	require.NoError(t, l.CreateNewArtist(ctx, owner, artist))
	assert.ErrorIs(t, l.CreateNewArtist(ctx, owner, artist), contract.ErrArtistExists)

	exists, err := l.CheckArtistExisted(ctx, artist)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = l.CreateToken(ctx, buyer, "uri", price, fee)
	assert.ErrorIs(t, err, contract.ErrNotArtist)
	_, err = l.CreateToken(ctx, artist, "uri", price, big.NewInt(1))
	assert.ErrorIs(t, err, contract.ErrIncorrectPayment)

	id, err := l.CreateToken(ctx, artist, "https://bafk.ipfs.dweb.link/metadata.json", price, fee)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	uri, err := l.TokenURI(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "https://bafk.ipfs.dweb.link/metadata.json", uri)
	_, err = l.TokenURI(ctx, 99)
	assert.ErrorIs(t, err, contract.ErrTokenNotFound)

	unsold, err := l.GetAllUnsoldTokens(ctx)
	require.NoError(t, err)
	require.Len(t, unsold, 1)
	assert.Equal(t, artist, unsold[0].Seller)
	assert.Equal(t, price, unsold[0].Price)

	assert.ErrorIs(t, l.BuyToken(ctx, artist, id, price), contract.ErrSellerCannotBuy)
	assert.ErrorIs(t, l.BuyToken(ctx, buyer, id, big.NewInt(1)), contract.ErrIncorrectPayment)
	require.NoError(t, l.BuyToken(ctx, buyer, id, price))
	assert.ErrorIs(t, l.BuyToken(ctx, buyer, id, price), contract.ErrTokenNotForSale)

	mine, err := l.GetMyTokens(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.True(t, mine[0].Sold)

	assert.ErrorIs(t, l.ResellToken(ctx, artist, id, price, fee), contract.ErrNotTokenOwner)
	require.NoError(t, l.ResellToken(ctx, buyer, id, big.NewInt(900), fee))

	unsold, err = l.GetAllUnsoldTokens(ctx)
	require.NoError(t, err)
	require.Len(t, unsold, 1)
	assert.Equal(t, buyer, unsold[0].Seller)
	assert.Equal(t, big.NewInt(900), unsold[0].Price)

	balance, err := l.Balance(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(50), balance)
	balance, err = l.Balance(ctx, artist)
	require.NoError(t, err)
	assert.Equal(t, price, balance)
}
