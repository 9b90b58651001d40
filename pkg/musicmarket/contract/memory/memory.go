package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/contract"
)

type token struct {
	uri    string
	price  *big.Int
	seller common.Address // zero when not listed
	owner  common.Address
}

// Ledger implements musicmarket.Marketplace in memory
type Ledger struct {
	mu       sync.RWMutex
	config   contract.Config
	tokens   map[uint64]*token
	artists  map[common.Address]bool
	balances map[common.Address]*big.Int
	nextID   uint64
}

// New creates an empty ledger owned by config.Owner
func New(config contract.Config) *Ledger {
	return &Ledger{
		config:   config.Normalize(),
		tokens:   make(map[uint64]*token),
		artists:  make(map[common.Address]bool),
		balances: make(map[common.Address]*big.Int),
	}
}

var _ musicmarket.Marketplace = (*Ledger)(nil)

func (l *Ledger) TokenURI(ctx context.Context, tokenID uint64) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, ok := l.tokens[tokenID]
	if !ok {
		return "", contract.ErrTokenNotFound
	}
	return t.uri, nil
}

func (l *Ledger) GetAllUnsoldTokens(ctx context.Context) ([]musicmarket.TokenRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.collect(func(t *token) bool { return t.seller != (common.Address{}) }), nil
}

// GetMyTokens returns the tokens held by account, which excludes its active listings
func (l *Ledger) GetMyTokens(ctx context.Context, account common.Address) ([]musicmarket.TokenRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.collect(func(t *token) bool { return t.owner == account }), nil
}

func (l *Ledger) CheckIsOwner(ctx context.Context, account common.Address) (bool, error) {
	return account == l.config.Owner, nil
}

func (l *Ledger) CheckArtistExisted(ctx context.Context, address common.Address) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.artists[address], nil
}

func (l *Ledger) GetRoyaltyFee(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(l.config.RoyaltyFee), nil
}

func (l *Ledger) BuyToken(ctx context.Context, from common.Address, tokenID uint64, payment *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tokens[tokenID]
	if !ok {
		return contract.ErrTokenNotFound
	}
	if t.seller == (common.Address{}) {
		return contract.ErrTokenNotForSale
	}
	if t.seller == from {
		return contract.ErrSellerCannotBuy
	}
	if err := contract.CheckPayment(payment, t.price); err != nil {
		return err
	}

	l.credit(t.seller, payment)
	t.seller = common.Address{}
	t.owner = from
	return nil
}

func (l *Ledger) ResellToken(ctx context.Context, from common.Address, tokenID uint64, price, payment *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tokens[tokenID]
	if !ok {
		return contract.ErrTokenNotFound
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

	l.credit(l.config.Owner, payment)
	t.price = new(big.Int).Set(price)
	t.seller = from
	t.owner = l.config.Address
	return nil
}

func (l *Ledger) CreateToken(ctx context.Context, from common.Address, metadataURI string, price, payment *big.Int) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.artists[from] {
		return 0, contract.ErrNotArtist
	}
	if err := contract.CheckPrice(price); err != nil {
		return 0, err
	}
	if err := contract.CheckPayment(payment, l.config.RoyaltyFee); err != nil {
		return 0, err
	}

	l.credit(l.config.Owner, payment)
	l.nextID++
	l.tokens[l.nextID] = &token{
		uri:    metadataURI,
		price:  new(big.Int).Set(price),
		seller: from,
		owner:  l.config.Address,
	}
	return l.nextID, nil
}

func (l *Ledger) CreateNewArtist(ctx context.Context, from common.Address, address common.Address) error {
	if from != l.config.Owner {
		return contract.ErrNotOwner
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.artists[address] {
		return contract.ErrArtistExists
	}
	l.artists[address] = true
	return nil
}

// Balance returns the wei credited to account by sales and fees
func (l *Ledger) Balance(account common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (l *Ledger) credit(account common.Address, amount *big.Int) {
	b, ok := l.balances[account]
	if !ok {
		b = new(big.Int)
		l.balances[account] = b
	}
	b.Add(b, amount)
}

func (l *Ledger) collect(keep func(*token) bool) []musicmarket.TokenRecord {
	var out []musicmarket.TokenRecord
	for id, t := range l.tokens {
		if !keep(t) {
			continue
		}
		out = append(out, musicmarket.TokenRecord{
			TokenID: id,
			Price:   new(big.Int).Set(t.price),
			Seller:  t.seller,
			Owner:   t.owner,
			Sold:    t.seller == (common.Address{}),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out
}
