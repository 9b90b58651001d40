// Package contract holds the rules shared by the marketplace ledgers in its subpackages.
package contract

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// DefaultAddress is the address the marketplace holds listed tokens under
	DefaultAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

	// DefaultOwner is the account that deploys DefaultAddress on a local development chain
	DefaultOwner = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
)

var (
	// ErrNotOwner indicates a caller other than the contract owner tried an owner-only operation
	ErrNotOwner = errors.New("caller is not the contract owner")

	// ErrNotArtist indicates a caller that is not a registered artist tried to create a token
	ErrNotArtist = errors.New("caller is not a registered artist")

	// ErrArtistExists indicates the artist is already registered
	ErrArtistExists = errors.New("artist already registered")

	// ErrIncorrectPayment indicates the attached value does not match the required amount
	ErrIncorrectPayment = errors.New("incorrect payment")

	// ErrTokenNotFound indicates no token exists with the given id
	ErrTokenNotFound = errors.New("token not found")

	// ErrTokenNotForSale indicates the token is not currently listed
	ErrTokenNotForSale = errors.New("token not for sale")

	// ErrNotTokenOwner indicates a caller tried to resell a token it does not hold
	ErrNotTokenOwner = errors.New("caller does not own the token")

	// ErrSellerCannotBuy indicates the seller tried to buy their own listing
	ErrSellerCannotBuy = errors.New("seller cannot buy own token")

	// ErrInvalidPrice indicates a listing price that is not greater than zero
	ErrInvalidPrice = errors.New("price must be greater than zero")
)

// Config holds the deployment parameters of a marketplace ledger
type Config struct {
	Owner      common.Address // Contract owner, receives royalty fees
	Address    common.Address // Address listed tokens are held under
	RoyaltyFee *big.Int       // Fee in wei paid on create and resell
}

// Normalize fills unset fields with defaults
func (c Config) Normalize() Config {
	if c.Address == (common.Address{}) {
		c.Address = DefaultAddress
	}
	if c.RoyaltyFee == nil {
		c.RoyaltyFee = new(big.Int)
	}
	return c
}

// CheckPayment returns ErrIncorrectPayment unless payment equals want
func CheckPayment(payment, want *big.Int) error {
	if payment == nil || want == nil || payment.Cmp(want) != 0 {
		return ErrIncorrectPayment
	}
	return nil
}

// CheckPrice returns ErrInvalidPrice unless price is positive
func CheckPrice(price *big.Int) error {
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidPrice
	}
	return nil
}
