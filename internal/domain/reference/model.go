// Package reference holds the lookup tables transactions point at: profiles
// own wallets, wallets own sources, and categories form an optional tree.
package reference

import (
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("reference not found")

type Profile struct {
	ID   uuid.UUID
	Name string
}

type Wallet struct {
	ID        uuid.UUID
	ProfileID uuid.UUID
	Name      string
	Currency  string
}

// Source is a bank account, card or payment app feeding a wallet.
type Source struct {
	ID       uuid.UUID
	WalletID uuid.UUID
	Name     string
	Kind     string
}

type Category struct {
	ID       uuid.UUID
	ParentID *uuid.UUID
	Name     string
}

// Source kinds.
const (
	KindBank = "bank"
	KindCard = "card"
	KindCash = "cash"
	KindApp  = "app"
)
