package transaction

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

// Faker generates synthetic transactions for tests and local seeding.
type Faker struct {
	faker *gofakeit.Faker
}

// NewFaker creates a generator. A fixed seed makes output reproducible.
func NewFaker(seed int64) *Faker {
	return &Faker{faker: gofakeit.New(seed)}
}

// FakeOptions bounds generated records.
type FakeOptions struct {
	Target     Target
	From, To   time.Time
	Currency   string
	Categories []uuid.UUID
	// MaxAmountMinor caps each magnitude; defaults to 50000.
	MaxAmountMinor int
}

// Transactions returns n confirmed manual records inside [From, To].
func (f *Faker) Transactions(n int, opts FakeOptions) []*Transaction {
	if opts.Currency == "" {
		opts.Currency = "EUR"
	}
	if opts.MaxAmountMinor <= 0 {
		opts.MaxAmountMinor = 50000
	}

	b := &Builder{
		Clock: func() time.Time { return opts.To },
		NewID: uuid.New,
	}

	txs := make([]*Transaction, 0, n)
	for i := 0; i < n; i++ {
		dir := DirectionOut
		if f.faker.Number(1, 5) == 1 {
			dir = DirectionIn
		}

		var category *uuid.UUID
		if dir == DirectionOut && len(opts.Categories) > 0 {
			c := opts.Categories[f.faker.Number(0, len(opts.Categories)-1)]
			category = &c
		}

		txs = append(txs, b.Manual(
			opts.Target,
			f.faker.DateRange(opts.From, opts.To),
			int64(f.faker.Number(1, opts.MaxAmountMinor)),
			opts.Currency,
			dir,
			f.faker.Company(),
			f.faker.BuzzWord(),
			category,
			nil,
		))
	}
	return txs
}
