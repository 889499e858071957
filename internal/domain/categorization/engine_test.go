package categorization

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestEngine_Match(t *testing.T) {
	groceries := uuid.New()
	rules := []CategoryRule{
		{
			ID:           uuid.New(),
			ProfileID:    uuid.New(),
			MatchPattern: "%AFFITTO%",
			CleanName:    strPtr("Rent"),
			CategoryID:   &groceries,
			IsRecurring:  true,
			Priority:     10,
		},
	}
	merchants := []Merchant{
		{ID: uuid.New(), RawPattern: "%ESSELUNGA%", CleanName: "Esselunga", DefaultCategoryID: &groceries, IsSystem: true},
	}
	engine := NewEngine(rules, merchants)

	t.Run("rule pattern", func(t *testing.T) {
		res := engine.Match("BONIFICO A Mario Rossi; AFFITTO GENNAIO")
		require.NotNil(t, res)
		assert.Equal(t, "Rent", res.CleanName)
		assert.True(t, res.IsRecurring)
		assert.True(t, res.IsRule)
	})

	t.Run("merchant pattern", func(t *testing.T) {
		res := engine.Match("PAGAMENTO POS ESSELUNGA MILANO 12/03")
		require.NotNil(t, res)
		assert.Equal(t, "Esselunga", res.CleanName)
		assert.False(t, res.IsRule)
		assert.Equal(t, &groceries, res.CategoryID)
	})

	t.Run("no match", func(t *testing.T) {
		assert.Nil(t, engine.Match("SOMETHING ELSE"))
	})

	t.Run("case insensitive", func(t *testing.T) {
		res := engine.Match("esselunga via padova")
		require.NotNil(t, res)
		assert.Equal(t, "Esselunga", res.CleanName)
	})
}

func TestEngine_Priority(t *testing.T) {
	ruleCategory := uuid.New()
	merchantCategory := uuid.New()
	profile := uuid.New()

	rules := []CategoryRule{
		{ID: uuid.New(), ProfileID: profile, MatchPattern: "NETFLIX", CleanName: strPtr("Netflix (rule)"), CategoryID: &ruleCategory},
	}
	merchants := []Merchant{
		{ID: uuid.New(), RawPattern: "NETFLIX", CleanName: "Netflix (shared)", DefaultCategoryID: &merchantCategory},
		{ID: uuid.New(), ProfileID: &profile, RawPattern: "SPOTIFY", CleanName: "Spotify (mine)"},
		{ID: uuid.New(), RawPattern: "SPOTIFY", CleanName: "Spotify (shared)"},
	}
	engine := NewEngine(rules, merchants)

	res := engine.Match("NETFLIX.COM")
	require.NotNil(t, res)
	assert.Equal(t, "Netflix (rule)", res.CleanName)
	assert.Equal(t, &ruleCategory, res.CategoryID)

	res = engine.Match("SPOTIFY AB")
	require.NotNil(t, res)
	assert.Equal(t, "Spotify (mine)", res.CleanName)

	all := engine.MatchAll("NETFLIX.COM")
	require.Len(t, all, 2)
	assert.True(t, all[0].IsRule)
	assert.Equal(t, 2, engine.PatternCount())
}

func TestEngine_MatchBatch(t *testing.T) {
	rules := []CategoryRule{
		{ID: uuid.New(), MatchPattern: "%UBER%", CleanName: strPtr("Uber")},
		{ID: uuid.New(), MatchPattern: "%AMAZON%", CleanName: strPtr("Amazon")},
	}
	engine := NewEngine(rules, nil)

	results := engine.MatchBatch([]string{"UBER TRIP", "RANDOM SHOP", "AMAZON MKTP", "UBER EATS"})

	require.Len(t, results, 4)
	assert.Equal(t, "Uber", results[0].CleanName)
	assert.Nil(t, results[1])
	assert.Equal(t, "Amazon", results[2].CleanName)
	assert.Equal(t, "Uber", results[3].CleanName)
}

func TestEngine_EmptyAndRebuild(t *testing.T) {
	engine := NewEngine(nil, []Merchant{{ID: uuid.New(), RawPattern: "%%"}})
	assert.True(t, engine.IsEmpty())
	assert.Nil(t, engine.Match("ANY TEXT"))

	engine.Build([]CategoryRule{{ID: uuid.New(), MatchPattern: "%TEST%", CleanName: strPtr("Test")}}, nil)
	assert.False(t, engine.IsEmpty())
	res := engine.Match("THIS IS A TEST")
	require.NotNil(t, res)
	assert.Equal(t, "Test", res.CleanName)
}

func TestEngine_ConcurrentMatch(t *testing.T) {
	merchants := make([]Merchant, 200)
	for i := range merchants {
		merchants[i] = Merchant{ID: uuid.New(), RawPattern: fmt.Sprintf("SHOP%03d", i), CleanName: fmt.Sprintf("Shop %d", i)}
	}
	engine := NewEngine(nil, merchants)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				res := engine.Match(fmt.Sprintf("CARD SHOP%03d MILANO", (g*50+i)%200))
				if assert.NotNil(t, res) {
					assert.Equal(t, fmt.Sprintf("Shop %d", (g*50+i)%200), res.CleanName)
				}
			}
		}(g)
	}
	wg.Wait()
}

func BenchmarkEngine_Match(b *testing.B) {
	merchants := make([]Merchant, 1000)
	for i := range merchants {
		merchants[i] = Merchant{ID: uuid.New(), RawPattern: fmt.Sprintf("MERCHANT_%d", i), CleanName: fmt.Sprintf("Merchant %d", i)}
	}
	merchants[500] = Merchant{ID: uuid.New(), RawPattern: "ESSELUNGA", CleanName: "Esselunga"}
	engine := NewEngine(nil, merchants)
	input := "PAGAMENTO POS 12/03 ESSELUNGA MILANO VIA PADOVA CARTA 1234"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Match(input)
	}
}
