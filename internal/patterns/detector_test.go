package patterns

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banking/batch-analysis/internal/config"
	"github.com/banking/batch-analysis/internal/domain"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func tx(id, sender, amount string, at time.Time) domain.Transaction {
	return domain.Transaction{
		ID:         id,
		SenderID:   sender,
		ReceiverID: "R-" + id,
		Amount:     decimal.RequireFromString(amount),
		Timestamp:  at,
	}
}

// spaced builds n transactions from one sender, each gap apart
func spaced(sender, amount string, n int, gap time.Duration, start time.Time) []domain.Transaction {
	out := make([]domain.Transaction, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, tx(fmt.Sprintf("%s-%d", sender, i), sender, amount, start.Add(time.Duration(i)*gap)))
	}
	return out
}

func findingOf(findings []domain.PatternFinding, t domain.PatternType) *domain.PatternFinding {
	for i := range findings {
		if findings[i].Type == t {
			return &findings[i]
		}
	}
	return nil
}

func TestDetect_EmptyInput(t *testing.T) {
	d := NewDetector(nil)

	findings := d.Detect(nil)
	require.NotNil(t, findings)
	assert.Empty(t, findings)

	findings = d.Detect([]domain.Transaction{})
	require.NotNil(t, findings)
	assert.Empty(t, findings)
}

func TestDetect_RapidSuccession(t *testing.T) {
	d := NewDetector(nil)

	t.Run("five transactions 100s apart", func(t *testing.T) {
		findings := d.Detect(spaced("S1", "123.45", 5, 100*time.Second, t0))

		require.Len(t, findings, 1)
		f := findings[0]
		assert.Equal(t, domain.PatternRapidSuccession, f.Type)
		assert.Equal(t, "S1", f.EntityID)
		assert.Equal(t, 4, f.Count)
		assert.InDelta(t, 0.8, f.RiskScore, 1e-9)
		assert.Contains(t, f.Description, "S1")
		assert.Nil(t, f.Percentage)
	})

	t.Run("only two rapid gaps", func(t *testing.T) {
		txs := []domain.Transaction{
			tx("a", "S1", "123.45", t0),
			tx("b", "S1", "123.45", t0.Add(100*time.Second)),
			tx("c", "S1", "123.45", t0.Add(200*time.Second)),
			tx("d", "S1", "123.45", t0.Add(600*time.Second)),
			tx("e", "S1", "123.45", t0.Add(1000*time.Second)),
		}
		assert.Empty(t, d.Detect(txs))
	})

	t.Run("fewer than five transactions", func(t *testing.T) {
		assert.Empty(t, d.Detect(spaced("S1", "123.45", 4, 10*time.Second, t0)))
	})

	t.Run("gap of exactly five minutes is not rapid", func(t *testing.T) {
		assert.Empty(t, d.Detect(spaced("S1", "123.45", 6, 5*time.Minute, t0)))
	})

	t.Run("score is capped", func(t *testing.T) {
		findings := d.Detect(spaced("S1", "123.45", 10, time.Second, t0))
		require.Len(t, findings, 1)
		assert.Equal(t, 9, findings[0].Count)
		assert.InDelta(t, 0.9, findings[0].RiskScore, 1e-9)
	})

	t.Run("one finding per sender in first-appearance order", func(t *testing.T) {
		txs := append(
			spaced("S1", "123.45", 5, time.Minute, t0.Add(30*time.Second)),
			spaced("S2", "123.45", 5, time.Minute, t0)...,
		)
		findings := d.Detect(txs)

		require.Len(t, findings, 2)
		assert.Equal(t, "S2", findings[0].EntityID)
		assert.Equal(t, "S1", findings[1].EntityID)
	})
}

func TestDetect_RoundNumberBias(t *testing.T) {
	d := NewDetector(nil)

	build := func(round int) []domain.Transaction {
		txs := make([]domain.Transaction, 0, 100)
		for i := 0; i < 100; i++ {
			amount := "123.45"
			if i < round {
				amount = "5000"
			}
			txs = append(txs, tx(fmt.Sprintf("t%d", i), "S1", amount, t0.Add(time.Duration(i)*time.Hour)))
		}
		return txs
	}

	t.Run("exactly ten percent does not fire", func(t *testing.T) {
		assert.Nil(t, findingOf(d.Detect(build(10)), domain.PatternRoundNumberBias))
	})

	t.Run("eleven percent fires", func(t *testing.T) {
		f := findingOf(d.Detect(build(11)), domain.PatternRoundNumberBias)
		require.NotNil(t, f)
		assert.Equal(t, 11, f.Count)
		require.NotNil(t, f.Percentage)
		assert.InDelta(t, 11.0, *f.Percentage, 1e-9)
		assert.InDelta(t, 0.6, f.RiskScore, 1e-9)
		assert.Empty(t, f.EntityID)
	})

	t.Run("zero counts as a multiple", func(t *testing.T) {
		f := findingOf(d.Detect([]domain.Transaction{tx("z", "S1", "0", t0)}), domain.PatternRoundNumberBias)
		require.NotNil(t, f)
		assert.InDelta(t, 100.0, *f.Percentage, 1e-9)
	})
}

func TestDetect_StructuringBand(t *testing.T) {
	d := NewDetector(nil)

	cases := []struct {
		amount string
		inBand bool
	}{
		{"9000", true},
		{"9000.00", true},
		{"9999.99", true},
		{"10000", false},
		{"8999.99", false},
		{"15000", false},
	}

	for _, tc := range cases {
		t.Run(tc.amount, func(t *testing.T) {
			f := findingOf(d.Detect([]domain.Transaction{tx("x", "S1", tc.amount, t0)}), domain.PatternPotentialStructuring)
			if !tc.inBand {
				assert.Nil(t, f)
				return
			}
			require.NotNil(t, f)
			assert.Equal(t, 1, f.Count)
			assert.InDelta(t, 0.8, f.RiskScore, 1e-9)
			assert.Contains(t, f.Description, "10000")
			assert.Empty(t, f.EntityID)
		})
	}
}

func TestDetect_CustomThreshold(t *testing.T) {
	cfg := config.DefaultPatternsConfig()
	cfg.StructuringThreshold = 5000

	d := NewDetector(&cfg)
	findings := d.Detect([]domain.Transaction{
		tx("a", "S1", "4600", t0),
		tx("b", "S2", "9500", t0.Add(time.Hour)),
	})

	f := findingOf(findings, domain.PatternPotentialStructuring)
	require.NotNil(t, f)
	assert.Equal(t, 1, f.Count)
}

func TestDetect_RulesCoFire(t *testing.T) {
	amounts := []string{"1000", "2000", "9500", "9999.99", "500", "3000"}
	txs := make([]domain.Transaction, 0, len(amounts))
	for i, a := range amounts {
		txs = append(txs, tx(fmt.Sprintf("t%d", i), "S1", a, t0.Add(time.Duration(i)*90*time.Second)))
	}

	findings := NewDetector(nil).Detect(txs)
	require.Len(t, findings, 3)

	assert.Equal(t, domain.PatternRapidSuccession, findings[0].Type)
	assert.Equal(t, "S1", findings[0].EntityID)
	assert.Equal(t, 5, findings[0].Count)
	assert.InDelta(t, 0.9, findings[0].RiskScore, 1e-9)

	assert.Equal(t, domain.PatternRoundNumberBias, findings[1].Type)
	assert.Equal(t, 3, findings[1].Count)
	assert.InDelta(t, 50.0, *findings[1].Percentage, 1e-9)

	assert.Equal(t, domain.PatternPotentialStructuring, findings[2].Type)
	assert.Equal(t, 2, findings[2].Count)
}

func TestDetect_DeterministicOverUnsortedInput(t *testing.T) {
	txs := append(
		spaced("S1", "1000", 6, 30*time.Second, t0),
		spaced("S2", "9100", 6, 45*time.Second, t0.Add(10*time.Second))...,
	)
	shuffled := make([]domain.Transaction, len(txs))
	copy(shuffled, txs)
	rand.New(rand.NewSource(42)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	snapshot := make([]domain.Transaction, len(shuffled))
	copy(snapshot, shuffled)

	d := NewDetector(nil)
	first := d.Detect(shuffled)
	second := d.Detect(shuffled)

	assert.Equal(t, first, second)
	assert.Equal(t, d.Detect(txs), first)
	assert.Equal(t, snapshot, shuffled, "input must not be reordered")
}

func TestDetect_SelfTransfersAreValidInput(t *testing.T) {
	txs := spaced("S1", "123.45", 5, time.Minute, t0)
	for i := range txs {
		txs[i].ReceiverID = txs[i].SenderID
		require.NoError(t, txs[i].Validate())
	}

	findings := NewDetector(nil).Detect(txs)
	require.Len(t, findings, 1)
	assert.Equal(t, domain.PatternRapidSuccession, findings[0].Type)
}
