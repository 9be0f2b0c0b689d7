package processor

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holdingsflow/models"
)

func holding(cik, inst, issuer string, usd int64) models.HoldingRecord {
	return models.HoldingRecord{
		InstitutionID:   cik,
		InstitutionName: inst,
		IssuerName:      issuer,
		ValueUSD:        decimal.NewFromInt(usd),
	}
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestCalculateChangesBuy(t *testing.T) {
	got := CalculateChanges(
		[]models.HoldingRecord{holding("1", "ALPHA", "APPLE INC", 100)},
		[]models.HoldingRecord{holding("1", "ALPHA", "APPLE INC", 150)},
	)
	require.Len(t, got, 1)
	c := got[0]
	assert.True(t, c.ChangeValue.Equal(dec(50)))
	assert.Equal(t, models.PositionBuy, c.Position)
	assert.False(t, c.IsNew)
	assert.True(t, c.PercentageChange.Equal(dec(50)))
	assert.True(t, c.TotalValueCurrentQuarter.Equal(dec(100)))
	assert.True(t, c.TotalValuePreviousQuarter.Equal(dec(150)))
}

func TestCalculateChangesExit(t *testing.T) {
	got := CalculateChanges(
		[]models.HoldingRecord{holding("1", "ALPHA", "APPLE INC", 100)},
		[]models.HoldingRecord{holding("1", "ALPHA", "OTHER", 70)},
	)
	require.Len(t, got, 1)
	c := got[0]
	assert.True(t, c.ChangeValue.Equal(dec(-100)))
	assert.Equal(t, models.PositionSell, c.Position)
	assert.True(t, c.IsNew)
	assert.True(t, c.PercentageChange.Equal(dec(-100)))
}

func TestCalculateChangesZeroEarlierValue(t *testing.T) {
	got := CalculateChanges(
		[]models.HoldingRecord{holding("1", "ALPHA", "APPLE INC", 0)},
		[]models.HoldingRecord{holding("1", "ALPHA", "APPLE INC", 40)},
	)
	require.Len(t, got, 1)
	assert.True(t, got[0].PercentageChange.IsZero())
	assert.Equal(t, models.PositionBuy, got[0].Position)
}

func TestCalculateChangesZeroChangeIsSell(t *testing.T) {
	got := CalculateChanges(
		[]models.HoldingRecord{holding("1", "ALPHA", "APPLE INC", 80)},
		[]models.HoldingRecord{holding("1", "ALPHA", "APPLE INC", 80)},
	)
	require.Len(t, got, 1)
	assert.Equal(t, models.PositionSell, got[0].Position)
	assert.True(t, got[0].ChangeValue.IsZero())
	assert.False(t, got[0].IsNew)
}

func TestCalculateChangesLastWriteWins(t *testing.T) {
	got := CalculateChanges(
		[]models.HoldingRecord{holding("1", "ALPHA", "APPLE INC", 100)},
		[]models.HoldingRecord{
			holding("1", "ALPHA", "APPLE INC", 300),
			holding("1", "ALPHA", "APPLE INC", 120),
		},
	)
	require.Len(t, got, 1)
	assert.True(t, got[0].ChangeValue.Equal(dec(20)))
	assert.True(t, got[0].TotalValuePreviousQuarter.Equal(dec(420)))
}

func TestCalculateChangesKeyIncludesInstitution(t *testing.T) {
	got := CalculateChanges(
		[]models.HoldingRecord{holding("1", "ALPHA", "APPLE INC", 100)},
		[]models.HoldingRecord{holding("2", "BETA", "APPLE INC", 500)},
	)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsNew)
}

func TestCalculateChangesOneRecordPerEarlierRow(t *testing.T) {
	earlier := []models.HoldingRecord{
		holding("1", "ALPHA", "APPLE INC", 10),
		holding("1", "ALPHA", "APPLE INC", 10),
		holding("1", "ALPHA", "BANK", 5),
	}
	got := CalculateChanges(earlier, nil)
	require.Len(t, got, 3)
	for _, c := range got {
		assert.True(t, c.TotalValueCurrentQuarter.Equal(dec(25)))
		assert.True(t, c.TotalValuePreviousQuarter.IsZero())
	}
}
