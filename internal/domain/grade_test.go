package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculateGradeThresholds(t *testing.T) {
	cases := []struct {
		score, total int
		grade        int
	}{
		{85, 100, 5},
		{100, 100, 5},
		{84, 100, 4},
		{71, 100, 4},
		{70, 100, 3},
		{56, 100, 3},
		{55, 100, 2},
		{10, 100, 2},
		{0, 0, 2},
	}
	for _, tc := range cases {
		grade, _ := CalculateGrade(tc.score, tc.total)
		assert.Equalf(t, tc.grade, grade, "score %d/%d", tc.score, tc.total)
	}
}

func TestPercentageUsesExactArithmetic(t *testing.T) {
	// 17/20 sits exactly on the top threshold.
	grade, pct := CalculateGrade(17, 20)
	assert.Equal(t, 5, grade)
	assert.True(t, pct.Equal(decimal.NewFromInt(85)))

	assert.Equal(t, "66.67", Percentage(2, 3).StringFixed(2))
	assert.True(t, Percentage(3, 0).IsZero())
}

func TestLetters(t *testing.T) {
	assert.Equal(t, "A", IndexToLetter(0))
	assert.Equal(t, "D", IndexToLetter(3))
	assert.Equal(t, "", IndexToLetter(-1))

	i, ok := LetterToIndex(" c ")
	assert.True(t, ok)
	assert.Equal(t, 2, i)

	_, ok = LetterToIndex("AB")
	assert.False(t, ok)
	_, ok = LetterToIndex("1")
	assert.False(t, ok)
}
