package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)

	gradeThresholds = []struct {
		min   decimal.Decimal
		grade int
	}{
		{decimal.NewFromInt(85), 5},
		{decimal.NewFromInt(71), 4},
		{decimal.NewFromInt(56), 3},
	}
)

// LowestGrade is assigned below every threshold.
const LowestGrade = 2

// Percentage returns score/total*100, zero when total is not positive.
func Percentage(score, total int) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(score)).Mul(hundred).Div(decimal.NewFromInt(int64(total)))
}

// CalculateGrade maps a score onto the 2..5 scale and returns the percentage used.
func CalculateGrade(score, total int) (int, decimal.Decimal) {
	pct := Percentage(score, total)
	for _, t := range gradeThresholds {
		if pct.GreaterThanOrEqual(t.min) {
			return t.grade, pct
		}
	}
	return LowestGrade, pct
}

// IndexToLetter converts 0 -> "A", 1 -> "B", ...
func IndexToLetter(i int) string {
	if i < 0 || i >= 26 {
		return ""
	}
	return string(rune('A' + i))
}

// LetterToIndex is the inverse of IndexToLetter and accepts lower case.
func LetterToIndex(letter string) (int, bool) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if len(letter) != 1 || letter[0] < 'A' || letter[0] > 'Z' {
		return 0, false
	}
	return int(letter[0] - 'A'), true
}
