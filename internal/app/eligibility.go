/**
 * @description
 * The advance eligibility scorer. A pure function over a read-only history
 * snapshot: five independently scored factors (0-100 each) combine into a
 * weighted composite that gates both availability and the maximum advance
 * amount. No database access happens here; the store assembles the snapshot.
 */

package app

import (
	"math"
	"time"

	"github.com/perchfin/perch-backend/internal/domain"
)

// Factor weights. They sum to 1.
const (
	weightIncomeConsistency = 0.30
	weightAverageBalance    = 0.25
	weightSpendingPatterns  = 0.20
	weightAccountAge        = 0.10
	weightRepaymentHistory  = 0.15
)

// MinEligibleScore is the composite score below which no advance is offered.
const MinEligibleScore = 31

// MinAdvanceAmount is the smallest advance a user may request, in cents.
const MinAdvanceAmount = 2500

// ScoreEligibility evaluates a user's snapshot as of now. Hard blocks (no
// checking account, an outstanding advance) force score 0 and max amount 0
// regardless of history.
func ScoreEligibility(s *domain.EligibilitySnapshot, now time.Time) domain.EligibilityResult {
	result := domain.EligibilityResult{HasLinkedBank: s.HasVerifiedLinkedBank}

	if !s.HasCheckingAccount {
		result.Message = "Open a checking account to qualify for an ExtraCash advance."
		return result
	}
	if s.HasActiveAdvance {
		result.Message = "You already have an outstanding advance. Repay it to request another."
		return result
	}

	result.Factors = domain.EligibilityFactors{
		IncomeConsistency: scoreIncomeConsistency(s.DepositCount90d, s.DepositAmounts90d),
		AverageBalance:    scoreAverageBalance(s.CheckingBalance, s.DepositTotal30d),
		SpendingPatterns:  scoreSpendingPatterns(s.Income90d, s.Expenses90d),
		AccountAge:        scoreAccountAge(s.AccountOpenedAt, now),
		RepaymentHistory:  scoreRepaymentHistory(s.RepaidAdvances, s.OverdueAdvances),
	}

	weighted := weightIncomeConsistency*float64(result.Factors.IncomeConsistency) +
		weightAverageBalance*float64(result.Factors.AverageBalance) +
		weightSpendingPatterns*float64(result.Factors.SpendingPatterns) +
		weightAccountAge*float64(result.Factors.AccountAge) +
		weightRepaymentHistory*float64(result.Factors.RepaymentHistory)
	result.Score = int(math.Round(weighted))
	result.MaxAmount = maxAmountForScore(result.Score)
	result.Eligible = result.Score >= MinEligibleScore

	if result.Eligible {
		result.Message = "You're eligible for an ExtraCash advance."
	} else {
		result.Message = "Your account activity doesn't qualify for an advance yet. Regular deposits improve your score."
	}
	return result
}

// scoreIncomeConsistency scores the trailing-90-day deposit cadence, adjusted
// by how uniform the deposit amounts are (coefficient of variation).
func scoreIncomeConsistency(count int, amounts []int64) int {
	var score int
	switch {
	case count == 0:
		return 0
	case count <= 2:
		score = 30
	case count <= 5:
		score = 70
	default:
		score = 100
	}

	// CV needs at least two samples and a non-zero mean to mean anything.
	if len(amounts) >= 2 {
		cv := coefficientOfVariation(amounts)
		if cv < 0.1 {
			score += 10
			if score > 100 {
				score = 100
			}
		} else if cv > 0.5 {
			score -= 20
			if score < 0 {
				score = 0
			}
		}
	}
	return score
}

func coefficientOfVariation(amounts []int64) float64 {
	n := float64(len(amounts))
	var sum float64
	for _, a := range amounts {
		sum += float64(a)
	}
	mean := sum / n
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, a := range amounts {
		d := float64(a) - mean
		variance += d * d
	}
	variance /= n
	return math.Sqrt(variance) / mean
}

// scoreAverageBalance scores the current balance relative to the trailing
// 30-day deposit total. With no recent deposits, a cushion above $500 earns a
// neutral 50.
func scoreAverageBalance(balance, depositTotal30d int64) int {
	if depositTotal30d == 0 {
		if balance > 50000 {
			return 50
		}
		return 0
	}
	ratio := float64(balance) / float64(depositTotal30d)
	switch {
	case ratio >= 0.5:
		return 100
	case ratio >= 0.25:
		return 70
	case ratio >= 0.1:
		return 40
	default:
		return 15
	}
}

// scoreSpendingPatterns scores the trailing-90-day savings rate.
func scoreSpendingPatterns(income, expenses int64) int {
	if income <= 0 {
		return 0
	}
	rate := float64(income-expenses) / float64(income)
	switch {
	case rate >= 0.2:
		return 100
	case rate >= 0.1:
		return 75
	case rate >= 0:
		return 50
	default:
		return 20
	}
}

// scoreAccountAge scores how long the checking account has been open.
func scoreAccountAge(openedAt, now time.Time) int {
	days := int(now.Sub(openedAt).Hours() / 24)
	switch {
	case days >= 180:
		return 100
	case days >= 90:
		return 75
	case days >= 30:
		return 50
	default:
		return 20
	}
}

// scoreRepaymentHistory scores prior advance outcomes, neutral with no
// history.
func scoreRepaymentHistory(repaid, overdue int) int {
	total := repaid + overdue
	if total == 0 {
		return 50
	}
	return int(math.Round(float64(repaid) / float64(total) * 100))
}

// maxAmountForScore maps the composite score to the advance ceiling in cents.
func maxAmountForScore(score int) int64 {
	switch {
	case score >= 86:
		return 50000
	case score >= 71:
		return 40000
	case score >= 51:
		return 25000
	case score >= MinEligibleScore:
		return 10000
	default:
		return 0
	}
}
