/*
Package reward computes XP and coin awards for graded submissions.

PURPOSE:
  Pure calculation only: no storage, no clocks, no side effects. The
  submission workflow feeds in score and usage facts and credits whatever
  comes out; this package never touches the ledger itself.

TWO REWARD SHAPES:
  1. Percentage-penalty variants (XPEarned / CoinsEarned): a base reward
     reduced by a capped per-hint percentage. Used when an exercise defines
     its own base reward values.
  2. The claim variant (Claim): rewards derived from the score percentage,
     with a perfect-score bonus, a flat per-hint XP penalty, and a coin
     deduction for power-ups bought during the attempt. This is what the
     grading workflow uses.

PENALTY RULES:
  - XP:    10% per hint, capped at 50%
  - Coins: 5% per hint, capped at 30%
  - Claim: flat 5 XP per hint, coins minus coins spent on power-ups
  All results floor at zero; an expensive attempt never goes negative.

PRECISION:
  Percentage math runs on decimals and truncates (floor) exactly once at
  the end, so 3 hints on 100 base XP is exactly 70, never 69 or 71.

SEE ALSO:
  - submission/workflow.go: The only production caller of Claim
*/
package reward

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// PENALTY CONSTANTS
// =============================================================================

const (
	// PerfectBonusXP and PerfectBonusCoins are added for a perfect score
	// achieved without hints.
	PerfectBonusXP    int64 = 50
	PerfectBonusCoins int64 = 10

	// FlatHintXPPenalty is subtracted per hint in the claim variant.
	FlatHintXPPenalty int64 = 5
)

var (
	xpPenaltyPerHint   = decimal.RequireFromString("0.10")
	xpPenaltyCap       = decimal.RequireFromString("0.50")
	coinPenaltyPerHint = decimal.RequireFromString("0.05")
	coinPenaltyCap     = decimal.RequireFromString("0.30")
)

// =============================================================================
// PERCENTAGE-PENALTY VARIANTS
// =============================================================================

// XPEarned returns the XP for a base reward after the hint penalty.
// Incorrect answers earn nothing. Each hint costs 10% of the base, capped
// at 50%.
func XPEarned(baseXP int64, isCorrect bool, hintsUsed int) int64 {
	return penalized(baseXP, isCorrect, hintsUsed, xpPenaltyPerHint, xpPenaltyCap)
}

// CoinsEarned returns the coins for a base reward after the hint penalty.
// Each hint costs 5% of the base, capped at 30%.
func CoinsEarned(baseCoins int64, isCorrect bool, hintsUsed int) int64 {
	return penalized(baseCoins, isCorrect, hintsUsed, coinPenaltyPerHint, coinPenaltyCap)
}

func penalized(base int64, isCorrect bool, hintsUsed int, perHint, cap decimal.Decimal) int64 {
	if !isCorrect || base <= 0 {
		return 0
	}
	if hintsUsed < 0 {
		hintsUsed = 0
	}

	penalty := perHint.Mul(decimal.NewFromInt(int64(hintsUsed)))
	if penalty.GreaterThan(cap) {
		penalty = cap
	}

	earned := decimal.NewFromInt(base).
		Mul(decimal.NewFromInt(1).Sub(penalty)).
		Floor().
		IntPart()
	if earned < 0 {
		return 0
	}
	return earned
}

// =============================================================================
// CLAIM VARIANT
// =============================================================================

// ClaimResult carries the amounts the workflow credits after a correct
// submission.
type ClaimResult struct {
	XP    int64
	Coins int64
}

// Claim computes the reward for a graded, correct submission.
//
//	scorePct = 100 * score / maxScore
//	xp       = floor(scorePct)        (+50 if perfect and hint-free)
//	coins    = floor(scorePct / 10)   (+10 if perfect and hint-free)
//
// Then 5 XP per hint is subtracted and coins spent on power-ups during the
// attempt are deducted, both floored at zero.
func Claim(score, maxScore int64, hintsUsed int, coinsSpentOnPowerUps int64) ClaimResult {
	if maxScore <= 0 || score < 0 {
		return ClaimResult{}
	}
	if score > maxScore {
		score = maxScore
	}
	if hintsUsed < 0 {
		hintsUsed = 0
	}
	if coinsSpentOnPowerUps < 0 {
		coinsSpentOnPowerUps = 0
	}

	scorePct := decimal.NewFromInt(score * 100).Div(decimal.NewFromInt(maxScore))

	xp := scorePct.Floor().IntPart()
	coins := scorePct.Div(decimal.NewFromInt(10)).Floor().IntPart()

	if score == maxScore && hintsUsed == 0 {
		xp += PerfectBonusXP
		coins += PerfectBonusCoins
	}

	xp -= FlatHintXPPenalty * int64(hintsUsed)
	if xp < 0 {
		xp = 0
	}

	coins -= coinsSpentOnPowerUps
	if coins < 0 {
		coins = 0
	}

	return ClaimResult{XP: xp, Coins: coins}
}
