package reward_test

import (
	"testing"

	"github.com/gamilit/economy-engine/reward"
)

// =============================================================================
// CLAIM VARIANT
// =============================================================================

func TestClaim(t *testing.T) {
	tests := []struct {
		name       string
		score      int64
		maxScore   int64
		hints      int
		coinsSpent int64
		wantXP     int64
		wantCoins  int64
	}{
		{
			name:  "perfect score no hints earns the bonus",
			score: 100, maxScore: 100,
			wantXP: 150, wantCoins: 20,
		},
		{
			name:  "perfect score with hints loses the bonus",
			score: 100, maxScore: 100, hints: 1,
			wantXP: 95, wantCoins: 10,
		},
		{
			name:  "partial score floors the percentage",
			score: 2, maxScore: 3,
			// 66.66% -> 66 XP, 6 coins
			wantXP: 66, wantCoins: 6,
		},
		{
			name:  "hints subtract flat xp",
			score: 70, maxScore: 100, hints: 3,
			wantXP: 55, wantCoins: 7,
		},
		{
			name:  "power-up spend deducts coins only",
			score: 80, maxScore: 100, coinsSpent: 5,
			wantXP: 80, wantCoins: 3,
		},
		{
			name:  "coins floor at zero",
			score: 50, maxScore: 100, coinsSpent: 40,
			wantXP: 50, wantCoins: 0,
		},
		{
			name:  "xp floors at zero",
			score: 10, maxScore: 100, hints: 5,
			wantXP: 0, wantCoins: 1,
		},
		{
			name:  "score above max is clamped",
			score: 120, maxScore: 100,
			wantXP: 150, wantCoins: 20,
		},
		{
			name:  "zero max score earns nothing",
			score: 50, maxScore: 0,
			wantXP: 0, wantCoins: 0,
		},
		{
			name:  "negative score earns nothing",
			score: -10, maxScore: 100,
			wantXP: 0, wantCoins: 0,
		},
		{
			name:  "negative usage counters treated as zero",
			score: 60, maxScore: 100, hints: -2, coinsSpent: -15,
			wantXP: 60, wantCoins: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reward.Claim(tt.score, tt.maxScore, tt.hints, tt.coinsSpent)
			if got.XP != tt.wantXP {
				t.Errorf("Claim(%d/%d, hints=%d, spent=%d) XP = %d, want %d",
					tt.score, tt.maxScore, tt.hints, tt.coinsSpent, got.XP, tt.wantXP)
			}
			if got.Coins != tt.wantCoins {
				t.Errorf("Claim(%d/%d, hints=%d, spent=%d) Coins = %d, want %d",
					tt.score, tt.maxScore, tt.hints, tt.coinsSpent, got.Coins, tt.wantCoins)
			}
		})
	}
}

// =============================================================================
// PERCENTAGE-PENALTY VARIANTS
// =============================================================================

func TestXPEarned(t *testing.T) {
	tests := []struct {
		name    string
		baseXP  int64
		correct bool
		hints   int
		want    int64
	}{
		{"correct no hints", 100, true, 0, 100},
		{"one hint costs 10 percent", 100, true, 1, 90},
		{"three hints cost 30 percent", 100, true, 3, 70},
		{"penalty caps at 50 percent", 100, true, 9, 50},
		{"incorrect earns nothing", 100, false, 0, 0},
		{"fractional penalty floors once", 33, true, 1, 29},
		{"zero base", 0, true, 0, 0},
		{"negative hints treated as zero", 100, true, -1, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reward.XPEarned(tt.baseXP, tt.correct, tt.hints)
			if got != tt.want {
				t.Errorf("XPEarned(%d, %v, %d) = %d, want %d",
					tt.baseXP, tt.correct, tt.hints, got, tt.want)
			}
		})
	}
}

func TestCoinsEarned(t *testing.T) {
	tests := []struct {
		name      string
		baseCoins int64
		correct   bool
		hints     int
		want      int64
	}{
		{"correct no hints", 20, true, 0, 20},
		{"two hints cost 10 percent", 20, true, 2, 18},
		{"penalty caps at 30 percent", 20, true, 10, 14},
		{"incorrect earns nothing", 20, false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reward.CoinsEarned(tt.baseCoins, tt.correct, tt.hints)
			if got != tt.want {
				t.Errorf("CoinsEarned(%d, %v, %d) = %d, want %d",
					tt.baseCoins, tt.correct, tt.hints, got, tt.want)
			}
		})
	}
}
