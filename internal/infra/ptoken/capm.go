// Package ptoken implements political-token (P) issuance and balances.
//
// Issuance follows the Contribution-Adjusted Proportional Minting rule
// (CAPM): a DAO's contributors for a period are ranked by contribution and
// paid on an arithmetic ladder whose mean is the DAO's median value.
//
//	rank:    1        2             …   N
//	amount:  min+(N−1)d  min+(N−2)d  …   min
//	Σ = N × median,  d = 2(median − min)/(N − 1)
//
// Amounts are integer micro-units. The ladder step is truncated to a whole
// micro-unit and the truncation remainder is paid to rank 1, so the period
// total is always exactly N × median.
//
// Raw token value never enters the calculation; only the ordering does.
package ptoken

import (
	"fmt"
	"sort"

	"github.com/baekya-protocol/baekya/internal/domain"
)

// ─── Median Value ───────────────────────────────────────────────────────────

// MedianValue is the mean per-contributor issuance of a DAO with
// memberCount members: 3 P up to 10 members, 8 up to 100, 16 up to 1000,
// then 30.
func MedianValue(memberCount int) domain.Amount {
	switch {
	case memberCount <= 10:
		return domain.Tokens(3)
	case memberCount <= 100:
		return domain.Tokens(8)
	case memberCount <= 1000:
		return domain.Tokens(16)
	default:
		return domain.Tokens(30)
	}
}

// ─── CAPM ───────────────────────────────────────────────────────────────────

// MintConfig parameterises one issuance period.
type MintConfig struct {
	MemberCount  int           // DAO size; selects the median value
	MinGuarantee domain.Amount // amount paid to the last rank
	Period       string        // label written to the issuance audit
}

// DefaultMinGuarantee is the minimum issuance per ranked contributor.
var DefaultMinGuarantee = domain.Tokens(1)

// Ladder is a computed allocation with the quantities that define it.
type Ladder struct {
	Median      domain.Amount       `json:"median"`
	Step        domain.Amount       `json:"step"`      // truncated common difference
	Remainder   domain.Amount       `json:"remainder"` // paid on top to rank 1
	Total       domain.Amount       `json:"total"`
	Allocations []domain.Allocation `json:"allocations"`
}

// ComputeCAPM ranks contributors by score (descending, ties by identity)
// and assigns each its ladder amount. No contributors yields an empty
// ladder; a single contributor receives the median value.
func ComputeCAPM(scores map[string]float64, cfg MintConfig) (Ladder, error) {
	members := cfg.MemberCount
	if members < len(scores) {
		members = len(scores)
	}
	median := MedianValue(members)

	if cfg.MinGuarantee < 0 {
		return Ladder{}, domain.InvalidField("minGuarantee", "must not be negative, got %v", cfg.MinGuarantee)
	}
	if cfg.MinGuarantee > median {
		return Ladder{}, domain.InvalidField("minGuarantee", "%v exceeds median value %v", cfg.MinGuarantee, median)
	}

	ranked := rank(scores)
	n := domain.Amount(len(ranked))
	ladder := Ladder{Median: median}

	switch n {
	case 0:
		return ladder, nil
	case 1:
		ranked[0].Amount = median
		ladder.Total = median
		ladder.Allocations = ranked
		return ladder, nil
	}

	total := n * median
	step := 2 * (median - cfg.MinGuarantee) / (n - 1)
	pairs := n * (n - 1) / 2
	closed := n*cfg.MinGuarantee + step*pairs
	remainder := total - closed

	// The exact step would close the sum; truncation loses less than one
	// micro-unit per ladder pair.
	if remainder < 0 || remainder >= pairs || closed+remainder != total {
		return Ladder{}, &domain.FieldError{
			Kind:   domain.ErrNumeric,
			Field:  "allocation",
			Detail: fmt.Sprintf("ladder sum %v + %v does not close to %v", closed, remainder, total),
		}
	}

	for i := range ranked {
		r := domain.Amount(ranked[i].Rank)
		ranked[i].Amount = cfg.MinGuarantee + (n-r)*step
	}
	ranked[0].Amount += remainder

	ladder.Step = step
	ladder.Remainder = remainder
	ladder.Total = total
	ladder.Allocations = ranked
	return ladder, nil
}

// rank orders scores descending with identity as the tie-break and assigns
// ranks starting at 1.
func rank(scores map[string]float64) []domain.Allocation {
	out := make([]domain.Allocation, 0, len(scores))
	for id, score := range scores {
		out = append(out, domain.Allocation{Identity: id, Contribution: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Contribution != out[j].Contribution {
			return out[i].Contribution > out[j].Contribution
		}
		return out[i].Identity < out[j].Identity
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
