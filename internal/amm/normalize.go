package amm

import (
	"fmt"
	"math"
	"strings"

	"github.com/avelez/dexscan/internal/domain"
)

// Asset identifies one side of a traded pair: its on-chain address and the
// number of fractional digits in its fixed-point representation.
type Asset struct {
	Symbol   string
	Address  string
	Decimals int
}

// scale converts a raw reserve into human units.
func (a Asset) scale(raw float64) float64 {
	return raw / math.Pow10(a.Decimals)
}

// Normalize converts a raw pool snapshot into a PoolReading with reserves in
// human units and price expressed as quote per base. The base/quote
// assignment is decided by matching token identities against the base asset
// address, case-insensitively. If neither slot holds the base asset the pool
// is misconfigured and a NormalizationError is returned; the assignment is
// never defaulted silently.
func Normalize(state domain.PoolState, base, quote Asset) (domain.PoolReading, error) {
	if state.Reserve0 <= 0 || state.Reserve1 <= 0 {
		return domain.PoolReading{}, &domain.NormalizationError{
			Reason: fmt.Sprintf("non-positive reserves (%v, %v)", state.Reserve0, state.Reserve1),
		}
	}

	var baseRaw, quoteRaw float64
	switch {
	case strings.EqualFold(state.Token0, base.Address):
		baseRaw, quoteRaw = state.Reserve0, state.Reserve1
	case strings.EqualFold(state.Token1, base.Address):
		baseRaw, quoteRaw = state.Reserve1, state.Reserve0
	default:
		return domain.PoolReading{}, &domain.NormalizationError{
			Reason: fmt.Sprintf("pair (%s, %s) does not contain base asset %s",
				state.Token0, state.Token1, base.Symbol),
		}
	}

	baseReserve := base.scale(baseRaw)
	quoteReserve := quote.scale(quoteRaw)
	return domain.PoolReading{
		BaseReserve:  baseReserve,
		QuoteReserve: quoteReserve,
		Price:        quoteReserve / baseReserve,
	}, nil
}
