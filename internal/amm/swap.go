// Package amm implements constant-product pool math and reserve
// normalization. All functions are pure and deterministic.
package amm

import (
	"errors"
	"fmt"
)

// ErrInvalidInput reports swap parameters outside the domain of the
// constant-product formulas, e.g. a requested output at or above the
// available reserve. It indicates a configuration or trade-size bug, not a
// transient condition.
var ErrInvalidInput = errors.New("amm: swap parameters out of domain")

// SwapOut returns the output amount for swapping amountIn against a pool
// with the given reserves under a proportional fee:
//
//	out = (in·(1−fee)·reserveOut) / (reserveIn + in·(1−fee))
func SwapOut(amountIn, reserveIn, reserveOut, fee float64) (float64, error) {
	if err := checkPool(reserveIn, reserveOut, fee); err != nil {
		return 0, err
	}
	if amountIn < 0 {
		return 0, fmt.Errorf("%w: amountIn %v < 0", ErrInvalidInput, amountIn)
	}
	inWithFee := amountIn * (1 - fee)
	return inWithFee * reserveOut / (reserveIn + inWithFee), nil
}

// SwapIn returns the input amount required to receive amountOut from a pool
// with the given reserves, the algebraic inverse of SwapOut:
//
//	in = (reserveIn·out) / ((reserveOut − out)·(1−fee))
//
// amountOut must be strictly between zero and reserveOut; a pool cannot pay
// out its entire reserve.
func SwapIn(amountOut, reserveIn, reserveOut, fee float64) (float64, error) {
	if err := checkPool(reserveIn, reserveOut, fee); err != nil {
		return 0, err
	}
	if amountOut <= 0 || amountOut >= reserveOut {
		return 0, fmt.Errorf("%w: amountOut %v not in (0, %v)", ErrInvalidInput, amountOut, reserveOut)
	}
	return reserveIn * amountOut / ((reserveOut - amountOut) * (1 - fee)), nil
}

func checkPool(reserveIn, reserveOut, fee float64) error {
	if reserveIn <= 0 || reserveOut <= 0 {
		return fmt.Errorf("%w: reserves must be positive (in=%v out=%v)", ErrInvalidInput, reserveIn, reserveOut)
	}
	if fee < 0 || fee >= 1 {
		return fmt.Errorf("%w: fee %v not in [0, 1)", ErrInvalidInput, fee)
	}
	return nil
}
