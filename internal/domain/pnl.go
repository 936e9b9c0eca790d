package domain

import (
	"math"
	"math/big"
)

// PnL is the result of the shared leveraged profit/loss computation. It is
// a pure value: Profit says which side of the entry price the exit landed
// on, Amount is the magnitude of the leveraged move in settlement units.
//
// On the loss side Amount is clamped to the position size (a position can
// never lose more than its collateral). On the profit side Amount
// saturates at MaxUint64; the payout a trader actually receives is bounded
// separately by the pooled settlement balance (see SettlePayout).
type PnL struct {
	Profit bool
	Amount uint64
}

var maxUint64 = new(big.Int).SetUint64(math.MaxUint64)

// LeveragedPnL computes the profit or loss of closing a position at
// exitPrice. All arithmetic is exact integer math in basis points:
//
//	move = |exit - entry| * 10000 / entry
//	raw  = size * move * leverage / 10000
//
// Divisions floor. The function is pure and bit-exact for any inputs;
// intermediates use big integers so no product can overflow.
// entryPrice must be positive; callers validate prices before calling.
func LeveragedPnL(direction Direction, size uint64, leverage int, entryPrice, exitPrice uint64) PnL {
	var diff uint64
	if exitPrice > entryPrice {
		diff = exitPrice - entryPrice
	} else {
		diff = entryPrice - exitPrice
	}

	move := new(big.Int).SetUint64(diff)
	move.Mul(move, big.NewInt(BasisPointsDivisor))
	move.Quo(move, new(big.Int).SetUint64(entryPrice))

	raw := new(big.Int).SetUint64(size)
	raw.Mul(raw, move)
	raw.Mul(raw, big.NewInt(int64(leverage)))
	raw.Quo(raw, big.NewInt(BasisPointsDivisor))

	profit := (direction == Long && exitPrice > entryPrice) ||
		(direction == Short && exitPrice < entryPrice)

	amount := raw.Uint64()
	if raw.Cmp(maxUint64) > 0 {
		amount = math.MaxUint64
	}
	if !profit && amount > size {
		// Total loss: the position cannot lose more than its collateral.
		amount = size
	}

	return PnL{Profit: profit, Amount: amount}
}

// SettlePayout derives the actual payout for closing a position of the
// given size under the pooled-balance constraint.
//
// Profit side: the desired payout is size + profit. If the available pool
// balance cannot cover it, the payout degrades to the principal and the
// reported PnL is zeroed so the degrade is observable in the close event.
// Loss side: payout is size - loss, zero on total loss.
func SettlePayout(size uint64, r PnL, available uint64) (payout uint64, pnl int64, degraded bool) {
	if r.Profit {
		desired := size + r.Amount
		if desired < size {
			desired = math.MaxUint64 // saturate
		}
		if available < desired {
			return size, 0, true
		}
		return desired, saturateInt64(r.Amount), false
	}
	return size - r.Amount, -saturateInt64(r.Amount), false
}

// BpsOf scales amount by bps basis points, flooring the division:
//
//	amount * bps / 10000
//
// The product is carried in a big integer so it cannot overflow; the
// result saturates at MaxUint64. Fee and reward arithmetic goes through
// here so that large but valid amounts never wrap.
func BpsOf(amount, bps uint64) uint64 {
	v := new(big.Int).SetUint64(amount)
	v.Mul(v, new(big.Int).SetUint64(bps))
	v.Quo(v, big.NewInt(BasisPointsDivisor))
	if v.Cmp(maxUint64) > 0 {
		return math.MaxUint64
	}
	return v.Uint64()
}

// SaturatingAdd returns a + b, clamped to MaxUint64 on overflow. Running
// accruals (pool balance, fees, rewards) use it so they stick at the
// ceiling instead of wrapping.
func SaturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return math.MaxUint64
	}
	return sum
}

// MarginRatioBps expresses the current margin of a position as basis
// points of its initial margin:
//
//	initialMargin = size / leverage
//	currentMargin = max(0, initialMargin + pnl)
//	ratio         = currentMargin * 10000 / initialMargin
//
// A position whose initial margin floors to zero (size < leverage) is
// reported as ratio 0 rather than dividing by zero.
func MarginRatioBps(size uint64, leverage int, r PnL) uint64 {
	initial := size / uint64(leverage)
	if initial == 0 {
		return 0
	}

	var current uint64
	if r.Profit {
		current = initial + r.Amount
		if current < initial {
			current = math.MaxUint64 // saturate
		}
	} else {
		if r.Amount >= initial {
			return 0
		}
		current = initial - r.Amount
	}

	ratio := new(big.Int).SetUint64(current)
	ratio.Mul(ratio, big.NewInt(BasisPointsDivisor))
	ratio.Quo(ratio, new(big.Int).SetUint64(initial))
	if ratio.Cmp(maxUint64) > 0 {
		return math.MaxUint64
	}
	return ratio.Uint64()
}

func saturateInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
