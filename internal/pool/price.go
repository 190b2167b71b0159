// Package pool derives prices from on-chain AMM pools over a websocket RPC
// endpoint, refreshing either every block or on swap events.
package pool

import (
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quveo/marketscan/internal/domain"
)

// Raw 4-byte function selectors; the contracts involved are tiny read-only
// surfaces, so full ABI bindings would be noise.
var (
	selGetReserves = []byte{0x09, 0x02, 0xf1, 0xac} // getReserves()
	selSlot0       = []byte{0x38, 0x50, 0xc7, 0xbd} // slot0()
	selToken0      = []byte{0x0d, 0xfe, 0x16, 0x81} // token0()
	selToken1      = []byte{0xd2, 0x12, 0x20, 0xa7} // token1()
	selDecimals    = []byte{0x31, 0x3c, 0xe5, 0x67} // decimals()
)

// Swap event topics identify pool activity without decoding the payload.
var (
	topicV2Swap = common.HexToHash("0xd78ad95fa46c994b6551d0da85fc275fe613ce37657fb8d5e3d130840159d822")
	topicV3Swap = common.HexToHash("0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67")
)

const wordSize = 32

// word extracts the i-th 32-byte ABI word from a call result.
func word(data []byte, i int) ([]byte, error) {
	if len(data) < (i+1)*wordSize {
		return nil, fmt.Errorf("call result too short: %d bytes, need word %d", len(data), i)
	}
	return data[i*wordSize : (i+1)*wordSize], nil
}

// parseReserves decodes getReserves(): (uint112 reserve0, uint112 reserve1,
// uint32 blockTimestampLast).
func parseReserves(data []byte) (r0, r1 *big.Int, err error) {
	w0, err := word(data, 0)
	if err != nil {
		return nil, nil, err
	}
	w1, err := word(data, 1)
	if err != nil {
		return nil, nil, err
	}
	return new(big.Int).SetBytes(w0), new(big.Int).SetBytes(w1), nil
}

// parseSqrtPriceX96 decodes the first slot0() word, the uint160 sqrt price.
func parseSqrtPriceX96(data []byte) (*big.Int, error) {
	w0, err := word(data, 0)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(w0), nil
}

// parseAddress decodes an address-returning call.
func parseAddress(data []byte) (common.Address, error) {
	w0, err := word(data, 0)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(w0[12:]), nil
}

// parseUint8 decodes decimals().
func parseUint8(data []byte) (uint8, error) {
	w0, err := word(data, 0)
	if err != nil {
		return 0, err
	}
	v := new(big.Int).SetBytes(w0)
	if !v.IsUint64() || v.Uint64() > math.MaxUint8 {
		return 0, fmt.Errorf("decimals out of range: %s", v)
	}
	return uint8(v.Uint64()), nil
}

// v2Price computes the human-readable token1-per-token0 price from raw
// reserves and the tokens' decimal scales.
func v2Price(r0, r1 *big.Int, d0, d1 uint8) (float64, error) {
	if r0.Sign() == 0 {
		return 0, fmt.Errorf("pool has zero reserve0")
	}
	res0 := scaleDown(r0, d0)
	res1 := scaleDown(r1, d1)
	if res0 == 0 {
		return 0, fmt.Errorf("reserve0 underflows float64")
	}
	return res1 / res0, nil
}

// v3Price computes the human-readable token1-per-token0 price from a
// sqrtPriceX96 value: (sqrtPriceX96 / 2^96)^2 scaled by 10^(d0-d1).
func v3Price(sqrtPriceX96 *big.Int, d0, d1 uint8) (float64, error) {
	if sqrtPriceX96.Sign() == 0 {
		return 0, fmt.Errorf("pool has zero sqrtPriceX96")
	}
	sqrt, _ := new(big.Float).SetInt(sqrtPriceX96).Float64()
	ratio := sqrt / math.Pow(2, 96)
	raw := ratio * ratio
	return raw * math.Pow(10, float64(d0)-float64(d1)), nil
}

// applyDirection inverts the canonical token1-per-token0 price when the
// configuration asks for the opposite unit.
func applyDirection(price float64, dir domain.PriceDirection) (float64, error) {
	if dir == domain.Token1PerToken0 {
		return price, nil
	}
	if price == 0 {
		return 0, fmt.Errorf("cannot invert zero price")
	}
	return 1 / price, nil
}

// scaleDown converts a raw integer token amount to a float in whole-token
// units.
func scaleDown(v *big.Int, decimals uint8) float64 {
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	out, _ := new(big.Float).Quo(new(big.Float).SetInt(v), scale).Float64()
	return out
}
