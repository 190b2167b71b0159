package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/token"
)

// kyberHeaders make the aggregator treat requests like a browser client;
// default Go user agents get rate limited aggressively.
var kyberHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Accept":     "application/json",
	"Origin":     "https://kyberswap.com",
}

// KyberSwap quotes a token pair through the KyberSwap aggregator routing
// API. A synthetic two-sided quote is derived from a round trip: first the
// quote token is routed into the base token (the buy side), then the
// received base amount is routed back (the sell side). The ratio of amounts
// on each leg gives the effective ask and bid for that trade size.
type KyberSwap struct {
	rest   *restClient
	logger *slog.Logger
}

func NewKyberSwap(logger *slog.Logger) *KyberSwap {
	return &KyberSwap{
		rest:   newRESTClient("https://aggregator-api.kyberswap.com"),
		logger: logger,
	}
}

func (k *KyberSwap) Exchange() domain.Exchange { return domain.KyberSwap }

// routeOut asks the aggregator for the best route and returns the output
// amount in the destination token's smallest unit.
func (k *KyberSwap) routeOut(ctx context.Context, chain token.ChainID, in, out token.Token, amountIn *big.Int) (*big.Int, error) {
	q := url.Values{}
	q.Set("tokenIn", in.Address)
	q.Set("tokenOut", out.Address)
	q.Set("amountIn", amountIn.String())
	path := fmt.Sprintf("/%s/api/v1/routes?%s", chain.Name(), q.Encode())

	var resp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    struct {
			RouteSummary struct {
				AmountIn  string `json:"amountIn"`
				AmountOut string `json:"amountOut"`
			} `json:"routeSummary"`
		} `json:"data"`
	}
	if err := k.rest.doJSON(ctx, "GET", path, kyberHeaders, &resp); err != nil {
		return nil, fmt.Errorf("kyberswap: route %s->%s: %w", in.Symbol, out.Symbol, err)
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("kyberswap: route %s->%s: code %d: %s", in.Symbol, out.Symbol, resp.Code, resp.Message)
	}
	amountOut, ok := new(big.Int).SetString(resp.Data.RouteSummary.AmountOut, 10)
	if !ok || amountOut.Sign() <= 0 {
		return nil, fmt.Errorf("kyberswap: route %s->%s: bad amountOut %q", in.Symbol, out.Symbol, resp.Data.RouteSummary.AmountOut)
	}
	return amountOut, nil
}

// FetchPrice derives a quote for base priced in quote units, sized by
// quoteAmount (a human-readable quote-token amount, e.g. 1000 for 1000
// USDT). Both legs use the same route size so bid and ask describe the same
// executable quantity.
func (k *KyberSwap) FetchPrice(ctx context.Context, base, quote token.Token, quoteAmount float64) (domain.Quote, error) {
	if base.Chain != quote.Chain {
		return domain.Quote{}, domain.NewConfigError("tokens", "base and quote tokens are on different chains")
	}
	if quoteAmount <= 0 {
		return domain.Quote{}, domain.NewConfigError("quote_amount", "must be positive")
	}

	amountIn := toSmallestUnit(quoteAmount, quote.Decimals)

	// Buy side: quote -> base.
	baseOut, err := k.routeOut(ctx, base.Chain, quote, base, amountIn)
	if err != nil {
		return domain.Quote{}, err
	}
	// Sell side: route the acquired base amount back into quote.
	quoteOut, err := k.routeOut(ctx, base.Chain, base, quote, baseOut)
	if err != nil {
		return domain.Quote{}, err
	}

	baseQty := fromSmallestUnit(baseOut, base.Decimals)
	if baseQty <= 0 {
		return domain.Quote{}, fmt.Errorf("kyberswap: zero base output for %s/%s", base.Symbol, quote.Symbol)
	}
	ask := quoteAmount / baseQty
	bid := fromSmallestUnit(quoteOut, quote.Decimals) / baseQty

	symbol, err := NormalizeSymbol(base.Symbol + quote.Symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	return newQuote(domain.KyberSwap, symbol, bid, ask, baseQty, baseQty), nil
}

// toSmallestUnit scales a human-readable amount into the token's integer
// representation.
func toSmallestUnit(amount float64, decimals uint8) *big.Int {
	scaled := new(big.Float).Mul(
		big.NewFloat(amount),
		new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)),
	)
	out, _ := scaled.Int(nil)
	return out
}

// fromSmallestUnit converts a token integer amount back to a float.
func fromSmallestUnit(amount *big.Int, decimals uint8) float64 {
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	out, _ := new(big.Float).Quo(new(big.Float).SetInt(amount), scale).Float64()
	return out
}
