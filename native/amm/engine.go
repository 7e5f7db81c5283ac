package amm

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	nativecommon "primenumbers/native/common"
	"primenumbers/native/token"
)

var (
	ErrPairExists                  = errors.New("amm: pair already exists")
	ErrPairNotFound                = errors.New("amm: pair not found")
	ErrIdenticalTokens             = errors.New("amm: identical tokens")
	ErrInvalidPath                 = errors.New("amm: invalid path")
	ErrInsufficientInput           = errors.New("amm: insufficient input amount")
	ErrInsufficientOutput          = errors.New("amm: insufficient output amount")
	ErrInsufficientLiquidity       = errors.New("amm: insufficient liquidity")
	ErrInsufficientLiquidityMinted = errors.New("amm: insufficient liquidity minted")
	errNilState                    = errors.New("amm: state not configured")
)

const pairPrefix = "amm/pair"

// Engine is the pair factory and router. Pair balances live in the token
// ledger under each pair's address; reserves are synced after every action.
type Engine struct {
	store  nativecommon.Store
	ledger *token.Ledger
	clock  nativecommon.Clock
}

// NewEngine constructs the router over shared state.
func NewEngine(store nativecommon.Store, ledger *token.Ledger, clock nativecommon.Clock) *Engine {
	return &Engine{store: store, ledger: ledger, clock: clock}
}

func sortTokens(tokenA, tokenB string) (string, string, error) {
	a := token.Normalize(tokenA)
	b := token.Normalize(tokenB)
	if a == "" || b == "" {
		return "", "", token.ErrInvalidToken
	}
	if a == b {
		return "", "", ErrIdenticalTokens
	}
	if a < b {
		return a, b, nil
	}
	return b, a, nil
}

func pairKey(token0, token1 string) []byte {
	return nativecommon.Key(pairPrefix, []byte(token0), []byte(token1))
}

// PairAddress derives the deterministic account holding a pair's reserves.
func PairAddress(tokenA, tokenB string) common.Address {
	t0, t1, err := sortTokens(tokenA, tokenB)
	if err != nil {
		return common.Address{}
	}
	return common.BytesToAddress(ethcrypto.Keccak256([]byte(pairPrefix + "/" + t0 + "/" + t1)))
}

func (e *Engine) now() uint64 {
	if e.clock == nil {
		return 0
	}
	return e.clock.Now()
}

// CreatePair registers a new pool whose liquidity shares are minted as lpToken.
func (e *Engine) CreatePair(tokenA, tokenB, lpToken string) (*Pair, error) {
	if e == nil || e.store == nil || e.ledger == nil {
		return nil, errNilState
	}
	t0, t1, err := sortTokens(tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	lp := token.Normalize(lpToken)
	if lp == "" {
		return nil, token.ErrInvalidToken
	}
	ok, err := e.store.KVGet(pairKey(t0, t1), nil)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, ErrPairExists
	}
	pair := &Pair{
		Token0:  t0,
		Token1:  t1,
		LPToken: lp,
		Address: PairAddress(t0, t1),
	}
	pair.ensure()
	pair.LastUpdate = e.now()
	if err := e.store.KVPut(pairKey(t0, t1), pair); err != nil {
		return nil, err
	}
	return pair.Clone(), nil
}

// Pair loads the pool for the token couple.
func (e *Engine) Pair(tokenA, tokenB string) (*Pair, error) {
	if e == nil || e.store == nil {
		return nil, errNilState
	}
	t0, t1, err := sortTokens(tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	pair := new(Pair)
	ok, err := e.store.KVGet(pairKey(t0, t1), pair)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrPairNotFound, t0, t1)
	}
	pair.ensure()
	return pair, nil
}

// Reserves returns the pool reserves ordered as (tokenA, tokenB).
func (e *Engine) Reserves(tokenA, tokenB string) (*big.Int, *big.Int, error) {
	pair, err := e.Pair(tokenA, tokenB)
	if err != nil {
		return nil, nil, err
	}
	ra, rb := pair.ReservesFor(token.Normalize(tokenA))
	return ra, rb, nil
}

// LPTotalSupply returns the outstanding liquidity shares of the pool.
func (e *Engine) LPTotalSupply(tokenA, tokenB string) (*big.Int, error) {
	pair, err := e.Pair(tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	return e.ledger.TotalSupply(pair.LPToken)
}

// CurrentCumulativePrice returns the cumulative price of tokenA in tokenB
// extrapolated to the current time, together with that timestamp.
func (e *Engine) CurrentCumulativePrice(tokenA, tokenB string) (*big.Int, uint64, error) {
	pair, err := e.Pair(tokenA, tokenB)
	if err != nil {
		return nil, 0, err
	}
	now := e.now()
	accumulate(pair, now)
	return pair.CumulativeFor(token.Normalize(tokenA)), now, nil
}

// GetAmountOut applies the constant-product formula net of the swap fee.
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInsufficientInput
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	withFee := new(big.Int).Mul(amountIn, big.NewInt(FeeNumerator))
	numerator := new(big.Int).Mul(withFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(FeeDenominator))
	denominator.Add(denominator, withFee)
	return numerator.Quo(numerator, denominator), nil
}

// Quote returns the amount of tokenB equivalent to amountA at current reserves.
func Quote(amountA, reserveA, reserveB *big.Int) (*big.Int, error) {
	if amountA == nil || amountA.Sign() <= 0 {
		return nil, ErrInsufficientInput
	}
	if reserveA == nil || reserveB == nil || reserveA.Sign() <= 0 || reserveB.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	return nativecommon.MulDiv(amountA, reserveB, reserveA), nil
}

// GetAmountsOut walks the path and returns the output of every hop.
func (e *Engine) GetAmountsOut(amountIn *big.Int, path []string) ([]*big.Int, error) {
	if len(path) < 2 {
		return nil, ErrInvalidPath
	}
	amounts := make([]*big.Int, len(path))
	amounts[0] = nativecommon.Copy(amountIn)
	for i := 0; i < len(path)-1; i++ {
		rIn, rOut, err := e.Reserves(path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		out, err := GetAmountOut(amounts[i], rIn, rOut)
		if err != nil {
			return nil, err
		}
		amounts[i+1] = out
	}
	return amounts, nil
}

// SwapExactIn sells amountIn of path[0] from caller along path and credits the
// final output to recipient. It fails with ErrInsufficientOutput when the
// output is below minOut.
func (e *Engine) SwapExactIn(caller common.Address, path []string, amountIn, minOut *big.Int, recipient common.Address) (*big.Int, error) {
	amounts, err := e.GetAmountsOut(amountIn, path)
	if err != nil {
		return nil, err
	}
	out := amounts[len(amounts)-1]
	if minOut != nil && out.Cmp(minOut) < 0 {
		return nil, fmt.Errorf("%w: got %s, want >= %s", ErrInsufficientOutput, out, minOut)
	}
	first, err := e.Pair(path[0], path[1])
	if err != nil {
		return nil, err
	}
	if err := e.ledger.Transfer(path[0], caller, first.Address, amountIn); err != nil {
		return nil, err
	}
	for i := 0; i < len(path)-1; i++ {
		pair, err := e.Pair(path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		to := recipient
		if i < len(path)-2 {
			to = PairAddress(path[i+1], path[i+2])
		}
		if err := e.ledger.Transfer(path[i+1], pair.Address, to, amounts[i+1]); err != nil {
			return nil, err
		}
		if err := e.sync(pair); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// AddLiquidity deposits the optimal ratio of the desired amounts from caller
// and mints liquidity shares to recipient.
func (e *Engine) AddLiquidity(caller common.Address, tokenA, tokenB string, desiredA, desiredB *big.Int, recipient common.Address) (*big.Int, *big.Int, *big.Int, error) {
	if !nativecommon.IsPositive(desiredA) || !nativecommon.IsPositive(desiredB) {
		return nil, nil, nil, ErrInsufficientInput
	}
	pair, err := e.Pair(tokenA, tokenB)
	if err != nil {
		return nil, nil, nil, err
	}
	tokenA = token.Normalize(tokenA)
	tokenB = token.Normalize(tokenB)
	reserveA, reserveB := pair.ReservesFor(tokenA)

	amountA := new(big.Int).Set(desiredA)
	amountB := new(big.Int).Set(desiredB)
	if reserveA.Sign() > 0 || reserveB.Sign() > 0 {
		optimalB, err := Quote(desiredA, reserveA, reserveB)
		if err != nil {
			return nil, nil, nil, err
		}
		if optimalB.Cmp(desiredB) <= 0 {
			amountB = optimalB
		} else {
			optimalA, err := Quote(desiredB, reserveB, reserveA)
			if err != nil {
				return nil, nil, nil, err
			}
			amountA = optimalA
		}
	}

	supply, err := e.ledger.TotalSupply(pair.LPToken)
	if err != nil {
		return nil, nil, nil, err
	}
	var liquidity *big.Int
	if supply.Sign() == 0 {
		root := new(big.Int).Sqrt(new(big.Int).Mul(amountA, amountB))
		liquidity = new(big.Int).Sub(root, MinimumLiquidity)
		if liquidity.Sign() <= 0 {
			return nil, nil, nil, ErrInsufficientLiquidityMinted
		}
		if err := e.ledger.Mint(pair.LPToken, deadAddress, MinimumLiquidity); err != nil {
			return nil, nil, nil, err
		}
	} else {
		byA := nativecommon.MulDiv(amountA, supply, reserveA)
		byB := nativecommon.MulDiv(amountB, supply, reserveB)
		liquidity = nativecommon.Min(byA, byB)
		if liquidity.Sign() <= 0 {
			return nil, nil, nil, ErrInsufficientLiquidityMinted
		}
	}

	if err := e.ledger.Transfer(tokenA, caller, pair.Address, amountA); err != nil {
		return nil, nil, nil, err
	}
	if err := e.ledger.Transfer(tokenB, caller, pair.Address, amountB); err != nil {
		return nil, nil, nil, err
	}
	if err := e.ledger.Mint(pair.LPToken, recipient, liquidity); err != nil {
		return nil, nil, nil, err
	}
	if err := e.sync(pair); err != nil {
		return nil, nil, nil, err
	}
	return amountA, amountB, liquidity, nil
}

// RemoveLiquidity burns liquidity shares from caller and returns the
// underlying tokens to recipient, ordered as (tokenA, tokenB).
func (e *Engine) RemoveLiquidity(caller common.Address, tokenA, tokenB string, liquidity *big.Int, recipient common.Address) (*big.Int, *big.Int, error) {
	if !nativecommon.IsPositive(liquidity) {
		return nil, nil, ErrInsufficientInput
	}
	pair, err := e.Pair(tokenA, tokenB)
	if err != nil {
		return nil, nil, err
	}
	tokenA = token.Normalize(tokenA)
	tokenB = token.Normalize(tokenB)
	supply, err := e.ledger.TotalSupply(pair.LPToken)
	if err != nil {
		return nil, nil, err
	}
	if supply.Sign() == 0 {
		return nil, nil, ErrInsufficientLiquidity
	}
	reserveA, reserveB := pair.ReservesFor(tokenA)
	amountA := nativecommon.MulDiv(liquidity, reserveA, supply)
	amountB := nativecommon.MulDiv(liquidity, reserveB, supply)
	if amountA.Sign() == 0 || amountB.Sign() == 0 {
		return nil, nil, ErrInsufficientLiquidity
	}
	if err := e.ledger.Burn(pair.LPToken, caller, liquidity); err != nil {
		return nil, nil, err
	}
	if err := e.ledger.Transfer(tokenA, pair.Address, recipient, amountA); err != nil {
		return nil, nil, err
	}
	if err := e.ledger.Transfer(tokenB, pair.Address, recipient, amountB); err != nil {
		return nil, nil, err
	}
	if err := e.sync(pair); err != nil {
		return nil, nil, err
	}
	return amountA, amountB, nil
}

// accumulate folds the time since the last update into the cumulative prices
// using the reserves that were in force over that interval.
func accumulate(pair *Pair, now uint64) {
	if now <= pair.LastUpdate {
		return
	}
	elapsed := new(big.Int).SetUint64(now - pair.LastUpdate)
	if pair.Reserve0.Sign() > 0 && pair.Reserve1.Sign() > 0 {
		price0 := nativecommon.MulDiv(pair.Reserve1, PriceScale, pair.Reserve0)
		price1 := nativecommon.MulDiv(pair.Reserve0, PriceScale, pair.Reserve1)
		pair.Price0Cumulative.Add(pair.Price0Cumulative, price0.Mul(price0, elapsed))
		pair.Price1Cumulative.Add(pair.Price1Cumulative, price1.Mul(price1, elapsed))
	}
	pair.LastUpdate = now
}

func (e *Engine) sync(pair *Pair) error {
	accumulate(pair, e.now())
	bal0, err := e.ledger.Balance(pair.Token0, pair.Address)
	if err != nil {
		return err
	}
	bal1, err := e.ledger.Balance(pair.Token1, pair.Address)
	if err != nil {
		return err
	}
	pair.Reserve0 = bal0
	pair.Reserve1 = bal1
	return e.store.KVPut(pairKey(pair.Token0, pair.Token1), pair)
}
