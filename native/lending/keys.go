package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "primenumbers/native/common"
)

const (
	marketPrefix  = "lending/market"
	accountPrefix = "lending/account"
)

func marketKey(asset string) []byte {
	return nativecommon.Key(marketPrefix, []byte(asset))
}

func accountKey(asset string, user common.Address) []byte {
	return nativecommon.Key(accountPrefix, []byte(asset), user.Bytes())
}

func (e *Engine) putMarket(market *Market) error {
	return e.store.KVPut(marketKey(market.Asset), market)
}

func (e *Engine) account(asset string, user common.Address) (*UserAccount, error) {
	acct := new(UserAccount)
	if _, err := e.store.KVGet(accountKey(asset, user), acct); err != nil {
		return nil, err
	}
	if acct.SupplyShares == nil {
		acct.SupplyShares = big.NewInt(0)
	}
	if acct.ScaledDebt == nil {
		acct.ScaledDebt = big.NewInt(0)
	}
	return acct, nil
}

func (e *Engine) putAccount(asset string, user common.Address, acct *UserAccount) error {
	if acct.SupplyShares.Sign() == 0 && acct.ScaledDebt.Sign() == 0 {
		return e.store.KVDelete(accountKey(asset, user))
	}
	return e.store.KVPut(accountKey(asset, user), acct)
}
