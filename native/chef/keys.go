package chef

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "primenumbers/native/common"
)

const (
	globalsKey      = "chef/globals"
	poolPrefix      = "chef/pool"
	userPrefix      = "chef/user"
	claimablePrefix = "chef/claimable"
	exemptPrefix    = "chef/exempt"
	poolListKey     = "chef/pools"
	scheduleKey     = "chef/schedule"
)

func (e *Engine) loadGlobals() (*globals, error) {
	g := new(globals)
	if _, err := e.store.KVGet([]byte(globalsKey), g); err != nil {
		return nil, err
	}
	g.ensure()
	return g, nil
}

func (e *Engine) putGlobals(g *globals) error {
	return e.store.KVPut([]byte(globalsKey), g)
}

func (e *Engine) pool(poolToken string) (*Pool, error) {
	p := new(Pool)
	ok, err := e.store.KVGet(nativecommon.Key(poolPrefix, []byte(poolToken)), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownPool
	}
	p.ensure()
	return p, nil
}

func (e *Engine) putPool(p *Pool) error {
	return e.store.KVPut(nativecommon.Key(poolPrefix, []byte(p.Token)), p)
}

func (e *Engine) userInfo(poolToken string, user common.Address) (*UserInfo, error) {
	u := new(UserInfo)
	if _, err := e.store.KVGet(nativecommon.Key(userPrefix, []byte(poolToken), user.Bytes()), u); err != nil {
		return nil, err
	}
	u.ensure()
	return u, nil
}

func (e *Engine) putUserInfo(poolToken string, user common.Address, u *UserInfo) error {
	key := nativecommon.Key(userPrefix, []byte(poolToken), user.Bytes())
	if u.Amount.Sign() == 0 && u.RewardDebt.Sign() == 0 {
		return e.store.KVDelete(key)
	}
	return e.store.KVPut(key, u)
}

func (e *Engine) baseClaimable(user common.Address) (*big.Int, error) {
	c := new(claimable)
	if _, err := e.store.KVGet(nativecommon.Key(claimablePrefix, user.Bytes()), c); err != nil {
		return nil, err
	}
	return copyInt(c.Amount), nil
}

func (e *Engine) putBaseClaimable(user common.Address, amount *big.Int) error {
	key := nativecommon.Key(claimablePrefix, user.Bytes())
	if amount.Sign() == 0 {
		return e.store.KVDelete(key)
	}
	return e.store.KVPut(key, &claimable{Amount: amount})
}

func (e *Engine) addBaseClaimable(user common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	current, err := e.baseClaimable(user)
	if err != nil {
		return err
	}
	return e.putBaseClaimable(user, new(big.Int).Add(current, amount))
}

// IsEligibilityExempt reports whether balance updates of user are ignored.
func (e *Engine) IsEligibilityExempt(user common.Address) (bool, error) {
	rec := new(exemptRecord)
	ok, err := e.store.KVGet(nativecommon.Key(exemptPrefix, user.Bytes()), rec)
	if err != nil {
		return false, err
	}
	return ok && rec.Exempt, nil
}

func (e *Engine) putExempt(user common.Address, exempt bool) error {
	key := nativecommon.Key(exemptPrefix, user.Bytes())
	if !exempt {
		return e.store.KVDelete(key)
	}
	return e.store.KVPut(key, &exemptRecord{Exempt: true})
}

type poolList struct {
	Tokens []string
}

type schedule struct {
	Points []EmissionPoint
}

// restore reloads the pool list and emission schedule persisted by earlier
// runs.
func (e *Engine) restore() error {
	list := new(poolList)
	if _, err := e.store.KVGet([]byte(poolListKey), list); err != nil {
		return err
	}
	e.tokens = append([]string(nil), list.Tokens...)
	sched := new(schedule)
	if _, err := e.store.KVGet([]byte(scheduleKey), sched); err != nil {
		return err
	}
	e.schedule = append([]EmissionPoint(nil), sched.Points...)
	return nil
}

func (e *Engine) putPoolList() error {
	return e.store.KVPut([]byte(poolListKey), &poolList{Tokens: e.tokens})
}

func (e *Engine) putSchedule() error {
	return e.store.KVPut([]byte(scheduleKey), &schedule{Points: e.schedule})
}
