package mfd

import (
	"github.com/ethereum/go-ethereum/common"

	nativecommon "primenumbers/native/common"
)

const (
	balancesPrefix = "mfd/balances"
	locksPrefix    = "mfd/locks"
	earningsPrefix = "mfd/earnings"
	rewardPrefix   = "mfd/reward"
	userRewardKey  = "mfd/user_reward"
	settingsPrefix = "mfd/settings"
	supplyKey      = "mfd/supply"
)

func (e *Engine) balances(user common.Address) (*Balances, error) {
	bal := new(Balances)
	if _, err := e.store.KVGet(nativecommon.Key(balancesPrefix, user.Bytes()), bal); err != nil {
		return nil, err
	}
	bal.ensure()
	return bal, nil
}

func (e *Engine) putBalances(user common.Address, bal *Balances) error {
	key := nativecommon.Key(balancesPrefix, user.Bytes())
	if bal.Total.Sign() == 0 && bal.Locked.Sign() == 0 && bal.Earned.Sign() == 0 && bal.Unlocked.Sign() == 0 {
		return e.store.KVDelete(key)
	}
	return e.store.KVPut(key, bal)
}

func (e *Engine) locks(user common.Address) ([]LockedBalance, error) {
	rec := new(userLocks)
	if _, err := e.store.KVGet(nativecommon.Key(locksPrefix, user.Bytes()), rec); err != nil {
		return nil, err
	}
	for i := range rec.Locks {
		rec.Locks[i].Amount = copyInt(rec.Locks[i].Amount)
	}
	return rec.Locks, nil
}

func (e *Engine) putLocks(user common.Address, locks []LockedBalance) error {
	key := nativecommon.Key(locksPrefix, user.Bytes())
	if len(locks) == 0 {
		return e.store.KVDelete(key)
	}
	return e.store.KVPut(key, &userLocks{Locks: locks})
}

func (e *Engine) earnings(user common.Address) ([]LockedBalance, error) {
	rec := new(userEarnings)
	if _, err := e.store.KVGet(nativecommon.Key(earningsPrefix, user.Bytes()), rec); err != nil {
		return nil, err
	}
	for i := range rec.Entries {
		rec.Entries[i].Amount = copyInt(rec.Entries[i].Amount)
	}
	return rec.Entries, nil
}

func (e *Engine) putEarnings(user common.Address, entries []LockedBalance) error {
	key := nativecommon.Key(earningsPrefix, user.Bytes())
	if len(entries) == 0 {
		return e.store.KVDelete(key)
	}
	return e.store.KVPut(key, &userEarnings{Entries: entries})
}

func (e *Engine) rewardData(token string) (*RewardData, error) {
	data := new(RewardData)
	if _, err := e.store.KVGet(nativecommon.Key(rewardPrefix, []byte(token)), data); err != nil {
		return nil, err
	}
	data.ensure()
	return data, nil
}

func (e *Engine) putRewardData(token string, data *RewardData) error {
	return e.store.KVPut(nativecommon.Key(rewardPrefix, []byte(token)), data)
}

func (e *Engine) userReward(user common.Address, token string) (*userReward, error) {
	rec := new(userReward)
	if _, err := e.store.KVGet(nativecommon.Key(userRewardKey, user.Bytes(), []byte(token)), rec); err != nil {
		return nil, err
	}
	rec.Paid = copyInt(rec.Paid)
	rec.Rewards = copyInt(rec.Rewards)
	return rec, nil
}

func (e *Engine) putUserReward(user common.Address, token string, rec *userReward) error {
	return e.store.KVPut(nativecommon.Key(userRewardKey, user.Bytes(), []byte(token)), rec)
}

// Settings returns the stored preferences of user.
func (e *Engine) Settings(user common.Address) (*UserSettings, error) {
	settings := new(UserSettings)
	if _, err := e.store.KVGet(nativecommon.Key(settingsPrefix, user.Bytes()), settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func (e *Engine) putSettings(user common.Address, settings *UserSettings) error {
	return e.store.KVPut(nativecommon.Key(settingsPrefix, user.Bytes()), settings)
}

func (e *Engine) supply() (*supply, error) {
	s := new(supply)
	if _, err := e.store.KVGet([]byte(supplyKey), s); err != nil {
		return nil, err
	}
	s.ensure()
	return s, nil
}

func (e *Engine) putSupply(s *supply) error {
	return e.store.KVPut([]byte(supplyKey), s)
}
