package rpc

import (
	"context"
	"math/big"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/core"
	"primenumbers/indexer"
	"primenumbers/native/mfd"
)

func (s *Server) routes() map[string]method {
	return map[string]method{
		// reads
		"prnt_quote":           {module: "bounty", access: accessPublic, handle: s.handleQuote},
		"prnt_baseBounty":      {module: "bounty", access: accessPublic, handle: s.handleBaseBounty},
		"prnt_rewardPrice":     {module: "price", access: accessPublic, handle: s.handleRewardPrice},
		"prnt_events":          {module: "indexer", access: accessPublic, handle: s.handleEvents},
		"mfd_lockedBalances":   {module: "mfd", access: accessPublic, handle: s.handleLockedBalances},
		"mfd_earnedBalances":   {module: "mfd", access: accessPublic, handle: s.handleEarnedBalances},
		"mfd_claimableRewards": {module: "mfd", access: accessPublic, handle: s.handleClaimableRewards},
		"chef_pendingRewards":  {module: "chef", access: accessPublic, handle: s.handlePendingRewards},
		"eligibility_status":   {module: "eligibility", access: accessPublic, handle: s.handleEligibility},
		"lending_account":      {module: "lending", access: accessPublic, handle: s.handleAccount},
		"lending_market":       {module: "lending", access: accessPublic, handle: s.handleMarket},
		"token_balance":        {module: "token", access: accessPublic, handle: s.handleBalance},

		// caller-signed
		"bounty_claim":             {module: "bounty", access: accessUser, handle: s.handleClaimBounty},
		"mfd_stake":                {module: "mfd", access: accessUser, handle: s.handleStake},
		"mfd_withdrawExpiredLocks": {module: "mfd", access: accessUser, handle: s.handleWithdrawExpired},
		"mfd_relock":               {module: "mfd", access: accessUser, handle: s.handleRelock},
		"mfd_setRelock":            {module: "mfd", access: accessUser, handle: s.handleSetRelock},
		"mfd_setAutocompound":      {module: "mfd", access: accessUser, handle: s.handleSetAutocompound},
		"mfd_claimRewards":         {module: "mfd", access: accessUser, handle: s.handleClaimRewards},
		"mfd_exit":                 {module: "mfd", access: accessUser, handle: s.handleExit},
		"chef_claim":               {module: "chef", access: accessUser, handle: s.handleClaimEmissions},
		"lending_deposit":          {module: "lending", access: accessUser, handle: s.handleDeposit},
		"lending_withdraw":         {module: "lending", access: accessUser, handle: s.handleWithdraw},
		"lending_borrow":           {module: "lending", access: accessUser, handle: s.handleBorrow},
		"lending_repay":            {module: "lending", access: accessUser, handle: s.handleRepay},
		"lending_liquidate":        {module: "lending", access: accessUser, handle: s.handleLiquidate},
		"leverager_loop":           {module: "leverager", access: accessUser, handle: s.handleLoop},
		"compounder_selfCompound":  {module: "compounder", access: accessUser, handle: s.handleSelfCompound},
		"amm_addLiquidity":         {module: "amm", access: accessUser, handle: s.handleAddLiquidity},
		"amm_swap":                 {module: "amm", access: accessUser, handle: s.handleSwap},
		"token_transfer":           {module: "token", access: accessUser, handle: s.handleTransfer},

		// operator
		"admin_setPrice":       {module: "admin", access: accessAdmin, handle: s.handleSetPrice},
		"admin_collectRevenue": {module: "admin", access: accessAdmin, handle: s.handleCollectRevenue},
		"admin_setPaused":      {module: "admin", access: accessAdmin, handle: s.handleSetPaused},
		"admin_setWhitelist":   {module: "admin", access: accessAdmin, handle: s.handleSetWhitelist},

		"dev_advanceTime": {module: "devnet", access: accessDevnet, handle: s.handleAdvanceTime},
		"dev_mint":        {module: "devnet", access: accessDevnet, handle: s.handleMint},
	}
}

type userParams struct {
	User string `json:"user"`
}

type amountParams struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type toggleParams struct {
	Enabled bool `json:"enabled"`
}

type txResult struct {
	Seq    uint64 `json:"seq"`
	Amount string `json:"amount,omitempty"`
}

func (s *Server) mutation(amount *big.Int) txResult {
	res := txResult{Seq: s.protocol.Seq()}
	if amount != nil {
		res.Amount = formatAmount(amount)
	}
	return res
}

func userParam(c *call) (common.Address, *RPCError) {
	var params userParams
	if err := decodeParams(c.req, &params); err != nil {
		return common.Address{}, err
	}
	return parseAddress("user", params.User)
}

func assetAmount(c *call) (string, *big.Int, *RPCError) {
	var params amountParams
	if err := decodeParams(c.req, &params); err != nil {
		return "", nil, err
	}
	asset := strings.TrimSpace(params.Asset)
	if asset == "" {
		return "", nil, invalidParams("asset required")
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return "", nil, err
	}
	return asset, amount, nil
}

type quoteResult struct {
	User       string `json:"user"`
	Bounty     string `json:"bounty"`
	ActionType uint64 `json:"actionType"`
	Action     string `json:"action"`
}

func (s *Server) handleQuote(_ context.Context, c *call) (interface{}, *RPCError) {
	user, rpcErr := userParam(c)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, actionType, err := s.protocol.Quote(user)
	if err != nil {
		return nil, toRPCError(err)
	}
	return quoteResult{
		User:       user.Hex(),
		Bounty:     formatAmount(amount),
		ActionType: actionType,
		Action:     core.ActionNames[actionType],
	}, nil
}

func (s *Server) handleBaseBounty(_ context.Context, _ *call) (interface{}, *RPCError) {
	amount, err := s.protocol.BaseBounty()
	if err != nil {
		return nil, toRPCError(err)
	}
	return map[string]string{"baseBounty": formatAmount(amount)}, nil
}

func (s *Server) handleRewardPrice(_ context.Context, _ *call) (interface{}, *RPCError) {
	tokenPrice, lpPrice, err := s.protocol.RewardPrice()
	if err != nil {
		return nil, toRPCError(err)
	}
	return map[string]string{
		"tokenPriceUsd": formatAmount(tokenPrice),
		"lpPriceUsd":    formatAmount(lpPrice),
	}, nil
}

type eventsParams struct {
	Type    string `json:"type"`
	Subject string `json:"subject"`
	Since   uint64 `json:"since"`
	Limit   int    `json:"limit"`
}

type eventResult struct {
	TxSeq      uint64            `json:"txSeq"`
	Op         string            `json:"op"`
	Type       string            `json:"type"`
	Subject    string            `json:"subject,omitempty"`
	BlockTime  uint64            `json:"blockTime"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func (s *Server) handleEvents(ctx context.Context, c *call) (interface{}, *RPCError) {
	if s.events == nil {
		return nil, newError(http.StatusServiceUnavailable, codeServerError, "event index disabled", nil)
	}
	var params eventsParams
	if len(c.req.Params) > 0 {
		if err := decodeParams(c.req, &params); err != nil {
			return nil, err
		}
	}
	if params.Limit < 0 {
		return nil, invalidParams("limit must not be negative")
	}
	subject := strings.TrimSpace(params.Subject)
	if subject != "" {
		addr, rpcErr := parseAddress("subject", subject)
		if rpcErr != nil {
			return nil, rpcErr
		}
		subject = strings.ToLower(addr.Hex())
	}
	records, err := s.events.Query(ctx, indexer.Filter{
		Type:    strings.TrimSpace(params.Type),
		Subject: subject,
		Since:   params.Since,
		Limit:   params.Limit,
	})
	if err != nil {
		return nil, newError(http.StatusInternalServerError, codeServerError, "query events", err.Error())
	}
	out := make([]eventResult, 0, len(records))
	for _, record := range records {
		entry := eventResult{
			TxSeq:     record.TxSeq,
			Op:        record.Op,
			Type:      record.Type,
			Subject:   record.Subject,
			BlockTime: record.BlockTime,
		}
		if attrs, err := record.Decode(); err == nil && len(attrs) > 0 {
			entry.Attributes = attrs
		}
		out = append(out, entry)
	}
	return out, nil
}

type lockEntry struct {
	Amount     string `json:"amount"`
	UnlockTime uint64 `json:"unlockTime"`
	Multiplier uint64 `json:"multiplier"`
	Duration   uint64 `json:"duration"`
}

type lockedResult struct {
	Total                string      `json:"total"`
	Unlockable           string      `json:"unlockable"`
	Locked               string      `json:"locked"`
	LockedWithMultiplier string      `json:"lockedWithMultiplier"`
	Locks                []lockEntry `json:"locks"`
}

func (s *Server) handleLockedBalances(_ context.Context, c *call) (interface{}, *RPCError) {
	user, rpcErr := userParam(c)
	if rpcErr != nil {
		return nil, rpcErr
	}
	view, err := s.protocol.LockedBalances(user)
	if err != nil {
		return nil, toRPCError(err)
	}
	res := lockedResult{
		Total:                formatAmount(view.Total),
		Unlockable:           formatAmount(view.Unlockable),
		Locked:               formatAmount(view.Locked),
		LockedWithMultiplier: formatAmount(view.LockedWithMultiplier),
		Locks:                make([]lockEntry, 0, len(view.LockData)),
	}
	for _, lock := range view.LockData {
		res.Locks = append(res.Locks, lockEntry{
			Amount:     formatAmount(lock.Amount),
			UnlockTime: lock.UnlockTime,
			Multiplier: lock.Multiplier,
			Duration:   lock.Duration,
		})
	}
	return res, nil
}

type vestEntry struct {
	Amount     string `json:"amount"`
	UnlockTime uint64 `json:"unlockTime"`
	Penalty    string `json:"penalty"`
}

type earnedResult struct {
	TotalVesting string      `json:"totalVesting"`
	Unlocked     string      `json:"unlocked"`
	Entries      []vestEntry `json:"entries"`
}

func (s *Server) handleEarnedBalances(_ context.Context, c *call) (interface{}, *RPCError) {
	user, rpcErr := userParam(c)
	if rpcErr != nil {
		return nil, rpcErr
	}
	view, err := s.protocol.EarnedBalances(user)
	if err != nil {
		return nil, toRPCError(err)
	}
	res := earnedResult{
		TotalVesting: formatAmount(view.TotalVesting),
		Unlocked:     formatAmount(view.Unlocked),
		Entries:      make([]vestEntry, 0, len(view.Entries)),
	}
	for _, entry := range view.Entries {
		res.Entries = append(res.Entries, vestEntry{
			Amount:     formatAmount(entry.Amount),
			UnlockTime: entry.UnlockTime,
			Penalty:    formatAmount(entry.Penalty),
		})
	}
	return res, nil
}

func rewardMap(rewards []mfd.RewardAmount) map[string]string {
	out := make(map[string]string, len(rewards))
	for _, reward := range rewards {
		out[reward.Token] = formatAmount(reward.Amount)
	}
	return out
}

func (s *Server) handleClaimableRewards(_ context.Context, c *call) (interface{}, *RPCError) {
	user, rpcErr := userParam(c)
	if rpcErr != nil {
		return nil, rpcErr
	}
	rewards, err := s.protocol.ClaimableRewards(user)
	if err != nil {
		return nil, toRPCError(err)
	}
	return rewardMap(rewards), nil
}

func (s *Server) handlePendingRewards(_ context.Context, c *call) (interface{}, *RPCError) {
	user, rpcErr := userParam(c)
	if rpcErr != nil {
		return nil, rpcErr
	}
	pending, err := s.protocol.PendingEmissions(user)
	if err != nil {
		return nil, toRPCError(err)
	}
	return map[string]string{"pending": formatAmount(pending)}, nil
}

type eligibilityResult struct {
	Eligible         bool   `json:"eligible"`
	RequiredUsd      string `json:"requiredUsd"`
	LockedUsd        string `json:"lockedUsd"`
	LastEligibleTime uint64 `json:"lastEligibleTime"`
	Cached           bool   `json:"cachedStatus"`
	DqTime           uint64 `json:"dqTime"`
	Exempted         bool   `json:"exempted"`
}

func (s *Server) handleEligibility(_ context.Context, c *call) (interface{}, *RPCError) {
	user, rpcErr := userParam(c)
	if rpcErr != nil {
		return nil, rpcErr
	}
	view, err := s.protocol.EligibilityOf(user)
	if err != nil {
		return nil, toRPCError(err)
	}
	return eligibilityResult{
		Eligible:         view.Eligible,
		RequiredUsd:      formatAmount(view.RequiredUsd),
		LockedUsd:        formatAmount(view.LockedUsd),
		LastEligibleTime: view.LastEligibleTime,
		Cached:           view.Cached,
		DqTime:           view.DqTime,
		Exempted:         view.Exempted,
	}, nil
}

func (s *Server) handleAccount(_ context.Context, c *call) (interface{}, *RPCError) {
	user, rpcErr := userParam(c)
	if rpcErr != nil {
		return nil, rpcErr
	}
	view, err := s.protocol.Account(user)
	if err != nil {
		return nil, toRPCError(err)
	}
	return map[string]string{
		"collateralUsd":     formatAmount(view.CollateralUsd),
		"debtUsd":           formatAmount(view.DebtUsd),
		"borrowCapacityUsd": formatAmount(view.BorrowCapacityUsd),
		"liquidationUsd":    formatAmount(view.LiquidationUsd),
		"healthFactor":      formatAmount(view.HealthFactor),
	}, nil
}

func (s *Server) handleMarket(_ context.Context, c *call) (interface{}, *RPCError) {
	var params amountParams
	if err := decodeParams(c.req, &params); err != nil {
		return nil, err
	}
	view, err := s.protocol.Market(params.Asset)
	if err != nil {
		return nil, toRPCError(err)
	}
	return map[string]string{
		"asset":         view.Asset,
		"totalSupplied": formatAmount(view.TotalSupplied),
		"totalBorrowed": formatAmount(view.TotalBorrowed),
		"reserves":      formatAmount(view.Reserves),
		"supplyIndex":   formatAmount(view.SupplyIndex),
		"borrowIndex":   formatAmount(view.BorrowIndex),
	}, nil
}

type balanceParams struct {
	Token   string `json:"token"`
	Address string `json:"address"`
}

func (s *Server) handleBalance(_ context.Context, c *call) (interface{}, *RPCError) {
	var params balanceParams
	if err := decodeParams(c.req, &params); err != nil {
		return nil, err
	}
	addr, rpcErr := parseAddress("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	bal, err := s.protocol.Balance(params.Token, addr)
	if err != nil {
		return nil, toRPCError(err)
	}
	return map[string]string{"token": strings.ToUpper(strings.TrimSpace(params.Token)), "balance": formatAmount(bal)}, nil
}

type claimParams struct {
	User       string `json:"user"`
	ActionType uint64 `json:"actionType"`
}

func (s *Server) handleClaimBounty(ctx context.Context, c *call) (interface{}, *RPCError) {
	var params claimParams
	if err := decodeParams(c.req, &params); err != nil {
		return nil, err
	}
	user, rpcErr := parseAddress("user", params.User)
	if rpcErr != nil {
		return nil, rpcErr
	}
	paid, err := s.protocol.ClaimBounty(ctx, c.caller, user, params.ActionType)
	if err != nil {
		return nil, toRPCError(err)
	}
	return s.mutation(paid), nil
}

type stakeParams struct {
	Amount    string `json:"amount"`
	OnBehalf  string `json:"onBehalf"`
	TypeIndex uint64 `json:"typeIndex"`
}

func (s *Server) handleStake(ctx context.Context, c *call) (interface{}, *RPCError) {
	var params stakeParams
	if err := decodeParams(c.req, &params); err != nil {
		return nil, err
	}
	amount, rpcErr := parseAmount("amount", params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	onBehalf := c.caller
	if strings.TrimSpace(params.OnBehalf) != "" {
		if onBehalf, rpcErr = parseAddress("onBehalf", params.OnBehalf); rpcErr != nil {
			return nil, rpcErr
		}
	}
	if err := s.protocol.Stake(ctx, c.caller, amount, onBehalf, params.TypeIndex); err != nil {
		return nil, toRPCError(err)
	}
	return s.mutation(nil), nil
}

func (s *Server) handleWithdrawExpired(ctx context.Context, c *call) (interface{}, *RPCError) {
	amount, err := s.protocol.WithdrawExpiredLocks(ctx, c.caller)
	if err != nil {
		return nil, toRPCError(err)
	}
	return s.mutation(amount), nil
}

func (s *Server) handleRelock(ctx context.Context, c *call) (interface{}, *RPCError) {
	amount, err := s.protocol.Relock(ctx, c.caller)
	if err != nil {
		return nil, toRPCError(err)
	}
	return s.mutation(amount), nil
}

func (s *Server) handleSetRelock(ctx context.Context, c *call) (interface{}, *RPCError) {
	var params toggleParams
	if err := decodeParams(c.req, &params); err != nil {
		return nil, err
	}
	if err := s.protocol.SetRelock(ctx, c.caller, params.Enabled); err != nil {
		return nil, toRPCError(err)
	}
	return s.mutation(nil), nil
}

type autocompoundParams struct {
	Enabled  bool   `json:"enabled"`
	Slippage uint64 `json:"slippage"`
}

func (s *Server) handleSetAutocompound(ctx context.Context, c *call) (interface{}, *RPCError) {
	var params autocompoundParams
	if err := decodeParams(c.req, &params); err != nil {
		return nil, err
	}
	if err := s.protocol.SetAutocompound(ctx, c.caller, params.Enabled, params.Slippage); err != nil {
		return nil, toRPCError(err)
	}
	return s.mutation(nil), nil
}

func (s *Server) handleClaimRewards(ctx context.Context, c *call) (interface{}, *RPCError) {
	rewards, err := s.protocol.ClaimRewards(ctx, c.caller)
	if err != nil {
		return nil, toRPCError(err)
	}
	return map[string]interface{}{"seq": s.protocol.Seq(), "rewards": rewardMap(rewards)}, nil
}

type exitParams struct {
	ClaimRewards bool `json:"claimRewards"`
}

func (s *Server) handleExit(ctx context.Context, c *call) (interface{}, *RPCError) {
	var params exitParams
	if len(c.req.Params) > 0 {
		if err := decodeParams(c.req, &params); err != nil {
			return nil, err
		}
	}
	if err := s.protocol.Exit(ctx, c.caller, params.ClaimRewards); err != nil {
		return nil, toRPCError(err)
	}
	return s.mutation(nil), nil
}

func (s *Server) handleClaimEmissions(ctx context.Context, c *call) (interface{}, *RPCError) {
	amount, err := s.protocol.ClaimEmissions(ctx, c.caller)
	if err != nil {
		return nil, toRPCError(err)
	}
	return s.mutation(amount), nil
}

func (s *Server) handleDeposit(ctx context.Context, c *call) (interface{}, *RPCError) {
	asset, amount, rpcErr := assetAmount(c)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.protocol.Deposit(ctx, c.caller, asset, amount); err != nil {
		return nil, toRPCError(err)
	}
	return s.mutation(nil), nil
}

func (s *Server) handleWithdraw(ctx context.Context, c *call) (interface{}, *RPCError) {
	asset, amount, rpcErr := assetAmount(c)
	if rpcErr != nil {
		return nil, rpcErr
	}
	out, err := s.protocol.Withdraw(ctx, c.caller, asset, amount)
	if err != nil {
		return nil, toRPCError(err)
	}
	return s.mutation(out), nil
}

func (s *Server) handleBorrow(ctx context.Context, c *call) (interface{}, *RPCError) {
	asset, amount, rpcErr := assetAmount(c)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.protocol.Borrow(ctx, c.caller, asset, amount); err != nil {
		return nil, toRPCError(err)
	}
	return s.mutation(nil), nil
}

func (s *Server) handleRepay(ctx context.Context, c *call) (interface{}, *RPCError) {
	asset, amount, rpcErr := assetAmount(c)
	if rpcErr != nil {
		return nil, rpcErr
	}
	repaid, err := s.protocol.Repay(ctx, c.caller, asset, amount)
	if err != nil {
		return nil, toRPCError(err)
	}
	return s.mutation(repaid), nil
}

type liquidateParams struct {
	CollateralAsset string `json:"collateralAsset"`
	DebtAsset       string `json:"debtAsset"`
	Borrower        string `json:"borrower"`
	Amount          string `json:"amount"`
}

func (s *Server) handleLiquidate(ctx context.Context, c *call) (interface{}, *RPCError) {
	var params liquidateParams
	if err := decodeParams(c.req, &params); err != nil {
		return nil, err
	}
	borrower, rpcErr := parseAddress("borrower", params.Borrower)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount("amount", params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	result, err := s.protocol.Liquidate(ctx, c.caller, params.CollateralAsset, params.DebtAsset, borrower, amount)
	if err != nil {
		return nil, toRPCError(err)
	}
	return map[string]interface{}{
		"seq":                  s.protocol.Seq(),
		"repaid":               formatAmount(result.Repaid),
		"seized":               formatAmount(result.Seized),
		"liquidatorCollateral": formatAmount(result.LiquidatorCollateral),
		"protocolFee":          formatAmount(result.ProtocolFee),
	}, nil
}

type loopParams struct {
	Asset          string `json:"asset"`
	Amount         string `json:"amount"`
	BorrowRatioBps uint64 `json:"borrowRatioBps"`
	Loops          uint64 `json:"loops"`
}

func (s *Server) handleLoop(ctx context.Context, c *call) (interface{}, *RPCError) {
	var params loopParams
	if err := decodeParams(c.req, &params); err != nil {
		return nil, err
	}
	amount, rpcErr := parseAmount("amount", params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	borrowed, err := s.protocol.Loop(ctx, c.caller, params.Asset, amount, params.BorrowRatioBps, params.Loops)
	if err != nil {
		return nil, toRPCError(err)
	}
	return s.mutation(borrowed), nil
}

type slippageParams struct {
	Slippage uint64 `json:"slippage"`
}

func (s *Server) handleSelfCompound(ctx context.Context, c *call) (interface{}, *RPCError) {
	var params slippageParams
	if len(c.req.Params) > 0 {
		if err := decodeParams(c.req, &params); err != nil {
			return nil, err
		}
	}
	locked, err := s.protocol.SelfCompound(ctx, c.caller, params.Slippage)
	if err != nil {
		return nil, toRPCError(err)
	}
	return s.mutation(locked), nil
}

type liquidityParams struct {
	RewardAmount string `json:"rewardAmount"`
	BaseAmount   string `json:"baseAmount"`
}

func (s *Server) handleAddLiquidity(ctx context.Context, c *call) (interface{}, *RPCError) {
	var params liquidityParams
	if err := decodeParams(c.req, &params); err != nil {
		return nil, err
	}
	rewardAmount, rpcErr := parseAmount("rewardAmount", params.RewardAmount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	baseAmount, rpcErr := parseAmount("baseAmount", params.BaseAmount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	lp, err := s.protocol.ProvideLiquidity(ctx, c.caller, rewardAmount, baseAmount)
	if err != nil {
		return nil, toRPCError(err)
	}
	return s.mutation(lp), nil
}

type swapParams struct {
	From     string `json:"from"`
	To       string `json:"to"`
	AmountIn string `json:"amountIn"`
	MinOut   string `json:"minOut"`
}

func (s *Server) handleSwap(ctx context.Context, c *call) (interface{}, *RPCError) {
	var params swapParams
	if err := decodeParams(c.req, &params); err != nil {
		return nil, err
	}
	amountIn, rpcErr := parseAmount("amountIn", params.AmountIn)
	if rpcErr != nil {
		return nil, rpcErr
	}
	minOut := new(big.Int)
	if strings.TrimSpace(params.MinOut) != "" && params.MinOut != "0" {
		if minOut, rpcErr = parseAmount("minOut", params.MinOut); rpcErr != nil {
			return nil, rpcErr
		}
	}
	out, err := s.protocol.Swap(ctx, c.caller, params.From, params.To, amountIn, minOut)
	if err != nil {
		return nil, toRPCError(err)
	}
	return s.mutation(out), nil
}

type transferParams struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleTransfer(ctx context.Context, c *call) (interface{}, *RPCError) {
	var params transferParams
	if err := decodeParams(c.req, &params); err != nil {
		return nil, err
	}
	to, rpcErr := parseAddress("to", params.To)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount("amount", params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.protocol.Transfer(ctx, c.caller, params.Token, to, amount); err != nil {
		return nil, toRPCError(err)
	}
	return s.mutation(nil), nil
}

type priceParams struct {
	Asset string `json:"asset"`
	Price string `json:"price"`
}

func (s *Server) handleSetPrice(ctx context.Context, c *call) (interface{}, *RPCError) {
	var params priceParams
	if err := decodeParams(c.req, &params); err != nil {
		return nil, err
	}
	price, rpcErr := parseAmount("price", params.Price)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.protocol.SetAssetPrice(ctx, c.caller, params.Asset, price); err != nil {
		return nil, toRPCError(err)
	}
	return s.mutation(nil), nil
}

type collectedEntry struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

func (s *Server) handleCollectRevenue(ctx context.Context, c *call) (interface{}, *RPCError) {
	collected, err := s.protocol.CollectRevenue(ctx, c.caller)
	if err != nil {
		return nil, toRPCError(err)
	}
	assets := make([]string, 0, len(collected))
	for asset := range collected {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	out := make([]collectedEntry, 0, len(assets))
	for _, asset := range assets {
		out = append(out, collectedEntry{Asset: asset, Amount: formatAmount(collected[asset])})
	}
	return map[string]interface{}{"seq": s.protocol.Seq(), "collected": out}, nil
}

type pauseParams struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

func (s *Server) handleSetPaused(ctx context.Context, c *call) (interface{}, *RPCError) {
	var params pauseParams
	if err := decodeParams(c.req, &params); err != nil {
		return nil, err
	}
	module := strings.ToLower(strings.TrimSpace(params.Module))
	switch module {
	case core.ModuleLending, core.ModuleMFD, core.ModuleChef, core.ModuleBounty, core.ModuleCompounder, core.ModuleLeverager:
	default:
		return nil, invalidParams("unknown module %q", params.Module)
	}
	if err := s.protocol.SetModulePaused(ctx, c.caller, module, params.Paused); err != nil {
		return nil, toRPCError(err)
	}
	return map[string]interface{}{"module": module, "paused": params.Paused}, nil
}

type whitelistParams struct {
	Active  bool     `json:"active"`
	Hunters []string `json:"hunters"`
}

func (s *Server) handleSetWhitelist(ctx context.Context, c *call) (interface{}, *RPCError) {
	var params whitelistParams
	if err := decodeParams(c.req, &params); err != nil {
		return nil, err
	}
	hunters := make([]common.Address, 0, len(params.Hunters))
	for i, raw := range params.Hunters {
		addr, rpcErr := parseAddress("hunters["+strconv.Itoa(i)+"]", raw)
		if rpcErr != nil {
			return nil, rpcErr
		}
		hunters = append(hunters, addr)
	}
	if err := s.protocol.SetBountyWhitelist(ctx, c.caller, params.Active, hunters...); err != nil {
		return nil, toRPCError(err)
	}
	return s.mutation(nil), nil
}

type advanceParams struct {
	Seconds uint64 `json:"seconds"`
}

func (s *Server) handleAdvanceTime(ctx context.Context, c *call) (interface{}, *RPCError) {
	var params advanceParams
	if err := decodeParams(c.req, &params); err != nil {
		return nil, err
	}
	now, err := s.protocol.AdvanceTime(ctx, params.Seconds)
	if err != nil {
		return nil, toRPCError(err)
	}
	return map[string]uint64{"seq": s.protocol.Seq(), "now": now}, nil
}

func (s *Server) handleMint(ctx context.Context, c *call) (interface{}, *RPCError) {
	var params transferParams
	if err := decodeParams(c.req, &params); err != nil {
		return nil, err
	}
	to, rpcErr := parseAddress("to", params.To)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount("amount", params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.protocol.Mint(ctx, c.caller, params.Token, to, amount); err != nil {
		return nil, toRPCError(err)
	}
	return s.mutation(nil), nil
}
