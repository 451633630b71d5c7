package core

import "github.com/shopspring/decimal"

// NetWorth splits account balances into assets and liabilities.
type NetWorth struct {
	Assets      decimal.Decimal
	Liabilities decimal.Decimal
	Net         decimal.Decimal
}

// ComputeNetWorth totals active accounts. Credit card and loan balances count as
// liabilities whatever their sign.
func ComputeNetWorth(accounts []Account) NetWorth {
	nw := NetWorth{Assets: decimal.Zero, Liabilities: decimal.Zero}
	for _, a := range accounts {
		if a.State.IsDeleted() {
			continue
		}
		if a.Type.IsLiability() {
			nw.Liabilities = nw.Liabilities.Add(a.Balance.Abs())
			continue
		}
		nw.Assets = nw.Assets.Add(a.Balance)
	}
	nw.Net = nw.Assets.Sub(nw.Liabilities)
	return nw
}
