package model

import "github.com/shopspring/decimal"

// Quote はセッションごとに1件提示される見積もり。
// InsurancePrice は ShowedInsurancePrice が true の場合のみ非nil。
type Quote struct {
	ID                   string
	SessionID            string
	CashPrice            decimal.Decimal
	InsurancePrice       *decimal.Decimal
	HasInsurance         bool
	ShowedInsurancePrice bool
}

// EffectivePrice は利用者が実際に目にした価格を返す。
// 保険価格が提示されていればそれを、なければ自費価格を返す。
func (q Quote) EffectivePrice() decimal.Decimal {
	if q.UsesInsurancePrice() {
		return *q.InsurancePrice
	}
	return q.CashPrice
}

// UsesInsurancePrice は保険価格が提示され、かつ値が存在するかを返す。
func (q Quote) UsesInsurancePrice() bool {
	return q.ShowedInsurancePrice && q.InsurancePrice != nil
}
