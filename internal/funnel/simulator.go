// Package funnel はセッションから見積もり・予約・実施までの転換を確率的にシミュレートする。
//
// Simulate はセッションと、そのセッション専用の乱数系列だけを入力とする純粋関数であり、
// セッション間で状態を共有しない。ID採番は呼び出し側（generator）が行う。
package funnel

import (
	"math"
	"math/rand/v2"

	"github.com/hitoshi/carefunnel/internal/model"
	"github.com/hitoshi/carefunnel/internal/sampling"
	"github.com/shopspring/decimal"
)

// 見積もり価格のパラメータ。
const (
	priceNoiseRatio = 0.15
	minCashPrice    = 10.0
	maxCashPrice    = 800.0

	insuranceMultiplierMean = 0.75
	insuranceMultiplierSD   = 0.18
	minInsuranceMultiplier  = 0.35
	maxInsuranceMultiplier  = 1.10
	minInsurancePrice       = 5.0
	maxInsurancePrice       = 800.0

	hasInsuranceProb   = 0.78
	showInsurancePrice = 0.85
)

// 予約確率（ロジスティック）の係数。
const (
	bookingIntercept  = 2.2
	priceElasticity   = -0.55
	mobileLift        = 0.15
	paidSearchPenalty = -0.10
)

// 待ち日数と完了確率のパラメータ。
const (
	virtualWaitMean = 0.5
	defaultWaitMean = 2.5
	waitSD          = 2.0
	maxWaitDays     = 21.0

	completionIntercept = 2.5
	waitPenaltyPerDay   = -0.18
	virtualCompleteLift = 0.4

	satisfactionMean = 8.0
	satisfactionSD   = 1.8
)

// basePrices はサービス種別ごとの基準自費価格（USD）。
var basePrices = map[model.ServiceType]float64{
	model.ServiceVirtualVisit:  59,
	model.ServiceInPersonVisit: 139,
	model.ServiceLabs:          79,
	model.ServiceImaging:       249,
	model.ServiceRx:            25,
}

// serviceBias はサービス種別ごとの予約しやすさ（ロジットへの加算値）。
var serviceBias = map[model.ServiceType]float64{
	model.ServiceVirtualVisit:  0.9,
	model.ServiceInPersonVisit: 0.3,
	model.ServiceLabs:          0.4,
	model.ServiceImaging:       -0.1,
	model.ServiceRx:            0.6,
}

// Outcome は1セッション分のシミュレーション結果。
// 予約に至らなかった場合 Booking と Fulfillment はnil。
// キャンセルされた予約では Fulfillment はnil。
// Booking.ID と Fulfillment.ID/BookingID は呼び出し側で採番する。
type Outcome struct {
	Quote       model.Quote
	Booking     *model.Booking
	Fulfillment *model.Fulfillment
}

// Simulate はセッションに対して見積もりを1件導出し、予約・完了を確率的に決定する。
func Simulate(session model.Session, r *rand.Rand) Outcome {
	quote := DeriveQuote(session, r)
	out := Outcome{Quote: quote}

	price := quote.EffectivePrice()
	if !sampling.Bernoulli(r, BookingProbability(price.InexactFloat64(), session)) {
		return out
	}

	mode := VisitModeFor(session.ServiceType)
	wait := DrawWaitDays(r, mode)
	completed := sampling.Bernoulli(r, CompletionProbability(wait, mode))

	booking := &model.Booking{
		SessionID:          session.ID,
		UserID:             session.UserID,
		ServiceType:        session.ServiceType,
		VisitMode:          mode,
		BookingDate:        session.SessionDate,
		PricePaid:          price,
		UsedInsurancePrice: quote.UsesInsurancePrice(),
		WaitTimeDays:       wait,
		Status:             model.BookingStatusCancelled,
	}
	out.Booking = booking

	if !completed {
		return out
	}

	booking.Status = model.BookingStatusCompleted
	out.Fulfillment = &model.Fulfillment{
		CompletedDate:     booking.BookingDate.AddDate(0, 0, wait),
		SatisfactionScore: int(math.Round(sampling.ClippedNormal(r, satisfactionMean, satisfactionSD, 0, 10))),
	}
	return out
}

// DeriveQuote はセッションのサービス種別から自費価格と保険価格を導出する。
// 価格は小数第2位に丸める。保険価格は提示された場合のみ設定する。
func DeriveQuote(session model.Session, r *rand.Rand) model.Quote {
	base := basePrices[session.ServiceType]
	cash := sampling.ClippedNormal(r, base, base*priceNoiseRatio, minCashPrice, maxCashPrice)

	// 保険価格は提示の有無に関わらず算出する（奇妙なプランで自費より高くなることもある）
	multiplier := sampling.ClippedNormal(r, insuranceMultiplierMean, insuranceMultiplierSD, minInsuranceMultiplier, maxInsuranceMultiplier)
	insurance := sampling.Clip(cash*multiplier, minInsurancePrice, maxInsurancePrice)

	hasInsurance := sampling.Bernoulli(r, hasInsuranceProb)
	showed := hasInsurance && sampling.Bernoulli(r, showInsurancePrice)

	quote := model.Quote{
		ID:                   "q" + session.ID,
		SessionID:            session.ID,
		CashPrice:            decimal.NewFromFloat(cash).Round(2),
		HasInsurance:         hasInsurance,
		ShowedInsurancePrice: showed,
	}
	if showed {
		p := decimal.NewFromFloat(insurance).Round(2)
		quote.InsurancePrice = &p
	}
	return quote
}

// BookingProbability は提示価格とセッション属性から予約確率を計算する。
// 価格が高いほど、また有料検索経由ほど確率は下がる。
func BookingProbability(price float64, session model.Session) float64 {
	x := bookingIntercept + priceElasticity*math.Log(price) + serviceBias[session.ServiceType]
	if session.Device == model.DeviceMobile {
		x += mobileLift
	}
	if session.Channel == model.ChannelPaidSearch {
		x += paidSearchPenalty
	}
	return Sigmoid(x)
}

// VisitModeFor はサービス種別から提供形態を決める。
func VisitModeFor(service model.ServiceType) model.VisitMode {
	switch service {
	case model.ServiceVirtualVisit:
		return model.VisitModeVirtual
	case model.ServiceInPersonVisit, model.ServiceLabs, model.ServiceImaging:
		return model.VisitModeInPerson
	default:
		return model.VisitModeDelivery
	}
}

// DrawWaitDays は予約から実施までの待ち日数を引く。
// オンライン診療は平均0.5日、それ以外は平均2.5日。[0, 21]に収めて整数に丸める。
func DrawWaitDays(r *rand.Rand, mode model.VisitMode) int {
	mean := defaultWaitMean
	if mode == model.VisitModeVirtual {
		mean = virtualWaitMean
	}
	return int(math.Round(sampling.ClippedNormal(r, mean, waitSD, 0, maxWaitDays)))
}

// CompletionProbability は待ち日数と提供形態から完了確率を計算する。
// 待ちが長いほどキャンセルされやすい。
func CompletionProbability(waitDays int, mode model.VisitMode) float64 {
	x := completionIntercept + waitPenaltyPerDay*float64(waitDays)
	if mode == model.VisitModeVirtual {
		x += virtualCompleteLift
	}
	return Sigmoid(x)
}

// Sigmoid は 1/(1+e^-x) を返す。
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
