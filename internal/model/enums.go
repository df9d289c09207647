package model

import "github.com/shopspring/decimal"

// ServiceType は提供サービスの種別。
type ServiceType string

const (
	ServiceVirtualVisit  ServiceType = "virtual_visit"
	ServiceInPersonVisit ServiceType = "in_person_visit"
	ServiceLabs          ServiceType = "labs"
	ServiceImaging       ServiceType = "imaging"
	ServiceRx            ServiceType = "rx"
)

// ServiceTypes は全サービス種別を定義順で返す。
var ServiceTypes = []ServiceType{
	ServiceVirtualVisit,
	ServiceInPersonVisit,
	ServiceLabs,
	ServiceImaging,
	ServiceRx,
}

// Valid は定義済みのサービス種別かを返す。
func (s ServiceType) Valid() bool {
	for _, v := range ServiceTypes {
		if s == v {
			return true
		}
	}
	return false
}

// cogsRates はサービス種別ごとの売上原価率。
var cogsRates = map[ServiceType]decimal.Decimal{
	ServiceVirtualVisit:  decimal.RequireFromString("0.35"),
	ServiceInPersonVisit: decimal.RequireFromString("0.45"),
	ServiceLabs:          decimal.RequireFromString("0.50"),
	ServiceImaging:       decimal.RequireFromString("0.55"),
	ServiceRx:            decimal.RequireFromString("0.60"),
}

// COGSRate はサービス種別の売上原価率を返す。未知の種別は0。
func (s ServiceType) COGSRate() decimal.Decimal {
	return cogsRates[s]
}

// Channel は流入チャネル。
type Channel string

const (
	ChannelOrganic    Channel = "organic"
	ChannelPaidSearch Channel = "paid_search"
	ChannelReferral   Channel = "referral"
	ChannelPartner    Channel = "partner"
	ChannelEmail      Channel = "email"
)

// Channels は全チャネルを定義順で返す。
var Channels = []Channel{
	ChannelOrganic,
	ChannelPaidSearch,
	ChannelReferral,
	ChannelPartner,
	ChannelEmail,
}

// Valid は定義済みのチャネルかを返す。
func (c Channel) Valid() bool {
	for _, v := range Channels {
		if c == v {
			return true
		}
	}
	return false
}

// Device はセッションの端末種別。
type Device string

const (
	DeviceMobile  Device = "mobile"
	DeviceDesktop Device = "desktop"
)

// VisitMode はサービス種別から決まる提供形態。
type VisitMode string

const (
	VisitModeVirtual  VisitMode = "virtual"
	VisitModeInPerson VisitMode = "in_person"
	// VisitModeDelivery は来院を伴わない配送型（rx）。
	VisitModeDelivery VisitMode = "delivery"
)

// BookingStatus は予約の最終状態。
type BookingStatus string

const (
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)
