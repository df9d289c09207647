package generator

import (
	"fmt"
	"math/rand/v2"

	"github.com/hitoshi/carefunnel/internal/model"
	"github.com/hitoshi/carefunnel/internal/sampling"
)

// 年齢分布のパラメータ。
const (
	ageMean = 38.0
	ageSD   = 12.0
	minAge  = 18.0
	maxAge  = 80.0
)

// firstTouchWeights はユーザーの初回接点チャネルの分布。
var firstTouchWeights = []sampling.Weighted[model.Channel]{
	{Value: model.ChannelOrganic, Weight: 0.35},
	{Value: model.ChannelPaidSearch, Weight: 0.25},
	{Value: model.ChannelReferral, Weight: 0.15},
	{Value: model.ChannelPartner, Weight: 0.10},
	{Value: model.ChannelEmail, Weight: 0.15},
}

// sessionChannelWeights はセッションの流入チャネルの分布。初回接点とは別の重み。
var sessionChannelWeights = []sampling.Weighted[model.Channel]{
	{Value: model.ChannelOrganic, Weight: 0.32},
	{Value: model.ChannelPaidSearch, Weight: 0.28},
	{Value: model.ChannelReferral, Weight: 0.16},
	{Value: model.ChannelPartner, Weight: 0.10},
	{Value: model.ChannelEmail, Weight: 0.14},
}

var serviceWeights = []sampling.Weighted[model.ServiceType]{
	{Value: model.ServiceVirtualVisit, Weight: 0.38},
	{Value: model.ServiceInPersonVisit, Weight: 0.20},
	{Value: model.ServiceLabs, Weight: 0.16},
	{Value: model.ServiceImaging, Weight: 0.10},
	{Value: model.ServiceRx, Weight: 0.16},
}

var deviceWeights = []sampling.Weighted[model.Device]{
	{Value: model.DeviceMobile, Weight: 0.65},
	{Value: model.DeviceDesktop, Weight: 0.35},
}

// states は居住地として割り当てる米国の州コード。
var states = []string{
	"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "FL", "GA",
	"HI", "ID", "IL", "IN", "IA", "KS", "KY", "LA", "ME", "MD",
	"MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH", "NJ",
	"NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI", "SC",
	"SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV", "WI", "WY",
}

// GenerateUsers はcfg.UserCount人分のユーザーを生成する。
// IDは u00000 から連番で採番する。
func GenerateUsers(r *rand.Rand, cfg Config) []model.User {
	anchor := cfg.anchor()
	users := make([]model.User, cfg.UserCount)
	for i := range users {
		users[i] = model.User{
			ID:                fmt.Sprintf("u%05d", i),
			SignupDate:        sampling.DateInWindow(r, anchor, cfg.WindowDays),
			State:             states[r.IntN(len(states))],
			Age:               int(sampling.ClippedNormal(r, ageMean, ageSD, minAge, maxAge)),
			ChannelFirstTouch: sampling.Choice(r, firstTouchWeights),
		}
	}
	return users
}

// GenerateSessions はユーザーごとに1〜cfg.MaxSessionsPerUser件のセッションを生成する。
// IDはユーザー順に s0000000 から連番で採番する。
func GenerateSessions(r *rand.Rand, cfg Config, users []model.User) []model.Session {
	anchor := cfg.anchor()
	sessions := make([]model.Session, 0, len(users)*(cfg.MaxSessionsPerUser+1)/2)
	for _, u := range users {
		n := sampling.IntBetween(r, 1, cfg.MaxSessionsPerUser)
		for j := 0; j < n; j++ {
			sessions = append(sessions, model.Session{
				ID:          fmt.Sprintf("s%07d", len(sessions)),
				UserID:      u.ID,
				SessionDate: sampling.DateInWindow(r, anchor, cfg.WindowDays),
				ServiceType: sampling.Choice(r, serviceWeights),
				Device:      sampling.Choice(r, deviceWeights),
				Channel:     sampling.Choice(r, sessionChannelWeights),
			})
		}
	}
	return sessions
}
