package utility

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"utilitychain/core/events"
	"utilitychain/core/types"
)

const (
	// EventTypeUtilityCreated is emitted when a provider registers a utility.
	EventTypeUtilityCreated = "utility.created"
	// EventTypeRaffleJoined is emitted when a participant joins a raffle.
	EventTypeRaffleJoined = "raffle.joined"
	// EventTypeRaffleEnded is emitted when the provider closes a raffle.
	EventTypeRaffleEnded = "raffle.ended"
	// EventTypeRewardClaimed is emitted when a reward is issued to a user.
	EventTypeRewardClaimed = "reward.claimed"
	// EventTypeUserEligible is emitted when the admin marks a user eligible.
	EventTypeUserEligible = "utility.eligible"
	// EventTypeAssetRegistered is emitted when an asset gains a utility record.
	EventTypeAssetRegistered = "asset.registered"
	// EventTypeUtilityClaimed is emitted when a utility is bound to an asset.
	EventTypeUtilityClaimed = "utility.claimed"
	// EventTypeUtilityRedeemed is emitted when a bound utility is redeemed.
	EventTypeUtilityRedeemed = "utility.redeemed"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// Payload extracts the attribute payload from an event emitted by this module.
func Payload(evt events.Event) (*types.Event, bool) {
	env, ok := evt.(eventEnvelope)
	if !ok || env.evt == nil {
		return nil, false
	}
	return env.evt, true
}

func formatID(id uint64) string { return strconv.FormatUint(id, 10) }

// UtilityCreatedEvent announces a new registry entry.
func UtilityCreatedEvent(id uint64, u *Utility) *types.Event {
	return &types.Event{
		Type: EventTypeUtilityCreated,
		Attributes: map[string]string{
			"utilityId": formatID(id),
			"provider":  u.Provider.Hex(),
			"selection": u.Selection.String(),
			"receipt":   u.Reward.Receipt.String(),
			"uri":       u.URI,
		},
	}
}

// RaffleJoinedEvent records a participant joining a raffle. Raffle membership
// lives only in the event stream.
func RaffleJoinedEvent(id uint64, participant common.Address) *types.Event {
	return &types.Event{
		Type: EventTypeRaffleJoined,
		Attributes: map[string]string{
			"utilityId":   formatID(id),
			"participant": participant.Hex(),
		},
	}
}

// RaffleEndedEvent records the close of a raffle.
func RaffleEndedEvent(id uint64) *types.Event {
	return &types.Event{
		Type:       EventTypeRaffleEnded,
		Attributes: map[string]string{"utilityId": formatID(id)},
	}
}

// RewardClaimedEvent carries (utility, user, token) for an issued reward.
func RewardClaimedEvent(id uint64, user, token common.Address, amount uint64) *types.Event {
	return &types.Event{
		Type: EventTypeRewardClaimed,
		Attributes: map[string]string{
			"utilityId": formatID(id),
			"user":      user.Hex(),
			"token":     token.Hex(),
			"amount":    strconv.FormatUint(amount, 10),
		},
	}
}

// UserEligibleEvent records an eligibility assertion.
func UserEligibleEvent(id uint64, user common.Address) *types.Event {
	return &types.Event{
		Type: EventTypeUserEligible,
		Attributes: map[string]string{
			"utilityId": formatID(id),
			"user":      user.Hex(),
		},
	}
}

// AssetRegisteredEvent records the creation of an asset's utility record.
func AssetRegisteredEvent(asset common.Address, tu TokenUtility) *types.Event {
	return &types.Event{
		Type: EventTypeAssetRegistered,
		Attributes: map[string]string{
			"asset":      asset.Hex(),
			"usageType":  tu.UsageType.String(),
			"expiryType": tu.ExpiryType.String(),
		},
	}
}

// UtilityClaimedEvent records a utility being bound to an asset.
func UtilityClaimedEvent(asset, user common.Address, id uint64) *types.Event {
	return &types.Event{
		Type: EventTypeUtilityClaimed,
		Attributes: map[string]string{
			"asset":     asset.Hex(),
			"user":      user.Hex(),
			"utilityId": formatID(id),
		},
	}
}

// UtilityRedeemedEvent records a redemption against an asset.
func UtilityRedeemedEvent(asset, user common.Address, id uint64) *types.Event {
	return &types.Event{
		Type: EventTypeUtilityRedeemed,
		Attributes: map[string]string{
			"asset":     asset.Hex(),
			"user":      user.Hex(),
			"utilityId": formatID(id),
		},
	}
}
