package utility

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ExpiryType selects how Utility.Expiry is interpreted.
type ExpiryType uint8

const (
	// ExpiryNone means the utility never expires on its own.
	ExpiryNone ExpiryType = iota
	// ExpiryTimeBased treats Expiry as a duration added to the bind time.
	ExpiryTimeBased
	// ExpiryDateBased treats Expiry as an absolute timestamp.
	ExpiryDateBased
)

// UsageType selects whether Utility.Usage is enforced.
type UsageType uint8

const (
	UsageUnlimited UsageType = iota
	UsageLimited
)

// Selection decides who may claim the reward.
type Selection uint8

const (
	// SelectionAll lets every eligible user claim.
	SelectionAll Selection = iota
	// SelectionRaffle gates claims behind a raffle that must end first.
	SelectionRaffle
)

// Receipt is the mechanism used to materialise a claimed reward.
type Receipt uint8

const (
	ReceiptNone Receipt = iota
	ReceiptMintToken
	ReceiptExternal
	// ReceiptHTSToken is recognised but has no issuance path.
	ReceiptHTSToken
)

var (
	expiryTypeNames = map[ExpiryType]string{ExpiryNone: "none", ExpiryTimeBased: "time", ExpiryDateBased: "date"}
	usageTypeNames  = map[UsageType]string{UsageUnlimited: "unlimited", UsageLimited: "limited"}
	selectionNames  = map[Selection]string{SelectionAll: "all", SelectionRaffle: "raffle"}
	receiptNames    = map[Receipt]string{ReceiptNone: "none", ReceiptMintToken: "mint", ReceiptExternal: "external", ReceiptHTSToken: "hts"}
)

// Valid reports whether the value is a known variant.
func (t ExpiryType) Valid() bool {
	_, ok := expiryTypeNames[t]
	return ok
}

func (t ExpiryType) String() string { return enumString(expiryTypeNames, t) }

// Valid reports whether the value is a known variant.
func (t UsageType) Valid() bool {
	_, ok := usageTypeNames[t]
	return ok
}

func (t UsageType) String() string { return enumString(usageTypeNames, t) }

// Valid reports whether the value is a known variant.
func (s Selection) Valid() bool {
	_, ok := selectionNames[s]
	return ok
}

func (s Selection) String() string { return enumString(selectionNames, s) }

// Valid reports whether the value is a known variant.
func (r Receipt) Valid() bool {
	_, ok := receiptNames[r]
	return ok
}

func (r Receipt) String() string { return enumString(receiptNames, r) }

func enumString[K ~uint8](names map[K]string, v K) string {
	if name, ok := names[v]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(v))
}

func parseEnum[K ~uint8](names map[K]string, kind, raw string) (K, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for k, name := range names {
		if name == normalized {
			return k, nil
		}
	}
	return 0, fmt.Errorf("utility: unknown %s %q", kind, raw)
}

// ParseExpiryType converts "none", "time" or "date".
func ParseExpiryType(raw string) (ExpiryType, error) {
	return parseEnum(expiryTypeNames, "expiry type", raw)
}

// ParseUsageType converts "unlimited" or "limited".
func ParseUsageType(raw string) (UsageType, error) {
	return parseEnum(usageTypeNames, "usage type", raw)
}

// ParseSelection converts "all" or "raffle".
func ParseSelection(raw string) (Selection, error) {
	return parseEnum(selectionNames, "selection", raw)
}

// ParseReceipt converts "none", "mint", "external" or "hts".
func ParseReceipt(raw string) (Receipt, error) {
	return parseEnum(receiptNames, "receipt", raw)
}

// Raffle captures the selection phase of a raffle utility.
type Raffle struct {
	StartTime uint64
	Ended     bool
}

// Reward describes the funded pool backing a utility.
type Reward struct {
	Receipt Receipt
	// TokenAddresses[0] is the token rewards are issued in.
	TokenAddresses []common.Address
	TotalAmount    uint64
	AmountPerWin   uint64
	// NoOfWinners is informational; claims are bounded by TotalAmount only.
	NoOfWinners uint64
}

// Utility is a provider-issued benefit template. Its identifier is its index
// in the registry.
type Utility struct {
	Provider    common.Address
	Partner     common.Address
	URI         string
	Expiry      uint64
	OfferExpiry uint64
	Usage       uint64
	ExpiryType  ExpiryType
	UsageType   UsageType
	Selection   Selection
	Raffle      Raffle
	Reward      Reward
}

// Clone returns a deep copy of the utility.
func (u *Utility) Clone() *Utility {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Reward.TokenAddresses = append([]common.Address(nil), u.Reward.TokenAddresses...)
	return &clone
}

// RewardToken returns the token rewards are issued in.
func (u *Utility) RewardToken() (common.Address, bool) {
	if u == nil || len(u.Reward.TokenAddresses) == 0 {
		return common.Address{}, false
	}
	return u.Reward.TokenAddresses[0], true
}

// TokenUtility is the usage and expiry state of a utility bound to one asset.
type TokenUtility struct {
	Usage      uint64
	UsageType  UsageType
	Expiry     uint64
	ExpiryType ExpiryType
}

// EligibilityEntry is an admin assertion that User may interact with a utility.
type EligibilityEntry struct {
	User      common.Address
	UtilityID uint64
}

type tokenUtilityEntry struct {
	Asset   common.Address
	Utility TokenUtility
}
