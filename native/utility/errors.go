package utility

import "errors"

var (
	ErrInvalidTime            = errors.New("utility: invalid time")
	ErrInsufficientBalance    = errors.New("utility: insufficient balance")
	ErrInvalidExpiry          = errors.New("utility: invalid expiry")
	ErrNotAuthorized          = errors.New("utility: not authorized")
	ErrRaffleExpired          = errors.New("utility: raffle expired")
	ErrInvalidRaffleSelection = errors.New("utility: invalid raffle selection")
	ErrRaffleAlreadyEnded     = errors.New("utility: raffle already ended")
	ErrRaffleNotEnded         = errors.New("utility: raffle not ended")
	ErrAllRewardsClaimed      = errors.New("utility: all rewards claimed")
	ErrAlreadyClaimed         = errors.New("utility: already claimed")
	ErrInvalidReceiptType     = errors.New("utility: invalid receipt type")
	ErrUtilityNotFound        = errors.New("utility: utility not found")
	ErrUtilityExpired         = errors.New("utility: utility expired")
	ErrUsageExceeded          = errors.New("utility: usage exceeded")

	ErrAdminAlreadySet = errors.New("utility: admin already set")
	ErrAdminNotSet     = errors.New("utility: admin not set")
	ErrAssetRegistered = errors.New("utility: asset already registered")
	ErrNilState        = errors.New("utility engine: state not configured")

	errNilTokens       = errors.New("utility engine: token service not configured")
	errContractNotSet  = errors.New("utility engine: contract address not configured")
	errInvalidUtility  = errors.New("utility: nil utility")
	errZeroAdminSetup  = errors.New("utility: admin address must not be zero")
	errRegistryCorrupt = errors.New("utility: registry corrupt")
)

// Stable numeric codes, kept in sync with the on-ledger error numbering.
var errorCodes = []struct {
	err  error
	code uint32
	name string
}{
	{ErrInvalidTime, 1, "InvalidTime"},
	{ErrInsufficientBalance, 2, "InsufficientBalance"},
	{ErrInvalidExpiry, 3, "InvalidExpiry"},
	{ErrNotAuthorized, 4, "NotAuthorized"},
	{ErrRaffleExpired, 5, "RaffleExpired"},
	{ErrInvalidRaffleSelection, 6, "InvalidRaffleSelection"},
	{ErrRaffleAlreadyEnded, 7, "RaffleAlreadyEnded"},
	{ErrRaffleNotEnded, 8, "RaffleNotEnded"},
	{ErrAllRewardsClaimed, 9, "AllRewardsClaimed"},
	{ErrAlreadyClaimed, 10, "AlreadyClaimed"},
	{ErrInvalidReceiptType, 11, "InvalidReceiptType"},
	{ErrUtilityNotFound, 12, "UtilityNotFound"},
	{ErrUtilityExpired, 13, "UtilityExpired"},
	{ErrUsageExceeded, 14, "UsageExceeded"},
}

// Code returns the numeric code of a taxonomy error, or 0 when err is nil or
// not one of the taxonomy kinds.
func Code(err error) uint32 {
	if err == nil {
		return 0
	}
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return 0
}

// Outcome classifies err for metrics and logs: "ok", the taxonomy name, or
// "internal" for infrastructure failures.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.name
		}
	}
	return "internal"
}
