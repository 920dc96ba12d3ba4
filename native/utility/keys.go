package utility

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	adminKey        = []byte("utility/ADMIN")
	registryKey     = []byte("utility/U_STORAGE")
	eligibleKey     = []byte("utility/ELIGIBLE")
	tokenUtilityKey = []byte("utility/TOKEN_U")
)

func claimKey(utilityID uint64, user common.Address) []byte {
	return []byte(fmt.Sprintf("utility/claimed/%d/%x", utilityID, user))
}
