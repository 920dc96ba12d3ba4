package utility

import (
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"utilitychain/observability/logging"
)

// JoinRaffle admits participant into the raffle of utility id. Only the
// provider may register participants and only while the offer is open.
// Membership is recorded in the event stream, not in state.
func (e *Engine) JoinRaffle(id uint64, caller, participant common.Address) error {
	return e.run("join_raffle", caller, true, func(ctx *opContext) error {
		_, u, err := e.loadUtility(id)
		if err != nil {
			return err
		}
		if u.Provider != ctx.caller {
			return ErrNotAuthorized
		}
		if ctx.now > u.OfferExpiry {
			return fmt.Errorf("%w: offer closed at %d", ErrRaffleExpired, u.OfferExpiry)
		}
		if u.Selection != SelectionRaffle || u.Raffle.Ended {
			return ErrInvalidRaffleSelection
		}
		ctx.log(slog.Uint64("utilityId", id), logging.MaskField("participant", participant.Hex()))
		ctx.emit(RaffleJoinedEvent(id, participant))
		return nil
	})
}

// EndRaffle closes the raffle of utility id once its offer window has
// passed. A raffle can be ended exactly once.
func (e *Engine) EndRaffle(id uint64, caller common.Address) error {
	return e.run("end_raffle", caller, true, func(ctx *opContext) error {
		registry, u, err := e.loadUtility(id)
		if err != nil {
			return err
		}
		if u.Raffle.Ended {
			return ErrRaffleAlreadyEnded
		}
		if u.Provider != ctx.caller {
			return ErrNotAuthorized
		}
		if u.Selection != SelectionRaffle {
			return ErrInvalidRaffleSelection
		}
		if ctx.now < u.OfferExpiry {
			return fmt.Errorf("%w: offer open until %d", ErrRaffleNotEnded, u.OfferExpiry)
		}
		u.Raffle.Ended = true
		if err := e.storeRegistry(registry); err != nil {
			return err
		}
		ctx.log(slog.Uint64("utilityId", id))
		ctx.emit(RaffleEndedEvent(id))
		return nil
	})
}
