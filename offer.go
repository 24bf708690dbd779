package shrine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Offer pulls amount of token from sender into the shrine and credits it to
// the current ledger version. Champions of that version can then claim their
// proportional cut. Anyone may offer; the sender only needs to have granted
// the engine enough allowance.
//
// The credit is written before the transfer and rolled back if the transfer
// fails, so a failed offer leaves no trace in the accounting.
func (s *Shrine) Offer(ctx context.Context, sender common.Address, token Token, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}
	if token.Zero() {
		return fmt.Errorf("%w: token", ErrZeroAddress)
	}

	v, err := s.store.CurrentVersion()
	if err != nil {
		return err
	}
	if v == 0 {
		return ErrNotInitialized
	}

	if _, err := s.store.AddOffered(v, token, amount); err != nil {
		return err
	}

	if err := s.engine.Pull(ctx, token, sender, s.addr, amount); err != nil {
		if rbErr := s.store.RollbackOffered(v, token, amount); rbErr != nil {
			s.log.Error("offer rollback failed, accounting diverged from balances",
				zap.Uint64("version", uint64(v)),
				zap.String("token", token.String()),
				zap.String("amount", amount.Dec()),
				zap.Error(rbErr))
			return fmt.Errorf("%w: %w (rollback also failed: %v)", ErrTransferFailed, err, rbErr)
		}
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	s.log.Debug("offer accepted",
		zap.Uint64("version", uint64(v)),
		zap.String("sender", sender.Hex()),
		zap.String("token", token.String()),
		zap.String("amount", amount.Dec()))
	s.record(RecordOffered{
		Shrine:  s.addr,
		Sender:  sender,
		Version: v,
		Token:   token,
		Amount:  *amount,
	})
	return nil
}
