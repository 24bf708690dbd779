package shrine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/Astrodrop/shrine/merkle"
)

// computeClaimable returns how much a champion can withdraw right now:
// the floor of offered*shares/totalShares, minus what the champion already
// collected for the same (version, token). The subtraction saturates at
// zero so a ledger change can never turn a claim into a debt.
func computeClaimable(offered *uint256.Int, shares, totalShares uint64, claimed *uint256.Int) (*uint256.Int, error) {
	entitled := new(uint256.Int)
	_, overflow := entitled.MulDivOverflow(offered, uint256.NewInt(shares), uint256.NewInt(totalShares))
	if overflow {
		return nil, fmt.Errorf("%w: entitled amount", ErrAmountOverflow)
	}

	if entitled.Cmp(claimed) <= 0 {
		return new(uint256.Int), nil
	}
	return new(uint256.Int).Sub(entitled, claimed), nil
}

// authorizeChampionAction checks that caller may act for a champion and
// returns the account payouts go to. While no claim right has been handed
// out that is the champion itself; afterwards it is the right's owner, and
// the champion loses access until the right comes back.
func (s *Shrine) authorizeChampionAction(caller common.Address, c Champion) (common.Address, error) {
	owner, err := s.store.ClaimRightOwner(c)
	if err != nil {
		return common.Address{}, err
	}

	if owner == (common.Address{}) {
		if caller != common.Address(c) {
			return common.Address{}, fmt.Errorf("%w: caller %s is not champion %s", ErrNotAuthorized, caller.Hex(), c)
		}
		return caller, nil
	}
	if caller != owner {
		return common.Address{}, fmt.Errorf("%w: caller %s does not own the claim right of %s", ErrNotAuthorized, caller.Hex(), c)
	}
	return owner, nil
}

// Claim pays out a champion's unclaimed cut of one (version, token) pool and
// returns the amount paid. The caller must be the champion's effective
// claim-right owner, and the (champion, shares) leaf must prove into the
// version's Merkle root.
//
// Claiming is idempotent: a second call against the same pool pays zero
// unless new deposits arrived in between. A zero payout is still a success.
func (s *Shrine) Claim(ctx context.Context, caller common.Address, req ClaimRequest) (*uint256.Int, error) {
	ledger, err := s.store.LedgerOfVersion(req.Version)
	if err != nil {
		return nil, err
	}

	recipient, err := s.authorizeChampionAction(caller, req.Champion)
	if err != nil {
		return nil, err
	}

	leaf := merkle.LeafHash(common.Address(req.Champion), req.Shares)
	if !merkle.VerifyProof(leaf, req.Proof, ledger.MerkleRoot) {
		return nil, fmt.Errorf("%w: champion %s with %d shares against version %d", ErrInvalidProof, req.Champion, req.Shares, req.Version)
	}

	claimable, err := s.claimableNow(req, ledger)
	if err != nil {
		return nil, err
	}

	if err := s.settleClaim(ctx, req.Version, req.Token, req.Champion, recipient, claimable); err != nil {
		return nil, err
	}
	return claimable, nil
}

// ClaimMultiple settles claims independently, in order. On failure it
// returns the amounts of the claims settled so far together with the error;
// settled claims stay settled.
func (s *Shrine) ClaimMultiple(ctx context.Context, caller common.Address, reqs []ClaimRequest) ([]*uint256.Int, error) {
	amounts := make([]*uint256.Int, 0, len(reqs))
	for i, req := range reqs {
		amount, err := s.Claim(ctx, caller, req)
		if err != nil {
			return amounts, fmt.Errorf("claim[%d]: %w", i, err)
		}
		amounts = append(amounts, amount)
	}
	return amounts, nil
}

// ClaimMultipleTokensForChampion settles one champion's claims for several
// tokens under a single version, verifying the membership proof once. On
// failure it returns the amounts settled so far together with the error.
func (s *Shrine) ClaimMultipleTokensForChampion(ctx context.Context, caller common.Address, v Version, tokens []Token, c Champion, shares uint64, proof []common.Hash) ([]*uint256.Int, error) {
	ledger, err := s.store.LedgerOfVersion(v)
	if err != nil {
		return nil, err
	}

	recipient, err := s.authorizeChampionAction(caller, c)
	if err != nil {
		return nil, err
	}

	leaf := merkle.LeafHash(common.Address(c), shares)
	if !merkle.VerifyProof(leaf, proof, ledger.MerkleRoot) {
		return nil, fmt.Errorf("%w: champion %s with %d shares against version %d", ErrInvalidProof, c, shares, v)
	}

	amounts := make([]*uint256.Int, 0, len(tokens))
	for i, token := range tokens {
		claimable, err := s.claimableNow(ClaimRequest{Version: v, Token: token, Champion: c, Shares: shares}, ledger)
		if err != nil {
			return amounts, fmt.Errorf("token[%d]: %w", i, err)
		}
		if err := s.settleClaim(ctx, v, token, c, recipient, claimable); err != nil {
			return amounts, fmt.Errorf("token[%d]: %w", i, err)
		}
		amounts = append(amounts, claimable)
	}
	return amounts, nil
}

// claimableNow reads the pool state and computes the champion's unclaimed
// cut for one (version, token).
func (s *Shrine) claimableNow(req ClaimRequest, ledger Ledger) (*uint256.Int, error) {
	offered, err := s.store.Offered(req.Version, req.Token)
	if err != nil {
		return nil, err
	}
	claimed, err := s.store.Claimed(req.Version, req.Token, req.Champion)
	if err != nil {
		return nil, err
	}
	return computeClaimable(offered, req.Shares, ledger.TotalShares, claimed)
}

// settleClaim credits the payout to the champion's claimed total, pushes the
// tokens to the recipient, and records the claim. The credit is rolled back
// if the transfer fails.
func (s *Shrine) settleClaim(ctx context.Context, v Version, token Token, c Champion, recipient common.Address, amount *uint256.Int) error {
	if _, err := s.store.AddClaimed(v, token, c, amount); err != nil {
		return err
	}

	if err := s.engine.Push(ctx, token, s.addr, recipient, amount); err != nil {
		if rbErr := s.store.RollbackClaimed(v, token, c, amount); rbErr != nil {
			s.log.Error("claim rollback failed, accounting diverged from balances",
				zap.Uint64("version", uint64(v)),
				zap.String("token", token.String()),
				zap.String("champion", c.String()),
				zap.String("amount", amount.Dec()),
				zap.Error(rbErr))
			return fmt.Errorf("%w: %w (rollback also failed: %v)", ErrTransferFailed, err, rbErr)
		}
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	s.log.Debug("claim settled",
		zap.Uint64("version", uint64(v)),
		zap.String("token", token.String()),
		zap.String("champion", c.String()),
		zap.String("recipient", recipient.Hex()),
		zap.String("amount", amount.Dec()))
	s.record(RecordClaimed{
		Shrine:   s.addr,
		Version:  v,
		Token:    token,
		Champion: c,
		Amount:   *amount,
	})
	return nil
}
