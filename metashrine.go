package shrine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Claimer is the slice of a shrine's surface the recursive composer needs
// from an upstream shrine. *Shrine satisfies it, so shrines compose
// directly; any other distribution source with compatible claim semantics
// can stand in.
type Claimer interface {
	// Address identifies the upstream shrine to the engine and the journal.
	Address() common.Address

	// Claim settles a claim on behalf of caller and returns the amount paid.
	Claim(ctx context.Context, caller common.Address, req ClaimRequest) (*uint256.Int, error)
}

// Compile-time check: a shrine can be the upstream of another shrine.
var _ Claimer = (*Shrine)(nil)

// ClaimFromMetaShrine claims this shrine's cut as a champion of upstream and
// credits the proceeds as a deposit to the local current version, making
// them claimable by this shrine's own champions. Anyone may trigger it; the
// proceeds never leave the shrine's custody.
//
// The credited amount is the shrine's balance delta across the upstream
// claim, not the amount the upstream reports, so fee-taking or short-paying
// upstreams credit exactly what arrived. Returns the credited amount.
//
// The call holds the reentrancy barrier for its whole duration: it mutates
// local deposits after an external call, which is the one ordering the
// barrier exists to protect.
func (s *Shrine) ClaimFromMetaShrine(ctx context.Context, upstream Claimer, upstreamVersion Version, token Token, shares uint64, proof []common.Hash) (*uint256.Int, error) {
	if upstream == nil {
		return nil, ErrNilUpstream
	}
	if err := s.guard.enter(); err != nil {
		return nil, err
	}
	defer s.guard.exit()

	v, err := s.creditableVersion()
	if err != nil {
		return nil, err
	}

	credited, err := s.claimUpstream(ctx, upstream, upstreamVersion, v, token, shares, proof)
	if err != nil {
		return nil, err
	}

	s.record(RecordMetaShrineClaimed{
		Shrine:   s.addr,
		Upstream: upstream.Address(),
		Version:  v,
		Tokens:   []Token{token},
		Amounts:  []uint256.Int{*credited},
	})
	return credited, nil
}

// ClaimMultipleFromMetaShrine runs the composed claim for several tokens
// under one upstream version and membership proof, then emits a single
// aggregate record for the batch. Tokens are processed independently, in
// order; on failure it returns the amounts credited so far together with
// the error, and the aggregate record is not emitted. Per-token deposit
// records are emitted as each token settles.
func (s *Shrine) ClaimMultipleFromMetaShrine(ctx context.Context, upstream Claimer, upstreamVersion Version, tokens []Token, shares uint64, proof []common.Hash) ([]*uint256.Int, error) {
	if upstream == nil {
		return nil, ErrNilUpstream
	}
	if err := s.guard.enter(); err != nil {
		return nil, err
	}
	defer s.guard.exit()

	v, err := s.creditableVersion()
	if err != nil {
		return nil, err
	}

	amounts := make([]*uint256.Int, 0, len(tokens))
	for i, token := range tokens {
		credited, err := s.claimUpstream(ctx, upstream, upstreamVersion, v, token, shares, proof)
		if err != nil {
			return amounts, fmt.Errorf("token[%d]: %w", i, err)
		}
		amounts = append(amounts, credited)
	}

	recorded := make([]uint256.Int, len(amounts))
	for i, a := range amounts {
		recorded[i] = *a
	}
	s.record(RecordMetaShrineClaimed{
		Shrine:   s.addr,
		Upstream: upstream.Address(),
		Version:  v,
		Tokens:   append([]Token(nil), tokens...),
		Amounts:  recorded,
	})
	return amounts, nil
}

// creditableVersion returns the version upstream proceeds are credited to,
// pinned once per composed call before any external interaction.
func (s *Shrine) creditableVersion() (Version, error) {
	v, err := s.store.CurrentVersion()
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, ErrNotInitialized
	}
	return v, nil
}

// claimUpstream performs one composed claim leg: measure balance, claim
// from the upstream with this shrine as the champion, measure again, and
// credit the delta to version v. Returns the credited amount.
func (s *Shrine) claimUpstream(ctx context.Context, upstream Claimer, upstreamVersion, v Version, token Token, shares uint64, proof []common.Hash) (*uint256.Int, error) {
	before, err := s.engine.BalanceOf(ctx, token, s.addr)
	if err != nil {
		return nil, err
	}

	_, err = upstream.Claim(ctx, s.addr, ClaimRequest{
		Version:  upstreamVersion,
		Token:    token,
		Champion: Champion(s.addr),
		Shares:   shares,
		Proof:    proof,
	})
	if err != nil {
		return nil, fmt.Errorf("upstream claim: %w", err)
	}

	// Past this point the upstream claim is settled and cannot be undone,
	// so failures leave arrived tokens uncredited. Log loudly; the journal
	// and engine balances are what an operator reconciles against.
	after, err := s.engine.BalanceOf(ctx, token, s.addr)
	if err != nil {
		s.log.Error("balance check failed after upstream claim, proceeds uncredited",
			zap.String("upstream", upstream.Address().Hex()),
			zap.String("token", token.String()),
			zap.Error(err))
		return nil, err
	}

	credited, underflow := subAmount(after, before)
	if underflow {
		return nil, fmt.Errorf("%w: balance decreased during upstream claim", ErrTransferFailed)
	}

	if _, err := s.store.AddOffered(v, token, credited); err != nil {
		s.log.Error("deposit credit failed after upstream claim, proceeds uncredited",
			zap.String("upstream", upstream.Address().Hex()),
			zap.String("token", token.String()),
			zap.String("amount", credited.Dec()),
			zap.Error(err))
		return nil, err
	}

	s.log.Debug("upstream claim credited",
		zap.String("upstream", upstream.Address().Hex()),
		zap.Uint64("version", uint64(v)),
		zap.String("token", token.String()),
		zap.String("amount", credited.Dec()))
	s.record(RecordOffered{
		Shrine:  s.addr,
		Sender:  upstream.Address(),
		Version: v,
		Token:   token,
		Amount:  *credited,
	})
	return credited, nil
}
