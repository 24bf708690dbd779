package shrine

import "sync/atomic"

// reentrancyGuard rejects nested or concurrent entry into the meta-shrine
// composer. Offer and Claim do not take the guard; their state mutations
// complete before any external engine call, so re-entering them cannot
// observe stale accounting. The composer calls back into an upstream shrine
// mid-operation, which is exactly the shape the guard exists to fence.
type reentrancyGuard struct {
	locked atomic.Bool
}

func (g *reentrancyGuard) enter() error {
	if !g.locked.CompareAndSwap(false, true) {
		return ErrReentrancy
	}
	return nil
}

func (g *reentrancyGuard) exit() {
	g.locked.Store(false)
}
