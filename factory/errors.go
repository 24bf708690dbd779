package factory

import "errors"

var (
	// ErrUnnamedBlueprint indicates a blueprint without a name; the name
	// anchors deterministic address derivation.
	ErrUnnamedBlueprint = errors.New("factory: blueprint needs a name")

	// ErrNilStoreBuilder indicates a blueprint without a store constructor.
	ErrNilStoreBuilder = errors.New("factory: blueprint needs a store builder")

	// ErrAddressTaken indicates the derived address already hosts an
	// instance.
	ErrAddressTaken = errors.New("factory: address already taken")
)
