package shrine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// RecordKind discriminates journal records.
type RecordKind string

const (
	KindLedgerUpdated         RecordKind = "ledger_updated"
	KindMetadataUpdated       RecordKind = "metadata_updated"
	KindOffered               RecordKind = "offered"
	KindClaimed               RecordKind = "claimed"
	KindClaimRightTransferred RecordKind = "claim_right_transferred"
	KindMetaShrineClaimed     RecordKind = "meta_shrine_claimed"
)

// Record is one entry in a shrine's journal. Records are emitted only after
// the operation they describe has fully succeeded, external transfer
// included. Amounts are carried by value so records stay valid snapshots
// however long they are retained.
type Record interface {
	Kind() RecordKind
}

// RecordLedgerUpdated notes a successful Initialize or UpdateLedger.
type RecordLedgerUpdated struct {
	Shrine  common.Address
	Version Version
	Ledger  Ledger
}

func (RecordLedgerUpdated) Kind() RecordKind { return KindLedgerUpdated }

// RecordMetadataUpdated notes a metadata pointer announcement for a version.
// The pointer itself is never part of shrine state.
type RecordMetadataUpdated struct {
	Shrine   common.Address
	Version  Version
	Metadata string
}

func (RecordMetadataUpdated) Kind() RecordKind { return KindMetadataUpdated }

// RecordOffered notes a deposit credited to the current version.
type RecordOffered struct {
	Shrine  common.Address
	Sender  common.Address
	Version Version
	Token   Token
	Amount  uint256.Int
}

func (RecordOffered) Kind() RecordKind { return KindOffered }

// RecordClaimed notes a settled claim. Amount may be zero when the champion
// was already paid in full for the version.
type RecordClaimed struct {
	Shrine   common.Address
	Version  Version
	Token    Token
	Champion Champion
	Amount   uint256.Int
}

func (RecordClaimed) Kind() RecordKind { return KindClaimed }

// RecordClaimRightTransferred notes a champion handing its claim right to
// another account, or resetting it with the zero address.
type RecordClaimRightTransferred struct {
	Shrine   common.Address
	Champion Champion
	Owner    common.Address
}

func (RecordClaimRightTransferred) Kind() RecordKind { return KindClaimRightTransferred }

// RecordMetaShrineClaimed notes a composed claim: tokens pulled out of an
// upstream shrine where this shrine is itself a champion, then offered to
// the local current version. A batch composition emits a single record with
// one entry per token.
type RecordMetaShrineClaimed struct {
	Shrine   common.Address
	Upstream common.Address
	Version  Version
	Tokens   []Token
	Amounts  []uint256.Int
}

func (RecordMetaShrineClaimed) Kind() RecordKind { return KindMetaShrineClaimed }

// Recorder receives records as operations settle. Implementations must be
// safe for concurrent use. A failed Record never rolls back the operation
// that produced it; the shrine logs and moves on.
type Recorder interface {
	Record(r Record) error
}

// NopRecorder discards all records.
type NopRecorder struct{}

func (NopRecorder) Record(Record) error { return nil }
