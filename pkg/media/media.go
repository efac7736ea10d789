// Package media defines the core identity and decoration types shared by
// every index, the scanner, the processor and the query engine.
package media

import "fmt"

// Type is the media kind stored in the index.
type Type int

// Supported media types.
const (
	TypeImage Type = 1
	TypeVideo Type = 2
	TypeAudio Type = 4
)

func (t Type) String() string {
	switch t {
	case TypeImage:
		return "image"
	case TypeVideo:
		return "video"
	case TypeAudio:
		return "audio"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// MatchFlags is a bitset describing how a result relates to its needle.
type MatchFlags uint32

// Flags set on query results, combinable.
const (
	FlagExactDigest    MatchFlags = 1 << iota // identical content digest
	FlagBiggerDims                            // result has more pixels than the needle
	FlagBiggerFile                            // result file is larger on disk
	FlagLessCompressed                        // result appears to be less compressed
)

// MatchRange describes an aligned segment between a needle and a result,
// e.g. a frame window for partial video matches. For image matches len==1.
type MatchRange struct {
	SrcIn int // start offset in the needle (for DCTVideoIndex.FindFrames, a position in the needle's hash list)
	DstIn int // start offset (frame number) in the candidate
	Len   int // length of the aligned segment
}

// ID uniquely identifies a Media record. Zero means "not in the store".
type ID uint32

// Valid reports whether the id refers to a stored record.
func (id ID) Valid() bool { return id != 0 }

// Digest is a 128-bit MD5 content checksum.
type Digest [16]byte

func (d Digest) String() string {
	return fmt.Sprintf("%x", [16]byte(d))
}

// IsZero reports an unset digest.
func (d Digest) IsZero() bool { return d == Digest{} }

// Media is the value-typed record for one indexed file. The identity
// fields (ID, Type, Path, Digest, Width, Height, DCTHash) are immutable
// once assigned by the store; the remaining fields are decoration applied
// during a query and are safe to overwrite on a copy.
type Media struct {
	ID      ID
	Type    Type
	Path    string // relative to the managed root, unique
	Digest  Digest
	Width   int
	Height  int
	DCTHash uint64

	// KeypointHashes holds one 64-bit DCT hash per detected feature,
	// consumed by the D2 backend (§4.D2). Feature pixel positions are
	// discarded after hashing; only the hash values are retained.
	KeypointHashes KeypointHashes `json:",omitempty"`

	// Mutable / query-time decoration.
	Score      int
	MatchRange MatchRange
	MatchFlags MatchFlags
	Attributes map[string]string
	IsWeed     bool
	Position   int

	// Transient, owned by the caller's query scope. Never persisted.
	ImageBytes []byte `json:"-"`
	Pixels     []byte `json:"-"` // decompressed, grayscale-or-RGB per processor convention
}

// Clone returns a value copy with its own Attributes map, since Media is
// documented as freely copyable but map fields alias by default.
func (m Media) Clone() Media {
	out := m
	if m.Attributes != nil {
		out.Attributes = make(map[string]string, len(m.Attributes))
		for k, v := range m.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

// InStore reports the invariant `mediaid == 0 <=> not in store`.
func (m Media) InStore() bool { return m.ID.Valid() }

// KeypointHashes is a vector of 64-bit DCT hashes, one per detected
// feature. Feature pixel positions are discarded after hashing; only the
// hash values are retained (§4.A/§4.D2).
type KeypointHashes []uint64

// Group is an ordered set of Media sharing some relationship (a query
// result cluster, or a pending batch of scanner output).
type Group []Media

// Paths returns the group's paths in order, used to canonicalize groups
// for permutation-insensitive comparisons (§4.I filter_groups).
func (g Group) Paths() []string {
	out := make([]string, len(g))
	for i, m := range g {
		out[i] = m.Path
	}
	return out
}

// IDs returns the group's media ids in order.
func (g Group) IDs() []ID {
	out := make([]ID, len(g))
	for i, m := range g {
		out[i] = m.ID
	}
	return out
}
