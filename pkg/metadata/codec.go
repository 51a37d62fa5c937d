package metadata

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ============================================================================
// Snapshot Codec
// ============================================================================

// Codec serializes records and listings for persistence. The only contract
// is determinism and losslessness: encoding the same value must always
// produce identical bytes (backends may rely on that for caching and
// deduplication), and a decode of an encode must reproduce the value
// exactly. The wire format itself is an implementation detail.
type Codec interface {
	// EncodeListing serializes one directory snapshot.
	EncodeListing(listing DirectoryListing) ([]byte, error)

	// DecodeListing reconstructs a snapshot. The listing's Version field
	// is derived state and is left empty; the caller sets it from the
	// chain position the bytes were fetched at.
	DecodeListing(data []byte) (DirectoryListing, error)

	// EncodeRecord serializes one file record.
	EncodeRecord(record FileRecord) ([]byte, error)

	// DecodeRecord reconstructs a file record.
	DecodeRecord(data []byte) (FileRecord, error)
}

// cborCodec implements Codec with canonical CBOR.
//
// Canonical options (sorted map keys, definite lengths, nanosecond time
// strings) guarantee the determinism the Codec contract requires: the same
// listing always serializes to the same bytes regardless of map iteration
// order. Decode limits bound container sizes so a corrupted snapshot cannot
// exhaust memory through a malicious header.
type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBORCodec creates the default snapshot codec.
func NewCBORCodec() (Codec, error) {
	enc, err := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		ShortestFloat: cbor.ShortestFloatNone,
		Time:          cbor.TimeRFC3339Nano,
		TimeTag:       cbor.EncTagNone,
		IndefLength:   cbor.IndefLengthForbidden,
	}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to build CBOR encode mode: %w", err)
	}

	dec, err := cbor.DecOptions{
		MaxArrayElements: 1 << 20,
		MaxMapPairs:      1 << 20,
		MaxNestedLevels:  32,
		IndefLength:      cbor.IndefLengthForbidden,
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("failed to build CBOR decode mode: %w", err)
	}

	return &cborCodec{enc: enc, dec: dec}, nil
}

// MustCBORCodec is NewCBORCodec for static initialization; the options are
// constants, so a failure is a programming error.
func MustCBORCodec() Codec {
	codec, err := NewCBORCodec()
	if err != nil {
		panic(err)
	}
	return codec
}

func (c *cborCodec) EncodeListing(listing DirectoryListing) ([]byte, error) {
	data, err := c.enc.Marshal(listing)
	if err != nil {
		return nil, WrapStorageFailure("failed to serialize directory listing", err)
	}
	return data, nil
}

func (c *cborCodec) DecodeListing(data []byte) (DirectoryListing, error) {
	var listing DirectoryListing
	if err := c.dec.Unmarshal(data, &listing); err != nil {
		return DirectoryListing{}, WrapStorageFailure("failed to deserialize directory listing", err)
	}
	if listing.Files == nil {
		listing.Files = make(map[string]FileRecord)
	}
	if listing.Subdirectories == nil {
		listing.Subdirectories = make(map[DirectoryID]ChildRef)
	}
	return listing, nil
}

func (c *cborCodec) EncodeRecord(record FileRecord) ([]byte, error) {
	data, err := c.enc.Marshal(record)
	if err != nil {
		return nil, WrapStorageFailure("failed to serialize file record", err)
	}
	return data, nil
}

func (c *cborCodec) DecodeRecord(data []byte) (FileRecord, error) {
	var record FileRecord
	if err := c.dec.Unmarshal(data, &record); err != nil {
		return FileRecord{}, WrapStorageFailure("failed to deserialize file record", err)
	}
	return record, nil
}
