// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package records

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// ArchiveVersion is the archive format written by this package.
const ArchiveVersion = 1

// ErrArchiveVersion is returned for archives written by a newer format.
var ErrArchiveVersion = errors.New("unsupported archive version")

// Archive is the on-disk form of downloaded transfer lists. Records are
// kept as their wire payload plus layout, so nothing is lost between
// download and a later upload.
type Archive struct {
	Version      int             `cbor:"0,keyasint"`
	Created      int64           `cbor:"1,keyasint"`
	Product      *ArchiveProduct `cbor:"2,keyasint,omitempty"`
	Capabilities []uint16        `cbor:"3,keyasint"`
	Lists        []ArchiveList   `cbor:"4,keyasint"`
}

// ArchiveProduct identifies the unit an archive was read from.
type ArchiveProduct struct {
	ID          uint16 `cbor:"0,keyasint"`
	Version     uint16 `cbor:"1,keyasint"`
	Description string `cbor:"2,keyasint"`
}

// ArchiveList is one transfer list.
type ArchiveList struct {
	Kind  uint16        `cbor:"0,keyasint"`
	Items []ArchiveItem `cbor:"1,keyasint"`
}

// ArchiveItem is one record in wire form.
type ArchiveItem struct {
	ID   uint8  `cbor:"0,keyasint"`
	Type uint16 `cbor:"1,keyasint"`
	Data []byte `cbor:"2,keyasint"`
}

// NewArchive packs transfer lists. Product may be nil.
func NewArchive(product *Product, caps Capabilities, lists ...*TransferList) *Archive {
	a := &Archive{
		Version: ArchiveVersion,
		Created: time.Now().Unix(),
	}
	if product != nil {
		a.Product = &ArchiveProduct{
			ID:          product.ID,
			Version:     product.Version,
			Description: product.Description,
		}
	}
	for _, s := range Slots {
		a.Capabilities = append(a.Capabilities, uint16(caps.Get(s)))
	}

	for _, l := range lists {
		al := ArchiveList{Kind: uint16(l.Kind)}
		for _, item := range l.Items {
			al.Items = append(al.Items, ArchiveItem{
				ID:   item.ID,
				Type: uint16(item.Record.DataType()),
				Data: Marshal(item.Record),
			})
		}
		a.Lists = append(a.Lists, al)
	}
	return a
}

// CapabilitySet returns the capability set stored in the archive
func (a *Archive) CapabilitySet() Capabilities {
	caps := DefaultCapabilities()
	for i, s := range Slots {
		if i < len(a.Capabilities) && a.Capabilities[i] != 0 {
			caps.Set(s, DataType(a.Capabilities[i]))
		}
	}
	return caps
}

// TransferLists decodes the stored lists. Items of unknown layout come
// back as Raw records.
func (a *Archive) TransferLists() ([]*TransferList, error) {
	lists := make([]*TransferList, 0, len(a.Lists))
	for i, al := range a.Lists {
		l := NewTransferList(Command(al.Kind))
		for j, item := range al.Items {
			rec, err := DecodeAs(item.ID, DataType(item.Type), item.Data)
			if err != nil && !errors.Is(err, ErrUnknownVariant) {
				return nil, fmt.Errorf("list %d item %d: %w", i, j, err)
			}
			l.Add(item.ID, rec)
		}
		l.Expected = l.Len()
		lists = append(lists, l)
	}
	return lists, nil
}

// WriteArchive encodes a as CBOR
func WriteArchive(w io.Writer, a *Archive) error {
	if err := cbor.NewEncoder(w).Encode(a); err != nil {
		return fmt.Errorf("failed to encode archive: %w", err)
	}
	return nil
}

// ReadArchive decodes a CBOR archive
func ReadArchive(r io.Reader) (*Archive, error) {
	var a Archive
	if err := cbor.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("failed to decode archive: %w", err)
	}
	if a.Version > ArchiveVersion {
		return nil, fmt.Errorf("%w: %d", ErrArchiveVersion, a.Version)
	}
	return &a, nil
}
