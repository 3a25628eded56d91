// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mstate

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bits-and-blooms/bitset"

	"github.com/luxfi/vectorchan/merkleref"
	"github.com/luxfi/vectorchan/shape"
	"github.com/luxfi/vectorchan/vterrors"
)

// stateMagic is the four-byte ASCII magic at the start of a .mrkl footer.
const stateMagic = "MRKL"

const stateVersion uint16 = 1

// stateFooterFixedLen mirrors merkleref's footer fields plus the
// validChunkCount summary field (spec.md §6.2).
const stateFooterFixedLen = 4 + 2 + 8 + 8 + 8 + 8 + 8

const stateFooterLen = stateFooterFixedLen + merkleref.HashSize

// save writes the state's hash array, bitmap, and footer to s.path
// atomically (temp file + rename), per spec.md §6.2.
func save(s *State) error {
	bitmapBytes := bitmapToBytes(s.valid, s.shape.LeafCount())

	footer, err := buildStateFooter(s.shape, uint64(s.valid.Count()))
	if err != nil {
		return err
	}

	buf := new(bytes.Buffer)
	for _, h := range s.hashes {
		buf.Write(h[:])
	}
	buf.Write(bitmapBytes)
	buf.Write(footer)
	buf.WriteByte(byte(stateFooterLen))

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".mrkl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // no-op once renamed

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	return os.Rename(tmpPath, s.path)
}

func buildStateFooter(sh shape.Shape, validCount uint64) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteString(stateMagic)
	writeU16(buf, stateVersion)
	writeU64(buf, sh.ChunkSize())
	writeU64(buf, sh.TotalSize())
	writeU64(buf, sh.LeafCount())
	writeU64(buf, sh.NodeCount())
	writeU64(buf, validCount)

	sum := sha256.Sum256(buf.Bytes())
	buf.Write(sum[:])
	if buf.Len() != stateFooterLen {
		return nil, fmt.Errorf("internal footer length mismatch")
	}
	return buf.Bytes(), nil
}

func load(path string, ref *merkleref.Reference) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", vterrors.ErrCorruptState, path, err)
	}
	if len(data) < stateFooterLen+1 {
		return nil, fmt.Errorf("%w: file too short", vterrors.ErrCorruptState)
	}

	declaredFooterLen := int(data[len(data)-1])
	if declaredFooterLen != stateFooterLen {
		return nil, fmt.Errorf("%w: unexpected footer length %d", vterrors.ErrCorruptState, declaredFooterLen)
	}
	footerStart := len(data) - 1 - stateFooterLen
	if footerStart < 0 {
		return nil, fmt.Errorf("%w: footer does not fit in file", vterrors.ErrCorruptState)
	}
	footer := data[footerStart : len(data)-1]

	magic := string(footer[0:4])
	if magic != stateMagic {
		return nil, fmt.Errorf("%w: bad magic %q", vterrors.ErrCorruptState, magic)
	}
	version := binary.LittleEndian.Uint16(footer[4:6])
	if version != stateVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", vterrors.ErrCorruptState, version)
	}
	chunkSize := binary.LittleEndian.Uint64(footer[6:14])
	totalSize := binary.LittleEndian.Uint64(footer[14:22])
	leafCount := binary.LittleEndian.Uint64(footer[22:30])
	nodeCount := binary.LittleEndian.Uint64(footer[30:38])
	checksum := footer[46 : 46+merkleref.HashSize]

	gotSum := sha256.Sum256(footer[:stateFooterFixedLen])
	if !bytes.Equal(gotSum[:], checksum) {
		return nil, fmt.Errorf("%w: footer checksum mismatch", vterrors.ErrCorruptState)
	}

	sh, err := shape.New(totalSize, chunkSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vterrors.ErrCorruptState, err)
	}
	if sh.LeafCount() != leafCount || sh.NodeCount() != nodeCount {
		return nil, fmt.Errorf("%w: geometry mismatch in footer", vterrors.ErrCorruptState)
	}
	if ref != nil {
		refShape := ref.Shape()
		if refShape.LeafCount() != leafCount || refShape.ChunkSize() != chunkSize {
			return nil, fmt.Errorf("%w: state shape does not match reference shape", vterrors.ErrShapeMismatch)
		}
	}

	bitmapLen := (leafCount + 7) / 8
	hashAreaLen := nodeCount * merkleref.HashSize
	if uint64(footerStart) != hashAreaLen+bitmapLen {
		return nil, fmt.Errorf("%w: hash/bitmap area size mismatch", vterrors.ErrCorruptState)
	}

	hashArea := data[:hashAreaLen]
	hashes := make([][merkleref.HashSize]byte, nodeCount)
	for i := range hashes {
		copy(hashes[i][:], hashArea[i*merkleref.HashSize:(i+1)*merkleref.HashSize])
	}

	bitmapArea := data[hashAreaLen : hashAreaLen+bitmapLen]
	valid := bytesToBitmap(bitmapArea, leafCount)

	return &State{
		shape:  sh,
		ref:    ref,
		valid:  valid,
		hashes: hashes,
		path:   path,
	}, nil
}

// bitmapToBytes serializes a BitSet into the little-endian-within-byte
// layout spec.md §6.2 mandates: bit b of byte floor(k/8) represents
// chunk k, so chunk 0 is the LSB of byte 0.
func bitmapToBytes(b *bitset.BitSet, leafCount uint64) []byte {
	out := make([]byte, (leafCount+7)/8)
	for k := uint64(0); k < leafCount; k++ {
		if b.Test(uint(k)) {
			out[k/8] |= 1 << (k % 8)
		}
	}
	return out
}

func bytesToBitmap(data []byte, leafCount uint64) *bitset.BitSet {
	b := bitset.New(uint(leafCount))
	for k := uint64(0); k < leafCount; k++ {
		if data[k/8]&(1<<(k%8)) != 0 {
			b.Set(uint(k))
		}
	}
	return b
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
