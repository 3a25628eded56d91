// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkleref

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/luxfi/vectorchan/shape"
	"github.com/luxfi/vectorchan/vterrors"
)

// refMagic is the four-byte ASCII magic at the start of a .mref footer.
const refMagic = "MREF"

// refVersion is the only footer version this package writes or accepts.
const refVersion uint16 = 1

// footerFixedLen is the length, in bytes, of the fixed-size footer fields
// that precede footerChecksum: magic(4) + version(2) + chunkSize(8) +
// totalContentSize(8) + leafCount(8) + nodeCount(8).
const footerFixedLen = 4 + 2 + 8 + 8 + 8 + 8

// footerLen is the total footer length: fixed fields + checksum(32).
const footerLen = footerFixedLen + HashSize

// Save writes the reference to path atomically (temp file + rename), per
// spec.md §4.2 and the on-disk layout in spec.md §6.1:
//
//	[0, fileSize-footerLen)   hash array, N entries of 32 bytes, heap order
//	[fileSize-footerLen, -1)  footer (magic, version, geometry, checksum)
//	[fileSize-1, fileSize)    footerLength (u8)
func (r *Reference) Save(path string) error {
	footer, err := buildFooter(r.shape)
	if err != nil {
		return err
	}

	buf := new(bytes.Buffer)
	for _, h := range r.hashes {
		buf.Write(h[:])
	}
	buf.Write(footer)
	buf.WriteByte(byte(footerLen))

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".mref-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", vterrors.ErrCorruptReference, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // no-op once renamed

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing temp file: %v", vterrors.ErrCorruptReference, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: syncing temp file: %v", vterrors.ErrCorruptReference, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file: %v", vterrors.ErrCorruptReference, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: renaming into place: %v", vterrors.ErrCorruptReference, err)
	}
	return nil
}

// buildFooter serializes the geometry footer (without the trailing length
// byte) and appends its checksum.
func buildFooter(sh shape.Shape) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteString(refMagic)
	writeU16(buf, refVersion)
	writeU64(buf, sh.ChunkSize())
	writeU64(buf, sh.TotalSize())
	writeU64(buf, sh.LeafCount())
	writeU64(buf, sh.NodeCount())

	sum := sha256.Sum256(buf.Bytes())
	buf.Write(sum[:])
	if buf.Len() != footerLen {
		return nil, fmt.Errorf("%w: internal footer length mismatch", vterrors.ErrCorruptReference)
	}
	return buf.Bytes(), nil
}

// Load reads and validates a .mref file: checks magic, version, and
// footer checksum, then reconstructs the Reference. Any mismatch fails
// with vterrors.ErrCorruptReference.
func Load(path string) (*Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", vterrors.ErrCorruptReference, path, err)
	}
	if len(data) < footerLen+1 {
		return nil, fmt.Errorf("%w: file too short", vterrors.ErrCorruptReference)
	}

	declaredFooterLen := int(data[len(data)-1])
	if declaredFooterLen != footerLen {
		return nil, fmt.Errorf("%w: unexpected footer length %d", vterrors.ErrCorruptReference, declaredFooterLen)
	}

	footerStart := len(data) - 1 - footerLen
	if footerStart < 0 {
		return nil, fmt.Errorf("%w: footer does not fit in file", vterrors.ErrCorruptReference)
	}
	footer := data[footerStart : len(data)-1]

	magic := string(footer[0:4])
	if magic != refMagic {
		return nil, fmt.Errorf("%w: bad magic %q", vterrors.ErrCorruptReference, magic)
	}
	version := binary.LittleEndian.Uint16(footer[4:6])
	if version != refVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", vterrors.ErrCorruptReference, version)
	}
	chunkSize := binary.LittleEndian.Uint64(footer[6:14])
	totalSize := binary.LittleEndian.Uint64(footer[14:22])
	leafCount := binary.LittleEndian.Uint64(footer[22:30])
	nodeCount := binary.LittleEndian.Uint64(footer[30:38])
	checksum := footer[38 : 38+HashSize]

	gotSum := sha256.Sum256(footer[:footerFixedLen])
	if !bytes.Equal(gotSum[:], checksum) {
		return nil, fmt.Errorf("%w: footer checksum mismatch", vterrors.ErrCorruptReference)
	}

	sh, err := shape.New(totalSize, chunkSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vterrors.ErrCorruptReference, err)
	}
	if sh.LeafCount() != leafCount || sh.NodeCount() != nodeCount {
		return nil, fmt.Errorf("%w: geometry mismatch in footer", vterrors.ErrCorruptReference)
	}

	hashArea := data[:footerStart]
	if uint64(len(hashArea)) != nodeCount*HashSize {
		return nil, fmt.Errorf("%w: hash array size mismatch", vterrors.ErrCorruptReference)
	}
	hashes := make([][HashSize]byte, nodeCount)
	for i := range hashes {
		copy(hashes[i][:], hashArea[i*HashSize:(i+1)*HashSize])
	}

	return &Reference{shape: sh, hashes: hashes}, nil
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
