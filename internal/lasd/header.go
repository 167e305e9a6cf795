package lasd

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/lasfoot/internal/fsutil"
)

// ErrNotLAS reports that a file is not a LAS point-cloud file.
var ErrNotLAS = errors.New("not a LAS point-cloud file")

// Header holds the fields of the LAS public header block the pipeline cares
// about: version, point count, XY extent and the optional WKT coordinate
// system carried in a LASF_Projection VLR. Everything else is skipped.
type Header struct {
	VersionMajor uint8
	VersionMinor uint8
	PointCount   uint64
	MinX, MaxX   float64
	MinY, MaxY   float64
	MinZ, MaxZ   float64
	WKT          string
}

const (
	lasMagic         = "LASF"
	minHeaderSize    = 227 // LAS 1.0-1.3 public header block
	las14HeaderSize  = 375
	vlrHeaderSize    = 54
	maxVLRPayload    = 1 << 20
	wktProjectionVLR = 2112 // OGC coordinate system WKT record
)

// readHeader parses the public header block of one LAS/LAZ file and probes
// its variable-length records for a WKT coordinate system. LAZ files keep the
// LAS header layout, so the same parse applies.
func readHeader(fsys fsutil.FileSystem, path string) (*Header, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, minHeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	if string(buf[0:4]) != lasMagic {
		return nil, fmt.Errorf("%s: bad file signature: %w", path, ErrNotLAS)
	}

	le := binary.LittleEndian
	h := &Header{
		VersionMajor: buf[24],
		VersionMinor: buf[25],
	}

	headerSize := int(le.Uint16(buf[94:96]))
	vlrCount := le.Uint32(buf[100:104])
	h.PointCount = uint64(le.Uint32(buf[107:111])) // legacy count

	h.MaxX = math.Float64frombits(le.Uint64(buf[179:187]))
	h.MinX = math.Float64frombits(le.Uint64(buf[187:195]))
	h.MaxY = math.Float64frombits(le.Uint64(buf[195:203]))
	h.MinY = math.Float64frombits(le.Uint64(buf[203:211]))
	h.MaxZ = math.Float64frombits(le.Uint64(buf[211:219]))
	h.MinZ = math.Float64frombits(le.Uint64(buf[219:227]))

	// LAS 1.4 moved the authoritative point count past the legacy field.
	if headerSize > minHeaderSize {
		rest := make([]byte, headerSize-minHeaderSize)
		if _, err := io.ReadFull(f, rest); err != nil {
			return nil, fmt.Errorf("read extended header of %s: %w", path, err)
		}
		if h.VersionMajor == 1 && h.VersionMinor >= 4 && headerSize >= las14HeaderSize {
			// Offset 247 in the full header; 20 bytes into the extension.
			if ext := le.Uint64(rest[20:28]); ext != 0 {
				h.PointCount = ext
			}
		}
	}

	if err := readWKT(f, vlrCount, h); err != nil {
		// The coordinate system record is optional; a truncated VLR block
		// leaves h.WKT empty rather than failing the whole header read.
		return h, nil
	}
	return h, nil
}

// readWKT scans the VLR block immediately following the header for an OGC
// WKT coordinate system record (user LASF_Projection, record 2112).
func readWKT(r io.Reader, count uint32, h *Header) error {
	vlr := make([]byte, vlrHeaderSize)
	le := binary.LittleEndian
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, vlr); err != nil {
			return err
		}
		userID := string(bytes.TrimRight(vlr[2:18], "\x00"))
		recordID := le.Uint16(vlr[18:20])
		payloadLen := int64(le.Uint16(vlr[20:22]))
		if payloadLen > maxVLRPayload {
			return fmt.Errorf("oversized VLR payload: %d", payloadLen)
		}

		if userID == "LASF_Projection" && recordID == wktProjectionVLR {
			payload := make([]byte, payloadLen)
			if _, err := io.ReadFull(r, payload); err != nil {
				return err
			}
			h.WKT = string(bytes.TrimRight(payload, "\x00"))
			return nil
		}

		if _, err := io.CopyN(io.Discard, r, payloadLen); err != nil {
			return err
		}
	}
	return nil
}
