// snapshot.go: binary snapshot codec for persistence across restarts.
//
// Frame layout (spec §4.7), all multi-byte integers in network byte
// order (big-endian), the whole frame GZIP-compressed on disk:
//
//	magic        uint32  "CHRO" (SnapshotMagic)
//	version      uint32  SnapshotVersion
//	written_at_ms uint64 wall-clock write time
//	entry_count  uint32
//	repeated entry_count times:
//	  key_len    uint16
//	  key        [key_len]byte
//	  value_len  uint32
//	  value      [value_len]byte
//	  ttl_remaining_s int64  (-1 = never expires)
//
// Grounded on other_examples/agilira-metis's compressGzipWithHeader /
// decompressGzipWithHeader (magic header prefix, gzip payload, tolerant
// decompression) adapted to an exact binary entry layout rather than a
// single opaque blob, since the spec requires per-entry recovery on a
// truncated tail. Deliberately kept on stdlib compress/gzip +
// encoding/binary rather than a third-party framing library: the wire
// format is exact and spec-mandated, and metis itself — the only snapshot-
// shaped precedent in the corpus — reaches for exactly these two stdlib
// packages rather than a third-party codec.
package chronos

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
)

// SnapshotCodec writes and restores Store contents to/from a file.
type SnapshotCodec struct {
	path string
	tp   TimeProvider
	log  Logger
}

// NewSnapshotCodec builds a codec targeting path.
func NewSnapshotCodec(path string, tp TimeProvider, log Logger) *SnapshotCodec {
	if log == nil {
		log = NoOpLogger{}
	}
	return &SnapshotCodec{path: path, tp: tp, log: log}
}

// Save writes every live entry in store to a temporary file, GZIP-
// compressed, then atomically renames it into place (spec §4.7: "write to
// a temp file, then atomically rename").
func (c *SnapshotCodec) Save(store *Store) error {
	tmpPath := c.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return NewErrSnapshotWrite(c.path, err)
	}

	if err := c.writeFrame(f, store); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return NewErrSnapshotWrite(c.path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return NewErrSnapshotWrite(c.path, err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return NewErrSnapshotWrite(c.path, err)
	}
	return nil
}

func (c *SnapshotCodec) writeFrame(w io.Writer, store *Store) error {
	gz := gzip.NewWriter(w)
	defer gz.Close()
	bw := bufio.NewWriter(gz)
	defer bw.Flush()

	var entries []snapshotEntry
	for _, seg := range store.Segments() {
		entries = append(entries, seg.snapshotEntries()...)
	}

	if err := writeUint32(bw, SnapshotMagic); err != nil {
		return err
	}
	if err := writeUint32(bw, SnapshotVersion); err != nil {
		return err
	}
	if err := writeUint64(bw, uint64(c.tp.NowWall()/1e6)); err != nil {
		return err
	}
	if err := writeUint32(bw, uint32(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writeEntry(bw, e); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeEntry(w io.Writer, e snapshotEntry) error {
	if err := writeUint16(w, uint16(len(e.key))); err != nil {
		return err
	}
	if _, err := w.Write([]byte(e.key)); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(e.value))); err != nil {
		return err
	}
	if _, err := w.Write(e.value); err != nil {
		return err
	}
	return writeInt64(w, e.ttlRemSec)
}

// Load restores entries from the snapshot file into store. A missing file
// is not an error — it means there is nothing to restore (spec §4.7). A
// mid-stream decode failure aborts the remainder but keeps every entry
// already loaded; the number of entries successfully loaded is returned
// alongside the error.
func (c *SnapshotCodec) Load(store *Store) (loaded int, err error) {
	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, NewErrSnapshotRead(c.path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return 0, NewErrSnapshotRead(c.path, err)
	}
	defer gz.Close()
	br := bufio.NewReader(gz)

	magic, err := readUint32(br)
	if err != nil {
		return 0, NewErrSnapshotCorrupt(c.path, 0, err)
	}
	version, err := readUint32(br)
	if err != nil {
		return 0, NewErrSnapshotCorrupt(c.path, 0, err)
	}
	if magic != SnapshotMagic || version != SnapshotVersion {
		return 0, NewErrSnapshotMismatch(magic, SnapshotMagic, version, SnapshotVersion)
	}
	if _, err := readUint64(br); err != nil { // written_at_ms, informational only
		return 0, NewErrSnapshotCorrupt(c.path, 0, err)
	}
	count, err := readUint32(br)
	if err != nil {
		return 0, NewErrSnapshotCorrupt(c.path, 0, err)
	}

	for i := uint32(0); i < count; i++ {
		key, value, ttlRemSec, err := readEntry(br)
		if err != nil {
			c.log.Warn("snapshot truncated, keeping entries loaded so far",
				"path", c.path, "loaded", loaded, "expected", count, "error", err)
			return loaded, NewErrSnapshotCorrupt(c.path, loaded, err)
		}
		store.Set(key, value, ttlRemSec, 0)
		loaded++
	}
	return loaded, nil
}

func readEntry(r io.Reader) (key string, value []byte, ttlRemSec int64, err error) {
	keyLen, err := readUint16(r)
	if err != nil {
		return "", nil, 0, err
	}
	keyBytes := make([]byte, keyLen)
	if _, err := io.ReadFull(r, keyBytes); err != nil {
		return "", nil, 0, err
	}
	valueLen, err := readUint32(r)
	if err != nil {
		return "", nil, 0, err
	}
	valueBytes := make([]byte, valueLen)
	if _, err := io.ReadFull(r, valueBytes); err != nil {
		return "", nil, 0, err
	}
	ttl, err := readInt64(r)
	if err != nil {
		return "", nil, 0, err
	}
	return string(keyBytes), valueBytes, ttl, nil
}

// EnsureDir creates the parent directory of path if it does not exist,
// used by callers (cmd/chronosd) before the first Save.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func writeUint16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeInt64(w io.Writer, v int64) error {
	return writeUint64(w, uint64(v))
}

func readUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readInt64(r io.Reader) (int64, error) {
	v, err := readUint64(r)
	return int64(v), err
}
