// Package archive persists loaded result trees to local cache files.
//
// An archive file holds one record per scenario. Records carry a CRC32
// checksum; any corruption or truncation is fatal for the whole read,
// never a partial reconstruction.
//
// File format:
//   - Header: 8 bytes magic + 4 bytes version
//   - Records: [4 bytes length][4 bytes crc32][payload]
//
// The payload is the scenario's own stream encoding (see package results).
package archive

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/xtxerr/perfres/config"
	"github.com/xtxerr/perfres/internal/errors"
	"github.com/xtxerr/perfres/internal/results"
)

const (
	archiveMagic     = 0x5052455341524301 // "PRESARC" + 1
	archiveVersion   = 1
	headerSize       = 12 // 8 bytes magic + 4 bytes version
	recordHeaderSize = 8  // 4 bytes length + 4 bytes crc
)

// Writer writes scenario records to an archive file.
type Writer struct {
	path string
	file *os.File
	w    *bufio.Writer

	closed bool

	// Statistics
	records int64
	bytes   int64
}

// NewWriter creates an archive file at path, truncating any existing file,
// and writes the header.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}

	w := &Writer{
		path: path,
		file: f,
		w:    bufio.NewWriter(f),
	}

	var header [headerSize]byte
	binary.BigEndian.PutUint64(header[0:8], archiveMagic)
	binary.BigEndian.PutUint32(header[8:12], archiveVersion)
	if _, err := w.w.Write(header[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	return w, nil
}

// WriteScenario appends one scenario record.
func (w *Writer) WriteScenario(s *results.ScenarioResults) error {
	if w.closed {
		return errors.ErrWriterClosed
	}

	var payload bytes.Buffer
	if err := s.Write(&payload); err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}
	if payload.Len() > config.MaxRecordSize {
		return fmt.Errorf("scenario %s: %d bytes: %w", s.Name(), payload.Len(), errors.ErrRecordTooLarge)
	}

	var header [recordHeaderSize]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(payload.Len()))
	binary.BigEndian.PutUint32(header[4:8], crc32.ChecksumIEEE(payload.Bytes()))

	if _, err := w.w.Write(header[:]); err != nil {
		return fmt.Errorf("write record header: %w", err)
	}
	if _, err := w.w.Write(payload.Bytes()); err != nil {
		return fmt.Errorf("write record payload: %w", err)
	}

	w.records++
	w.bytes += int64(recordHeaderSize + payload.Len())
	return nil
}

// Records returns the number of records written so far.
func (w *Writer) Records() int64 {
	return w.records
}

// Close flushes and closes the archive file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.w.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("flush archive: %w", err)
	}
	return w.file.Close()
}

// Reader reads scenario records from an archive file.
type Reader struct {
	path string
	file *os.File
	r    *bufio.Reader
}

// NewReader opens an archive file and verifies its header.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	r := bufio.NewReader(f)

	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("read header: %w", errors.ErrTruncatedRecord)
	}

	if magic := binary.BigEndian.Uint64(header[0:8]); magic != archiveMagic {
		f.Close()
		return nil, fmt.Errorf("magic %x: %w", magic, errors.ErrBadMagic)
	}
	if version := binary.BigEndian.Uint32(header[8:12]); version != archiveVersion {
		f.Close()
		return nil, fmt.Errorf("version %d: %w", version, errors.ErrBadVersion)
	}

	return &Reader{path: path, file: f, r: r}, nil
}

// ReadScenario reads the next scenario record.
// Returns io.EOF when there are no more records.
func (r *Reader) ReadScenario() (*results.ScenarioResults, error) {
	var header [recordHeaderSize]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read record header: %w", errors.ErrTruncatedRecord)
	}

	length := binary.BigEndian.Uint32(header[0:4])
	expectedCRC := binary.BigEndian.Uint32(header[4:8])

	if length > config.MaxRecordSize {
		return nil, fmt.Errorf("record length %d: %w", length, errors.ErrRecordTooLarge)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return nil, fmt.Errorf("read record payload: %w", errors.ErrTruncatedRecord)
	}

	if actual := crc32.ChecksumIEEE(payload); actual != expectedCRC {
		return nil, fmt.Errorf("crc %x want %x: %w", actual, expectedCRC, errors.ErrChecksumMismatch)
	}

	s, err := results.ReadScenario(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	return s, nil
}

// ReadAll reads every scenario record. Any malformed record aborts the
// whole read.
func (r *Reader) ReadAll() ([]*results.ScenarioResults, error) {
	var scenarios []*results.ScenarioResults
	for {
		s, err := r.ReadScenario()
		if err == io.EOF {
			return scenarios, nil
		}
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
}

// Close closes the archive file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// WriteFile writes all scenarios of a run to a single archive file.
func WriteFile(path string, scenarios []*results.ScenarioResults) error {
	w, err := NewWriter(path)
	if err != nil {
		return err
	}
	for _, s := range scenarios {
		if err := w.WriteScenario(s); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// ReadFile reads all scenarios from a single archive file.
func ReadFile(path string) ([]*results.ScenarioResults, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.ReadAll()
}
