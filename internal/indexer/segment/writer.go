// Package segment persists index and document-store snapshots as immutable,
// checksummed generation files. A generation becomes current only once the
// CURRENT commit point naming it has been atomically replaced.
package segment

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/snappy"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/docstore"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
)

// MagicBytes identifies a valid .spdx index segment; DocsMagic a .spds
// document-store segment.
const (
	MagicBytes    uint32 = 0x53504458
	DocsMagic     uint32 = 0x53504453
	FormatVersion uint32 = 2
	HeaderSize    int    = 64
	FooterSize    int    = 32
	DocsHeader    int    = 32
	DocsFooter    int    = 4
)

// ErrCorrupt is returned when a segment fails its magic, version or checksum
// check.
var ErrCorrupt = errors.New("corrupt segment")

// SegmentHeader is the 64-byte header written at the start of every index
// segment.
type SegmentHeader struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	Generation uint64
	CreatedAt  int64
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
}

// DictEntry maps a (field, term) key to its compressed postings block.
type DictEntry struct {
	Field      string `json:"f"`
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

// IndexFileName and DocsFileName name the files of generation gen.
func IndexFileName(gen uint64) string { return fmt.Sprintf("seg_%d.spdx", gen) }
func DocsFileName(gen uint64) string  { return fmt.Sprintf("docs_%d.spds", gen) }

// Writer serialises snapshots into generation files under one directory.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

func (w *Writer) Dir() string {
	return w.dataDir
}

// WriteIndex writes snap as generation gen and returns the file name.
//
// Layout: header | postings blocks | dictionary | doc table | footer. Each
// postings block is snappy-compressed JSON; the footer carries a CRC32 of
// everything between header and footer plus the doc table location.
func (w *Writer) WriteIndex(gen uint64, snap *index.Snapshot) (string, error) {
	name := IndexFileName(gen)
	err := w.writeAtomic(name, func(f *os.File) error {
		headerBytes := make([]byte, HeaderSize)
		if _, err := f.Write(headerBytes); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
		crc := crc32.NewIEEE()
		offset := int64(HeaderSize)
		write := func(data []byte) error {
			if _, err := f.Write(data); err != nil {
				return err
			}
			crc.Write(data)
			offset += int64(len(data))
			return nil
		}

		postingsStart := offset
		dict := make([]DictEntry, 0, snap.TermCount())
		for entry := range snap.Entries() {
			raw, err := json.Marshal(entry.Postings)
			if err != nil {
				return fmt.Errorf("marshaling postings for %s:%q: %w", entry.Field, entry.Term, err)
			}
			block := snappy.Encode(nil, raw)
			rel := offset - postingsStart
			if err := write(block); err != nil {
				return fmt.Errorf("writing postings for %s:%q: %w", entry.Field, entry.Term, err)
			}
			dict = append(dict, DictEntry{
				Field:      entry.Field,
				Term:       entry.Term,
				PostOffset: rel,
				PostLen:    len(block),
				DocFreq:    len(entry.Postings),
			})
		}
		postingsSize := offset - postingsStart

		dictStart := offset
		dictData, err := json.Marshal(dict)
		if err != nil {
			return fmt.Errorf("marshaling dictionary: %w", err)
		}
		if err := write(dictData); err != nil {
			return fmt.Errorf("writing dictionary: %w", err)
		}

		records := snap.DocRecords()
		docsStart := offset
		docsRaw, err := json.Marshal(records)
		if err != nil {
			return fmt.Errorf("marshaling doc table: %w", err)
		}
		docsData := snappy.Encode(nil, docsRaw)
		if err := write(docsData); err != nil {
			return fmt.Errorf("writing doc table: %w", err)
		}

		footer := make([]byte, FooterSize)
		binary.LittleEndian.PutUint32(footer[0:4], crc.Sum32())
		binary.LittleEndian.PutUint32(footer[4:8], uint32(len(records)))
		binary.LittleEndian.PutUint64(footer[8:16], uint64(docsStart))
		binary.LittleEndian.PutUint64(footer[16:24], uint64(len(docsData)))
		binary.LittleEndian.PutUint64(footer[24:32], gen)
		if _, err := f.Write(footer); err != nil {
			return fmt.Errorf("writing footer: %w", err)
		}

		binary.LittleEndian.PutUint32(headerBytes[0:4], MagicBytes)
		binary.LittleEndian.PutUint32(headerBytes[4:8], FormatVersion)
		binary.LittleEndian.PutUint32(headerBytes[8:12], uint32(len(dict)))
		binary.LittleEndian.PutUint32(headerBytes[12:16], uint32(len(records)))
		binary.LittleEndian.PutUint64(headerBytes[16:24], gen)
		binary.LittleEndian.PutUint64(headerBytes[24:32], uint64(time.Now().Unix()))
		binary.LittleEndian.PutUint64(headerBytes[32:40], uint64(dictStart))
		binary.LittleEndian.PutUint64(headerBytes[40:48], uint64(len(dictData)))
		binary.LittleEndian.PutUint64(headerBytes[48:56], uint64(postingsStart))
		binary.LittleEndian.PutUint64(headerBytes[56:64], uint64(postingsSize))
		if _, err := f.WriteAt(headerBytes, 0); err != nil {
			return fmt.Errorf("updating header: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// WriteDocs writes the stored documents of generation gen.
//
// Layout: 32-byte header (magic, version, count, generation, created) | one
// snappy block of JSON documents | CRC32 of the block.
func (w *Writer) WriteDocs(gen uint64, docs []docstore.Document) (string, error) {
	name := DocsFileName(gen)
	err := w.writeAtomic(name, func(f *os.File) error {
		raw, err := json.Marshal(docs)
		if err != nil {
			return fmt.Errorf("marshaling documents: %w", err)
		}
		block := snappy.Encode(nil, raw)

		header := make([]byte, DocsHeader)
		binary.LittleEndian.PutUint32(header[0:4], DocsMagic)
		binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
		binary.LittleEndian.PutUint32(header[8:12], uint32(len(docs)))
		binary.LittleEndian.PutUint64(header[16:24], gen)
		binary.LittleEndian.PutUint64(header[24:32], uint64(time.Now().Unix()))
		footer := make([]byte, DocsFooter)
		binary.LittleEndian.PutUint32(footer, crc32.ChecksumIEEE(block))

		for _, part := range [][]byte{header, block, footer} {
			if _, err := f.Write(part); err != nil {
				return fmt.Errorf("writing document segment: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// writeAtomic writes name through a .tmp file that is fsynced and renamed
// into place, then syncs the directory.
func (w *Writer) writeAtomic(name string, fill func(f *os.File) error) error {
	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return fmt.Errorf("creating segment directory: %w", err)
	}
	finalPath := filepath.Join(w.dataDir, name)
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file %s: %w", name, err)
	}
	if err := fill(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming %s: %w", name, err)
	}
	return syncDir(w.dataDir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("opening directory for sync: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("syncing directory: %w", err)
	}
	return nil
}
