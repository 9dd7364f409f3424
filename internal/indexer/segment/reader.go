package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"runtime"

	"github.com/golang/snappy"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/docstore"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
)

// ReadIndex loads a whole index segment into a snapshot. Postings blocks are
// decoded in parallel.
func ReadIndex(path string) (*index.Snapshot, SegmentHeader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, SegmentHeader{}, fmt.Errorf("opening segment file: %w", err)
	}
	if len(data) < HeaderSize+FooterSize {
		return nil, SegmentHeader{}, fmt.Errorf("%s: %w: truncated", path, ErrCorrupt)
	}
	header := parseHeader(data[:HeaderSize])
	if header.Magic != MagicBytes {
		return nil, header, fmt.Errorf("%s: %w: bad magic bytes %x", path, ErrCorrupt, header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, header, fmt.Errorf("%s: %w: unsupported version %d", path, ErrCorrupt, header.Version)
	}

	footer := data[len(data)-FooterSize:]
	body := data[HeaderSize : len(data)-FooterSize]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, header, fmt.Errorf("%s: %w: checksum mismatch", path, ErrCorrupt)
	}
	docsOffset := int64(binary.LittleEndian.Uint64(footer[8:16]))
	docsSize := int64(binary.LittleEndian.Uint64(footer[16:24]))

	section := func(off, size int64) ([]byte, error) {
		if off < int64(HeaderSize) || size < 0 || off+size > int64(len(data)-FooterSize) {
			return nil, fmt.Errorf("%s: %w: section out of range", path, ErrCorrupt)
		}
		return data[off : off+size], nil
	}

	dictBytes, err := section(header.DictOffset, header.DictSize)
	if err != nil {
		return nil, header, err
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, header, fmt.Errorf("parsing dictionary: %w", err)
	}
	postings, err := section(header.PostOffset, header.PostSize)
	if err != nil {
		return nil, header, err
	}

	entries := make([]index.TermEntry, len(dict))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, de := range dict {
		g.Go(func() error {
			end := de.PostOffset + int64(de.PostLen)
			if de.PostOffset < 0 || end > int64(len(postings)) {
				return fmt.Errorf("%s: %w: postings for %s:%q out of range", path, ErrCorrupt, de.Field, de.Term)
			}
			raw, err := snappy.Decode(nil, postings[de.PostOffset:end])
			if err != nil {
				return fmt.Errorf("decompressing postings for %s:%q: %w", de.Field, de.Term, err)
			}
			var pl index.PostingList
			if err := json.Unmarshal(raw, &pl); err != nil {
				return fmt.Errorf("parsing postings for %s:%q: %w", de.Field, de.Term, err)
			}
			entries[i] = index.TermEntry{Field: de.Field, Term: de.Term, Postings: pl}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, header, err
	}

	docsBlock, err := section(docsOffset, docsSize)
	if err != nil {
		return nil, header, err
	}
	docsRaw, err := snappy.Decode(nil, docsBlock)
	if err != nil {
		return nil, header, fmt.Errorf("decompressing doc table: %w", err)
	}
	var records []index.DocRecord
	if err := json.Unmarshal(docsRaw, &records); err != nil {
		return nil, header, fmt.Errorf("parsing doc table: %w", err)
	}
	return index.Load(entries, records), header, nil
}

// ReadDocs loads a document-store segment.
func ReadDocs(path string) ([]docstore.Document, uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening document segment: %w", err)
	}
	if len(data) < DocsHeader+DocsFooter {
		return nil, 0, fmt.Errorf("%s: %w: truncated", path, ErrCorrupt)
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != DocsMagic {
		return nil, 0, fmt.Errorf("%s: %w: bad magic bytes %x", path, ErrCorrupt, magic)
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != FormatVersion {
		return nil, 0, fmt.Errorf("%s: %w: unsupported version %d", path, ErrCorrupt, v)
	}
	count := binary.LittleEndian.Uint32(data[8:12])
	gen := binary.LittleEndian.Uint64(data[16:24])

	block := data[DocsHeader : len(data)-DocsFooter]
	if crc32.ChecksumIEEE(block) != binary.LittleEndian.Uint32(data[len(data)-DocsFooter:]) {
		return nil, gen, fmt.Errorf("%s: %w: checksum mismatch", path, ErrCorrupt)
	}
	raw, err := snappy.Decode(nil, block)
	if err != nil {
		return nil, gen, fmt.Errorf("decompressing documents: %w", err)
	}
	var docs []docstore.Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, gen, fmt.Errorf("parsing documents: %w", err)
	}
	if uint32(len(docs)) != count {
		return nil, gen, fmt.Errorf("%s: %w: expected %d documents, found %d", path, ErrCorrupt, count, len(docs))
	}
	return docs, gen, nil
}

func parseHeader(b []byte) SegmentHeader {
	return SegmentHeader{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Version:    binary.LittleEndian.Uint32(b[4:8]),
		TermCount:  binary.LittleEndian.Uint32(b[8:12]),
		DocCount:   binary.LittleEndian.Uint32(b[12:16]),
		Generation: binary.LittleEndian.Uint64(b[16:24]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(b[24:32])),
		DictOffset: int64(binary.LittleEndian.Uint64(b[32:40])),
		DictSize:   int64(binary.LittleEndian.Uint64(b[40:48])),
		PostOffset: int64(binary.LittleEndian.Uint64(b[48:56])),
		PostSize:   int64(binary.LittleEndian.Uint64(b[56:64])),
	}
}
