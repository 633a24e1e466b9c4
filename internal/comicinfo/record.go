// Package comicinfo reads and rewrites the date record stored in the
// ComicInfo.xml entry of CBZ/ZIP and CBR/RAR archives.
package comicinfo

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/starford/tankobon/internal/models"
)

// EntryName is the name given to a metadata entry created at the archive root.
const EntryName = "ComicInfo.xml"

// maxRecordSize caps how much of a metadata entry is read.
const maxRecordSize = 1 << 20

var errEntryNotFound = errors.New("comicinfo: metadata entry not found")

type record struct {
	XMLName xml.Name `xml:"ComicInfo"`
	Year    string   `xml:"Year"`
	Month   string   `xml:"Month"`
	Day     string   `xml:"Day"`
}

// isEntry reports whether an archive entry name is the metadata entry.
func isEntry(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), "comicinfo.xml")
}

// encodeRecord serializes exactly the three date fields.
func encodeRecord(d models.DateTriple) ([]byte, error) {
	out, err := xml.MarshalIndent(record{Year: d.Year, Month: d.Month, Day: d.Day}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("comicinfo: encode record: %w", err)
	}
	buf := bytes.NewBufferString(xml.Header)
	buf.Write(out)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// decodeRecord extracts Year, Month and Day from a ComicInfo document.
// Other elements are ignored and the root element name is not checked.
func decodeRecord(data []byte) (models.DateTriple, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var r struct {
		Year  string `xml:"Year"`
		Month string `xml:"Month"`
		Day   string `xml:"Day"`
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(label)
		if err != nil {
			return nil, err
		}
		return enc.NewDecoder().Reader(input), nil
	}
	if err := dec.Decode(&r); err != nil {
		return models.DateTriple{}, fmt.Errorf("comicinfo: decode record: %w", err)
	}
	return models.DateTriple{
		Year:  strings.TrimSpace(r.Year),
		Month: strings.TrimSpace(r.Month),
		Day:   strings.TrimSpace(r.Day),
	}, nil
}
