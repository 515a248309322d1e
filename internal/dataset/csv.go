package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultEncoding is used when LoadOptions.Encoding is empty.
const DefaultEncoding = "iso-8859-1"

var charsets = map[string]func() transform.Transformer{
	"iso-8859-1":   func() transform.Transformer { return charmap.ISO8859_1.NewDecoder() },
	"latin1":       func() transform.Transformer { return charmap.ISO8859_1.NewDecoder() },
	"windows-1252": func() transform.Transformer { return charmap.Windows1252.NewDecoder() },
	"cp1252":       func() transform.Transformer { return charmap.Windows1252.NewDecoder() },
	"utf-8":        func() transform.Transformer { return unicode.BOMOverride(unicode.UTF8.NewDecoder()) },
	"utf8":         func() transform.Transformer { return unicode.BOMOverride(unicode.UTF8.NewDecoder()) },
}

// Encodings lists the accepted CSV charset names in sorted order.
func Encodings() []string {
	return slices.Sorted(maps.Keys(charsets))
}

// SupportedEncoding reports whether name, in any case, is a known charset.
func SupportedEncoding(name string) bool {
	_, ok := charsets[strings.ToLower(name)]
	return ok
}

// decoder returns the transformer turning the named charset into UTF-8.
func decoder(name string) (transform.Transformer, error) {
	if name == "" {
		name = DefaultEncoding
	}
	newDecoder, ok := charsets[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown encoding %q", name)
	}
	return newDecoder(), nil
}

func readCSV(path, encoding string) (table, error) {
	t := table{name: filepath.Base(path)}

	dec, err := decoder(encoding)
	if err != nil {
		return t, err
	}

	file, err := os.Open(path)
	if err != nil {
		return t, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(transform.NewReader(file, dec))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	t.header, err = reader.Read()
	if errors.Is(err, io.EOF) {
		return t, ErrEmptyFile
	}
	if err != nil {
		return t, fmt.Errorf("read header: %w", err)
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return t, fmt.Errorf("read record: %w", err)
		}
		t.records = append(t.records, record)
	}

	return t, nil
}
