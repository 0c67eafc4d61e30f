package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"

	"diyscan/internal/logger"
	"diyscan/internal/textnorm"
)

// Format is the encoding of a catalog source.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// FormatFromPath picks the format from the file extension. Unknown
// extensions are read as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".csv":
		return FormatCSV
	default:
		return FormatJSON
	}
}

// Load reads the catalog at path.
func Load(path string) (*Catalog, error) {
	const op = "Load"
	log := logger.WithComponent("catalog")

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &CatalogError{Op: op, Path: path, Record: -1, Err: ErrCatalogNotFound}
		}
		return nil, &CatalogError{Op: op, Path: path, Record: -1, Err: err, Details: "failed to stat catalog"}
	}
	if info.IsDir() {
		return nil, &CatalogError{Op: op, Path: path, Record: -1, Err: ErrCatalogNotFound, Details: "path is a directory"}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, &CatalogError{Op: op, Path: path, Record: -1, Err: err, Details: "failed to open catalog"}
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Str("path", path).Msg("Failed to close catalog file")
		}
	}()

	format := FormatFromPath(path)
	c, err := Parse(file, format)
	if err != nil {
		var catErr *CatalogError
		if errors.As(err, &catErr) {
			catErr.Path = path
		}
		return nil, err
	}

	log.Info().
		Str("path", path).
		Str("format", string(format)).
		Int("items", c.Len()).
		Msg("Catalog loaded")

	return c, nil
}

// Parse decodes a catalog from r.
func Parse(r io.Reader, format Format) (*Catalog, error) {
	const op = "Parse"

	var names []string
	var err error

	switch format {
	case FormatJSON:
		names, err = decodeJSON(r)
	case FormatYAML:
		names, err = decodeYAML(r)
	case FormatCSV:
		names, err = decodeCSV(r)
	default:
		return nil, &CatalogError{Op: op, Record: -1, Err: ErrMalformedCatalog, Details: fmt.Sprintf("unsupported format %q", format)}
	}
	if err != nil {
		return nil, err
	}

	c := New()
	for i, name := range names {
		if textnorm.IsBlank(name) {
			return nil, malformed(op, i, "empty item name")
		}
		c.add(name)
	}
	return c, nil
}

func decodeJSON(r io.Reader) ([]string, error) {
	const op = "decodeJSON"

	dec := json.NewDecoder(r)
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, &CatalogError{Op: op, Record: -1, Err: fmt.Errorf("%w: %v", ErrMalformedCatalog, err), Details: "invalid JSON"}
	}
	var rest interface{}
	if err := dec.Decode(&rest); !errors.Is(err, io.EOF) {
		return nil, malformed(op, -1, "trailing data")
	}
	return topLevelRecords(op, doc)
}

func decodeYAML(r io.Reader) ([]string, error) {
	const op = "decodeYAML"

	dec := yaml.NewDecoder(r)
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, &CatalogError{Op: op, Record: -1, Err: fmt.Errorf("%w: %v", ErrMalformedCatalog, err), Details: "invalid YAML"}
	}
	var rest interface{}
	if err := dec.Decode(&rest); !errors.Is(err, io.EOF) {
		return nil, malformed(op, -1, "trailing data")
	}
	return topLevelRecords(op, doc)
}

// topLevelRecords requires the decoded document to be a sequence of records.
func topLevelRecords(op string, doc interface{}) ([]string, error) {
	records, ok := doc.([]interface{})
	if !ok {
		if doc == nil {
			return nil, malformed(op, -1, "catalog is null")
		}
		return nil, malformed(op, -1, fmt.Sprintf("catalog is %T, not a sequence", doc))
	}
	return firstFields(op, records)
}

func decodeCSV(r io.Reader) ([]string, error) {
	const op = "decodeCSV"

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var names []string
	for i := 0; ; i++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return names, nil
		}
		if err != nil {
			return nil, &CatalogError{Op: op, Record: i, Err: fmt.Errorf("%w: %v", ErrMalformedCatalog, err), Details: "invalid CSV"}
		}
		names = append(names, row[0])
	}
}

// firstFields extracts the item name of each decoded record. A record is
// either a sequence whose first element is a string, or a bare string.
func firstFields(op string, records []interface{}) ([]string, error) {
	names := make([]string, 0, len(records))
	for i, record := range records {
		switch v := record.(type) {
		case string:
			names = append(names, v)
		case []interface{}:
			if len(v) == 0 {
				return nil, malformed(op, i, "empty record")
			}
			name, ok := v[0].(string)
			if !ok {
				return nil, malformed(op, i, fmt.Sprintf("first field is %T, not text", v[0]))
			}
			names = append(names, name)
		default:
			return nil, malformed(op, i, fmt.Sprintf("record is %T, not a sequence", record))
		}
	}
	return names, nil
}
