package importer

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// =============================================================================
// CSV HANDLING - LinkedIn Connection Exports
// =============================================================================
// LinkedIn exports are UTF-8 (optionally BOM-prefixed) with a required
// header row. The delimiter varies with the exporting locale, so it is
// auto-detected by majority count over the first five lines. Duplicate
// headers get _2, _3… suffixes so the column mapping stays unambiguous.

var (
	ErrEmptyFile  = errors.New("file is empty")
	ErrNoHeaders  = errors.New("no header row detected in CSV file")
	ErrInvalidCSV = errors.New("invalid CSV format")
)

// Internal field names a CSV column can map to.
const (
	FieldFirstName   = "first_name"
	FieldLastName    = "last_name"
	FieldEmail       = "email"
	FieldCompany     = "company"
	FieldJobTitle    = "job_title"
	FieldLinkedInURL = "linkedin_url"
	FieldConnectedOn = "connected_on"
)

// headerAliases maps internal fields to header spellings seen in the wild
// (LinkedIn exports in English and Spanish plus common manual exports).
var headerAliases = map[string][]string{
	FieldFirstName:   {"first name", "first_name", "firstname", "nombre", "given name"},
	FieldLastName:    {"last name", "last_name", "lastname", "apellido", "apellidos", "surname"},
	FieldEmail:       {"email address", "email", "e-mail", "correo", "correo electronico", "correo electrónico"},
	FieldCompany:     {"company", "empresa", "organization", "organizacion", "organización"},
	FieldJobTitle:    {"position", "job title", "title", "cargo", "puesto", "posicion", "posición"},
	FieldLinkedInURL: {"url", "profile url", "linkedin url", "linkedin", "perfil"},
	FieldConnectedOn: {"connected on", "connected_on", "conectado el", "fecha de conexion", "fecha de conexión"},
}

// delimiterCandidates in detection order; comma wins ties.
var delimiterCandidates = []rune{',', ';', '\t'}

// DetectDelimiter picks the candidate with the highest total count over the
// sample lines. Defaults to comma when nothing scores.
func DetectDelimiter(lines []string) rune {
	best, bestCount := ',', 0
	for _, cand := range delimiterCandidates {
		count := 0
		for _, line := range lines {
			count += strings.Count(line, string(cand))
		}
		if count > bestCount {
			best, bestCount = cand, count
		}
	}
	return best
}

// DisambiguateHeaders appends _2, _3… to repeated header names.
func DisambiguateHeaders(headers []string) []string {
	seen := make(map[string]int, len(headers))
	out := make([]string, len(headers))
	for i, h := range headers {
		seen[h]++
		if seen[h] > 1 {
			out[i] = fmt.Sprintf("%s_%d", h, seen[h])
		} else {
			out[i] = h
		}
	}
	return out
}

// SuggestMapping proposes a header → internal-field mapping from the alias
// table. Unrecognized headers are left unmapped.
func SuggestMapping(headers []string) map[string]string {
	mapping := make(map[string]string)
	for _, header := range headers {
		normalized := strings.ToLower(strings.TrimSpace(header))
		normalized = strings.ReplaceAll(normalized, "_", " ")
		for field, aliases := range headerAliases {
			for _, alias := range aliases {
				if normalized == alias {
					mapping[header] = field
				}
			}
		}
	}
	return mapping
}

// CSVFile is an open CSV positioned after its header row.
type CSVFile struct {
	Headers   []string
	Delimiter rune

	file   *os.File
	reader *csv.Reader
}

// OpenCSV opens path, strips an optional BOM, detects the delimiter and
// consumes the header row.
func OpenCSV(path string) (*CSVFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	// Sample the first five lines for delimiter detection
	var sample []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for len(sample) < 5 && scanner.Scan() {
		sample = append(sample, scanner.Text())
	}
	if len(sample) == 0 {
		f.Close()
		return nil, ErrEmptyFile
	}
	delimiter := DetectDelimiter(sample)

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	br := bufio.NewReaderSize(f, 1024*1024)
	stripBOM(br)

	r := csv.NewReader(br)
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	headers, err := r.Read()
	if err == io.EOF {
		f.Close()
		return nil, ErrEmptyFile
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}
	if len(headers) == 0 || (len(headers) == 1 && strings.TrimSpace(headers[0]) == "") {
		f.Close()
		return nil, ErrNoHeaders
	}

	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	return &CSVFile{
		Headers:   DisambiguateHeaders(headers),
		Delimiter: delimiter,
		file:      f,
		reader:    r,
	}, nil
}

// ReadBatch reads up to n records. Returns io.EOF alongside any trailing
// records once the file is exhausted.
func (c *CSVFile) ReadBatch(n int) ([][]string, error) {
	var batch [][]string
	for len(batch) < n {
		record, err := c.reader.Read()
		if err == io.EOF {
			return batch, io.EOF
		}
		if err != nil {
			// Malformed line: surface it to the caller as a row-level
			// problem without aborting the stream.
			batch = append(batch, nil)
			continue
		}
		batch = append(batch, record)
	}
	return batch, nil
}

// Close releases the underlying file.
func (c *CSVFile) Close() error { return c.file.Close() }

// CountRows streams the file counting data rows (header excluded).
func CountRows(path string) (int, error) {
	c, err := OpenCSV(path)
	if err != nil {
		return 0, err
	}
	defer c.Close()

	count := 0
	for {
		batch, err := c.ReadBatch(1000)
		count += len(batch)
		if err == io.EOF {
			return count, nil
		}
	}
}

func stripBOM(br *bufio.Reader) {
	bom, err := br.Peek(3)
	if err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		br.Discard(3)
	}
}
