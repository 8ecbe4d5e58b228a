package importer

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOpenCSVCommaDelimited(t *testing.T) {
	path := writeTempCSV(t, "First Name,Last Name,Email Address\nJane,Doe,jane@example.com\n")

	f, err := OpenCSV(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, ',', f.Delimiter)
	assert.Equal(t, []string{"First Name", "Last Name", "Email Address"}, f.Headers)

	batch, err := f.ReadBatch(10)
	assert.Equal(t, io.EOF, err)
	require.Len(t, batch, 1)
	assert.Equal(t, []string{"Jane", "Doe", "jane@example.com"}, batch[0])
}

func TestOpenCSVSemicolonDelimited(t *testing.T) {
	path := writeTempCSV(t, "Nombre;Apellido;Correo\nJuan;Pérez;juan@example.com\nAna;García;ana@example.com\n")

	f, err := OpenCSV(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, ';', f.Delimiter)
	assert.Equal(t, []string{"Nombre", "Apellido", "Correo"}, f.Headers)
}

func TestOpenCSVTabDelimited(t *testing.T) {
	path := writeTempCSV(t, "First Name\tLast Name\tURL\nJane\tDoe\thttps://linkedin.com/in/janedoe\n")

	f, err := OpenCSV(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, '\t', f.Delimiter)
}

func TestOpenCSVStripsBOM(t *testing.T) {
	path := writeTempCSV(t, "\xEF\xBB\xBFFirst Name,Email\nJane,jane@example.com\n")

	f, err := OpenCSV(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, "First Name", f.Headers[0])
}

func TestOpenCSVEmptyFile(t *testing.T) {
	path := writeTempCSV(t, "")
	_, err := OpenCSV(path)
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestReadBatchRaggedRows(t *testing.T) {
	// Rows with a varying field count stream through unchanged.
	path := writeTempCSV(t, "a,b,c\n1,2,3\n4,5\n6,7,8,9\n")

	f, err := OpenCSV(path)
	require.NoError(t, err)
	defer f.Close()

	var all [][]string
	for {
		batch, err := f.ReadBatch(2)
		all = append(all, batch...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	require.Len(t, all, 3)
	assert.Equal(t, []string{"1", "2", "3"}, all[0])
	assert.Equal(t, []string{"4", "5"}, all[1])
	assert.Equal(t, []string{"6", "7", "8", "9"}, all[2])
}

func TestCountRows(t *testing.T) {
	path := writeTempCSV(t, "h1,h2\na,1\nb,2\nc,3\n")
	n, err := CountRows(path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, ',', DetectDelimiter([]string{"a,b,c", "1,2,3"}))
	assert.Equal(t, ';', DetectDelimiter([]string{"a;b;c", "1;2;3"}))
	assert.Equal(t, '\t', DetectDelimiter([]string{"a\tb\tc"}))
	// Comma wins ties and empty input
	assert.Equal(t, ',', DetectDelimiter(nil))
}

func TestDisambiguateHeaders(t *testing.T) {
	out := DisambiguateHeaders([]string{"Email", "Name", "Email", "Email"})
	assert.Equal(t, []string{"Email", "Name", "Email_2", "Email_3"}, out)
}

func TestSuggestMapping(t *testing.T) {
	mapping := SuggestMapping([]string{"First Name", "Last Name", "Email Address", "Company", "Position", "URL", "Connected On", "Mystery"})
	assert.Equal(t, FieldFirstName, mapping["First Name"])
	assert.Equal(t, FieldLastName, mapping["Last Name"])
	assert.Equal(t, FieldEmail, mapping["Email Address"])
	assert.Equal(t, FieldCompany, mapping["Company"])
	assert.Equal(t, FieldJobTitle, mapping["Position"])
	assert.Equal(t, FieldLinkedInURL, mapping["URL"])
	assert.Equal(t, FieldConnectedOn, mapping["Connected On"])
	_, mapped := mapping["Mystery"]
	assert.False(t, mapped)
}

func TestSuggestMappingSpanishHeaders(t *testing.T) {
	mapping := SuggestMapping([]string{"Nombre", "Apellidos", "Correo", "Empresa", "Cargo", "Conectado el"})
	assert.Equal(t, FieldFirstName, mapping["Nombre"])
	assert.Equal(t, FieldLastName, mapping["Apellidos"])
	assert.Equal(t, FieldEmail, mapping["Correo"])
	assert.Equal(t, FieldCompany, mapping["Empresa"])
	assert.Equal(t, FieldJobTitle, mapping["Cargo"])
	assert.Equal(t, FieldConnectedOn, mapping["Conectado el"])
}
