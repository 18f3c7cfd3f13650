package export

import (
	"errors"
	"io"

	"github.com/gocarina/gocsv"
)

func init() {
	// rows carry json tags only; CSV headers follow the JSON field names
	gocsv.TagName = "json"
}

// WriteCSV writes rows, a slice of structs, with a header taken from the
// json field names. Embedded structs are flattened, nil pointers are empty,
// times use RFC 3339 and slices are written as JSON.
func WriteCSV(w io.Writer, rows any) error {
	if rows == nil {
		return errors.New("csv rows must be a slice, got nil")
	}
	return gocsv.Marshal(rows, w)
}
