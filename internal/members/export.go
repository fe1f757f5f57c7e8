package members

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// SchemaVersion identifies the directory CSV format version.
const SchemaVersion = "1"

// csvColumns defines the column order for the directory export.
var csvColumns = []string{
	"schemaVersion",
	"firstName",
	"lastName",
	"email",
	"graduationYear",
	"department",
	"occupation",
	"company",
	"city",
	"phone",
	"role",
	"connections",
	"createdAt",
}

// CSVExporter exports directory profiles to CSV.
type CSVExporter struct{}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Export writes profiles to w in CSV format.
func (e *CSVExporter) Export(w io.Writer, profiles []Profile) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(csvColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, profile := range profiles {
		if err := writer.Write(e.profileToRow(profile)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func (e *CSVExporter) profileToRow(p Profile) []string {
	row := make([]string, len(csvColumns))

	row[0] = SchemaVersion
	row[1] = p.FirstName
	row[2] = p.LastName
	row[3] = p.Email
	row[4] = formatOptionalInt(p.GraduationYear)
	row[5] = p.Department
	row[6] = p.Occupation
	row[7] = p.Company
	row[8] = p.City
	row[9] = p.Phone
	row[10] = string(p.Role)
	row[11] = strconv.Itoa(len(p.Connections))
	row[12] = formatTime(p.CreatedAt)

	return row
}

func formatOptionalInt(value *int) string {
	if value == nil {
		return ""
	}
	return strconv.Itoa(*value)
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.Format(time.RFC3339)
}
