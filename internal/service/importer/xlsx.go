package importer

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/familyhub/aniversaris/internal/domain"
)

// SheetName is the sheet written by WriteXLSX.
const SheetName = "Persones"

// ParseXLSX reads the first sheet of a workbook. The first row holds the
// column headers; unknown columns are ignored.
func ParseXLSX(r io.Reader) ([]Record, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = aliases[foldHeader(h)]
	}

	var (
		records   []Record
		positions []string
		bad       []RowError
	)
	for i, row := range rows[1:] {
		fields := make(map[string]string, len(header))
		empty := true
		for c, v := range row {
			if c >= len(header) || header[c] == "" {
				continue
			}
			fields[header[c]] = v
			if strings.TrimSpace(v) != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		// Spreadsheet row numbers start at 1 and the header takes the first.
		position := strconv.Itoa(i + 2)
		rec, rowErr := fromFields(fields, position)
		if rowErr != nil {
			bad = append(bad, *rowErr)
			continue
		}
		records = append(records, rec)
		positions = append(positions, position)
	}
	fillRows(records, positions)
	return records, bad, nil
}

// Parse picks the reader from the file extension: .xlsx for workbooks,
// anything else is read as JSON.
func Parse(filename string, r io.Reader) ([]Record, []RowError, error) {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return ParseXLSX(r)
	}
	return ParseJSON(r)
}

// WriteXLSX writes the roster as a workbook that ParseXLSX can read back.
// Person ids are used as row references.
func WriteXLSX(w io.Writer, persons []domain.Person) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	for col, h := range Columns {
		if err := setCell(f, col+1, 1, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(Columns), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("set header style: %w", err)
	}

	for i, p := range persons {
		values := []any{
			p.ID, p.Name, p.Day, p.Month, optional(p.BirthYear), p.Phone, p.Email, genderMarker(p.Gender),
			aliveMarker(p.Alive), p.PhotoURL, p.RelationshipStatus, p.Birthplace, optional(p.DeathYear),
			optionalID(p.FatherID), optionalID(p.MotherID), optionalID(p.PartnerID),
		}
		for col, v := range values {
			if v == nil || v == "" {
				continue
			}
			if err := setCell(f, col+1, i+2, v); err != nil {
				return err
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(SheetName, cell, v); err != nil {
		return fmt.Errorf("set cell %s: %w", cell, err)
	}
	return nil
}

func optional(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func optionalID(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func genderMarker(g domain.Gender) string {
	switch g {
	case domain.GenderMale:
		return "H"
	case domain.GenderFemale:
		return "D"
	default:
		return ""
	}
}

func aliveMarker(alive bool) string {
	if alive {
		return "Sí"
	}
	return "No"
}
