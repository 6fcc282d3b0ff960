package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/familyhub/aniversaris/internal/domain"
)

// Record is one row of an export: the person without relationships plus
// the external references of its relatives.
type Record struct {
	Row        string
	Person     domain.Person
	FatherRef  string
	MotherRef  string
	PartnerRef string
}

// Column names of the roster export. The same headers are written by
// WriteXLSX so an export can be imported back.
const (
	colRow        = "rowNumber"
	colName       = "nom"
	colDay        = "dia"
	colMonth      = "mes"
	colBirthYear  = "anyNaixement"
	colPhone      = "telefon"
	colEmail      = "email"
	colGender     = "genere"
	colAlive      = "viu"
	colPhoto      = "urlFoto"
	colStatus     = "estatRelacio"
	colBirthplace = "llocNaixement"
	colDeathYear  = "anyMort"
	colFather     = "pareId"
	colMother     = "mareId"
	colPartner    = "parellaId"
)

// Columns is the export column order.
var Columns = []string{
	colRow, colName, colDay, colMonth, colBirthYear, colPhone, colEmail, colGender, colAlive,
	colPhoto, colStatus, colBirthplace, colDeathYear, colFather, colMother, colPartner,
}

// aliases maps folded header spellings to the canonical column.
var aliases = func() map[string]string {
	m := make(map[string]string)
	for _, c := range Columns {
		m[foldHeader(c)] = c
	}
	for alias, c := range map[string]string{
		"row": colRow, "ref": colRow, "id": colRow,
		"name": colName, "day": colDay, "month": colMonth, "birthyear": colBirthYear,
		"phone": colPhone, "gender": colGender, "alive": colAlive, "photourl": colPhoto,
		"relationshipstatus": colStatus, "birthplace": colBirthplace, "deathyear": colDeathYear,
		"father": colFather, "fatherref": colFather, "mother": colMother, "motherref": colMother,
		"partner": colPartner, "partnerref": colPartner,
	} {
		m[alias] = c
	}
	return m
}()

func foldHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(h)
}

// RowError reports a row that could not be parsed or stored.
type RowError struct {
	Row    string `json:"row"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %s (%s): %s", e.Row, e.Name, e.Reason)
}

// fromFields builds a record from canonical column values. A row without a
// reference of its own keeps Row empty; position labels its parse errors.
func fromFields(fields map[string]string, position string) (Record, *RowError) {
	get := func(k string) string { return strings.TrimSpace(fields[k]) }

	rec := Record{
		Row:        cleanRef(get(colRow)),
		FatherRef:  cleanRef(get(colFather)),
		MotherRef:  cleanRef(get(colMother)),
		PartnerRef: cleanRef(get(colPartner)),
	}
	label := rec.Row
	if label == "" {
		label = position
	}

	p := domain.Person{
		Name:               get(colName),
		Phone:              get(colPhone),
		Email:              get(colEmail),
		Gender:             domain.ParseGender(get(colGender)),
		Alive:              domain.ParseAlive(get(colAlive)),
		PhotoURL:           get(colPhoto),
		RelationshipStatus: get(colStatus),
		Birthplace:         get(colBirthplace),
	}

	var err error
	// Rows without a birthday are kept on 1 January.
	if p.Day, err = intOr(get(colDay), 1); err != nil {
		return rec, &RowError{Row: label, Name: p.Name, Reason: "invalid day: " + err.Error()}
	}
	if p.Month, err = intOr(get(colMonth), 1); err != nil {
		return rec, &RowError{Row: label, Name: p.Name, Reason: "invalid month: " + err.Error()}
	}
	if p.BirthYear, err = optionalInt(get(colBirthYear)); err != nil {
		return rec, &RowError{Row: label, Name: p.Name, Reason: "invalid birth year: " + err.Error()}
	}
	if p.DeathYear, err = optionalInt(get(colDeathYear)); err != nil {
		return rec, &RowError{Row: label, Name: p.Name, Reason: "invalid death year: " + err.Error()}
	}
	rec.Person = p
	return rec, nil
}

// fillRows gives every record without a reference one derived from its
// position. The position is used as is unless another row claims it
// explicitly or it was already handed out; then it is prefixed with "#"
// until free, which keeps it clear of numeric references.
func fillRows(records []Record, positions []string) {
	taken := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec.Row != "" {
			taken[rec.Row] = true
		}
	}
	for i := range records {
		if records[i].Row != "" {
			continue
		}
		row := positions[i]
		for taken[row] {
			row = "#" + row
		}
		taken[row] = true
		records[i].Row = row
	}
}

// cleanRef normalizes numeric references so "7", "7.0" and "007" agree.
func cleanRef(s string) string {
	if s == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		if f == 0 {
			return ""
		}
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

func intOr(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	if f == 0 {
		return def, nil
	}
	return int(f), nil
}

func optionalInt(s string) (*int, error) {
	v, err := intOr(s, 0)
	if err != nil || v == 0 {
		return nil, err
	}
	return &v, nil
}

// ParseJSON reads a JSON export: either an array of rows or an object
// with the rows under "data". Values may be strings, numbers or booleans.
// Rows that fail to parse are returned as RowErrors next to the records.
func ParseJSON(r io.Reader) ([]Record, []RowError, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read export: %w", err)
	}
	data = bytes.TrimSpace(data)

	var rows []map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Data []map[string]any `json:"data"`
		}
		if err := dec.Decode(&wrapped); err != nil {
			return nil, nil, fmt.Errorf("decode export: %w", err)
		}
		rows = wrapped.Data
	} else if err := dec.Decode(&rows); err != nil {
		return nil, nil, fmt.Errorf("decode export: %w", err)
	}

	var (
		records   []Record
		positions []string
		bad       []RowError
	)
	for i, row := range rows {
		fields := make(map[string]string, len(row))
		for k, v := range row {
			col, ok := aliases[foldHeader(k)]
			if !ok {
				continue
			}
			fields[col] = stringify(v)
		}
		position := strconv.Itoa(i + 1)
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

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(t)
	}
}
