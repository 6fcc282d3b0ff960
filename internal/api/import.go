package api

import (
	"net/http"
	"strings"

	"github.com/familyhub/aniversaris/internal/domain"
	"github.com/familyhub/aniversaris/internal/service/importer"
)

// maxImportBytes caps an uploaded roster file.
const maxImportBytes = 20 << 20

// ImportPersons handles POST /api/import. It accepts a multipart "file"
// field (.xlsx or .json) or a JSON array body. Rows that fail to parse are
// reported next to the rows that fail to store.
func (h *Handlers) ImportPersons(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var (
		records   []importer.Record
		parseErrs []importer.RowError
		err       error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			h.respondError(w, r, &domain.ValidationError{Field: "file", Message: "missing import file"})
			return
		}
		defer file.Close()
		records, parseErrs, err = importer.Parse(header.Filename, file)
	} else {
		records, parseErrs, err = importer.ParseJSON(r.Body)
	}
	if err != nil {
		h.respondError(w, r, &domain.ValidationError{Field: "file", Message: err.Error()})
		return
	}

	report, err := h.importer.Import(r.Context(), records)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	report.Total += len(parseErrs)
	report.Failed = append(parseErrs, report.Failed...)
	respondData(w, http.StatusOK, report)
}
