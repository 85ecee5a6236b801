package http

import (
	"bytes"
	"net/http"
	"net/url"
	"strconv"

	"yoyaku/internal/export"
	applog "yoyaku/internal/log"
)

func (s *Server) handleExportYear(w http.ResponseWriter, r *http.Request) {
	year, err := pathYear(r)
	if err != nil {
		s.writeErrorPage(w, r, applog.OpExport, err)
		return
	}

	var buf bytes.Buffer
	if err := s.svc.ExportYear(r.Context(), &buf, year); err != nil {
		s.writeErrorPage(w, r, applog.OpExport, err)
		return
	}
	writeCSV(w, export.YearlyFilename(year), "reservations_"+strconv.Itoa(year)+".csv", buf.Bytes())
}

func (s *Server) handleExportMonth(w http.ResponseWriter, r *http.Request) {
	year, err := pathYear(r)
	if err != nil {
		s.writeErrorPage(w, r, applog.OpExport, err)
		return
	}
	month, err := pathMonth(r)
	if err != nil {
		s.writeErrorPage(w, r, applog.OpExport, err)
		return
	}

	var buf bytes.Buffer
	if err := s.svc.ExportMonth(r.Context(), &buf, year, month); err != nil {
		s.writeErrorPage(w, r, applog.OpExport, err)
		return
	}
	fallback := "reservations_" + strconv.Itoa(year) + "-" + strconv.Itoa(month) + ".csv"
	writeCSV(w, export.MonthlyFilename(year, month), fallback, buf.Bytes())
}

// writeCSV sends data as a download. The UTF-8 name goes in the RFC 2231
// filename* parameter with an ASCII fallback for older clients.
func writeCSV(w http.ResponseWriter, name, fallback string, data []byte) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition",
		`attachment; filename="`+fallback+`"; filename*=UTF-8''`+url.PathEscape(name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
