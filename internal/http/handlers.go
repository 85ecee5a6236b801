package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"yoyaku/internal/core"
	applog "yoyaku/internal/log"
)

func (s *Server) handleListReservations(w http.ResponseWriter, r *http.Request) {
	all, err := s.svc.List(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	in, err := decodeReservation(w, r)
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}
	created, err := s.svc.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}
	w.Header().Set("Location", "/api/reservations/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUpdateReservation(w http.ResponseWriter, r *http.Request) {
	in, err := decodeReservation(w, r)
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err)
		return
	}
	updated, err := s.svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteReservation(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePreviewReservation returns the record with head count and total
// recomputed, for live form feedback. Nothing is validated or stored.
func (s *Server) handlePreviewReservation(w http.ResponseWriter, r *http.Request) {
	in, err := decodeReservation(w, r)
	if err != nil {
		s.writeError(w, r, applog.OpValidate, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.PreviewTotal(in))
}

// handleImportReservations replaces the whole collection with the posted list.
func (s *Server) handleImportReservations(w http.ResponseWriter, r *http.Request) {
	var payload []reservationPayload
	if err := decodeJSON(w, r, maxImportBody, &payload); err != nil {
		s.writeError(w, r, applog.OpImport, err)
		return
	}
	rs := make([]core.Reservation, 0, len(payload))
	for _, p := range payload {
		rs = append(rs, p.reservation())
	}

	n, err := s.svc.Import(r.Context(), rs)
	if err != nil {
		s.writeError(w, r, applog.OpImport, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func (s *Server) handleMonthlySummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.svc.MonthlySummaries(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleMonthSales(w http.ResponseWriter, r *http.Request) {
	month, err := core.ParseMonthKey(chi.URLParam(r, "month"))
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	sales, err := s.svc.MonthSales(r.Context(), month)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (s *Server) handleYearSummary(w http.ResponseWriter, r *http.Request) {
	year, err := pathYear(r)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	summary, err := s.svc.YearSummary(r.Context(), year)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleUpcomingSales(w http.ResponseWriter, r *http.Request) {
	sales, err := s.svc.UpcomingSales(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (s *Server) handleOccupancy(w http.ResponseWriter, r *http.Request) {
	year, err := pathYear(r)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	month, err := pathMonth(r)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	occ, err := s.svc.Occupancy(r.Context(), year, month)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, occ)
}
