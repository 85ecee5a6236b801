package http

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"yoyaku/internal/core"
	"yoyaku/internal/ledger"
	applog "yoyaku/internal/log"
	"yoyaku/internal/occupancy"
)

const blankRoomRows = 3

var notices = map[string]string{
	"created": "予約を追加しました",
	"updated": "予約を更新しました",
	"deleted": "予約を削除しました",
}

type yearView struct {
	Summary core.YearSummary
	Years   []int
}

type occupancyView struct {
	Occupancy occupancy.Occupancy
	Name      string
	Prev      core.MonthKey
	Next      core.MonthKey
}

type indexPage struct {
	Notice    string
	Year      int
	YearView  yearView
	Upcoming  []core.MonthSales
	Occupancy occupancyView
	Months    []core.MonthlySummary
}

type formPage struct {
	Title       string
	Action      string
	Error       string
	Reservation core.Reservation
	RoomRows    []core.RoomAllocation
	Types       []core.CustomerType
	Rooms       []core.RoomType
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	year, month := queryYearMonth(r.URL.Query(), s.now())

	yv, err := s.yearView(r, year)
	if err != nil {
		s.writeErrorPage(w, r, applog.OpRender, err)
		return
	}
	ov, err := s.occupancyView(r, year, month)
	if err != nil {
		s.writeErrorPage(w, r, applog.OpRender, err)
		return
	}
	upcoming, err := s.svc.UpcomingSales(ctx)
	if err != nil {
		s.writeErrorPage(w, r, applog.OpRender, err)
		return
	}
	months, err := s.svc.MonthlySummaries(ctx)
	if err != nil {
		s.writeErrorPage(w, r, applog.OpRender, err)
		return
	}

	s.render(w, r, http.StatusOK, "index.html", indexPage{
		Notice:    notices[r.URL.Query().Get("notice")],
		Year:      year,
		YearView:  yv,
		Upcoming:  upcoming,
		Occupancy: ov,
		Months:    months,
	})
}

// handleYearSummaryPartial renders the year totals and month cards.
func (s *Server) handleYearSummaryPartial(w http.ResponseWriter, r *http.Request) {
	year, _ := queryYearMonth(r.URL.Query(), s.now())
	yv, err := s.yearView(r, year)
	if err != nil {
		s.writeErrorPage(w, r, applog.OpRender, err)
		return
	}
	s.render(w, r, http.StatusOK, "year_summary.html", yv)
}

// handleOccupancyPartial renders the day by room grid of one month.
func (s *Server) handleOccupancyPartial(w http.ResponseWriter, r *http.Request) {
	year, month := queryYearMonth(r.URL.Query(), s.now())
	ov, err := s.occupancyView(r, year, month)
	if err != nil {
		s.writeErrorPage(w, r, applog.OpRender, err)
		return
	}
	s.render(w, r, http.StatusOK, "occupancy.html", ov)
}

func (s *Server) yearView(r *http.Request, year int) (yearView, error) {
	summary, err := s.svc.YearSummary(r.Context(), year)
	if err != nil {
		return yearView{}, err
	}
	// Selectable years: last year through two years ahead, plus the shown one.
	current := s.now().Year()
	years := []int{current - 1, current, current + 1, current + 2}
	if year < current-1 || year > current+2 {
		years = append(years, year)
	}
	return yearView{Summary: summary, Years: years}, nil
}

func (s *Server) occupancyView(r *http.Request, year, month int) (occupancyView, error) {
	occ, err := s.svc.Occupancy(r.Context(), year, month)
	if err != nil {
		return occupancyView{}, err
	}
	key := core.NewMonthKey(year, month)
	return occupancyView{
		Occupancy: occ,
		Name:      ledger.MonthName(key),
		Prev:      key.AddMonths(-1),
		Next:      key.Next(),
	}, nil
}

func (s *Server) handleNewForm(w http.ResponseWriter, r *http.Request) {
	blank := core.Reservation{
		Date: s.now().Format(core.DateLayout),
		Type: core.General,
	}
	s.renderForm(w, r, http.StatusOK, "新しい予約", "/reservations", blank, "")
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := s.svc.Get(r.Context(), id)
	if err != nil {
		s.writeErrorPage(w, r, applog.OpRead, err)
		return
	}
	s.renderForm(w, r, http.StatusOK, "予約を編集", "/reservations/"+url.PathEscape(id), res, "")
}

func (s *Server) handleFormCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	in := reservationFromForm(r.PostForm)
	created, err := s.svc.Create(r.Context(), in)
	if err != nil {
		s.formFailed(w, r, "新しい予約", "/reservations", in, applog.OpCreate, err)
		return
	}
	s.redirectToMonth(w, r, created, "created")
}

func (s *Server) handleFormUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	in := reservationFromForm(r.PostForm)
	updated, err := s.svc.Update(r.Context(), id, in)
	if err != nil {
		in.ID = id
		s.formFailed(w, r, "予約を編集", "/reservations/"+url.PathEscape(id), in, applog.OpUpdate, err)
		return
	}
	s.redirectToMonth(w, r, updated, "updated")
}

func (s *Server) handleFormDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeErrorPage(w, r, applog.OpDelete, err)
		return
	}
	http.Redirect(w, r, "/?notice=deleted", http.StatusSeeOther)
}

// formFailed shows validation problems on the form and other failures as an error page.
func (s *Server) formFailed(w http.ResponseWriter, r *http.Request, title, action string, in core.Reservation, op string, err error) {
	if errors.Is(err, core.ErrInvalidReservation) {
		s.renderForm(w, r, http.StatusUnprocessableEntity, title, action, in.Normalize(), err.Error())
		return
	}
	s.writeErrorPage(w, r, op, err)
}

func (s *Server) redirectToMonth(w http.ResponseWriter, r *http.Request, res core.Reservation, notice string) {
	target := "/?notice=" + notice
	if key, ok := res.MonthKey(); ok {
		target = "/?year=" + strconv.Itoa(key.Year()) +
			"&month=" + strconv.Itoa(key.Month()) +
			"&notice=" + notice + "#month-" + key.String()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) renderForm(w http.ResponseWriter, r *http.Request, status int, title, action string, res core.Reservation, problem string) {
	rows := append([]core.RoomAllocation(nil), res.Rooms...)
	for i := 0; i < blankRoomRows; i++ {
		rows = append(rows, core.RoomAllocation{})
	}
	s.render(w, r, status, "form.html", formPage{
		Title:       title,
		Action:      action,
		Error:       problem,
		Reservation: res,
		RoomRows:    rows,
		Types:       core.CustomerTypes(),
		Rooms:       core.DefaultRoomCatalog(),
	})
}
