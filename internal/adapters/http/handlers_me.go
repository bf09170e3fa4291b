package web

import (
	"net/http"

	"chapel/internal/application/projections"
)

func (s *Server) personalQuery(r *http.Request) projections.PersonalStatsQuery {
	q := r.URL.Query()
	return projections.PersonalStatsQuery{
		Identity: identity(r),
		Range:    q.Get("range"),
		Type:     q.Get("type"),
		Year:     q.Get("year"),
		Date:     q.Get("date"),
	}
}

func (s *Server) personalDeps() projections.PersonalStatsDeps {
	return projections.PersonalStatsDeps{
		MemberStore:     s.stores.MemberStore,
		AttendanceStore: s.stores.AttendanceStore,
		Now:             s.opts.Now,
		Location:        s.opts.Location,
	}
}

// handleMySummary handles GET /api/me/attendance/summary?range=&type=
func (s *Server) handleMySummary(w http.ResponseWriter, r *http.Request) {
	result, err := projections.QueryPersonalSummary(r.Context(), s.personalQuery(r), s.personalDeps())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleMyStreaks handles GET /api/me/attendance/streaks?range=&type=
func (s *Server) handleMyStreaks(w http.ResponseWriter, r *http.Request) {
	result, err := projections.QueryPersonalStreaks(r.Context(), s.personalQuery(r), s.personalDeps())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleMyMonths handles GET /api/me/attendance/months?range=&type=
func (s *Server) handleMyMonths(w http.ResponseWriter, r *http.Request) {
	result, err := projections.QueryPersonalMonths(r.Context(), s.personalQuery(r), s.personalDeps())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleMyHeatmap handles GET /api/me/attendance/heatmap?year=&type=
func (s *Server) handleMyHeatmap(w http.ResponseWriter, r *http.Request) {
	result, err := projections.QueryPersonalHeatmap(r.Context(), s.personalQuery(r), s.personalDeps())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleMyDay handles GET /api/me/attendance/day?date=&type=
func (s *Server) handleMyDay(w http.ResponseWriter, r *http.Request) {
	result, err := projections.QueryPersonalDay(r.Context(), s.personalQuery(r), s.personalDeps())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
