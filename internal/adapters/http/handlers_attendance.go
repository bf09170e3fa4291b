package web

import (
	"fmt"
	"net/http"
	"strconv"

	"chapel/internal/application/listutil"
	"chapel/internal/application/orchestrators"
	"chapel/internal/application/projections"
	"chapel/internal/domain/attendance"
)

// handleGetRoster handles GET /api/attendance/roster?date=&type=
func (s *Server) handleGetRoster(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	roster, err := projections.QueryGetRoster(r.Context(), projections.GetRosterQuery{
		Date: q.Get("date"),
		Type: q.Get("type"),
	}, projections.GetRosterDeps{
		MemberStore:     s.stores.MemberStore,
		AttendanceStore: s.stores.AttendanceStore,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRosterResponse(roster))
}

// handleSaveRoster handles PUT /api/attendance/roster
func (s *Server) handleSaveRoster(w http.ResponseWriter, r *http.Request) {
	var req saveRosterRequest
	if err := strictDecode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := orchestrators.ExecuteSaveRoster(r.Context(), orchestrators.SaveRosterInput{
		Date:            req.Date,
		Type:            req.Type,
		Items:           toRosterItems(req.Items),
		ExpectedVersion: req.ExpectedVersion,
		ActorID:         identity(r).ID,
	}, orchestrators.SaveRosterDeps{
		AttendanceStore: s.stores.AttendanceStore,
		MemberStore:     s.stores.MemberStore,
		Metrics:         s.recorder,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saveRosterResponse{Changed: out.Changed, Version: out.Version})
}

// handleRelocate handles POST /api/attendance/relocate
func (s *Server) handleRelocate(w http.ResponseWriter, r *http.Request) {
	var req relocateRequest
	if err := strictDecode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	input := orchestrators.RelocateBucketInput{
		FromDate:        req.FromDate,
		FromType:        req.FromType,
		ToDate:          req.ToDate,
		ToType:          req.ToType,
		ExpectedVersion: req.ExpectedVersion,
		ActorID:         identity(r).ID,
	}
	if req.Items != nil {
		input.Items = toRosterItems(*req.Items)
	}

	out, err := orchestrators.ExecuteRelocateBucket(r.Context(), input, orchestrators.RelocateBucketDeps{
		AttendanceStore: s.stores.AttendanceStore,
		MemberStore:     s.stores.MemberStore,
		Metrics:         s.recorder,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, relocateResponse{
		MovedCount:  out.Moved,
		Deleted:     out.Deleted,
		FromVersion: out.FromVersion,
		ToVersion:   out.ToVersion,
	})
}

// handleHistory handles GET /api/attendance/history
// Staff see every member. Anyone may pass mine=1 to see only their own
// resolved member; a viewer with no member gets an empty list.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	viewer := identity(r)
	mine := q.Get("mine") == "1" || q.Get("mine") == "true"

	if !mine && !viewer.IsStaff() {
		writeJSONError(w, http.StatusForbidden, "forbidden")
		return
	}

	query := projections.HistoryQuery{
		From: q.Get("from"),
		To:   q.Get("to"),
		Type: q.Get("type"),
	}
	if raw := q.Get("member_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, r, fmt.Errorf("member_id: %w", attendance.ErrInvalidMember))
			return
		}
		query.MemberID = id
	}
	if page, ok := listutil.ParsePageParams(q); ok {
		query.Page = &page
	}

	if mine {
		m, found, err := projections.QueryResolveMember(r.Context(), viewer, projections.ResolveMemberDeps{
			MemberStore: s.stores.MemberStore,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !found {
			writeJSON(w, http.StatusOK, newHistoryResponse(nil, nil))
			return
		}
		query.MemberID = m.ID
	}

	result, err := projections.QueryHistory(r.Context(), query, projections.QueryHistoryDeps{
		AttendanceStore: s.stores.AttendanceStore,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newHistoryResponse(result.Entries, result.Page))
}
