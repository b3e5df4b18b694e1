package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/procurement-sim/internal/model"
	"github.com/sells-group/procurement-sim/internal/session"
	"github.com/sells-group/procurement-sim/internal/store"
)

func (s *Server) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	var req session.BenchmarkRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	rep, err := s.sess.Benchmark(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleMitigation(w http.ResponseWriter, r *http.Request) {
	var req session.MitigationRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	rep, err := s.sess.Mitigation(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleWhatIf(w http.ResponseWriter, r *http.Request) {
	var req session.WhatIfRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	rep, err := s.sess.WhatIf(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := filterFromQuery(q.Get("loc"), q.Get("year_from"), q.Get("year_to"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	req := session.GroupsRequest{
		Engine:    model.Engine(q.Get("engine")),
		By:        q.Get("by"),
		Metric:    q.Get("metric"),
		Benchmark: q.Get("benchmark"),
		Rule:      q.Get("rule"),
		Filter:    f,
	}
	if t := q.Get("threshold"); t != "" {
		v, err := strconv.ParseFloat(t, 64)
		if err != nil {
			badRequest(w, "invalid threshold "+strconv.Quote(t))
			return
		}
		req.Threshold = &v
	}
	if req.By == "" {
		badRequest(w, "by is required")
		return
	}

	rep, err := s.sess.Groups(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handlePostGroups accepts the full grouping request, including the feature
// values the scenario engine simulates.
func (s *Server) handlePostGroups(w http.ResponseWriter, r *http.Request) {
	var req session.GroupsRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.By == "" {
		badRequest(w, "by is required")
		return
	}
	rep, err := s.sess.Groups(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleGaps(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := filterFromQuery(q.Get("loc"), q.Get("year_from"), q.Get("year_to"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	rep, err := s.sess.Gaps(r.Context(), splitList(q.Get("benchmarks")), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := filterFromQuery(q.Get("loc"), q.Get("year_from"), q.Get("year_to"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if q.Get("by") == "" {
		badRequest(w, "by is required")
		return
	}
	rep, err := s.sess.Status(r.Context(), session.StatusRequest{By: q.Get("by"), Benchmark: q.Get("benchmark"), Filter: f})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleImportance(w http.ResponseWriter, r *http.Request) {
	var top int
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(w, "invalid top "+strconv.Quote(v))
			return
		}
		top = n
	}
	rep, err := s.sess.Importance(top)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleDomain(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := filterFromQuery(q.Get("loc"), q.Get("year_from"), q.Get("year_to"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.sess.Domain(f))
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.CacheStats())
}

func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := filterFromQuery(q.Get("loc"), q.Get("year_from"), q.Get("year_to"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	s.sess.Invalidate(f)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	st := s.sess.Store()
	if st == nil {
		writeError(w, store.ErrNotFound)
		return
	}
	q := r.URL.Query()
	filter := store.RunFilter{
		Engine:      model.Engine(q.Get("engine")),
		Fingerprint: q.Get("fingerprint"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				badRequest(w, "invalid "+name+" "+strconv.Quote(v))
				return
			}
			*dst = n
		}
	}
	runs, err := st.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	st := s.sess.Store()
	if st == nil {
		writeError(w, store.ErrNotFound)
		return
	}
	run, err := st.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	st := s.sess.Store()
	if st == nil {
		writeError(w, store.ErrNotFound)
		return
	}
	if err := st.DeleteRun(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// filterFromQuery builds a ledger filter from a comma separated location
// list and an optional year range.
func filterFromQuery(locs, from, to string) (model.Filter, error) {
	f := model.Filter{Locations: splitList(locs)}
	var err error
	if from != "" {
		if f.YearFrom, err = strconv.Atoi(from); err != nil {
			return f, err
		}
	}
	if to != "" {
		if f.YearTo, err = strconv.Atoi(to); err != nil {
			return f, err
		}
	}
	return f, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
