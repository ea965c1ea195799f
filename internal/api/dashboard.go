package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/terraclean-dev/remwatch/internal/aggregate"
	"github.com/terraclean-dev/remwatch/internal/dataset"
	"github.com/terraclean-dev/remwatch/internal/filters"
	"github.com/terraclean-dev/remwatch/internal/provider"
	"github.com/terraclean-dev/remwatch/internal/ranking"
	"github.com/terraclean-dev/remwatch/internal/rotation"
)

type DashboardHandler struct {
	provider provider.Provider
	agg      *aggregate.Aggregator
	rank     *ranking.Engine
	sched    *rotation.Scheduler
}

func NewDashboardHandler(p provider.Provider, agg *aggregate.Aggregator, rank *ranking.Engine, sched *rotation.Scheduler) *DashboardHandler {
	return &DashboardHandler{provider: p, agg: agg, rank: rank, sched: sched}
}

type AgencyInfo struct {
	Key     string `json:"key"`
	Display string `json:"display"`
}

func (h *DashboardHandler) Agencies(w http.ResponseWriter, r *http.Request) {
	snap := h.provider.Current()
	if snap.Empty() {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"agencies": []AgencyInfo{},
			"no_data":  true,
		})
		return
	}
	keys := snap.Agencies()
	infos := make([]AgencyInfo, 0, len(keys))
	for _, k := range keys {
		infos = append(infos, AgencyInfo{Key: k, Display: dataset.DisplayAgencyName(k)})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"agencies": infos})
}

func (h *DashboardHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	report := h.agg.Report(h.provider.Current(), key)
	writeJSON(w, http.StatusOK, report)
}

type RankingsResponse struct {
	AgencyKey         string                    `json:"agency_key"`
	TopPerformers     []ranking.SitePerformance `json:"top_performers"`
	LaggingPerformers []ranking.SitePerformance `json:"lagging_performers"`
}

func (h *DashboardHandler) Rankings(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	snap := h.provider.Current()
	top := h.rank.Rankings(snap, snap.ByAgency(key))
	lagging := ranking.LaggingPerformers(top)

	if limit := queryInt(r, "limit"); limit > 0 {
		if limit < len(top) {
			top = top[:limit]
		}
		if limit < len(lagging) {
			lagging = lagging[:limit]
		}
	}

	writeJSON(w, http.StatusOK, RankingsResponse{
		AgencyKey:         key,
		TopPerformers:     top,
		LaggingPerformers: lagging,
	})
}

func (h *DashboardHandler) Lagging(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	snap := h.provider.Current()
	lagging := h.rank.LaggingByDeadline(snap, snap.ByAgency(key))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agency_key":          key,
		"lagging_by_deadline": lagging,
	})
}

func (h *DashboardHandler) FilterOptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sel := filters.Selection{
		Agencies: q["agency"],
		Clusters: q["cluster"],
	}
	opts := filters.Resolve(h.provider.Current(), sel)
	writeJSON(w, http.StatusOK, opts)
}

func (h *DashboardHandler) DisplayCurrent(w http.ResponseWriter, r *http.Request) {
	frame, ok := h.sched.Current()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no frame yet"})
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

func queryInt(r *http.Request, name string) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
