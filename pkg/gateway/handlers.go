package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	lierrors "github.com/mintlaunch/launchindex/pkg/errors"
	"github.com/mintlaunch/launchindex/pkg/index"
	"github.com/mintlaunch/launchindex/pkg/logging"
)

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (g *Gateway) handleHome(w http.ResponseWriter, r *http.Request) {
	offset := intQuery(r, "offset", 0)
	limit := intQuery(r, "limit", 20)

	data, err := g.router.HomePage(r.Context(), offset, limit)
	if err != nil {
		g.log.ComponentError(logging.ComponentGateway, "home page query failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "home page query failed")
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (g *Gateway) handleCards(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Addresses []string `json:"addresses"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(req.Addresses) == 0 {
		writeError(w, http.StatusBadRequest, "addresses are required")
		return
	}

	cards, err := g.router.ProjectCards(r.Context(), req.Addresses)
	if err != nil {
		g.log.ComponentError(logging.ComponentGateway, "card batch query failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "card batch query failed")
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (g *Gateway) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User      string   `json:"user"`
		Instances []string `json:"instances"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	// With no explicit instance list, scan the user's positions across
	// everything the local index knows.
	if len(req.Instances) == 0 {
		entities, err := g.store.GetAllProjects(r.Context(), 500, 0)
		if err == nil {
			for _, e := range entities {
				req.Instances = append(req.Instances, e.Address)
			}
		}
	}

	data, err := g.router.Portfolio(r.Context(), req.User, req.Instances)
	if err != nil {
		g.log.ComponentError(logging.ComponentGateway, "portfolio query failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "portfolio query failed")
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (g *Gateway) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	sortBy := r.URL.Query().Get("sort_by")
	if sortBy == "" {
		sortBy = "tvl"
	}
	limit := intQuery(r, "limit", 10)

	rows, err := g.router.VaultLeaderboard(r.Context(), sortBy, limit)
	if err != nil {
		g.log.ComponentError(logging.ComponentGateway, "leaderboard query failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "leaderboard query failed")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleSearch serves the local index directly; no network path involved.
func (g *Gateway) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	f := filterFromQuery(r)
	if q == "" && f == (index.Filter{}) {
		writeError(w, http.StatusBadRequest, "q or a filter field is required")
		return
	}
	limit := intQuery(r, "limit", 50)

	var addrs []string
	var err error
	if f != (index.Filter{}) {
		addrs, err = g.store.FilterBy(r.Context(), f, limit)
	} else {
		addrs, err = g.store.Search(r.Context(), q, limit)
	}
	if err != nil {
		g.log.ComponentError(logging.ComponentGateway, "index search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "index search failed")
		return
	}
	if addrs == nil {
		addrs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"addresses": addrs})
}

func (g *Gateway) handleProjects(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 50)
	offset := intQuery(r, "offset", 0)

	entities, err := g.store.GetAllProjects(r.Context(), limit, offset)
	if err != nil {
		g.log.ComponentError(logging.ComponentGateway, "project list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "project list failed")
		return
	}
	if entities == nil {
		entities = []index.IndexedEntity{}
	}
	writeJSON(w, http.StatusOK, entities)
}

func (g *Gateway) handleProject(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	entity, err := g.store.GetProject(r.Context(), address)
	if err != nil {
		g.log.ComponentError(logging.ComponentGateway, "project lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "project lookup failed")
		return
	}
	if entity == nil {
		writeError(w, http.StatusNotFound, lierrors.NewNotFoundError("project", address).Message())
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

func (g *Gateway) handleSync(w http.ResponseWriter, r *http.Request) {
	res, err := g.engine.Sync(r.Context())
	if err != nil {
		g.log.ComponentError(logging.ComponentGateway, "sync failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "sync failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	cp, err := g.store.Checkpoint(r.Context())
	if err != nil {
		g.log.ComponentError(logging.ComponentGateway, "checkpoint read failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "checkpoint read failed")
		return
	}
	count, err := g.store.ProjectCount(r.Context())
	if err != nil {
		count = 0
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"router_state":       g.router.State().String(),
		"last_indexed_block": cp.LastIndexedBlock,
		"index_mode":         cp.Mode,
		"project_count":      count,
		"storage_supported":  g.store.IsSupported(),
		"syncing":            g.engine.Syncing(),
	})
}

func intQuery(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func filterFromQuery(r *http.Request) index.Filter {
	q := r.URL.Query()
	return index.Filter{
		ContractType: q.Get("contract_type"),
		Vault:        q.Get("vault"),
		Creator:      q.Get("creator"),
		Factory:      q.Get("factory"),
	}
}
