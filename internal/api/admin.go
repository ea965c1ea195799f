package api

import (
	"log/slog"
	"net/http"

	"github.com/terraclean-dev/remwatch/internal/provider"
)

type AdminHandler struct {
	provider provider.Provider
	logger   *slog.Logger
}

func NewAdminHandler(p provider.Provider, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{provider: p, logger: logger}
}

// Reload forces a synchronous dataset refresh. A failed reload keeps the
// previous snapshot and reports the error. The provider's swap hook announces
// the new snapshot on the event stream; this handler does not publish.
func (h *AdminHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.provider.Reload(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"status": "reload failed, previous snapshot retained",
			"error":  err.Error(),
		})
		return
	}

	snap := h.provider.Current()
	records := 0
	agencies := 0
	if snap != nil {
		records = len(snap.Records)
		agencies = len(snap.Agencies())
	}
	h.logger.Info("dataset reloaded by admin request", "records", records, "agencies", agencies)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "reloaded",
		"records":  records,
		"agencies": agencies,
	})
}
