package api

import "net/http"

// ListAuditEvents handles GET /audit. Events are returned newest first.
func (a *API) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	if a.audit.store == nil {
		writeError(w, http.StatusNotFound, "audit storage is not enabled")
		return
	}

	events, err := a.audit.store.List()
	if err != nil {
		writeInternalError(w, "failed to list audit events", err)
		return
	}

	limit, offset := parsePagination(r)
	start, end, meta := paginateSlice(len(events), limit, offset)

	writeJSON(w, http.StatusOK, ListAuditEventsResponse{
		Events: events[start:end],
		Meta:   meta,
	})
}
