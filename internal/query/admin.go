package query

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ooXavier/moowapp-server/internal/httpx"
	"github.com/ooXavier/moowapp-server/internal/modules"
)

// ModulesList serves /stats_modules_list: a flat {"0": "mod", "1": "mod",
// ...} object, unlike the [header, rows...] shape every other endpoint
// returns (grounded on stats_modules_list in moowapp_server.cpp, which
// iterates the module set writing bare "%d":"%s" pairs rather than
// reusing statsConstructResponse).
func (h *Handler) ModulesList(w http.ResponseWriter, r *http.Request) {
	f := h.parseForm(r)

	set, err := h.knownModules()
	if err != nil {
		set = modules.NewSet()
	}

	entries := make(Header, 0, set.Len())
	for i, name := range set.Names() {
		entries = append(entries, HeaderEntry{Key: strconv.Itoa(i), Value: name})
	}

	body, err := json.Marshal(entries)
	if err != nil {
		httpx.WriteMissingParam(w, "internal")
		return
	}
	httpx.WriteJSON(w, f.callback(), body)
}

// AdminDoMergeModules serves /stats_admin_do_mergemodules. The module is
// always removed from the live set; it is additionally recorded in
// modules-deleted only when mergein=="del" (stats_admin_do_mergemodules's
// other branch is a literal `/// \todo Do use merge` stub in the original —
// SPEC_FULL.md §12, "Admin module-merge semantics" — so no merge-into-another-module
// behavior exists to replicate).
func (h *Handler) AdminDoMergeModules(w http.ResponseWriter, r *http.Request) {
	f := h.parseForm(r)

	app, ok := f.required("module")
	if !ok {
		httpx.WriteMissingParam(w, "module")
		return
	}
	mergein, ok := f.required("mergein")
	if !ok {
		httpx.WriteMissingParam(w, "mergein")
		return
	}

	h.writer.Lock()
	defer h.writer.Unlock()

	if err := h.registry.Remove([]string{app}); err != nil {
		httpx.WriteMissingParam(w, "internal")
		return
	}
	if mergein == "del" {
		if err := h.registry.MarkDeleted([]string{app}); err != nil {
			httpx.WriteMissingParam(w, "internal")
			return
		}
	}

	deleted, err := h.registry.DeletedJoined()
	if err != nil {
		deleted = ""
	}

	body, _ := json.Marshal(deleted)
	httpx.WriteJSON(w, f.callback(), body)
}

// AdminListMergeModules serves /stats_admin_list_mergemodules. The
// original's stats_admin_list_mergemodules is a literal no-op stub
// (`/// \todo Use me or delete me`) that always returns `[{}]` regardless
// of input — preserved as-is rather than invented (SPEC_FULL.md §12,
// "Admin module-merge semantics").
func (h *Handler) AdminListMergeModules(w http.ResponseWriter, r *http.Request) {
	f := h.parseForm(r)
	httpx.WriteJSON(w, f.callback(), []byte(`[{}]`))
}
