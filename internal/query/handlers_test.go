package query

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ooXavier/moowapp-server/internal/keys"
	"github.com/ooXavier/moowapp-server/internal/modules"
	"github.com/ooXavier/moowapp-server/internal/store"
)

func newTestHandler(t *testing.T) (*Handler, *store.Store, *modules.Registry) {
	t.Helper()
	s, err := store.Open(store.Config{InMemory: true})
	require.NoError(t, err, "opening test store")
	t.Cleanup(func() { s.Close() })
	registry := modules.New(s, "")
	writer := &store.WriterMutex{}
	return NewHandler(s, registry, writer), s, registry
}

func TestDay_MissingParam(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/stats_app_day", nil)
	rr := httptest.NewRecorder()
	h.Day(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Missing parameter: mode", rr.Body.String())
}

func TestDay_SingleModuleSumsHourBuckets(t *testing.T) {
	h, s, _ := newTestHandler(t)

	date := "2011-08-19"
	require.NoError(t, s.Put(keys.Hour("calendar", "w", "1", date, "09"), "4"))
	require.NoError(t, s.Put(keys.Hour("calendar", "w", "1", date, "10"), "6"))

	midnight := time.Date(2011, time.August, 19, 0, 0, 0, 0, time.UTC).Unix()

	q := url.Values{}
	q.Set("mode", "single")
	q.Set("modules", "1")
	q.Set("dates", "1")
	q.Set("group", "w")
	q.Set("type", "1")
	q.Set("d_0", strconv.FormatInt(midnight, 10))
	q.Set("m_0", "calendar")

	req := httptest.NewRequest(http.MethodGet, "/stats_app_day?"+q.Encode(), nil)
	rr := httptest.NewRecorder()
	h.Day(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := rr.Body.String()
	require.Contains(t, body, `"calendar"`)
	require.Contains(t, body, `"9":4`)
	require.Contains(t, body, `"10":6`)
}

func TestModulesList_FlatObject(t *testing.T) {
	h, _, registry := newTestHandler(t)
	require.NoError(t, registry.AddAll([]string{"calendar", "agenda"}))

	req := httptest.NewRequest(http.MethodGet, "/stats_modules_list", nil)
	rr := httptest.NewRecorder()
	h.ModulesList(rr, req)

	body := rr.Body.String()
	require.Contains(t, body, `"0":"calendar"`)
	require.Contains(t, body, `"1":"agenda"`)
}

func TestAdminDoMergeModules_DelBranchTombstones(t *testing.T) {
	h, _, registry := newTestHandler(t)
	require.NoError(t, registry.AddAll([]string{"calendar"}))

	q := url.Values{}
	q.Set("module", "calendar")
	q.Set("mergein", "del")
	req := httptest.NewRequest(http.MethodGet, "/stats_admin_do_mergemodules?"+q.Encode(), nil)
	rr := httptest.NewRecorder()
	h.AdminDoMergeModules(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	set, err := registry.Load()
	require.NoError(t, err)
	require.False(t, set.Contains("calendar"), "expected calendar removed from live set")

	deleted, err := registry.Deleted()
	require.NoError(t, err)
	require.True(t, deleted.Contains("calendar"), "expected calendar tombstoned when mergein=del")
}

func TestAdminDoMergeModules_NonDelBranchOnlyRemoves(t *testing.T) {
	h, _, registry := newTestHandler(t)
	require.NoError(t, registry.AddAll([]string{"calendar"}))

	q := url.Values{}
	q.Set("module", "calendar")
	q.Set("mergein", "otherapp")
	req := httptest.NewRequest(http.MethodGet, "/stats_admin_do_mergemodules?"+q.Encode(), nil)
	rr := httptest.NewRecorder()
	h.AdminDoMergeModules(rr, req)

	set, err := registry.Load()
	require.NoError(t, err)
	require.False(t, set.Contains("calendar"), "expected calendar removed from live set regardless of mergein value")

	deleted, err := registry.Deleted()
	require.NoError(t, err)
	require.Equal(t, 0, deleted.Len(), "expected modules-deleted to stay empty when mergein != del")
}

func TestAdminListMergeModules_StubResponse(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/stats_admin_list_mergemodules", nil)
	rr := httptest.NewRecorder()
	h.AdminListMergeModules(rr, req)

	require.Equal(t, "[{}]", rr.Body.String())
}
