package simplifyspec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/bitechdev/SimplifySpec/pkg/cache"
	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/common/adapters/database"
	"github.com/bitechdev/SimplifySpec/pkg/metadata"
	"github.com/bitechdev/SimplifySpec/pkg/testmodels"
)

type fakeProcedures struct {
	calls []string
}

func (f *fakeProcedures) Call(_ context.Context, name string, params map[string]interface{}) ([]map[string]interface{}, error) {
	f.calls = append(f.calls, name)
	if name != "list_people" {
		return nil, common.NewParseError("unknown procedure %s", name)
	}
	return []map[string]interface{}{{"FirstName": "ann", "PMSystemID": params["id"]}}, nil
}

type fixture struct {
	t       *testing.T
	db      *bun.DB
	handler *Handler
	router  *mux.Router
	procs   *fakeProcedures
}

func resources() []Resource {
	return []Resource{
		{Name: "basicClasses", Model: &testmodels.BasicClass{}, SupportedMethods: AllOperations},
		{
			Name:             "childClasses",
			Model:            &testmodels.ChildClass{},
			SupportedMethods: AllOperations,
			LinkedObjects: []LinkedObject{
				{
					ParentResource:  "basicClasses",
					ParentModel:     &testmodels.BasicClass{},
					ParentName:      "basic_class",
					LinkingModel:    &testmodels.LinkingClass{},
					SubResourceName: "child_class",
				},
				{
					ParentResource:  "basicClasses",
					ParentModel:     &testmodels.BasicClass{},
					SubResourceName: "child_one",
					LivesOnParent:   true,
				},
			},
		},
		{
			Name:             "modelWithParentResources",
			Model:            &testmodels.ModelWithParentResource{},
			SupportedMethods: AllOperations,
			LinkedObjects: []LinkedObject{
				{ParentResource: "basicClasses", ParentModel: &testmodels.BasicClass{}, ParentName: "basic_class"},
			},
		},
		{Name: "metaDataClasses", Model: &testmodels.MetaDataClass{}, SupportedMethods: []Operation{OpGet, OpGetList}},
		{Name: "requestFieldSaveClasses", Model: &testmodels.RequestFieldSaveClass{}, SupportedMethods: AllOperations},
	}
}

func newFixture(t *testing.T, opts ...func(*Handler)) *fixture {
	t.Helper()
	db, err := testmodels.OpenSQLite(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	p := metadata.NewProvider(nil)
	require.NoError(t, testmodels.Register(p))
	h := NewHandlerWithBun(db, p)
	for _, res := range resources() {
		require.NoError(t, h.Register(res))
	}
	procs := &fakeProcedures{}
	h.SetProcedureRunner(procs)
	for _, opt := range opts {
		opt(h)
	}

	r := mux.NewRouter()
	SetupMuxRoutes(r, h, nil)
	return &fixture{t: t, db: db, handler: h, router: r, procs: procs}
}

func (f *fixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) interface{} {
	t.Helper()
	var out interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func object(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	out, ok := decode(t, rec).(map[string]interface{})
	require.True(t, ok, rec.Body.String())
	return out
}

func list(t *testing.T, rec *httptest.ResponseRecorder) []interface{} {
	t.Helper()
	out, ok := decode(t, rec).([]interface{})
	require.True(t, ok, rec.Body.String())
	return out
}

func (f *fixture) create(path string, body map[string]interface{}) int64 {
	f.t.Helper()
	rec := f.do(http.MethodPost, path, body)
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return int64(object(f.t, rec)["id"].(float64))
}

func TestCreateAndGet(t *testing.T) {
	f := newFixture(t)
	id := f.create("/basicClasses", map[string]interface{}{"name": "first", "excludeField": "hidden"})

	rec := f.do(http.MethodGet, fmt.Sprintf("/basicClasses/%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	obj := object(t, rec)
	assert.Equal(t, "first", obj["name"])
	assert.Contains(t, obj, "childOneId")
	assert.NotContains(t, obj, "excludeField")
}

func TestGetList(t *testing.T) {
	f := newFixture(t)
	f.create("/basicClasses", map[string]interface{}{"name": "a"})
	f.create("/basicClasses", map[string]interface{}{"name": "b"})

	rec := f.do(http.MethodGet, "/basicClasses", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, list(t, rec), 2)

	rec = f.do(http.MethodGet, "/basicClasses?page=1&pageSize=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := object(t, rec)
	assert.EqualValues(t, 2, page["count"])
	assert.Len(t, page["data"], 1)
}

func TestGetListCounts(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"a", "b", "c"} {
		f.create("/basicClasses", map[string]interface{}{"name": name})
	}

	tests := []struct {
		name  string
		query string
		count interface{}
		rows  int
	}{
		{"second page", "page=2&pageSize=2", float64(3), 1},
		{"page size zero", "page=1&pageSize=0", float64(3), 0},
		{"count only", "countOnly=true", float64(3), 0},
		{"count only with filter", "countOnly=true&filters=name__icontains=b", float64(1), 0},
		{"no count", "page=1&pageSize=2&noCount=true", nil, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodGet, "/basicClasses?"+tt.query, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			page := object(t, rec)
			require.Contains(t, page, "count")
			assert.Equal(t, tt.count, page["count"])
			data, ok := page["data"].([]interface{})
			require.True(t, ok, rec.Body.String())
			assert.Len(t, data, tt.rows)
		})
	}

	rec := f.do(http.MethodGet, "/basicClasses?page=1&pageSize=2&noCount=true", nil)
	assert.Contains(t, rec.Body.String(), `"count":null`)
}

func TestGetMissing(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/basicClasses/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, common.MsgNotFound, object(t, rec)["errorMessage"])
}

func TestMeta(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/basicClasses?meta=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, object(t, rec), "fields")
}

func TestValidationErrors(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/basicClasses", map[string]interface{}{"name": strings.Repeat("x", 20)})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := object(t, rec)
	assert.Equal(t, common.MsgParseError, body["errorMessage"])
	assert.Contains(t, body["fieldErrors"], "name")

	rec = f.do(http.MethodPost, "/basicClasses", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/basicClasses", map[string]interface{}{"id": 4, "name": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	id := f.create("/basicClasses", map[string]interface{}{"name": "before"})
	path := fmt.Sprintf("/basicClasses/%d", id)

	rec := f.do(http.MethodPut, path, map[string]interface{}{"name": "after"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "after", object(t, rec)["name"])

	rec = f.do(http.MethodPut, "/basicClasses/99", map[string]interface{}{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, path, nil).Code)
}

func TestUnsupportedOperation(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/metaDataClasses", map[string]interface{}{"choice": "one"})
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, common.MsgUnsupportedMethod, object(t, rec)["errorMessage"])

	resp := f.handler.Handle(context.Background(), Request{
		Operation: OpGet, Resource: "metaDataClasses", ParentResource: "basicClasses", ParentPK: "1",
	})
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Status)

	resp = f.handler.Handle(context.Background(), Request{Operation: OpGet, Resource: "unknown"})
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestLinkingSubResource(t *testing.T) {
	f := newFixture(t)
	parent := f.create("/basicClasses", map[string]interface{}{"name": "parent"})
	other := f.create("/basicClasses", map[string]interface{}{"name": "other"})
	base := fmt.Sprintf("/basicClasses/%d/childClasses", parent)
	child := f.create(base, map[string]interface{}{"name": "kid"})

	rec := f.do(http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	items := list(t, rec)
	require.Len(t, items, 1)
	assert.Equal(t, "kid", items[0].(map[string]interface{})["name"])

	rec = f.do(http.MethodGet, fmt.Sprintf("/basicClasses/%d/childClasses", other), nil)
	assert.Empty(t, list(t, rec))

	item := fmt.Sprintf("%s/%d", base, child)
	rec = f.do(http.MethodGet, item, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "kid", object(t, rec)["name"])
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, fmt.Sprintf("/basicClasses/%d/childClasses/%d", other, child), nil).Code)

	rec = f.do(http.MethodDelete, item+"?deleteLinkOnly=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, item, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, fmt.Sprintf("/childClasses/%d", child), nil).Code)

	n, err := f.db.NewSelect().Model((*testmodels.LinkingClass)(nil)).Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExistingObjectLinkedToParent(t *testing.T) {
	f := newFixture(t)
	parent := f.create("/basicClasses", map[string]interface{}{"name": "parent"})
	child := f.create("/childClasses", map[string]interface{}{"name": "kid"})
	base := fmt.Sprintf("/basicClasses/%d/childClasses", parent)

	rec := f.do(http.MethodPost, base, map[string]interface{}{"id": child, "name": "renamed"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	items := list(t, f.do(http.MethodGet, base, nil))
	require.Len(t, items, 1)
	assert.Equal(t, "renamed", items[0].(map[string]interface{})["name"])
	assert.Len(t, list(t, f.do(http.MethodGet, "/childClasses", nil)), 1)
}

func TestLivesOnParent(t *testing.T) {
	f := newFixture(t)
	parent := f.create("/basicClasses", map[string]interface{}{"name": "parent"})
	path := fmt.Sprintf("/basicClasses/%d/childOne", parent)

	rec := f.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, object(t, rec))

	child := f.create(path, map[string]interface{}{"name": "only"})

	rec = f.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "only", object(t, rec)["name"])

	var stored testmodels.BasicClass
	require.NoError(t, f.db.NewSelect().Model(&stored).Where("id = ?", parent).Scan(context.Background()))
	require.NotNil(t, stored.ChildOneID)
	assert.Equal(t, child, *stored.ChildOneID)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/basicClasses/99/childOne", nil).Code)
}

func TestParentFromResourceMapping(t *testing.T) {
	f := newFixture(t)
	parent := f.create("/basicClasses", map[string]interface{}{"name": "parent"})
	other := f.create("/basicClasses", map[string]interface{}{"name": "other"})
	base := fmt.Sprintf("/basicClasses/%d/modelWithParentResources", parent)

	f.create(base, map[string]interface{}{"textField": "t"})

	items := list(t, f.do(http.MethodGet, base, nil))
	require.Len(t, items, 1)
	assert.EqualValues(t, parent, items[0].(map[string]interface{})["basicClassId"])
	assert.Empty(t, list(t, f.do(http.MethodGet, fmt.Sprintf("/basicClasses/%d/modelWithParentResources", other), nil)))
}

func TestLinksParameter(t *testing.T) {
	f := newFixture(t)
	child := f.create("/childClasses", map[string]interface{}{"name": "kid"})
	parent := f.create(fmt.Sprintf("/basicClasses?links=linkingClasses__childClass=%d", child), map[string]interface{}{"name": "parent"})

	items := list(t, f.do(http.MethodGet, fmt.Sprintf("/basicClasses/%d/childClasses", parent), nil))
	require.Len(t, items, 1)

	rec := f.do(http.MethodPost, "/basicClasses?links=broken", map[string]interface{}{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, list(t, f.do(http.MethodGet, "/basicClasses", nil)), 1)
}

func TestRequestFieldsSaved(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/requestFieldSaveClasses", map[string]interface{}{})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, http.MethodPost, object(t, rec)["method"])
}

func TestResponseCache(t *testing.T) {
	c := cache.NewCache(cache.NewMemoryProvider(&cache.Options{DefaultTTL: time.Minute}))
	f := newFixture(t, func(h *Handler) { h.SetCache(c) })
	f.create("/childClasses", map[string]interface{}{"name": "a"})

	first := f.do(http.MethodGet, "/childClasses", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Empty(t, first.Header().Get("Hit"))

	second := f.do(http.MethodGet, "/childClasses", nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "1", second.Header().Get("Hit"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	f.create("/childClasses", map[string]interface{}{"name": "b"})
	third := f.do(http.MethodGet, "/childClasses", nil)
	assert.Empty(t, third.Header().Get("Hit"))
	assert.Len(t, list(t, third), 2)

	// metaDataClass has no cache ttl
	f.do(http.MethodGet, "/metaDataClasses", nil)
	assert.Empty(t, f.do(http.MethodGet, "/metaDataClasses", nil).Header().Get("Hit"))
}

func TestProcedures(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, ProceduresPath, map[string]interface{}{"spName": "list_people", "id": 7})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rows := list(t, rec)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]interface{})
	assert.Equal(t, "ann", row["firstName"])
	assert.EqualValues(t, 7, row["pmSystemId"])

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, ProceduresPath, map[string]interface{}{"spName": "nope"}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, ProceduresPath, map[string]interface{}{}).Code)
	assert.Equal(t, []string{"list_people", "nope"}, f.procs.calls)
}

func TestCORS(t *testing.T) {
	f := newFixture(t, func(h *Handler) { h.SetCORS(common.DefaultCORSConfig()) })
	rec := f.do(http.MethodOptions, "/basicClasses", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRegisterRejectsInvalidResources(t *testing.T) {
	h := NewHandler(nil, metadata.NewProvider(nil))
	assert.Error(t, h.Register(Resource{Model: &testmodels.BasicClass{}}))
	require.NoError(t, h.Register(Resource{Name: "basicClasses", Model: &testmodels.BasicClass{}}))
	assert.Error(t, h.Register(Resource{Name: "basicClasses", Model: &testmodels.BasicClass{}}))

	err := h.Register(Resource{
		Name:          "childClasses",
		Model:         &testmodels.ChildClass{},
		LinkedObjects: []LinkedObject{{ParentResource: "basicClasses"}},
	})
	var ce *common.UnsupportedConfigurationError
	assert.ErrorAs(t, err, &ce)

	err = h.Register(Resource{
		Name:          "childClasses",
		Model:         &testmodels.ChildClass{},
		LinkedObjects: []LinkedObject{{ParentResource: "basicClasses", LivesOnParent: true, SubResourceName: "child_one"}},
	})
	assert.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"basicClasses"}, h.Resources())
}

func TestReadWriteConnections(t *testing.T) {
	replica, err := testmodels.OpenSQLite(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = replica.Close() })

	f := newFixture(t, func(h *Handler) {
		primary := h.db
		h.SetDatabaseResolver(func(name string) (common.Database, error) {
			switch name {
			case "primary":
				return primary, nil
			case "replica":
				return database.NewBunAdapter(replica), nil
			}
			return nil, fmt.Errorf("no connection %s", name)
		})
		require.NoError(t, h.Register(Resource{
			Name:             "replicated",
			Model:            &testmodels.BasicClass{},
			SupportedMethods: AllOperations,
			ReadDB:           "replica",
			WriteDB:          "primary",
		}))
		require.NoError(t, h.Register(Resource{
			Name:             "misconfigured",
			Model:            &testmodels.BasicClass{},
			SupportedMethods: AllOperations,
			ReadDB:           "archive",
		}))
	})

	id := f.create("/replicated", map[string]interface{}{"name": "written"})

	rec := f.do(http.MethodGet, "/basicClasses", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, list(t, rec), 1, "write went to the primary")

	rec = f.do(http.MethodGet, "/replicated", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, list(t, rec), "reads come from the replica")

	rec = f.do(http.MethodGet, fmt.Sprintf("/replicated/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/misconfigured", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, common.MsgUnsupportedConfig, object(t, rec)["errorMessage"])
}
