package web_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epnlabs/sitrep/pkg/models"
	"github.com/epnlabs/sitrep/pkg/situations/memory"
	"github.com/epnlabs/sitrep/pkg/web"
)

func setupApp(t *testing.T) (*fiber.App, *memory.Store) {
	t.Helper()

	store := memory.NewStore(slog.New(slog.NewTextHandler(io.Discard, nil)))

	app := fiber.New()
	web.NewAPIHandlers(store, validator.New()).Register(app)

	return app, store
}

func seedSituation(t *testing.T, store *memory.Store) *models.Situation {
	t.Helper()

	situation := models.NewSituation("ResponseTime", models.SeverityHigh)
	situation.Subject = "orders"
	situation.SituationProperties[models.InternalPropertyPrefix+"duration"] = "500"

	require.NoError(t, store.Store(context.Background(), situation))

	return situation
}

func postJSON(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func TestGetSituations(t *testing.T) {
	t.Parallel()

	app, store := setupApp(t)
	seedSituation(t, store)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/situations", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Situations []*models.Situation `json:"situations"`
		Pagination struct {
			Offset   int `json:"offset"`
			MaxCount int `json:"max_count"`
		} `json:"pagination"`
	}

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Len(t, payload.Situations, 1)
	assert.Equal(t, "ResponseTime", payload.Situations[0].Type)
	assert.Equal(t, "500", payload.Situations[0].SituationProperties["duration"])
	assert.Equal(t, 100, payload.Pagination.MaxCount)
}

func TestGetSituations_Filtered(t *testing.T) {
	t.Parallel()

	app, store := setupApp(t)
	seedSituation(t, store)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet,
		"/situations?type=SLAViolation", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Situations []*models.Situation `json:"situations"`
	}

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Empty(t, payload.Situations)
}

func TestGetSituations_PropertyPredicate(t *testing.T) {
	t.Parallel()

	app, store := setupApp(t)
	seeded := seedSituation(t, store)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet,
		"/situations?property=duration:500", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Situations []*models.Situation `json:"situations"`
	}

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Len(t, payload.Situations, 1)
	assert.Equal(t, seeded.ID, payload.Situations[0].ID)
}

func TestGetSituations_InvalidQuery(t *testing.T) {
	t.Parallel()

	app, _ := setupApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet,
		"/situations?severity=urgent", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet,
		"/situations?from=yesterday", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet,
		"/situations?property=durationonly", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSituation(t *testing.T) {
	t.Parallel()

	app, store := setupApp(t)
	seeded := seedSituation(t, store)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/situations/"+seeded.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got models.Situation

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, seeded.ID, got.ID)
}

func TestGetSituation_NotFound(t *testing.T) {
	t.Parallel()

	app, _ := setupApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/situations/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAssignAndUnassign(t *testing.T) {
	t.Parallel()

	app, store := setupApp(t)
	seeded := seedSituation(t, store)

	resp := postJSON(t, app, "/situations/"+seeded.ID+"/assign", `{"user_name": "alice"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	got, err := store.GetSituation(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.AssignedTo())

	resp = postJSON(t, app, "/situations/"+seeded.ID+"/unassign", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	got, err = store.GetSituation(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Empty(t, got.AssignedTo())
}

func TestAssign_ValidationFailure(t *testing.T) {
	t.Parallel()

	app, store := setupApp(t)
	seeded := seedSituation(t, store)

	resp := postJSON(t, app, "/situations/"+seeded.ID+"/assign", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateResolutionState(t *testing.T) {
	t.Parallel()

	app, store := setupApp(t)
	seeded := seedSituation(t, store)

	resp := postJSON(t, app, "/situations/"+seeded.ID+"/resolution", `{"state": "resolved"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	got, err := store.GetSituation(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionResolved, got.ResolutionState())

	resp = postJSON(t, app, "/situations/"+seeded.ID+"/resolution", `{"state": "fixed"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecordResubmit(t *testing.T) {
	t.Parallel()

	app, store := setupApp(t)
	seeded := seedSituation(t, store)

	resp := postJSON(t, app, "/situations/"+seeded.ID+"/resubmit",
		`{"user_name": "bob", "result": "failure", "error_message": "timeout"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	got, err := store.GetSituation(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResubmitResultError, got.Properties[models.ResubmitResultProperty])
	assert.Equal(t, "timeout", got.Properties[models.ResubmitErrorMessageProperty])

	resp = postJSON(t, app, "/situations/"+seeded.ID+"/resubmit",
		`{"user_name": "bob", "result": "success"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	got, err = store.GetSituation(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResubmitResultSuccess, got.Properties[models.ResubmitResultProperty])
	assert.NotContains(t, got.Properties, models.ResubmitErrorMessageProperty)
}

func TestDeleteSituation(t *testing.T) {
	t.Parallel()

	app, store := setupApp(t)
	seeded := seedSituation(t, store)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/situations/"+seeded.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/situations/"+seeded.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteSituations_ReturnsCount(t *testing.T) {
	t.Parallel()

	app, store := setupApp(t)
	seedSituation(t, store)
	seedSituation(t, store)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete,
		"/situations?type=ResponseTime", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload web.DeleteResponse

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, 2, payload.Deleted)
}
