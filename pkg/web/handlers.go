// Package web provides the REST API for situation query and triage.
package web

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/epnlabs/sitrep/pkg/models"
	"github.com/epnlabs/sitrep/pkg/situations"
)

type APIHandlers struct {
	store     situations.Store
	validator *validator.Validate
}

func NewAPIHandlers(store situations.Store, validate *validator.Validate) *APIHandlers {
	return &APIHandlers{
		store:     store,
		validator: validate,
	}
}

// Register mounts the situation routes on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/situations", h.GetSituations)
	app.Get("/situations/:id", h.GetSituation)
	app.Delete("/situations", h.DeleteSituations)
	app.Delete("/situations/:id", h.DeleteSituation)
	app.Post("/situations/:id/assign", h.AssignSituation)
	app.Post("/situations/:id/unassign", h.UnassignSituation)
	app.Post("/situations/:id/resolution", h.UpdateResolutionState)
	app.Post("/situations/:id/resubmit", h.RecordResubmit)
}

func (h *APIHandlers) GetSituations(c fiber.Ctx) error {
	query, err := parseQuery(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	matched, err := h.store.GetSituations(c.Context(), query)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(fiber.Map{
		"situations": matched,
		"pagination": fiber.Map{
			"offset":    query.Offset,
			"max_count": query.Limit(),
		},
	})
}

func (h *APIHandlers) GetSituation(c fiber.Ctx) error {
	situation, err := h.store.GetSituation(c.Context(), c.Params("id"))
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(situation)
}

func (h *APIHandlers) DeleteSituation(c fiber.Ctx) error {
	err := h.store.Delete(c.Context(), &models.Situation{ID: c.Params("id")})
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DeleteSituations(c fiber.Ctx) error {
	query, err := parseQuery(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	deleted, err := h.store.DeleteMatching(c.Context(), query)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(DeleteResponse{Deleted: deleted})
}

func (h *APIHandlers) AssignSituation(c fiber.Ctx) error {
	var req AssignRequest

	err := c.Bind().Body(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	err = h.validator.Struct(&req)
	if err != nil {
		return badRequest(c, err.Error())
	}

	err = h.store.AssignSituation(c.Context(), c.Params("id"), req.UserName)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) UnassignSituation(c fiber.Ctx) error {
	err := h.store.UnassignSituation(c.Context(), c.Params("id"))
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) UpdateResolutionState(c fiber.Ctx) error {
	var req ResolutionRequest

	err := c.Bind().Body(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	err = h.validator.Struct(&req)
	if err != nil {
		return badRequest(c, err.Error())
	}

	err = h.store.UpdateResolutionState(c.Context(), c.Params("id"), models.ResolutionState(req.State))
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) RecordResubmit(c fiber.Ctx) error {
	var req ResubmitRequest

	err := c.Bind().Body(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	err = h.validator.Struct(&req)
	if err != nil {
		return badRequest(c, err.Error())
	}

	id := c.Params("id")

	if req.Result == "success" {
		err = h.store.RecordSuccessfulResubmit(c.Context(), id, req.UserName)
	} else {
		err = h.store.RecordResubmitFailure(c.Context(), id, req.ErrorMessage, req.UserName)
	}

	if err != nil {
		return handleStoreError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// parseQuery maps query parameters onto the structured situation query.
// Property predicates use repeated property=key:value parameters.
func parseQuery(c fiber.Ctx) (*situations.Query, error) {
	query := &situations.Query{
		ID:              c.Query("id"),
		Type:            c.Query("type"),
		Severity:        models.Severity(c.Query("severity")),
		ResolutionState: models.ResolutionState(c.Query("resolution_state")),
		AssignedTo:      c.Query("assigned_to"),
	}

	if fromStr := c.Query("from"); fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return nil, err
		}

		query.From = from
	}

	if toStr := c.Query("to"); toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return nil, err
		}

		query.To = to
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		query.Offset = offset
	}

	if maxStr := c.Query("max_count"); maxStr != "" {
		maxCount, err := strconv.Atoi(maxStr)
		if err != nil {
			return nil, err
		}

		query.MaxCount = maxCount
	}

	for _, pair := range strings.Split(c.Query("property"), ",") {
		if pair == "" {
			continue
		}

		key, value, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, &situations.QueryError{Field: "property", Message: "expected key:value, got " + pair}
		}

		if query.Properties == nil {
			query.Properties = map[string]string{}
		}

		query.Properties[key] = value
	}

	return query, nil
}
