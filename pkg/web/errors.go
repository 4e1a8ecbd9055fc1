package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/epnlabs/sitrep/pkg/situations"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("situation_not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleStoreError provides typed error handling for situation store errors.
func handleStoreError(c fiber.Ctx, err error) error {
	switch {
	case situations.IsSituationNotFound(err):
		return notFound(c, "situation not found")

	case situations.IsDuplicateSituation(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("duplicate_situation").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case situations.IsQueryError(err):
		return badRequest(c, err.Error())

	default:
		return internalError(c, err)
	}
}
