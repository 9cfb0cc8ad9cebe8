package server

import (
	"time"

	"potential/internal/models"
	"potential/internal/service"

	"github.com/gofiber/fiber/v2"
)

type programRequest struct {
	Title        string     `json:"title"`
	Organization string     `json:"organization"`
	Description  string     `json:"description"`
	ApplyURL     string     `json:"apply_url"`
	OpensAt      *time.Time `json:"opens_at,omitempty"`
	ClosesAt     *time.Time `json:"closes_at,omitempty"`
}

func (r programRequest) toInput() service.ProgramInput {
	in := service.ProgramInput{
		Title:        r.Title,
		Organization: r.Organization,
		Description:  r.Description,
		ApplyURL:     r.ApplyURL,
	}
	if r.OpensAt != nil {
		in.OpensAt = *r.OpensAt
	}
	if r.ClosesAt != nil {
		in.ClosesAt = *r.ClosesAt
	}
	return in
}

// GetPrograms handles GET /api/programs (published catalog)
func (s *Server) GetPrograms(c *fiber.Ctx) error {
	page := parsePagination(c, 20)

	programs, err := s.programService.ListPublished(c.Context(), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(programs)
}

// GetProgram handles GET /api/programs/:id
func (s *Server) GetProgram(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	program, err := s.programService.GetProgram(c.Context(), id)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(program)
}

// GetAllPrograms handles GET /api/admin/programs (drafts and archived included)
func (s *Server) GetAllPrograms(c *fiber.Ctx) error {
	page := parsePagination(c, 20)

	programs, err := s.programService.ListAll(c.Context(), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(programs)
}

// CreateProgram handles POST /api/admin/programs
func (s *Server) CreateProgram(c *fiber.Ctx) error {
	var req programRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	program, err := s.programService.CreateProgram(c.Context(), req.toInput())
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(program)
}

// UpdateProgram handles PUT /api/admin/programs/:id
func (s *Server) UpdateProgram(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req programRequest
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	program, err := s.programService.UpdateProgram(c.Context(), id, req.toInput())
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(program)
}

// SetProgramStatus handles POST /api/admin/programs/:id/status
func (s *Server) SetProgramStatus(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Status string `json:"status"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	program, err := s.programService.SetStatus(c.Context(), id, req.Status)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(program)
}
