package server

import (
	"potential/internal/models"
	"potential/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetExperts handles GET /api/experts (published directory)
func (s *Server) GetExperts(c *fiber.Ctx) error {
	page := parsePagination(c, 20)

	profiles, err := s.expertService.ListPublished(c.Context(), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(profiles)
}

// GetExpert handles GET /api/experts/:id
func (s *Server) GetExpert(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	profile, err := s.expertService.GetProfile(c.Context(), id)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(profile)
}

// GetMyExpertProfile handles GET /api/experts/me
func (s *Server) GetMyExpertProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	profile, err := s.expertService.GetProfileByUser(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(profile)
}

// UpsertMyExpertProfile handles PUT /api/experts/me. Creating or editing a
// profile always leaves it in draft; publication is an admin action.
func (s *Server) UpsertMyExpertProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req struct {
		Headline    string   `json:"headline"`
		Specialties []string `json:"specialties"`
		Career      string   `json:"career"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	profile, err := s.expertService.UpsertProfile(c.Context(), service.ExpertProfileInput{
		UserID:      userID,
		Headline:    req.Headline,
		Specialties: req.Specialties,
		Career:      req.Career,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(profile)
}

// RequestCollaboration handles POST /api/experts/:id/collaborations
func (s *Server) RequestCollaboration(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	expertID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Message string `json:"message"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	request, err := s.expertService.RequestCollaboration(c.Context(), userID, expertID, req.Message)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(request)
}

// GetIncomingCollaborations handles GET /api/collaborations/incoming
// (requests addressed to the caller's expert profile).
func (s *Server) GetIncomingCollaborations(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	page := parsePagination(c, 20)

	requests, err := s.expertService.ListCollaborationsForExpert(c.Context(), userID, page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(requests)
}

// GetOutgoingCollaborations handles GET /api/collaborations/outgoing
func (s *Server) GetOutgoingCollaborations(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	page := parsePagination(c, 20)

	requests, err := s.expertService.ListCollaborationsForRequester(c.Context(), userID, page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(requests)
}

// AcceptCollaboration handles POST /api/collaborations/:id/accept
func (s *Server) AcceptCollaboration(c *fiber.Ctx) error {
	return s.answerCollaboration(c, true)
}

// DeclineCollaboration handles POST /api/collaborations/:id/decline
func (s *Server) DeclineCollaboration(c *fiber.Ctx) error {
	return s.answerCollaboration(c, false)
}

func (s *Server) answerCollaboration(c *fiber.Ctx, accept bool) error {
	userID := c.Locals("userID").(uint)
	requestID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	request, err := s.expertService.AnswerCollaboration(c.Context(), userID, requestID, accept)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(request)
}

// GetAllExperts handles GET /api/admin/experts (all statuses)
func (s *Server) GetAllExperts(c *fiber.Ctx) error {
	page := parsePagination(c, 20)

	profiles, err := s.expertService.ListAll(c.Context(), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(profiles)
}

// SetExpertStatus handles POST /api/admin/experts/:id/status
func (s *Server) SetExpertStatus(c *fiber.Ctx) error {
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

	profile, err := s.expertService.SetStatus(c.Context(), id, req.Status)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(profile)
}
