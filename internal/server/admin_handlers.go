package server

import (
	"potential/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetPendingMembers handles GET /api/admin/members/pending
func (s *Server) GetPendingMembers(c *fiber.Ctx) error {
	page := parsePagination(c, 20)

	members, err := s.userService.ListPendingMembers(c.Context(), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(members)
}

// ApproveMember handles POST /api/admin/members/:id/approve
func (s *Server) ApproveMember(c *fiber.Ctx) error {
	return s.setMemberApproval(c, models.ApprovalApproved)
}

// RejectMember handles POST /api/admin/members/:id/reject
func (s *Server) RejectMember(c *fiber.Ctx) error {
	return s.setMemberApproval(c, models.ApprovalRejected)
}

func (s *Server) setMemberApproval(c *fiber.Ctx, approval string) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.SetApproval(c.Context(), id, approval)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(user)
}

// SetMemberRole handles POST /api/admin/members/:id/role
func (s *Server) SetMemberRole(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Role string `json:"role"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.SetRole(c.Context(), id, req.Role)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(user)
}

// PinPost handles POST /api/admin/posts/:id/pin
func (s *Server) PinPost(c *fiber.Ctx) error {
	return s.setPostPinned(c, true)
}

// UnpinPost handles DELETE /api/admin/posts/:id/pin
func (s *Server) UnpinPost(c *fiber.Ctx) error {
	return s.setPostPinned(c, false)
}

func (s *Server) setPostPinned(c *fiber.Ctx, pinned bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.PinPost(c.Context(), id, pinned)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(post)
}

// HidePost handles POST /api/admin/posts/:id/hide
func (s *Server) HidePost(c *fiber.Ctx) error {
	return s.setPostHidden(c, true)
}

// UnhidePost handles DELETE /api/admin/posts/:id/hide
func (s *Server) UnhidePost(c *fiber.Ctx) error {
	return s.setPostHidden(c, false)
}

func (s *Server) setPostHidden(c *fiber.Ctx, hidden bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.HidePost(c.Context(), id, hidden)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(post)
}

// HideComment handles POST /api/admin/comments/:id/hide
func (s *Server) HideComment(c *fiber.Ctx) error {
	return s.setCommentHidden(c, true)
}

// UnhideComment handles DELETE /api/admin/comments/:id/hide
func (s *Server) UnhideComment(c *fiber.Ctx) error {
	return s.setCommentHidden(c, false)
}

func (s *Server) setCommentHidden(c *fiber.Ctx, hidden bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	comment, err := s.commentService.HideComment(c.Context(), id, hidden)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(comment)
}
