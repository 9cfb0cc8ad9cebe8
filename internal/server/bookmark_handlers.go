package server

import (
	"github.com/gofiber/fiber/v2"
)

// ToggleBookmark handles POST /api/bookmarks/:type/:id
func (s *Server) ToggleBookmark(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	targetType := c.Params("type")
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	bookmarked, err := s.bookmarkService.ToggleBookmark(ctx, userID, targetType, targetID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"bookmarkable_type": targetType,
		"bookmarkable_id":   targetID,
		"bookmarked":        bookmarked,
	})
}

// GetMyBookmarks handles GET /api/bookmarks?type=post
func (s *Server) GetMyBookmarks(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	page := parsePagination(c, 20)

	bookmarks, err := s.bookmarkService.ListBookmarks(ctx, userID, c.Query("type"), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(bookmarks)
}
