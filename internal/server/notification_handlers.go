package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetNotifications handles GET /api/notifications.
// Stored notification titles are message keys; they are resolved against
// the caller's negotiated locale here, at the edge.
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	page := parsePagination(c, 20)

	items, err := s.notificationService.List(ctx, userID, page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	locale := s.requestLocale(c)
	for _, n := range items {
		n.Title = s.locales.T(locale, n.Title)
	}

	return c.JSON(items)
}

// GetUnreadCount handles GET /api/notifications/unread-count
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	count, err := s.notificationService.UnreadCount(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"unread_count": count})
}

// MarkNotificationRead handles POST /api/notifications/:id/read
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	n, err := s.notificationService.MarkRead(c.Context(), userID, id)
	if err != nil {
		return respondServiceError(c, err)
	}

	n.Title = s.locales.T(s.requestLocale(c), n.Title)
	return c.JSON(n)
}

// MarkAllNotificationsRead handles POST /api/notifications/read-all
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	if err := s.notificationService.MarkAllRead(c.Context(), userID); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "All notifications marked read"})
}
