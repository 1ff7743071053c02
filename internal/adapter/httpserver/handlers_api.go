package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/leavenotify/internal/domain"
	apperrors "github.com/pscheid92/leavenotify/internal/platform/errors"
)

func (s *Server) registerAPIRoutes(limit echo.MiddlewareFunc) {
	api := s.echo.Group("/api")

	api.GET("/status", s.handleStatus)
	api.POST("/connection/connect", s.handleConnect, limit)
	api.POST("/connection/disconnect", s.handleDisconnect, limit)
	api.POST("/logout", s.handleLogout, limit)

	api.GET("/notifications", s.handleNotifications)
	api.POST("/notifications/read-all", s.handleMarkAllAsRead, limit)
	api.POST("/notifications/:id/read", s.handleMarkAsRead, limit)
	api.DELETE("/notifications/:id", s.handleRemoveNotification, limit)
	api.DELETE("/notifications", s.handleClearNotifications, limit)

	api.GET("/toasts", s.handleToasts)
	api.DELETE("/toasts/:id", s.handleDismissToast, limit)

	api.GET("/connected-users", s.handleConnectedUsers, limit)
	api.GET("/leave-requests", s.handleLeaveRequests)
	api.POST("/leave-requests/refresh", s.handleRefreshLeaveRequests, limit)
}

func (s *Server) handleStatus(c echo.Context) error {
	st, err := s.app.Status(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to read status", err)
	}
	return writeJSON(c, http.StatusOK, st)
}

func (s *Server) handleConnect(c echo.Context) error {
	if err := s.app.Connect(c.Request().Context()); err != nil {
		return err
	}
	return writeJSON(c, http.StatusAccepted, map[string]string{"status": "connecting"})
}

func (s *Server) handleDisconnect(c echo.Context) error {
	if err := s.app.Disconnect(c.Request().Context()); err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, map[string]string{"status": "disconnected"})
}

func (s *Server) handleLogout(c echo.Context) error {
	ended, err := s.app.Logout(c.Request().Context())
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, map[string]bool{"ended": ended})
}

func (s *Server) handleNotifications(c echo.Context) error {
	records, err := s.app.Notifications(c.Request().Context())
	if err != nil {
		return err
	}
	unread := 0
	for _, r := range records {
		if !r.Read {
			unread++
		}
	}
	return writeJSON(c, http.StatusOK, map[string]any{
		"notifications": records,
		"unread":        unread,
	})
}

func (s *Server) handleMarkAsRead(c echo.Context) error {
	id, err := notificationID(c)
	if err != nil {
		return err
	}
	if err := s.app.MarkAsRead(c.Request().Context(), id); err != nil {
		return notFoundOr(err, "notification not found", id)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleMarkAllAsRead(c echo.Context) error {
	if err := s.app.MarkAllAsRead(c.Request().Context()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleRemoveNotification(c echo.Context) error {
	id, err := notificationID(c)
	if err != nil {
		return err
	}
	if err := s.app.RemoveNotification(c.Request().Context(), id); err != nil {
		return notFoundOr(err, "notification not found", id)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleClearNotifications(c echo.Context) error {
	if err := s.app.ClearNotifications(c.Request().Context()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleToasts(c echo.Context) error {
	toasts, err := s.app.Toasts(c.Request().Context())
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, map[string]any{"toasts": toasts})
}

func (s *Server) handleDismissToast(c echo.Context) error {
	raw := c.Param("id")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return apperrors.ValidationError("invalid toast id").WithField("id", raw)
	}
	removed, err := s.app.DismissToast(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if !removed {
		return apperrors.NotFoundError("toast not found").WithField("id", id)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleConnectedUsers(c echo.Context) error {
	users, known, err := s.app.ConnectedUsers(c.Request().Context())
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, map[string]any{
		"users": users,
		"known": known,
	})
}

func (s *Server) handleLeaveRequests(c echo.Context) error {
	status := domain.LeaveRequestStatus(c.QueryParam("status"))
	switch status {
	case "", domain.StatusPending, domain.StatusApproved, domain.StatusRejected:
	default:
		return apperrors.ValidationError("unknown status filter").WithField("status", string(status))
	}

	reqs, err := s.app.LeaveRequests(c.Request().Context(), status)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, map[string]any{
		"leave_requests": reqs,
		"count":          len(reqs),
	})
}

func (s *Server) handleRefreshLeaveRequests(c echo.Context) error {
	if err := s.app.RefreshLeaveRequests(c.Request().Context()); err != nil {
		return err
	}
	return writeJSON(c, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

func notificationID(c echo.Context) (uuid.UUID, error) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid notification id").WithField("id", raw)
	}
	return id, nil
}

func notFoundOr(err error, message string, id uuid.UUID) error {
	structured := apperrors.AsStructuredError(err)
	if structured.Type == apperrors.TypeNotFound {
		return apperrors.NotFoundError(message).WithField("id", id.String())
	}
	return err
}

func writeJSON(c echo.Context, status int, v any) error {
	if err := c.JSON(status, v); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
