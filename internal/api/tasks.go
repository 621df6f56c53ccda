package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"agenda/pkg/task"
)

func (s *Server) handleTaskList(c *gin.Context) {
	status := task.Status(c.Query("status"))
	switch status {
	case "", task.Pending, task.Completed:
	default:
		abort(c, newBadRequestError("status must be pending or completed"))
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 0 {
		abort(c, newBadRequestError("limit must be a non-negative integer"))
		return
	}

	tasks, err := s.tasks.List(c.Request.Context(), task.Filter{Status: status, Limit: limit})
	if err != nil {
		s.log.Error().Err(err).Msg("list tasks")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	c.JSON(http.StatusOK, tasks)
}
