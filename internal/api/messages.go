package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"agenda/internal/assistant"
	"agenda/pkg/briefing"
	"agenda/pkg/task"
)

type messageRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Text   string `json:"text"`
}

type messageResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) handleMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.log.Debug().Err(err).Msg("failed to bind json")
		abort(c, newBadRequestError("user_id is required"))
		return
	}
	if sub, ok := c.Get(userIDCtxKey); ok && sub != req.UserID {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	if !s.allowed(req.UserID) {
		s.log.Warn().Str("user_id", req.UserID).Msg("user not allowed")
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	reply, err := s.messages.Submit(c.Request.Context(), req.UserID, req.Text)
	switch {
	case errors.Is(err, assistant.ErrClosed):
		abort(c, newStatusTextError(http.StatusServiceUnavailable))
		return
	case err != nil:
		// The client went away.
		s.log.Debug().Err(err).Str("user_id", req.UserID).Msg("message abandoned")
		c.AbortWithStatus(http.StatusRequestTimeout)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Reply: reply})
}

type briefingResponse struct {
	Window             string               `json:"window"`
	Text               string               `json:"text"`
	CalendarIncomplete bool                 `json:"calendar_incomplete"`
	Due                []task.Task          `json:"due"`
	Overdue            []task.Task          `json:"overdue"`
	Suggestions        []suggestionResponse `json:"suggestions"`
}

type suggestionResponse struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	TaskID string `json:"task_id"`
	Title  string `json:"title"`
}

func (s *Server) handleBriefing(c *gin.Context) {
	window := c.DefaultQuery("window", "today")
	b, err := s.briefer.Briefing(c.Request.Context(), window)
	if err != nil {
		s.log.Error().Err(err).Str("window", window).Msg("build briefing")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}
	resp := briefingResponse{
		Window:             b.Window.Name,
		Text:               briefing.Render(b, s.opts.Location),
		CalendarIncomplete: b.CalendarIncomplete,
		Due:                b.Due,
		Overdue:            b.Overdue,
	}
	for _, sg := range b.Suggestions {
		resp.Suggestions = append(resp.Suggestions, suggestionResponse{
			Start:  sg.Start.In(s.opts.Location).Format(time.RFC3339),
			End:    sg.End.In(s.opts.Location).Format(time.RFC3339),
			TaskID: sg.Task.ID,
			Title:  sg.Task.Title,
		})
	}
	c.JSON(http.StatusOK, resp)
}
