package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"agenda/pkg/journal"
)

type feed interface {
	Subscribe() chan journal.Entry
	Unsubscribe(ch chan journal.Entry)
}

// handleJournalStream pushes journal entries of the caller as server-sent
// events until the client disconnects.
func (s *Server) handleJournalStream(f feed) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.Query("user_id")
		if sub, ok := c.Get(userIDCtxKey); ok {
			user, _ = sub.(string)
		}
		if user != "" && !s.allowed(user) {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		ch := f.Subscribe()
		defer f.Unsubscribe(ch)

		c.Header("Cache-Control", "no-cache")
		c.Stream(func(w io.Writer) bool {
			select {
			case <-c.Request.Context().Done():
				return false
			case e, ok := <-ch:
				if !ok {
					return false
				}
				if user == "" || e.UserID == user {
					c.SSEvent(string(e.Kind), e)
				}
				return true
			}
		})
	}
}
