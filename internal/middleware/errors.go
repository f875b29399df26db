// Package middleware holds the HTTP middleware chain of the admin API.
package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Proton-105/inovabank/internal/errors"
	"github.com/Proton-105/inovabank/internal/i18n"
	"github.com/Proton-105/inovabank/internal/notify"
)

const (
	notificationKey = "inovabank.notification"
	retryAfterKey   = "inovabank.retry_after"
)

// ErrorBody is the machine readable part of an error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is written for every failed request.
type ErrorResponse struct {
	Error        ErrorBody           `json:"error"`
	Notification notify.Notification `json:"notification"`
}

// Fail aborts the request with err. n overrides the notification derived from err.
func Fail(c *gin.Context, err error, n *notify.Notification) {
	if n != nil {
		c.Set(notificationKey, *n)
	}
	_ = c.Error(err)
	c.Abort()
}

// Errors renders the last error attached to the request. It must run before
// any middleware that can call Fail.
func Errors(handler *apperrors.Handler, messages *i18n.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		ctx := c.Request.Context()
		operation := c.Request.Method + " " + c.FullPath()
		res := handler.Handle(ctx, operation, c.Errors.Last().Err)

		n, ok := c.Get(notificationKey)
		notification, _ := n.(notify.Notification)
		if !ok {
			title := messages.Translator(i18n.LangFromContext(ctx)).T("common.error_title")
			notification = notify.Failure(title, res.UserMessage)
		}

		if secs := c.GetInt(retryAfterKey); secs > 0 {
			c.Header("Retry-After", strconv.Itoa(secs))
		}

		c.JSON(res.Status, ErrorResponse{
			Error:        ErrorBody{Code: res.Code, Message: res.UserMessage},
			Notification: notification,
		})
	}
}
