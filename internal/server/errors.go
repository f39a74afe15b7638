package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/docket/internal/apperr"
)

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:     http.StatusUnprocessableEntity,
	apperr.KindNotFound:       http.StatusNotFound,
	apperr.KindAuthorization:  http.StatusForbidden,
	apperr.KindAuthentication: http.StatusUnauthorized,
	apperr.KindConflict:       http.StatusConflict,
	apperr.KindTimeout:        http.StatusGatewayTimeout,
	apperr.KindStorage:        http.StatusBadGateway,
}

type errorBody struct {
	Kind       apperr.Kind `json:"kind"`
	Message    string      `json:"message"`
	Violations []string    `json:"violations,omitempty"`
	Resource   string      `json:"resource,omitempty"`
	ID         string      `json:"id,omitempty"`
}

// renderError writes err with the status code for its kind. Unclassified
// errors are logged and reported without detail.
func renderError(c *gin.Context, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		kind := apperr.KindOf(err)
		if kind == apperr.KindInternal {
			logrus.WithFields(logrus.Fields{"path": c.FullPath(), "error": err}).Error("server: internal error")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": errorBody{Kind: kind, Message: "internal error"}})
			return
		}
		ae = &apperr.Error{Kind: kind, Message: err.Error()}
	}
	status, ok := statusByKind[ae.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	msg := ae.Message
	if ae.Kind == apperr.KindStorage || ae.Kind == apperr.KindTimeout {
		logrus.WithFields(logrus.Fields{"path": c.FullPath(), "error": err}).Warn("server: request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{
		Kind:       ae.Kind,
		Message:    msg,
		Violations: ae.Violations,
		Resource:   ae.Resource,
		ID:         ae.ID,
	}})
}
