package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finlearn/finlearn-backend/internal/platform/errs"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondTypedError maps the error taxonomy onto HTTP statuses.
func RespondTypedError(c *gin.Context, err error) {
	code := errs.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case errs.CodeNotFound:
		status = http.StatusNotFound
	case errs.CodeValidation, errs.CodeUnsupportedType:
		status = http.StatusBadRequest
	case errs.CodeParse:
		status = http.StatusUnprocessableEntity
	}
	RespondError(c, status, string(code), err)
}
