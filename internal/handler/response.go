package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	msgRegistered     = "You have successfully registered."
	msgLoggedIn       = "You have successfully logged in."
	msgUserData       = "User data."
	msgLoggedOut      = "You have successfully logged out."
	msgRefreshed      = "You have successfully refreshed token."
	msgUnauthorized   = "Unauthorized."
	msgValidation     = "Validation errors."
	msgRegistration   = "Registration failed."
	msgRefreshFailed  = "Refresh token failed."
	msgInternalError  = "Internal server error."
	errMalformedInput = "malformed request body"
)

const versionKey = "api_version"

// Version is the tag an API generation stamps into every response.
// The zero Version leaves the field out.
type Version struct {
	tag any
}

var (
	Unversioned = Version{}
	V1          = Version{tag: "v1"}
	V2          = Version{tag: 2}
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   any    `json:"error,omitempty"`
	Data    any    `json:"data"`
	Version any    `json:"version,omitempty"`
}

func withVersion(v Version) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(versionKey, v)
		c.Next()
	}
}

func versionOf(c *gin.Context) Version {
	if v, ok := c.Get(versionKey); ok {
		if version, ok := v.(Version); ok {
			return version
		}
	}
	return Unversioned
}

func newEnvelope(c *gin.Context, statusCode int, message string, data any) envelope {
	if data == nil {
		data = gin.H{}
	}

	return envelope{
		Success: statusCode == http.StatusOK,
		Message: message,
		Data:    data,
		Version: versionOf(c).tag,
	}
}

func newSuccessResponse(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, newEnvelope(c, http.StatusOK, message, data))
}

// newErrorResponse aborts the chain. A nil reason omits the error field.
func newErrorResponse(c *gin.Context, statusCode int, message string, reason any, data any) {
	resp := newEnvelope(c, statusCode, message, data)
	resp.Error = reason

	c.AbortWithStatusJSON(statusCode, resp)
}
