package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"VoiceAssistant/models"
	"VoiceAssistant/pkg/logging"
	"VoiceAssistant/pkg/services"
)

type Authenticator interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.Session, error)
	Login(ctx context.Context, username, password string) (*services.Session, error)
}

type sessionResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *models.User `json:"user"`
}

func newSessionResponse(s *services.Session) sessionResponse {
	return sessionResponse{AccessToken: s.AccessToken, TokenType: s.TokenType, User: s.User}
}

// Register handler
func Register(auth Authenticator, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Username string  `json:"username" binding:"required"`
			Password string  `json:"password" binding:"required"`
			Email    *string `json:"email"`
			FullName *string `json:"full_name"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, log, bindError(err))
			return
		}

		sess, err := auth.Register(c.Request.Context(), services.RegisterInput{
			Username: body.Username,
			Password: body.Password,
			Email:    body.Email,
			FullName: body.FullName,
		})
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, newSessionResponse(sess))
	}
}

// Login handler
func Login(auth Authenticator, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, log, bindError(err))
			return
		}

		sess, err := auth.Login(c.Request.Context(), body.Username, body.Password)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, newSessionResponse(sess))
	}
}

// Me returns the authenticated user's profile.
func Me(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c, log)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, user)
	}
}
