package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mathmentor/mathmentor-backend/internal/api/middleware"
	"github.com/mathmentor/mathmentor-backend/internal/audit"
	"github.com/mathmentor/mathmentor-backend/internal/auth"
	"github.com/mathmentor/mathmentor-backend/internal/models"
	"github.com/mathmentor/mathmentor-backend/internal/topics"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest represents a signup request
type SignupRequest struct {
	Email      string   `json:"email"`
	Username   string   `json:"username"`
	Password   string   `json:"password"`
	Language   string   `json:"language"`
	MathTopics []string `json:"math_topics"`
}

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse carries a fresh token pair
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID          string             `json:"id"`
	Email       string             `json:"email"`
	Username    string             `json:"username"`
	Role        string             `json:"role"`
	Preferences models.Preferences `json:"preferences"`
	CreatedAt   time.Time          `json:"created_at"`
}

func toUserResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:          user.ID.String(),
		Email:       user.Email,
		Username:    user.Username,
		Role:        user.Role,
		Preferences: user.GetPreferences(),
		CreatedAt:   user.CreatedAt,
	}
}

// Signup handles user registration
func Signup(authService *auth.Service, auditService *audit.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req SignupRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		if req.Email == "" || req.Username == "" || req.Password == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Email, username and password are required",
			})
		}

		for _, topicID := range req.MathTopics {
			if !topics.IsValid(topicID) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Unknown topic: " + topicID,
				})
			}
		}

		preferences := models.JSONB{}
		if req.Language != "" {
			preferences["language"] = req.Language
		}
		if len(req.MathTopics) > 0 {
			mathTopics := make([]interface{}, len(req.MathTopics))
			for i, t := range req.MathTopics {
				mathTopics[i] = t
			}
			preferences["math_topics"] = mathTopics
		}

		user, err := authService.SignUp(c.Context(), req.Email, req.Username, req.Password, preferences)
		if err != nil {
			switch err {
			case auth.ErrEmailAlreadyExists, auth.ErrUsernameAlreadyExists:
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": err.Error(),
				})
			case auth.ErrPasswordTooShort, auth.ErrPasswordTooWeak:
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": err.Error(),
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Signup failed",
			})
		}

		event := audit.NewEvent(audit.EventSignup, &user.ID, c.IP(), c.Get("User-Agent"))
		event.Resource = "auth"
		event.Result = "success"
		auditService.Log(c.Context(), event)

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"user": toUserResponse(user),
		})
	}
}

// Login handles user login
func Login(authService *auth.Service, auditService *audit.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		if req.Email == "" || req.Password == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Email and password are required",
			})
		}

		user, accessToken, refreshToken, err := authService.Login(
			c.Context(), req.Email, req.Password, c.IP(), c.Get("User-Agent"),
		)
		if err != nil {
			// Do not reveal which part failed; prevents user enumeration
			if err == auth.ErrInvalidCredentials || err == auth.ErrUserNotFound {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid email or password",
				})
			}
			if err == auth.ErrUserInactive {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error": "Account is inactive",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Login failed",
			})
		}

		event := audit.NewEvent(audit.EventLogin, &user.ID, c.IP(), c.Get("User-Agent"))
		event.Resource = "auth"
		event.Result = "success"
		auditService.Log(c.Context(), event)

		setTokenCookies(c, accessToken, refreshToken)

		return c.JSON(fiber.Map{
			"user":          toUserResponse(user),
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"expires_in":    int(auth.AccessTokenTTL.Seconds()),
		})
	}
}

// RefreshToken exchanges a refresh token for a fresh token pair
func RefreshToken(authService *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req RefreshRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		token := req.RefreshToken
		if token == "" {
			token = c.Cookies("refresh_token")
		}
		if token == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Refresh token is required",
			})
		}

		accessToken, refreshToken, err := authService.RefreshToken(c.Context(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired refresh token",
			})
		}

		setTokenCookies(c, accessToken, refreshToken)

		return c.JSON(TokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresIn:    int(auth.AccessTokenTTL.Seconds()),
		})
	}
}

// Logout revokes the caller's auth session
func Logout(authService *auth.Service, auditService *audit.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID, _ := c.Locals("auth_session_id").(string)
		if sessionID != "" {
			if err := authService.Logout(c.Context(), sessionID); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Logout failed",
				})
			}
		}

		if userCtx := middleware.GetUserContext(c); userCtx != nil {
			event := audit.NewEvent(audit.EventLogout, &userCtx.UserID, c.IP(), c.Get("User-Agent"))
			event.Resource = "auth"
			event.Result = "success"
			auditService.Log(c.Context(), event)
		}

		c.ClearCookie("access_token", "refresh_token")

		return c.JSON(fiber.Map{
			"message": "Logged out",
		})
	}
}

// GetCurrentUser returns the authenticated user's profile
func GetCurrentUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := middleware.GetUser(c)
		if user == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}
		return c.JSON(fiber.Map{
			"user": toUserResponse(user),
		})
	}
}

// ChangePasswordRequest represents a password change request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword updates the authenticated user's password
func ChangePassword(authService *auth.Service, auditService *audit.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := middleware.GetUser(c)
		if user == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		var req ChangePasswordRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		err := authService.ChangePassword(c.Context(), user.ID, req.CurrentPassword, req.NewPassword)
		if err != nil {
			switch err {
			case auth.ErrInvalidCredentials:
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Current password is incorrect",
				})
			case auth.ErrPasswordTooShort, auth.ErrPasswordTooWeak:
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": err.Error(),
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Password change failed",
			})
		}

		event := audit.NewEvent(audit.EventPasswordChange, &user.ID, c.IP(), c.Get("User-Agent"))
		event.Resource = "auth"
		event.Result = "success"
		auditService.Log(c.Context(), event)

		return c.JSON(fiber.Map{
			"message": "Password changed",
		})
	}
}

// UpdatePreferencesRequest represents a preferences update
type UpdatePreferencesRequest struct {
	Language   string   `json:"language"`
	MathTopics []string `json:"math_topics"`
}

// UpdatePreferences replaces the authenticated user's tutoring preferences
func UpdatePreferences(authService *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := middleware.GetUser(c)
		if user == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		var req UpdatePreferencesRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		for _, topicID := range req.MathTopics {
			if !topics.IsValid(topicID) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Unknown topic: " + topicID,
				})
			}
		}

		preferences := models.JSONB{}
		if req.Language != "" {
			preferences["language"] = req.Language
		}
		mathTopics := make([]interface{}, len(req.MathTopics))
		for i, t := range req.MathTopics {
			mathTopics[i] = t
		}
		preferences["math_topics"] = mathTopics

		if err := authService.UpdatePreferences(c.Context(), user.ID, preferences); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update preferences",
			})
		}

		user.Preferences = preferences
		return c.JSON(fiber.Map{
			"user": toUserResponse(user),
		})
	}
}

func setTokenCookies(c *fiber.Ctx, accessToken, refreshToken string) {
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Expires:  time.Now().Add(auth.AccessTokenTTL),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Strict",
	})
	c.Cookie(&fiber.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Expires:  time.Now().Add(auth.RefreshTokenTTL),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Strict",
	})
}
