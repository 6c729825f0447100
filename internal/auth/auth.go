// Package auth handles account registration, login and JWT issuance.
package auth

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stocksim/stocksim-api/internal/funds"
	"github.com/stocksim/stocksim-api/internal/types"
	"github.com/stocksim/stocksim-api/pkg/response"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrTokenGeneration    = errors.New("failed to generate token")
)

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserView is the public shape of a user account.
type UserView struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	PhoneVerified bool   `json:"phoneVerified"`
}

// TokenResponse carries a session token and its user.
type TokenResponse struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

// Claims represents the JWT claims structure
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"id"`
	Username string `json:"username"`
}

// Service handles authentication and account creation.
type Service struct {
	gormDB    *gorm.DB
	db        *Database
	jwtSecret []byte
}

// NewService creates a new authentication service with the given JWT secret
func NewService(gormDB *gorm.DB, jwtSecret string) *Service {
	return &Service{
		gormDB:    gormDB,
		db:        NewDatabase(gormDB),
		jwtSecret: []byte(jwtSecret),
	}
}

// Register creates a user and their opening funds balance in one
// transaction and returns a session token.
func (s *Service) Register(req RegisterRequest) (*TokenResponse, error) {
	if _, err := s.db.GetByEmail(req.Email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &types.User{
		UserID:    uuid.New().String(),
		Username:  req.Username,
		Email:     req.Email,
		Password:  string(hashed),
		CreatedAt: time.Now(),
	}

	err = s.gormDB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		_, err := funds.CreateInitial(tx, user.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.tokenFor(user)
}

// Login verifies credentials and returns a session token.
func (s *Service) Login(req LoginRequest) (*TokenResponse, error) {
	user, err := s.db.GetByEmail(req.Email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return s.tokenFor(user)
}

// GetByUsername looks up an account for development tooling.
func (s *Service) GetByUsername(username string) (*UserView, error) {
	user, err := s.db.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	return &UserView{
		ID:       user.UserID,
		Username: user.Username,
		Email:    user.Email,
	}, nil
}

// tokenFor signs a 24-hour JWT for the user.
func (s *Service) tokenFor(user *types.User) (*TokenResponse, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
		UserID:   user.UserID,
		Username: user.Username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	return &TokenResponse{
		Token: tokenString,
		User: UserView{
			ID:            user.UserID,
			Username:      user.Username,
			Email:         user.Email,
			PhoneVerified: user.PhoneVerified,
		},
	}, nil
}

// ValidateToken validates a JWT token and returns the claims
// Verifies token signature and expiration
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// GinHandlers contains HTTP handlers for authentication endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for authentication endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// RegisterHandler handles POST /register
func (h *GinHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		token, err := h.service.Register(req)
		if errors.Is(err, ErrUserExists) {
			response.BadRequest(c, "User already exists")
			return
		}
		response.Handle(c, token, err)
	}
}

// LoginHandler handles POST /login
func (h *GinHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		token, err := h.service.Login(req)
		if errors.Is(err, ErrInvalidCredentials) {
			response.BadRequest(c, "Invalid credentials")
			return
		}
		if err != nil {
			response.InternalError(c, "Server error")
			return
		}
		response.OK(c, token)
	}
}

// GetUserByUsernameHandler handles GET /user/username/:username
func (h *GinHandlers) GetUserByUsernameHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.Param("username")

		user, err := h.service.GetByUsername(username)
		if errors.Is(err, ErrUserNotFound) {
			response.NotFound(c, "User not found")
			return
		}
		response.Handle(c, user, err)
	}
}
