// Package auth stores user accounts next to the library data and issues
// the bearer tokens checked by Middleware.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCreds = errors.New("invalid credentials")
	ErrUserExists   = errors.New("username already exists")
	ErrInvalidToken = errors.New("invalid token")
)

// tokenTTL keeps a local install logged in for a year.
const tokenTTL = 365 * 24 * time.Hour

// Claims is the JWT payload carried by issued tokens.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service manages user accounts and tokens. It shares the library's
// sqlite handle.
type Service struct {
	db     *sql.DB
	secret []byte
}

func NewService(db *sql.DB, secret string) (*Service, error) {
	if _, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);`); err != nil {
		return nil, fmt.Errorf("create users table: %w", err)
	}
	return &Service{db: db, secret: []byte(secret)}, nil
}

// EnsureDefaultUser seeds an admin/admin account when no users exist, so
// a fresh install with auth enabled is not locked out.
func (s *Service) EnsureDefaultUser(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}
	return s.Register(ctx, "admin", "admin")
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, username, password string) error {
	var taken bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = ?)`, username).Scan(&taken)
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if taken {
		return ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, string(hash), time.Now().Unix()); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Login checks the password and returns a signed token. Unknown users
// and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE username = ?`, username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidCreds
	}
	if err != nil {
		return "", fmt.Errorf("look up user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", ErrInvalidCreds
	}
	return s.issueToken(username)
}

func (s *Service) issueToken(username string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates a signed token and returns its claims. Only
// HS256 tokens signed with this service's secret are accepted.
func (s *Service) VerifyToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
