package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const tokenBytes = 32

var defaultRandRead = rand.Read

// randRead is swapped in tests
var randRead = defaultRandRead

// session is the single logged-in client; a new login replaces it
type session struct {
	token     string
	expiresAt time.Time
}

// sessionStore holds the one session of a single-operator tuner box
type sessionStore struct {
	mu      sync.RWMutex
	current *session
}

var sessions = &sessionStore{}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := randRead(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// login starts a new session, replacing any existing one
func (s *sessionStore) login(now time.Time) (*session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	sess := &session{token: token, expiresAt: now.Add(SessionDuration)}
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	return sess, nil
}

func (s *sessionStore) logout() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

// valid reports whether token belongs to an unexpired session
func (s *sessionStore) valid(token string, now time.Time) bool {
	if token == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current != nil && s.current.token == token && now.Before(s.current.expiresAt)
}

func (s *sessionStore) handleLogin(c *fiber.Ctx) error {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(config.Auth.PasswordHash), []byte(req.Password)); err != nil {
		slog.Warn("Failed login attempt", "ip", c.IP())
		return c.Status(401).JSON(fiber.Map{"error": "Invalid password"})
	}

	sess, err := s.login(time.Now())
	if err != nil {
		slog.Error("Login failed", "ip", c.IP(), "error", err)
		return c.Status(500).JSON(fiber.Map{"error": "Could not create session"})
	}

	slog.Info("Successful login", "ip", c.IP())
	return c.JSON(fiber.Map{
		"success": true,
		"token":   sess.token,
		"expires": sess.expiresAt.Unix(),
	})
}

func (s *sessionStore) handleLogout(c *fiber.Ctx) error {
	s.logout()
	slog.Info("User logged out", "ip", c.IP())
	return c.JSON(fiber.Map{"success": true})
}

// middleware accepts the token from X-Auth-Token or, for websocket clients
// that cannot set headers, the token query parameter
func (s *sessionStore) middleware(c *fiber.Ctx) error {
	token := c.Get("X-Auth-Token")
	if token == "" {
		token = c.Query("token")
	}

	if !s.valid(token, time.Now()) {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}
	return c.Next()
}
