// Package download serves a chat's latest export behind short-lived signed
// links.
package download

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"meal-board/internal/export"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid download token")
	ErrNoExport     = errors.New("no export available")
)

const issuer = "meal-board"

// Claims identifies one export of one chat.
type Claims struct {
	Filename string `json:"file"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 download tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a token granting access to filename of chatID.
func (s *Signer) Issue(chatID int64, filename string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Filename: filename,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(chatID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign download token: %w", err)
	}
	return signed, nil
}

// Parse verifies raw and returns the chat and filename it grants.
func (s *Signer) Parse(raw string) (int64, string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	chatID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || claims.Filename == "" {
		return 0, "", ErrInvalidToken
	}
	return chatID, claims.Filename, nil
}

type entry struct {
	filename string
	data     []byte
	storedAt time.Time
}

// Cache keeps the latest export of every chat in memory.
type Cache struct {
	mu     sync.RWMutex
	latest map[int64]entry
	maxAge time.Duration
	now    func() time.Time
}

// NewCache creates a Cache whose entries are dropped after maxAge.
func NewCache(maxAge time.Duration) *Cache {
	return &Cache{latest: make(map[int64]entry), maxAge: maxAge, now: time.Now}
}

// SinkFor returns an export.Sink that stores deliveries as chatID's latest
// export.
func (c *Cache) SinkFor(chatID int64) export.Sink {
	return export.SinkFunc(func(_ context.Context, filename string, data []byte) error {
		c.Put(chatID, filename, data)
		return nil
	})
}

func (c *Cache) Put(chatID int64, filename string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest[chatID] = entry{filename: filename, data: data, storedAt: c.now()}
}

// Get returns chatID's latest export if it is still fresh.
func (c *Cache) Get(chatID int64) (string, []byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.latest[chatID]
	if !ok || c.now().Sub(e.storedAt) > c.maxAge {
		return "", nil, false
	}
	return e.filename, e.data, true
}

// Prune drops stale entries and returns how many were removed.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, e := range c.latest {
		if c.now().Sub(e.storedAt) > c.maxAge {
			delete(c.latest, id)
			n++
		}
	}
	return n
}

// Service ties the signer and the cache together.
type Service struct {
	signer  *Signer
	cache   *Cache
	baseURL string
}

// NewService creates a Service serving links under baseURL + "/download".
func NewService(signer *Signer, cache *Cache, baseURL string) *Service {
	return &Service{signer: signer, cache: cache, baseURL: baseURL}
}

func (s *Service) SinkFor(chatID int64) export.Sink { return s.cache.SinkFor(chatID) }

// Link returns a signed URL for chatID's export named filename.
func (s *Service) Link(chatID int64, filename string) (string, error) {
	token, err := s.signer.Issue(chatID, filename)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid public URL %q: %w", s.baseURL, err)
	}
	u = u.JoinPath("download")
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

// ServeHTTP serves the export granted by the token query parameter as an
// attachment.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	chatID, filename, err := s.signer.Parse(r.URL.Query().Get("token"))
	if err != nil {
		log.Printf("Rejected download: %v", err)
		http.Error(w, "invalid or expired link", http.StatusForbidden)
		return
	}
	name, data, ok := s.cache.Get(chatID)
	if !ok || name != filename {
		http.Error(w, ErrNoExport.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Cache-Control", "no-store")
	if r.Method == http.MethodHead {
		return
	}
	w.Write(data)
}
