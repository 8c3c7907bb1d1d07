package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestSigner(t *testing.T) {
	now := time.Date(2026, time.October, 16, 10, 0, 0, 0, time.UTC)
	s := NewSigner("s3cret", 15*time.Minute)
	s.now = func() time.Time { return now }

	token, err := s.Issue(42, "meal-plan-1.jpg")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	t.Run("RoundTrip", func(t *testing.T) {
		chatID, filename, err := s.Parse(token)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if chatID != 42 || filename != "meal-plan-1.jpg" {
			t.Errorf("Unexpected claims %d %s", chatID, filename)
		}
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewSigner("other", time.Minute)
		other.now = s.now
		if _, _, err := other.Parse(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		later := NewSigner("s3cret", 15*time.Minute)
		later.now = func() time.Time { return now.Add(time.Hour) }
		if _, _, err := later.Parse(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("Garbage", func(t *testing.T) {
		if _, _, err := s.Parse("not-a-token"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})
}

func TestCache(t *testing.T) {
	now := time.Now()
	c := NewCache(time.Minute)
	c.now = func() time.Time { return now }

	if err := c.SinkFor(7).Deliver(context.Background(), "meal-plan-7.jpg", []byte("jpeg")); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	name, data, ok := c.Get(7)
	if !ok || name != "meal-plan-7.jpg" || string(data) != "jpeg" {
		t.Errorf("Expected cached export, got %s %q %v", name, data, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, _, ok := c.Get(7); ok {
		t.Error("Expected stale export to be hidden")
	}
	if n := c.Prune(); n != 1 {
		t.Errorf("Expected 1 pruned entry, got %d", n)
	}
}

func TestServiceHTTP(t *testing.T) {
	svc := NewService(NewSigner("s3cret", time.Minute), NewCache(time.Hour), "https://board.example.com")
	svc.SinkFor(5).Deliver(context.Background(), "meal-plan-5.jpg", []byte{0xff, 0xd8, 0xff})

	link, err := svc.Link(5, "meal-plan-5.jpg")
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if !strings.HasPrefix(link, "https://board.example.com/download?token=") {
		t.Fatalf("Unexpected link %s", link)
	}
	u, _ := url.Parse(link)

	t.Run("ServesAttachment", func(t *testing.T) {
		rec := httptest.NewRecorder()
		svc.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download?"+u.RawQuery, nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("Expected image/jpeg, got %s", ct)
		}
		if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="meal-plan-5.jpg"` {
			t.Errorf("Unexpected Content-Disposition %s", cd)
		}
		if rec.Body.Len() != 3 {
			t.Errorf("Expected 3 bytes, got %d", rec.Body.Len())
		}
	})

	t.Run("SupersededExport", func(t *testing.T) {
		svc.SinkFor(5).Deliver(context.Background(), "meal-plan-6.jpg", []byte{0xff})
		defer svc.SinkFor(5).Deliver(context.Background(), "meal-plan-5.jpg", []byte{0xff, 0xd8, 0xff})

		rec := httptest.NewRecorder()
		svc.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download?"+u.RawQuery, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rec.Code)
		}
	})

	t.Run("BadToken", func(t *testing.T) {
		rec := httptest.NewRecorder()
		svc.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download?token=nope", nil))
		if rec.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", rec.Code)
		}
	})

	t.Run("WrongMethod", func(t *testing.T) {
		rec := httptest.NewRecorder()
		svc.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/download?"+u.RawQuery, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected 405, got %d", rec.Code)
		}
	})
}
