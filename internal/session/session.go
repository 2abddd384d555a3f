// Package session keeps editor sessions in Valkey. The browser holds only
// a random ID in a cookie; the payload lives under a TTL'd key, and each
// editor's live session IDs are indexed so they can be ended together.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	CookieName = "qp_session"
	DefaultTTL = 24 * time.Hour

	sessionPrefix = "quillpress:session:"
	editorPrefix  = "quillpress:editor-sessions:"

	// 32 random bytes, hex encoded.
	idLength = 32
)

// ErrNoCookie is returned by Update when the request carries no session.
var ErrNoCookie = errors.New("session: no cookie")

// Data is what a signed-in editor carries between requests.
type Data struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	ProjectID   string    `json:"project_id"`
	TwoFADone   bool      `json:"two_fa_done"`
	CreatedAt   time.Time `json:"created_at"`
}

type Store struct {
	client *redis.Client
	ttl    time.Duration
	secure bool
}

// NewStore returns a store on client. secure sets the cookie's Secure flag.
func NewStore(client *redis.Client, secure bool) *Store {
	return &Store{client: client, ttl: DefaultTTL, secure: secure}
}

func sessionKey(id string) string { return sessionPrefix + id }
func editorKey(userID uuid.UUID) string { return editorPrefix + userID.String() }

// Create stores data under a fresh ID, indexes it for the editor, and
// sets the cookie.
func (s *Store) Create(ctx context.Context, w http.ResponseWriter, data *Data) (string, error) {
	id, err := newID()
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	data.CreatedAt = time.Now().UTC()

	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionKey(id), payload, s.ttl)
		p.SAdd(ctx, editorKey(data.UserID), id)
		p.Expire(ctx, editorKey(data.UserID), s.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	http.SetCookie(w, s.cookie(id, int(s.ttl.Seconds())))
	return id, nil
}

// Get loads the session named by the request cookie. A missing cookie or
// an expired session yields (nil, nil).
func (s *Store) Get(ctx context.Context, r *http.Request) (*Data, error) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil, nil
	}

	payload, err := s.client.Get(ctx, sessionKey(c.Value)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var data Data
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &data, nil
}

// Update rewrites the payload in place and restarts its TTL. The ID and
// cookie stay the same.
func (s *Store) Update(ctx context.Context, r *http.Request, data *Data) error {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ErrNoCookie
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(c.Value), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// Destroy ends the request's session and expires the cookie. Without a
// cookie it does nothing.
func (s *Store) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}

	data, err := s.Get(ctx, r)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, sessionKey(c.Value))
		if data != nil {
			p.SRem(ctx, editorKey(data.UserID), c.Value)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}

	http.SetCookie(w, s.cookie("", -1))
	return nil
}

// DestroyEditor ends every live session of one editor, for instance after
// their second factor was reset. It returns how many were ended.
func (s *Store) DestroyEditor(ctx context.Context, userID uuid.UUID) (int, error) {
	ids, err := s.client.SMembers(ctx, editorKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("list editor sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, editorKey(userID))

	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("destroy editor sessions: %w", err)
	}
	// The index key itself is counted by Del when present.
	if len(ids) > 0 {
		n--
	}
	return int(n), nil
}

func (s *Store) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

func newID() (string, error) {
	b := make([]byte, idLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
