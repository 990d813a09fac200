// Package client is a small HTTP client for the booking API.  It keeps the
// token pair in memory, refreshes an expired access token once per request
// and reports failures as *APIError values that match the booking outcome
// errors with errors.Is.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/trip-seat-booking/internal/booking"
	"github.com/iliyamo/trip-seat-booking/internal/model"
	"github.com/iliyamo/trip-seat-booking/internal/session"
)

// Tokens is the token pair issued by login, register and refresh.
type Tokens struct {
	Access         string    `json:"access"`
	AccessExpires  time.Time `json:"access_expires"`
	Refresh        string    `json:"refresh"`
	RefreshExpires time.Time `json:"refresh_expires"`
}

// Profile is the public part of a user account.
type Profile struct {
	ID     string       `json:"id"`
	Email  string       `json:"email"`
	Name   string       `json:"name"`
	Gender model.Gender `json:"gender"`
}

func (p Profile) user() *model.User {
	return &model.User{ID: p.ID, Email: p.Email, Name: p.Name, Gender: p.Gender}
}

// Seat is a seat as seen by the caller.  Mine, ExpiresAt and RemainingMs
// describe the caller's own lock or booking only.
type Seat struct {
	ID          string                 `json:"id"`
	Row         int                    `json:"row"`
	Column      int                    `json:"column"`
	Number      string                 `json:"number"`
	Gender      model.GenderConstraint `json:"gender_constraint"`
	Status      model.SeatStatus       `json:"status"`
	Mine        bool                   `json:"mine"`
	ExpiresAt   *time.Time             `json:"expires_at"`
	RemainingMs int64                  `json:"remaining_ms"`
	Version     uint32                 `json:"version"`
}

// Lock is the result of a successful lock.
type Lock struct {
	Seat        Seat      `json:"seat"`
	ExpiresAt   time.Time `json:"expires_at"`
	RemainingMs int64     `json:"remaining_ms"`
	Countdown   string    `json:"countdown"`
}

// Snapshot is one event of the seat stream.
type Snapshot struct {
	TripID string    `json:"trip_id"`
	Seq    uint64    `json:"seq"`
	At     time.Time `json:"at"`
	Seats  []Seat    `json:"seats"`
}

// RegisterInput carries the sign-up form.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Gender   string `json:"gender"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status   int
	Code     string `json:"error"`
	Reason   string `json:"reason"`
	Neighbor string `json:"neighbor"`
	Message  string `json:"message"`
}

func (e *APIError) Error() string {
	msg := e.Code
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return fmt.Sprintf("http %d: %s", e.Status, msg)
}

var codeErrors = map[string]error{
	"seat_unavailable":     booking.ErrSeatUnavailable,
	"compliance_violation": booking.ErrComplianceViolation,
	"not_lock_holder":      booking.ErrNotLockHolder,
	"lock_expired":         booking.ErrLockExpired,
	"store_unavailable":    booking.ErrStoreUnavailable,
	"seat_not_found":       booking.ErrSeatNotFound,
	"booking_not_found":    booking.ErrBookingNotFound,
}

// Unwrap maps the response code to the matching booking outcome.
func (e *APIError) Unwrap() error { return codeErrors[e.Code] }

// ErrNotSignedIn is returned by authenticated calls without tokens.
var ErrNotSignedIn = errors.New("not signed in")

// Client talks to one API server.
type Client struct {
	base    string
	http    *http.Client
	Session *session.Machine

	mu     sync.Mutex
	tokens Tokens
}

// New returns a client for baseURL (for example http://localhost:8080).
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		base:    strings.TrimRight(baseURL, "/"),
		http:    hc,
		Session: session.New(),
	}
}

// Tokens returns the current token pair.
func (c *Client) Tokens() Tokens {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens
}

// Resume installs a token pair saved by an earlier process and loads the
// profile for it.
func (c *Client) Resume(ctx context.Context, t Tokens) (Profile, error) {
	c.setTokens(t)
	p, err := c.Me(ctx)
	if err != nil {
		c.setTokens(Tokens{})
		return Profile{}, err
	}
	c.Session.SessionChanged(p.user())
	return p, nil
}

func (c *Client) setTokens(t Tokens) {
	c.mu.Lock()
	c.tokens = t
	c.mu.Unlock()
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User    Profile   `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func (r authResp) tokens() Tokens {
	return Tokens{
		Access: r.Access.Token, AccessExpires: r.Access.Expires,
		Refresh: r.Refresh.Token, RefreshExpires: r.Refresh.Expires,
	}
}

// Register creates an account and leaves the client signed out.  The session
// the server issues on registration is revoked straight away; session
// notifications in between are ignored by the state machine.
func (c *Client) Register(ctx context.Context, in RegisterInput) (Profile, error) {
	if err := c.Session.BeginSignup(); err != nil {
		return Profile{}, err
	}
	var resp authResp
	if err := c.send(ctx, http.MethodPost, "/v1/auth/register", in, &resp, false); err != nil {
		_ = c.Session.AbortSignup()
		return Profile{}, err
	}
	c.Session.SessionChanged(resp.User.user())

	err := c.send(ctx, http.MethodPost, "/v1/auth/logout", map[string]string{"refresh_token": resp.Refresh.Token}, nil, false)
	c.Session.SessionChanged(nil)
	if err != nil {
		_ = c.Session.AbortSignup()
		return Profile{}, fmt.Errorf("sign out after signup: %w", err)
	}
	if err := c.Session.CompleteSignup(); err != nil {
		return Profile{}, err
	}
	return resp.User, nil
}

// Login signs in and keeps the issued tokens.
func (c *Client) Login(ctx context.Context, email, password string) (Profile, error) {
	var resp authResp
	body := map[string]string{"email": email, "password": password}
	if err := c.send(ctx, http.MethodPost, "/v1/auth/login", body, &resp, false); err != nil {
		return Profile{}, err
	}
	c.setTokens(resp.tokens())
	c.Session.SessionChanged(resp.User.user())
	return resp.User, nil
}

// Logout revokes the refresh token and forgets the tokens.
func (c *Client) Logout(ctx context.Context) error {
	t := c.Tokens()
	if t.Refresh == "" {
		return ErrNotSignedIn
	}
	err := c.send(ctx, http.MethodPost, "/v1/auth/logout", map[string]string{"refresh_token": t.Refresh}, nil, false)
	c.setTokens(Tokens{})
	c.Session.SessionChanged(nil)
	return err
}

// refresh rotates the token pair.
func (c *Client) refresh(ctx context.Context) error {
	t := c.Tokens()
	if t.Refresh == "" {
		return ErrNotSignedIn
	}
	var resp authResp
	if err := c.send(ctx, http.MethodPost, "/v1/auth/refresh", map[string]string{"refresh_token": t.Refresh}, &resp, false); err != nil {
		return err
	}
	c.setTokens(resp.tokens())
	return nil
}

// Me returns the signed-in profile.
func (c *Client) Me(ctx context.Context) (Profile, error) {
	var p Profile
	err := c.send(ctx, http.MethodGet, "/v1/me", nil, &p, true)
	return p, err
}

// Seats returns the seat map ordered by row then column.
func (c *Client) Seats(ctx context.Context) ([]Seat, error) {
	var resp struct {
		Seats []Seat `json:"seats"`
	}
	err := c.send(ctx, http.MethodGet, "/v1/seats", nil, &resp, true)
	return resp.Seats, err
}

// Lock acquires a seat.
func (c *Client) Lock(ctx context.Context, seatID string) (Lock, error) {
	var l Lock
	err := c.send(ctx, http.MethodPost, "/v1/seats/"+url.PathEscape(seatID)+"/lock", nil, &l, true)
	return l, err
}

// Cancel releases the caller's lock.
func (c *Client) Cancel(ctx context.Context, seatID string) (Seat, error) {
	var resp struct {
		Seat Seat `json:"seat"`
	}
	err := c.send(ctx, http.MethodDelete, "/v1/seats/"+url.PathEscape(seatID)+"/lock", nil, &resp, true)
	return resp.Seat, err
}

// Confirm books the locked seat.
func (c *Client) Confirm(ctx context.Context, seatID string) (model.Booking, error) {
	var resp struct {
		Booking model.Booking `json:"booking"`
	}
	err := c.send(ctx, http.MethodPost, "/v1/seats/"+url.PathEscape(seatID)+"/confirm", nil, &resp, true)
	return resp.Booking, err
}

// Latest returns the caller's most recent booking.
func (c *Client) Latest(ctx context.Context) (model.Booking, error) {
	var b model.Booking
	err := c.send(ctx, http.MethodGet, "/v1/bookings/latest", nil, &b, true)
	return b, err
}

// Booking returns one of the caller's bookings.
func (c *Client) Booking(ctx context.Context, id string) (model.Booking, error) {
	var b model.Booking
	err := c.send(ctx, http.MethodGet, "/v1/bookings/"+url.PathEscape(id), nil, &b, true)
	return b, err
}

// BookingOrLatest looks up id and falls back to the latest booking when id
// is empty or unknown.
func (c *Client) BookingOrLatest(ctx context.Context, id string) (model.Booking, error) {
	if id != "" {
		b, err := c.Booking(ctx, id)
		if err == nil || !errors.Is(err, booking.ErrBookingNotFound) {
			return b, err
		}
	}
	return c.Latest(ctx)
}

// send performs one JSON request.  With auth set, a 401 triggers one token
// refresh and a retry.
func (c *Client) send(ctx context.Context, method, path string, in, out any, auth bool) error {
	res, err := c.do(ctx, method, path, in, auth)
	if err != nil {
		return err
	}
	if res.StatusCode == http.StatusUnauthorized && auth && c.Tokens().Refresh != "" {
		res.Body.Close()
		if err := c.refresh(ctx); err != nil {
			return err
		}
		if res, err = c.do(ctx, method, path, in, auth); err != nil {
			return err
		}
	}
	defer res.Body.Close()
	return decode(res, out)
}

func (c *Client) do(ctx context.Context, method, path string, in any, auth bool) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		t := c.Tokens()
		if t.Access == "" {
			return nil, ErrNotSignedIn
		}
		req.Header.Set("Authorization", "Bearer "+t.Access)
	}
	return c.http.Do(req)
}

func decode(res *http.Response, out any) error {
	if res.StatusCode >= 300 {
		apiErr := &APIError{Status: res.StatusCode}
		_ = json.NewDecoder(res.Body).Decode(apiErr)
		if apiErr.Code == "" {
			apiErr.Code = http.StatusText(res.StatusCode)
		}
		return apiErr
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
