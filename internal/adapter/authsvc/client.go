// Package authsvc is the typed client for the auth/identity collaborator.
// Identity and project access are queried per request and never cached; the
// gate built on top of this client fails closed on any error.
package authsvc

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/praxos/assistant-core/internal/domain"
	"github.com/praxos/assistant-core/internal/resilience"
)

// Client talks to the auth collaborator through the resilient facade.
type Client struct {
	http *resilience.Client
}

// New constructs the auth client over one resilient dependency client.
func New(rc *resilience.Client) *Client { return &Client{http: rc} }

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login exchanges credentials for a session token. Invalid credentials are
// ErrUnauthorized; outages bubble as ErrTransport/ErrCircuitOpen.
func (c *Client) Login(ctx domain.Context, username, password string) (domain.Session, error) {
	resp, err := c.http.Post(ctx, "/login", loginRequest{Username: username, Password: password}, nil)
	if err != nil {
		return domain.Session{}, fmt.Errorf("op=authsvc.Login: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return domain.Session{}, fmt.Errorf("op=authsvc.Login: %w", domain.ErrUnauthorized)
	}
	if !resp.Success() {
		return domain.Session{}, fmt.Errorf("op=authsvc.Login: status %d: %w", resp.StatusCode, domain.ErrInternal)
	}
	var out loginResponse
	if err := resp.JSON(&out); err != nil {
		return domain.Session{}, fmt.Errorf("op=authsvc.Login: %w", err)
	}
	return domain.Session{Token: out.Token, UserID: out.UserID, Role: out.Role}, nil
}

// Logout invalidates a session token. A token the collaborator no longer
// knows is a success.
func (c *Client) Logout(ctx domain.Context, token string) error {
	resp, err := c.http.Post(ctx, "/logout", map[string]string{"token": token}, nil)
	if err != nil {
		return fmt.Errorf("op=authsvc.Logout: %w", err)
	}
	if !resp.Success() && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("op=authsvc.Logout: status %d: %w", resp.StatusCode, domain.ErrInternal)
	}
	return nil
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Tier     string `json:"tier"`
}

// RegisterIdentity creates the identity record synchronously. The billing
// account is the caller's problem; registration must not wait for it.
func (c *Client) RegisterIdentity(ctx domain.Context, username, password, tier string) (string, error) {
	resp, err := c.http.Post(ctx, "/register", registerRequest{Username: username, Password: password, Tier: tier}, nil)
	if err != nil {
		return "", fmt.Errorf("op=authsvc.RegisterIdentity: %w", err)
	}
	if resp.StatusCode == http.StatusConflict {
		return "", fmt.Errorf("op=authsvc.RegisterIdentity: %w", domain.ErrConflict)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("op=authsvc.RegisterIdentity: status %d: %w", resp.StatusCode, domain.ErrInvalidArgument)
	}
	var out struct {
		UserID string `json:"user_id"`
	}
	if err := resp.JSON(&out); err != nil {
		return "", fmt.Errorf("op=authsvc.RegisterIdentity: %w", err)
	}
	if out.UserID == "" {
		return "", fmt.Errorf("op=authsvc.RegisterIdentity: empty user_id: %w", domain.ErrInternal)
	}
	return out.UserID, nil
}

type verifyResponse struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Tier   string `json:"tier"`
}

// VerifyToken exchanges a session token for the caller's identity. Invalid
// or expired tokens are ErrUnauthorized; outages bubble so the gate can
// answer 503 instead of 401.
func (c *Client) VerifyToken(ctx domain.Context, token string) (domain.Identity, error) {
	resp, err := c.http.Post(ctx, "/verify_token", map[string]string{"token": token}, nil)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("op=authsvc.VerifyToken: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound {
		return domain.Identity{}, fmt.Errorf("op=authsvc.VerifyToken: %w", domain.ErrUnauthorized)
	}
	if !resp.Success() {
		return domain.Identity{}, fmt.Errorf("op=authsvc.VerifyToken: status %d: %w", resp.StatusCode, domain.ErrInternal)
	}
	var out verifyResponse
	if err := resp.JSON(&out); err != nil {
		return domain.Identity{}, fmt.Errorf("op=authsvc.VerifyToken: %w", err)
	}
	if out.UserID == "" {
		return domain.Identity{}, fmt.Errorf("op=authsvc.VerifyToken: empty user_id: %w", domain.ErrUnauthorized)
	}
	return domain.Identity{UserID: out.UserID, Role: out.Role, Tier: out.Tier}, nil
}

type accessResponse struct {
	HasAccess       bool   `json:"has_access"`
	AccessType      string `json:"access_type"`
	PermissionLevel string `json:"permission_level"`
}

// CheckProjectAccess asks whether userID may touch projectID. Ownership or an
// explicit grant is required; role is never consulted here. Every error path
// must be treated by callers as no access.
func (c *Client) CheckProjectAccess(ctx domain.Context, projectID, userID string) (domain.ProjectAccess, error) {
	path := fmt.Sprintf("/internal/projects/%s/check_access", url.PathEscape(projectID))
	resp, err := c.http.Post(ctx, path, map[string]string{"user_id": userID}, nil)
	if err != nil {
		return domain.ProjectAccess{}, fmt.Errorf("op=authsvc.CheckProjectAccess: %w", err)
	}
	if !resp.Success() {
		return domain.ProjectAccess{}, fmt.Errorf("op=authsvc.CheckProjectAccess: status %d: %w", resp.StatusCode, domain.ErrForbidden)
	}
	var out accessResponse
	if err := resp.JSON(&out); err != nil {
		return domain.ProjectAccess{}, fmt.Errorf("op=authsvc.CheckProjectAccess: %w", err)
	}
	return domain.ProjectAccess{
		HasAccess:       out.HasAccess,
		AccessType:      domain.AccessType(out.AccessType),
		PermissionLevel: out.PermissionLevel,
	}, nil
}

// ProjectOwner returns the owner id of a project.
func (c *Client) ProjectOwner(ctx domain.Context, projectID string) (string, error) {
	path := fmt.Sprintf("/internal/projects/%s/owner", url.PathEscape(projectID))
	resp, err := c.http.Get(ctx, path, nil)
	if err != nil {
		return "", fmt.Errorf("op=authsvc.ProjectOwner: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("op=authsvc.ProjectOwner: %w", domain.ErrNotFound)
	}
	if !resp.Success() {
		return "", fmt.Errorf("op=authsvc.ProjectOwner: status %d: %w", resp.StatusCode, domain.ErrInternal)
	}
	var out struct {
		OwnerID string `json:"owner_id"`
	}
	if err := resp.JSON(&out); err != nil {
		return "", fmt.Errorf("op=authsvc.ProjectOwner: %w", err)
	}
	return out.OwnerID, nil
}
