package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/0111v/projeto-faculdade/internal/auth"
	"github.com/0111v/projeto-faculdade/internal/users"
	"github.com/0111v/projeto-faculdade/pkg/enums"
	pkgerrors "github.com/0111v/projeto-faculdade/pkg/errors"
)

type stubAuthService struct {
	registered *auth.RegisterRequest
	loggedIn   *auth.LoginRequest
	meID       uuid.UUID
	err        error
}

func (s *stubAuthService) response(email string) *auth.LoginResponse {
	return &auth.LoginResponse{
		AccessToken:  "access",
		RefreshToken: "refresh",
		User:         &users.UserDTO{ID: uuid.New(), Email: email, Role: enums.UserRoleCustomer},
	}
}

func (s *stubAuthService) Register(ctx context.Context, req auth.RegisterRequest) (*auth.LoginResponse, error) {
	s.registered = &req
	if s.err != nil {
		return nil, s.err
	}
	return s.response(req.Email), nil
}

func (s *stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	s.loggedIn = &req
	if s.err != nil {
		return nil, s.err
	}
	return s.response(req.Email), nil
}

func (s *stubAuthService) Me(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	s.meID = userID
	return &users.UserDTO{ID: userID, Email: "me@example.com", Role: enums.UserRoleCustomer}, nil
}

func TestAuthLoginSetsAccessHeader(t *testing.T) {
	svc := &stubAuthService{}
	body := `{"email":"ana@example.com","password":"secret1"}`
	rec := httptest.NewRecorder()
	AuthLogin(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(accessTokenHeader) != "access" {
		t.Fatalf("missing access token header")
	}
	var got auth.LoginResponse
	decodeData(t, rec, &got)
	if got.RefreshToken != "refresh" || got.User == nil || got.User.Email != "ana@example.com" {
		t.Fatalf("unexpected response %+v", got)
	}
}

func TestAuthLoginInvalidCredentials(t *testing.T) {
	svc := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	body := `{"email":"ana@example.com","password":"wrong"}`
	rec := httptest.NewRecorder()
	AuthLogin(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAuthRegisterCreated(t *testing.T) {
	svc := &stubAuthService{}
	body := `{"email":"new@example.com","password":"secret1","confirm_password":"secret1"}`
	rec := httptest.NewRecorder()
	AuthRegister(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.registered == nil || svc.registered.ConfirmPassword != "secret1" {
		t.Fatalf("unexpected register request %+v", svc.registered)
	}
}

func TestAuthRegisterRejectsShortPassword(t *testing.T) {
	svc := &stubAuthService{}
	body := `{"email":"new@example.com","password":"123","confirm_password":"123"}`
	rec := httptest.NewRecorder()
	AuthRegister(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if svc.registered != nil {
		t.Fatal("service must not be called")
	}
}

func TestAuthMe(t *testing.T) {
	svc := &stubAuthService{}
	userID := uuid.New()
	req := withUser(httptest.NewRequest(http.MethodGet, "/auth/me", nil), userID, enums.UserRoleCustomer)
	rec := httptest.NewRecorder()
	AuthMe(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || svc.meID != userID {
		t.Fatalf("expected profile for caller, code=%d id=%s", rec.Code, svc.meID)
	}
}
