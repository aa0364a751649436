package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithRole(c echo.Context, role string) echo.Context {
	ctx := context.WithValue(c.Request().Context(), UserRoleKey, role)
	c.SetRequest(c.Request().WithContext(ctx))
	return c
}

func TestRequireRole_Allowed(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := contextWithRole(e.NewContext(req, rec), RoleDoctor)

	called := false
	handler := func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	}

	h := RequireRole(RoleDoctor)(handler)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to be called")
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := contextWithRole(e.NewContext(req, rec), RolePatient)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	h := RequireRole(RolePharmacist)(handler)
	err := h(c)
	if err == nil {
		t.Fatal("expected error for wrong role")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.Code)
	}
}

func TestRequireRole_AdminPassesAllGates(t *testing.T) {
	for _, gate := range []string{RoleDoctor, RolePharmacist, RolePatient} {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := contextWithRole(e.NewContext(req, rec), RoleAdmin)

		handler := func(c echo.Context) error {
			return c.String(http.StatusOK, "ok")
		}

		h := RequireRole(gate)(handler)
		if err := h(c); err != nil {
			t.Errorf("admin blocked at %s gate: %v", gate, err)
		}
	}
}

func TestRequireRole_NoRoleInContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	h := RequireRole(RoleDoctor)(handler)
	if err := h(c); err == nil {
		t.Fatal("expected error when no role is present")
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RolePatient, RoleDoctor, RolePharmacist, RoleAdmin} {
		if !ValidRole(role) {
			t.Errorf("expected %s to be valid", role)
		}
	}
	if ValidRole("NURSE") {
		t.Error("expected NURSE to be invalid")
	}
	if ValidRole("") {
		t.Error("expected empty role to be invalid")
	}
}

func TestPassword_HashAndCheck(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatal("hash must not equal plaintext")
	}
	if !CheckPassword(hash, "s3cret-pass") {
		t.Error("expected matching password to verify")
	}
	if CheckPassword(hash, "wrong-pass") {
		t.Error("expected wrong password to fail")
	}
}
