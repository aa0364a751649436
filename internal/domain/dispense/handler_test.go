package dispense

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/medtrack/medtrack/internal/platform/auth"
	"github.com/medtrack/medtrack/pkg/pagination"
)

func dispenseContext(e *echo.Echo, f *fixture, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, f.pharmacist.ID.String())
	ctx = context.WithValue(ctx, auth.UserRoleKey, auth.RolePharmacist)
	rec := httptest.NewRecorder()
	c := e.NewContext(req.WithContext(ctx), rec)
	c.SetPath("/api/v1/pharmacy/prescriptions/:id/dispense")
	c.SetParamNames("id")
	c.SetParamValues(f.rx.ID.String())
	return c, rec
}

func TestDispenseHandler_CreatedThenOK(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	e := echo.New()

	c, rec := dispenseContext(e, f, `{"remarks":"full course"}`)
	if err := h.Dispense(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 on first dispense, got %d", rec.Code)
	}
	var result Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Message != "dispense recorded" {
		t.Errorf("unexpected message: %q", result.Message)
	}

	c, rec = dispenseContext(e, f, `{"remarks":"replay"}`)
	if err := h.Dispense(c); err != nil {
		t.Fatalf("unexpected error on replay: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Message != "dispense already recorded" {
		t.Errorf("unexpected replay message: %q", result.Message)
	}
}

func TestDispenseHandler_UnknownPrescription(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, f.pharmacist.ID.String())
	rec := httptest.NewRecorder()
	c := e.NewContext(req.WithContext(ctx), rec)
	c.SetPath("/api/v1/pharmacy/prescriptions/:id/dispense")
	c.SetParamNames("id")
	c.SetParamValues("00000000-0000-0000-0000-000000000000")

	err := h.Dispense(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestListDispensedHandler(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	e := echo.New()

	if _, err := f.svc.Dispense(context.Background(), f.pharmacist.ID.String(), f.rx.ID.String(), Request{}); err != nil {
		t.Fatalf("dispense failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pharmacy/dispensed", nil)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, f.pharmacist.ID.String())
	rec := httptest.NewRecorder()
	c := e.NewContext(req.WithContext(ctx), rec)

	if err := h.ListDispensed(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp pagination.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("expected total 1, got %d", resp.Total)
	}
}

func TestPatientHistoryHandler(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/pharmacy/patients/:medTrackId/prescriptions")
	c.SetParamNames("medTrackId")
	c.SetParamValues(f.patient.MedTrackID)

	if err := h.PatientHistory(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var history PatientHistory
	if err := json.Unmarshal(rec.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if history.Patient.Name != "Asha" || len(history.Prescriptions) != 1 {
		t.Errorf("unexpected history: %+v", history)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetPath("/api/v1/pharmacy/patients/:medTrackId/prescriptions")
	c.SetParamNames("medTrackId")
	c.SetParamValues("MT-20250101-NOSUCH")

	err := h.PatientHistory(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}
