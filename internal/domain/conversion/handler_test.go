package conversion

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func approveReq(t *testing.T, f *fixture, budgetID string, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/budgets/"+budgetID+"/approve", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/budgets/:id/approve")
	c.SetParamNames("id")
	c.SetParamValues(budgetID)
	return rec, NewHandler(f.svc).Approve(c)
}

func TestApproveSuccess(t *testing.T) {
	f := newFixture(30)
	prof := uuid.New()
	b := f.seedBudget(&prof)
	body := fmt.Sprintf(`{"approved_by":%q}`, uuid.New())

	rec, err := approveReq(t, f, b.ID.String(), body)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}

	var resp struct {
		Success     bool      `json:"success"`
		TreatmentID uuid.UUID `json:"treatment_id"`
		Titles      []any     `json:"titles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.TreatmentID == uuid.Nil {
		t.Errorf("bad response: %+v", resp)
	}
	if len(resp.Titles) != 6 {
		t.Errorf("expected 6 titles in response, got %d", len(resp.Titles))
	}
}

func TestApproveErrorMapping(t *testing.T) {
	f := newFixture(30)
	b := f.seedBudget(nil)
	rejected := f.seedBudget(nil)
	f.w.budgets[rejected.ID].Status = "rejected"

	empty := f.seedBudget(nil)
	f.w.budgetItems[empty.ID] = nil

	body := fmt.Sprintf(`{"approved_by":%q}`, uuid.New())

	tests := []struct {
		name     string
		budgetID string
		body     string
		want     int
	}{
		{"bad uuid", "not-a-uuid", body, http.StatusBadRequest},
		{"missing approver", b.ID.String(), `{}`, http.StatusBadRequest},
		{"not found", uuid.New().String(), body, http.StatusNotFound},
		{"rejected", rejected.ID.String(), body, http.StatusBadRequest},
		{"empty budget", empty.ID.String(), body, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := approveReq(t, f, tt.budgetID, tt.body)
			code := rec.Code
			if err != nil {
				he, ok := err.(*echo.HTTPError)
				if !ok {
					t.Fatalf("unexpected error type %T", err)
				}
				code = he.Code
			}
			if code != tt.want {
				t.Errorf("status %d, want %d", code, tt.want)
			}
		})
	}
}

func TestApproveConflictReturnsExistingTreatment(t *testing.T) {
	f := newFixture(30)
	b := f.seedBudget(nil)
	body := fmt.Sprintf(`{"approved_by":%q}`, uuid.New())

	rec, err := approveReq(t, f, b.ID.String(), body)
	if err != nil || rec.Code != http.StatusOK {
		t.Fatalf("first approve: err=%v code=%d", err, rec.Code)
	}
	var first struct {
		TreatmentID uuid.UUID `json:"treatment_id"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &first)

	rec, err = approveReq(t, f, b.ID.String(), body)
	if err != nil {
		t.Fatalf("second approve returned transport error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
	var second struct {
		TreatmentID uuid.UUID `json:"treatment_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode conflict body: %v", err)
	}
	if second.TreatmentID != first.TreatmentID {
		t.Errorf("conflict treatment %s, want %s", second.TreatmentID, first.TreatmentID)
	}
}
