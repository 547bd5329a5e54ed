package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func setupHandler(t *testing.T) (*Handler, *mockRepo) {
	t.Helper()
	repo := newMockRepo()
	return NewHandler(NewService(repo, nil)), repo
}

func TestHandler_CreateBird(t *testing.T) {
	h, repo := setupHandler(t)
	e := echo.New()

	body := `{"name":"Kiwi","species":"African Grey","price_cents":2500000,"available":true}`
	req := httptest.NewRequest(http.MethodPost, "/admin/birds", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateBird(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if len(repo.birds) != 1 {
		t.Errorf("expected 1 bird stored, got %d", len(repo.birds))
	}
}

func TestHandler_CreateBird_Invalid(t *testing.T) {
	h, _ := setupHandler(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/admin/birds", strings.NewReader(`{"species":"Macaw"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.CreateBird(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_GetBird(t *testing.T) {
	h, repo := setupHandler(t)
	e := echo.New()

	b := &Bird{Name: "Mango", Species: "Macaw"}
	if err := repo.Create(context.Background(), b); err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(b.ID.String())

	if err := h.GetBird(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Bird
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "Mango" {
		t.Errorf("unexpected bird %+v", got)
	}
}

func TestHandler_GetBird_NotFound(t *testing.T) {
	h, _ := setupHandler(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetBird(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_GetBird_BadID(t *testing.T) {
	h, _ := setupHandler(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.GetBird(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_ListBirds(t *testing.T) {
	h, repo := setupHandler(t)
	e := echo.New()

	for _, b := range []*Bird{
		{Name: "A", Species: "Macaw", Available: true},
		{Name: "B", Species: "Cockatiel", Available: true},
	} {
		if err := repo.Create(context.Background(), b); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/?species=Macaw", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListBirds(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data  []Bird `json:"data"`
		Total int    `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || len(resp.Data) != 1 || resp.Data[0].Species != "Macaw" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandler_DeleteBird(t *testing.T) {
	h, repo := setupHandler(t)
	e := echo.New()

	b := &Bird{Name: "Mango", Species: "Macaw"}
	if err := repo.Create(context.Background(), b); err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(b.ID.String())

	if err := h.DeleteBird(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if len(repo.birds) != 0 {
		t.Error("expected bird removed")
	}
}
