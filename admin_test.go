package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func adminRequest(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func signUpTestAdmin(t *testing.T) *http.Cookie {
	t.Helper()
	username := fmt.Sprintf("admin_%d", time.Now().UnixNano())
	rec := adminRequest("POST", "/admin/signup", map[string]any{
		"username": username,
		"password": "testpassword123",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup failed: %d %s", rec.Code, rec.Body.String())
	}
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "admin_token" && cookie.Value != "" {
			return cookie
		}
	}
	t.Fatal("signup did not set a session cookie")
	return nil
}

func TestAdminRequiresAuthentication(t *testing.T) {
	rec := adminRequest("GET", "/admin/forms", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without cookie, got %d", rec.Code)
	}

	bogus := &http.Cookie{Name: "admin_token", Value: "not-a-real-token"}
	rec = adminRequest("GET", "/admin/forms", nil, bogus)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bogus token, got %d", rec.Code)
	}
}

func TestAdminSignInFlow(t *testing.T) {
	username := fmt.Sprintf("signin_%d", time.Now().UnixNano())
	rec := adminRequest("POST", "/admin/signup", map[string]any{
		"username": username,
		"password": "correct-horse",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup failed: %d", rec.Code)
	}

	rec = adminRequest("POST", "/admin/signin", map[string]any{
		"username": username,
		"password": "wrong",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rec.Code)
	}

	rec = adminRequest("POST", "/admin/signin", map[string]any{
		"username": username,
		"password": "correct-horse",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for good password, got %d", rec.Code)
	}
}

func TestAdminFormLifecycle(t *testing.T) {
	cookie := signUpTestAdmin(t)

	// create
	rec := adminRequest("POST", "/admin/forms", map[string]any{
		"name":            "Landing Page Form",
		"allowed_domains": []string{"landing.example"},
	}, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", rec.Code, rec.Body.String())
	}
	var created Form
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode created form: %v", err)
	}
	if created.Hash == "" {
		t.Fatal("created form should have a generated hash")
	}

	// add a field
	rec = adminRequest("POST", fmt.Sprintf("/admin/forms/%d/fields", created.ID), map[string]any{
		"name":     "email",
		"type":     "email",
		"required": true,
	}, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("field create failed: %d %s", rec.Code, rec.Body.String())
	}

	// duplicate (form, name) pairs are rejected
	rec = adminRequest("POST", fmt.Sprintf("/admin/forms/%d/fields", created.ID), map[string]any{
		"name": "email",
		"type": "email",
	}, cookie)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate field name, got %d", rec.Code)
	}

	// update keeps the hash immutable
	rec = adminRequest("PUT", fmt.Sprintf("/admin/forms/%d", created.ID), map[string]any{
		"name":      "Renamed Form",
		"is_active": true,
	}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("update failed: %d %s", rec.Code, rec.Body.String())
	}
	var updated Form
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("failed to decode updated form: %v", err)
	}
	if updated.Hash != created.Hash {
		t.Errorf("hash changed on update: %q -> %q", created.Hash, updated.Hash)
	}
	if updated.Name != "Renamed Form" {
		t.Errorf("name not updated: %q", updated.Name)
	}

	// the intake pipeline sees the new schema after cache invalidation
	rec = postJSON(created.Hash, nextTestIP(), map[string]any{"email": "a@b.example"}, nil)
	if rec2 := rec.Code; rec2 != http.StatusOK {
		t.Fatalf("expected 200 from intake, got %d", rec2)
	}
	if count := submissionCount(t, created.ID); count != 1 {
		t.Errorf("expected 1 submission, got %d", count)
	}

	// list submissions
	rec = adminRequest("GET", fmt.Sprintf("/admin/forms/%d/submissions", created.ID), nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("submission list failed: %d", rec.Code)
	}
	var submissions []FormSubmission
	if err := json.Unmarshal(rec.Body.Bytes(), &submissions); err != nil {
		t.Fatalf("failed to decode submissions: %v", err)
	}
	if len(submissions) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(submissions))
	}

	// delete the submission
	rec = adminRequest("DELETE", fmt.Sprintf("/admin/submissions/%d", submissions[0].ID), nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("submission delete failed: %d", rec.Code)
	}
	if count := submissionCount(t, created.ID); count != 0 {
		t.Errorf("expected 0 submissions after delete, got %d", count)
	}
}

func TestAdminDeactivateFormHidesIntake(t *testing.T) {
	cookie := signUpTestAdmin(t)

	rec := adminRequest("POST", "/admin/forms", map[string]any{"name": "Toggle Form"}, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d", rec.Code)
	}
	var form Form
	if err := json.Unmarshal(rec.Body.Bytes(), &form); err != nil {
		t.Fatalf("failed to decode form: %v", err)
	}

	// live first
	if rec := postJSON(form.Hash, nextTestIP(), map[string]any{}, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 while active, got %d", rec.Code)
	}

	rec = adminRequest("PUT", fmt.Sprintf("/admin/forms/%d", form.ID), map[string]any{
		"name":      "Toggle Form",
		"is_active": false,
	}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate failed: %d", rec.Code)
	}

	// an inactive form behaves as if it does not exist
	if rec := postJSON(form.Hash, nextTestIP(), map[string]any{}, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 while inactive, got %d", rec.Code)
	}
}

func TestAdminFieldValidation(t *testing.T) {
	cookie := signUpTestAdmin(t)

	rec := adminRequest("POST", "/admin/forms", map[string]any{"name": "Field Types"}, cookie)
	var form Form
	if err := json.Unmarshal(rec.Body.Bytes(), &form); err != nil {
		t.Fatalf("failed to decode form: %v", err)
	}

	rec = adminRequest("POST", fmt.Sprintf("/admin/forms/%d/fields", form.ID), map[string]any{
		"name": "bad",
		"type": "telepathy",
	}, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field type, got %d", rec.Code)
	}

	rec = adminRequest("POST", fmt.Sprintf("/admin/forms/%d/fields", form.ID), map[string]any{
		"type": "text",
	}, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing field name, got %d", rec.Code)
	}
}
