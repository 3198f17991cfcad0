package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type adminContextKey struct{}

func getSignedInAdminUserOrNil(r *http.Request) *AdminUser {
	adminUser, _ := r.Context().Value(adminContextKey{}).(*AdminUser)
	return adminUser
}

func generateAuthToken() (string, error) {
	const tokenLength = 32
	tokenBytes := make([]byte, tokenLength)
	_, err := rand.Read(tokenBytes)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(tokenBytes), nil
}

// AdminAuthMiddleware resolves the session token cookie to an AdminUser
// and stores it in the request context.
func AdminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("admin_token")
		if err != nil || cookie.Value == "" {
			respondJSON(w, http.StatusUnauthorized, map[string]any{"message": "Authentication required"})
			return
		}

		var admin AdminUser
		result := db.Where("session_token = ?", cookie.Value).First(&admin)
		if result.Error != nil {
			respondJSON(w, http.StatusUnauthorized, map[string]any{"message": "Authentication required"})
			return
		}

		ctx := context.WithValue(r.Context(), adminContextKey{}, &admin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func setAdminSession(w http.ResponseWriter, admin *AdminUser) error {
	token, err := generateAuthToken()
	if err != nil {
		return err
	}
	admin.SessionToken = token
	if result := db.Save(admin); result.Error != nil {
		return result.Error
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "admin_token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
	return nil
}

func AdminSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		respondJSON(w, http.StatusBadRequest, map[string]any{"message": "Username and password are required"})
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"message": "Error creating account"})
		return
	}

	newAdmin := AdminUser{Username: req.Username, PasswordHash: passwordHash}
	if result := db.Create(&newAdmin); result.Error != nil {
		respondJSON(w, http.StatusConflict, map[string]any{"message": "Username already taken"})
		return
	}

	if err := setAdminSession(w, &newAdmin); err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"message": "Error creating account"})
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"username": newAdmin.Username})
}

func AdminSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid request"})
		return
	}

	var admin AdminUser
	result := db.Where("username = ?", req.Username).First(&admin)
	if result.Error != nil {
		respondJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword(admin.PasswordHash, []byte(req.Password)); err != nil {
		respondJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid credentials"})
		return
	}

	if err := setAdminSession(w, &admin); err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"message": "Error signing in"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"username": admin.Username})
}

type formRequest struct {
	Name              string   `json:"name"`
	AllowedDomains    []string `json:"allowed_domains"`
	NotificationEmail string   `json:"notification_email"`
	SlackWebhookURL   string   `json:"slack_webhook_url"`
	SuccessRedirect   string   `json:"success_redirect"`
	ErrorRedirect     string   `json:"error_redirect"`
	IsActive          *bool    `json:"is_active"`
}

func (req *formRequest) apply(form *Form) error {
	form.Name = req.Name
	form.NotificationEmail = req.NotificationEmail
	form.SlackWebhookURL = req.SlackWebhookURL
	form.SuccessRedirect = req.SuccessRedirect
	form.ErrorRedirect = req.ErrorRedirect
	if req.IsActive != nil {
		form.IsActive = *req.IsActive
	}
	if req.AllowedDomains == nil {
		form.AllowedDomains = nil
		return nil
	}
	encoded, err := json.Marshal(req.AllowedDomains)
	if err != nil {
		return err
	}
	form.AllowedDomains = datatypes.JSON(encoded)
	return nil
}

func AdminListForms(w http.ResponseWriter, r *http.Request) {
	var forms []Form
	if result := db.Preload("Fields", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("display_order ASC, id ASC")
	}).Find(&forms); result.Error != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"message": "Error fetching forms"})
		return
	}
	respondJSON(w, http.StatusOK, forms)
}

func AdminCreateForm(w http.ResponseWriter, r *http.Request) {
	var req formRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondJSON(w, http.StatusBadRequest, map[string]any{"message": "Form name is required"})
		return
	}

	form := Form{IsActive: true}
	if err := req.apply(&form); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid allowed_domains"})
		return
	}
	if result := db.Create(&form); result.Error != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"message": "Error creating form"})
		return
	}
	respondJSON(w, http.StatusCreated, form)
}

func loadFormByID(w http.ResponseWriter, r *http.Request) (Form, bool) {
	var form Form
	result := db.Preload("Fields", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("display_order ASC, id ASC")
	}).First(&form, chi.URLParam(r, "formID"))
	if result.Error != nil {
		respondJSON(w, http.StatusNotFound, map[string]any{"message": "Form not found"})
		return Form{}, false
	}
	return form, true
}

func AdminShowForm(w http.ResponseWriter, r *http.Request) {
	form, ok := loadFormByID(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, form)
}

func AdminUpdateForm(w http.ResponseWriter, r *http.Request) {
	form, ok := loadFormByID(w, r)
	if !ok {
		return
	}

	var req formRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid request"})
		return
	}
	// hash is immutable; apply never touches it
	if err := req.apply(&form); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid allowed_domains"})
		return
	}
	if result := db.Save(&form); result.Error != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"message": "Error updating form"})
		return
	}
	formCache.Invalidate(form.Hash)
	respondJSON(w, http.StatusOK, form)
}

func AdminDeleteForm(w http.ResponseWriter, r *http.Request) {
	form, ok := loadFormByID(w, r)
	if !ok {
		return
	}
	if result := db.Select("Fields", "Submissions").Delete(&form); result.Error != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"message": "Error deleting form"})
		return
	}
	formCache.Invalidate(form.Hash)
	respondJSON(w, http.StatusOK, map[string]any{"message": "Form deleted"})
}

type fieldRequest struct {
	Name            string `json:"name"`
	Type            string `json:"type"`
	Required        bool   `json:"required"`
	DisplayOrder    int    `json:"display_order"`
	ValidationRules string `json:"validation_rules"`
}

func validFieldType(t string) bool {
	switch t {
	case FieldTypeText, FieldTypeEmail, FieldTypePhone, FieldTypeURL, FieldTypeHoneypot:
		return true
	}
	return false
}

func AdminCreateField(w http.ResponseWriter, r *http.Request) {
	form, ok := loadFormByID(w, r)
	if !ok {
		return
	}

	var req fieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondJSON(w, http.StatusBadRequest, map[string]any{"message": "Field name is required"})
		return
	}
	if req.Type == "" {
		req.Type = FieldTypeText
	}
	if !validFieldType(req.Type) {
		respondJSON(w, http.StatusBadRequest, map[string]any{"message": "Unknown field type"})
		return
	}

	field := FormField{
		FormID:          form.ID,
		Name:            req.Name,
		Type:            req.Type,
		Required:        req.Required,
		DisplayOrder:    req.DisplayOrder,
		ValidationRules: req.ValidationRules,
	}
	if result := db.Create(&field); result.Error != nil {
		respondJSON(w, http.StatusConflict, map[string]any{"message": "Field already exists for this form"})
		return
	}
	formCache.Invalidate(form.Hash)
	respondJSON(w, http.StatusCreated, field)
}

func AdminUpdateField(w http.ResponseWriter, r *http.Request) {
	form, ok := loadFormByID(w, r)
	if !ok {
		return
	}

	var field FormField
	if result := db.Where("form_id = ?", form.ID).First(&field, chi.URLParam(r, "fieldID")); result.Error != nil {
		respondJSON(w, http.StatusNotFound, map[string]any{"message": "Field not found"})
		return
	}

	var req fieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondJSON(w, http.StatusBadRequest, map[string]any{"message": "Field name is required"})
		return
	}
	if req.Type != "" && !validFieldType(req.Type) {
		respondJSON(w, http.StatusBadRequest, map[string]any{"message": "Unknown field type"})
		return
	}

	field.Name = req.Name
	if req.Type != "" {
		field.Type = req.Type
	}
	field.Required = req.Required
	field.DisplayOrder = req.DisplayOrder
	field.ValidationRules = req.ValidationRules
	if result := db.Save(&field); result.Error != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"message": "Error updating field"})
		return
	}
	formCache.Invalidate(form.Hash)
	respondJSON(w, http.StatusOK, field)
}

func AdminDeleteField(w http.ResponseWriter, r *http.Request) {
	form, ok := loadFormByID(w, r)
	if !ok {
		return
	}
	result := db.Where("form_id = ?", form.ID).Delete(&FormField{}, chi.URLParam(r, "fieldID"))
	if result.Error != nil || result.RowsAffected == 0 {
		respondJSON(w, http.StatusNotFound, map[string]any{"message": "Field not found"})
		return
	}
	formCache.Invalidate(form.Hash)
	respondJSON(w, http.StatusOK, map[string]any{"message": "Field deleted"})
}

func AdminListSubmissions(w http.ResponseWriter, r *http.Request) {
	form, ok := loadFormByID(w, r)
	if !ok {
		return
	}
	var submissions []FormSubmission
	if result := db.Where("form_id = ?", form.ID).Order("created_at DESC").Find(&submissions); result.Error != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"message": "Error fetching submissions"})
		return
	}
	respondJSON(w, http.StatusOK, submissions)
}

func AdminDeleteSubmission(w http.ResponseWriter, r *http.Request) {
	result := db.Delete(&FormSubmission{}, chi.URLParam(r, "submissionID"))
	if result.Error != nil || result.RowsAffected == 0 {
		respondJSON(w, http.StatusNotFound, map[string]any{"message": "Submission not found"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "Submission deleted"})
}
