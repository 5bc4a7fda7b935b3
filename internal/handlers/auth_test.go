package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"controlling_dehumidifier/internal/repository"
	"controlling_dehumidifier/internal/service"

	"github.com/gin-gonic/gin"
)

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestAuthHandlers_SignUp(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		signUpErr error
		wantCode  int
		wantError string
	}{
		{name: "created", body: `{"username":"operator","password":"humid-2025"}`, wantCode: http.StatusOK},
		{name: "missing password", body: `{"username":"operator"}`, wantCode: http.StatusBadRequest},
		{name: "not json", body: `username=operator`, wantCode: http.StatusBadRequest},
		{
			name:      "duplicate",
			body:      `{"username":"operator","password":"humid-2025"}`,
			signUpErr: fmt.Errorf("create user: %w", repository.ErrUsernameTaken),
			wantCode:  http.StatusConflict,
			wantError: repository.ErrUsernameTaken.Error(),
		},
		{
			name:      "weak password",
			body:      `{"username":"operator","password":"pw"}`,
			signUpErr: service.ErrWeakPassword,
			wantCode:  http.StatusBadRequest,
			wantError: service.ErrWeakPassword.Error(),
		},
		{
			name:      "password over bcrypt limit",
			body:      `{"username":"operator","password":"` + strings.Repeat("p", 80) + `"}`,
			signUpErr: service.ErrPasswordTooLong,
			wantCode:  http.StatusBadRequest,
			wantError: service.ErrPasswordTooLong.Error(),
		},
		{
			name:      "bad username",
			body:      `{"username":"a b","password":"humid-2025"}`,
			signUpErr: service.ErrInvalidUsername,
			wantCode:  http.StatusBadRequest,
			wantError: service.ErrInvalidUsername.Error(),
		},
		{
			name:      "storage failure is hidden",
			body:      `{"username":"operator","password":"humid-2025"}`,
			signUpErr: errors.New("database is locked"),
			wantCode:  http.StatusInternalServerError,
			wantError: "failed to create user",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			auth := &mockAuth{signUpID: 42, signUpErr: tc.signUpErr}
			r := newTestRouter(&service.Service{Authorization: auth})

			w := postJSON(r, "/auth/sign-up", tc.body)
			if w.Code != tc.wantCode {
				t.Fatalf("status=%d want %d, body=%s", w.Code, tc.wantCode, w.Body.String())
			}
			var m map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if tc.wantCode == http.StatusOK {
				if id, _ := m["id"].(float64); int(id) != 42 {
					t.Fatalf("id=%v, want 42", m["id"])
				}
				if auth.lastSignUpUsername != "operator" || auth.lastSignUpPassword != "humid-2025" {
					t.Fatalf("credentials not forwarded: %q/%q", auth.lastSignUpUsername, auth.lastSignUpPassword)
				}
				return
			}
			if tc.wantError != "" && m["error"] != tc.wantError {
				t.Fatalf("error=%q, want %q", m["error"], tc.wantError)
			}
		})
	}
}

func TestAuthHandlers_SignIn(t *testing.T) {
	t.Run("token issued", func(t *testing.T) {
		auth := &mockAuth{genTokenToken: "tok123"}
		r := newTestRouter(&service.Service{Authorization: auth})

		w := postJSON(r, "/auth/sign-in", `{"username":"operator","password":"humid-2025"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
		}
		var m map[string]string
		_ = json.Unmarshal(w.Body.Bytes(), &m)
		if m["token"] != "tok123" {
			t.Fatalf("token=%q", m["token"])
		}
		if auth.lastGenUsername != "operator" || auth.lastGenPassword != "humid-2025" {
			t.Fatalf("credentials not forwarded: %q/%q", auth.lastGenUsername, auth.lastGenPassword)
		}
	})

	t.Run("bad body", func(t *testing.T) {
		r := newTestRouter(&service.Service{Authorization: &mockAuth{}})
		if w := postJSON(r, "/auth/sign-in", `{"username":1}`); w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	for _, cause := range []error{service.ErrUserNotFound, service.ErrInvalidPassword, errors.New("db down")} {
		cause := cause
		t.Run("hides "+cause.Error(), func(t *testing.T) {
			r := newTestRouter(&service.Service{Authorization: &mockAuth{genTokenErr: cause}})
			w := postJSON(r, "/auth/sign-in", `{"username":"operator","password":"wrong-pass"}`)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
			var m map[string]string
			_ = json.Unmarshal(w.Body.Bytes(), &m)
			if m["error"] != "invalid credentials" {
				t.Fatalf("sign-in must not leak the cause, got %q", m["error"])
			}
		})
	}
}
