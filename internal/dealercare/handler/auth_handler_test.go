package handler

import (
	"net/http"
	"testing"

	"github.com/bitfantasy/dealercare/internal/dealercare/testutil"
)

func TestLoginSuccess(t *testing.T) {
	router, db, _ := setupAPITest(t)
	testutil.SeedTestUser(t, db, "Admin", "admin@dealercare.test", "admin")

	body := map[string]interface{}{"email": "admin@dealercare.test", "password": "password123"}
	w := testutil.DoRequest(router, "POST", "/api/v1/auth/login", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	token := data["token"].(map[string]interface{})
	if token["access_token"] == nil || token["access_token"] == "" {
		t.Error("Expected non-empty access token")
	}
	if token["refresh_token"] == nil || token["refresh_token"] == "" {
		t.Error("Expected non-empty refresh token")
	}
	user := data["user"].(map[string]interface{})
	if user["email"] != "admin@dealercare.test" {
		t.Errorf("Expected user email echoed, got %v", user["email"])
	}
	if user["password_hash"] != nil {
		t.Error("Password hash must not be serialized")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	router, db, _ := setupAPITest(t)
	testutil.SeedTestUser(t, db, "Admin", "admin@dealercare.test", "admin")

	body := map[string]interface{}{"email": "admin@dealercare.test", "password": "wrong"}
	w := testutil.DoRequest(router, "POST", "/api/v1/auth/login", body, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLoginMechanicDenied(t *testing.T) {
	router, db, _ := setupAPITest(t)
	testutil.SeedTestUser(t, db, "Mechanic", "mech@dealercare.test", "mechanic")

	body := map[string]interface{}{"email": "mech@dealercare.test", "password": "password123"}
	w := testutil.DoRequest(router, "POST", "/api/v1/auth/login", body, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for mechanic login, got %d: %s", w.Code, w.Body.String())
	}
}

func TestMe(t *testing.T) {
	router, db, _ := setupAPITest(t)
	user := testutil.SeedTestUser(t, db, "Admin", "admin@dealercare.test", "admin")
	token := testutil.GenerateTestToken(user.ID, user.Name, user.Email, []string{"admin"})

	w := testutil.DoRequest(router, "GET", "/api/v1/auth/me", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	me := data["user"].(map[string]interface{})
	if me["email"] != "admin@dealercare.test" {
		t.Errorf("Expected own profile, got %v", me["email"])
	}
}

func TestMeWithoutToken(t *testing.T) {
	router, _, _ := setupAPITest(t)

	w := testutil.DoRequest(router, "GET", "/api/v1/auth/me", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	router, db, _ := setupAPITest(t)
	testutil.SeedTestUser(t, db, "Admin", "admin@dealercare.test", "admin")

	body := map[string]interface{}{"email": "admin@dealercare.test", "password": "password123"}
	w := testutil.DoRequest(router, "POST", "/api/v1/auth/login", body, "")
	resp := testutil.ParseResponse(w)
	token := resp["data"].(map[string]interface{})["token"].(map[string]interface{})
	refresh := token["refresh_token"].(string)

	w = testutil.DoRequest(router, "POST", "/api/v1/auth/refresh",
		map[string]interface{}{"refresh_token": refresh}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp = testutil.ParseResponse(w)
	rotated := resp["data"].(map[string]interface{})["token"].(map[string]interface{})
	if rotated["refresh_token"] == refresh {
		t.Error("Expected refresh token rotated")
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	router, db, _ := setupAPITest(t)
	testutil.SeedTestUser(t, db, "Admin", "admin@dealercare.test", "admin")

	body := map[string]interface{}{"email": "admin@dealercare.test", "password": "password123"}
	w := testutil.DoRequest(router, "POST", "/api/v1/auth/login", body, "")
	resp := testutil.ParseResponse(w)
	token := resp["data"].(map[string]interface{})["token"].(map[string]interface{})
	access := token["access_token"].(string)

	w = testutil.DoRequest(router, "POST", "/api/v1/auth/refresh",
		map[string]interface{}{"refresh_token": access}, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 when refreshing with access token, got %d: %s", w.Code, w.Body.String())
	}
}
