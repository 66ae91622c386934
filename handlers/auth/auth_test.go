package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandleToken_IssuesValidToken(t *testing.T) {
	InitAuth()

	req := httptest.NewRequest(http.MethodGet, "/auth/token?surface=picker", nil)
	req.RemoteAddr = "127.0.0.1:54321"
	rec := httptest.NewRecorder()
	HandleToken(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d (body %s)", rec.Code, rec.Body.String())
	}

	var out map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := ParseJWT(out["token"])
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if claims.Surface != "picker" {
		t.Errorf("surface claim: got %q", claims.Surface)
	}
	if claims.Issuer != "excalisave" {
		t.Errorf("issuer claim: got %q", claims.Issuer)
	}
}

func TestHandleToken_RefusesRemoteCallers(t *testing.T) {
	InitAuth()

	req := httptest.NewRequest(http.MethodGet, "/auth/token", nil)
	req.RemoteAddr = "203.0.113.7:44000"
	rec := httptest.NewRecorder()
	HandleToken(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want 403", rec.Code)
	}
}

func TestParseJWT_Garbage(t *testing.T) {
	InitAuth()

	if _, err := ParseJWT("not-a-token"); err == nil {
		t.Error("ParseJWT() accepted garbage")
	}
}
