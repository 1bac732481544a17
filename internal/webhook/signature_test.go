package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"caddie_backend/platform/logger"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestValidSignature(t *testing.T) {
	body := []byte("From=%2B31612345678&Body=hello")

	tests := []struct {
		name      string
		secret    string
		signature string
		want      bool
	}{
		{"matching", "topsecret", sign("topsecret", body), true},
		{"uppercase hex accepted", "topsecret", strings.ToUpper(sign("topsecret", body)), true},
		{"wrong secret", "topsecret", sign("othersecret", body), false},
		{"empty signature", "topsecret", "", false},
		{"garbage signature", "topsecret", "not-hex-at-all", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidSignature(tt.secret, body, tt.signature); got != tt.want {
				t.Errorf("ValidSignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidSignatureBodySensitive(t *testing.T) {
	sig := sign("topsecret", []byte("original"))
	if ValidSignature("topsecret", []byte("tampered"), sig) {
		t.Error("signature over a different body must not validate")
	}
}

type webhookTestConfig struct {
	token    string
	dedup    time.Duration
	debounce time.Duration
}

func (c webhookTestConfig) GetWebhookAuthToken() string      { return c.token }
func (c webhookTestConfig) GetDedupWindow() time.Duration    { return c.dedup }
func (c webhookTestConfig) GetDebounceWindow() time.Duration { return c.debounce }

func signatureTestRouter(cfg webhookTestConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SignatureMiddleware(cfg, logger.New("test")))
	r.POST("/inbound", func(c *gin.Context) {
		// Downstream must still be able to parse the form.
		c.String(http.StatusOK, c.PostForm("Body"))
	})
	return r
}

func TestSignatureMiddleware(t *testing.T) {
	body := "From=%2B31612345678&Body=hello"

	t.Run("valid signature passes and body is restored", func(t *testing.T) {
		r := signatureTestRouter(webhookTestConfig{token: "topsecret"})
		req := httptest.NewRequest(http.MethodPost, "/inbound", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set(SignatureHeader, sign("topsecret", []byte(body)))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		if w.Body.String() != "hello" {
			t.Errorf("downstream form parse got %q, want %q", w.Body.String(), "hello")
		}
	})

	t.Run("mismatched signature is rejected", func(t *testing.T) {
		r := signatureTestRouter(webhookTestConfig{token: "topsecret"})
		req := httptest.NewRequest(http.MethodPost, "/inbound", strings.NewReader(body))
		req.Header.Set(SignatureHeader, sign("wrong", []byte(body)))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("missing signature is rejected", func(t *testing.T) {
		r := signatureTestRouter(webhookTestConfig{token: "topsecret"})
		req := httptest.NewRequest(http.MethodPost, "/inbound", strings.NewReader(body))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("unconfigured secret rejects everything", func(t *testing.T) {
		r := signatureTestRouter(webhookTestConfig{token: ""})
		req := httptest.NewRequest(http.MethodPost, "/inbound", strings.NewReader(body))
		req.Header.Set(SignatureHeader, sign("", []byte(body)))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}
