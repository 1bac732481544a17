package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"caddie_backend/platform/config"
	"caddie_backend/platform/logger"
)

// SignatureHeader carries the transport's hex-encoded HMAC-SHA256 of the
// raw request body.
const SignatureHeader = "X-Webhook-Signature"

// SignatureMiddleware rejects deliveries whose signature does not match
// the shared secret. A deployment without a configured secret rejects
// everything rather than accepting everything.
func SignatureMiddleware(cfg config.WebhookConfig, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := cfg.GetWebhookAuthToken()
		if secret == "" {
			log.Error("webhook secret not configured; rejecting delivery")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		// The form parser downstream needs the body back.
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if !ValidSignature(secret, body, c.GetHeader(SignatureHeader)) {
			log.Warn("webhook signature mismatch", "client_ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		c.Next()
	}
}

// ValidSignature checks a hex HMAC-SHA256 signature in constant time.
func ValidSignature(secret string, body []byte, signature string) bool {
	signature = strings.TrimSpace(strings.ToLower(signature))
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
