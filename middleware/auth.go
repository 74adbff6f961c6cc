package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const APIKeyHeader = "X-API-Key"

// APIKeyConfig configures the access gate. Key is compared in constant time;
// Hash is a bcrypt hash of the key. Either may be empty.
type APIKeyConfig struct {
	Key  string
	Hash string
}

// APIKey rejects requests without a valid key in X-API-Key or the api_key query parameter.
// With neither Key nor Hash configured every request passes.
func APIKey(cfg APIKeyConfig) gin.HandlerFunc {
	if cfg.Key == "" && cfg.Hash == "" {
		return func(c *gin.Context) { c.Next() }
	}

	// sha256 fingerprints of keys that already matched Hash
	var verified sync.Map

	return func(c *gin.Context) {
		presented := strings.TrimSpace(c.GetHeader(APIKeyHeader))
		if presented == "" {
			presented = strings.TrimSpace(c.Query("api_key"))
		}
		if presented == "" {
			abortUnauthorized(c, "Missing API key")
			return
		}

		if cfg.Key != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(cfg.Key)) == 1 {
			c.Next()
			return
		}

		if cfg.Hash != "" {
			sum := sha256.Sum256([]byte(presented))
			fingerprint := hex.EncodeToString(sum[:])
			if _, ok := verified.Load(fingerprint); ok {
				c.Next()
				return
			}
			if bcrypt.CompareHashAndPassword([]byte(cfg.Hash), []byte(presented)) == nil {
				verified.Store(fingerprint, struct{}{})
				c.Next()
				return
			}
		}

		abortUnauthorized(c, "Invalid API key")
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	})
}
