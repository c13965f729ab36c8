package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/finom/vovk"
)

// CORSConfig holds the configuration for CORS middleware.
type CORSConfig struct {
	// AllowOrigins is a list of origins a cross-domain request can be executed from.
	// If the list contains "*", all origins are allowed.
	// Default: ["*"]
	AllowOrigins []string `yaml:"allowOrigins"`

	// AllowMethods is a list of methods the client is allowed to use.
	// Default: every verb a route decorator can claim.
	AllowMethods []string `yaml:"allowMethods"`

	// AllowHeaders is a list of headers the client is allowed to use.
	// Default: ["Content-Type", "Authorization"]
	AllowHeaders []string `yaml:"allowHeaders"`

	// ExposeHeaders indicates which headers are safe to expose.
	ExposeHeaders []string `yaml:"exposeHeaders"`

	// AllowCredentials indicates whether the request can include credentials.
	AllowCredentials bool `yaml:"allowCredentials"`

	// MaxAge indicates how long (in seconds) the results of a preflight request can be cached.
	// Default: 0 (not set)
	MaxAge int `yaml:"maxAge"`
}

func defaultMethods() []string {
	methods := make([]string, len(vovk.Methods))
	for i, m := range vovk.Methods {
		methods[i] = string(m)
	}
	return methods
}

// CORS returns an HTTP middleware that answers preflight requests and sets
// CORS headers. A nil cfg allows every origin.
//
// Only OPTIONS requests carrying Access-Control-Request-Method are treated as
// preflight; other OPTIONS requests reach the wrapped handler so that routes
// declared with Segment.Options still work.
func CORS(cfg *CORSConfig) func(http.Handler) http.Handler {
	if cfg == nil {
		cfg = &CORSConfig{}
	}

	allowedOrigins := cfg.AllowOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	wildcard := slices.Contains(allowedOrigins, "*")

	allowedMethods := cfg.AllowMethods
	if len(allowedMethods) == 0 {
		allowedMethods = defaultMethods()
	}

	allowedHeaders := cfg.AllowHeaders
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{"Content-Type", "Authorization"}
	}

	allowedMethodsStr := strings.Join(allowedMethods, ", ")
	allowedHeadersStr := strings.Join(allowedHeaders, ", ")
	exposedHeadersStr := strings.Join(cfg.ExposeHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()

			if wildcard || (origin != "" && slices.Contains(allowedOrigins, origin)) {
				// Wildcard with credentials must echo the origin; "*" is not
				// allowed together with Allow-Credentials.
				switch {
				case origin != "" && (!wildcard || cfg.AllowCredentials):
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				default:
					h.Set("Access-Control-Allow-Origin", "*")
				}
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if exposedHeadersStr != "" {
					h.Set("Access-Control-Expose-Headers", exposedHeadersStr)
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", allowedMethodsStr)
				h.Set("Access-Control-Allow-Headers", allowedHeadersStr)
				if cfg.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
