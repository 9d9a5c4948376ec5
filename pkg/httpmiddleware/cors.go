package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures cross-origin access for the storefront.
type CORSConfig struct {
	// AllowOrigins lists allowed origins. Empty or "*" allows any origin.
	// An entry with a "*." host prefix, e.g. "https://*.vercel.app", allows
	// every subdomain of that host over that scheme, which covers preview
	// deployments of the storefront.
	AllowOrigins []string
	// AllowMethods defaults to GET, POST, OPTIONS.
	AllowMethods []string
	// AllowHeaders defaults to echoing Access-Control-Request-Headers.
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds. Zero omits the
	// header.
	MaxAge int
}

// originPolicy decides which origins may call the API.
type originPolicy struct {
	any      bool
	exact    map[string]string // lowercase origin -> configured spelling
	suffixes []originSuffix
}

type originSuffix struct {
	scheme string // "https://"
	host   string // ".vercel.app"
}

func newOriginPolicy(origins []string, credentials bool) originPolicy {
	p := originPolicy{any: len(origins) == 0, exact: make(map[string]string)}
	for _, o := range origins {
		switch scheme, host, ok := strings.Cut(o, "://*."); {
		case o == "*":
			p.any = true
		case ok:
			p.suffixes = append(p.suffixes, originSuffix{
				scheme: strings.ToLower(scheme) + "://",
				host:   "." + strings.ToLower(host),
			})
		default:
			p.exact[strings.ToLower(o)] = o
		}
	}
	// Browsers refuse credentials with a wildcard origin.
	if credentials {
		p.any = false
	}
	return p
}

// allow returns the Access-Control-Allow-Origin value for origin, or "" if
// the origin is not allowed.
func (p originPolicy) allow(origin string) string {
	if p.any {
		return "*"
	}
	lower := strings.ToLower(origin)
	if o, ok := p.exact[lower]; ok {
		return o
	}
	for _, s := range p.suffixes {
		rest, ok := strings.CutPrefix(lower, s.scheme)
		if ok && len(rest) > len(s.host) && strings.HasSuffix(rest, s.host) {
			return origin
		}
	}
	return ""
}

// CORS lets the storefront call the API from the browser. Preflights,
// recognised by Access-Control-Request-Method, are answered with 204 and
// never reach next.
func CORS(cfg CORSConfig) Middleware {
	policy := newOriginPolicy(cfg.AllowOrigins, cfg.AllowCredentials)
	methods := strings.Join(cfg.AllowMethods, ", ")
	if methods == "" {
		methods = "GET, POST, OPTIONS"
	}
	headers := strings.Join(cfg.AllowHeaders, ", ")
	expose := strings.Join(cfg.ExposeHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if !policy.any {
				h.Add("Vary", "Origin")
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			allowed := policy.allow(origin)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				if allowed != "" {
					h.Set("Access-Control-Allow-Origin", allowed)
					h.Set("Access-Control-Allow-Methods", methods)
					switch requested := r.Header.Get("Access-Control-Request-Headers"); {
					case headers != "":
						h.Set("Access-Control-Allow-Headers", headers)
					case requested != "":
						h.Set("Access-Control-Allow-Headers", requested)
					}
					if cfg.AllowCredentials {
						h.Set("Access-Control-Allow-Credentials", "true")
					}
					if cfg.MaxAge > 0 {
						h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allowed != "" {
				h.Set("Access-Control-Allow-Origin", allowed)
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if expose != "" {
					h.Set("Access-Control-Expose-Headers", expose)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
