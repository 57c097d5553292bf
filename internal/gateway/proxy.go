package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nenempneuscom-star/syscli-sub000/pkg/config"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/errors"
	pkghttp "github.com/nenempneuscom-star/syscli-sub000/pkg/httputil"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/logger"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/tenant"
)

// Proxy handles reverse proxying to backend services
type Proxy struct {
	cfg            *config.Config
	log            *logger.Logger
	inventoryProxy *httputil.ReverseProxy
}

// NewProxy creates a new proxy instance
func NewProxy(cfg *config.Config, log *logger.Logger) *Proxy {
	p := &Proxy{
		cfg: cfg,
		log: log,
	}

	p.inventoryProxy = p.createProxy(cfg.Services.InventoryServiceURL)

	return p
}

func (p *Proxy) createProxy(targetURL string) *httputil.ReverseProxy {
	target, _ := url.Parse(targetURL)

	proxy := httputil.NewSingleHostReverseProxy(target)

	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = target.Host
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		p.log.Error().Err(err).Str("path", r.URL.Path).Msg("proxy error")
		pkghttp.Error(w, errors.Internal("service unavailable"))
	}

	return proxy
}

// ForwardToInventory forwards requests to the inventory service
func (p *Proxy) ForwardToInventory(w http.ResponseWriter, r *http.Request) {
	p.inventoryProxy.ServeHTTP(w, r)
}

// AuthMiddleware validates the JWT and translates its claims into the
// X-User-* / X-Tenant-* headers the backend services trust. Tokens without
// tenant context are rejected; every downstream query is tenant-scoped.
func (p *Proxy) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			pkghttp.Error(w, errors.Unauthorized("missing authorization header"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			pkghttp.Error(w, errors.Unauthorized("invalid authorization header format"))
			return
		}

		tokenString := parts[1]

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(p.cfg.JWT.Secret), nil
		})

		if err != nil {
			p.log.Debug().Err(err).Msg("token validation failed")
			if strings.Contains(err.Error(), "expired") {
				pkghttp.Error(w, errors.TokenExpired())
			} else {
				pkghttp.Error(w, errors.TokenInvalid())
			}
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			pkghttp.Error(w, errors.TokenInvalid())
			return
		}

		userID, _ := claims["sub"].(string)
		email, _ := claims["email"].(string)
		role, _ := claims["role"].(string)

		tenantID, _ := claims["tenant_id"].(string)
		tenantSlug, _ := claims["tenant_slug"].(string)
		tenantSchema, _ := claims["tenant_schema"].(string)

		if tenantID == "" || tenantSchema == "" {
			pkghttp.Error(w, errors.Forbidden("missing tenant context in token"))
			return
		}

		ctx := pkghttp.WithUserContext(r.Context(), userID, email, role)
		ctx = tenant.WithTenantContext(ctx, tenantID, tenantSlug, tenantSchema)

		// Downstream services trust these headers, never raw tokens
		r.Header.Set("X-User-ID", userID)
		r.Header.Set("X-User-Email", email)
		r.Header.Set("X-User-Role", role)
		r.Header.Set("X-Tenant-ID", tenantID)
		r.Header.Set("X-Tenant-Slug", tenantSlug)
		r.Header.Set("X-Tenant-Schema", tenantSchema)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
