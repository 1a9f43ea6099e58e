package api

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/example/pharma-exchange/internal/access"
	"github.com/example/pharma-exchange/internal/api/middleware"
	"github.com/example/pharma-exchange/internal/auth"
)

func NewRouter(handlers *Handlers, authHandlers *AuthHandlers, jwtService *auth.JWTService, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	authn := middleware.AuthMiddleware(jwtService)
	view := func(h http.HandlerFunc) http.Handler {
		return authn(middleware.RequireCapability(access.CapViewStock)(h))
	}
	manage := func(h http.HandlerFunc) http.Handler {
		return authn(middleware.RequireCapability(access.CapManageStock)(h))
	}
	lock := func(h http.HandlerFunc) http.Handler {
		return authn(middleware.RequireCapability(access.CapLockStock)(h))
	}
	trade := func(h http.HandlerFunc) http.Handler {
		return authn(middleware.RequireCapability(access.CapTrade)(h))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth
	mux.HandleFunc("/auth/register", methodHandler(http.MethodPost, authHandlers.Register))
	mux.HandleFunc("/auth/login", methodHandler(http.MethodPost, authHandlers.Login))
	mux.HandleFunc("/auth/logout", methodHandler(http.MethodPost, authHandlers.Logout))
	mux.HandleFunc("/auth/refresh", methodHandler(http.MethodPost, authHandlers.Refresh))
	mux.Handle("/auth/me", authn(methodHandler(http.MethodGet, authHandlers.Me)))

	// Stock items
	mux.Handle("/items", manage(methodHandler(http.MethodPost, handlers.CreateItem)))
	mux.Handle("/items/intake", manage(methodHandler(http.MethodPost, handlers.Intake)))
	mux.HandleFunc("/items/", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/adjust") && r.Method == http.MethodPost:
			manage(handlers.AdjustItem).ServeHTTP(w, r)
		case strings.HasSuffix(path, "/lock") && r.Method == http.MethodPost:
			lock(handlers.LockItem).ServeHTTP(w, r)
		case strings.HasSuffix(path, "/unlock") && r.Method == http.MethodPost:
			lock(handlers.UnlockItem).ServeHTTP(w, r)
		case r.Method == http.MethodGet:
			view(handlers.GetItem).ServeHTTP(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Catalog
	mux.Handle("/companies", manage(methodHandler(http.MethodPost, handlers.CreateCompany)))
	mux.HandleFunc("/companies/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/items") && r.Method == http.MethodGet:
			view(handlers.GetItemsByCompany).ServeHTTP(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.Handle("/pharmacies", manage(methodHandler(http.MethodPost, handlers.CreatePharmacy)))
	mux.HandleFunc("/pharmacies/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/items") && r.Method == http.MethodGet:
			view(handlers.GetItemsByPharmacy).ServeHTTP(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.Handle("/drugs", manage(methodHandler(http.MethodPost, handlers.CreateDrug)))
	mux.HandleFunc("/drugs/", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/items") && r.Method == http.MethodGet:
			view(handlers.GetItemsByDrug).ServeHTTP(w, r)
		case strings.HasSuffix(path, "/listings") && r.Method == http.MethodGet:
			view(handlers.GetListingsByDrug).ServeHTTP(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.Handle("/insurers", manage(methodHandler(http.MethodPost, handlers.CreateInsuranceCompany)))

	// Exchange
	mux.Handle("/exchange/listings", trade(methodHandler(http.MethodPost, handlers.ListStock)))
	mux.HandleFunc("/exchange/listings/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			view(handlers.GetListing).ServeHTTP(w, r)
		case http.MethodDelete:
			trade(handlers.Delist).ServeHTTP(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	return withLogging(mux, logger)
}

func methodHandler(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func withLogging(next http.Handler, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}
