package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/gymkey/gymkey/internal/auth"
	"github.com/gymkey/gymkey/internal/cache"
	"github.com/gymkey/gymkey/internal/identity"
	"github.com/gymkey/gymkey/internal/model"
)

// UserStore is the slice of the store the auth middleware needs: resolving
// an identity profile to a durable user row.
type UserStore interface {
	GetOrCreateUser(ctx context.Context, user *model.User) (*model.User, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Identity *identity.Client
	Cache    *cache.Cache // optional; nil disables profile caching
	Users    UserStore
}

// Auth returns a middleware that authenticates requests with a bearer
// credential. The credential is resolved through the identity provider
// (with a short-lived cache in front), the user row is created or
// refreshed, and the user is injected into the request context.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "missing_token"),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			profile, cacheHit := cfg.lookupProfile(r.Context(), token)
			if profile == nil {
				resolved, err := cfg.Identity.Resolve(r.Context(), token)
				if err != nil {
					reason := "invalid_token"
					status := http.StatusUnauthorized
					if errors.Is(err, identity.ErrProviderUnavailable) {
						reason = "provider_unavailable"
						status = http.StatusBadGateway
					}
					cfg.Logger.Warn("authentication failed",
						slog.String("reason", reason),
						slog.String("endpoint", r.Method+" "+r.URL.Path),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					if status == http.StatusUnauthorized {
						writeAuthError(w)
					} else {
						writeProviderError(w)
					}
					return
				}
				profile = resolved

				if cfg.Cache != nil {
					_ = cfg.Cache.SetProfile(r.Context(), cache.TokenCacheKey(token), profile)
				}
			}

			var pictureURL *string
			if profile.PictureURL != "" {
				pictureURL = &profile.PictureURL
			}
			user, err := cfg.Users.GetOrCreateUser(r.Context(), &model.User{
				ID:          ulid.Make().String(),
				ExternalID:  profile.UserID,
				DisplayName: profile.DisplayName,
				PictureURL:  pictureURL,
			})
			if err != nil {
				cfg.Logger.Error("store error during auth",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			cfg.Logger.Debug("authentication successful",
				slog.String("user_id", user.ID),
				slog.Bool("cache_hit", cacheHit),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// lookupProfile checks the profile cache. A nil Cache or any cache failure
// reads as a miss.
func (cfg AuthConfig) lookupProfile(ctx context.Context, token string) (*model.Profile, bool) {
	if cfg.Cache == nil {
		return nil, false
	}
	profile, _ := cfg.Cache.GetProfile(ctx, cache.TokenCacheKey(token))
	return profile, profile != nil
}

// extractBearerToken extracts the bearer credential from the request.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing credential"}}`))
}

// writeProviderError writes a 502 for identity-provider outages.
func writeProviderError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_, _ = w.Write([]byte(`{"error":{"code":"IDENTITY_UNAVAILABLE","message":"Identity provider unavailable"}}`))
}
