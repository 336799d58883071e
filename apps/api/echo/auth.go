package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/ministerio/escalas/core"
	"github.com/ministerio/escalas/core/user"
	"github.com/ministerio/escalas/services/tokenstore"
)

const (
	contextTokenKey  = "userToken"
	contextUserKey   = "user"
	contextObjectKey = "object"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	IsAdmin      bool   `json:"is_admin,omitempty"`
}

// GetUserClaims returns fresh claims for usr. origIat keeps the original issue time across refreshes.
func GetUserClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.New().String(),
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Name:         usr.Name,
		Email:        usr.Email,
		Role:         usr.Role,
		IsAdmin:      usr.IsAdmin(),
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

type authenticator struct {
	conf      *core.Config
	svc       *user.Service
	store     tokenstore.Store
	jwtConfig middleware.JWTConfig
}

func newAuthenticator(conf *core.Config, svc *user.Service, store tokenstore.Store) *authenticator {
	return &authenticator{
		conf:  conf,
		svc:   svc,
		store: store,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
	}
}

// authenticate checks the credentials and returns the logged in user.
func (a *authenticator) authenticate(ctx context.Context, email, pwd string) (user.User, error) {
	usr, err := a.svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errAuthenticationFailed
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	usr, err = a.svc.SetLastLogin(ctx, usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

func (a *authenticator) token(usr user.User, origIat ...int64) (string, error) {
	return GenerateToken(a.conf, GetUserClaims(a.conf, usr, origIat...))
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

// revocationMiddleware rejects tokens revoked by a logout.
func (a *authenticator) revocationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		revoked, err := a.store.IsRevoked(ctx.Request().Context(), claims.Id)
		if err != nil {
			return errors.Wrap(err, "checking token revocation")
		}
		if revoked {
			return errTokenRevoked
		}
		return next(ctx)
	}
}

// contextUserMiddleware loads the active user owning the token.
func (a *authenticator) contextUserMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		usr, err := a.svc.GetByID(ctx.Request().Context(), claims.Subject)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return errUnauthorized
			}
			return errors.Wrap(err, "finding user by ID")
		}
		if !usr.IsActive {
			return errAccountDeactivated
		}
		ctx.Set(contextUserKey, usr)
		return next(ctx)
	}
}

func (a *authenticator) refreshToken(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return "", err
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}
	return a.token(usr, claims.OrigIssuedAt)
}

// revoke invalidates the context token until it expires.
func (a *authenticator) revoke(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	until := time.Unix(claims.ExpiresAt, 0)
	return errors.Wrap(a.store.Revoke(ctx.Request().Context(), claims.Id, until), "revoking token")
}
