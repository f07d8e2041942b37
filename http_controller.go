package accounts

import (
	"context"
	stderrors "errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/mercatto/go-accounts/middleware/jwtware"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// AuthControllerRoutes holds the mount points for the account endpoints.
type AuthControllerRoutes struct {
	Register       string
	VerifyOTP      string
	Login          string
	Logout         string
	Refresh        string
	ForgotPassword string
	ResetPassword  string
	ChangePassword string
	Profile        string
	AdminArea      string
	SuperAdminArea string
}

// AuthController exposes the session lifecycle as a JSON API. Tokens travel
// both in the response body and as httpOnly cookies so browser and API
// clients can use the same endpoints.
type AuthController struct {
	Logger       Logger
	Session      *SessionService
	Gate         *Gate
	Config       Config
	Routes       *AuthControllerRoutes
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = logger
		return c
	}
}

func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Routes = routes
		return c
	}
}

func WithControllerErrorHandler(handler router.ErrorHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.ErrorHandler = handler
		return c
	}
}

func NewAuthController(session *SessionService, gate *Gate, cfg Config, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		Session:      session,
		Gate:         gate,
		Config:       cfg,
		ErrorHandler: defaultErrHandler,
		Routes: &AuthControllerRoutes{
			Register:       "/auth/register",
			VerifyOTP:      "/auth/verify-otp",
			Login:          "/auth/login",
			Logout:         "/auth/logout",
			Refresh:        "/auth/refresh",
			ForgotPassword: "/auth/forgot-password",
			ResetPassword:  "/auth/reset-password",
			ChangePassword: "/auth/change-password",
			Profile:        "/auth/profile",
			AdminArea:      "/auth/admin-only",
			SuperAdminArea: "/auth/superadmin-only",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Session == nil {
		panic("Missing SessionService in auth controller...")
	}

	if c.Gate == nil {
		panic("Missing Gate in auth controller...")
	}

	return c
}

// RegisterAuthRoutes mounts every account endpoint on the given router.
func RegisterAuthRoutes[T any](app router.Router[T], controller *AuthController) {
	authed := controller.Protected()
	admin := controller.Protected(RoleAdmin, RoleSuperAdmin)
	superadmin := controller.Protected(RoleSuperAdmin)

	app.Post(controller.Routes.Register, controller.Register).SetName("auth.register")
	app.Post(controller.Routes.VerifyOTP, controller.VerifyOTP).SetName("auth.verify-otp")
	app.Post(controller.Routes.Login, controller.Login).SetName("auth.login")
	app.Get(controller.Routes.Refresh, controller.Refresh).SetName("auth.refresh")
	app.Post(controller.Routes.ForgotPassword, controller.ForgotPassword).SetName("auth.forgot-password")
	app.Post(controller.Routes.ResetPassword, controller.ResetPassword).SetName("auth.reset-password")

	app.Post(controller.Routes.Logout, authed(controller.Logout)).SetName("auth.logout")
	app.Post(controller.Routes.ChangePassword, authed(controller.ChangePassword)).SetName("auth.change-password")
	app.Get(controller.Routes.Profile, authed(controller.Profile)).SetName("auth.profile")

	app.Get(controller.Routes.AdminArea, admin(controller.AdminArea)).SetName("auth.admin-area")
	app.Get(controller.Routes.SuperAdminArea, superadmin(controller.SuperAdminArea)).SetName("auth.superadmin-area")
}

// Protected authenticates the request with an access token and, when roles
// are given, restricts it to accounts whose role is in the set. The resolved
// account is stored in the router context under the configured context key.
func (a *AuthController) Protected(roles ...UserRole) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		// The middleware hands control to SuccessHandler after validation,
		// so the role guard has to live there to stay on the request path.
		guarded := func(ctx router.Context) error {
			user, ok := GetRouterUser(ctx, a.Config.GetContextKey())
			if !ok {
				return a.ErrorHandler(ctx, ErrUnauthenticated)
			}
			if err := a.Gate.RequireRoles(user, roles...); err != nil {
				return a.ErrorHandler(ctx, err)
			}
			return next(ctx)
		}

		return jwtware.New(jwtware.Config{
			ErrorHandler:   a.authErrorHandler,
			SuccessHandler: guarded,
			SigningKey: jwtware.SigningKey{
				Key:    []byte(a.Config.GetSigningKey()),
				JWTAlg: "HS256",
			},
			AuthScheme:     a.Config.GetAuthScheme(),
			ContextKey:     "claims",
			UserContextKey: a.Config.GetContextKey(),
			TokenLookup:    a.Config.GetTokenLookup(),
			TokenValidator: accessTokenValidator{tokens: a.Session.TokenService()},
			UserResolver: func(ctx context.Context, claims jwtware.AuthClaims) (any, error) {
				return a.Gate.ResolveSubject(ctx, claims.UserID())
			},
		})(next)
	}
}

// RegisterPayload is the account creation body
type RegisterPayload struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate will run validation rules
func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) Register(ctx router.Context) error {
	payload := new(RegisterPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	user, err := a.Session.Register(ctx.Context(), payload.Username, payload.Email, payload.Password)
	if err != nil {
		var richErr *errors.Error
		if user != nil && errors.As(err, &richErr) && richErr.TextCode == TextCodeOTPDelivery {
			// Account exists but the code never went out; the client should
			// surface a retry path rather than a registration failure.
			a.Logger.Error("Register delivery failure", "error", err, "email", payload.Email)
			return ctx.JSON(router.StatusCreated, map[string]any{
				"user":    user,
				"warning": richErr.Message,
			})
		}
		a.Logger.Error("Register error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, map[string]any{
		"user":    user,
		"message": "verification code sent",
	})
}

// VerifyOTPPayload proves ownership of the registered email
type VerifyOTPPayload struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// Validate will run validation rules
func (r VerifyOTPPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.OTP, validation.Required, validation.Length(6, 6)),
	)
}

func (a *AuthController) VerifyOTP(ctx router.Context) error {
	payload := new(VerifyOTPPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	if err := a.Session.VerifyOTP(ctx.Context(), payload.Email, payload.OTP); err != nil {
		a.Logger.Error("VerifyOTP error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"message": "account verified",
	})
}

// LoginPayload carries credentials
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) Login(ctx router.Context) error {
	payload := new(LoginPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	result, err := a.Session.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		a.Logger.Error("Login error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	a.setTokenCookies(ctx, result.TokenPair)

	return ctx.JSON(router.StatusOK, result)
}

func (a *AuthController) Refresh(ctx router.Context) error {
	raw, err := jwtware.ExtractRawTokenFromContext(ctx, jwtware.GetExtractors(
		"cookie:"+refreshTokenCookie+",header:"+router.HeaderAuthorization,
		a.Config.GetAuthScheme(),
	))
	if err != nil {
		// The gate collapses an empty token to ErrUnauthenticated; keep the
		// extractor's missing-vs-malformed detail in the log.
		a.Logger.Error("Refresh token extraction failed", "error", err)
	}

	user, err := a.Gate.ResolveRefreshToken(ctx.Context(), raw)
	if err != nil {
		a.Logger.Error("Refresh rejected", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	pair, err := a.Session.Refresh(ctx.Context(), user)
	if err != nil {
		a.Logger.Error("Refresh error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	a.setTokenCookies(ctx, *pair)

	return ctx.JSON(router.StatusOK, pair)
}

func (a *AuthController) Logout(ctx router.Context) error {
	user, ok := GetRouterUser(ctx, a.Config.GetContextKey())
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	if err := a.Session.Logout(ctx.Context(), user.ID); err != nil {
		a.Logger.Error("Logout error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	a.clearTokenCookies(ctx)

	return ctx.JSON(router.StatusOK, map[string]string{
		"message": "logged out",
	})
}

// ForgotPasswordPayload starts the recovery flow
type ForgotPasswordPayload struct {
	Email string `json:"email"`
}

// Validate will run validation rules
func (r ForgotPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AuthController) ForgotPassword(ctx router.Context) error {
	payload := new(ForgotPasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	if err := a.Session.ForgotPassword(ctx.Context(), payload.Email); err != nil {
		a.Logger.Error("ForgotPassword error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"message": "password reset code sent",
	})
}

// ResetPasswordPayload completes the recovery flow
type ResetPasswordPayload struct {
	Email           string `json:"email"`
	OTP             string `json:"otp"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate will run validation rules
func (r ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.OTP, validation.Required, validation.Length(6, 6)),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.NewPassword)),
		),
	)
}

func (a *AuthController) ResetPassword(ctx router.Context) error {
	payload := new(ResetPasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	if err := a.Session.ResetPassword(ctx.Context(), payload.Email, payload.OTP, payload.NewPassword); err != nil {
		a.Logger.Error("ResetPassword error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"message": "password updated",
	})
}

// ChangePasswordPayload rotates the password of an authenticated account
type ChangePasswordPayload struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate will run validation rules
func (r ChangePasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.NewPassword)),
		),
	)
}

func (a *AuthController) ChangePassword(ctx router.Context) error {
	user, ok := GetRouterUser(ctx, a.Config.GetContextKey())
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	payload := new(ChangePasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	if err := a.Session.ChangePassword(ctx.Context(), user.Email, payload.CurrentPassword, payload.NewPassword); err != nil {
		a.Logger.Error("ChangePassword error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"message": "password changed",
	})
}

func (a *AuthController) Profile(ctx router.Context) error {
	user, ok := GetRouterUser(ctx, a.Config.GetContextKey())
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"user": user.Sanitized(),
	})
}

func (a *AuthController) AdminArea(ctx router.Context) error {
	user, _ := GetRouterUser(ctx, a.Config.GetContextKey())
	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "admin access granted",
		"role":    user.Role,
	})
}

func (a *AuthController) SuperAdminArea(ctx router.Context) error {
	user, _ := GetRouterUser(ctx, a.Config.GetContextKey())
	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "superadmin access granted",
		"role":    user.Role,
	})
}

func (a *AuthController) setTokenCookies(ctx router.Context, pair TokenPair) {
	accessDuration := time.Duration(a.Config.GetTokenExpiration()) * time.Hour
	refreshDuration := time.Duration(a.Config.GetRefreshTokenExpiration()) * time.Hour

	a.setCookie(ctx, accessTokenCookie, pair.AccessToken, accessDuration)
	a.setCookie(ctx, refreshTokenCookie, pair.RefreshToken, refreshDuration)
}

func (a *AuthController) clearTokenCookies(ctx router.Context) {
	a.cookieDel(ctx, accessTokenCookie)
	a.cookieDel(ctx, refreshTokenCookie)
}

func (a *AuthController) setCookie(c router.Context, name, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Strict",
	})
}

func (a *AuthController) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Strict",
	})
}

func (a *AuthController) badPayload(ctx router.Context, err error) error {
	a.Logger.Error("failed to parse payload", "error", err)
	return ctx.JSON(router.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"message": "failed to parse request body",
		},
	})
}

func (a *AuthController) invalidPayload(ctx router.Context, err error) error {
	a.Logger.Error("failed to validate payload", "error", err)
	return ctx.JSON(router.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"message": "validation failed",
			"fields":  FormatValidationErrorToMap(err),
		},
	})
}

// authErrorHandler maps middleware failures onto the token error taxonomy.
func (a *AuthController) authErrorHandler(ctx router.Context, err error) error {
	var richErr *errors.Error

	if IsTokenExpiredError(err) {
		richErr = ErrTokenExpired
	} else if IsMalformedError(err) {
		richErr = ErrTokenMalformed
	} else if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
			WithCode(errors.CodeUnauthorized)
	}

	return a.ErrorHandler(ctx, richErr)
}

// accessTokenValidator adapts the token service to the middleware contract.
type accessTokenValidator struct {
	tokens TokenService
}

func (v accessTokenValidator) Validate(tokenString string) (jwtware.AuthClaims, error) {
	return v.tokens.ValidateAccessToken(tokenString)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return stderrors.New("values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field-to-message map suitable for a JSON response.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if stderrors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["_"] = err.Error()
	return out
}

func defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	status := richErr.Code
	if status == 0 {
		status = router.StatusInternalServerError
	}

	return c.JSON(status, map[string]any{
		"error": map[string]any{
			"message":   richErr.Message,
			"text_code": richErr.TextCode,
			"category":  richErr.Category,
		},
	})
}
