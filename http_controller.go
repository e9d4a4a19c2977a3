package identity

import (
	"errors"
	"fmt"
	"io"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"

	"github.com/portlib/identity/middleware/jwtware"
)

// Controller exposes the account lifecycle over a JSON API.
type Controller struct {
	Debug  bool
	Logger Logger

	signup        *SignupUserHandler
	signupAdmin   *SignupAdminHandler
	verifySignup  *VerifySignupHandler
	login         *LoginUserHandler
	loginAdmin    *LoginAdminHandler
	verifyLogin   *VerifyLoginHandler
	resetInit     *InitializePasswordResetHandler
	resetFinalize *FinalizePasswordResetHandler
	approveAdmin  *ApproveAdminHandler
	engine        *DisciplinaryEngine
	directory     *AccountDirectory
	repo          RepositoryManager
}

// ControllerConfig wires the controller's collaborators.
type ControllerConfig struct {
	Repo     RepositoryManager
	Uploader Uploader
	Notifier Notifier
	Tokener  TokenService
	Machine  AccountStateMachine
	Logger   Logger
	Debug    bool

	HandlerOptions []HandlerOption
	EngineOptions  []EngineOption
}

func NewController(cfg ControllerConfig) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = defLogger{}
	}

	opts := cfg.HandlerOptions

	return &Controller{
		Debug:         cfg.Debug,
		Logger:        logger,
		signup:        NewSignupUserHandler(cfg.Repo, cfg.Uploader, cfg.Notifier, opts...),
		signupAdmin:   NewSignupAdminHandler(cfg.Repo, cfg.Notifier, opts...),
		verifySignup:  NewVerifySignupHandler(cfg.Repo, cfg.Machine, opts...),
		login:         NewLoginUserHandler(cfg.Repo, cfg.Notifier, opts...),
		loginAdmin:    NewLoginAdminHandler(cfg.Repo, cfg.Notifier, opts...),
		verifyLogin:   NewVerifyLoginHandler(cfg.Repo, cfg.Tokener, opts...),
		resetInit:     NewInitializePasswordResetHandler(cfg.Repo, cfg.Notifier, opts...),
		resetFinalize: NewFinalizePasswordResetHandler(cfg.Repo, opts...),
		approveAdmin:  NewApproveAdminHandler(cfg.Repo, cfg.Machine, opts...),
		engine:        NewDisciplinaryEngine(cfg.Repo, cfg.Notifier, cfg.EngineOptions...),
		directory:     NewAccountDirectory(cfg.Repo, opts...),
		repo:          cfg.Repo,
	}
}

// RegisterRoutes mounts the API. adminGuard authenticates and authorizes the
// management surface; the auth endpoints themselves are public.
func (ctl *Controller) RegisterRoutes(app fiber.Router, adminGuard fiber.Handler) {
	auth := app.Group("/api/auth")
	auth.Post("/signup", ctl.SignupPost)
	auth.Post("/verify-otp", ctl.VerifySignupPost)
	auth.Post("/login", ctl.LoginPost)
	auth.Post("/verify-login-otp", ctl.VerifyLoginPost)
	auth.Post("/forgot-password", ctl.ForgotPasswordPost)
	auth.Post("/reset-password", ctl.ResetPasswordPost)

	adminAuth := app.Group("/api/admin/auth")
	adminAuth.Post("/signup", ctl.AdminSignupPost)
	adminAuth.Post("/verify-otp", ctl.VerifySignupPost)
	adminAuth.Post("/login", ctl.AdminLoginPost)
	adminAuth.Post("/verify-login-otp", ctl.VerifyLoginPost)
	adminAuth.Post("/forgot-password", ctl.AdminForgotPasswordPost)
	adminAuth.Post("/reset-password", ctl.ResetPasswordPost)

	admin := app.Group("/api/admin", adminGuard)
	admin.Post("/approve", ctl.ApproveAdminPost)
	admin.Get("/users", ctl.UsersList)
	admin.Get("/users/:id", ctl.UserGet)
	admin.Delete("/users/:id", ctl.UserDelete)
	admin.Post("/users/:id/suspend", ctl.UserSuspend)
	admin.Post("/users/:id/unsuspend", ctl.UserUnsuspend)
	admin.Get("/users/:id/warnings", ctl.UserWarnings)
	admin.Get("/warnings", ctl.WarningsList)
	admin.Post("/warnings", ctl.WarningSend)
	admin.Patch("/warnings/:id/read", ctl.WarningMarkRead)
}

type SignupPayload struct {
	Role            string `form:"role" json:"role"`
	Email           string `form:"email" json:"email"`
	Phone           string `form:"phone" json:"phone"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
	StudentID       string `form:"student_id" json:"student_id"`
	EmployeeID      string `form:"employee_id" json:"employee_id"`
}

// Validate will validate the payload
func (r SignupPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required, validation.In(RoleStudent, RoleLibrarian)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.Required, validation.Length(8, 20)),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (ctl *Controller) SignupPost(c *fiber.Ctx) error {
	payload := new(SignupPayload)
	if err := c.BodyParser(payload); err != nil {
		ctl.Logger.Error("signup parse payload: %v", err)
		return ctl.renderError(c, goerrors.New("failed to parse request body", goerrors.CategoryBadInput))
	}

	if err := payload.Validate(); err != nil {
		return ctl.renderValidation(c, err)
	}

	upload, err := readUpload(c, "id_card")
	if err != nil {
		return ctl.renderError(c, err)
	}

	if ctl.Debug {
		fmt.Println(print.MaybePrettyJSON(payload))
	}

	var resp *SignupUserResponse
	err = ctl.signup.Execute(c.Context(), SignupUserMessage{
		Role:            payload.Role,
		Email:           payload.Email,
		Phone:           payload.Phone,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
		StudentID:       payload.StudentID,
		EmployeeID:      payload.EmployeeID,
		IDCard:          upload,
		OnResponse:      func(r *SignupUserResponse) { resp = r },
	})
	if err != nil {
		return ctl.renderError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": resp.Message,
		"userId":  resp.Account.ID,
	})
}

type AdminSignupPayload struct {
	AdminKey        string `form:"admin_key" json:"admin_key"`
	Email           string `form:"email" json:"email"`
	Phone           string `form:"phone" json:"phone"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r AdminSignupPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AdminKey, validation.Required),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.Required, validation.Length(8, 20)),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (ctl *Controller) AdminSignupPost(c *fiber.Ctx) error {
	payload := new(AdminSignupPayload)
	if err := c.BodyParser(payload); err != nil {
		ctl.Logger.Error("admin signup parse payload: %v", err)
		return ctl.renderError(c, goerrors.New("failed to parse request body", goerrors.CategoryBadInput))
	}

	if err := payload.Validate(); err != nil {
		return ctl.renderValidation(c, err)
	}

	var resp *SignupAdminResponse
	err := ctl.signupAdmin.Execute(c.Context(), SignupAdminMessage{
		AdminKey:        payload.AdminKey,
		Email:           payload.Email,
		Phone:           payload.Phone,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
		OnResponse:      func(r *SignupAdminResponse) { resp = r },
	})
	if err != nil {
		return ctl.renderError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": resp.Message,
		"adminId": resp.Account.ID,
	})
}

type VerifyOTPPayload struct {
	UserID   string `form:"userId" json:"userId"`
	AdminID  string `form:"adminId" json:"adminId"`
	EmailOTP string `form:"emailOTP" json:"emailOTP"`
	SMSOTP   string `form:"smsOTP" json:"smsOTP"`
}

// AccountID returns whichever subject field the caller set. The user and
// admin routes share the verify handlers; only the field name differs.
func (r VerifyOTPPayload) AccountID() string {
	if r.UserID != "" {
		return r.UserID
	}
	return r.AdminID
}

// Validate will validate the payload
func (r VerifyOTPPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.By(func(any) error {
			if r.UserID == "" && r.AdminID == "" {
				return errors.New("cannot be blank")
			}
			return nil
		}), is.UUID),
		validation.Field(&r.AdminID, is.UUID),
		validation.Field(&r.EmailOTP, validation.Required, validation.Length(CodeLength, CodeLength), is.Digit),
		validation.Field(&r.SMSOTP, validation.Length(CodeLength, CodeLength), is.Digit),
	)
}

func (ctl *Controller) VerifySignupPost(c *fiber.Ctx) error {
	payload := new(VerifyOTPPayload)
	if err := c.BodyParser(payload); err != nil {
		return ctl.renderError(c, goerrors.New("failed to parse request body", goerrors.CategoryBadInput))
	}

	if err := payload.Validate(); err != nil {
		return ctl.renderValidation(c, err)
	}

	id, err := uuid.Parse(payload.AccountID())
	if err != nil {
		return ctl.renderError(c, goerrors.New("invalid account id", goerrors.CategoryBadInput))
	}

	var resp *VerifySignupResponse
	err = ctl.verifySignup.Execute(c.Context(), VerifySignupMessage{
		AccountID:  id,
		EmailCode:  payload.EmailOTP,
		SMSCode:    payload.SMSOTP,
		OnResponse: func(r *VerifySignupResponse) { resp = r },
	})
	if err != nil {
		return ctl.renderError(c, err)
	}

	return c.JSON(fiber.Map{"message": resp.Message})
}

type LoginPayload struct {
	Role       string `form:"role" json:"role"`
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// Validate will validate the payload
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required, validation.In(RoleStudent, RoleLibrarian)),
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (ctl *Controller) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginPayload)
	if err := c.BodyParser(payload); err != nil {
		return ctl.renderError(c, goerrors.New("failed to parse request body", goerrors.CategoryBadInput))
	}

	if err := payload.Validate(); err != nil {
		return ctl.renderValidation(c, err)
	}

	var resp *LoginChallengeResponse
	err := ctl.login.Execute(c.Context(), LoginUserMessage{
		Role:       payload.Role,
		Identifier: payload.Identifier,
		Password:   payload.Password,
		OnResponse: func(r *LoginChallengeResponse) { resp = r },
	})
	if err != nil {
		return ctl.renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": resp.Message,
		"userId":  resp.AccountID,
	})
}

type AdminLoginPayload struct {
	Email     string `form:"email" json:"email"`
	AccessKey string `form:"admin_access_key" json:"admin_access_key"`
}

// Validate will validate the payload
func (r AdminLoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.AccessKey, validation.Required),
	)
}

func (ctl *Controller) AdminLoginPost(c *fiber.Ctx) error {
	payload := new(AdminLoginPayload)
	if err := c.BodyParser(payload); err != nil {
		return ctl.renderError(c, goerrors.New("failed to parse request body", goerrors.CategoryBadInput))
	}

	if err := payload.Validate(); err != nil {
		return ctl.renderValidation(c, err)
	}

	var resp *LoginChallengeResponse
	err := ctl.loginAdmin.Execute(c.Context(), LoginAdminMessage{
		Email:      payload.Email,
		AccessKey:  payload.AccessKey,
		OnResponse: func(r *LoginChallengeResponse) { resp = r },
	})
	if err != nil {
		return ctl.renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": resp.Message,
		"adminId": resp.AccountID,
	})
}

func (ctl *Controller) VerifyLoginPost(c *fiber.Ctx) error {
	payload := new(VerifyOTPPayload)
	if err := c.BodyParser(payload); err != nil {
		return ctl.renderError(c, goerrors.New("failed to parse request body", goerrors.CategoryBadInput))
	}

	if err := payload.Validate(); err != nil {
		return ctl.renderValidation(c, err)
	}

	id, err := uuid.Parse(payload.AccountID())
	if err != nil {
		return ctl.renderError(c, goerrors.New("invalid account id", goerrors.CategoryBadInput))
	}

	var resp *VerifyLoginResponse
	err = ctl.verifyLogin.Execute(c.Context(), VerifyLoginMessage{
		AccountID:  id,
		EmailCode:  payload.EmailOTP,
		SMSCode:    payload.SMSOTP,
		OnResponse: func(r *VerifyLoginResponse) { resp = r },
	})
	if err != nil {
		return ctl.renderError(c, err)
	}

	if ctl.Debug {
		fmt.Println(print.MaybePrettyJSON(resp))
	}

	body := fiber.Map{
		"message": resp.Message,
		"token":   resp.Token,
	}
	if resp.Account.Role == RoleAdmin {
		body["admin"] = fiber.Map{
			"id":    resp.Account.ID,
			"email": resp.Account.Email,
		}
	} else {
		body["user"] = fiber.Map{
			"id":    resp.Account.ID,
			"email": resp.Account.Email,
			"role":  resp.Account.Role,
		}
	}

	return c.JSON(body)
}

type ForgotPasswordPayload struct {
	Email string `form:"email" json:"email"`
	Role  string `form:"role" json:"role"`
}

// Validate will validate the payload
func (r ForgotPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Role, validation.Required, validation.In(RoleStudent, RoleLibrarian)),
	)
}

func (ctl *Controller) ForgotPasswordPost(c *fiber.Ctx) error {
	payload := new(ForgotPasswordPayload)
	if err := c.BodyParser(payload); err != nil {
		return ctl.renderError(c, goerrors.New("failed to parse request body", goerrors.CategoryBadInput))
	}

	if err := payload.Validate(); err != nil {
		return ctl.renderValidation(c, err)
	}

	return ctl.forgotPassword(c, payload.Email, payload.Role)
}

func (ctl *Controller) AdminForgotPasswordPost(c *fiber.Ctx) error {
	payload := new(ForgotPasswordPayload)
	if err := c.BodyParser(payload); err != nil {
		return ctl.renderError(c, goerrors.New("failed to parse request body", goerrors.CategoryBadInput))
	}

	if err := validation.ValidateStruct(payload,
		validation.Field(&payload.Email, validation.Required, is.Email),
	); err != nil {
		return ctl.renderValidation(c, err)
	}

	return ctl.forgotPassword(c, payload.Email, RoleAdmin)
}

func (ctl *Controller) forgotPassword(c *fiber.Ctx, email string, role Role) error {
	var resp *InitializePasswordResetResponse
	err := ctl.resetInit.Execute(c.Context(), InitializePasswordResetMessage{
		Email:      email,
		Role:       role,
		OnResponse: func(r *InitializePasswordResetResponse) { resp = r },
	})
	if err != nil {
		return ctl.renderError(c, err)
	}

	key := "userId"
	if role == RoleAdmin {
		key = "adminId"
	}

	return c.JSON(fiber.Map{
		"message": resp.Message,
		key:       resp.AccountID,
	})
}

type ResetPasswordPayload struct {
	UserID          string `form:"userId" json:"userId"`
	OTP             string `form:"otp" json:"otp"`
	NewPassword     string `form:"newPassword" json:"newPassword"`
	ConfirmPassword string `form:"confirmPassword" json:"confirmPassword"`
}

// Validate will validate the payload
func (r ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required, is.UUID),
		validation.Field(&r.OTP, validation.Required, validation.Length(CodeLength, CodeLength), is.Digit),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 100)),
		validation.Field(&r.ConfirmPassword, validation.Required),
	)
}

func (ctl *Controller) ResetPasswordPost(c *fiber.Ctx) error {
	payload := new(ResetPasswordPayload)
	if err := c.BodyParser(payload); err != nil {
		return ctl.renderError(c, goerrors.New("failed to parse request body", goerrors.CategoryBadInput))
	}

	if err := payload.Validate(); err != nil {
		return ctl.renderValidation(c, err)
	}

	id, err := uuid.Parse(payload.UserID)
	if err != nil {
		return ctl.renderError(c, goerrors.New("invalid account id", goerrors.CategoryBadInput))
	}

	var resp *FinalizePasswordResetResponse
	err = ctl.resetFinalize.Execute(c.Context(), FinalizePasswordResetMessage{
		AccountID:       id,
		Code:            payload.OTP,
		NewPassword:     payload.NewPassword,
		ConfirmPassword: payload.ConfirmPassword,
		OnResponse:      func(r *FinalizePasswordResetResponse) { resp = r },
	})
	if err != nil {
		return ctl.renderError(c, err)
	}

	return c.JSON(fiber.Map{"message": resp.Message})
}

type ApproveAdminPayload struct {
	TargetAdminID string `form:"targetAdminId" json:"targetAdminId"`
}

// Validate will validate the payload
func (r ApproveAdminPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TargetAdminID, validation.Required, is.UUID),
	)
}

func (ctl *Controller) ApproveAdminPost(c *fiber.Ctx) error {
	actor, err := ctl.sessionActor(c)
	if err != nil {
		return ctl.renderError(c, err)
	}

	payload := new(ApproveAdminPayload)
	if err := c.BodyParser(payload); err != nil {
		return ctl.renderError(c, goerrors.New("failed to parse request body", goerrors.CategoryBadInput))
	}

	if err := payload.Validate(); err != nil {
		return ctl.renderValidation(c, err)
	}

	requesterID, err := uuid.Parse(actor.ID)
	if err != nil {
		return ctl.renderError(c, goerrors.New("invalid session subject", goerrors.CategoryAuth))
	}
	targetID, err := uuid.Parse(payload.TargetAdminID)
	if err != nil {
		return ctl.renderError(c, goerrors.New("invalid target admin id", goerrors.CategoryBadInput))
	}

	var resp *ApproveAdminResponse
	err = ctl.approveAdmin.Execute(c.Context(), ApproveAdminMessage{
		RequesterID: requesterID,
		TargetID:    targetID,
		OnResponse:  func(r *ApproveAdminResponse) { resp = r },
	})
	if err != nil {
		return ctl.renderError(c, err)
	}

	return c.JSON(fiber.Map{"message": resp.Message})
}

func (ctl *Controller) UsersList(c *fiber.Ctx) error {
	filter := ListAccountsFilter{
		Search: c.Query("search"),
		Status: c.Query("status"),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 20),
	}
	if role := c.Query("role"); role != "" {
		filter.Roles = []Role{role}
	}

	accounts, total, err := ctl.directory.List(c.Context(), filter)
	if err != nil {
		return ctl.renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"users": accounts,
		"pagination": fiber.Map{
			"page":  filter.Page,
			"limit": filter.Limit,
			"total": total,
		},
	})
}

func (ctl *Controller) UserGet(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ctl.renderError(c, goerrors.New("invalid user id", goerrors.CategoryBadInput))
	}

	detail, err := ctl.directory.Get(c.Context(), id)
	if err != nil {
		return ctl.renderError(c, err)
	}

	return c.JSON(detail)
}

func (ctl *Controller) UserDelete(c *fiber.Ctx) error {
	actor, err := ctl.sessionActor(c)
	if err != nil {
		return ctl.renderError(c, err)
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ctl.renderError(c, goerrors.New("invalid user id", goerrors.CategoryBadInput))
	}

	if err := ctl.directory.Delete(c.Context(), actor, id); err != nil {
		return ctl.renderError(c, err)
	}

	return c.JSON(fiber.Map{"message": "User deleted successfully"})
}

type SuspendPayload struct {
	DurationDays int    `form:"duration_days" json:"duration_days"`
	Reason       string `form:"reason" json:"reason"`
}

// Validate will validate the payload
func (r SuspendPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DurationDays, validation.Min(0), validation.Max(365)),
	)
}

func (ctl *Controller) UserSuspend(c *fiber.Ctx) error {
	actor, err := ctl.sessionActor(c)
	if err != nil {
		return ctl.renderError(c, err)
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ctl.renderError(c, goerrors.New("invalid user id", goerrors.CategoryBadInput))
	}

	payload := new(SuspendPayload)
	if err := c.BodyParser(payload); err != nil && len(c.Body()) > 0 {
		return ctl.renderError(c, goerrors.New("failed to parse request body", goerrors.CategoryBadInput))
	}

	if err := payload.Validate(); err != nil {
		return ctl.renderValidation(c, err)
	}

	account, err := ctl.engine.Suspend(c.Context(), actor, id, payload.DurationDays, payload.Reason)
	if err != nil {
		return ctl.renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":         "User suspended successfully",
		"suspended_until": account.SuspendedUntil,
	})
}

func (ctl *Controller) UserUnsuspend(c *fiber.Ctx) error {
	actor, err := ctl.sessionActor(c)
	if err != nil {
		return ctl.renderError(c, err)
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ctl.renderError(c, goerrors.New("invalid user id", goerrors.CategoryBadInput))
	}

	if _, err := ctl.engine.Unsuspend(c.Context(), actor, id); err != nil {
		return ctl.renderError(c, err)
	}

	return c.JSON(fiber.Map{"message": "User unsuspended successfully"})
}

func (ctl *Controller) UserWarnings(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ctl.renderError(c, goerrors.New("invalid user id", goerrors.CategoryBadInput))
	}

	detail, err := ctl.directory.Get(c.Context(), id)
	if err != nil {
		return ctl.renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"warnings":     detail.Warnings,
		"warningCount": detail.WarningCount,
		"isSuspended":  detail.IsSuspended,
	})
}

func (ctl *Controller) WarningsList(c *fiber.Ctx) error {
	filter := ListWarningsFilter{
		Type:  WarningType(c.Query("type")),
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", 20),
	}

	warnings, total, err := ctl.repo.Warnings().List(c.Context(), filter)
	if err != nil {
		return ctl.renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"warnings": warnings,
		"pagination": fiber.Map{
			"page":  filter.Page,
			"limit": filter.Limit,
			"total": total,
		},
	})
}

type SendWarningPayload struct {
	UserID      string `form:"user_id" json:"user_id"`
	Type        string `form:"type" json:"type"`
	Description string `form:"description" json:"description"`
}

// Validate will validate the payload
func (r SendWarningPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required, is.UUID),
		validation.Field(&r.Type, validation.Required),
		validation.Field(&r.Description, validation.Required, validation.Length(1, 2000)),
	)
}

func (ctl *Controller) WarningSend(c *fiber.Ctx) error {
	actor, err := ctl.sessionActor(c)
	if err != nil {
		return ctl.renderError(c, err)
	}

	payload := new(SendWarningPayload)
	if err := c.BodyParser(payload); err != nil {
		return ctl.renderError(c, goerrors.New("failed to parse request body", goerrors.CategoryBadInput))
	}

	if err := payload.Validate(); err != nil {
		return ctl.renderValidation(c, err)
	}

	accountID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return ctl.renderError(c, goerrors.New("invalid user id", goerrors.CategoryBadInput))
	}
	adminID, err := uuid.Parse(actor.ID)
	if err != nil {
		return ctl.renderError(c, goerrors.New("invalid session subject", goerrors.CategoryAuth))
	}

	result, err := ctl.engine.IssueWarning(c.Context(), actor, IssueWarningInput{
		AccountID:   accountID,
		AdminID:     adminID,
		Type:        WarningType(payload.Type),
		Description: payload.Description,
	})
	if err != nil {
		return ctl.renderError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":          "Warning sent successfully",
		"warning":          result.Warning,
		"userWarningCount": result.WarningCount,
		"userSuspended":    result.Suspended,
	})
}

func (ctl *Controller) WarningMarkRead(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ctl.renderError(c, goerrors.New("invalid warning id", goerrors.CategoryBadInput))
	}

	if _, err := ctl.repo.Warnings().MarkRead(c.Context(), id); err != nil {
		return ctl.renderError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Warning marked as read"})
}

// sessionActor extracts the authenticated admin identity from the guard's
// locals.
func (ctl *Controller) sessionActor(c *fiber.Ctx) (ActorRef, error) {
	claims, ok := jwtware.ClaimsFromContext(c, jwtware.DefaultContextKey)
	if !ok {
		return ActorRef{}, goerrors.New("missing session", goerrors.CategoryAuth)
	}
	return ActorRef{ID: claims.AccountID(), Type: claims.Role()}, nil
}

func (ctl *Controller) renderValidation(c *fiber.Ctx, err error) error {
	var errs validation.Errors
	if errors.As(err, &errs) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": errs,
		})
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

func (ctl *Controller) renderError(c *fiber.Ctx, err error) error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		status := statusForError(rich)
		if status >= fiber.StatusInternalServerError {
			ctl.Logger.Error("request failed: %v", err)
			return c.Status(status).JSON(fiber.Map{"error": "internal server error"})
		}

		body := fiber.Map{"error": rich.Message}
		if rich.TextCode != "" {
			body["code"] = rich.TextCode
		}
		return c.Status(status).JSON(body)
	}

	ctl.Logger.Error("request failed: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}

func statusForError(err *goerrors.Error) int {
	switch err.TextCode {
	case TextCodeAccountNotActive, TextCodeFirstAdminOnly, TextCodeAdminUndeletable:
		return fiber.StatusForbidden
	}

	switch err.Category {
	case goerrors.CategoryAuth:
		return fiber.StatusUnauthorized
	case goerrors.CategoryValidation, goerrors.CategoryBadInput, goerrors.CategoryConflict:
		return fiber.StatusBadRequest
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

func readUpload(c *fiber.Ctx, field string) (Upload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return Upload{}, goerrors.New("ID proof is required", goerrors.CategoryValidation)
	}

	f, err := fh.Open()
	if err != nil {
		return Upload{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Upload{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read uploaded file")
	}

	return Upload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
