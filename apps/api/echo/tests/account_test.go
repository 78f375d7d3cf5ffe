package tests

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"

	"github.com/darasa/backend/apps/api/echo"
	"github.com/darasa/backend/core"
	"github.com/darasa/backend/core/account"
	"github.com/darasa/backend/services/email"
	"github.com/darasa/backend/tests"
)

func Test_accountApi_register(t *testing.T) {
	app := setup(t)

	path := "/v1/accounts/register"

	tests := []httpTest{
		{
			name: "Required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Message: map[string]string{
				"name":             "this field is required",
				"password":         "this field is required",
				"password_confirm": "this field is required",
			}}),
		},
		{
			name: "Password mismatch", wantCode: http.StatusBadRequest,
			body: marchallObj(t, account.NewAccount{Name: "Hero", Password: "LongSecret1", PasswordConfirm: "Other"}),
			wantData: marchallObj(t, httpErr{Message: map[string]string{
				"password_confirm": "password_confirm must be equal to Password",
			}}),
		},
		{
			name: "Admin roles cannot be self-assigned", wantCode: http.StatusBadRequest,
			body: marchallObj(t, account.NewAccount{
				Name: "Sneaky", Password: "LongSecret1", PasswordConfirm: "LongSecret1", Roles: account.AdminRoles,
			}),
			wantData: marchallObj(t, httpErr{Message: map[string]string{"roles": "not enough rights to set these roles"}}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = path

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Student registered and verification email sent", func(t *testing.T) {
		emailsvc.ClearSentMessages()

		body := marchallObj(t, account.NewAccount{
			Name: "Hero Kabeya", Username: "herokb", Email: "hero@test.cd",
			Password: "LongSecret1", PasswordConfirm: "LongSecret1",
		})
		req, rec := newRequest(http.MethodPost, path, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body %v", rec.Code, rec.Body.String())
		}
		var acct account.Account
		if err := json.Unmarshal(rec.Body.Bytes(), &acct); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if acct.Email != "hero@test.cd" || !acct.IsStudent() || acct.EmailVerified {
			t.Errorf("failed! data = %+v", acct)
		}
		if len(emailsvc.SentMessages) != 1 || emailsvc.SentMessages[0].Subject != "Confirm your email address" {
			t.Errorf("failed! sentMessages = %+v", emailsvc.SentMessages)
		}
	})

	t.Run("Teacher can self-register", func(t *testing.T) {
		body := marchallObj(t, account.NewAccount{
			Name: "Ms. Ada", Username: "msada1", Email: "ada@test.cd",
			Password: "LongSecret1", PasswordConfirm: "LongSecret1", Roles: account.TeacherRoles,
		})
		req, rec := newRequest(http.MethodPost, path, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body %v", rec.Code, rec.Body.String())
		}
		var acct account.Account
		if err := json.Unmarshal(rec.Body.Bytes(), &acct); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if !acct.IsTeacher() {
			t.Errorf("failed! data = %+v", acct)
		}
	})

	t.Run("Duplicate email rejected", func(t *testing.T) {
		body := marchallObj(t, account.NewAccount{
			Name: "Copycat", Email: "hero@test.cd",
			Password: "LongSecret1", PasswordConfirm: "LongSecret1",
		})
		req, rec := newRequest(http.MethodPost, path, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Message: map[string]string{"email": "an account with this email already exists"}}),
		}, rec)
	})
}

func Test_accountApi_verifyEmail(t *testing.T) {
	app := setup(t)

	path := "/v1/accounts/verify-email"

	// register an unverified account
	body := marchallObj(t, account.NewAccount{
		Name: "Hero", Username: "herooo", Email: "hero@test.cd",
		Password: "LongSecret1", PasswordConfirm: "LongSecret1",
	})
	req, rec := newRequest(http.MethodPost, "/v1/accounts/register", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed! code = %v; body %v", rec.Code, rec.Body.String())
	}

	acct, err := acctRepo.GetAccountByEmail("hero@test.cd")
	if err != nil {
		t.Fatalf("GetAccountByEmail() failed: %v", err)
	}

	tests := []httpTest{
		{
			name: "Required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Message: map[string]string{"token": "this field is required"}}),
		},
		{
			name: "Invalid token", body: marchallObj(t, echoapi.VerifyEmailRequest{Token: "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Message: "invalid verification token"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = path

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Email verified", func(t *testing.T) {
		body := marchallObj(t, echoapi.VerifyEmailRequest{Token: acct.VerificationToken})
		req, rec := newRequest(http.MethodPost, path, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %v", rec.Code, rec.Body.String())
		}
		var respData account.Account
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if !respData.EmailVerified {
			t.Errorf("failed! data = %+v", respData)
		}
	})
}

func Test_accountApi_login(t *testing.T) {
	app := setup(t)

	student := testutil.CreateAccount(t, acctRepo, "Hero", "herooo", "hero@test.cd", "LongSecret1", account.StudentRoles, true)
	naughty := testutil.CreateAccount(t, acctRepo, "N Dog", "ndog12", "ndog@test.cd", "LongSecret1", account.StudentRoles, false) // 😂

	unverified := account.Account{
		ID:       uuid.New().String(),
		Name:     "Newbie",
		Username: "newbie",
		Email:    "newbie@test.cd",
		IsActive: true,
		Roles:    account.StudentRoles,
	}
	if err := unverified.SetPassword("LongSecret1"); err != nil {
		t.Fatalf("SetPassword() failed: %v", err)
	}
	if _, err := acctRepo.CreateAccount(unverified); err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}

	loginBody := func(uname, pwd string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Username: uname, Password: pwd})
	}

	tests := []httpTest{
		{
			name: "Required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Message: map[string]string{
				"username": "this field is required",
				"password": "this field is required",
			}}),
		},
		{
			name: "Unknown account", body: loginBody("ghost", "LongSecret1"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Message: "authentication failed"}),
		},
		{
			name: "Wrong password", body: loginBody(student.Username, "nope"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Message: "authentication failed"}),
		},
		{
			name: "Deactivated account", body: loginBody(naughty.Username, "LongSecret1"),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Message: "account deactivated"}),
		},
		{
			name: "Unverified email", body: loginBody(unverified.Username, "LongSecret1"),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Message: "email address not verified"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/accounts/login"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Logged in", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/accounts/login", loginBody(student.Email, "LongSecret1"))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %v", rec.Code, rec.Body.String())
		}
		var respData echoapi.LoginResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Errorf("json.Unmarshal() failed! err %v", err)
		}
		if respData.Token == "" {
			t.Error("failed! empty token")
		}
	})
}

func Test_accountApi_tokenRefresh(t *testing.T) {
	app := setup(t)

	naughty := testutil.CreateAccount(t, acctRepo, "N Dog", "ndog12", "ndog@test.cd", "", account.StudentRoles, false) // 😂
	student := testutil.CreateAccount(t, acctRepo, "Hero", "herooo", "hero@test.cd", "", account.StudentRoles, true)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   student.ID,
			Audience:  "Darasa",
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * core.Conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		IsStudent:    student.IsStudent(),
		Roles:        student.Roles,
	}
	unrefreshableToken, err := echoapi.GenerateToken(unrefreshableClaims)
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Inactive account not allowed", token: getToken(t, naughty),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Message: "account deactivated"}),
		},
		{
			name: "Refresh period expired", token: unrefreshableToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Message: "refresh has expired"}),
		},
		{name: "Token refreshed", token: getToken(t, student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/accounts/token-refresh"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			// cannot guess new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Errorf("json.Unmarshal() failed! err %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_accountApi_resetPassword(t *testing.T) {
	app := setup(t)

	student := testutil.CreateAccount(t, acctRepo, "Hero", "herooo", "hero@test.cd", "", account.StudentRoles, true)
	successData := marchallObj(t, echoapi.SuccessResponse{
		Success: true,
		Message: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})

	type extraTest struct {
		emailSent bool
	}
	tests := []httpTest{
		{
			name: "Required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Message: map[string]string{"email": "this field is required"}}),
		},
		{
			name: "Invalid email", wantCode: http.StatusBadRequest, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol"}),
			wantData: marchallObj(t, httpErr{Message: map[string]string{"email": "email must be a valid email address"}}),
		},
		{
			name: "Unknown email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol@test.com"}),
			wantData: successData, extra: extraTest{emailSent: false},
		},
		{
			name: "Known email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: student.Email}),
			wantData: successData, extra: extraTest{emailSent: true},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/accounts/password-reset"

		t.Run(tt.name, func(t *testing.T) {
			emailsvc.ClearSentMessages()

			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if extra, ok := tt.extra.(extraTest); ok {
				if extra.emailSent && len(emailsvc.SentMessages) != 1 {
					t.Errorf("failed! sentMessages = %+v; want 1 message", emailsvc.SentMessages)
				}
				if !extra.emailSent && len(emailsvc.SentMessages) != 0 {
					t.Errorf("failed! sentMessages = %+v; want none", emailsvc.SentMessages)
				}
				if extra.emailSent {
					if !strings.Contains(emailsvc.SentMessages[0].Subject, "Password reset") {
						t.Errorf("failed! subject = %v", emailsvc.SentMessages[0].Subject)
					}
				}
			}
		})
	}
}
