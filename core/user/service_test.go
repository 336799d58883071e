package user_test

import (
	"context"
	"net/url"
	"regexp"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ministerio/escalas/core"
	"github.com/ministerio/escalas/core/user"
	emailsvc "github.com/ministerio/escalas/services/email"
	inmemdb "github.com/ministerio/escalas/storage/database/inmem"
	"github.com/ministerio/escalas/tests/testutil"
)

const strongPwd = "Xk9#mQ2$vLp7"

var resetLinkRegex = regexp.MustCompile(`password-reset\?(\S+)`)

func newService() (*user.Service, user.Repository, *emailsvc.ConsoleServiceMock, *validator.Validate) {
	conf := testutil.NewConfig()
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	mailSvc := emailsvc.NewConsoleServiceMock(conf, testutil.NopLogger{})
	validate, _ := testutil.NewValidator()
	user.LoadCommonPasswords(testutil.NopLogger{})
	return user.NewService(repo, mailSvc, conf), repo, mailSvc, validate
}

func validationFields(err error) []string {
	var fields []string
	switch vErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		for _, fe := range vErr {
			fields = append(fields, fe.Field())
		}
	case *core.ValidationError:
		for _, fe := range vErr.Fields {
			fields = append(fields, fe.Field)
		}
	}
	return fields
}

func TestNewUser_Validate(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, validate := newService()
	testutil.CreateUser(t, repo, "Ana", "ana@example.com", "", "", true)

	tests := []struct {
		name       string
		data       user.NewUser
		wantFields []string
	}{
		{
			name: "valid",
			data: user.NewUser{Name: " Bia  Lima ", Email: "BIA@example.com", Password: strongPwd, PasswordConfirm: strongPwd},
		},
		{
			name:       "blank name",
			data:       user.NewUser{Name: "  ", Email: "bia@example.com", Password: strongPwd, PasswordConfirm: strongPwd},
			wantFields: []string{"name"},
		},
		{
			name:       "bad email",
			data:       user.NewUser{Name: "Bia", Email: "bia", Password: strongPwd, PasswordConfirm: strongPwd},
			wantFields: []string{"email"},
		},
		{
			name:       "passwords differ",
			data:       user.NewUser{Name: "Bia", Email: "bia@example.com", Password: strongPwd, PasswordConfirm: strongPwd + "!"},
			wantFields: []string{"password_confirm"},
		},
		{
			name:       "short password",
			data:       user.NewUser{Name: "Bia", Email: "bia@example.com", Password: "Xk9#", PasswordConfirm: "Xk9#"},
			wantFields: []string{"password"},
		},
		{
			name:       "weak password",
			data:       user.NewUser{Name: "Bia", Email: "bia@example.com", Password: "abcdefgh", PasswordConfirm: "abcdefgh"},
			wantFields: []string{"password"},
		},
		{
			name:       "password similar to name",
			data:       user.NewUser{Name: "Bia Lima", Email: "b@example.com", Password: "Bia.Lima1", PasswordConfirm: "Bia.Lima1"},
			wantFields: []string{"password"},
		},
		{
			name:       "invalid role",
			data:       user.NewUser{Name: "Bia", Email: "bia@example.com", Role: "boss", Password: strongPwd, PasswordConfirm: strongPwd},
			wantFields: []string{"role"},
		},
		{
			name:       "email taken",
			data:       user.NewUser{Name: "Ana 2", Email: "ANA@example.com", Password: strongPwd, PasswordConfirm: strongPwd},
			wantFields: []string{"email"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate(ctx, validate, svc)
			if tt.wantFields == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ElementsMatch(t, tt.wantFields, validationFields(err))
		})
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc, _, _, validate := newService()

	nu := user.NewUser{Name: "Bia  Lima", Email: "Bia@Example.com", Password: strongPwd, PasswordConfirm: strongPwd}
	require.NoError(t, nu.Validate(ctx, validate, svc))

	usr, err := svc.Create(ctx, nu)
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.Equal(t, "Bia Lima", usr.Name)
	assert.Equal(t, "bia@example.com", usr.Email)
	assert.Equal(t, user.RoleMember, usr.Role)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword(strongPwd))

	got, err := svc.GetByEmail(ctx, " BIA@example.com")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, validate := newService()

	ana := testutil.CreateUser(t, repo, "Ana", "ana@example.com", strongPwd, "", true)
	testutil.CreateUser(t, repo, "Bia", "bia@example.com", "", "", true)

	t.Run("keeps blank fields", func(t *testing.T) {
		uu := user.UpdateUser{}
		require.NoError(t, uu.Validate(ctx, ana, validate, svc))
		usr, err := svc.Update(ctx, ana, uu)
		require.NoError(t, err)
		assert.Equal(t, "Ana", usr.Name)
		assert.Equal(t, "ana@example.com", usr.Email)
		assert.NoError(t, usr.CheckPassword(strongPwd))
	})

	t.Run("email taken", func(t *testing.T) {
		uu := user.UpdateUser{Email: "bia@example.com"}
		err := uu.Validate(ctx, ana, validate, svc)
		assert.Equal(t, []string{"email"}, validationFields(err))
	})

	t.Run("password requires confirmation", func(t *testing.T) {
		uu := user.UpdateUser{Password: "Nw7&pLq2#zX"}
		err := uu.Validate(ctx, ana, validate, svc)
		assert.Equal(t, []string{"password_confirm"}, validationFields(err))
	})

	t.Run("deactivate and change password", func(t *testing.T) {
		inactive := false
		uu := user.UpdateUser{Name: "Ana Souza", IsActive: &inactive, Password: "Nw7&pLq2#zX", PasswordConfirm: "Nw7&pLq2#zX"}
		require.NoError(t, uu.Validate(ctx, ana, validate, svc))
		usr, err := svc.Update(ctx, ana, uu)
		require.NoError(t, err)
		assert.Equal(t, "Ana Souza", usr.Name)
		assert.False(t, usr.IsActive)
		assert.NoError(t, usr.CheckPassword("Nw7&pLq2#zX"))
	})
}

func TestService_SetRole(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := newService()
	ana := testutil.CreateUser(t, repo, "Ana", "ana@example.com", "", "", true)

	usr, err := svc.SetRole(ctx, ana, user.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, usr.IsAdmin())

	_, err = svc.SetRole(ctx, ana, "boss")
	assert.Equal(t, user.ErrInvalidRole, err)
}

func TestService_Functions(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := newService()
	ana := testutil.CreateUser(t, repo, "Ana", "ana@example.com", "", "", true)

	fn, err := svc.AddFunction(ctx, ana, "Keys")
	require.NoError(t, err)
	assert.Equal(t, "Keys", fn.Name)

	ana, err = svc.GetByID(ctx, ana.ID)
	require.NoError(t, err)
	assert.True(t, ana.HasFunction("Keys"))

	_, err = svc.AddFunction(ctx, ana, "Keys")
	assert.Equal(t, []string{"function"}, validationFields(err))

	require.NoError(t, svc.RemoveFunction(ctx, ana.ID, fn.ID))
	err = svc.RemoveFunction(ctx, ana.ID, fn.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := newService()
	ana := testutil.CreateUser(t, repo, "Ana", "ana@example.com", "", "", true)
	bia := testutil.CreateUser(t, repo, "Bia", "bia@example.com", "", "", true)
	testutil.CreateUser(t, repo, "Caio", "caio@example.com", "", "", true)

	n, err := svc.Delete(ctx, ana.ID, bia.ID, "unknown")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestService_PasswordReset(t *testing.T) {
	ctx := context.Background()
	svc, repo, mailSvc, validate := newService()
	ana := testutil.CreateUser(t, repo, "Ana Souza", "ana@example.com", strongPwd, "", true)
	testutil.CreateUser(t, repo, "Bia", "bia@example.com", strongPwd, "", false)

	t.Run("unknown email", func(t *testing.T) {
		err := svc.RequestPasswordReset(ctx, "nobody@example.com")
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("inactive user", func(t *testing.T) {
		err := svc.RequestPasswordReset(ctx, "bia@example.com")
		assert.True(t, core.IsNotFound(err))
		assert.Empty(t, mailSvc.SentMessages())
	})

	require.NoError(t, svc.RequestPasswordReset(ctx, "ANA@example.com"))
	sent := mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "ana@example.com", sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "Hello Ana,")

	match := resetLinkRegex.FindStringSubmatch(sent[0].TextContent)
	require.Len(t, match, 2)
	params, err := url.ParseQuery(match[1])
	require.NoError(t, err)

	newPwd := "Nw7&pLq2#zX"
	t.Run("bad token", func(t *testing.T) {
		data := user.ResetUserPassword{UID: params.Get("uid"), Token: "1-abc", Password: newPwd, PasswordConfirm: newPwd}
		require.NoError(t, data.Validate(validate))
		err := svc.ResetPassword(ctx, data)
		assert.Equal(t, []string{"token"}, validationFields(err))
	})

	t.Run("bad uid", func(t *testing.T) {
		data := user.ResetUserPassword{UID: "???", Token: params.Get("token"), Password: newPwd, PasswordConfirm: newPwd}
		err := svc.ResetPassword(ctx, data)
		assert.Equal(t, []string{"token"}, validationFields(err))
	})

	data := user.ResetUserPassword{UID: params.Get("uid"), Token: params.Get("token"), Password: newPwd, PasswordConfirm: newPwd}
	require.NoError(t, data.Validate(validate))
	require.NoError(t, svc.ResetPassword(ctx, data))

	usr, err := svc.GetByID(ctx, ana.ID)
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword(newPwd))

	t.Run("token is single use", func(t *testing.T) {
		err := svc.ResetPassword(ctx, data)
		assert.Equal(t, []string{"token"}, validationFields(err))
	})
}
