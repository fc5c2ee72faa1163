package forms

import (
	"testing"

	"github.com/kendall-kelly/servicepro-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomerInputValidate(t *testing.T) {
	in := CustomerInput{Name: "  Ann  ", Phone: " 555-1111 "}
	require.NoError(t, in.Validate())
	assert.Equal(t, "Ann", in.Name)
	assert.Equal(t, "555-1111", in.Phone)

	bad := CustomerInput{Name: "", Email: "nope"}
	verr := requireValidationError(t, bad.Validate(), StageForm)
	assert.True(t, verr.Has("name"))
	assert.True(t, verr.Has("email"))
}

func TestStaffInputDefaultsRole(t *testing.T) {
	in := StaffInput{Name: "Tech", Email: "tech@example.com", Password: "secret1"}
	require.NoError(t, in.Validate())
	assert.Equal(t, models.RoleUser, in.Role)
}

func TestStaffInputRejects(t *testing.T) {
	in := StaffInput{Name: "Tech", Email: "tech@example.com", Password: "123", Role: "OWNER"}
	verr := requireValidationError(t, in.Validate(), StageForm)
	assert.True(t, verr.Has("password"))
	assert.True(t, verr.Has("role"))
}

func TestSignupAndLoginInput(t *testing.T) {
	signup := SignupInput{Name: "A", Email: "a@example.com", Password: "secret1"}
	verr := requireValidationError(t, signup.Validate(), StageForm)
	assert.Equal(t, []string{"Must be at least 2 characters."}, verr.Fields["name"])

	login := LoginInput{Email: " a@example.com ", Password: "x"}
	require.NoError(t, login.Validate())
	assert.Equal(t, "a@example.com", login.Email)
}

func TestProfileInputValidate(t *testing.T) {
	name := " Bob "
	empty := ""
	in := ProfileInput{Name: &name, Image: &empty}
	require.NoError(t, in.Validate())
	assert.Equal(t, "Bob", *in.Name)

	bad := "not a url"
	verr := requireValidationError(t, (&ProfileInput{Image: &bad}).Validate(), StageForm)
	assert.True(t, verr.Has("image"))
}

func TestRoleAndPaymentInput(t *testing.T) {
	require.NoError(t, (&RoleInput{Role: models.RoleAdmin}).Validate())
	requireValidationError(t, (&RoleInput{Role: "admin"}).Validate(), StageForm)

	pay := PaymentInput{Method: " card "}
	require.NoError(t, pay.Validate())
	assert.Equal(t, "card", pay.Method)
	requireValidationError(t, (&PaymentInput{}).Validate(), StageForm)
}
