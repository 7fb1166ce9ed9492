package domain_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/persistence/memory"
)

func floatPtr(v float64) *float64 { return &v }

func TestGetProfileMaterializesDefaults(t *testing.T) {
	repo := memory.NewRepository()
	svc := domain.NewProfileService(repo, nil)
	ctx := context.Background()

	profile, err := svc.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, domain.DefaultStepGoal, profile.StepGoal)
	require.Nil(t, profile.Weight)
	require.Empty(t, profile.Gender)

	stored, err := repo.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, stored, "defaults are persisted on first read")
}

func TestUpdateProfileShallowMerge(t *testing.T) {
	svc := domain.NewProfileService(memory.NewRepository(), nil)
	ctx := context.Background()

	female := domain.GenderFemale
	_, err := svc.UpdateProfile(ctx, "user-1", domain.ProfilePatch{Height: floatPtr(170), Gender: &female})
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, "user-1", domain.ProfilePatch{StepGoal: intPtr(15000), Weight: floatPtr(70)})
	require.NoError(t, err)
	require.Equal(t, 15000, updated.StepGoal)

	got, err := svc.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 15000, got.StepGoal)
	require.Equal(t, 70.0, *got.Weight)
	require.Equal(t, 170.0, *got.Height)
	require.Equal(t, domain.GenderFemale, got.Gender)
	require.Nil(t, got.Age)
}

func TestUpdateProfileReportsEveryViolation(t *testing.T) {
	svc := domain.NewProfileService(memory.NewRepository(), nil)
	ctx := context.Background()

	other := domain.Gender("other")
	_, err := svc.UpdateProfile(ctx, "user-1", domain.ProfilePatch{
		StepGoal: intPtr(500),
		Weight:   floatPtr(10),
		Height:   floatPtr(300),
		Age:      intPtr(0),
		Gender:   &other,
	})
	require.ErrorIs(t, err, domain.ErrValidation)
	require.Equal(t, []string{
		"Step goal must be between 1000 and 100000",
		"Weight must be between 20 and 300 kg",
		"Height must be between 100 and 250 cm",
		"Age must be between 1 and 150",
		"Gender must be male or female",
	}, domain.Violations(err))

	got, err := svc.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, domain.DefaultStepGoal, got.StepGoal, "rejected updates are not persisted")
}

func TestParseGender(t *testing.T) {
	g, err := domain.ParseGender("M")
	require.NoError(t, err)
	require.Equal(t, domain.GenderMale, g)

	g, err = domain.ParseGender(" Female ")
	require.NoError(t, err)
	require.Equal(t, domain.GenderFemale, g)

	_, err = domain.ParseGender("x")
	require.Error(t, err)
}

func newAccounts(t *testing.T) (*domain.AccountService, *memory.Repository) {
	t.Helper()
	repo := memory.NewRepository()
	return domain.NewAccountService(repo, repo, domain.WithBcryptCost(bcrypt.MinCost)), repo
}

func TestRegisterAndLogin(t *testing.T) {
	accounts, repo := newAccounts(t)
	ctx := context.Background()

	user, profile, err := accounts.Register(ctx, domain.RegisterInput{
		Username: "walker",
		Password: "secret-pass",
		Email:    "walker@example.com",
		Profile:  domain.ProfilePatch{StepGoal: intPtr(8000)},
	})
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.NotEqual(t, "secret-pass", user.PasswordHash)
	require.Equal(t, 8000, profile.StepGoal)

	stored, err := repo.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 8000, stored.StepGoal)

	logged, err := accounts.Login(ctx, "walker", "secret-pass")
	require.NoError(t, err)
	require.Equal(t, user.ID, logged.ID)

	_, err = accounts.Login(ctx, "walker", "wrong")
	require.ErrorIs(t, err, domain.ErrAuthentication)

	_, err = accounts.Login(ctx, "nobody", "secret-pass")
	require.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestRegisterDuplicateUsernameIsAuthenticationError(t *testing.T) {
	accounts, _ := newAccounts(t)
	ctx := context.Background()

	_, _, err := accounts.Register(ctx, domain.RegisterInput{Username: "walker", Password: "secret-pass"})
	require.NoError(t, err)

	_, _, err = accounts.Register(ctx, domain.RegisterInput{Username: "walker", Password: "another-pass"})
	require.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestRegisterValidatesAllFields(t *testing.T) {
	accounts, _ := newAccounts(t)

	_, _, err := accounts.Register(context.Background(), domain.RegisterInput{
		Username: "ab",
		Password: "123",
		Email:    "not-an-email",
		Profile:  domain.ProfilePatch{Age: intPtr(200)},
	})
	require.ErrorIs(t, err, domain.ErrValidation)
	require.Equal(t, []string{
		"Username must be between 3 and 50 characters",
		"Password must be at least 6 characters",
		"Email must be a valid address",
		"Age must be between 1 and 150",
	}, domain.Violations(err))
}

func TestGetUserNotFound(t *testing.T) {
	accounts, _ := newAccounts(t)

	_, err := accounts.GetUser(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
