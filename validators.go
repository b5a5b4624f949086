package auth

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// ValidateTeam checks the fields required to persist a team
func ValidateTeam(t *Team) error {
	if t == nil {
		return failure(ErrInvalidRecord, "team is required", nil)
	}
	return validationFailure(validation.ValidateStruct(t,
		validation.Field(&t.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&t.Type, validation.Required, validation.By(validTeamType)),
		validation.Field(&t.Description, validation.Length(0, 2000)),
		validation.Field(&t.Capacity, validation.Min(0)),
	))
}

// ValidateMember checks the fields required to add a member
func ValidateMember(m *AppUser) error {
	if m == nil {
		return failure(ErrInvalidRecord, "member is required", nil)
	}
	return validationFailure(validation.ValidateStruct(m,
		validation.Field(&m.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&m.Username, validation.Required, validation.Length(1, 100)),
		validation.Field(&m.TeamPosition, validation.Min(0)),
		validation.Field(&m.FirstName, validation.Length(0, 200)),
		validation.Field(&m.LastName, validation.Length(0, 200)),
		validation.Field(&m.TwoFactorProvider, validation.In(
			"",
			TwoFactorNone,
			TwoFactorEmail,
			TwoFactorSMS,
			TwoFactorAuthenticator,
		)),
	))
}

func validTeamType(value any) error {
	t, ok := value.(TeamType)
	if !ok || !t.IsValid() {
		return errors.New("must be one of customer, maintenance or super")
	}
	return nil
}

func validationFailure(err error) error {
	if err == nil {
		return nil
	}

	var fields validation.Errors
	if errors.As(err, &fields) {
		meta := make(map[string]any, len(fields))
		for name, fieldErr := range fields {
			meta[name] = fieldErr.Error()
		}
		return failure(ErrInvalidRecord, err.Error(), map[string]any{"fields": meta})
	}

	return failure(ErrInvalidRecord, err.Error(), nil)
}
