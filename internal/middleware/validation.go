package middleware

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// Field length limits matching database schema constraints.
const (
	MinFingerprintLen = 8  // rolling hash renders at least 8 hex digits
	MaxFingerprintLen = 16 // guests.fingerprint VARCHAR(16)
	MaxFlagLen        = 32
	MaxActorLen       = 64 // guest_audit_log.actor VARCHAR(64)
)

var (
	// fingerprintRe matches lowercase hex fingerprint hashes.
	fingerprintRe = regexp.MustCompile(`^[0-9a-f]+$`)
	// flagRe matches moderation flags: lowercase words joined by dash or underscore.
	flagRe = regexp.MustCompile(`^[a-z0-9_-]+$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("fingerprint", func(fl validator.FieldLevel) bool {
		_, msg := ValidateFingerprint(fl.Field().String())
		return msg == ""
	})
	return v
}

// ErrorResponse is a helper that returns a standard API error response.
func ErrorResponse(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}

// ValidateStruct runs the struct's validate tags and returns a message for
// the first failing field, or "" when valid.
func ValidateStruct(v any) string {
	err := validate.Struct(v)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "fingerprint":
		return field + " must be an 8-16 character lowercase hex hash"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return field + " is invalid"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// ValidateFingerprint checks the fingerprint hash format.
func ValidateFingerprint(fp string) (string, string) {
	fp = strings.TrimSpace(fp)
	if len(fp) < MinFingerprintLen || len(fp) > MaxFingerprintLen {
		return "", "fingerprint must be 8-16 characters"
	}
	if !fingerprintRe.MatchString(fp) {
		return "", "fingerprint must be lowercase hexadecimal"
	}
	return fp, ""
}

// ValidateGuestID checks that a guest ID is a UUID and returns it canonicalized.
func ValidateGuestID(id string) (string, string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "guestId is required"
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", "guestId must be a UUID"
	}
	return parsed.String(), ""
}

// ValidateFlag trims and checks a moderation flag.
func ValidateFlag(flag string) (string, string) {
	flag = strings.TrimSpace(strings.ToLower(flag))
	if flag == "" {
		return "", "flag is required"
	}
	if len(flag) > MaxFlagLen {
		return "", "flag must be at most 32 characters"
	}
	if !flagRe.MatchString(flag) {
		return "", "flag contains invalid characters"
	}
	return flag, ""
}

// ValidateActor trims and truncates the admin actor name to DB limits.
func ValidateActor(actor string) string {
	actor = strings.TrimSpace(actor)
	if len(actor) > MaxActorLen {
		actor = actor[:MaxActorLen]
	}
	return actor
}
