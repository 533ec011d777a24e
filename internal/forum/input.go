package forum

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/frcoutreach/outreachnet/internal/models"
)

// ThreadInput is a new thread as submitted by a user
type ThreadInput struct {
	Title    string          `json:"title" validate:"min=5,max=150"`
	Content  string          `json:"content" validate:"min=20"`
	Category models.Category `json:"category" validate:"category"`
	Tags     []string        `json:"tags" validate:"max=10,dive,max=32"`
}

// CommentInput is a new comment as submitted by a user
type CommentInput struct {
	ThreadID string `json:"threadId" validate:"required"`
	Content  string `json:"content" validate:"min=5"`
}

// ProfileInput is a user's edit of their own profile. Nil fields are left
// unchanged.
type ProfileInput struct {
	DisplayName *string `json:"displayName" validate:"omitempty,min=1,max=64"`
	PhotoURL    *string `json:"photoURL" validate:"omitempty,url"`
}

// UserInput is an admin's edit of another user's profile. Nil fields are
// left unchanged. Email is the profile's contact address; the sign-in
// credential is not changed.
type UserInput struct {
	DisplayName *string `json:"displayName" validate:"omitempty,min=1,max=64"`
	Email       *string `json:"email" validate:"omitempty,email,max=254"`
}

// inputs sanitises and validates user input.
type inputs struct {
	validate *validator.Validate
	policy   *bluemonday.Policy
}

func newInputs() *inputs {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.Category(fl.Field().String()).Valid()
	})
	return &inputs{validate: v, policy: bluemonday.StrictPolicy()}
}

// text strips all markup from s. The result is plain text; entities are
// decoded again since clients never render it as HTML.
func (in *inputs) text(s string) string {
	return strings.TrimSpace(html.UnescapeString(in.policy.Sanitize(s)))
}

// tags cleans a tag list: markup removed, whitespace trimmed, empty and
// repeated tags dropped, first occurrence order kept.
func (in *inputs) tags(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, t := range raw {
		t = in.text(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func (in *inputs) thread(t ThreadInput) (ThreadInput, error) {
	t.Title = in.text(t.Title)
	t.Content = in.text(t.Content)
	t.Tags = in.tags(t.Tags)
	return t, in.check(t)
}

func (in *inputs) comment(c CommentInput) (CommentInput, error) {
	c.ThreadID = strings.TrimSpace(c.ThreadID)
	c.Content = in.text(c.Content)
	return c, in.check(c)
}

// displayName strips markup from a display name and rejects a blank one.
func (in *inputs) displayName(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	name := in.text(*raw)
	if name == "" {
		return &name, &ValidationError{Field: "displayName", Reason: "must not be empty"}
	}
	return &name, nil
}

func (in *inputs) profile(p ProfileInput) (ProfileInput, error) {
	var err error
	if p.DisplayName, err = in.displayName(p.DisplayName); err != nil {
		return p, err
	}
	if p.PhotoURL != nil {
		photo := strings.TrimSpace(*p.PhotoURL)
		p.PhotoURL = &photo
	}
	return p, in.check(p)
}

func (in *inputs) user(u UserInput) (UserInput, error) {
	var err error
	if u.DisplayName, err = in.displayName(u.DisplayName); err != nil {
		return u, err
	}
	if u.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*u.Email))
		u.Email = &email
		if email == "" {
			return u, &ValidationError{Field: "email", Reason: "must not be empty"}
		}
	}
	return u, in.check(u)
}

// check validates v and converts the first failure into a ValidationError.
func (in *inputs) check(v interface{}) error {
	err := in.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return &ValidationError{Field: "input", Reason: err.Error()}
	}
	return validationError(fields[0])
}

func validationError(fe validator.FieldError) *ValidationError {
	field := fe.Field()
	// dive errors name the element, e.g. tags[3]
	if i := strings.IndexByte(field, '['); i > 0 && fe.Kind() == reflect.String {
		field = field[:i]
	}

	var reason string
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "min":
		reason = fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			reason = fmt.Sprintf("must have at most %s entries", fe.Param())
		} else {
			reason = fmt.Sprintf("must be at most %s characters", fe.Param())
		}
	case "category":
		reason = fmt.Sprintf("unknown category %q", fe.Value())
	case "url":
		reason = "must be a URL"
	case "email":
		reason = "must be an email address"
	default:
		reason = "failed " + fe.Tag()
	}
	return &ValidationError{Field: field, Reason: reason}
}
