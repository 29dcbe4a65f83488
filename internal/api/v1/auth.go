package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/provenlabs/opsledger/internal/auth"
	"github.com/provenlabs/opsledger/internal/domain"
)

type RegisterUserInput struct {
	Body struct {
		Username string `json:"username" minLength:"3" maxLength:"64" doc:"Unique username"`
		Email    string `json:"email,omitempty" maxLength:"255" doc:"Email address"`
		Password string `json:"password" minLength:"8" maxLength:"128" doc:"Password"`
		FullName string `json:"full_name,omitempty" maxLength:"255" doc:"Display name"`
	}
}

type RegisterUserOutput struct {
	Body *domain.User
}

type LoginInput struct {
	RemoteAddr string `header:"X-Forwarded-For" hidden:"true"`
	Body       struct {
		Username string `json:"username" minLength:"1" maxLength:"64" doc:"Username"`
		Password string `json:"password" minLength:"1" maxLength:"128" doc:"Password"`
	}
}

type LoginOutput struct {
	Body struct {
		User        *domain.User `json:"user"`
		AccessToken string       `json:"access_token"`
	}
}

func RegisterAuthRoutes(api huma.API, authSvc AuthService) {
	huma.Register(api, huma.Operation{
		OperationID: "register",
		Method:      http.MethodPost,
		Path:        "/auth/register",
		Summary:     "Register a new user",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *RegisterUserInput) (*RegisterUserOutput, error) {
		user, err := authSvc.Register(ctx, auth.RegisterInput{
			Username: input.Body.Username,
			Email:    input.Body.Email,
			Password: input.Body.Password,
			FullName: input.Body.FullName,
		})
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil, huma.Error409Conflict("username already taken")
			}
			return nil, huma.Error500InternalServerError("failed to register user", err)
		}

		return &RegisterUserOutput{Body: user}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Login with username and password",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
		user, token, err := authSvc.Login(ctx, input.Body.Username, input.Body.Password, input.RemoteAddr)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrUserInactive) {
				return nil, huma.Error401Unauthorized("invalid username or password")
			}
			return nil, huma.Error500InternalServerError("login failed", err)
		}

		out := &LoginOutput{}
		out.Body.User = user
		out.Body.AccessToken = token
		return out, nil
	})
}
