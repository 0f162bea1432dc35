package service

import (
	"context"

	"github.com/pkg/errors"

	"trade_terminal/internal/models"
)

// Authenticate: вход по логину/паролю. Полученные токены сразу используются клиентом.
func (c *Client) Authenticate(ctx context.Context, cred models.Credentials) (models.AuthResult, error) {
	if cred.Email == "" || cred.Password == "" {
		return models.AuthResult{}, errors.Wrap(ErrInvalidCredentials, "empty email or password")
	}

	var resp authResponse
	if err := c.post(ctx, "authenticate", authenticatePath, cred, &resp, false); err != nil {
		return models.AuthResult{}, err
	}
	switch resp.Result {
	case models.ResultOk:
	case models.ResultInvalidUserNameOrPassword:
		return models.AuthResult{}, ErrInvalidCredentials
	default:
		return models.AuthResult{}, errors.Errorf("authenticate: %s", resp.Result.Message())
	}

	res := resp.toModel()
	c.SetTokens(res.Tokens)
	return res, nil
}

// RefreshToken меняет refresh-токен на новую пару.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (models.Tokens, error) {
	if refreshToken == "" {
		return models.Tokens{}, errors.Wrap(ErrRefreshRejected, "no refresh token")
	}

	var resp authResponse
	err := c.post(ctx, "refresh_token", refreshTokenPath, refreshTokenRequest{RefreshToken: refreshToken}, &resp, false)
	if errors.Is(err, ErrUnauthorized) {
		return models.Tokens{}, errors.Wrap(ErrRefreshRejected, err.Error())
	}
	if err != nil {
		return models.Tokens{}, err
	}
	if resp.Result != models.ResultOk || resp.Data.Token == "" {
		return models.Tokens{}, errors.Wrap(ErrRefreshRejected, resp.Result.Message())
	}

	tokens := resp.toModel().Tokens
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	c.SetTokens(tokens)
	return tokens, nil
}
