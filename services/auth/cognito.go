package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cognitoidentityprovider"
	"github.com/pavitra93/go-rental-marketplace/shared/config"
)

var (
	errUserExists         = errors.New("user already exists")
	errInvalidPassword    = errors.New("password does not meet the pool policy")
	errInvalidCredentials = errors.New("invalid credentials")
	errNotConfirmed       = errors.New("user is not confirmed")
)

// Tokens is the result of a successful authentication
type Tokens struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresIn    int64
}

// IdentityProvider is the part of the user pool the auth service calls
type IdentityProvider interface {
	SignUp(ctx context.Context, username, password string, attributes map[string]string) (string, error)
	DeleteUser(ctx context.Context, username string) error
	Login(ctx context.Context, username, password string) (*Tokens, error)
	Refresh(ctx context.Context, username, refreshToken string) (*Tokens, error)
}

// cognitoProvider talks to a Cognito user pool app client
type cognitoProvider struct {
	client       *cognitoidentityprovider.CognitoIdentityProvider
	userPoolID   string
	clientID     string
	clientSecret string
}

func newCognitoProvider(cfg *config.AuthConfig) (*cognitoProvider, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
	})
	if err != nil {
		return nil, err
	}
	return &cognitoProvider{
		client:       cognitoidentityprovider.New(sess),
		userPoolID:   cfg.UserPoolID,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}, nil
}

// secretHash creates the SECRET_HASH Cognito expects when the app client has a secret
func (p *cognitoProvider) secretHash(username string) string {
	if p.clientSecret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(p.clientSecret))
	mac.Write([]byte(username + p.clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (p *cognitoProvider) SignUp(ctx context.Context, username, password string, attributes map[string]string) (string, error) {
	attrs := make([]*cognitoidentityprovider.AttributeType, 0, len(attributes))
	for name, value := range attributes {
		attrs = append(attrs, &cognitoidentityprovider.AttributeType{
			Name:  aws.String(name),
			Value: aws.String(value),
		})
	}

	input := &cognitoidentityprovider.SignUpInput{
		ClientId:       aws.String(p.clientID),
		Username:       aws.String(username),
		Password:       aws.String(password),
		UserAttributes: attrs,
	}
	if hash := p.secretHash(username); hash != "" {
		input.SecretHash = aws.String(hash)
	}

	out, err := p.client.SignUpWithContext(ctx, input)
	if err != nil {
		return "", translateCognitoError(err)
	}
	return aws.StringValue(out.UserSub), nil
}

func (p *cognitoProvider) DeleteUser(ctx context.Context, username string) error {
	_, err := p.client.AdminDeleteUserWithContext(ctx, &cognitoidentityprovider.AdminDeleteUserInput{
		UserPoolId: aws.String(p.userPoolID),
		Username:   aws.String(username),
	})
	return err
}

func (p *cognitoProvider) Login(ctx context.Context, username, password string) (*Tokens, error) {
	params := map[string]*string{
		"USERNAME": aws.String(username),
		"PASSWORD": aws.String(password),
	}
	if hash := p.secretHash(username); hash != "" {
		params["SECRET_HASH"] = aws.String(hash)
	}
	return p.initiate(ctx, "USER_PASSWORD_AUTH", params)
}

// Refresh needs the username only when the app client has a secret
func (p *cognitoProvider) Refresh(ctx context.Context, username, refreshToken string) (*Tokens, error) {
	params := map[string]*string{
		"REFRESH_TOKEN": aws.String(refreshToken),
	}
	if hash := p.secretHash(username); hash != "" && username != "" {
		params["SECRET_HASH"] = aws.String(hash)
	}
	return p.initiate(ctx, "REFRESH_TOKEN_AUTH", params)
}

func (p *cognitoProvider) initiate(ctx context.Context, flow string, params map[string]*string) (*Tokens, error) {
	out, err := p.client.InitiateAuthWithContext(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow:       aws.String(flow),
		ClientId:       aws.String(p.clientID),
		AuthParameters: params,
	})
	if err != nil {
		return nil, translateCognitoError(err)
	}
	result := out.AuthenticationResult
	if result == nil {
		return nil, errNotConfirmed
	}
	return &Tokens{
		AccessToken:  aws.StringValue(result.AccessToken),
		IDToken:      aws.StringValue(result.IdToken),
		RefreshToken: aws.StringValue(result.RefreshToken),
		ExpiresIn:    aws.Int64Value(result.ExpiresIn),
	}, nil
}

// translateCognitoError maps user-caused Cognito errors to sentinels; anything else is returned as is
func translateCognitoError(err error) error {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return err
	}
	switch aerr.Code() {
	case cognitoidentityprovider.ErrCodeUsernameExistsException:
		return errUserExists
	case cognitoidentityprovider.ErrCodeInvalidPasswordException, cognitoidentityprovider.ErrCodeInvalidParameterException:
		return errInvalidPassword
	case cognitoidentityprovider.ErrCodeNotAuthorizedException, cognitoidentityprovider.ErrCodeUserNotFoundException:
		return errInvalidCredentials
	case cognitoidentityprovider.ErrCodeUserNotConfirmedException:
		return errNotConfirmed
	}
	return err
}
