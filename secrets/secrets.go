// Package secrets resolves the admin credential and database URL, either from
// the environment or from AWS SSM Parameter Store, behind a TTL cache.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/patrickmn/go-cache"
)

const (
	AdminLogin    = "admin_login"
	AdminPassword = "admin_password"
	DatabaseURL   = "database_url"
)

var ErrNotFound = errors.New("secret not found")

type Provider interface {
	Get(ctx context.Context, name string) (string, error)
}

// Static serves values known at startup. Empty values count as missing.
type Static map[string]string

func (s Static) Get(_ context.Context, name string) (string, error) {
	if v := s[name]; v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Chain asks each provider in turn and returns the first value found.
type Chain []Provider

func (c Chain) Get(ctx context.Context, name string) (string, error) {
	for _, p := range c {
		v, err := p.Get(ctx, name)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// SSMAPI is the part of the SSM client the provider needs.
type SSMAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMProvider reads SecureString parameters. params maps secret names to
// parameter names; names without a parameter are reported missing.
type SSMProvider struct {
	client SSMAPI
	params map[string]string
}

func NewSSMProvider(client SSMAPI, params map[string]string) *SSMProvider {
	p := &SSMProvider{client: client, params: make(map[string]string, len(params))}
	for name, param := range params {
		if param != "" {
			p.params[name] = param
		}
	}
	return p
}

func (p *SSMProvider) Get(ctx context.Context, name string) (string, error) {
	param, ok := p.params[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	out, err := p.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(param),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read SSM parameter %s: %w", param, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", fmt.Errorf("SSM parameter %s is empty", param)
	}
	return aws.ToString(out.Parameter.Value), nil
}

// CachedProvider remembers values for ttl. Concurrent misses may both reach
// the underlying provider; the later write wins.
type CachedProvider struct {
	next  Provider
	cache *cache.Cache
}

func NewCachedProvider(next Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *CachedProvider) Get(ctx context.Context, name string) (string, error) {
	if v, ok := c.cache.Get(name); ok {
		return v.(string), nil
	}

	v, err := c.next.Get(ctx, name)
	if err != nil {
		return "", err
	}
	c.cache.SetDefault(name, v)
	return v, nil
}

// Flush drops every cached value, forcing the next Get to refetch.
func (c *CachedProvider) Flush() {
	c.cache.Flush()
}
