package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"github.com/proxyops/certsyncd/pkg/common/iface"
)

// api is the subset of the Secrets Manager client the source needs. Narrowed
// for testability.
type api interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
}

// secretPayload is the JSON document stored per certificate secret.
type secretPayload struct {
	Certificate      string `json:"certificate"`
	PrivateKey       string `json:"private_key"`
	CertificateChain string `json:"certificate_chain"`
	DomainName       string `json:"domain_name"`
	Description      string `json:"description"`
}

// ManagerSource implements Source against AWS Secrets Manager.
type ManagerSource struct {
	client  api
	timeout time.Duration
	log     iface.Logger
}

// NewManagerSource creates a Secrets Manager backed source using the default
// AWS credential chain (env, shared config, instance role).
func NewManagerSource(ctx context.Context, region string, timeout time.Duration, log iface.Logger) (*ManagerSource, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Debug("initialized Secrets Manager client for region %s", region)
	return &ManagerSource{
		client:  secretsmanager.NewFromConfig(cfg),
		timeout: timeout,
		log:     log,
	}, nil
}

// FetchByNames retrieves the given secrets one by one. A failing item is
// recorded and the rest of the batch proceeds; only cancellation of the parent
// context aborts the whole fetch.
func (s *ManagerSource) FetchByNames(ctx context.Context, names []string) (Result, error) {
	var res Result
	for _, name := range names {
		rec, failure, err := s.fetchOne(ctx, name)
		if err != nil {
			return Result{}, err
		}
		if failure != nil {
			res.Failures = append(res.Failures, *failure)
			continue
		}
		res.Records = append(res.Records, *rec)
	}
	return res, nil
}

// FetchByTag lists all secrets, filters for the exact tag pair, and fetches
// each match. The listing itself failing is a wholesale failure.
func (s *ManagerSource) FetchByTag(ctx context.Context, key, value string) (Result, error) {
	entries, err := s.listAll(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list secrets: %w", err)
	}

	var res Result
	for _, entry := range entries {
		if !hasTag(entry.Tags, key, value) {
			continue
		}
		name := aws.ToString(entry.Name)
		rec, failure, err := s.fetchOne(ctx, name)
		if err != nil {
			return Result{}, err
		}
		if failure != nil {
			res.Failures = append(res.Failures, *failure)
			continue
		}
		res.Records = append(res.Records, *rec)
	}

	s.log.Debug("tag discovery %s=%s matched %d secrets", key, value, len(res.Records)+len(res.Failures))
	return res, nil
}

// List returns metadata for every secret in the store.
func (s *ManagerSource) List(ctx context.Context) ([]SecretInfo, error) {
	entries, err := s.listAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}

	infos := make([]SecretInfo, 0, len(entries))
	for _, entry := range entries {
		infos = append(infos, SecretInfo{
			Name:            aws.ToString(entry.Name),
			ARN:             aws.ToString(entry.ARN),
			Description:     aws.ToString(entry.Description),
			CreatedDate:     entry.CreatedDate,
			LastChangedDate: entry.LastChangedDate,
			Tags:            tagMap(entry.Tags),
		})
	}
	return infos, nil
}

// Describe returns metadata for the named secrets. Missing secrets are logged
// and skipped rather than failing the call.
func (s *ManagerSource) Describe(ctx context.Context, names []string) ([]SecretInfo, error) {
	infos := make([]SecretInfo, 0, len(names))
	for _, name := range names {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		out, err := s.client.DescribeSecret(callCtx, &secretsmanager.DescribeSecretInput{
			SecretId: aws.String(name),
		})
		cancel()
		if err != nil {
			if isNotFound(err) {
				s.log.Warn("secret not found: %s", name)
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to describe secret %s: %w", name, err)
		}
		infos = append(infos, SecretInfo{
			Name:            aws.ToString(out.Name),
			ARN:             aws.ToString(out.ARN),
			Description:     aws.ToString(out.Description),
			CreatedDate:     out.CreatedDate,
			LastChangedDate: out.LastChangedDate,
			Tags:            tagMap(out.Tags),
		})
	}
	return infos, nil
}

// fetchOne retrieves and decodes a single secret. The returned error is
// reserved for wholesale conditions: parent context cancellation, or the
// bounded per-call deadline firing, which means the store is unreachable
// rather than this one secret being bad. Everything else becomes a per-item
// failure.
func (s *ManagerSource) fetchOne(ctx context.Context, name string) (*Record, *FetchFailure, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.GetSecretValue(callCtx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("fetch aborted: %w", ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("fetch timed out for secret %s: %w", name, err)
		}
		return nil, classifyFetchError(name, err), nil
	}

	secretString := aws.ToString(out.SecretString)
	if secretString == "" {
		return nil, &FetchFailure{Name: name, Reason: ReasonEmptySecret, Detail: "secret has no SecretString"}, nil
	}

	var payload secretPayload
	if err := json.Unmarshal([]byte(secretString), &payload); err != nil {
		return nil, &FetchFailure{Name: name, Reason: ReasonMalformedJSON, Detail: err.Error()}, nil
	}

	rec := Record{
		Name:           name,
		CertificatePEM: payload.Certificate,
		PrivateKeyPEM:  payload.PrivateKey,
		ChainPEM:       payload.CertificateChain,
		DomainName:     payload.DomainName,
		Description:    payload.Description,
	}
	if err := rec.Validate(); err != nil {
		reason := ReasonMalformedPEM
		if errors.Is(err, ErrMissingField) {
			reason = ReasonMissingField
		}
		return nil, &FetchFailure{Name: name, Reason: reason, Detail: err.Error()}, nil
	}

	return &rec, nil, nil
}

// listAll pages through ListSecrets until the store is exhausted.
func (s *ManagerSource) listAll(ctx context.Context) ([]types.SecretListEntry, error) {
	var entries []types.SecretListEntry
	var next *string
	for {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		out, err := s.client.ListSecrets(callCtx, &secretsmanager.ListSecretsInput{
			NextToken: next,
		})
		cancel()
		if err != nil {
			return nil, err
		}
		entries = append(entries, out.SecretList...)
		if out.NextToken == nil {
			return entries, nil
		}
		next = out.NextToken
	}
}

func classifyFetchError(name string, err error) *FetchFailure {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return &FetchFailure{Name: name, Reason: ReasonNotFound, Detail: err.Error()}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "AccessDeniedException" {
		return &FetchFailure{Name: name, Reason: ReasonAccessDenied, Detail: err.Error()}
	}

	return &FetchFailure{Name: name, Reason: ReasonFetchError, Detail: err.Error()}
}

func isNotFound(err error) bool {
	var notFound *types.ResourceNotFoundException
	return errors.As(err, &notFound)
}

func hasTag(tags []types.Tag, key, value string) bool {
	for _, tag := range tags {
		if aws.ToString(tag.Key) == key && aws.ToString(tag.Value) == value {
			return true
		}
	}
	return false
}

func tagMap(tags []types.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	m := make(map[string]string, len(tags))
	for _, tag := range tags {
		m[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return m
}
