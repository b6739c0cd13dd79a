package awsx

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/xtxerr/netpulse/internal/logging"
)

var log = logging.Component("awsx")

// SSMAPI is the subset of the SSM client used by ParamStore.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// ParamStore looks up remote parameters with an explicit in-process
// memoizing cache. Values never change within one process lifetime, so
// there is no invalidation; ResetCache exists for test isolation.
type ParamStore struct {
	api SSMAPI

	mu     sync.Mutex
	values map[string]string
	trees  map[string]map[string]any
}

// NewParamStore creates a ParamStore over a real SSM client.
func NewParamStore(cfg aws.Config) *ParamStore {
	return NewParamStoreWithClient(ssm.NewFromConfig(cfg))
}

// NewParamStoreWithClient creates a ParamStore over an injected client.
func NewParamStoreWithClient(api SSMAPI) *ParamStore {
	return &ParamStore{
		api:    api,
		values: make(map[string]string),
		trees:  make(map[string]map[string]any),
	}
}

// GetParameter returns a single decrypted parameter value, memoized
// by name.
func (p *ParamStore) GetParameter(ctx context.Context, name string) (string, error) {
	p.mu.Lock()
	if v, ok := p.values[name]; ok {
		p.mu.Unlock()
		return v, nil
	}
	p.mu.Unlock()

	out, err := p.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", name, err)
	}

	v := aws.ToString(out.Parameter.Value)

	p.mu.Lock()
	p.values[name] = v
	p.mu.Unlock()

	log.Debug("parameter fetched", "name", name)
	return v, nil
}

// GetParameters reads a batch of parameters and returns them keyed by
// their last path segment. Missing names are a hard error: callers use
// this for required application configuration.
func (p *ParamStore) GetParameters(ctx context.Context, names ...string) (map[string]string, error) {
	out, err := p.api.GetParameters(ctx, &ssm.GetParametersInput{
		Names:          names,
		WithDecryption: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("get parameters: %w", err)
	}
	if len(out.InvalidParameters) > 0 {
		return nil, fmt.Errorf("missing required parameters: %s", strings.Join(out.InvalidParameters, ", "))
	}

	result := make(map[string]string, len(out.Parameters))
	for _, param := range out.Parameters {
		name := aws.ToString(param.Name)
		key := name
		if i := strings.LastIndexByte(name, '/'); i >= 0 {
			key = name[i+1:]
		}
		result[key] = aws.ToString(param.Value)
	}
	return result, nil
}

// GetParametersByPath recursively reads every parameter under a prefix
// and reconstructs a nested map from the /-delimited suffixes. Results
// are memoized by prefix.
func (p *ParamStore) GetParametersByPath(ctx context.Context, path string) (map[string]any, error) {
	prefix := strings.TrimRight(path, "/")

	p.mu.Lock()
	if tree, ok := p.trees[prefix]; ok {
		p.mu.Unlock()
		return tree, nil
	}
	p.mu.Unlock()

	result := make(map[string]any)

	paginator := ssm.NewGetParametersByPathPaginator(p.api, &ssm.GetParametersByPathInput{
		Path:           aws.String(prefix),
		Recursive:      aws.Bool(true),
		WithDecryption: aws.Bool(true),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("get parameters by path %s: %w", prefix, err)
		}
		for _, param := range page.Parameters {
			relative := strings.TrimPrefix(aws.ToString(param.Name), prefix)
			relative = strings.TrimLeft(relative, "/")
			setNested(result, strings.Split(relative, "/"), aws.ToString(param.Value))
		}
	}

	p.mu.Lock()
	p.trees[prefix] = result
	p.mu.Unlock()

	return result, nil
}

// ResetCache clears all memoized lookups.
func (p *ParamStore) ResetCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = make(map[string]string)
	p.trees = make(map[string]map[string]any)
}

func setNested(m map[string]any, keys []string, value string) {
	for _, key := range keys[:len(keys)-1] {
		child, ok := m[key].(map[string]any)
		if !ok {
			child = make(map[string]any)
			m[key] = child
		}
		m = child
	}
	m[keys[len(keys)-1]] = value
}
