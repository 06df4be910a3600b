package loader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/dt-pm-tools/jira-loader/internal/config"
)

// DefaultBackend is used when no backend is named.
const DefaultBackend = "rest"

// ErrBackendUnavailable is returned when the requested tracker backend has
// not been registered with this binary.
var ErrBackendUnavailable = errors.New("tracker backend unavailable")

// Credentials identify a Jira account. Empty fields are resolved from the
// environment.
type Credentials struct {
	ServerURL string
	Username  string
	APIToken  string
}

// ResolveCredentials fills each empty field of creds from its environment
// variable. It fails on the first field that is still empty.
func ResolveCredentials(creds Credentials, lookup config.LookupFunc) (Credentials, error) {
	var err error
	if creds.ServerURL, err = config.Resolve("server URL", creds.ServerURL, config.EnvServerURL, lookup); err != nil {
		return Credentials{}, err
	}
	if creds.Username, err = config.Resolve("username", creds.Username, config.EnvUsername, lookup); err != nil {
		return Credentials{}, err
	}
	if creds.APIToken, err = config.Resolve("API token", creds.APIToken, config.EnvAPIToken, lookup); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// DialParams are handed to a backend when building a client.
type DialParams struct {
	Credentials Credentials
	// APIVersion selects the Jira REST API version (2 or 3).
	APIVersion int
	// HTTPClient, when set, replaces the backend's default HTTP client.
	HTTPClient *http.Client
}

// Dialer builds an authenticated Searcher.
type Dialer func(ctx context.Context, p DialParams) (Searcher, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Dialer)
)

// RegisterBackend makes a backend available by name. It panics if the name
// is registered twice.
func RegisterBackend(name string, dial Dialer) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if dial == nil {
		panic("loader: RegisterBackend dialer is nil")
	}
	if _, dup := backends[name]; dup {
		panic("loader: RegisterBackend called twice for " + name)
	}
	backends[name] = dial
}

// Backends lists the registered backend names in sorted order.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	return keys(backends)
}

func lookupBackend(name string) (Dialer, error) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	dial, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrBackendUnavailable, name, keys(backends))
	}
	return dial, nil
}

func keys(m map[string]Dialer) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type dialSettings struct {
	lookup     config.LookupFunc
	backend    string
	apiVersion int
	verify     bool
	httpClient *http.Client
	loaderOpts []Option
}

// DialOption configures FromCredentials.
type DialOption func(*dialSettings)

// WithEnv replaces the process environment as the credential fallback.
func WithEnv(lookup config.LookupFunc) DialOption {
	return func(s *dialSettings) { s.lookup = lookup }
}

// WithBackend selects a registered backend by name.
func WithBackend(name string) DialOption {
	return func(s *dialSettings) {
		if name != "" {
			s.backend = name
		}
	}
}

// WithAPIVersion selects the Jira REST API version.
func WithAPIVersion(v int) DialOption {
	return func(s *dialSettings) { s.apiVersion = v }
}

// WithVerify checks the credentials against the tracker before returning.
func WithVerify(verify bool) DialOption {
	return func(s *dialSettings) { s.verify = verify }
}

// WithHTTPClient sets the HTTP client handed to the backend.
func WithHTTPClient(hc *http.Client) DialOption {
	return func(s *dialSettings) { s.httpClient = hc }
}

// WithLoaderOptions passes options through to New.
func WithLoaderOptions(opts ...Option) DialOption {
	return func(s *dialSettings) { s.loaderOpts = append(s.loaderOpts, opts...) }
}

// FromCredentials resolves credentials, builds a client with the selected
// backend and returns a Loader for jql. Credential resolution happens
// before any network traffic; an unresolved field yields a
// *config.MissingFieldError.
func FromCredentials(ctx context.Context, jql string, creds Credentials, opts ...DialOption) (*Loader, error) {
	s := dialSettings{
		lookup:  config.OSLookup,
		backend: DefaultBackend,
	}
	for _, opt := range opts {
		opt(&s)
	}

	dial, err := lookupBackend(s.backend)
	if err != nil {
		return nil, err
	}

	resolved, err := ResolveCredentials(creds, s.lookup)
	if err != nil {
		return nil, err
	}

	client, err := dial(ctx, DialParams{
		Credentials: resolved,
		APIVersion:  s.apiVersion,
		HTTPClient:  s.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", s.backend, err)
	}

	if s.verify {
		v, ok := client.(Verifier)
		if !ok {
			return nil, fmt.Errorf("%s backend cannot verify credentials", s.backend)
		}
		if _, err := v.Myself(ctx); err != nil {
			return nil, fmt.Errorf("verifying credentials for %s: %w", resolved.ServerURL, err)
		}
	}

	return New(client, jql, s.loaderOpts...), nil
}
