package interceptors

import (
	"errors"
	"fmt"
)

// ErrProfileNotFound is returned by Profile for an undefined profile name.
var ErrProfileNotFound = errors.New("profile not found")

// Profiles returns the named profiles under
// [http.interceptors.<interceptor>.profiles]. A missing section yields an
// empty map; a section or profile that is not a table is an error.
func Profiles(interceptorsCfg map[string]map[string]any, interceptor string) (map[string]map[string]any, error) {
	out := make(map[string]map[string]any)

	raw, ok := interceptorsCfg[interceptor]["profiles"]
	if !ok {
		return out, nil
	}
	table, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("http.interceptors.%s.profiles must be a map", interceptor)
	}
	for name, p := range table {
		profile, ok := p.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("http.interceptors.%s.profiles.%s must be a map", interceptor, name)
		}
		out[name] = profile
	}
	return out, nil
}

// Profile returns a copy of one named profile.
func Profile(interceptorsCfg map[string]map[string]any, interceptor, name string) (map[string]any, error) {
	profiles, err := Profiles(interceptorsCfg, interceptor)
	if err != nil {
		return nil, err
	}
	p, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("%s profile %q: %w", interceptor, name, ErrProfileNotFound)
	}
	cp := make(map[string]any, len(p))
	for k, v := range p {
		cp[k] = v
	}
	return cp, nil
}
