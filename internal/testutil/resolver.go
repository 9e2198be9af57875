package testutil

import (
	"context"
	"strings"
	"sync"

	"go_domainlink/internal/resolver"
)

// FakeResolver serves canned lookup results and counts queries
type FakeResolver struct {
	mu      sync.Mutex
	results map[string]resolver.Result
	calls   map[string]int
}

// NewFakeResolver returns a resolver where every name is NXDOMAIN until set
func NewFakeResolver() *FakeResolver {
	return &FakeResolver{
		results: map[string]resolver.Result{},
		calls:   map[string]int{},
	}
}

func key(qtype, name string) string {
	return qtype + " " + strings.ToLower(strings.TrimSuffix(name, "."))
}

// Set stores values for qtype/name with StatusOK
func (f *FakeResolver) Set(qtype, name string, values ...string) {
	f.SetResult(qtype, name, resolver.Result{Values: values, Status: resolver.StatusOK})
}

// SetResult stores an arbitrary result for qtype/name
func (f *FakeResolver) SetResult(qtype, name string, r resolver.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Values == nil {
		r.Values = []string{}
	}
	f.results[key(qtype, name)] = r
}

// Calls returns how many times qtype/name was queried
func (f *FakeResolver) Calls(qtype, name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key(qtype, name)]
}

func (f *FakeResolver) get(qtype, name string) resolver.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(qtype, name)
	f.calls[k]++
	if r, ok := f.results[k]; ok {
		out := r
		out.Values = append([]string{}, r.Values...)
		return out
	}
	return resolver.Result{Values: []string{}, Status: resolver.StatusNXDomain}
}

func (f *FakeResolver) ResolveNS(_ context.Context, domain string) resolver.Result {
	return f.get("NS", domain)
}

func (f *FakeResolver) ResolveA(_ context.Context, domain string) resolver.Result {
	return f.get("A", domain)
}

func (f *FakeResolver) ResolveMX(_ context.Context, domain string) resolver.Result {
	return f.get("MX", domain)
}

func (f *FakeResolver) ResolveTXT(_ context.Context, name string) resolver.Result {
	return f.get("TXT", name)
}
