// SPDX-License-Identifier: Apache-2.0

// Package synctest provides test doubles for the reconciliation engine's
// collaborator interfaces, adapted from the teacher's
// internal/test.LDAPConnectionDouble ("only accept requests sent while an
// Expect() call is in progress") to the richer ldapclient.Client contract,
// which needs Search/ModifyDN in addition to Add/Modify/Delete.
package synctest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sapcc/ldapsync/internal/ldapclient"
)

// FakeLDAP is an in-memory LDAP directory double. Unlike the teacher's
// strict Expect()-based double, it models actual entry state: the
// Reconciler issues real Add/Modify/ModifyDN/Delete/Search calls against it
// and tests assert on the resulting tree, which is the only way to exercise
// move_object's copy-then-delete recursion end to end.
type FakeLDAP struct {
	mu      sync.Mutex
	entries map[string]ldapclient.Entry
}

var _ ldapclient.Client = (*FakeLDAP)(nil)

// NewFakeLDAP returns an empty directory.
func NewFakeLDAP() *FakeLDAP {
	return &FakeLDAP{entries: map[string]ldapclient.Entry{}}
}

// Seed inserts an entry directly, bypassing Add, for setting up pre-run
// state in tests (e.g. S2/S3's "previous run left this DN behind").
func (f *FakeLDAP) Seed(dn string, attrs map[string][]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[dn] = ldapclient.Entry{DN: dn, Attributes: cloneAttrs(attrs)}
}

// Entries returns a snapshot of every DN currently in the directory, sorted.
func (f *FakeLDAP) Entries() []ldapclient.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ldapclient.Entry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DN < out[j].DN })
	return out
}

// HasDN reports whether dn currently exists.
func (f *FakeLDAP) HasDN(dn string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[dn]
	return ok
}

func (f *FakeLDAP) Exists(ctx context.Context, dn string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[dn]
	return ok, nil
}

func (f *FakeLDAP) Add(ctx context.Context, dn string, classes []string, attrs map[string][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[dn]; ok {
		return fmt.Errorf("%w: %s", errAlreadyExists, dn)
	}
	merged := cloneAttrs(attrs)
	merged["objectClass"] = append([]string(nil), classes...)
	f.entries[dn] = ldapclient.Entry{DN: dn, Attributes: merged}
	return nil
}

func (f *FakeLDAP) Modify(ctx context.Context, dn string, attrs map[string][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[dn]
	if !ok {
		return fmt.Errorf("%w: %s", errNoSuchObject, dn)
	}
	for k, v := range attrs {
		if k == "objectClass" {
			continue
		}
		if len(v) == 0 {
			delete(e.Attributes, k)
		} else {
			e.Attributes[k] = append([]string(nil), v...)
		}
	}
	f.entries[dn] = e
	return nil
}

func (f *FakeLDAP) ModifyDN(ctx context.Context, oldDN, newRDN, newSuperior string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[oldDN]
	if !ok {
		return fmt.Errorf("%w: %s", errNoSuchObject, oldDN)
	}
	newDN := newRDN
	if newSuperior != "" {
		newDN = newRDN + "," + newSuperior
	} else {
		_, parent := splitDN(oldDN)
		newDN = newRDN + "," + parent
	}
	if _, ok := f.entries[newDN]; ok && newDN != oldDN {
		return fmt.Errorf("%w: %s", errAlreadyExists, newDN)
	}
	delete(f.entries, oldDN)
	e.DN = newDN
	f.entries[newDN] = e
	return nil
}

func (f *FakeLDAP) Delete(ctx context.Context, dn string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[dn]; !ok {
		return fmt.Errorf("%w: %s", errNoSuchObject, dn)
	}
	delete(f.entries, dn)
	return nil
}

func (f *FakeLDAP) SearchByFilter(ctx context.Context, base, filter string, scope ldapclient.Scope, attrs []string) ([]ldapclient.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []ldapclient.Entry
	for dn, e := range f.entries {
		switch scope {
		case ldapclient.ScopeBaseObject:
			if dn != base {
				continue
			}
		case ldapclient.ScopeSingleLevel:
			_, parent := splitDN(dn)
			if parent != base {
				continue
			}
		default: // whole subtree
			if dn != base && !strings.HasSuffix(dn, ","+base) {
				continue
			}
		}
		if !matchesFilter(e, filter) {
			continue
		}
		out = append(out, ldapclient.Entry{DN: e.DN, Attributes: cloneAttrs(e.Attributes)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DN < out[j].DN })
	return out, nil
}

func (f *FakeLDAP) SearchUserByUID(ctx context.Context, uid, base string) (string, bool, error) {
	entries, _ := f.SearchByFilter(ctx, base, fmt.Sprintf("(uid=%s)", uid), ldapclient.ScopeWholeSubtree, nil)
	if len(entries) == 0 {
		return "", false, nil
	}
	return entries[0].DN, true, nil
}

func (f *FakeLDAP) FindDepartmentByDescription(ctx context.Context, descSubstring, base string) (string, bool, error) {
	entries, _ := f.SearchByFilter(ctx, base, fmt.Sprintf("(description=*%s*)", descSubstring), ldapclient.ScopeWholeSubtree, nil)
	if len(entries) == 0 {
		return "", false, nil
	}
	return entries[0].DN, true, nil
}

func (f *FakeLDAP) Close() error { return nil }

// matchesFilter understands only the small subset of LDAP filter syntax the
// engine itself emits: (objectClass=*), (objectClass=foo), (description=*),
// (description=*substr*), and the (&(a)(b)) conjunction that ldapclient's
// FindDepartmentByDescription builds.
func matchesFilter(e ldapclient.Entry, filter string) bool {
	filter = strings.TrimSpace(filter)
	if strings.HasPrefix(filter, "(&") && strings.HasSuffix(filter, ")") {
		inner := filter[2 : len(filter)-1]
		for _, clause := range splitClauses(inner) {
			if !matchesFilter(e, clause) {
				return false
			}
		}
		return true
	}
	filter = strings.TrimPrefix(filter, "(")
	filter = strings.TrimSuffix(filter, ")")
	parts := strings.SplitN(filter, "=", 2)
	if len(parts) != 2 {
		return true
	}
	name, pattern := parts[0], parts[1]
	if pattern == "*" {
		return len(e.Attributes[name]) > 0
	}
	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") {
		want := pattern[1 : len(pattern)-1]
		for _, v := range e.Attributes[name] {
			if strings.Contains(v, want) {
				return true
			}
		}
		return false
	}
	for _, v := range e.Attributes[name] {
		if v == pattern {
			return true
		}
	}
	return false
}

func splitClauses(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				out = append(out, s[start:i+1])
				start = i + 1
			}
		}
	}
	return out
}

func splitDN(dn string) (rdn, parent string) {
	idx := strings.Index(dn, ",")
	if idx < 0 {
		return dn, ""
	}
	return dn[:idx], dn[idx+1:]
}

func cloneAttrs(attrs map[string][]string) map[string][]string {
	out := make(map[string][]string, len(attrs))
	for k, v := range attrs {
		out[k] = append([]string(nil), v...)
	}
	return out
}

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

const (
	errAlreadyExists sentinelErr = "already exists"
	errNoSuchObject  sentinelErr = "no such object"
)
