// SPDX-License-Identifier: Apache-2.0

package model

import "fmt"

// ConfigError wraps a problem found in a SyncConfig or LDAPConfig before any
// LDAP mutation has been attempted. A run that fails with a ConfigError is
// sealed success=false before touching LDAP at all.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Reason
}

// TransportError wraps a failure to reach the LDAP server or an upstream
// provider's HTTP API. A TransportError on the initial connect aborts the
// whole run; a TransportError on an individual in-run operation is recovered
// locally by the Reconciler and logged as a (system, error) detail.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %s", e.Op, e.Err.Error())
}

func (e *TransportError) Unwrap() error { return e.Err }

// ItemError wraps the failure of a single add/modify/move decision for one
// object. It does not abort the run; the Reconciler records it as a detail
// row and continues with the next object.
type ItemError struct {
	DN  string
	Err error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("could not apply change to %s: %s", e.DN, e.Err.Error())
}

func (e *ItemError) Unwrap() error { return e.Err }

// SchemaError wraps the case where every object class combination in the
// cascading strategy failed to create a user entry. It is always reported
// to the caller wrapped as an ItemError for the affected object.
type SchemaError struct {
	Attempted []string
	LastErr   error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("no object class combination succeeded (tried %v): %s", e.Attempted, e.LastErr.Error())
}

func (e *SchemaError) Unwrap() error { return e.LastErr }

// LogicError wraps a condition arising from the shape of the upstream data
// itself rather than from a transport failure: a duplicate RDN collision, or
// a department whose parent could not be resolved in this run.
type LogicError struct {
	Reason string
}

func (e *LogicError) Error() string {
	return "logic error: " + e.Reason
}
