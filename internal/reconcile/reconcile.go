// SPDX-License-Identifier: Apache-2.0

// Package reconcile implements the two-phase diff-and-apply algorithm that
// makes a downstream LDAP tree reflect an upstream provider's department and
// user snapshot, preserving object identity across renames and reparenting.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/ldapsync/internal/audit"
	"github.com/sapcc/ldapsync/internal/index"
	"github.com/sapcc/ldapsync/internal/ldapclient"
	"github.com/sapcc/ldapsync/internal/model"
	"github.com/sapcc/ldapsync/internal/provider"
)

// splitDN separates a DN's leading RDN from its parent DN.
func splitDN(dn string) (rdn, parent string) {
	idx := strings.Index(dn, ",")
	if idx < 0 {
		return dn, ""
	}
	return dn[:idx], dn[idx+1:]
}

// Reconciler runs one sync for one SyncConfig: fetch upstream, diff against
// the current LDAP state, apply creates/updates/moves, and report counts.
type Reconciler struct {
	LDAP     ldapclient.Client
	Provider provider.Client
	Audit    audit.Writer
}

// Result summarizes one run's outcome for SyncLog sealing.
type Result struct {
	Success           bool
	UsersSynced       int
	DepartmentsSynced int
}

// Sync executes phase 1 (departments) then phase 2 (users) against cfg,
// recording every decision through r.Audit under logID. It never returns
// past a fatal error without the caller having a definite Result to seal:
// a returned error means a phase could not proceed at all (the base OU could
// not be ensured, the LDAP index scan failed, or the upstream fetch reported
// failure); recoverable per-object failures are recorded as detail rows and
// do not abort the run.
func (r *Reconciler) Sync(ctx context.Context, logID string, cfg model.SyncConfig, baseDN string) (Result, error) {
	var result Result

	deptIdx := index.NewDepartmentIndex()
	if cfg.SyncDepartments {
		var err error
		result.DepartmentsSynced, err = r.reconcileDepartments(ctx, logID, cfg, baseDN, deptIdx)
		if err != nil {
			return result, err
		}
	}

	if cfg.SyncUsers {
		var err error
		result.UsersSynced, err = r.reconcileUsers(ctx, logID, cfg, baseDN, deptIdx)
		if err != nil {
			return result, err
		}
	}

	result.Success = true
	return result, nil
}

func (r *Reconciler) reconcileDepartments(ctx context.Context, logID string, cfg model.SyncConfig, baseDN string, deptIdx *index.DepartmentIndex) (int, error) {
	baseDeptDN := cfg.BaseDepartmentOUDN(baseDN)
	if err := ensureOU(ctx, r.LDAP, baseDeptDN, cfg.DepartmentOU); err != nil {
		return 0, &model.TransportError{Op: "ensure base department OU", Err: err}
	}

	existing, err := index.BuildDepartmentIndex(ctx, r.LDAP, baseDN, cfg.Provider)
	if err != nil {
		return 0, err
	}

	depts, ok, err := r.Provider.GetDepartments(ctx)
	if !ok {
		return 0, &model.TransportError{Op: "fetch upstream departments", Err: err}
	}

	sort.Slice(depts, func(i, j int) bool { return depts[i].ExtID < depts[j].ExtID })

	processed := 0
	for _, d := range depts {
		r.reconcileOneDepartment(ctx, logID, cfg, baseDeptDN, d, existing, deptIdx)
		processed++
	}
	return processed, nil
}

func (r *Reconciler) reconcileOneDepartment(ctx context.Context, logID string, cfg model.SyncConfig, baseDeptDN string, d model.UpstreamDepartment, existing, deptIdx *index.DepartmentIndex) {
	parentDN := baseDeptDN
	if d.ParentExtID != "" {
		if parent, ok := deptIdx.Get(d.ParentExtID); ok {
			parentDN = parent.LDAPDN
		}
		// else: forward reference - attach at base OU, per spec section 4.D tie-breaks.
	}
	targetDN := fmt.Sprintf("ou=%s,%s", d.Name, parentDN)
	tag := index.DepartmentIdentityTag(cfg.Provider, d.ExtID)

	priorEntry, known := existing.Get(d.ExtID)
	if !known {
		err := r.LDAP.Add(ctx, targetDN, []string{"top", "organizationalUnit"}, map[string][]string{
			"ou":          {d.Name},
			"description": {tag},
		})
		if err != nil {
			logg.Error("department %s: create at %s failed: %s", d.ExtID, targetDN, err.Error())
			r.record(ctx, logID, model.SyncLogDetail{
				ObjectType: model.ObjectDepartment, Action: model.ActionError,
				ObjectID: d.ExtID, ObjectName: d.Name, Details: err.Error(),
			})
			return
		}
		deptIdx.Put(index.DepartmentEntry{ExtID: d.ExtID, LDAPDN: targetDN, Name: d.Name, ParentExtID: d.ParentExtID})
		r.record(ctx, logID, model.SyncLogDetail{
			ObjectType: model.ObjectDepartment, Action: model.ActionCreate,
			ObjectID: d.ExtID, ObjectName: d.Name,
			NewData: map[string]string{"dn": targetDN, "parent_ext_id": d.ParentExtID},
		})
		return
	}

	_, priorParentDN := splitDN(priorEntry.LDAPDN)
	nameChanged := priorEntry.Name != d.Name
	reparented := priorParentDN != parentDN
	dnChanged := priorEntry.LDAPDN != targetDN
	if !nameChanged && !reparented {
		deptIdx.Put(index.DepartmentEntry{ExtID: d.ExtID, LDAPDN: priorEntry.LDAPDN, Name: d.Name, ParentExtID: d.ParentExtID})
		return
	}

	if nameChanged {
		r.record(ctx, logID, model.SyncLogDetail{
			ObjectType: model.ObjectDepartment, Action: model.ActionUpdate,
			ObjectID: d.ExtID, ObjectName: d.Name,
			OldData: map[string]string{"name": priorEntry.Name},
			NewData: map[string]string{"name": d.Name},
		})
	}
	if reparented {
		r.record(ctx, logID, model.SyncLogDetail{
			ObjectType: model.ObjectDepartment, Action: model.ActionMove,
			ObjectID: d.ExtID, ObjectName: d.Name,
			OldData: map[string]string{"parent_dn": priorParentDN},
			NewData: map[string]string{"parent_dn": parentDN},
		})
	}

	finalDN := priorEntry.LDAPDN
	if dnChanged {
		if err := ldapclient.MoveObject(ctx, r.LDAP, priorEntry.LDAPDN, targetDN); err != nil {
			logg.Error("department %s: move %s to %s failed: %s", d.ExtID, priorEntry.LDAPDN, targetDN, err.Error())
			r.record(ctx, logID, model.SyncLogDetail{
				ObjectType: model.ObjectDepartment, Action: model.ActionError,
				ObjectID: d.ExtID, ObjectName: d.Name, Details: err.Error(),
			})
		} else {
			finalDN = targetDN
		}
	}

	if err := r.LDAP.Modify(ctx, finalDN, map[string][]string{"ou": {d.Name}, "description": {index.DepartmentIdentityTag(cfg.Provider, d.ExtID)}}); err != nil {
		logg.Error("department %s: attribute update at %s failed: %s", d.ExtID, finalDN, err.Error())
	}

	deptIdx.Put(index.DepartmentEntry{ExtID: d.ExtID, LDAPDN: finalDN, Name: d.Name, ParentExtID: d.ParentExtID})
}

func (r *Reconciler) reconcileUsers(ctx context.Context, logID string, cfg model.SyncConfig, baseDN string, deptIdx *index.DepartmentIndex) (int, error) {
	baseUserDN := cfg.BaseUserOUDN(baseDN)
	if err := ensureOU(ctx, r.LDAP, baseUserDN, cfg.UserOU); err != nil {
		return 0, &model.TransportError{Op: "ensure base user OU", Err: err}
	}

	existing, err := index.BuildUserIndex(ctx, r.LDAP, baseDN, cfg.Provider)
	if err != nil {
		return 0, err
	}

	users, ok, err := r.Provider.GetUsers(ctx)
	if !ok {
		return 0, &model.TransportError{Op: "fetch upstream users", Err: err}
	}

	processed := 0
	for _, u := range users {
		r.reconcileOneUser(ctx, logID, cfg, baseUserDN, u, existing, deptIdx)
		processed++
	}
	return processed, nil
}

func (r *Reconciler) reconcileOneUser(ctx context.Context, logID string, cfg model.SyncConfig, baseUserDN string, u model.UpstreamUser, existing *index.UserIndex, deptIdx *index.DepartmentIndex) {
	primaryDN := baseUserDN
	for _, extID := range u.DepartmentExtIDs {
		if d, ok := deptIdx.Get(extID); ok {
			primaryDN = d.LDAPDN
			break
		}
	}
	targetDN := fmt.Sprintf("uid=%s,%s", u.ExtID, primaryDN)
	tag := index.UserIdentityTag(cfg.Provider, u.ExtID)

	attrs := map[string][]string{
		"uid":            {u.ExtID},
		"cn":             {u.Name},
		"sn":             {u.Name},
		"employeeNumber": {u.ExtID},
		"description":    {tag},
	}
	if u.Email != "" {
		attrs["mail"] = []string{u.Email}
	}
	if u.Mobile != "" {
		attrs["telephoneNumber"] = []string{u.Mobile}
	}

	priorEntry, known := existing.Get(u.ExtID)
	if !known {
		if err := ldapclient.CreateUser(r.LDAP, ctx, targetDN, attrs); err != nil {
			logg.Error("user %s: create at %s failed: %s", u.ExtID, targetDN, err.Error())
			r.record(ctx, logID, model.SyncLogDetail{
				ObjectType: model.ObjectUser, Action: model.ActionError,
				ObjectID: u.ExtID, ObjectName: u.Name, Details: err.Error(),
			})
			return
		}
		existing.Put(index.UserEntry{ExtID: u.ExtID, LDAPDN: targetDN, Attrs: map[string]string{
			"cn": u.Name, "mail": u.Email, "telephoneNumber": u.Mobile,
		}})
		r.record(ctx, logID, model.SyncLogDetail{
			ObjectType: model.ObjectUser, Action: model.ActionCreate,
			ObjectID: u.ExtID, ObjectName: u.Name,
			NewData: map[string]string{"dn": targetDN},
		})
		return
	}

	changed := map[string]string{}
	oldValues := map[string]string{}
	for _, field := range []string{"cn", "mail", "telephoneNumber"} {
		newVal := attrValue(attrs, field)
		if priorEntry.Attrs[field] != newVal {
			changed[field] = newVal
			oldValues[field] = priorEntry.Attrs[field]
		}
	}
	dnChanged := priorEntry.LDAPDN != targetDN

	if len(changed) > 0 {
		r.record(ctx, logID, model.SyncLogDetail{
			ObjectType: model.ObjectUser, Action: model.ActionUpdate,
			ObjectID: u.ExtID, ObjectName: u.Name,
			OldData: oldValues, NewData: changed,
		})
	}
	if dnChanged {
		r.record(ctx, logID, model.SyncLogDetail{
			ObjectType: model.ObjectUser, Action: model.ActionMove,
			ObjectID: u.ExtID, ObjectName: u.Name,
			OldData: map[string]string{"dn": priorEntry.LDAPDN},
			NewData: map[string]string{"dn": targetDN},
		})
	}

	finalDN := priorEntry.LDAPDN
	if dnChanged {
		if err := ldapclient.MoveObject(ctx, r.LDAP, priorEntry.LDAPDN, targetDN); err != nil {
			logg.Error("user %s: move %s to %s failed: %s", u.ExtID, priorEntry.LDAPDN, targetDN, err.Error())
			r.record(ctx, logID, model.SyncLogDetail{
				ObjectType: model.ObjectUser, Action: model.ActionError,
				ObjectID: u.ExtID, ObjectName: u.Name, Details: err.Error(),
			})
		} else {
			finalDN = targetDN
		}
	}

	if len(changed) > 0 || dnChanged {
		if err := r.LDAP.Modify(ctx, finalDN, attrs); err != nil {
			logg.Error("user %s: attribute update at %s failed: %s", u.ExtID, finalDN, err.Error())
		}
	}

	existing.Put(index.UserEntry{ExtID: u.ExtID, LDAPDN: finalDN, Attrs: map[string]string{
		"cn": u.Name, "mail": u.Email, "telephoneNumber": u.Mobile,
	}})
}

func attrValue(attrs map[string][]string, name string) string {
	vals := attrs[name]
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func (r *Reconciler) record(ctx context.Context, logID string, detail model.SyncLogDetail) {
	if err := r.Audit.Record(ctx, logID, detail); err != nil {
		logg.Error("audit: could not record %s detail for %s: %s", detail.Action, detail.ObjectID, err.Error())
	}
}

// ensureOU creates the base OU for a sync target (department_ou/user_ou
// under base_dn) if it does not already exist.
func ensureOU(ctx context.Context, c ldapclient.Client, dn, ouName string) error {
	exists, err := c.Exists(ctx, dn)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	err = c.Add(ctx, dn, []string{"top", "organizationalUnit"}, map[string][]string{"ou": {ouName}})
	if err != nil && !ldapclient.IsAlreadyExists(err) {
		return err
	}
	return nil
}
