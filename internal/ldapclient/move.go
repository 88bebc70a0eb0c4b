// SPDX-License-Identifier: Apache-2.0

package ldapclient

import (
	"context"
	"fmt"
	"strings"
)

// MoveObject relocates the entry at oldDN to newDN, following the
// move_object protocol from spec section 4.A:
//
//  1. if the parent is unchanged, attempt a pure RDN rename;
//  2. else attempt ModifyDN with a new superior;
//  3. if both fail, fall back to copy-then-delete: search the source entry,
//     add an equivalent entry at the destination (carrying the original
//     object classes and all non-objectClass attributes), recursively move
//     each immediate child, then delete the source.
//
// The fallback refuses to run if the destination already exists.
func MoveObject(ctx context.Context, c Client, oldDN, newDN string) error {
	oldRDN, oldParent := splitDN(oldDN)
	newRDN, newParent := splitDN(newDN)

	if oldParent == newParent {
		if err := c.ModifyDN(ctx, oldDN, newRDN, ""); err == nil {
			return nil
		}
	} else {
		if err := c.ModifyDN(ctx, oldDN, newRDN, newParent); err == nil {
			return nil
		}
	}

	return copyThenDelete(ctx, c, oldDN, newDN, oldRDN, newRDN)
}

func copyThenDelete(ctx context.Context, c Client, oldDN, newDN, oldRDN, newRDN string) error {
	exists, err := c.Exists(ctx, newDN)
	if err != nil {
		return fmt.Errorf("move %s to %s: cannot check destination: %w", oldDN, newDN, err)
	}
	if exists {
		return fmt.Errorf("move %s to %s: refusing copy-then-delete, destination already exists", oldDN, newDN)
	}

	entries, err := c.SearchByFilter(ctx, oldDN, "(objectClass=*)", ScopeBaseObject, nil)
	if err != nil {
		return fmt.Errorf("move %s to %s: cannot read source entry: %w", oldDN, newDN, err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("move %s to %s: source entry vanished mid-move", oldDN, newDN)
	}
	source := entries[0]

	classes := source.Attributes["objectClass"]
	attrs := make(map[string][]string, len(source.Attributes))
	for name, values := range source.Attributes {
		if name == "objectClass" {
			continue
		}
		attrs[name] = values
	}
	applyRDNAttr(attrs, newRDN)

	if err := c.Add(ctx, newDN, classes, attrs); err != nil {
		return fmt.Errorf("move %s to %s: cannot create copy: %w", oldDN, newDN, err)
	}

	children, err := c.SearchByFilter(ctx, oldDN, "(objectClass=*)", ScopeSingleLevel, nil)
	if err != nil {
		return fmt.Errorf("move %s to %s: cannot enumerate children: %w", oldDN, newDN, err)
	}
	for _, child := range children {
		childRDN, _ := splitDN(child.DN)
		childNewDN := childRDN + "," + newDN
		if err := copyThenDelete(ctx, c, child.DN, childNewDN, childRDN, childRDN); err != nil {
			return err
		}
	}

	if err := c.Delete(ctx, oldDN); err != nil {
		return fmt.Errorf("move %s to %s: copy succeeded but source delete failed: %w", oldDN, newDN, err)
	}
	return nil
}

// splitDN separates a DN's leading RDN from its parent DN. It is a
// string-level split on the first unescaped comma, sufficient for the
// well-formed DNs the engine itself constructs.
func splitDN(dn string) (rdn, parent string) {
	for i := 0; i < len(dn); i++ {
		switch dn[i] {
		case '\\':
			i++ // skip the escaped character
		case ',':
			return dn[:i], dn[i+1:]
		}
	}
	return dn, ""
}

// applyRDNAttr sets the attribute named by newRDN's type to its value, so the
// copied entry's naming attribute matches its new RDN.
func applyRDNAttr(attrs map[string][]string, rdn string) {
	parts := strings.SplitN(rdn, "=", 2)
	if len(parts) != 2 {
		return
	}
	attrs[parts[0]] = []string{parts[1]}
}
