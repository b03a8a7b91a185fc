package util

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/demesne/go-demesne-server/types"
)

// DiffOperations computes what current changed relative to previous.
// previous is nil for the genesis record.
func DiffOperations(current *types.AuditRecord, previous *types.AuditRecord) *types.ChangeSet {
	op := &current.Operation
	if previous == nil {
		return &types.ChangeSet{Genesis: true, Initial: op}
	}
	prev := &previous.Operation
	if prev.Type != types.OperationTypePlc {
		return &types.ChangeSet{
			Inconsistent: fmt.Sprintf("previous operation %s is %s, not %s", previous.CID, prev.Type, types.OperationTypePlc),
		}
	}

	switch op.Type {
	case types.OperationTypeTombstone:
		return &types.ChangeSet{Tombstone: true}
	case types.OperationTypePlc:
	default:
		return &types.ChangeSet{
			Inconsistent: fmt.Sprintf("operation %s of type %s has a predecessor", current.CID, op.Type),
		}
	}

	changes := &types.ChangeSet{
		AddedKeys:   difference(op.RotationKeys, prev.RotationKeys),
		RemovedKeys: difference(prev.RotationKeys, op.RotationKeys),
	}
	// only the primary alias is compared
	if op.PrimaryAlias() != prev.PrimaryAlias() {
		changes.HandleChange = &types.HandleChange{From: prev.PrimaryAlias(), To: op.PrimaryAlias()}
	}
	if !reflect.DeepEqual(prev.Services, op.Services) {
		changes.ServicesChanged = true
		changes.Services = op.Services
	}
	return changes
}

// difference returns the elements of a not present in b, in order of a
func difference(a, b []string) []string {
	var out []string
	for _, v := range a {
		if !slices.Contains(b, v) {
			out = append(out, v)
		}
	}
	return out
}
