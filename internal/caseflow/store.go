package caseflow

import "context"

// Store is the checkpoint persistence interface. The workflow calls Save at
// every suspension and terminal stage; Resume and Get call Load. For a given
// case ID a completed Save must be visible to any subsequent Load.
type Store interface {
	Save(ctx context.Context, st *State) error
	Load(ctx context.Context, id string) (*State, bool, error)
}
