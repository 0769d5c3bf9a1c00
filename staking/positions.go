package staking

import (
	"github.com/pkg/errors"

	"github.com/tolelom/tolstake/core"
)

// PositionStore is the durable identity → StakingPosition mapping. It does no
// validation; the settlement code keeps it consistent with ActiveSet.
type PositionStore struct {
	state core.State
}

// NewPositionStore returns a PositionStore over state.
func NewPositionStore(state core.State) *PositionStore {
	return &PositionStore{state: state}
}

// Get returns the stored position for id, or ok=false if there is none.
func (s *PositionStore) Get(id string) (pos *core.StakingPosition, ok bool, err error) {
	pos, err = s.state.GetPosition(id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get position %s", id)
	}
	return pos, true, nil
}

// Set stores pos under id.
func (s *PositionStore) Set(id string, pos *core.StakingPosition) error {
	return s.state.SetPosition(id, pos)
}

// Remove deletes the position for id.
func (s *PositionStore) Remove(id string) error {
	return s.state.DeletePosition(id)
}

// ActiveSet is the set of identities that hold an open position.
type ActiveSet struct {
	state core.State
}

// NewActiveSet returns an ActiveSet over state.
func NewActiveSet(state core.State) *ActiveSet {
	return &ActiveSet{state: state}
}

// Contains reports whether id is a member.
func (a *ActiveSet) Contains(id string) (bool, error) {
	return a.state.IsActive(id)
}

// Insert adds id and reports whether it was newly inserted.
func (a *ActiveSet) Insert(id string) (bool, error) {
	present, err := a.state.IsActive(id)
	if err != nil {
		return false, err
	}
	if present {
		return false, nil
	}
	return true, a.state.AddActive(id)
}

// Remove drops id from the set.
func (a *ActiveSet) Remove(id string) error {
	return a.state.RemoveActive(id)
}

// Members lists every identity in the set.
func (a *ActiveSet) Members() ([]string, error) {
	return a.state.ActiveAddresses()
}
