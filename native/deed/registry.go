package deed

import (
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	errNilState = errors.New("deed registry: state not configured")

	// ErrAlreadyMinted rejects a second mint of the same asset.
	ErrAlreadyMinted = errors.New("deed: asset already minted")

	// ErrNotMinted is returned when the asset has no holder yet.
	ErrNotMinted = errors.New("deed: asset not minted")

	// ErrNotHolder rejects a transfer whose from address does not hold the
	// asset.
	ErrNotHolder = errors.New("deed: from address is not the holder")
)

// registryState is the persistence surface the registry requires.
type registryState interface {
	DeedHolder(assetID [32]byte) ([20]byte, bool, error)
	DeedSetHolder(assetID [32]byte, holder [20]byte) error
}

// Registry tracks ownership of unique deed tokens. Each asset has exactly
// one holder at any time; a transfer is a single atomic holder swap with no
// intermediate state.
type Registry struct {
	state registryState
}

func NewRegistry(state registryState) *Registry {
	return &Registry{state: state}
}

// Mint creates the asset and assigns its first holder. It may be called at
// most once per asset.
func (r *Registry) Mint(to [20]byte, assetID [32]byte) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	_, minted, err := r.state.DeedHolder(assetID)
	if err != nil {
		return err
	}
	if minted {
		return fmt.Errorf("%w: %s", ErrAlreadyMinted, hex.EncodeToString(assetID[:]))
	}
	return r.state.DeedSetHolder(assetID, to)
}

// Transfer moves the asset from its current holder to a new one. It fails
// if from is not the current holder.
func (r *Registry) Transfer(from, to [20]byte, assetID [32]byte) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	holder, minted, err := r.state.DeedHolder(assetID)
	if err != nil {
		return err
	}
	if !minted {
		return ErrNotMinted
	}
	if holder != from {
		return ErrNotHolder
	}
	return r.state.DeedSetHolder(assetID, to)
}

// HolderOf returns the current holder of the asset.
func (r *Registry) HolderOf(assetID [32]byte) ([20]byte, error) {
	if r == nil || r.state == nil {
		return [20]byte{}, errNilState
	}
	holder, minted, err := r.state.DeedHolder(assetID)
	if err != nil {
		return [20]byte{}, err
	}
	if !minted {
		return [20]byte{}, ErrNotMinted
	}
	return holder, nil
}
