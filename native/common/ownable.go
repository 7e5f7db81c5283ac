package common

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Ownable carries the admin capability for an engine. Admin entry points take
// the caller explicitly and check it here instead of relying on an ambient
// sender.
type Ownable struct {
	owner ethcommon.Address
}

// NewOwnable assigns the initial owner.
func NewOwnable(owner ethcommon.Address) Ownable {
	return Ownable{owner: owner}
}

// Owner returns the current owner address.
func (o *Ownable) Owner() ethcommon.Address {
	if o == nil {
		return ethcommon.Address{}
	}
	return o.owner
}

// OnlyOwner returns ErrNotOwner unless caller is the owner.
func (o *Ownable) OnlyOwner(caller ethcommon.Address) error {
	if o == nil || o.owner == (ethcommon.Address{}) || caller != o.owner {
		return ErrNotOwner
	}
	return nil
}

// TransferOwnership hands the admin capability to next.
func (o *Ownable) TransferOwnership(caller, next ethcommon.Address) error {
	if err := o.OnlyOwner(caller); err != nil {
		return err
	}
	if next == (ethcommon.Address{}) {
		return ErrAddressZero
	}
	o.owner = next
	return nil
}

// IsZeroAddress reports whether addr is the zero address.
func IsZeroAddress(addr ethcommon.Address) bool {
	return addr == (ethcommon.Address{})
}
