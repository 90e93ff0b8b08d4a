package server

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// BindErrorKind classifies why the listening socket could not be bound.
type BindErrorKind int

const (
	BindFailure BindErrorKind = iota
	AddressInUse
	PermissionDenied
	InvalidAddress
)

func (k BindErrorKind) String() string {
	switch k {
	case AddressInUse:
		return "address already in use"
	case PermissionDenied:
		return "permission denied"
	case InvalidAddress:
		return "invalid address"
	default:
		return "bind failed"
	}
}

// BindError is fatal at startup and never retried.
type BindError struct {
	Address string
	Kind    BindErrorKind
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %s: %v", e.Address, e.Kind, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

func newBindError(address string, err error) *BindError {
	kind := BindFailure

	var addrErr *net.AddrError
	switch {
	case errors.Is(err, syscall.EADDRINUSE):
		kind = AddressInUse
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		kind = PermissionDenied
	case errors.As(err, &addrErr), errors.Is(err, syscall.EADDRNOTAVAIL):
		kind = InvalidAddress
	}

	return &BindError{
		Address: address,
		Kind:    kind,
		Err:     err,
	}
}
