package condition

import "github.com/pdaltagent/pdgateway/internal/domain/derrors"

// errSyntax and errUnsupported alias the shared sentinels so every error this
// package returns satisfies errors.Is against derrors without re-declaring it.
var (
	errSyntax      = derrors.ErrConditionSyntax
	errUnsupported = derrors.ErrUnsupportedOperator
	errInvalidRegex = derrors.ErrInvalidRegex
)
