package vault

import "errors"

// Caller-input errors
var (
	ErrZeroShares        = errors.New("shares must be greater than zero")
	ErrZeroAssets        = errors.New("assets must be greater than zero")
	ErrInvalidAmount     = errors.New("amount is invalid")
	ErrInvalidOwner      = errors.New("owner is invalid")
	ErrInvalidReceiver   = errors.New("receiver is invalid")
	ErrNoChangeRequested = errors.New("target debt equals current debt")
	ErrNoActiveDebt      = errors.New("strategy has no active debt")
	ErrStrategyExists    = errors.New("strategy already registered")
	ErrAmountTooLarge    = errors.New("amount exceeds the representable range")
)

// Lookup errors
var (
	ErrRequestNotFound  = errors.New("withdrawal request not found")
	ErrStrategyNotFound = errors.New("strategy not found")
)

// State errors
var (
	ErrInvalidState = errors.New("vault is in an invalid state for this operation")
)

// Liquidity and capacity errors
var (
	ErrInsufficientLiquidity         = errors.New("insufficient idle reserve")
	ErrCapacityExceeded              = errors.New("strategy deposit capacity exceeded")
	ErrInsufficientStrategyLiquidity = errors.New("strategy cannot redeem enough value")
	ErrInsufficientAllowance         = errors.New("insufficient allowance")
	ErrInsufficientBalance           = errors.New("insufficient share balance")
)

// Collaborator-contract errors
var (
	ErrStrategyRejected    = errors.New("strategy returned no position for deposit")
	ErrWithdrawalShortfall = errors.New("strategy delivered less than requested")
	ErrAssetMismatch       = errors.New("strategy asset does not match vault asset")
	ErrTransferFailed      = errors.New("reserve token transfer failed")
)

// Access errors
var (
	ErrUnauthorized = errors.New("caller is not authorized")
)

// ErrorClass groups vault errors by the remediation they call for.
type ErrorClass int

const (
	ClassInternal ErrorClass = iota
	ClassCaller
	ClassNotFound
	ClassState
	ClassLiquidity
	ClassCollaborator
	ClassAccess
)

func (c ErrorClass) String() string {
	switch c {
	case ClassCaller:
		return "caller"
	case ClassNotFound:
		return "not_found"
	case ClassState:
		return "state"
	case ClassLiquidity:
		return "liquidity"
	case ClassCollaborator:
		return "collaborator"
	case ClassAccess:
		return "access"
	default:
		return "internal"
	}
}

var errorClasses = []struct {
	class ErrorClass
	errs  []error
}{
	{ClassAccess, []error{ErrUnauthorized}},
	{ClassCollaborator, []error{ErrStrategyRejected, ErrWithdrawalShortfall, ErrAssetMismatch, ErrTransferFailed}},
	{ClassLiquidity, []error{ErrInsufficientLiquidity, ErrCapacityExceeded, ErrInsufficientStrategyLiquidity, ErrInsufficientAllowance, ErrInsufficientBalance}},
	{ClassState, []error{ErrInvalidState}},
	{ClassNotFound, []error{ErrRequestNotFound, ErrStrategyNotFound}},
	{ClassCaller, []error{ErrZeroShares, ErrZeroAssets, ErrInvalidAmount, ErrInvalidOwner, ErrInvalidReceiver, ErrNoChangeRequested, ErrNoActiveDebt, ErrStrategyExists, ErrAmountTooLarge}},
}

// Classify returns the class of the first vault sentinel found in err's chain.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassInternal
	}
	for _, group := range errorClasses {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.class
			}
		}
	}
	return ClassInternal
}

func IsCallerError(err error) bool       { return Classify(err) == ClassCaller }
func IsLiquidityError(err error) bool    { return Classify(err) == ClassLiquidity }
func IsCollaboratorError(err error) bool { return Classify(err) == ClassCollaborator }
func IsAccessError(err error) bool       { return Classify(err) == ClassAccess }
