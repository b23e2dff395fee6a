package deposit

import "cosmossdk.io/errors"

// Codespace for deposit pipeline sentinel errors.
const Codespace = "deposit"

var (
	ErrDepositAmountOutOfBounds    = errors.Register(Codespace, 1, "deposit amount out of bounds")
	ErrInvalidDeadline             = errors.Register(Codespace, 2, "deadline outside allowed window")
	ErrDeadlineExpired             = errors.Register(Codespace, 3, "deadline already expired")
	ErrZeroSplit                   = errors.Register(Codespace, 4, "deposit split produced a zero portion")
	ErrInsufficientOutput          = errors.Register(Codespace, 5, "swap output below required floor")
	ErrInsufficientLiquidityMinted = errors.Register(Codespace, 6, "minted liquidity below required minimum")
	ErrPaused                      = errors.Register(Codespace, 7, "deposits are paused")
	ErrInvalidSlippage             = errors.Register(Codespace, 8, "slippage bound out of range")
	ErrInvalidRatio                = errors.Register(Codespace, 9, "liquidity ratio out of range")
	ErrHeadUnavailable             = errors.Register(Codespace, 10, "chain head unavailable")
	ErrInvalidConfig               = errors.Register(Codespace, 11, "invalid deposit configuration")
)
