package domain

import "errors"

// 账本错误类型。所有错误都是同步拒绝，不会在内部重试；
// 调用方用 errors.Is 判断类型。
var (
	ErrInvalidRoyalty        = errors.New("royalty rate out of limits, must be an integer between 0 and 10")
	ErrInvalidOwner          = errors.New("invalid owner: null account")
	ErrUnknownAsset          = errors.New("unknown asset")
	ErrNotOwner              = errors.New("caller is not the owner of this asset")
	ErrNotApproved           = errors.New("owner has not approved the marketplace as operator")
	ErrAlreadyListed         = errors.New("asset already listed for sale")
	ErrPriceTooLow           = errors.New("price must be greater than 100")
	ErrNotOnSale             = errors.New("asset is not on sale")
	ErrInsufficientOffer     = errors.New("offer is below the selling price")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrUnknownListing        = errors.New("unknown listing")

	ErrAlreadyInitialized = errors.New("payment ledger already initialized")
	ErrInvalidOperator    = errors.New("invalid operator")
	ErrOverflow           = errors.New("integer overflow")
	ErrInvalidAmount      = errors.New("invalid amount")
)

// kinds 错误类型 -> 稳定的错误码（API 与日志使用）
var kinds = []struct {
	err  error
	code string
}{
	{ErrInvalidRoyalty, "InvalidRoyalty"},
	{ErrInvalidOwner, "InvalidOwner"},
	{ErrUnknownAsset, "UnknownAsset"},
	{ErrNotOwner, "NotOwner"},
	{ErrNotApproved, "NotApproved"},
	{ErrAlreadyListed, "AlreadyListed"},
	{ErrPriceTooLow, "PriceTooLow"},
	{ErrNotOnSale, "NotOnSale"},
	{ErrInsufficientOffer, "InsufficientOffer"},
	{ErrInsufficientBalance, "InsufficientBalance"},
	{ErrInsufficientAllowance, "InsufficientAllowance"},
	{ErrUnknownListing, "UnknownListing"},
	{ErrAlreadyInitialized, "AlreadyInitialized"},
	{ErrInvalidOperator, "InvalidOperator"},
	{ErrOverflow, "Overflow"},
	{ErrInvalidAmount, "InvalidAmount"},
}

// ErrorKind 返回错误码；非账本错误返回空字符串。
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return ""
}

// ErrorByKind 根据错误码还原哨兵错误（客户端使用）
func ErrorByKind(code string) error {
	for _, k := range kinds {
		if k.code == code {
			return k.err
		}
	}
	return nil
}
