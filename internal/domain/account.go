package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Account 账户标识（20 字节以太坊风格地址）。
// 零地址即空账户，任何资产都不能归属于它。
type Account = common.Address

// ZeroAccount 空账户
var ZeroAccount = Account{}

// IsZeroAccount 判断是否为空账户
func IsZeroAccount(a Account) bool {
	return a == ZeroAccount
}

// ParseAccount 解析 0x 开头的十六进制地址。
func ParseAccount(s string) (Account, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return ZeroAccount, fmt.Errorf("invalid account address %q", s)
	}
	return common.HexToAddress(s), nil
}

// ShortAccount 日志用的短地址（0x1234…abcd）
func ShortAccount(a Account) string {
	h := a.Hex()
	return h[:6] + "…" + h[len(h)-4:]
}
