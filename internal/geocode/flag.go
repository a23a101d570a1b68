package geocode

import "strings"

// regionalIndicatorOffset：'A' + offset == U+1F1E6（REGIONAL INDICATOR SYMBOL LETTER A）
const regionalIndicatorOffset = 127397

// FlagEmoji：两位 ISO 国家代码 → 国旗 emoji（两个区域指示符码点）
// 约束：仅对 A–Z 字母有定义；大小写不敏感
func FlagEmoji(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(code) {
		b.WriteRune(r + regionalIndicatorOffset)
	}
	return b.String()
}
