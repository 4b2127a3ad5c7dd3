package signal

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// 保留的结构符号：价格标记、分隔符与小数点。
// 其余装饰符号（emoji、项目符号、markdown 标记）一律丢弃。
var keptPunct = map[rune]bool{
	'$': true,
	'@': true,
	':': true,
	'/': true,
	',': true,
	'.': true,
	'-': true,
	'%': true,
}

var numericSuffix = regexp.MustCompile(`(\d+(?:\.\d+)?)([KM])\b`)

// Normalize 将原始消息转换为规整的大写行序列。
// 行边界保留；不可解析的字符直接丢弃，永不失败。
func Normalize(text string) []string {
	rawLines := strings.Split(text, "\n")
	lines := make([]string, 0, len(rawLines))

	for _, raw := range rawLines {
		var b strings.Builder
		for _, r := range raw {
			switch {
			case unicode.IsLetter(r) && r <= unicode.MaxASCII:
				b.WriteRune(unicode.ToUpper(r))
			case unicode.IsDigit(r) && r <= unicode.MaxASCII:
				b.WriteRune(r)
			case keptPunct[r]:
				b.WriteRune(r)
			case unicode.IsSpace(r):
				b.WriteRune(' ')
			}
		}

		line := strings.Join(strings.Fields(b.String()), " ")
		if line == "" {
			continue
		}
		lines = append(lines, expandSuffixes(line))
	}

	return lines
}

// expandSuffixes 展开数字简写：50K → 50000，1.2M → 1200000。
// 杠杆标记（5X）不受影响。
func expandSuffixes(line string) string {
	return numericSuffix.ReplaceAllStringFunc(line, func(m string) string {
		sub := numericSuffix.FindStringSubmatch(m)
		v, err := strconv.ParseFloat(sub[1], 64)
		if err != nil {
			return m
		}
		switch sub[2] {
		case "K":
			v *= 1_000
		case "M":
			v *= 1_000_000
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	})
}
