package signal

import (
	"strconv"
	"strings"
)

// FractionSumEpsilon 为止盈比例求和的容差。
const FractionSumEpsilon = 1e-9

// ResolveFractions 为 n 个止盈档位分配平仓比例。
// spec 接受斜杠、逗号或空格分隔的数值：整数按总和归一（"33/33/34"），
// 小数若本身已近似为 1.0 则直接采用。数量不匹配或无法解析时退化为
// 等分，余数并入最后一档以保证总和精确为 1.0。
func ResolveFractions(n int, spec string) []float64 {
	if n <= 0 {
		return nil
	}

	if values, ok := parseFractionSpec(spec); ok && len(values) == n {
		return normalizeFractions(values)
	}

	return equalFractions(n)
}

func parseFractionSpec(spec string) ([]float64, bool) {
	fields := strings.FieldsFunc(spec, func(r rune) bool {
		return r == '/' || r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil, false
	}

	values := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || v <= 0 {
			return nil, false
		}
		values = append(values, v)
	}
	return values, true
}

func normalizeFractions(values []float64) []float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	if sum <= 0 {
		return equalFractions(len(values))
	}

	out := make([]float64, len(values))
	var head float64
	for i := 0; i < len(values)-1; i++ {
		out[i] = values[i] / sum
		head += out[i]
	}
	// 末档吸收归一误差，总和精确为 1.0。
	out[len(out)-1] = 1 - head
	return out
}

func equalFractions(n int) []float64 {
	out := make([]float64, n)
	each := 1 / float64(n)
	var head float64
	for i := 0; i < n-1; i++ {
		out[i] = each
		head += each
	}
	out[n-1] = 1 - head
	return out
}
