package signal

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Options 控制解析默认值。
type Options struct {
	// DefaultLeverage 在消息未显式给出杠杆时使用。
	DefaultLeverage float64
	// DefaultSymbol 为 "MARKET LONG" 这类缺省标的信号的默认符号。
	DefaultSymbol string
	// TPFractions 为配置的止盈分批比例（见 ResolveFractions）。
	TPFractions string
}

// Parser 将自由格式的喊单文本转换为结构化 Intent。
// 先尝试单行文法（常见且廉价），再退回多行块扫描。
type Parser struct {
	opts Options
}

// NewParser 创建解析器。
func NewParser(opts Options) *Parser {
	if opts.DefaultLeverage <= 0 {
		opts.DefaultLeverage = 1
	}
	if opts.DefaultSymbol == "" {
		opts.DefaultSymbol = "BTC"
	}
	return &Parser{opts: opts}
}

const (
	symbolPattern = `[A-Z][A-Z0-9]{1,9}`
	pricesPattern = `\$?\d+(?:\.\d+)?(?:\s*/\s*\$?\d+(?:\.\d+)?)*`
)

// 单行文法，按从具体到宽泛排列；首个命中者为主信号行。
// 模式集合源自实际喊单频道中出现过的写法。
var (
	reBuyNow     = regexp.MustCompile(`\bBUY\s+NOW\s+(` + symbolPattern + `)(?:\s+(\d+(?:\.\d+)?)X)?`)
	reKindVerb   = regexp.MustCompile(`\b(MARKET|LIMIT)\s+(BUY|SELL|LONG|SHORT)\s+(` + symbolPattern + `)\s*(?:AT\s+|@|:)?\s*(` + pricesPattern + `)`)
	reMarketBare = regexp.MustCompile(`\bMARKET\s+(LONG|SHORT)(?:\s+(` + symbolPattern + `))?\s*$`)
	rePosVerb    = regexp.MustCompile(`\bPOSITION:?\s+(LONG|SHORT)\s+(` + symbolPattern + `)\s*(?:ENTRY:?)?\s*(` + pricesPattern + `)?`)
	rePosLine    = regexp.MustCompile(`\b(` + symbolPattern + `)\s+POSITION:?\s*(LONG|SHORT)\b`)
	reVerbFirst  = regexp.MustCompile(`\b(BUY|SELL|LONG|SHORT)\s+(` + symbolPattern + `)\b(?:\s*(?:AT\s+|@|:)?\s*(` + pricesPattern + `))?`)
	reSymFirst   = regexp.MustCompile(`\b(` + symbolPattern + `)\s+(BUY|SELL|LONG|SHORT)\b(?:\s*(?:ENTRY:?|AT\s+|@|:)?\s*(` + pricesPattern + `))?`)
)

// 补充行按行首关键字分类，与位置无关。
var (
	reSLKey   = regexp.MustCompile(`^(?:STOP\s*LOSS|STOP|SL)\b\s*:?\s*`)
	reTPKey   = regexp.MustCompile(`^(?:TP\d*|TAKE\s*PROFIT(?:\s*\d+)?|TARGETS?|PROFIT)\b\s*:?\s*`)
	reEntKey  = regexp.MustCompile(`^(?:ENTRY\s*PRICE|ENTRIES|ENTRY)\b\s*:?\s*`)
	reLevKey  = regexp.MustCompile(`^(?:LEVERAGE|LEV)\b\s*:?\s*`)
	reVerb    = regexp.MustCompile(`\b(BUY|SELL|LONG|SHORT)\b`)
	reLevAny  = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*X\b|\bLEV(?:ERAGE)?\b\s*:?\s*(\d+(?:\.\d+)?)`)
	reNumber  = regexp.MustCompile(`\d+(?:\.\d+)?`)
	reSymTok  = regexp.MustCompile(`^` + symbolPattern + `$`)
	noiseWord = map[string]bool{
		"BUY": true, "SELL": true, "LONG": true, "SHORT": true,
		"MARKET": true, "LIMIT": true, "AT": true, "NOW": true,
		"SIGNAL": true, "TRADE": true, "ALERT": true, "POSITION": true,
		"ENTRY": true, "ENTRIES": true, "PRICE": true, "STOP": true,
		"LOSS": true, "SL": true, "TP": true, "TAKE": true,
		"PROFIT": true, "TARGET": true, "TARGETS": true,
		"LEVERAGE": true, "LEV": true,
	}
)

// draft 为解析过程中的中间状态。
type draft struct {
	side      Side
	symbol    string
	orderKind OrderKind
	entries   []float64
	stopLoss  float64
	tpPrices  []float64
	leverage  float64
}

// Parse 从一条消息（可能多行）中提取交易意图。
// 无交易动词时返回 ErrNoSignal；命中动词但意图不完整时返回 *ParseError。
func (p *Parser) Parse(text string, sourceTime time.Time) (*Intent, error) {
	lines := Normalize(text)
	if len(lines) == 0 {
		return nil, ErrNoSignal
	}

	var d draft
	mainIdx := -1
	for i, line := range lines {
		if cand, ok := p.matchMainLine(line); ok {
			d = cand
			mainIdx = i
			break
		}
	}

	// 无论单行还是多行命中，SL/TP/阶梯入场/杠杆都允许出现在其余任意行。
	for i, line := range lines {
		if i == mainIdx {
			continue
		}
		scanSupplement(line, &d)
	}

	joined := strings.Join(lines, " ")
	if mainIdx < 0 {
		if !reVerb.MatchString(joined) {
			return nil, ErrNoSignal
		}
		return nil, diagnose(joined)
	}

	if d.leverage == 0 {
		d.leverage = findLeverage(joined)
	}

	return p.buildIntent(d, text, sourceTime)
}

func (p *Parser) matchMainLine(line string) (draft, bool) {
	if m := reBuyNow.FindStringSubmatch(line); m != nil {
		d := draft{side: SideLong, symbol: m[1], orderKind: OrderMarket}
		if m[2] != "" {
			d.leverage = parseFloat(m[2])
		}
		return d, true
	}
	if m := reKindVerb.FindStringSubmatch(line); m != nil {
		return draft{
			side:      sideFromVerb(m[2]),
			symbol:    m[3],
			orderKind: OrderKind(m[1]),
			entries:   parsePrices(m[4]),
		}, true
	}
	if m := reMarketBare.FindStringSubmatch(line); m != nil {
		symbol := m[2]
		if symbol == "" {
			symbol = p.opts.DefaultSymbol
		}
		return draft{side: sideFromVerb(m[1]), symbol: symbol, orderKind: OrderMarket}, true
	}
	if m := rePosVerb.FindStringSubmatch(line); m != nil {
		return draft{
			side:      sideFromVerb(m[1]),
			symbol:    m[2],
			orderKind: OrderLimit,
			entries:   parsePrices(m[3]),
		}, true
	}
	if m := rePosLine.FindStringSubmatch(line); m != nil {
		if noiseWord[m[1]] {
			return draft{}, false
		}
		return draft{side: sideFromVerb(m[2]), symbol: m[1], orderKind: OrderLimit}, true
	}
	if m := reVerbFirst.FindStringSubmatch(line); m != nil {
		if noiseWord[m[2]] {
			return draft{}, false
		}
		return draft{
			side:      sideFromVerb(m[1]),
			symbol:    m[2],
			orderKind: OrderLimit,
			entries:   parsePrices(m[3]),
		}, true
	}
	if m := reSymFirst.FindStringSubmatch(line); m != nil {
		if noiseWord[m[1]] {
			return draft{}, false
		}
		return draft{
			side:      sideFromVerb(m[2]),
			symbol:    m[1],
			orderKind: OrderLimit,
			entries:   parsePrices(m[3]),
		}, true
	}
	return draft{}, false
}

func scanSupplement(line string, d *draft) {
	switch {
	case reSLKey.MatchString(line):
		rest := reSLKey.ReplaceAllString(line, "")
		if prices := parsePrices(rest); len(prices) > 0 && d.stopLoss == 0 {
			d.stopLoss = prices[0]
		}
	case reTPKey.MatchString(line):
		rest := reTPKey.ReplaceAllString(line, "")
		d.tpPrices = append(d.tpPrices, parsePrices(rest)...)
	case reEntKey.MatchString(line):
		rest := reEntKey.ReplaceAllString(line, "")
		prices := parsePrices(rest)
		switch {
		case len(prices) > 1:
			d.entries = prices
		case len(prices) == 1 && len(d.entries) == 0:
			d.entries = prices
		}
	case reLevKey.MatchString(line):
		rest := reLevKey.ReplaceAllString(line, "")
		if nums := reNumber.FindString(rest); nums != "" && d.leverage == 0 {
			d.leverage = parseFloat(nums)
		}
	}
}

func (p *Parser) buildIntent(d draft, raw string, sourceTime time.Time) (*Intent, error) {
	if d.symbol == "" {
		return nil, &ParseError{Reason: ReasonMissingSymbol, Text: raw}
	}
	if len(d.entries) == 0 && d.orderKind != OrderMarket {
		return nil, &ParseError{Reason: ReasonMissingPrice, Text: raw}
	}

	leverage := d.leverage
	if leverage <= 0 {
		leverage = p.opts.DefaultLeverage
	}
	if d.orderKind == "" {
		d.orderKind = OrderLimit
	}

	intent := &Intent{
		Symbol:          d.symbol,
		Side:            d.side,
		OrderKind:       d.orderKind,
		Entries:         d.entries,
		Leverage:        leverage,
		StopLoss:        d.stopLoss,
		RawText:         raw,
		SourceTimestamp: sourceTime,
	}

	if len(d.tpPrices) > 0 {
		fractions := ResolveFractions(len(d.tpPrices), p.opts.TPFractions)
		intent.TakeProfits = make([]TakeProfit, 0, len(d.tpPrices))
		for i, price := range d.tpPrices {
			intent.TakeProfits = append(intent.TakeProfits, TakeProfit{Price: price, Fraction: fractions[i]})
		}
	}

	return intent, nil
}

// diagnose 在命中动词但主信号行缺失时给出具体原因。
func diagnose(joined string) error {
	hasNumber := reNumber.MatchString(joined)
	hasSymbol := false
	for _, tok := range strings.Fields(joined) {
		t := strings.TrimRight(tok, ":,")
		if reSymTok.MatchString(t) && !noiseWord[t] {
			hasSymbol = true
			break
		}
	}

	switch {
	case !hasNumber:
		return &ParseError{Reason: ReasonMissingPrice, Text: joined}
	case !hasSymbol:
		return &ParseError{Reason: ReasonMissingSymbol, Text: joined}
	default:
		return &ParseError{Reason: ReasonAmbiguousGrammar, Text: joined}
	}
}

func sideFromVerb(verb string) Side {
	switch verb {
	case "BUY", "LONG":
		return SideLong
	default:
		return SideShort
	}
}

func parsePrices(s string) []float64 {
	matches := reNumber.FindAllString(s, -1)
	prices := make([]float64, 0, len(matches))
	for _, m := range matches {
		if v := parseFloat(m); v > 0 {
			prices = append(prices, v)
		}
	}
	return prices
}

func findLeverage(text string) float64 {
	m := reLevAny.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	if m[1] != "" {
		return parseFloat(m[1])
	}
	return parseFloat(m[2])
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
