package normalize

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type scale int

const (
	scaleNone scale = iota
	scaleThousands
	scaleMillions
	scaleBillions
)

var thousand = decimal.NewFromInt(1000)

// money is a parsed monetary figure. Text around the figure is kept so it
// can be written back unchanged.
type money struct {
	open, close string // "(" and ")" for accounting negatives
	outerSign   string // sign before the currency
	currency    string // canonical prefix, "" when absent
	innerSign   string // sign between currency and number
	number      string
	scale       scale
	unit        string
	suffix      string
}

var moneyPattern = regexp.MustCompile(
	`^(\()?([-+])?` +
		`(US\$|CA\$|AU\$|NZ\$|HK\$|MX\$|C\$|A\$|S\$|R\$|\$|£|€|¥|₹|[A-Z]{3})? ?` +
		`([-+])?(\d[\d,]*(?:\.\d+)?|\.\d+) ?` +
		`((?i:thousands?|000s|k|millions?|mm|mn|m|billions?|bn|b))?\b` +
		`(\))?(.*)$`)

// ratioPattern matches percentages, multiples and basis points, which are
// never monetary.
var ratioPattern = regexp.MustCompile(`(?i)(%|\d\s*x\b|bps\b)`)

// symbolCurrency maps a written token to its canonical prefix. A plain "$"
// states no country; "US$" and "USD" do.
var symbolCurrency = map[string]string{
	"$":   "$",
	"US$": "US$", "USD": "US$",
	"C$": "C$", "CA$": "C$", "CAD": "C$",
	"A$": "A$", "AU$": "A$", "AUD": "A$",
	"NZ$": "NZ$", "NZD": "NZ$",
	"S$": "S$", "SGD": "S$",
	"HK$": "HK$", "HKD": "HK$",
	"MX$": "MX$", "MXN": "MX$",
	"R$": "R$", "BRL": "R$",
	"£": "£", "GBP": "£",
	"€": "€", "EUR": "€",
	"¥": "¥", "JPY": "¥",
	"₹": "₹", "INR": "₹",
}

// canonicalCurrency maps a symbol or ISO 4217 code to the prefix written on
// figures. Codes without a symbol are written as "CHF ".
func canonicalCurrency(token string) (string, bool) {
	if c, ok := symbolCurrency[token]; ok {
		return c, true
	}
	if len(token) == 3 {
		if unit, err := currency.ParseISO(token); err == nil {
			return unit.String() + " ", true
		}
	}
	return "", false
}

func parseMoney(s string) (money, bool) {
	if ratioPattern.MatchString(s) {
		return money{}, false
	}
	m := moneyPattern.FindStringSubmatch(s)
	if m == nil {
		return money{}, false
	}
	if (m[1] == "") != (m[7] == "") {
		return money{}, false
	}

	out := money{
		open:      m[1],
		outerSign: m[2],
		innerSign: m[4],
		number:    m[5],
		unit:      m[6],
		close:     m[7],
		suffix:    m[8],
	}
	if m[3] != "" {
		c, ok := canonicalCurrency(m[3])
		if !ok {
			return money{}, false
		}
		out.currency = c
	}
	out.scale = scaleOf(m[6])
	return out, true
}

func scaleOf(unit string) scale {
	switch strings.ToLower(unit) {
	case "":
		return scaleNone
	case "thousand", "thousands", "000s", "k":
		return scaleThousands
	case "b", "bn", "billion", "billions":
		return scaleBillions
	default:
		return scaleMillions
	}
}

// inMillions rewrites the figure with an "m" unit. It reports whether the
// number itself had to be rescaled.
func (m money) inMillions() (money, bool) {
	switch m.scale {
	case scaleMillions:
		m.unit = "m"
		return m, false
	case scaleThousands, scaleBillions:
		d, err := decimal.NewFromString(strings.ReplaceAll(m.number, ",", ""))
		if err != nil {
			return m, false
		}
		if m.scale == scaleThousands {
			d = d.Div(thousand)
		} else {
			d = d.Mul(thousand)
		}
		m.number = formatMillions(d)
		m.scale = scaleMillions
		m.unit = "m"
		return m, true
	default:
		return m, false
	}
}

// formatMillions writes d to one decimal place. Figures that would round to
// zero keep two significant digits instead.
func formatMillions(d decimal.Decimal) string {
	if r := d.Round(1); !r.IsZero() || d.IsZero() {
		p := message.NewPrinter(language.English)
		return p.Sprintf("%.1f", r.InexactFloat64())
	}
	for places := int32(2); places <= 8; places++ {
		if !d.Round(places).IsZero() {
			return d.Round(places + 1).String()
		}
	}
	return d.String()
}

func (m money) String() string {
	return m.open + m.outerSign + m.currency + m.innerSign + m.number + m.unit + m.close + m.suffix
}
