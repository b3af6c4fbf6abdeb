package scraper

import (
	"regexp"

	"github.com/shopspring/decimal"
)

// Unit is the price unit printed next to the quote on the target page,
// CNY per gram. Its presence in the rendered text is also the readiness
// marker the extractor waits for.
const Unit = "元/克"

// pricePattern matches "<decimal> 元/克" in the page's visible text. The
// first occurrence wins; pages with several quotes are not disambiguated.
var pricePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*元/克`)

// Quote is one extracted price.
type Quote struct {
	Price    decimal.Decimal
	Unit     string
	RawMatch string
}

// ParseQuote extracts the first price from rendered page text.
func ParseQuote(text string) (Quote, error) {
	match := pricePattern.FindStringSubmatch(text)
	if match == nil {
		return Quote{}, ErrPatternNotFound
	}

	price, err := decimal.NewFromString(match[1])
	if err != nil {
		return Quote{}, ErrPatternNotFound
	}

	return Quote{
		Price:    price,
		Unit:     Unit,
		RawMatch: match[0],
	}, nil
}
