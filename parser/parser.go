package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-listings/models"
)

const (
	won      int64 = 1
	manWon         = 10_000 * won
	eokWon         = 10_000 * manWon
	eokUnit        = "억"
	unitWord       = "세대"
)

var unitCountPattern = regexp.MustCompile(`([\d,]+)\s*` + unitWord)

// Number decodes a JSON number that upstream sometimes sends as a string.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Number(ParseArea(s))
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", b, err)
	}
	*n = Number(f)
	return nil
}

// RawArticle is one article as returned by the listing API.
type RawArticle struct {
	ArticleNo         string   `json:"articleNo"`
	ArticleName       string   `json:"articleName"`
	TradeTypeName     string   `json:"tradeTypeName"`
	DealOrWarrantPrc  string   `json:"dealOrWarrantPrc"`
	RentPrc           string   `json:"rentPrc"`
	Area1             Number   `json:"area1"`
	Area2             Number   `json:"area2"`
	FloorInfo         string   `json:"floorInfo"`
	Direction         string   `json:"direction"`
	ArticleConfirmYmd string   `json:"articleConfirmYmd"`
	RealtorName       string   `json:"realtorName"`
	CpName            string   `json:"cpName"`
	TagList           []string `json:"tagList"`
}

// ArticlePage is one page of the listing API response.
type ArticlePage struct {
	IsMoreData  bool         `json:"isMoreData"`
	ArticleList []RawArticle `json:"articleList"`
}

// DecodeArticlePage parses a listing API response body.
func DecodeArticlePage(body []byte) (ArticlePage, error) {
	var page ArticlePage
	if err := json.Unmarshal(body, &page); err != nil {
		return ArticlePage{}, fmt.Errorf("decode article page: %w", err)
	}
	return page, nil
}

// ValidateArticle ensures the API returned the fields needed to identify an
// article.
func ValidateArticle(a *RawArticle) error {
	if a == nil {
		return fmt.Errorf("article is nil")
	}
	if strings.TrimSpace(a.ArticleNo) == "" {
		return fmt.Errorf("article missing number")
	}
	return nil
}

// ParsePrice converts a price label in 만원 units, such as "9억 5,000", "12억"
// or "5,000", into won. Unparseable or empty labels yield 0.
func ParsePrice(text string) int64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	var total int64
	rest := text
	if idx := strings.Index(rest, eokUnit); idx >= 0 {
		total += parseDigits(rest[:idx]) * eokWon
		rest = rest[idx+len(eokUnit):]
	}
	total += parseDigits(rest) * manWon
	return total
}

func parseDigits(s string) int64 {
	s = strings.NewReplacer(",", "", " ", "", "만", "", "원", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseArea reads a floor area such as "84.97" or "84㎡". Unparseable input
// yields 0.
func ParseArea(text string) float64 {
	text = strings.TrimSpace(text)
	for _, suffix := range []string{"㎡", "m²", "m2"} {
		text = strings.TrimSuffix(text, suffix)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ParseUnitCount extracts the household count from text like "총 1,234세대".
func ParseUnitCount(text string) int {
	m := unitCountPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0
	}
	return n
}

// NormalizeArticle maps a raw article to a ListingRecord. Missing numbers
// become 0 and missing text becomes "".
func NormalizeArticle(a RawArticle) models.ListingRecord {
	realtor := strings.TrimSpace(a.RealtorName)
	if realtor == "" {
		realtor = strings.TrimSpace(a.CpName)
	}
	tags := make([]string, 0, len(a.TagList))
	for _, tag := range a.TagList {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return models.ListingRecord{
		ID:          strings.TrimSpace(a.ArticleNo),
		Name:        strings.TrimSpace(a.ArticleName),
		TradeType:   strings.TrimSpace(a.TradeTypeName),
		Price:       ParsePrice(a.DealOrWarrantPrc),
		RentPrice:   ParsePrice(a.RentPrc),
		Area:        float64(a.Area1),
		AreaActual:  float64(a.Area2),
		FloorInfo:   strings.TrimSpace(a.FloorInfo),
		Direction:   strings.TrimSpace(a.Direction),
		ConfirmedAt: strings.TrimSpace(a.ArticleConfirmYmd),
		Realtor:     realtor,
		Tags:        tags,
	}
}

// ComputeStats summarises records with a positive price. The sample holds the
// cheapest sampleSize of them. An empty input yields all-zero stats.
func ComputeStats(records []models.ListingRecord, sampleSize int) models.ListingStats {
	priced := make([]models.ListingRecord, 0, len(records))
	for _, r := range records {
		if r.Price > 0 {
			priced = append(priced, r)
		}
	}
	if len(priced) == 0 {
		return models.EmptyStats()
	}

	sort.SliceStable(priced, func(i, j int) bool { return priced[i].Price < priced[j].Price })

	var sum int64
	for _, r := range priced {
		sum += r.Price
	}

	if sampleSize < 0 {
		sampleSize = 0
	}
	if sampleSize > len(priced) {
		sampleSize = len(priced)
	}
	sample := make([]models.ListingRecord, sampleSize)
	copy(sample, priced[:sampleSize])

	return models.ListingStats{
		Count:    len(priced),
		MinPrice: priced[0].Price,
		MaxPrice: priced[len(priced)-1].Price,
		AvgPrice: sum / int64(len(priced)),
		Sample:   sample,
	}
}
