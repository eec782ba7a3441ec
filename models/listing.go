// Package models defines data structures for the listing scraper.
package models

import (
	"fmt"
	"strings"
	"time"
)

// TradeCategory is the kind of transaction a listing offers.
type TradeCategory string

const (
	TradeSale    TradeCategory = "sale"
	TradeJeonse  TradeCategory = "jeonse"
	TradeMonthly TradeCategory = "monthly"
)

// TradeCategories lists the categories in the order summaries fetch them.
var TradeCategories = []TradeCategory{TradeSale, TradeJeonse, TradeMonthly}

// ParseTradeCategory accepts the public category names plus "deposit" as an
// alias for jeonse.
func ParseTradeCategory(s string) (TradeCategory, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sale":
		return TradeSale, nil
	case "jeonse", "deposit":
		return TradeJeonse, nil
	case "monthly", "rent":
		return TradeMonthly, nil
	default:
		return "", fmt.Errorf("unknown trade category %q", s)
	}
}

// Code returns the upstream trade type code.
func (c TradeCategory) Code() string {
	switch c {
	case TradeSale:
		return "A1"
	case TradeJeonse:
		return "B1"
	case TradeMonthly:
		return "B2"
	default:
		return ""
	}
}

// TargetEntity is one configured complex tracked by the batch summary.
type TargetEntity struct {
	ID           string `json:"id"`
	DisplayName  string `json:"displayName"`
	Region       string `json:"region"`
	SizeBrackets []int  `json:"sizeBrackets"`
	IsOwned      bool   `json:"isOwned"`
}

// ListingRecord is a normalized for-sale or for-lease article.
type ListingRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	TradeType   string   `json:"tradeType"`
	Price       int64    `json:"price"`
	RentPrice   int64    `json:"rentPrice"`
	Area        float64  `json:"area"`
	AreaActual  float64  `json:"areaActual"`
	FloorInfo   string   `json:"floorInfo"`
	Direction   string   `json:"direction"`
	ConfirmedAt string   `json:"confirmedAt"`
	Realtor     string   `json:"realtor"`
	Tags        []string `json:"tags"`
}

// ListingStats summarises the listings of one complex, category and size.
type ListingStats struct {
	Count    int             `json:"count"`
	MinPrice int64           `json:"minPrice"`
	MaxPrice int64           `json:"maxPrice"`
	AvgPrice int64           `json:"avgPrice"`
	Sample   []ListingRecord `json:"sample"`
}

// EmptyStats returns the zero-valued stats with a non-nil sample.
func EmptyStats() ListingStats {
	return ListingStats{Sample: []ListingRecord{}}
}

// EntityInfo is the descriptive metadata of a complex.
type EntityInfo struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	UnitCount int    `json:"unitCount"`
}

// EntitySummary aggregates the three trade categories of one complex.
type EntitySummary struct {
	Identifier  string       `json:"identifier"`
	DisplayName string       `json:"displayName"`
	SizeBracket int          `json:"sizeBracket"`
	Timestamp   time.Time    `json:"timestamp"`
	Sale        ListingStats `json:"sale"`
	Jeonse      ListingStats `json:"jeonse"`
	Monthly     ListingStats `json:"monthly"`
	OK          bool         `json:"ok"`
	Error       string       `json:"error"`
}

// NewEntitySummary returns a summary whose stats are all zero-valued.
func NewEntitySummary(name string, size int, at time.Time) EntitySummary {
	return EntitySummary{
		DisplayName: name,
		SizeBracket: size,
		Timestamp:   at,
		Sale:        EmptyStats(),
		Jeonse:      EmptyStats(),
		Monthly:     EmptyStats(),
	}
}

// SetStats stores stats under the field for category.
func (s *EntitySummary) SetStats(category TradeCategory, stats ListingStats) {
	switch category {
	case TradeSale:
		s.Sale = stats
	case TradeJeonse:
		s.Jeonse = stats
	case TradeMonthly:
		s.Monthly = stats
	}
}

// BatchEntry is one summary tagged with the target that produced it.
type BatchEntry struct {
	TargetID string `json:"targetId"`
	Region   string `json:"region"`
	IsOwned  bool   `json:"isOwned"`
	EntitySummary
}

// BatchResult holds batch entries in configured target order.
type BatchResult []BatchEntry
