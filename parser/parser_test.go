package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/aluiziolira/go-scrape-listings/models"
)

func TestValidateArticle(t *testing.T) {
	tests := []struct {
		name    string
		article *RawArticle
		wantErr bool
	}{
		{name: "valid article", article: &RawArticle{ArticleNo: "2400001"}, wantErr: false},
		{name: "nil article", article: nil, wantErr: true},
		{name: "missing number", article: &RawArticle{ArticleName: "Target A"}, wantErr: true},
		{name: "blank number", article: &RawArticle{ArticleNo: "  "}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArticle(tt.article)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateArticle() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{name: "eok and man", input: "9억 5,000", expected: 950_000_000},
		{name: "eok only", input: "12억", expected: 1_200_000_000},
		{name: "man only", input: "5,000", expected: 50_000_000},
		{name: "monthly rent", input: "150", expected: 1_500_000},
		{name: "whitespace", input: "  3억 500 ", expected: 305_000_000},
		{name: "empty", input: "", expected: 0},
		{name: "garbage", input: "협의", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParsePrice(tt.input); got != tt.expected {
				t.Errorf("ParsePrice(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseArea(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{input: "84.97", expected: 84.97},
		{input: "84㎡", expected: 84},
		{input: "59.2", expected: 59.2},
		{input: "", expected: 0},
		{input: "n/a", expected: 0},
	}

	for _, tt := range tests {
		if got := ParseArea(tt.input); got != tt.expected {
			t.Errorf("ParseArea(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestParseUnitCount(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{input: "총 1,234세대", expected: 1234},
		{input: "아파트 · 560 세대 · 총 8동", expected: 560},
		{input: "세대수 정보 없음", expected: 0},
		{input: "", expected: 0},
	}

	for _, tt := range tests {
		if got := ParseUnitCount(tt.input); got != tt.expected {
			t.Errorf("ParseUnitCount(%q) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}

func TestDecodeArticlePageToleratesStringNumbers(t *testing.T) {
	body := []byte(`{"isMoreData":true,"articleList":[
		{"articleNo":"1","dealOrWarrantPrc":"9억","area1":84,"area2":"59.97"},
		{"articleNo":"2","area1":null}
	]}`)

	page, err := DecodeArticlePage(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !page.IsMoreData || len(page.ArticleList) != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.ArticleList[0].Area1 != 84 || page.ArticleList[0].Area2 != 59.97 {
		t.Fatalf("areas = %v/%v", page.ArticleList[0].Area1, page.ArticleList[0].Area2)
	}
	if page.ArticleList[1].Area1 != 0 {
		t.Fatalf("null area should decode to 0")
	}
}

func TestNormalizeArticleDefaults(t *testing.T) {
	got := NormalizeArticle(RawArticle{
		ArticleNo:        " 2400001 ",
		ArticleName:      "Target A",
		TradeTypeName:    "전세",
		DealOrWarrantPrc: "6억",
		Area1:            112,
		Area2:            84.9,
		CpName:           "partner",
		TagList:          []string{"역세권", " ", "남향"},
	})

	want := models.ListingRecord{
		ID:         "2400001",
		Name:       "Target A",
		TradeType:  "전세",
		Price:      600_000_000,
		RentPrice:  0,
		Area:       112,
		AreaActual: 84.9,
		Realtor:    "partner",
		Tags:       []string{"역세권", "남향"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("NormalizeArticle mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	for _, records := range [][]models.ListingRecord{nil, {}, {{ID: "free", Price: 0}}} {
		got := ComputeStats(records, 10)
		want := models.ListingStats{Sample: []models.ListingRecord{}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("empty stats mismatch (-want +got):\n%s", diff)
		}
		if got.Sample == nil {
			t.Fatalf("sample must be an empty slice, not nil")
		}
	}
}

func TestComputeStats(t *testing.T) {
	records := []models.ListingRecord{
		{ID: "a", Price: 900},
		{ID: "b", Price: 0},
		{ID: "c", Price: 300},
		{ID: "d", Price: 600},
	}

	got := ComputeStats(records, 2)
	if got.Count != 3 || got.MinPrice != 300 || got.MaxPrice != 900 || got.AvgPrice != 600 {
		t.Fatalf("unexpected stats %+v", got)
	}
	if len(got.Sample) != 2 || got.Sample[0].ID != "c" || got.Sample[1].ID != "d" {
		t.Fatalf("sample should be the two cheapest records, got %+v", got.Sample)
	}
}
