package hybrid

import (
	"math"
	"strings"
	"unicode"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Tokenize 小写化、去非字母数字、丢弃长度小于 2 的词
func Tokenize(text string) []string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)

	fields := strings.Fields(mapped)
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// bm25Index 倒排索引，按文档 ID 维护词频
type bm25Index struct {
	docTokens map[string]map[string]int
	docLen    map[string]int
	df        map[string]int
	totalLen  int
}

func newBM25Index() *bm25Index {
	return &bm25Index{
		docTokens: make(map[string]map[string]int),
		docLen:    make(map[string]int),
		df:        make(map[string]int),
	}
}

// Add 索引一篇文档，已存在时先移除旧版本
func (idx *bm25Index) Add(docID, content string) {
	if _, ok := idx.docTokens[docID]; ok {
		idx.Remove(docID)
	}

	tokens := Tokenize(content)
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}

	idx.docTokens[docID] = tf
	idx.docLen[docID] = len(tokens)
	idx.totalLen += len(tokens)
	for term := range tf {
		idx.df[term]++
	}
}

// Remove 移除文档
func (idx *bm25Index) Remove(docID string) {
	tf, ok := idx.docTokens[docID]
	if !ok {
		return
	}
	for term := range tf {
		idx.df[term]--
		if idx.df[term] <= 0 {
			delete(idx.df, term)
		}
	}
	idx.totalLen -= idx.docLen[docID]
	delete(idx.docTokens, docID)
	delete(idx.docLen, docID)
}

// Score 计算查询词对单个文档的 BM25 分数
func (idx *bm25Index) Score(queryTokens []string, docID string) float64 {
	tf, ok := idx.docTokens[docID]
	if !ok || len(idx.docTokens) == 0 {
		return 0
	}

	n := float64(len(idx.docTokens))
	avgdl := float64(idx.totalLen) / float64(len(idx.docTokens))
	if avgdl == 0 {
		avgdl = 1
	}
	dl := float64(idx.docLen[docID])

	var score float64
	for _, term := range queryTokens {
		f := float64(tf[term])
		if f == 0 {
			continue
		}
		df := float64(idx.df[term])
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		score += idf * (f * (bm25K1 + 1)) / (f + bm25K1*(1-bm25B+bm25B*dl/avgdl))
	}
	return score
}

func (idx *bm25Index) Len() int {
	return len(idx.docTokens)
}
