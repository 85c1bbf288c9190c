package router

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Domain 专家领域
type Domain string

const (
	DomainGeneral  Domain = "general"
	DomainCode     Domain = "code"
	DomainMath     Domain = "math"
	DomainVision   Domain = "vision"
	DomainLanguage Domain = "language"
	DomainCreative Domain = "creative"
)

// KeywordGroup 一组同义关键词，任一命中即获得 Weight 分
type KeywordGroup struct {
	Keywords []string `json:"keywords" yaml:"keywords"`
	Weight   float64  `json:"weight" yaml:"weight"`
}

// KeywordTable 领域到关键词组的静态映射
type KeywordTable map[Domain][]KeywordGroup

// DefaultKeywords 内置关键词表
var DefaultKeywords = KeywordTable{
	DomainGeneral: {
		{Keywords: []string{"explain", "summary", "summarize", "overview", "general"}, Weight: 0.4},
		{Keywords: []string{"help", "question", "advice", "describe"}, Weight: 0.2},
	},
	DomainCode: {
		{Keywords: []string{"code", "function", "bug", "debug", "compile", "program", "programming", "refactor", "python", "golang", "javascript", "rust"}, Weight: 0.5},
		{Keywords: []string{"api", "class", "algorithm", "runtime", "exception", "stacktrace", "library"}, Weight: 0.3},
		{Keywords: []string{"test", "deploy", "git", "sql", "script"}, Weight: 0.2},
	},
	DomainMath: {
		{Keywords: []string{"math", "equation", "integral", "derivative", "calculus", "algebra", "proof", "theorem"}, Weight: 0.5},
		{Keywords: []string{"solve", "calculate", "compute", "probability", "statistics", "matrix", "geometry"}, Weight: 0.3},
		{Keywords: []string{"number", "sum", "formula", "percent"}, Weight: 0.2},
	},
	DomainVision: {
		{Keywords: []string{"image", "photo", "picture", "pixel", "vision"}, Weight: 0.5},
		{Keywords: []string{"detect", "detection", "segment", "classify", "camera", "video"}, Weight: 0.3},
		{Keywords: []string{"color", "shape", "object", "face"}, Weight: 0.2},
	},
	DomainLanguage: {
		{Keywords: []string{"translate", "translation", "grammar", "language", "linguistics"}, Weight: 0.5},
		{Keywords: []string{"english", "chinese", "spanish", "french", "german", "japanese", "sentence"}, Weight: 0.3},
		{Keywords: []string{"word", "text", "meaning", "spelling"}, Weight: 0.2},
	},
	DomainCreative: {
		{Keywords: []string{"story", "poem", "poetry", "creative", "novel", "fiction"}, Weight: 0.5},
		{Keywords: []string{"character", "plot", "essay", "lyrics", "write"}, Weight: 0.3},
		{Keywords: []string{"style", "tone", "draft", "imagine"}, Weight: 0.2},
	},
}

// fuzzyMinRunes 模糊匹配的最短词长，短词只做精确匹配
const fuzzyMinRunes = 6

// Tokenize 将查询切分为小写词元
func Tokenize(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// DomainScore 计算词元与某领域关键词表的匹配度：命中组权重之和，封顶 1
func (t KeywordTable) DomainScore(tokens []string, domain Domain, maxDistance int) float64 {
	score := 0.0
	for _, group := range t[domain] {
		if groupMatches(group, tokens, maxDistance) {
			score += group.Weight
		}
	}
	if score > 1 {
		return 1
	}
	return score
}

func groupMatches(group KeywordGroup, tokens []string, maxDistance int) bool {
	for _, kw := range group.Keywords {
		for _, tok := range tokens {
			if tok == kw {
				return true
			}
			if maxDistance > 0 && fuzzyMatch(tok, kw, maxDistance) {
				return true
			}
		}
	}
	return false
}

// fuzzyMatch 容忍拼写错误：两词均不短于 fuzzyMinRunes、首字符相同且编辑距离不超过 maxDistance
func fuzzyMatch(tok, kw string, maxDistance int) bool {
	if utf8.RuneCountInString(tok) < fuzzyMinRunes || utf8.RuneCountInString(kw) < fuzzyMinRunes {
		return false
	}
	t, _ := utf8.DecodeRuneInString(tok)
	k, _ := utf8.DecodeRuneInString(kw)
	if t != k {
		return false
	}
	return levenshtein.ComputeDistance(tok, kw) <= maxDistance
}
