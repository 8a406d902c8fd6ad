package intent

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// Keyword is a deterministic backend for both labeling and field
// extraction. It needs no network access and is used when no model is
// configured.
type Keyword struct{}

var keywordRules = []struct {
	intent  Intent
	pattern *regexp.Regexp
}{
	{CheckBalance, regexp.MustCompile(`(?i)(^/balance\b|\bbalances?\b|\bhow much\b.*\b(do i have|have i got|i hold|i own)\b)`)},
	{SendToken, regexp.MustCompile(`(?i)\b(send|transfer|pay|give)\b`)},
	{CrossChainSwap, regexp.MustCompile(`(?i)(\bbridge\b|\bcross[- ]?chain\b|\barbitrum\b|\bon arb\b|\banother chain\b)`)},
	{SwapToken, regexp.MustCompile(`(?i)\b(swap|exchange|trade|convert|sell|wrap|stake)\b`)},
	{RequestAttestation, regexp.MustCompile(`(?i)\b(attest|attestation|enclave|tee|verify|prove)\b`)},
}

func (Keyword) Label(_ context.Context, text string) ([]string, error) {
	var out []string
	for _, rule := range keywordRules {
		if rule.pattern.MatchString(text) {
			out = append(out, rule.intent.String())
		}
	}
	return out, nil
}

var numberWords = map[string]float64{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"twenty": 20, "fifty": 50, "hundred": 100,
}

var (
	swapPattern   = regexp.MustCompile(`(?i)\b(?:swap|exchange|trade|convert|sell)\s+(\S+)\s+(\S+)\s+(?:for|to|into)\s+(\S+)`)
	wrapPattern   = regexp.MustCompile(`(?i)\bwrap\s+(\S+)\s+(\S+)`)
	stakePattern  = regexp.MustCompile(`(?i)\bstake\s+(\S+)\s+(\S+)`)
	targetPattern = regexp.MustCompile(`(?i)\b(?:to|for|into)\s+(\S+)`)
)

var chainWords = map[string]bool{"arbitrum": true, "arb": true, "on": true, "the": true, "another": true, "chain": true}

func (Keyword) Fields(_ context.Context, in Intent, text string) (Fields, error) {
	switch in {
	case SendToken:
		return sendFields(text), nil
	case SwapToken:
		return swapFields(text), nil
	case CrossChainSwap:
		return crossChainFields(text), nil
	}
	return Fields{}, nil
}

func cleanWord(w string) string {
	return strings.TrimRight(strings.TrimSpace(w), ",.!?;:")
}

func parseAmount(w string) (float64, bool) {
	w = strings.ToLower(cleanWord(w))
	if v, ok := numberWords[w]; ok {
		return v, true
	}
	if strings.HasPrefix(w, "0x") {
		return 0, false
	}
	v, err := strconv.ParseFloat(w, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func sendFields(text string) Fields {
	var f Fields
	for _, word := range strings.Fields(text) {
		w := cleanWord(word)
		if strings.HasPrefix(strings.ToLower(w), "0x") {
			if f.ToAddress == nil {
				addr := w
				f.ToAddress = &addr
			}
			continue
		}
		if f.Amount == nil {
			if v, ok := parseAmount(w); ok {
				f.Amount = &v
			}
		}
	}
	return f
}

func swapFields(text string) Fields {
	if m := swapPattern.FindStringSubmatch(text); m != nil {
		return tokenFields(m[1], m[2], m[3])
	}
	if m := stakePattern.FindStringSubmatch(text); m != nil {
		return tokenFields(m[1], m[2], "SFLR")
	}
	if m := wrapPattern.FindStringSubmatch(text); m != nil {
		return tokenFields(m[1], m[2], "W"+strings.ToUpper(cleanWord(m[2])))
	}
	return Fields{}
}

func tokenFields(amount, from, to string) Fields {
	var f Fields
	if v, ok := parseAmount(amount); ok {
		f.Amount = &v
	}
	fromSym := strings.ToUpper(cleanWord(from))
	toSym := strings.ToUpper(cleanWord(to))
	f.FromToken = &fromSym
	f.ToToken = &toSym
	return f
}

func crossChainFields(text string) Fields {
	var f Fields
	words := strings.Fields(text)
	for i, word := range words {
		v, ok := parseAmount(word)
		if !ok {
			continue
		}
		f.Amount = &v
		if i+1 < len(words) {
			next := strings.ToLower(cleanWord(words[i+1]))
			if next != "to" && next != "for" && next != "into" && next != "" {
				sym := strings.ToUpper(next)
				f.FromToken = &sym
			}
		}
		break
	}
	for _, m := range targetPattern.FindAllStringSubmatch(text, -1) {
		w := strings.ToLower(cleanWord(m[1]))
		if chainWords[w] {
			continue
		}
		sym := strings.ToUpper(w)
		f.ToToken = &sym
		break
	}
	return f
}
