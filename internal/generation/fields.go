package generation

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Minimum lengths for treating a response without any JSON as the
// required field itself.
const (
	minProseText     = 40
	minProseFeedback = 20
)

var errNoRequiredField = errors.New("required field not found")

var (
	fenceLine  = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")
	scoreInStr = regexp.MustCompile(`"score"\s*:\s*"?(\d{1,3})`)
)

// fieldPattern matches a possibly unterminated string value for key.
func fieldPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`"` + regexp.QuoteMeta(key) + `"\s*:\s*"((?:[^"\\]|\\.)*)`)
}

// fieldSource returns the best-effort repaired JSON for gjson lookups, or ""
// if the response has no object at all.
func fieldSource(raw string) string {
	s := strings.TrimSpace(raw)
	i := strings.IndexByte(s, '{')
	if i < 0 {
		return ""
	}
	return repairJSON(s[i:])
}

// stringField looks key up in the repaired source first and falls back to
// a regex over the raw text, which also catches values cut off mid-string.
func stringField(src, raw string, keys ...string) string {
	for _, key := range keys {
		if src != "" {
			if r := gjson.Get(src, key); r.Type == gjson.String {
				if v := strings.TrimSpace(r.String()); v != "" {
					return v
				}
			}
		}
		m := fieldPattern(key).FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		if v := strings.TrimSpace(unescape(m[1])); v != "" {
			return v
		}
	}
	return ""
}

func unescape(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err == nil {
		return out
	}
	// A trailing lone backslash is the usual culprit in a cut-off value.
	s = strings.TrimSuffix(s, `\`)
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err == nil {
		return out
	}
	return strings.NewReplacer(`\n`, "\n", `\"`, `"`, `\t`, "\t").Replace(s)
}

// proseBody returns the response as plain text when it carries no JSON.
func proseBody(raw string) string {
	if strings.ContainsAny(raw, "{}") {
		return ""
	}
	return strings.TrimSpace(fenceLine.ReplaceAllString(raw, ""))
}

// textDrillFields recovers a text drill field by field. The narrative text
// is the one field that must be found.
func textDrillFields(raw string, _ Hints) (TextDrill, error) {
	src := fieldSource(raw)
	var d TextDrill

	d.Text = stringField(src, raw, "text", "story", "narrative", "passage")
	if d.Text == "" {
		if prose := proseBody(raw); len(prose) >= minProseText {
			d.Text = prose
		}
	}
	if d.Text == "" {
		return d, errNoRequiredField
	}

	d.Title = stringField(src, raw, "title")
	if src == "" {
		return d, nil
	}

	gjson.Get(src, "questions").ForEach(func(_, item gjson.Result) bool {
		q := Question{Question: strings.TrimSpace(item.Get("question").String())}
		for _, o := range item.Get("options").Array() {
			q.Options = append(q.Options, strings.TrimSpace(o.String()))
		}
		q.Answer = answerIndex(item.Get("answer"), q.Options)
		d.Questions = append(d.Questions, q)
		return true
	})
	gjson.Get(src, "bonus_vocabulary").ForEach(func(_, item gjson.Result) bool {
		d.BonusVocabulary = append(d.BonusVocabulary, BonusWord{
			Word:        item.Get("word").String(),
			Translation: item.Get("translation").String(),
		})
		return true
	})
	return d, nil
}

// answerIndex accepts an index or the text of the correct option.
func answerIndex(r gjson.Result, options []string) int {
	switch r.Type {
	case gjson.Number:
		return int(r.Int())
	case gjson.String:
		if n, err := strconv.Atoi(strings.TrimSpace(r.Str)); err == nil {
			return n
		}
		for i, o := range options {
			if strings.EqualFold(o, strings.TrimSpace(r.Str)) {
				return i
			}
		}
	}
	return -1
}

// writingAnalysisFields recovers an analysis field by field. Feedback or a
// score must be found.
func writingAnalysisFields(raw string, _ Hints) (WritingAnalysis, error) {
	src := fieldSource(raw)
	var a WritingAnalysis

	a.Feedback = stringField(src, raw, "feedback", "comment", "comments")
	score, hasScore := scoreField(src, raw)
	if a.Feedback == "" && !hasScore {
		prose := proseBody(raw)
		if len(prose) < minProseFeedback {
			return a, errNoRequiredField
		}
		a.Feedback = prose
	}
	a.Score = score
	a.ImprovedText = stringField(src, raw, "improved_text", "improved")

	if src != "" {
		gjson.Get(src, "corrections").ForEach(func(_, item gjson.Result) bool {
			a.Corrections = append(a.Corrections, Correction{
				Original:    item.Get("original").String(),
				Corrected:   item.Get("corrected").String(),
				Explanation: item.Get("explanation").String(),
			})
			return true
		})
	}
	return a, nil
}

func scoreField(src, raw string) (int, bool) {
	if src != "" {
		if r := gjson.Get(src, "score"); r.Type == gjson.Number {
			return int(r.Int()), true
		}
	}
	if m := scoreInStr.FindStringSubmatch(raw); m != nil {
		n, err := strconv.Atoi(m[1])
		return n, err == nil
	}
	return 0, false
}
