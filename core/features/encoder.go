package features

import (
	"sort"

	"github.com/kilianp07/railflow/core/model"
)

// UnknownCode is the code of a category or station class not seen at fit time.
const UnknownCode = -1

// Encoder maps categorical values to stable numeric codes. It is fitted once
// on the training set and never refitted at inference time.
type Encoder struct {
	Category     map[string]int `json:"category"`
	StationClass map[string]int `json:"station_class"`
}

// FitEncoder assigns each distinct value its index in sorted order.
func FitEncoder(recs []model.TrainRecord) Encoder {
	cats := make([]string, 0, len(recs))
	classes := make([]string, 0, len(recs))
	for _, r := range recs {
		cats = append(cats, string(r.Category))
		classes = append(classes, string(r.StationClass))
	}
	return Encoder{Category: codeTable(cats), StationClass: codeTable(classes)}
}

func codeTable(values []string) map[string]int {
	seen := map[string]struct{}{}
	uniq := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		uniq = append(uniq, v)
	}
	sort.Strings(uniq)
	out := make(map[string]int, len(uniq))
	for i, v := range uniq {
		out[v] = i
	}
	return out
}

// CategoryCode returns the code of c or UnknownCode.
func (e Encoder) CategoryCode(c model.Category) int {
	return lookup(e.Category, string(c))
}

// StationClassCode returns the code of s or UnknownCode.
func (e Encoder) StationClassCode(s model.StationClass) int {
	return lookup(e.StationClass, string(s))
}

func lookup(table map[string]int, v string) int {
	if code, ok := table[v]; ok {
		return code
	}
	return UnknownCode
}
