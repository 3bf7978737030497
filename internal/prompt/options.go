package prompt

import (
	"fmt"
	"strings"

	"travel-diary-backend/internal/apperr"
)

// Tone values
const (
	ToneSentimental = "sentimental"
	TonePlain       = "plain"
	ToneCheerful    = "cheerful"
	ToneHumorous    = "humorous"
)

// Options are the user-chosen style options of a diary. Empty values mean "not selected".
type Options struct {
	Companion string `json:"companion"`
	Feeling   string `json:"feeling"`
	Length    string `json:"length"`
	Tone      string `json:"tone"`
	Weather   string `json:"weather"`
}

type choice struct {
	code  string
	label string
}

var (
	companions = []choice{
		{"alone", "혼자"},
		{"friends", "친구"},
		{"partner", "연인"},
		{"family", "가족"},
		{"colleagues", "동료"},
	}
	feelings = []choice{
		{"happy", "행복한"},
		{"excited", "설레는"},
		{"relaxed", "여유로운"},
		{"moved", "감동적인"},
		{"tired", "피곤한"},
		{"lonely", "쓸쓸한"},
	}
	lengths = []choice{
		{"short", "짧게"},
		{"medium", "보통"},
		{"long", "길게"},
	}
	tones = []choice{
		{ToneSentimental, "감성적인"},
		{TonePlain, "담백한"},
		{ToneCheerful, "발랄한"},
		{ToneHumorous, "유머러스한"},
	}
	weathers = []choice{
		{"sunny", "맑음"},
		{"cloudy", "흐림"},
		{"rainy", "비"},
		{"snowy", "눈"},
		{"windy", "바람"},
	}
)

// lookup accepts either the code or the Korean label of a choice.
func lookup(set []choice, field, value string) (choice, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return choice{}, nil
	}
	for _, c := range set {
		if strings.EqualFold(value, c.code) || value == c.label {
			return c, nil
		}
	}
	return choice{}, apperr.Validation(fmt.Sprintf("invalid %s: %q", field, value))
}

// Normalize maps every option to its code and rejects values outside the fixed sets
func (o Options) Normalize() (Options, error) {
	fields := []struct {
		name  string
		set   []choice
		value *string
	}{
		{"companion", companions, &o.Companion},
		{"feeling", feelings, &o.Feeling},
		{"length", lengths, &o.Length},
		{"tone", tones, &o.Tone},
		{"weather", weathers, &o.Weather},
	}
	for _, f := range fields {
		c, err := lookup(f.set, f.name, *f.value)
		if err != nil {
			return Options{}, err
		}
		*f.value = c.code
	}
	return o, nil
}

func label(set []choice, code string) string {
	for _, c := range set {
		if c.code == code {
			return c.label
		}
	}
	return ""
}
