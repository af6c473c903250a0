package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	cases := map[string]string{
		"  spreads   too\twide \n":                   "spreads too wide",
		"<b>gold</b> and silver":                     "gold and silver",
		"&lt;script&gt;alert(1)&lt;/script&gt;fees": "alert(1)fees",
		"bell\a char":                                "bell char",
		"ñandú":                                      "ñandú",
		"":                                           "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Text(in), in)
	}
}

func TestTextPtr(t *testing.T) {
	assert.Nil(t, TextPtr(nil))
	blank := " <br> "
	assert.Nil(t, TextPtr(&blank))
	name := " Ana  María "
	assert.Equal(t, "Ana María", *TextPtr(&name))
}
