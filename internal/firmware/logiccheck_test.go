package firmware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogicCheckKnownAnswers(t *testing.T) {
	fw := "G998BXXU5CVDD/G998BOXM5CVDD/G998BXXU5CVDD/G998BXXU5CVDD"

	assert.Equal(t, "123456", LogicCheck("0123456789abcdef", "ABCDEF"))
	assert.Equal(t, "0123", LogicCheck("0123456789abcdef", "0123"))
	assert.Equal(t, "VV9C", LogicCheck(fw, "Zz/9"))
	assert.Equal(t, "DG85U9CV9B9/D9UG", LogicCheck(fw, "Kp3xWq9ZrT2mLb7N"))
}

func TestLogicCheckShortInput(t *testing.T) {
	assert.Equal(t, "", LogicCheck("0123456789abcde", "ABCDEF"))
	assert.Equal(t, "", LogicCheck("", "A"))
	assert.Equal(t, "", LogicCheck("0123456789abcdef", ""))
}

func TestCheckInput(t *testing.T) {
	cases := map[string]string{
		"SM-G998B_1_20220413162223_a1b2c3d4e5_fac.zip.enc4": "3_a1b2c3d4e5_fac",
		"short.enc4":           "short",
		"abc_noextension12345": "noextension12345",
		"":                     "",
	}
	for in, want := range cases {
		assert.Equal(t, want, CheckInput(in), "input %q", in)
	}
}
