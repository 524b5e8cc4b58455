package ui

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/sokinpui/track.go/model"
)

func TestFprintSpans(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	FprintSpans(&buf, []model.Span{{
		ID: "00000000deadbeef", Kind: model.KindReplace,
		BaselineFrom: 0, BaselineTo: 5, WorkingFrom: 0, WorkingTo: 2,
		BaselineText: "Hello", WorkingText: "Hi",
	}})
	assert.Equal(t, "00000000deadbeef replace baseline[0,5) working[0,2) \"Hello\" -> \"Hi\"\n", buf.String())
}
