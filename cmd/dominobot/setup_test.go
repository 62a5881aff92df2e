package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/dominobot/pkg/motion"
)

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs("1, 2,3 -1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, -1}, ids)
	assert.Equal(t, "1,2,3,-1", formatIDs(ids))

	_, err = parseIDs("1,two,3")
	assert.Error(t, err)
}

func TestNextMode(t *testing.T) {
	assert.Equal(t, motion.Controlled, nextMode(motion.Manual))
	assert.Equal(t, motion.Reset, nextMode(motion.Controlled))
	assert.Equal(t, motion.Manual, nextMode(motion.Reset))
}
