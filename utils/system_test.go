package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNan(t *testing.T) {
	assert.True(t, IsNan(math.NaN()))
	assert.False(t, IsNan(float32(1)))
	assert.True(t, IsNan([]float64{0, math.NaN()}))
	assert.False(t, IsNan([][]float64{{0}, {1, 2}}))
	assert.True(t, IsNan([][]float64{{0}, {math.NaN()}}))
	assert.False(t, IsNan("NaN"))
	assert.Contains(t, GetMemUsage(), "MiB")
	assert.NotEmpty(t, BLAS)
}
