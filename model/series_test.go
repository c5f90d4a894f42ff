package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeriesLastAndLastValues(t *testing.T) {
	s := Series[float64]{150.0, 150.5, 151.0, 150.8}

	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 150.8, s.Last(0))
	assert.Equal(t, 151.0, s.Last(1))
	assert.Equal(t, []float64{151.0, 150.8}, s.LastValues(2))
	assert.Equal(t, s.Values(), s.LastValues(10))
}
