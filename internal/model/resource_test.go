package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResourceZone(t *testing.T) {
	assert.Equal(t, time.UTC, Resource{}.Zone())
	assert.Equal(t, time.UTC, Resource{Timezone: "Mars/Olympus"}.Zone())

	r := Resource{Location: "Studio 2, first floor", Timezone: "Europe/Rome"}
	if _, err := time.LoadLocation("Europe/Rome"); err != nil {
		t.Skip("tzdata not available")
	}
	assert.Equal(t, "Europe/Rome", r.Zone().String())
	assert.Equal(t, "Studio 2, first floor", r.Location)
}
